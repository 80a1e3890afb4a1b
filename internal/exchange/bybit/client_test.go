package bybit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, server.Client())
}

func TestListInstruments_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != instrumentsPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("category"); got != "linear" {
			t.Errorf("expected category linear, got %s", got)
		}
		if got := r.URL.Query().Get("limit"); got != "1000" {
			t.Errorf("expected limit 1000, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"retCode": 0,
			"retMsg": "OK",
			"result": {
				"category": "linear",
				"list": [
					{"symbol": "BTCUSDT", "baseCoin": "BTC", "quoteCoin": "USDT", "status": "Trading", "isPreListing": false},
					{"symbol": "NEWUSDT", "baseCoin": "NEW", "quoteCoin": "USDT", "status": "PreLaunch", "isPreListing": true}
				],
				"nextPageCursor": ""
			}
		}`))
	})

	page, err := c.ListInstruments(context.Background(), "linear", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Category != "linear" {
		t.Errorf("expected category linear, got %s", page.Category)
	}
	if len(page.Instruments) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(page.Instruments))
	}
	if page.Instruments[0].Symbol != "BTCUSDT" || page.Instruments[0].IsPreListing {
		t.Errorf("unexpected first instrument: %+v", page.Instruments[0])
	}
	if !page.Instruments[1].IsPreListing {
		t.Error("expected second instrument to be pre-listing")
	}
}

func TestListInstruments_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"non_200", http.StatusServiceUnavailable, `{}`},
		{"not_json", http.StatusOK, `<html>rate limited</html>`},
		{"api_error", http.StatusOK, `{"retCode": 10006, "retMsg": "Too many visits!", "result": {}}`},
		{"missing_result", http.StatusOK, `{"retCode": 0, "retMsg": "OK"}`},
		{"missing_list", http.StatusOK, `{"retCode": 0, "result": {"category": "linear"}}`},
		{"missing_prelisting_flag", http.StatusOK, `{"retCode": 0, "result": {"list": [{"symbol": "BTCUSDT", "quoteCoin": "USDT"}]}}`},
		{"missing_symbol", http.StatusOK, `{"retCode": 0, "result": {"list": [{"quoteCoin": "USDT", "isPreListing": false}]}}`},
		{"wrong_type", http.StatusOK, `{"retCode": 0, "result": {"list": [{"symbol": 1, "quoteCoin": "USDT", "isPreListing": false}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			})

			_, err := c.ListInstruments(context.Background(), "linear", 1000)
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected *FetchError, got %T: %v", err, err)
			}
		})
	}
}

func TestListInstruments_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ListInstruments(ctx, "linear", 1000)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", nil)
	if c.baseURL != DefaultBaseURL {
		t.Errorf("expected %s, got %s", DefaultBaseURL, c.baseURL)
	}
	if c.httpClient == nil {
		t.Error("expected a default http client")
	}
}
