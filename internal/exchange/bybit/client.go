// Package bybit is a minimal client for the Bybit v5 public market API.
package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the Bybit mainnet REST endpoint.
const DefaultBaseURL = "https://api.bybit.com"

const instrumentsPath = "/v5/market/instruments-info"

// Instrument is one entry of the instruments-info listing.
type Instrument struct {
	Symbol       string
	BaseCoin     string
	QuoteCoin    string
	Status       string
	IsPreListing bool
}

// InstrumentsPage is a validated instruments-info response.
type InstrumentsPage struct {
	Category       string
	Instruments    []Instrument
	NextPageCursor string
}

// FetchError is returned for any failure to obtain a well-formed listing:
// transport errors, timeouts, non-200 answers, API error codes and payloads
// that do not match the expected shape.
type FetchError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("bybit %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to the Bybit REST API.
type Client struct {
	baseURL    string // overridable for tests
	httpClient *http.Client
}

// NewClient creates a Bybit client. An empty baseURL selects mainnet.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type rawInstrument struct {
	Symbol       *string `json:"symbol"`
	BaseCoin     string  `json:"baseCoin"`
	QuoteCoin    *string `json:"quoteCoin"`
	Status       string  `json:"status"`
	IsPreListing *bool   `json:"isPreListing"`
}

type rawInstrumentsResponse struct {
	RetCode *int   `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  *struct {
		Category       string          `json:"category"`
		List           []rawInstrument `json:"list"`
		NextPageCursor string          `json:"nextPageCursor"`
	} `json:"result"`
}

// ListInstruments fetches one page of instruments for the category.
func (c *Client) ListInstruments(ctx context.Context, category string, limit int) (*InstrumentsPage, error) {
	const op = "instruments-info"

	q := url.Values{}
	q.Set("category", category)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+instrumentsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var raw rawInstrumentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}

	page, err := raw.validate()
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	return page, nil
}

func (r *rawInstrumentsResponse) validate() (*InstrumentsPage, error) {
	if r.RetCode != nil && *r.RetCode != 0 {
		return nil, fmt.Errorf("api error %d: %s", *r.RetCode, r.RetMsg)
	}
	if r.Result == nil {
		return nil, errors.New("malformed payload: missing result")
	}
	if r.Result.List == nil {
		return nil, errors.New("malformed payload: missing result.list")
	}

	page := &InstrumentsPage{
		Category:       r.Result.Category,
		Instruments:    make([]Instrument, 0, len(r.Result.List)),
		NextPageCursor: r.Result.NextPageCursor,
	}
	for i, item := range r.Result.List {
		if item.Symbol == nil || item.QuoteCoin == nil || item.IsPreListing == nil {
			return nil, fmt.Errorf("malformed payload: instrument %d lacks symbol, quoteCoin or isPreListing", i)
		}
		page.Instruments = append(page.Instruments, Instrument{
			Symbol:       *item.Symbol,
			BaseCoin:     item.BaseCoin,
			QuoteCoin:    *item.QuoteCoin,
			Status:       item.Status,
			IsPreListing: *item.IsPreListing,
		})
	}
	return page, nil
}
