package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"tradi/internal/exchange/bybit"
	"tradi/internal/reconciler"
	"tradi/internal/scheduler"
)

type mockSyncer struct {
	runOnceFn func(ctx context.Context) (*reconciler.Result, error)
}

func (m *mockSyncer) RunOnce(ctx context.Context) (*reconciler.Result, error) {
	return m.runOnceFn(ctx)
}

func setupSyncRouter(syncer CatalogueSyncer) *gin.Engine {
	r := gin.New()
	r.POST("/pipeline/catalogue/sync", NewCatalogueSyncHandler(syncer).Sync)
	return r
}

func TestCatalogueSyncHandler_Sync(t *testing.T) {
	t.Run("returns 200 with the run result", func(t *testing.T) {
		r := setupSyncRouter(&mockSyncer{runOnceFn: func(context.Context) (*reconciler.Result, error) {
			return &reconciler.Result{Listed: 3, Deactivated: 1, AssetsCreated: 1, PairsCreated: 1}, nil
		}})

		rec := doRequest(r, "POST", "/pipeline/catalogue/sync", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)["result"].(map[string]interface{})
		if result["listed"] != float64(3) || result["deactivated"] != float64(1) {
			t.Errorf("unexpected result: %v", result)
		}
	})

	t.Run("returns 502 when the exchange fails", func(t *testing.T) {
		r := setupSyncRouter(&mockSyncer{runOnceFn: func(context.Context) (*reconciler.Result, error) {
			return nil, &bybit.FetchError{Op: "list instruments", Err: errors.New("timeout")}
		}})

		rec := doRequest(r, "POST", "/pipeline/catalogue/sync", "")

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "EXCHANGE_UNAVAILABLE")
	})

	t.Run("returns 409 while another run holds the lock", func(t *testing.T) {
		r := setupSyncRouter(&mockSyncer{runOnceFn: func(context.Context) (*reconciler.Result, error) {
			return nil, scheduler.ErrRunInProgress
		}})

		rec := doRequest(r, "POST", "/pipeline/catalogue/sync", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "SYNC_IN_PROGRESS")
	})

	t.Run("returns 500 on database failure", func(t *testing.T) {
		r := setupSyncRouter(&mockSyncer{runOnceFn: func(context.Context) (*reconciler.Result, error) {
			return nil, errors.New("deadlock detected")
		}})

		rec := doRequest(r, "POST", "/pipeline/catalogue/sync", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("returns 503 without a syncer", func(t *testing.T) {
		rec := doRequest(setupSyncRouter(nil), "POST", "/pipeline/catalogue/sync", "")

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}
