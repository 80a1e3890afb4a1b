package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tradi/internal/errors"
	"tradi/internal/exchange/bybit"
	"tradi/internal/reconciler"
	"tradi/internal/scheduler"
)

// CatalogueSyncer runs one catalogue reconciliation on demand.
type CatalogueSyncer interface {
	RunOnce(ctx context.Context) (*reconciler.Result, error)
}

// CatalogueSyncHandler lets the pipeline trigger a catalogue sync.
type CatalogueSyncHandler struct {
	syncer CatalogueSyncer
}

// NewCatalogueSyncHandler creates a new CatalogueSyncHandler.
func NewCatalogueSyncHandler(syncer CatalogueSyncer) *CatalogueSyncHandler {
	return &CatalogueSyncHandler{syncer: syncer}
}

// Sync runs the reconciler and returns what it changed.
func (h *CatalogueSyncHandler) Sync(c *gin.Context) {
	if h.syncer == nil {
		respondWithError(c, apperrors.ErrServiceUnavailable)
		return
	}
	result, err := h.syncer.RunOnce(c.Request.Context())
	if err != nil {
		respondWithError(c, syncError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func syncError(err error) error {
	var fetchErr *bybit.FetchError
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		return apperrors.ErrSyncInProgress
	case errors.As(err, &fetchErr):
		return apperrors.Wrap(apperrors.ErrExchangeUnavailable, err)
	default:
		return err
	}
}
