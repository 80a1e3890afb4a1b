package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "tradi/internal/errors"
	"tradi/internal/models"
	"tradi/internal/pagination"
	"tradi/internal/services"
)

// PositionHandler handles the trading diary.
type PositionHandler struct {
	positionService services.PositionServicer
	auditService    services.AuditServicer
}

// NewPositionHandler creates a new PositionHandler.
func NewPositionHandler(positionService services.PositionServicer, auditService services.AuditServicer) *PositionHandler {
	return &PositionHandler{positionService: positionService, auditService: auditService}
}

// CreatePositionRequest represents the request payload for opening a position.
// The trading pair is resolved from symbol, market and exchange.
type CreatePositionRequest struct {
	Symbol           string                   `json:"symbol" binding:"required,max=40"`
	Market           models.MarketType        `json:"market" binding:"required,market_type"`
	Exchange         models.Exchange          `json:"exchange" binding:"required,exchange"`
	Side             models.PositionSide      `json:"side" binding:"required,position_side"`
	Size             *decimal.Decimal         `json:"size" binding:"required"`
	EntryPrice       *decimal.Decimal         `json:"entry_price" binding:"required"`
	Leverage         decimal.NullDecimal      `json:"leverage"`
	LiqPrice         decimal.NullDecimal      `json:"liq_price"`
	TakeProfit       decimal.NullDecimal      `json:"take_profit"`
	StopLoss         decimal.NullDecimal      `json:"stop_loss"`
	TrailingStop     decimal.NullDecimal      `json:"trailing_stop"`
	TrailingStopType *models.TrailingStopType `json:"type_trailing_stop" binding:"omitempty,trailing_stop_type"`
	OpenedAt         *time.Time               `json:"opened_at"`
	ClosedAt         *time.Time               `json:"closed_at"`
	IsClosed         bool                     `json:"is_closed"`
}

// UpdatePositionRequest represents a partial position update.
type UpdatePositionRequest struct {
	Side             *models.PositionSide     `json:"side" binding:"omitempty,position_side"`
	Size             *decimal.Decimal         `json:"size"`
	EntryPrice       *decimal.Decimal         `json:"entry_price"`
	Leverage         *decimal.Decimal         `json:"leverage"`
	LiqPrice         *decimal.Decimal         `json:"liq_price"`
	TakeProfit       *decimal.Decimal         `json:"take_profit"`
	StopLoss         *decimal.Decimal         `json:"stop_loss"`
	TrailingStop     *decimal.Decimal         `json:"trailing_stop"`
	TrailingStopType *models.TrailingStopType `json:"type_trailing_stop" binding:"omitempty,trailing_stop_type"`
	OpenedAt         *time.Time               `json:"opened_at"`
}

// ClosePositionRequest represents the request payload for closing a position.
type ClosePositionRequest struct {
	ClosedAt *time.Time `json:"closed_at"`
}

// AddCommentRequest represents the request payload for commenting on a position.
type AddCommentRequest struct {
	Comment   string `json:"comment" binding:"required,max=5000"`
	ChartLink string `json:"chart_link" binding:"omitempty,url,max=2048"`
}

func setDecimal(d *decimal.Decimal) *decimal.NullDecimal {
	if d == nil {
		return nil
	}
	return &decimal.NullDecimal{Decimal: *d, Valid: true}
}

// CreatePosition opens a position for the authenticated user.
func (h *PositionHandler) CreatePosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.PositionInput{
		Symbol:           req.Symbol,
		Market:           req.Market,
		Exchange:         req.Exchange,
		Side:             req.Side,
		Size:             *req.Size,
		EntryPrice:       *req.EntryPrice,
		Leverage:         req.Leverage,
		LiqPrice:         req.LiqPrice,
		TakeProfit:       req.TakeProfit,
		StopLoss:         req.StopLoss,
		TrailingStop:     req.TrailingStop,
		TrailingStopType: req.TrailingStopType,
		ClosedAt:         req.ClosedAt,
		IsClosed:         req.IsClosed,
	}
	if req.OpenedAt != nil {
		input.OpenedAt = *req.OpenedAt
	}

	position, err := h.positionService.CreatePosition(userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_POSITION", "position", position.ID, c.ClientIP(),
		map[string]interface{}{"symbol": req.Symbol, "side": req.Side, "size": req.Size.String()})

	c.JSON(http.StatusCreated, gin.H{"position": position})
}

// ListPositions returns the authenticated user's positions, newest first.
func (h *PositionHandler) ListPositions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parsePositionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.positionService.ListPositions(userID, filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parsePositionFilter(c *gin.Context) (services.PositionFilter, error) {
	filter := services.PositionFilter{
		BaseTicker:  c.Query("base_ticker"),
		QuoteTicker: c.Query("quote_ticker"),
	}

	if v := c.Query("market"); v != "" {
		market := models.MarketType(v)
		if !market.Valid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid market, must be spot, futures, options, or margin")
		}
		filter.Market = &market
	}

	if v := c.Query("side"); v != "" {
		side := models.PositionSide(v)
		if !side.Valid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid side, must be long or short")
		}
		filter.Side = &side
	}

	var err error
	if filter.Traded, err = parseOptionalBool(c, "traded"); err != nil {
		return filter, err
	}
	if filter.IsClosed, err = parseOptionalBool(c, "is_closed"); err != nil {
		return filter, err
	}
	if filter.OpenedAfter, err = parseOptionalTime(c, "opened_after"); err != nil {
		return filter, err
	}
	if filter.OpenedBefore, err = parseOptionalTime(c, "opened_before"); err != nil {
		return filter, err
	}
	if filter.ClosedAfter, err = parseOptionalTime(c, "closed_after"); err != nil {
		return filter, err
	}
	if filter.ClosedBefore, err = parseOptionalTime(c, "closed_before"); err != nil {
		return filter, err
	}
	return filter, nil
}

// GetPosition returns one of the user's positions with its comments.
func (h *PositionHandler) GetPosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	positionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	position, err := h.positionService.GetPositionByID(userID, positionID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": position})
}

// UpdatePosition applies a partial update.
func (h *PositionHandler) UpdatePosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	positionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	position, err := h.positionService.UpdatePosition(userID, positionID, services.PositionUpdate{
		Side:             req.Side,
		Size:             req.Size,
		EntryPrice:       req.EntryPrice,
		Leverage:         setDecimal(req.Leverage),
		LiqPrice:         setDecimal(req.LiqPrice),
		TakeProfit:       setDecimal(req.TakeProfit),
		StopLoss:         setDecimal(req.StopLoss),
		TrailingStop:     setDecimal(req.TrailingStop),
		TrailingStopType: req.TrailingStopType,
		OpenedAt:         req.OpenedAt,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_POSITION", "position", position.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"position": position})
}

// ClosePosition marks a position closed, now unless closed_at is given.
func (h *PositionHandler) ClosePosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	positionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ClosePositionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}
	var closedAt time.Time
	if req.ClosedAt != nil {
		closedAt = *req.ClosedAt
	}

	position, err := h.positionService.ClosePosition(userID, positionID, closedAt)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CLOSE_POSITION", "position", position.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"position": position})
}

// DeletePosition removes a position and its comments.
func (h *PositionHandler) DeletePosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	positionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.positionService.DeletePosition(userID, positionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_POSITION", "position", positionID, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}

// AddComment attaches a comment to a position.
func (h *PositionHandler) AddComment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	positionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	comment, err := h.positionService.AddComment(userID, positionID, req.Comment, req.ChartLink)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}
