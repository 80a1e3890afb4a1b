package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tradi/internal/errors"
	"tradi/internal/models"
	"tradi/internal/pagination"
	"tradi/internal/services"
)

// CatalogueHandler serves financial assets and trading pairs. Reads are open to
// any authenticated user; writes are mounted on the pipeline routes.
type CatalogueHandler struct {
	catalogueService services.CatalogueServicer
	auditService     services.AuditServicer
}

// NewCatalogueHandler creates a new CatalogueHandler.
func NewCatalogueHandler(catalogueService services.CatalogueServicer, auditService services.AuditServicer) *CatalogueHandler {
	return &CatalogueHandler{catalogueService: catalogueService, auditService: auditService}
}

// CreateAssetRequest represents the request payload for creating a financial asset.
type CreateAssetRequest struct {
	Ticker   string            `json:"ticker" binding:"required,min=1,max=20"`
	Type     models.AssetType  `json:"type" binding:"required,asset_type"`
	Market   models.MarketType `json:"market" binding:"required,market_type"`
	Exchange models.Exchange   `json:"exchange" binding:"required,exchange"`
}

// UpdateAssetRequest represents a partial asset update.
type UpdateAssetRequest struct {
	Ticker   *string            `json:"ticker" binding:"omitempty,min=1,max=20"`
	Type     *models.AssetType  `json:"type" binding:"omitempty,asset_type"`
	Market   *models.MarketType `json:"market" binding:"omitempty,market_type"`
	Exchange *models.Exchange   `json:"exchange" binding:"omitempty,exchange"`
}

// CreateTradingPairRequest represents the request payload for pairing two assets.
type CreateTradingPairRequest struct {
	BaseAssetID  string `json:"base_asset_id" binding:"required,uuid"`
	QuoteAssetID string `json:"quote_asset_id" binding:"required,uuid"`
}

type assetQuery struct {
	Ticker   string            `form:"ticker"`
	Type     models.AssetType  `form:"type" binding:"omitempty,asset_type"`
	Market   models.MarketType `form:"market" binding:"omitempty,market_type"`
	Exchange models.Exchange   `form:"exchange" binding:"omitempty,exchange"`
}

func (q assetQuery) filter() services.AssetFilter {
	f := services.AssetFilter{Ticker: q.Ticker}
	if q.Type != "" {
		f.Type = &q.Type
	}
	if q.Market != "" {
		f.Market = &q.Market
	}
	if q.Exchange != "" {
		f.Exchange = &q.Exchange
	}
	return f
}

type tradingPairQuery struct {
	BaseTicker  string            `form:"base_ticker"`
	QuoteTicker string            `form:"quote_ticker"`
	Search      string            `form:"search"`
	Type        models.AssetType  `form:"type" binding:"omitempty,asset_type"`
	Market      models.MarketType `form:"market" binding:"omitempty,market_type"`
	Exchange    models.Exchange   `form:"exchange" binding:"omitempty,exchange"`
	Traded      *bool             `form:"traded"`
}

func (q tradingPairQuery) filter() services.TradingPairFilter {
	f := services.TradingPairFilter{
		BaseTicker:  q.BaseTicker,
		QuoteTicker: q.QuoteTicker,
		Search:      q.Search,
		Traded:      q.Traded,
	}
	if q.Type != "" {
		f.Type = &q.Type
	}
	if q.Market != "" {
		f.Market = &q.Market
	}
	if q.Exchange != "" {
		f.Exchange = &q.Exchange
	}
	return f
}

// ListAssets returns a filtered, paginated list of assets.
func (h *CatalogueHandler) ListAssets(c *gin.Context) {
	var page pagination.PageRequest
	var query assetQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.catalogueService.ListAssets(query.filter(), page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAsset returns a single asset.
func (h *CatalogueHandler) GetAsset(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.catalogueService.GetAssetByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

// CreateAsset adds an asset to the catalogue.
func (h *CatalogueHandler) CreateAsset(c *gin.Context) {
	var req CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	asset, err := h.catalogueService.CreateAsset(req.Ticker, models.AssetClass{
		Type:     req.Type,
		Market:   req.Market,
		Exchange: req.Exchange,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "CREATE_ASSET", "financial_asset", asset.ID, c.ClientIP(),
		map[string]interface{}{"asset": asset.String()})

	c.JSON(http.StatusCreated, gin.H{"asset": asset})
}

// UpdateAsset edits an asset. Edits that would leave one of its trading pairs
// with incompatible assets are refused.
func (h *CatalogueHandler) UpdateAsset(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	asset, err := h.catalogueService.UpdateAsset(id, services.AssetUpdate{
		Ticker:   req.Ticker,
		Type:     req.Type,
		Market:   req.Market,
		Exchange: req.Exchange,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "UPDATE_ASSET", "financial_asset", asset.ID, c.ClientIP(),
		map[string]interface{}{"asset": asset.String()})

	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

// CreateTradingPair pairs two existing assets.
func (h *CatalogueHandler) CreateTradingPair(c *gin.Context) {
	var req CreateTradingPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	pair, err := h.catalogueService.CreateTradingPair(req.BaseAssetID, req.QuoteAssetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "CREATE_TRADING_PAIR", "trading_pair", pair.ID, c.ClientIP(),
		map[string]interface{}{"symbol": pair.Symbol()})

	c.JSON(http.StatusCreated, gin.H{"trading_pair": pair})
}

// ListTradingPairs returns a filtered, paginated list of trading pairs.
func (h *CatalogueHandler) ListTradingPairs(c *gin.Context) {
	var page pagination.PageRequest
	var query tradingPairQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.catalogueService.ListTradingPairs(query.filter(), page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GroupTradingPairs returns every matching pair grouped by exchange and market.
func (h *CatalogueHandler) GroupTradingPairs(c *gin.Context) {
	var query tradingPairQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	grouped, err := h.catalogueService.GroupTradingPairs(query.filter())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trading_pairs": grouped})
}

// LookupTradingPair finds a pair by symbol, market and exchange.
func (h *CatalogueHandler) LookupTradingPair(c *gin.Context) {
	var query struct {
		Symbol   string            `form:"symbol" binding:"required"`
		Market   models.MarketType `form:"market" binding:"required,market_type"`
		Exchange models.Exchange   `form:"exchange" binding:"required,exchange"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	pair, err := h.catalogueService.GetTradingPairBySymbol(query.Symbol, query.Market, query.Exchange)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trading_pair": pair})
}

// GetTradingPair returns a single trading pair.
func (h *CatalogueHandler) GetTradingPair(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	pair, err := h.catalogueService.GetTradingPairByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trading_pair": pair})
}
