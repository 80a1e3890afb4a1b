package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "tradi/internal/errors"
	"tradi/internal/models"
	"tradi/internal/pagination"
	"tradi/internal/services"
)

const (
	btcAssetID  = "0190c8a2-0000-7000-8000-000000000001"
	usdtAssetID = "0190c8a2-0000-7000-8000-000000000002"
	btcPairID   = "0190c8a2-0000-7000-8000-000000000003"
)

// --- mock services ---

type mockCatalogueService struct {
	createAssetFn            func(ticker string, class models.AssetClass) (*models.FinancialAsset, error)
	getAssetByIDFn           func(id string) (*models.FinancialAsset, error)
	listAssetsFn             func(filter services.AssetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.FinancialAsset], error)
	updateAssetFn            func(id string, update services.AssetUpdate) (*models.FinancialAsset, error)
	createTradingPairFn      func(baseAssetID, quoteAssetID string) (*models.TradingPair, error)
	getTradingPairByIDFn     func(id string) (*models.TradingPair, error)
	getTradingPairBySymbolFn func(symbol string, market models.MarketType, exchange models.Exchange) (*models.TradingPair, error)
	listTradingPairsFn       func(filter services.TradingPairFilter, page pagination.PageRequest) (*pagination.PageResponse[models.TradingPair], error)
	groupTradingPairsFn      func(filter services.TradingPairFilter) (services.GroupedTradingPairs, error)
}

func (m *mockCatalogueService) CreateAsset(ticker string, class models.AssetClass) (*models.FinancialAsset, error) {
	if m.createAssetFn != nil {
		return m.createAssetFn(ticker, class)
	}
	return &models.FinancialAsset{}, nil
}

func (m *mockCatalogueService) GetAssetByID(id string) (*models.FinancialAsset, error) {
	if m.getAssetByIDFn != nil {
		return m.getAssetByIDFn(id)
	}
	return &models.FinancialAsset{}, nil
}

func (m *mockCatalogueService) ListAssets(filter services.AssetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.FinancialAsset], error) {
	if m.listAssetsFn != nil {
		return m.listAssetsFn(filter, page)
	}
	result := pagination.NewPageResponse[models.FinancialAsset](nil, 1, 100, 0)
	return &result, nil
}

func (m *mockCatalogueService) UpdateAsset(id string, update services.AssetUpdate) (*models.FinancialAsset, error) {
	if m.updateAssetFn != nil {
		return m.updateAssetFn(id, update)
	}
	return &models.FinancialAsset{}, nil
}

func (m *mockCatalogueService) CreateTradingPair(baseAssetID, quoteAssetID string) (*models.TradingPair, error) {
	if m.createTradingPairFn != nil {
		return m.createTradingPairFn(baseAssetID, quoteAssetID)
	}
	return &models.TradingPair{}, nil
}

func (m *mockCatalogueService) GetTradingPairByID(id string) (*models.TradingPair, error) {
	if m.getTradingPairByIDFn != nil {
		return m.getTradingPairByIDFn(id)
	}
	return &models.TradingPair{}, nil
}

func (m *mockCatalogueService) GetTradingPairBySymbol(symbol string, market models.MarketType, exchange models.Exchange) (*models.TradingPair, error) {
	if m.getTradingPairBySymbolFn != nil {
		return m.getTradingPairBySymbolFn(symbol, market, exchange)
	}
	return &models.TradingPair{}, nil
}

func (m *mockCatalogueService) ListTradingPairs(filter services.TradingPairFilter, page pagination.PageRequest) (*pagination.PageResponse[models.TradingPair], error) {
	if m.listTradingPairsFn != nil {
		return m.listTradingPairsFn(filter, page)
	}
	result := pagination.NewPageResponse[models.TradingPair](nil, 1, 100, 0)
	return &result, nil
}

func (m *mockCatalogueService) GroupTradingPairs(filter services.TradingPairFilter) (services.GroupedTradingPairs, error) {
	if m.groupTradingPairsFn != nil {
		return m.groupTradingPairsFn(filter)
	}
	return services.GroupedTradingPairs{}, nil
}

// --- test helpers ---

func futuresAsset(id, ticker string) models.FinancialAsset {
	asset := models.NewFinancialAsset(ticker, models.AssetClass{
		Type:     models.AssetTypeCryptocurrency,
		Market:   models.MarketFutures,
		Exchange: models.ExchangeBybit,
	})
	asset.ID = id
	return asset
}

func btcPair() *models.TradingPair {
	pair := models.NewTradingPair(futuresAsset(btcAssetID, "BTC"), futuresAsset(usdtAssetID, "USDT"))
	pair.ID = btcPairID
	return &pair
}

func setupCatalogueRouter(handler *CatalogueHandler) *gin.Engine {
	r := gin.New()
	r.GET("/assets", handler.ListAssets)
	r.GET("/assets/:id", handler.GetAsset)
	r.GET("/trading-pairs", handler.ListTradingPairs)
	r.GET("/trading-pairs/grouped", handler.GroupTradingPairs)
	r.GET("/trading-pairs/lookup", handler.LookupTradingPair)
	r.GET("/trading-pairs/:id", handler.GetTradingPair)
	r.POST("/pipeline/assets", handler.CreateAsset)
	r.PATCH("/pipeline/assets/:id", handler.UpdateAsset)
	r.POST("/pipeline/trading-pairs", handler.CreateTradingPair)
	return r
}

// --- tests ---

func TestCatalogueHandler_CreateAsset(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var gotClass models.AssetClass
		svc := &mockCatalogueService{
			createAssetFn: func(ticker string, class models.AssetClass) (*models.FinancialAsset, error) {
				gotClass = class
				asset := futuresAsset(btcAssetID, ticker)
				return &asset, nil
			},
		}
		audit := &mockAuditService{}
		r := setupCatalogueRouter(NewCatalogueHandler(svc, audit))

		rec := doRequest(r, "POST", "/pipeline/assets",
			`{"ticker":"BTC","type":"cryptocurrency","market":"futures","exchange":"bybit"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotClass.Market != models.MarketFutures || gotClass.Exchange != models.ExchangeBybit {
			t.Errorf("unexpected class: %+v", gotClass)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "CREATE_ASSET" {
			t.Errorf("expected CREATE_ASSET audit entry, got %v", audit.entries)
		}
	})

	t.Run("returns 400 on unknown market", func(t *testing.T) {
		r := setupCatalogueRouter(NewCatalogueHandler(&mockCatalogueService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/pipeline/assets",
			`{"ticker":"BTC","type":"cryptocurrency","market":"perpetual","exchange":"bybit"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 409 on duplicate", func(t *testing.T) {
		svc := &mockCatalogueService{
			createAssetFn: func(string, models.AssetClass) (*models.FinancialAsset, error) {
				return nil, apperrors.ErrDuplicateAsset
			},
		}
		r := setupCatalogueRouter(NewCatalogueHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/pipeline/assets",
			`{"ticker":"BTC","type":"cryptocurrency","market":"futures","exchange":"bybit"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestCatalogueHandler_UpdateAsset(t *testing.T) {
	t.Run("passes only provided fields", func(t *testing.T) {
		var got services.AssetUpdate
		svc := &mockCatalogueService{
			updateAssetFn: func(id string, update services.AssetUpdate) (*models.FinancialAsset, error) {
				got = update
				asset := futuresAsset(id, "BTC")
				return &asset, nil
			},
		}
		r := setupCatalogueRouter(NewCatalogueHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PATCH", "/pipeline/assets/"+btcAssetID, `{"market":"spot"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Market == nil || *got.Market != models.MarketSpot {
			t.Errorf("expected market spot, got %v", got.Market)
		}
		if got.Ticker != nil || got.Type != nil || got.Exchange != nil {
			t.Errorf("expected other fields untouched, got %+v", got)
		}
	})

	t.Run("returns 400 when a pair would break", func(t *testing.T) {
		svc := &mockCatalogueService{
			updateAssetFn: func(string, services.AssetUpdate) (*models.FinancialAsset, error) {
				return nil, apperrors.ErrIncompatibleAssets
			},
		}
		r := setupCatalogueRouter(NewCatalogueHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PATCH", "/pipeline/assets/"+btcAssetID, `{"market":"spot"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INCOMPATIBLE_ASSETS")
	})

	t.Run("returns 400 on malformed id", func(t *testing.T) {
		r := setupCatalogueRouter(NewCatalogueHandler(&mockCatalogueService{}, &mockAuditService{}))

		rec := doRequest(r, "PATCH", "/pipeline/assets/42", `{"market":"spot"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCatalogueHandler_CreateTradingPair(t *testing.T) {
	t.Run("returns 201 with symbol", func(t *testing.T) {
		svc := &mockCatalogueService{
			createTradingPairFn: func(string, string) (*models.TradingPair, error) { return btcPair(), nil },
		}
		r := setupCatalogueRouter(NewCatalogueHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/pipeline/trading-pairs",
			`{"base_asset_id":"`+btcAssetID+`","quote_asset_id":"`+usdtAssetID+`"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		pair := parseJSON(t, rec)["trading_pair"].(map[string]interface{})
		if pair["symbol"] != "BTCUSDT" {
			t.Errorf("expected symbol BTCUSDT, got %v", pair["symbol"])
		}
	})

	t.Run("returns 400 on incompatible assets", func(t *testing.T) {
		svc := &mockCatalogueService{
			createTradingPairFn: func(string, string) (*models.TradingPair, error) {
				return nil, apperrors.ErrIncompatibleAssets
			},
		}
		r := setupCatalogueRouter(NewCatalogueHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/pipeline/trading-pairs",
			`{"base_asset_id":"`+btcAssetID+`","quote_asset_id":"`+usdtAssetID+`"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INCOMPATIBLE_ASSETS")
	})

	t.Run("returns 400 on missing quote", func(t *testing.T) {
		r := setupCatalogueRouter(NewCatalogueHandler(&mockCatalogueService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/pipeline/trading-pairs", `{"base_asset_id":"`+btcAssetID+`"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCatalogueHandler_ListTradingPairs(t *testing.T) {
	t.Run("maps query to filter", func(t *testing.T) {
		var gotFilter services.TradingPairFilter
		var gotPage pagination.PageRequest
		svc := &mockCatalogueService{
			listTradingPairsFn: func(filter services.TradingPairFilter, page pagination.PageRequest) (*pagination.PageResponse[models.TradingPair], error) {
				gotFilter, gotPage = filter, page
				result := pagination.NewPageResponse([]models.TradingPair{*btcPair()}, 2, 50, 51)
				return &result, nil
			},
		}
		r := setupCatalogueRouter(NewCatalogueHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/trading-pairs?search=bt&market=futures&traded=true&page=2&page_size=50", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotFilter.Search != "bt" || gotFilter.Market == nil || *gotFilter.Market != models.MarketFutures {
			t.Errorf("unexpected filter: %+v", gotFilter)
		}
		if gotFilter.Traded == nil || !*gotFilter.Traded {
			t.Error("expected traded=true filter")
		}
		if gotPage.Page != 2 || gotPage.PageSize != 50 {
			t.Errorf("unexpected page: %+v", gotPage)
		}
		if parseJSON(t, rec)["total_pages"] != float64(2) {
			t.Error("expected total_pages 2")
		}
	})

	t.Run("returns 400 when page size exceeds the maximum", func(t *testing.T) {
		r := setupCatalogueRouter(NewCatalogueHandler(&mockCatalogueService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/trading-pairs?page_size=501", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on unknown exchange", func(t *testing.T) {
		r := setupCatalogueRouter(NewCatalogueHandler(&mockCatalogueService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/trading-pairs?exchange=mtgox", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCatalogueHandler_GroupTradingPairs(t *testing.T) {
	svc := &mockCatalogueService{
		groupTradingPairsFn: func(services.TradingPairFilter) (services.GroupedTradingPairs, error) {
			return services.GroupedTradingPairs{
				models.ExchangeBybit: {models.MarketFutures: {*btcPair()}},
			}, nil
		},
	}
	r := setupCatalogueRouter(NewCatalogueHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/trading-pairs/grouped", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	grouped := parseJSON(t, rec)["trading_pairs"].(map[string]interface{})
	bybit := grouped["bybit"].(map[string]interface{})
	if pairs := bybit["futures"].([]interface{}); len(pairs) != 1 {
		t.Errorf("expected 1 futures pair, got %d", len(pairs))
	}
}

func TestCatalogueHandler_LookupTradingPair(t *testing.T) {
	t.Run("returns the pair", func(t *testing.T) {
		svc := &mockCatalogueService{
			getTradingPairBySymbolFn: func(symbol string, market models.MarketType, exchange models.Exchange) (*models.TradingPair, error) {
				if symbol != "BTCUSDT" || market != models.MarketFutures || exchange != models.ExchangeBybit {
					t.Errorf("unexpected lookup %s %s %s", symbol, market, exchange)
				}
				return btcPair(), nil
			},
		}
		r := setupCatalogueRouter(NewCatalogueHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/trading-pairs/lookup?symbol=BTCUSDT&market=futures&exchange=bybit", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 404 when unknown", func(t *testing.T) {
		svc := &mockCatalogueService{
			getTradingPairBySymbolFn: func(string, models.MarketType, models.Exchange) (*models.TradingPair, error) {
				return nil, apperrors.ErrTradingPairNotFound
			},
		}
		r := setupCatalogueRouter(NewCatalogueHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/trading-pairs/lookup?symbol=SHIBUSDT&market=futures&exchange=bybit", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "TRADING_PAIR_NOT_FOUND")
	})

	t.Run("returns 400 without market", func(t *testing.T) {
		r := setupCatalogueRouter(NewCatalogueHandler(&mockCatalogueService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/trading-pairs/lookup?symbol=BTCUSDT&exchange=bybit", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCatalogueHandler_GetByID(t *testing.T) {
	svc := &mockCatalogueService{
		getAssetByIDFn:       func(string) (*models.FinancialAsset, error) { return nil, apperrors.ErrAssetNotFound },
		getTradingPairByIDFn: func(string) (*models.TradingPair, error) { return btcPair(), nil },
	}
	r := setupCatalogueRouter(NewCatalogueHandler(svc, &mockAuditService{}))

	if rec := doRequest(r, "GET", "/assets/"+btcAssetID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for asset, got %d", rec.Code)
	}
	if rec := doRequest(r, "GET", "/trading-pairs/"+btcPairID, ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200 for pair, got %d", rec.Code)
	}
}
