package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tradi/internal/errors"
	"tradi/internal/models"
	"tradi/internal/pagination"
)

const (
	joinBaseAsset  = "JOIN financial_assets ba ON ba.id = trading_pairs.base_asset_id"
	joinQuoteAsset = "JOIN financial_assets qa ON qa.id = trading_pairs.quote_asset_id"
)

// catalogueService handles financial assets and trading pairs.
type catalogueService struct {
	db *gorm.DB
}

// NewCatalogueService creates a new CatalogueServicer.
func NewCatalogueService(db *gorm.DB) CatalogueServicer {
	return &catalogueService{db: db}
}

// CreateAsset creates a financial asset.
func (s *catalogueService) CreateAsset(ticker string, class models.AssetClass) (*models.FinancialAsset, error) {
	asset := models.NewFinancialAsset(strings.TrimSpace(ticker), class)
	if err := s.db.Create(&asset).Error; err != nil {
		return nil, dbError(err, apperrors.ErrDuplicateAsset)
	}
	return &asset, nil
}

// GetAssetByID returns an asset by its ID.
func (s *catalogueService) GetAssetByID(id string) (*models.FinancialAsset, error) {
	return findAsset(s.db, id)
}

func findAsset(db *gorm.DB, id string) (*models.FinancialAsset, error) {
	var asset models.FinancialAsset
	if err := db.First(&asset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &asset, nil
}

// ListAssets returns a filtered, paginated list of assets ordered by ticker.
func (s *catalogueService) ListAssets(filter AssetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.FinancialAsset], error) {
	page.Defaults()

	q := s.db.Model(&models.FinancialAsset{})
	if filter.Ticker != "" {
		q = q.Where("ticker = ?", filter.Ticker)
	}
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	if filter.Market != nil {
		q = q.Where("market = ?", *filter.Market)
	}
	if filter.Exchange != nil {
		q = q.Where("exchange = ?", *filter.Exchange)
	}
	q = q.Session(&gorm.Session{})

	var totalItems int64
	if err := q.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var assets []models.FinancialAsset
	if err := q.Scopes(pagination.Paginate(page)).Order("ticker, market, exchange").Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(assets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateAsset modifies an asset and re-validates every trading pair that uses it.
// If any pair would end up with incompatible assets, the change is rolled back.
func (s *catalogueService) UpdateAsset(id string, update AssetUpdate) (*models.FinancialAsset, error) {
	var asset *models.FinancialAsset
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		asset, err = findAsset(tx, id)
		if err != nil {
			return err
		}

		if update.Ticker != nil {
			asset.Ticker = strings.TrimSpace(*update.Ticker)
		}
		if update.Type != nil {
			asset.Type = *update.Type
		}
		if update.Market != nil {
			asset.Market = *update.Market
		}
		if update.Exchange != nil {
			asset.Exchange = *update.Exchange
		}

		if err := tx.Save(asset).Error; err != nil {
			return dbError(err, apperrors.ErrDuplicateAsset)
		}
		return models.ValidateRelatedTradingPairs(tx, asset.ID)
	})
	if err != nil {
		return nil, dbError(err, nil)
	}
	return asset, nil
}

// CreateTradingPair pairs two existing assets. The assets must be compatible.
func (s *catalogueService) CreateTradingPair(baseAssetID, quoteAssetID string) (*models.TradingPair, error) {
	if baseAssetID == quoteAssetID {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "base and quote assets must differ")
	}
	base, err := findAsset(s.db, baseAssetID)
	if err != nil {
		return nil, err
	}
	quote, err := findAsset(s.db, quoteAssetID)
	if err != nil {
		return nil, err
	}

	pair := models.NewTradingPair(*base, *quote)
	if err := s.db.Omit(clause.Associations).Create(&pair).Error; err != nil {
		return nil, dbError(err, apperrors.ErrDuplicateTradingPair)
	}
	return &pair, nil
}

// GetTradingPairByID returns a trading pair with both assets loaded.
func (s *catalogueService) GetTradingPairByID(id string) (*models.TradingPair, error) {
	var pair models.TradingPair
	err := s.db.Preload("BaseAsset").Preload("QuoteAsset").First(&pair, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTradingPairNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &pair, nil
}

// GetTradingPairBySymbol finds the pair whose concatenated tickers equal symbol
// on the given market and exchange.
func (s *catalogueService) GetTradingPairBySymbol(symbol string, market models.MarketType, exchange models.Exchange) (*models.TradingPair, error) {
	var pair models.TradingPair
	err := s.db.Model(&models.TradingPair{}).
		Joins(joinBaseAsset).
		Joins(joinQuoteAsset).
		Where("ba.ticker || qa.ticker = ?", symbol).
		Where("ba.market = ? AND ba.exchange = ?", market, exchange).
		Preload("BaseAsset").
		Preload("QuoteAsset").
		Order("trading_pairs.traded DESC").
		First(&pair).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrTradingPairNotFound,
				"Trading pair with symbol "+symbol+" not found in "+string(market)+" on "+string(exchange))
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &pair, nil
}

func (s *catalogueService) pairQuery(filter TradingPairFilter) *gorm.DB {
	q := s.db.Model(&models.TradingPair{}).Joins(joinBaseAsset).Joins(joinQuoteAsset)
	if filter.BaseTicker != "" {
		q = q.Where("ba.ticker = ?", filter.BaseTicker)
	}
	if filter.QuoteTicker != "" {
		q = q.Where("qa.ticker = ?", filter.QuoteTicker)
	}
	if filter.Search != "" {
		q = q.Where("LOWER(ba.ticker) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Type != nil {
		q = q.Where("ba.type = ?", *filter.Type)
	}
	if filter.Market != nil {
		q = q.Where("ba.market = ?", *filter.Market)
	}
	if filter.Exchange != nil {
		q = q.Where("ba.exchange = ?", *filter.Exchange)
	}
	if filter.Traded != nil {
		q = q.Where("trading_pairs.traded = ?", *filter.Traded)
	}
	return q.Session(&gorm.Session{})
}

// ListTradingPairs returns a filtered, paginated list of trading pairs ordered by symbol.
func (s *catalogueService) ListTradingPairs(filter TradingPairFilter, page pagination.PageRequest) (*pagination.PageResponse[models.TradingPair], error) {
	page.Defaults()
	q := s.pairQuery(filter)

	var totalItems int64
	if err := q.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var pairs []models.TradingPair
	if err := q.Preload("BaseAsset").Preload("QuoteAsset").
		Scopes(pagination.Paginate(page)).
		Order("ba.ticker, qa.ticker").
		Find(&pairs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(pairs, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GroupTradingPairs returns every matching pair grouped by exchange and market.
func (s *catalogueService) GroupTradingPairs(filter TradingPairFilter) (GroupedTradingPairs, error) {
	var pairs []models.TradingPair
	if err := s.pairQuery(filter).Preload("BaseAsset").Preload("QuoteAsset").
		Order("ba.exchange, ba.market, ba.ticker, qa.ticker").
		Find(&pairs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	grouped := GroupedTradingPairs{}
	for _, p := range pairs {
		exchange, market := p.BaseAsset.Exchange, p.BaseAsset.Market
		if grouped[exchange] == nil {
			grouped[exchange] = map[models.MarketType][]models.TradingPair{}
		}
		grouped[exchange][market] = append(grouped[exchange][market], p)
	}
	return grouped, nil
}

// dbError passes application errors (including those raised by model hooks)
// through unchanged, maps unique violations to duplicate, and wraps the rest.
func dbError(err error, duplicate *apperrors.AppError) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if duplicate != nil && isUniqueConstraintError(err) {
		return duplicate
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
