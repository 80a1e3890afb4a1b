// Package repository holds GORM-backed data access used by background jobs.
package repository

import (
	"context"
	"errors"

	"tradi/internal/models"
	"tradi/internal/reconciler"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 200

// CatalogueRepository implements reconciler.Catalogue on top of GORM.
type CatalogueRepository struct {
	db *gorm.DB
}

var _ reconciler.Catalogue = (*CatalogueRepository)(nil)

// NewCatalogueRepository creates a new catalogue repository.
func NewCatalogueRepository(db *gorm.DB) *CatalogueRepository {
	return &CatalogueRepository{db: db}
}

// InTransaction runs fn with a repository bound to a single transaction.
// Any error returned by fn rolls the transaction back.
func (r *CatalogueRepository) InTransaction(ctx context.Context, fn func(tx reconciler.Catalogue) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&CatalogueRepository{db: tx})
	})
}

// GetOrCreateAsset returns the asset of the given ticker and class, creating it if needed.
func (r *CatalogueRepository) GetOrCreateAsset(ctx context.Context, ticker string, class models.AssetClass) (*models.FinancialAsset, error) {
	asset, err := r.findAsset(ctx, ticker, class)
	if err == nil {
		return asset, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := models.NewFinancialAsset(ticker, class)
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&created).Error; err != nil {
		return nil, err
	}
	// Re-read: a concurrent run may have inserted the row first.
	return r.findAsset(ctx, ticker, class)
}

func (r *CatalogueRepository) findAsset(ctx context.Context, ticker string, class models.AssetClass) (*models.FinancialAsset, error) {
	var asset models.FinancialAsset
	err := r.db.WithContext(ctx).
		Where("ticker = ? AND type = ? AND market = ? AND exchange = ?", ticker, class.Type, class.Market, class.Exchange).
		First(&asset).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// DeactivatePairs marks traded pairs quoted in quoteAssetID as untraded unless
// their base ticker is listed. An empty listing deactivates every such pair.
func (r *CatalogueRepository) DeactivatePairs(ctx context.Context, quoteAssetID string, listed []string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.TradingPair{}).
		Where("quote_asset_id = ? AND traded = ?", quoteAssetID, true)
	if len(listed) > 0 {
		q = q.Where("base_asset_id NOT IN (?)", r.assetIDsByTicker(listed))
	}
	res := q.Update("traded", false)
	return res.RowsAffected, res.Error
}

// ReactivatePairs marks untraded pairs quoted in quoteAssetID as traded when
// their base ticker is listed again.
func (r *CatalogueRepository) ReactivatePairs(ctx context.Context, quoteAssetID string, listed []string) (int64, error) {
	if len(listed) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.TradingPair{}).
		Where("quote_asset_id = ? AND traded = ?", quoteAssetID, false).
		Where("base_asset_id IN (?)", r.assetIDsByTicker(listed)).
		Update("traded", true)
	return res.RowsAffected, res.Error
}

func (r *CatalogueRepository) assetIDsByTicker(tickers []string) *gorm.DB {
	return r.db.Session(&gorm.Session{NewDB: true}).
		Model(&models.FinancialAsset{}).
		Select("id").
		Where("ticker IN ?", tickers)
}

// ExistingTickers returns which of tickers already exist as assets of class.
func (r *CatalogueRepository) ExistingTickers(ctx context.Context, class models.AssetClass, tickers []string) ([]string, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	var existing []string
	err := r.db.WithContext(ctx).Model(&models.FinancialAsset{}).
		Where("type = ? AND market = ? AND exchange = ?", class.Type, class.Market, class.Exchange).
		Where("ticker IN ?", tickers).
		Pluck("ticker", &existing).Error
	return existing, err
}

// CreateAssets inserts assets, skipping rows that conflict with existing ones,
// and returns the stored row of every requested asset.
func (r *CatalogueRepository) CreateAssets(ctx context.Context, assets []models.FinancialAsset) ([]models.FinancialAsset, error) {
	if len(assets) == 0 {
		return nil, nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&assets, insertBatchSize).Error
	if err != nil {
		return nil, err
	}

	// Ids generated for skipped rows were never stored, so read them back.
	byClass := make(map[models.AssetClass][]string)
	for _, a := range assets {
		byClass[a.Class()] = append(byClass[a.Class()], a.Ticker)
	}
	var stored []models.FinancialAsset
	for class, tickers := range byClass {
		var rows []models.FinancialAsset
		err := r.db.WithContext(ctx).
			Where("type = ? AND market = ? AND exchange = ?", class.Type, class.Market, class.Exchange).
			Where("ticker IN ?", tickers).
			Order("ticker").
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		stored = append(stored, rows...)
	}
	return stored, nil
}

// CreatePairs inserts pairs, skipping ones whose (base, quote) already exists.
func (r *CatalogueRepository) CreatePairs(ctx context.Context, pairs []models.TradingPair) (int64, error) {
	if len(pairs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&pairs, insertBatchSize)
	return res.RowsAffected, res.Error
}
