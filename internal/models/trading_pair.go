package models

import (
	"encoding/json"
	"errors"
	"fmt"

	apperrors "tradi/internal/errors"

	"gorm.io/gorm"
)

// TradingPair pairs a base asset with a quote asset of the same class.
type TradingPair struct {
	Base
	BaseAssetID  string         `gorm:"type:uuid;not null;uniqueIndex:uq_trading_pairs_assets,priority:1" json:"base_asset_id"`
	QuoteAssetID string         `gorm:"type:uuid;not null;uniqueIndex:uq_trading_pairs_assets,priority:2;index" json:"quote_asset_id"`
	Traded       bool           `gorm:"not null" json:"traded"`
	BaseAsset    FinancialAsset `gorm:"foreignKey:BaseAssetID;constraint:OnDelete:CASCADE" json:"base_asset"`
	QuoteAsset   FinancialAsset `gorm:"foreignKey:QuoteAssetID;constraint:OnDelete:CASCADE" json:"quote_asset"`
}

// NewTradingPair builds a traded pair with both assets attached.
func NewTradingPair(base, quote FinancialAsset) TradingPair {
	return TradingPair{
		BaseAssetID:  base.ID,
		QuoteAssetID: quote.ID,
		Traded:       true,
		BaseAsset:    base,
		QuoteAsset:   quote,
	}
}

// Symbol is the concatenation of the base and quote tickers, e.g. BTCUSDT.
// It is empty unless both assets are loaded.
func (p *TradingPair) Symbol() string {
	if p.BaseAsset.Ticker == "" || p.QuoteAsset.Ticker == "" {
		return ""
	}
	return p.BaseAsset.Ticker + p.QuoteAsset.Ticker
}

// MarshalJSON adds the derived symbol.
func (p TradingPair) MarshalJSON() ([]byte, error) {
	type pair TradingPair
	return json.Marshal(struct {
		pair
		Symbol string `json:"symbol,omitempty"`
	}{pair(p), p.Symbol()})
}

// BeforeCreate assigns the id and refuses pairs of incompatible assets.
func (p *TradingPair) BeforeCreate(tx *gorm.DB) error {
	if err := p.Base.BeforeCreate(tx); err != nil {
		return err
	}
	base, err := attachedOrLoaded(tx, &p.BaseAsset, p.BaseAssetID)
	if err != nil {
		return err
	}
	quote, err := attachedOrLoaded(tx, &p.QuoteAsset, p.QuoteAssetID)
	if err != nil {
		return err
	}
	return ValidateCompatibleAssets(base, quote)
}

func attachedOrLoaded(tx *gorm.DB, attached *FinancialAsset, id string) (*FinancialAsset, error) {
	if attached.ID != "" && attached.ID == id {
		return attached, nil
	}
	var asset FinancialAsset
	err := tx.Session(&gorm.Session{NewDB: true}).First(&asset, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAssetNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// ValidateCompatibleAssets fails with INCOMPATIBLE_ASSETS unless base and quote share
// type, market and exchange.
func ValidateCompatibleAssets(base, quote *FinancialAsset) error {
	if base.IsCompatibleWith(quote) {
		return nil
	}
	return apperrors.WithMessage(apperrors.ErrIncompatibleAssets, fmt.Sprintf(
		"%s and %s must share type, market and exchange", base, quote))
}

// ValidateRelatedTradingPairs re-checks every pair that references the asset.
// Run it inside the transaction that modified the asset so a violation rolls
// the modification back.
func ValidateRelatedTradingPairs(tx *gorm.DB, assetID string) error {
	var pairs []TradingPair
	err := tx.Preload("BaseAsset").Preload("QuoteAsset").
		Where("base_asset_id = ? OR quote_asset_id = ?", assetID, assetID).
		Find(&pairs).Error
	if err != nil {
		return err
	}
	for i := range pairs {
		if err := ValidateCompatibleAssets(&pairs[i].BaseAsset, &pairs[i].QuoteAsset); err != nil {
			return err
		}
	}
	return nil
}
