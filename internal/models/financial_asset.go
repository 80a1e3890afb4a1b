package models

import (
	"fmt"
	"strings"

	apperrors "tradi/internal/errors"

	"gorm.io/gorm"
)

// AssetClass is the (type, market, exchange) triple two assets must share to form a pair.
type AssetClass struct {
	Type     AssetType
	Market   MarketType
	Exchange Exchange
}

// FinancialAsset is a tradable instrument on a given market of a given exchange.
type FinancialAsset struct {
	Base
	Ticker   string     `gorm:"size:50;not null;uniqueIndex:uq_financial_assets_identity,priority:1" json:"ticker"`
	Type     AssetType  `gorm:"size:20;not null;uniqueIndex:uq_financial_assets_identity,priority:2" json:"type"`
	Market   MarketType `gorm:"size:20;not null;uniqueIndex:uq_financial_assets_identity,priority:3" json:"market"`
	Exchange Exchange   `gorm:"size:20;not null;uniqueIndex:uq_financial_assets_identity,priority:4" json:"exchange"`
}

// NewFinancialAsset builds an asset of the given class.
func NewFinancialAsset(ticker string, class AssetClass) FinancialAsset {
	return FinancialAsset{
		Ticker:   ticker,
		Type:     class.Type,
		Market:   class.Market,
		Exchange: class.Exchange,
	}
}

// Class returns the compatibility class of the asset.
func (a *FinancialAsset) Class() AssetClass {
	return AssetClass{Type: a.Type, Market: a.Market, Exchange: a.Exchange}
}

// IsCompatibleWith reports whether a and other can be paired.
func (a *FinancialAsset) IsCompatibleWith(other *FinancialAsset) bool {
	return a.Class() == other.Class()
}

// Validate checks the asset's own fields.
func (a *FinancialAsset) Validate() error {
	if strings.TrimSpace(a.Ticker) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "ticker is required")
	}
	if !a.Type.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("unknown asset type %q", a.Type))
	}
	if !a.Market.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("unknown market %q", a.Market))
	}
	if !a.Exchange.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("unknown exchange %q", a.Exchange))
	}
	return nil
}

// BeforeSave rejects assets with missing or unknown attributes.
func (a *FinancialAsset) BeforeSave(tx *gorm.DB) error {
	return a.Validate()
}

func (a *FinancialAsset) String() string {
	return fmt.Sprintf("%s (%s, %s, %s)", a.Ticker, a.Type, a.Market, a.Exchange)
}
