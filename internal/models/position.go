package models

import (
	"encoding/json"
	"time"

	apperrors "tradi/internal/errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Position is a user's diary entry for a trade on a trading pair.
type Position struct {
	Base
	UserID           string              `gorm:"type:uuid;not null;index" json:"user_id"`
	TradingPairID    string              `gorm:"type:uuid;not null;index" json:"trading_pair_id"`
	IsClosed         bool                `gorm:"not null;index" json:"is_closed"`
	Side             PositionSide        `gorm:"size:10;not null" json:"side"`
	Size             decimal.Decimal     `gorm:"type:numeric(22,10);not null" json:"size"`
	EntryPrice       decimal.Decimal     `gorm:"type:numeric(22,10);not null" json:"entry_price"`
	Leverage         decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"leverage"`
	LiqPrice         decimal.NullDecimal `gorm:"type:numeric(22,10)" json:"liq_price"`
	TakeProfit       decimal.NullDecimal `gorm:"type:numeric(22,10)" json:"take_profit"`
	StopLoss         decimal.NullDecimal `gorm:"type:numeric(22,10)" json:"stop_loss"`
	TrailingStop     decimal.NullDecimal `gorm:"type:numeric(22,10)" json:"trailing_stop"`
	TrailingStopType *TrailingStopType   `gorm:"size:20" json:"type_trailing_stop"`
	OpenedAt         time.Time           `gorm:"not null;index" json:"opened_at"`
	ClosedAt         *time.Time          `json:"closed_at"`

	TradingPair TradingPair       `gorm:"foreignKey:TradingPairID;constraint:OnDelete:CASCADE" json:"trading_pair"`
	Comments    []PositionComment `gorm:"foreignKey:PositionID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

// PositionValue is size * entry_price / leverage. Without a usable leverage the
// raw notional size * entry_price is returned.
func (p *Position) PositionValue() decimal.Decimal {
	notional := p.Size.Mul(p.EntryPrice)
	if p.Leverage.Valid && !p.Leverage.Decimal.IsZero() {
		return notional.Div(p.Leverage.Decimal)
	}
	return notional
}

// Validate checks the position before it is persisted.
func (p *Position) Validate() error {
	if !p.Side.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "side must be long or short")
	}
	if !p.Size.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "size must be positive")
	}
	if !p.EntryPrice.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "entry price must be positive")
	}
	if p.Leverage.Valid && p.Leverage.Decimal.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "leverage cannot be negative")
	}
	if p.TrailingStop.Valid && p.TrailingStopType == nil {
		return apperrors.ErrInvalidTrailingStop
	}
	if p.TrailingStopType != nil && !p.TrailingStopType.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown trailing stop type")
	}
	if p.ClosedAt != nil && p.ClosedAt.Before(p.OpenedAt) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "closed_at cannot be before opened_at")
	}
	return nil
}

// BeforeSave validates the position on create and update.
func (p *Position) BeforeSave(tx *gorm.DB) error {
	return p.Validate()
}

// MarshalJSON adds the computed value and the pair's identity.
func (p Position) MarshalJSON() ([]byte, error) {
	type position Position
	out := struct {
		position
		PositionValue decimal.Decimal `json:"position_value"`
		Symbol        string          `json:"symbol,omitempty"`
		Market        MarketType      `json:"market,omitempty"`
		Exchange      Exchange        `json:"exchange,omitempty"`
	}{
		position:      position(p),
		PositionValue: p.PositionValue(),
		Symbol:        p.TradingPair.Symbol(),
		Market:        p.TradingPair.BaseAsset.Market,
		Exchange:      p.TradingPair.BaseAsset.Exchange,
	}
	return json.Marshal(out)
}

// PositionComment is a note, optionally with a chart link, attached to a position.
type PositionComment struct {
	Base
	PositionID string `gorm:"type:uuid;not null;index" json:"position_id"`
	Comment    string `gorm:"type:text;not null" json:"comment"`
	ChartLink  string `gorm:"size:2048" json:"chart_link,omitempty"`
}
