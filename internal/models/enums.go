package models

// AssetType classifies what a financial asset is.
type AssetType string

const (
	AssetTypeStock          AssetType = "stock"
	AssetTypeCurrency       AssetType = "currency"
	AssetTypeCryptocurrency AssetType = "cryptocurrency"
)

// Valid reports whether t is a known asset type.
func (t AssetType) Valid() bool {
	switch t {
	case AssetTypeStock, AssetTypeCurrency, AssetTypeCryptocurrency:
		return true
	}
	return false
}

// MarketType is the kind of market an asset trades on.
type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
	MarketOptions MarketType = "options"
	MarketMargin  MarketType = "margin"
)

// Valid reports whether m is a known market type.
func (m MarketType) Valid() bool {
	switch m {
	case MarketSpot, MarketFutures, MarketOptions, MarketMargin:
		return true
	}
	return false
}

// Exchange identifies the venue an asset is listed on.
type Exchange string

const (
	ExchangeBybit  Exchange = "bybit"
	ExchangeKuCoin Exchange = "kucoin"
)

// Valid reports whether e is a known exchange.
func (e Exchange) Valid() bool {
	switch e {
	case ExchangeBybit, ExchangeKuCoin:
		return true
	}
	return false
}

// PositionSide is the direction of a position.
type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// Valid reports whether s is long or short.
func (s PositionSide) Valid() bool {
	return s == SideLong || s == SideShort
}

// TrailingStopType says how a trailing stop distance is expressed.
type TrailingStopType string

const (
	TrailingStopPrice      TrailingStopType = "price"
	TrailingStopPercentage TrailingStopType = "percentage"
)

// Valid reports whether t is a known trailing stop type.
func (t TrailingStopType) Valid() bool {
	return t == TrailingStopPrice || t == TrailingStopPercentage
}
