package services

import (
	"time"

	"github.com/shopspring/decimal"

	"tradi/internal/models"
	"tradi/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	RecordLogin(userID string) error
}

// AssetFilter holds optional filter parameters for listing assets.
type AssetFilter struct {
	Ticker   string
	Type     *models.AssetType
	Market   *models.MarketType
	Exchange *models.Exchange
}

// AssetUpdate holds the fields of an asset that may be changed. Nil fields are left as they are.
type AssetUpdate struct {
	Ticker   *string
	Type     *models.AssetType
	Market   *models.MarketType
	Exchange *models.Exchange
}

// TradingPairFilter holds optional filter parameters for listing trading pairs.
type TradingPairFilter struct {
	BaseTicker  string
	QuoteTicker string
	Search      string
	Type        *models.AssetType
	Market      *models.MarketType
	Exchange    *models.Exchange
	Traded      *bool
}

// GroupedTradingPairs maps exchange, then market, to the pairs listed there.
type GroupedTradingPairs map[models.Exchange]map[models.MarketType][]models.TradingPair

// CatalogueServicer defines the contract for financial assets and trading pairs.
type CatalogueServicer interface {
	CreateAsset(ticker string, class models.AssetClass) (*models.FinancialAsset, error)
	GetAssetByID(id string) (*models.FinancialAsset, error)
	ListAssets(filter AssetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.FinancialAsset], error)
	UpdateAsset(id string, update AssetUpdate) (*models.FinancialAsset, error)
	CreateTradingPair(baseAssetID, quoteAssetID string) (*models.TradingPair, error)
	GetTradingPairByID(id string) (*models.TradingPair, error)
	GetTradingPairBySymbol(symbol string, market models.MarketType, exchange models.Exchange) (*models.TradingPair, error)
	ListTradingPairs(filter TradingPairFilter, page pagination.PageRequest) (*pagination.PageResponse[models.TradingPair], error)
	GroupTradingPairs(filter TradingPairFilter) (GroupedTradingPairs, error)
}

// PositionInput holds the fields needed to open a position.
type PositionInput struct {
	Symbol           string
	Market           models.MarketType
	Exchange         models.Exchange
	Side             models.PositionSide
	Size             decimal.Decimal
	EntryPrice       decimal.Decimal
	Leverage         decimal.NullDecimal
	LiqPrice         decimal.NullDecimal
	TakeProfit       decimal.NullDecimal
	StopLoss         decimal.NullDecimal
	TrailingStop     decimal.NullDecimal
	TrailingStopType *models.TrailingStopType
	OpenedAt         time.Time
	ClosedAt         *time.Time
	IsClosed         bool
}

// PositionUpdate holds a partial update. Nil fields are left as they are.
type PositionUpdate struct {
	Side             *models.PositionSide
	Size             *decimal.Decimal
	EntryPrice       *decimal.Decimal
	Leverage         *decimal.NullDecimal
	LiqPrice         *decimal.NullDecimal
	TakeProfit       *decimal.NullDecimal
	StopLoss         *decimal.NullDecimal
	TrailingStop     *decimal.NullDecimal
	TrailingStopType *models.TrailingStopType
	OpenedAt         *time.Time
}

// PositionFilter holds optional filter parameters for listing positions.
type PositionFilter struct {
	BaseTicker   string
	QuoteTicker  string
	Market       *models.MarketType
	Traded       *bool
	IsClosed     *bool
	Side         *models.PositionSide
	OpenedAfter  *time.Time
	OpenedBefore *time.Time
	ClosedAfter  *time.Time
	ClosedBefore *time.Time
}

// PositionServicer defines the contract for the trading diary.
type PositionServicer interface {
	CreatePosition(userID string, input PositionInput) (*models.Position, error)
	GetPositionByID(userID, positionID string) (*models.Position, error)
	ListPositions(userID string, filter PositionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Position], error)
	UpdatePosition(userID, positionID string, update PositionUpdate) (*models.Position, error)
	ClosePosition(userID, positionID string, closedAt time.Time) (*models.Position, error)
	DeletePosition(userID, positionID string) error
	AddComment(userID, positionID, comment, chartLink string) (*models.PositionComment, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
