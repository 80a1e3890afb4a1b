package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tradi/internal/errors"
	"tradi/internal/models"
	"tradi/internal/pagination"
)

// positionService handles the trading diary.
type positionService struct {
	db        *gorm.DB
	catalogue CatalogueServicer
}

// NewPositionService creates a new PositionServicer.
func NewPositionService(db *gorm.DB, catalogue CatalogueServicer) PositionServicer {
	return &positionService{
		db:        db,
		catalogue: catalogue,
	}
}

// CreatePosition opens a position on the pair identified by symbol, market and exchange.
func (s *positionService) CreatePosition(userID string, input PositionInput) (*models.Position, error) {
	if strings.TrimSpace(input.Symbol) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "symbol is required")
	}

	pair, err := s.catalogue.GetTradingPairBySymbol(input.Symbol, input.Market, input.Exchange)
	if err != nil {
		return nil, err
	}

	openedAt := input.OpenedAt
	if openedAt.IsZero() {
		openedAt = time.Now().UTC()
	}

	position := &models.Position{
		UserID:           userID,
		TradingPairID:    pair.ID,
		IsClosed:         input.IsClosed || input.ClosedAt != nil,
		Side:             input.Side,
		Size:             input.Size,
		EntryPrice:       input.EntryPrice,
		Leverage:         input.Leverage,
		LiqPrice:         input.LiqPrice,
		TakeProfit:       input.TakeProfit,
		StopLoss:         input.StopLoss,
		TrailingStop:     input.TrailingStop,
		TrailingStopType: input.TrailingStopType,
		OpenedAt:         openedAt,
		ClosedAt:         input.ClosedAt,
	}
	if position.IsClosed && position.ClosedAt == nil {
		now := time.Now().UTC()
		position.ClosedAt = &now
	}

	if err := s.db.Omit(clause.Associations).Create(position).Error; err != nil {
		return nil, dbError(err, nil)
	}
	position.TradingPair = *pair
	return position, nil
}

func (s *positionService) find(db *gorm.DB, userID, positionID string, withComments bool) (*models.Position, error) {
	q := db.Preload("TradingPair.BaseAsset").Preload("TradingPair.QuoteAsset")
	if withComments {
		q = q.Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		})
	}

	var position models.Position
	if err := q.Where("id = ? AND user_id = ?", positionID, userID).First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPositionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &position, nil
}

// GetPositionByID returns one of the user's positions with its comments, newest first.
func (s *positionService) GetPositionByID(userID, positionID string) (*models.Position, error) {
	return s.find(s.db, userID, positionID, true)
}

// ListPositions returns the user's positions, newest first.
func (s *positionService) ListPositions(userID string, filter PositionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Position], error) {
	page.Defaults()

	q := s.db.Model(&models.Position{}).Where("positions.user_id = ?", userID)
	q = applyPositionFilters(q, filter).Session(&gorm.Session{})

	var totalItems int64
	if err := q.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var positions []models.Position
	if err := q.Preload("TradingPair.BaseAsset").Preload("TradingPair.QuoteAsset").
		Scopes(pagination.Paginate(page)).
		Order("positions.opened_at DESC").
		Find(&positions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(positions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyPositionFilters(q *gorm.DB, f PositionFilter) *gorm.DB {
	if f.BaseTicker != "" || f.QuoteTicker != "" || f.Market != nil || f.Traded != nil {
		q = q.Joins("JOIN trading_pairs tp ON tp.id = positions.trading_pair_id").
			Joins("JOIN financial_assets ba ON ba.id = tp.base_asset_id").
			Joins("JOIN financial_assets qa ON qa.id = tp.quote_asset_id")
		if f.BaseTicker != "" {
			q = q.Where("ba.ticker = ?", f.BaseTicker)
		}
		if f.QuoteTicker != "" {
			q = q.Where("qa.ticker = ?", f.QuoteTicker)
		}
		if f.Market != nil {
			q = q.Where("ba.market = ?", *f.Market)
		}
		if f.Traded != nil {
			q = q.Where("tp.traded = ?", *f.Traded)
		}
	}
	if f.IsClosed != nil {
		q = q.Where("positions.is_closed = ?", *f.IsClosed)
	}
	if f.Side != nil {
		q = q.Where("positions.side = ?", *f.Side)
	}
	if f.OpenedAfter != nil {
		q = q.Where("positions.opened_at > ?", *f.OpenedAfter)
	}
	if f.OpenedBefore != nil {
		q = q.Where("positions.opened_at < ?", *f.OpenedBefore)
	}
	if f.ClosedAfter != nil {
		q = q.Where("positions.closed_at > ?", *f.ClosedAfter)
	}
	if f.ClosedBefore != nil {
		q = q.Where("positions.closed_at < ?", *f.ClosedBefore)
	}
	return q
}

// UpdatePosition applies a partial update to one of the user's positions.
func (s *positionService) UpdatePosition(userID, positionID string, update PositionUpdate) (*models.Position, error) {
	var position *models.Position
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		position, err = s.find(tx, userID, positionID, false)
		if err != nil {
			return err
		}

		if update.Side != nil {
			position.Side = *update.Side
		}
		if update.Size != nil {
			position.Size = *update.Size
		}
		if update.EntryPrice != nil {
			position.EntryPrice = *update.EntryPrice
		}
		if update.Leverage != nil {
			position.Leverage = *update.Leverage
		}
		if update.LiqPrice != nil {
			position.LiqPrice = *update.LiqPrice
		}
		if update.TakeProfit != nil {
			position.TakeProfit = *update.TakeProfit
		}
		if update.StopLoss != nil {
			position.StopLoss = *update.StopLoss
		}
		if update.TrailingStop != nil {
			position.TrailingStop = *update.TrailingStop
		}
		if update.TrailingStopType != nil {
			position.TrailingStopType = update.TrailingStopType
		}
		if update.OpenedAt != nil {
			position.OpenedAt = *update.OpenedAt
		}

		if err := tx.Omit(clause.Associations).Save(position).Error; err != nil {
			return dbError(err, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return position, nil
}

// ClosePosition marks one of the user's positions closed at closedAt (now when zero).
func (s *positionService) ClosePosition(userID, positionID string, closedAt time.Time) (*models.Position, error) {
	position, err := s.find(s.db, userID, positionID, false)
	if err != nil {
		return nil, err
	}
	if position.IsClosed {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "position is already closed")
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	position.IsClosed = true
	position.ClosedAt = &closedAt
	if err := s.db.Omit(clause.Associations).Save(position).Error; err != nil {
		return nil, dbError(err, nil)
	}
	return position, nil
}

// DeletePosition removes one of the user's positions and its comments.
func (s *positionService) DeletePosition(userID, positionID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		position, err := s.find(tx, userID, positionID, false)
		if err != nil {
			return err
		}
		if err := tx.Where("position_id = ?", position.ID).Delete(&models.PositionComment{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(&models.Position{}, "id = ?", position.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// AddComment attaches a comment to one of the user's positions.
func (s *positionService) AddComment(userID, positionID, comment, chartLink string) (*models.PositionComment, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "comment is required")
	}
	if _, err := s.find(s.db, userID, positionID, false); err != nil {
		return nil, err
	}

	entry := &models.PositionComment{
		PositionID: positionID,
		Comment:    comment,
		ChartLink:  chartLink,
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return entry, nil
}
