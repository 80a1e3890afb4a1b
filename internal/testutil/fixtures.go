package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"tradi/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CryptoFutures is the asset class the catalogue sync maintains.
var CryptoFutures = models.AssetClass{
	Type:     models.AssetTypeCryptocurrency,
	Market:   models.MarketFutures,
	Exchange: models.ExchangeBybit,
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAsset creates a crypto futures asset on Bybit.
func CreateTestAsset(t *testing.T, db *gorm.DB, ticker string) *models.FinancialAsset {
	t.Helper()
	return CreateTestAssetOfClass(t, db, ticker, CryptoFutures)
}

// CreateTestAssetOfClass creates an asset of the given class.
func CreateTestAssetOfClass(t *testing.T, db *gorm.DB, ticker string, class models.AssetClass) *models.FinancialAsset {
	t.Helper()

	asset := models.NewFinancialAsset(ticker, class)
	if err := db.Create(&asset).Error; err != nil {
		t.Fatalf("failed to create test asset %s: %v", ticker, err)
	}
	return &asset
}

// CreateTestTradingPair creates a traded pair from two existing assets.
func CreateTestTradingPair(t *testing.T, db *gorm.DB, base, quote *models.FinancialAsset) *models.TradingPair {
	t.Helper()

	pair := models.NewTradingPair(*base, *quote)
	if err := db.Omit("BaseAsset", "QuoteAsset").Create(&pair).Error; err != nil {
		t.Fatalf("failed to create test trading pair: %v", err)
	}
	return &pair
}

// CreateTestPairForTickers creates both assets and the pair between them.
func CreateTestPairForTickers(t *testing.T, db *gorm.DB, baseTicker, quoteTicker string) *models.TradingPair {
	t.Helper()
	base := CreateTestAsset(t, db, baseTicker)
	quote := findOrCreateAsset(t, db, quoteTicker)
	return CreateTestTradingPair(t, db, base, quote)
}

func findOrCreateAsset(t *testing.T, db *gorm.DB, ticker string) *models.FinancialAsset {
	t.Helper()

	var asset models.FinancialAsset
	err := db.Where(&models.FinancialAsset{
		Ticker:   ticker,
		Type:     CryptoFutures.Type,
		Market:   CryptoFutures.Market,
		Exchange: CryptoFutures.Exchange,
	}).First(&asset).Error
	if err == nil {
		return &asset
	}
	return CreateTestAsset(t, db, ticker)
}

// CreateTestPosition creates an open long position of size 10 at 100 with leverage 5.
func CreateTestPosition(t *testing.T, db *gorm.DB, userID, pairID string) *models.Position {
	t.Helper()

	position := &models.Position{
		UserID:        userID,
		TradingPairID: pairID,
		Side:          models.SideLong,
		Size:          decimal.NewFromInt(10),
		EntryPrice:    decimal.NewFromInt(100),
		Leverage:      decimal.NewNullDecimal(decimal.NewFromInt(5)),
		OpenedAt:      time.Now().UTC().Add(-time.Hour),
	}
	if err := db.Omit("TradingPair").Create(position).Error; err != nil {
		t.Fatalf("failed to create test position: %v", err)
	}
	return position
}

// CountRows returns the number of rows of model.
func CountRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()

	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}
