package repository

import (
	"context"
	"testing"

	"tradi/internal/models"
	"tradi/internal/reconciler"
	"tradi/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateAsset(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	repo := NewCatalogueRepository(db)
	ctx := context.Background()

	first, err := repo.GetOrCreateAsset(ctx, "USDT", testutil.CryptoFutures)
	require.NoError(t, err)
	second, err := repo.GetOrCreateAsset(ctx, "USDT", testutil.CryptoFutures)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, testutil.CountRows(t, db, &models.FinancialAsset{}))

	spot := testutil.CryptoFutures
	spot.Market = models.MarketSpot
	other, err := repo.GetOrCreateAsset(ctx, "USDT", spot)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateAssets_IgnoresConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	repo := NewCatalogueRepository(db)

	btc := testutil.CreateTestAsset(t, db, "BTC")

	stored, err := repo.CreateAssets(context.Background(), []models.FinancialAsset{
		models.NewFinancialAsset("BTC", testutil.CryptoFutures),
		models.NewFinancialAsset("ETH", testutil.CryptoFutures),
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	byTicker := map[string]string{}
	for _, a := range stored {
		byTicker[a.Ticker] = a.ID
	}
	assert.Equal(t, btc.ID, byTicker["BTC"], "conflicting row keeps its stored id")
	assert.NotEmpty(t, byTicker["ETH"])
	assert.EqualValues(t, 2, testutil.CountRows(t, db, &models.FinancialAsset{}))
}

func TestCreatePairs_IgnoresConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	repo := NewCatalogueRepository(db)

	existing := testutil.CreateTestPairForTickers(t, db, "BTC", "USDT")
	eth := testutil.CreateTestAsset(t, db, "ETH")

	n, err := repo.CreatePairs(context.Background(), []models.TradingPair{
		models.NewTradingPair(existing.BaseAsset, existing.QuoteAsset),
		models.NewTradingPair(*eth, existing.QuoteAsset),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.EqualValues(t, 2, testutil.CountRows(t, db, &models.TradingPair{}))
}

func TestCreatePairs_RejectsIncompatible(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	repo := NewCatalogueRepository(db)

	btc := testutil.CreateTestAsset(t, db, "BTC")
	spotUSDT := testutil.CreateTestAssetOfClass(t, db, "USDT", models.AssetClass{
		Type: models.AssetTypeCryptocurrency, Market: models.MarketSpot, Exchange: models.ExchangeBybit,
	})

	_, err := repo.CreatePairs(context.Background(), []models.TradingPair{models.NewTradingPair(*btc, *spotUSDT)})
	testutil.AssertAppError(t, err, "INCOMPATIBLE_ASSETS")
	assert.Zero(t, testutil.CountRows(t, db, &models.TradingPair{}))
}

func TestDeactivateAndReactivatePairs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	repo := NewCatalogueRepository(db)
	ctx := context.Background()

	btc := testutil.CreateTestPairForTickers(t, db, "BTC", "USDT")
	testutil.CreateTestPairForTickers(t, db, "ETH", "USDT")

	n, err := repo.DeactivatePairs(ctx, btc.QuoteAssetID, []string{"BTC"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.DeactivatePairs(ctx, btc.QuoteAssetID, []string{"BTC"})
	require.NoError(t, err)
	assert.Zero(t, n, "already untraded pairs are not counted again")

	n, err = repo.ReactivatePairs(ctx, btc.QuoteAssetID, []string{"BTC", "ETH"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.DeactivatePairs(ctx, btc.QuoteAssetID, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "an empty listing deactivates everything")
}

func TestInTransaction_RollsBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	repo := NewCatalogueRepository(db)

	err := repo.InTransaction(context.Background(), func(tx reconciler.Catalogue) error {
		if _, err := tx.GetOrCreateAsset(context.Background(), "USDT", testutil.CryptoFutures); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, testutil.CountRows(t, db, &models.FinancialAsset{}))
}
