// Package reconciler keeps the local catalogue of futures assets and trading
// pairs in step with the instruments an exchange currently lists.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tradi/internal/exchange/bybit"
	"tradi/internal/models"

	"go.uber.org/zap"
)

// InstrumentSource lists the instruments of a product category.
type InstrumentSource interface {
	ListInstruments(ctx context.Context, category string, limit int) (*bybit.InstrumentsPage, error)
}

// Catalogue is the data access the reconciler needs. Implementations must run
// every call made on the Catalogue handed to InTransaction's callback inside
// one database transaction.
type Catalogue interface {
	InTransaction(ctx context.Context, fn func(tx Catalogue) error) error
	GetOrCreateAsset(ctx context.Context, ticker string, class models.AssetClass) (*models.FinancialAsset, error)
	// DeactivatePairs marks traded pairs quoted in quoteAssetID as untraded
	// unless their base ticker is in listed.
	DeactivatePairs(ctx context.Context, quoteAssetID string, listed []string) (int64, error)
	// ReactivatePairs marks untraded pairs quoted in quoteAssetID as traded
	// when their base ticker is in listed.
	ReactivatePairs(ctx context.Context, quoteAssetID string, listed []string) (int64, error)
	ExistingTickers(ctx context.Context, class models.AssetClass, tickers []string) ([]string, error)
	// CreateAssets inserts the assets, ignoring ones that already exist, and
	// returns the stored rows for every requested asset.
	CreateAssets(ctx context.Context, assets []models.FinancialAsset) ([]models.FinancialAsset, error)
	// CreatePairs inserts the pairs, ignoring ones that already exist.
	CreatePairs(ctx context.Context, pairs []models.TradingPair) (int64, error)
}

// Config controls what the reconciler fetches and how it classifies assets.
type Config struct {
	QuoteCoin    string
	Category     string
	Limit        int
	Exchange     models.Exchange
	FetchTimeout time.Duration
}

// DefaultConfig matches Bybit's USDT-margined linear futures.
func DefaultConfig() Config {
	return Config{
		QuoteCoin:    "USDT",
		Category:     "linear",
		Limit:        1000,
		Exchange:     models.ExchangeBybit,
		FetchTimeout: 30 * time.Second,
	}
}

// Class is the asset class of everything the reconciler creates.
func (c Config) Class() models.AssetClass {
	return models.AssetClass{
		Type:     models.AssetTypeCryptocurrency,
		Market:   models.MarketFutures,
		Exchange: c.Exchange,
	}
}

// Result summarises one reconciliation run.
type Result struct {
	Listed        int           `json:"listed"`
	Deactivated   int64         `json:"deactivated"`
	Reactivated   int64         `json:"reactivated"`
	AssetsCreated int           `json:"assets_created"`
	PairsCreated  int64         `json:"pairs_created"`
	Duration      time.Duration `json:"duration_ns"`
}

// Changed reports whether the run modified the catalogue.
func (r *Result) Changed() bool {
	return r.Deactivated > 0 || r.Reactivated > 0 || r.AssetsCreated > 0 || r.PairsCreated > 0
}

// Reconciler runs catalogue reconciliation.
type Reconciler struct {
	source    InstrumentSource
	catalogue Catalogue
	cfg       Config
	log       *zap.SugaredLogger
}

// New creates a Reconciler. A nil logger disables logging.
func New(source InstrumentSource, catalogue Catalogue, cfg Config, log *zap.SugaredLogger) *Reconciler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Reconciler{source: source, catalogue: catalogue, cfg: cfg, log: log}
}

// Run fetches the current listing and applies it to the catalogue in a single
// transaction. Fetch failures are returned as *bybit.FetchError and leave the
// catalogue untouched.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	instruments, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}

	tickers := ExtractTickers(instruments, r.cfg.QuoteCoin)
	result := &Result{Listed: len(tickers)}
	r.log.Infow("Fetched instrument listing",
		"category", r.cfg.Category, "instruments", len(instruments), "tickers", len(tickers))

	err = r.catalogue.InTransaction(ctx, func(tx Catalogue) error {
		return r.apply(ctx, tx, tickers, result)
	})
	if err != nil {
		return nil, fmt.Errorf("reconciling catalogue: %w", err)
	}

	result.Duration = time.Since(start)
	r.log.Infow("Catalogue reconciled",
		"listed", result.Listed,
		"deactivated", result.Deactivated,
		"reactivated", result.Reactivated,
		"assets_created", result.AssetsCreated,
		"pairs_created", result.PairsCreated,
		"duration", result.Duration)
	return result, nil
}

func (r *Reconciler) fetch(ctx context.Context) ([]bybit.Instrument, error) {
	if r.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.FetchTimeout)
		defer cancel()
	}

	page, err := r.source.ListInstruments(ctx, r.cfg.Category, r.cfg.Limit)
	if err != nil {
		var fetchErr *bybit.FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &bybit.FetchError{Op: "instruments-info", Err: err}
	}
	if len(page.Instruments) == 0 {
		return nil, &bybit.FetchError{Op: "instruments-info", Err: errors.New("empty instrument list")}
	}
	if page.NextPageCursor != "" {
		r.log.Warnw("Instrument listing is paginated; only the first page is reconciled",
			"limit", r.cfg.Limit, "cursor", page.NextPageCursor)
	}
	return page.Instruments, nil
}

func (r *Reconciler) apply(ctx context.Context, tx Catalogue, tickers []string, result *Result) error {
	class := r.cfg.Class()

	quote, err := tx.GetOrCreateAsset(ctx, r.cfg.QuoteCoin, class)
	if err != nil {
		return fmt.Errorf("getting quote asset: %w", err)
	}

	// Deactivation runs before any pair is created so a new pair is never
	// swept up by it.
	if result.Deactivated, err = tx.DeactivatePairs(ctx, quote.ID, tickers); err != nil {
		return fmt.Errorf("deactivating delisted pairs: %w", err)
	}
	if result.Reactivated, err = tx.ReactivatePairs(ctx, quote.ID, tickers); err != nil {
		return fmt.Errorf("reactivating relisted pairs: %w", err)
	}

	existing, err := tx.ExistingTickers(ctx, class, tickers)
	if err != nil {
		return fmt.Errorf("loading existing assets: %w", err)
	}
	newTickers := difference(tickers, existing)
	if len(newTickers) == 0 {
		return nil
	}

	assets := make([]models.FinancialAsset, 0, len(newTickers))
	for _, ticker := range newTickers {
		assets = append(assets, models.NewFinancialAsset(ticker, class))
	}
	created, err := tx.CreateAssets(ctx, assets)
	if err != nil {
		return fmt.Errorf("creating assets: %w", err)
	}
	result.AssetsCreated = len(created)

	pairs := make([]models.TradingPair, 0, len(created))
	for _, base := range created {
		pairs = append(pairs, models.NewTradingPair(base, *quote))
	}
	if result.PairsCreated, err = tx.CreatePairs(ctx, pairs); err != nil {
		return fmt.Errorf("creating trading pairs: %w", err)
	}
	return nil
}

// ExtractTickers returns the sorted, de-duplicated base tickers of the
// instruments quoted in quoteCoin that are not pre-listings. The ticker is the
// symbol with the quote coin suffix removed; symbols that do not end in the
// quote coin, such as dated contracts, are skipped.
func ExtractTickers(instruments []bybit.Instrument, quoteCoin string) []string {
	seen := make(map[string]struct{}, len(instruments))
	tickers := make([]string, 0, len(instruments))
	for _, in := range instruments {
		if in.QuoteCoin != quoteCoin || in.IsPreListing {
			continue
		}
		if !strings.HasSuffix(in.Symbol, quoteCoin) {
			continue
		}
		ticker := in.Symbol[:len(in.Symbol)-len(quoteCoin)]
		if ticker == "" {
			continue
		}
		if _, dup := seen[ticker]; dup {
			continue
		}
		seen[ticker] = struct{}{}
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

func difference(all, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, s := range remove {
		drop[s] = struct{}{}
	}
	out := make([]string, 0, len(all))
	for _, s := range all {
		if _, ok := drop[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
