package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradi/internal/models"
	"tradi/internal/pagination"
	"tradi/internal/services"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultNamespace = "catalogue"
	opTimeout        = 250 * time.Millisecond
)

// CatalogueCache decorates a CatalogueServicer with Redis caching of the
// trading-pair listings. Entries live under a generation number; bumping the
// generation orphans every cached listing at once and they expire on their TTL.
//
// Redis is best effort: any Redis failure falls through to the inner service.
type CatalogueCache struct {
	inner     services.CatalogueServicer
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	log       *zap.SugaredLogger
}

// NewCatalogueCache wraps inner. A nil rdb disables caching.
func NewCatalogueCache(rdb *redis.Client, ttl time.Duration, inner services.CatalogueServicer, log *zap.SugaredLogger) *CatalogueCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CatalogueCache{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: defaultNamespace,
		log:       log,
	}
}

func (c *CatalogueCache) generationKey() string {
	return c.namespace + ":gen"
}

func (c *CatalogueCache) entryKey(gen int64, kind string, params interface{}) string {
	raw, _ := json.Marshal(params)
	sum := sha1.Sum(raw)
	return fmt.Sprintf("%s:%d:%s:%s", c.namespace, gen, kind, hex.EncodeToString(sum[:8]))
}

func (c *CatalogueCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Invalidate drops every cached listing by bumping the generation.
func (c *CatalogueCache) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Incr(ctx, c.generationKey()).Err()
}

func (c *CatalogueCache) invalidate() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.Invalidate(ctx); err != nil {
		c.log.Warnw("catalogue cache invalidation failed", "error", err)
	}
}

// cached returns the stored result for kind and params, or calls load and stores what it returns.
func cached[T any](c *CatalogueCache, kind string, params interface{}, load func() (T, error)) (T, error) {
	if c.rdb == nil {
		return load()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	gen, err := c.generation(ctx)
	if err != nil {
		c.log.Warnw("catalogue cache unavailable", "error", err)
		return load()
	}
	key := c.entryKey(gen, kind, params)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out T
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := load()
	if err != nil {
		return out, err
	}
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

type pairListParams struct {
	Filter services.TradingPairFilter `json:"filter"`
	Page   pagination.PageRequest     `json:"page"`
}

// ListTradingPairs serves the listing from Redis when present.
func (c *CatalogueCache) ListTradingPairs(filter services.TradingPairFilter, page pagination.PageRequest) (*pagination.PageResponse[models.TradingPair], error) {
	page.Defaults()
	return cached(c, "pairs", pairListParams{filter, page}, func() (*pagination.PageResponse[models.TradingPair], error) {
		return c.inner.ListTradingPairs(filter, page)
	})
}

// GroupTradingPairs serves the grouped listing from Redis when present.
func (c *CatalogueCache) GroupTradingPairs(filter services.TradingPairFilter) (services.GroupedTradingPairs, error) {
	return cached(c, "grouped", filter, func() (services.GroupedTradingPairs, error) {
		return c.inner.GroupTradingPairs(filter)
	})
}

func (c *CatalogueCache) CreateAsset(ticker string, class models.AssetClass) (*models.FinancialAsset, error) {
	asset, err := c.inner.CreateAsset(ticker, class)
	if err == nil {
		c.invalidate()
	}
	return asset, err
}

func (c *CatalogueCache) GetAssetByID(id string) (*models.FinancialAsset, error) {
	return c.inner.GetAssetByID(id)
}

func (c *CatalogueCache) ListAssets(filter services.AssetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.FinancialAsset], error) {
	return c.inner.ListAssets(filter, page)
}

func (c *CatalogueCache) UpdateAsset(id string, update services.AssetUpdate) (*models.FinancialAsset, error) {
	asset, err := c.inner.UpdateAsset(id, update)
	if err == nil {
		c.invalidate()
	}
	return asset, err
}

func (c *CatalogueCache) CreateTradingPair(baseAssetID, quoteAssetID string) (*models.TradingPair, error) {
	pair, err := c.inner.CreateTradingPair(baseAssetID, quoteAssetID)
	if err == nil {
		c.invalidate()
	}
	return pair, err
}

func (c *CatalogueCache) GetTradingPairByID(id string) (*models.TradingPair, error) {
	return c.inner.GetTradingPairByID(id)
}

func (c *CatalogueCache) GetTradingPairBySymbol(symbol string, market models.MarketType, exchange models.Exchange) (*models.TradingPair, error) {
	return c.inner.GetTradingPairBySymbol(symbol, market, exchange)
}

var _ services.CatalogueServicer = (*CatalogueCache)(nil)
