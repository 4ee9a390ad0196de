package oracle

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"polar-bridge-relayer/internal/domain/oracle"
)

// Cached wraps a Source with a per-asset TTL cache. A fresh hit is served
// as-is; an upstream failure serves the last known value marked stale; with
// nothing cached at all the caller gets ErrPriceUnavailable and must treat
// it as a transient block. Nothing shares the in-memory map; redis is the
// restart-surviving fallback tier.
type Cached struct {
	src Source
	ttl time.Duration
	rdb *redis.Client // optional

	mu      sync.Mutex
	entries map[string]oracle.Price

	nowFn func() time.Time
}

func NewCached(src Source, ttl time.Duration, rdb *redis.Client) *Cached {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{
		src:     src,
		ttl:     ttl,
		rdb:     rdb,
		entries: map[string]oracle.Price{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock; tests only.
func (c *Cached) SetNow(fn func() time.Time) { c.nowFn = fn }

func (c *Cached) GetPrice(ctx context.Context, asset string) (oracle.Price, error) {
	asset = strings.ToUpper(asset)
	now := c.nowFn()

	c.mu.Lock()
	cached, ok := c.entries[asset]
	c.mu.Unlock()
	if ok && now.Sub(cached.AsOf) < c.ttl {
		return cached, nil
	}

	fresh, err := c.src.Fetch(ctx, asset)
	if err == nil {
		fresh.Asset = asset
		fresh.Stale = false
		c.mu.Lock()
		c.entries[asset] = fresh
		c.mu.Unlock()
		c.persist(ctx, fresh)
		return fresh, nil
	}
	log.Printf("oracle: fetch %s via %s: %v", asset, c.src.Name(), err)

	// serve the stale in-memory value before touching redis
	if ok {
		cached.Stale = true
		return cached, nil
	}
	if stored, found := c.restore(ctx, asset); found {
		stored.Stale = true
		c.mu.Lock()
		c.entries[asset] = stored
		c.mu.Unlock()
		return stored, nil
	}
	return oracle.Price{}, oracle.ErrPriceUnavailable
}

type storedPrice struct {
	Value string    `json:"value"`
	AsOf  time.Time `json:"as_of"`
}

func priceKey(asset string) string { return "oracle:price:" + strings.ToLower(asset) }

func (c *Cached) persist(ctx context.Context, p oracle.Price) {
	if c.rdb == nil {
		return
	}
	payload, _ := json.Marshal(storedPrice{Value: p.Value.String(), AsOf: p.AsOf})
	// kept well past the TTL on purpose: it is the stale fallback tier
	if err := c.rdb.Set(ctx, priceKey(p.Asset), payload, 24*time.Hour).Err(); err != nil {
		log.Printf("oracle: persist %s: %v", p.Asset, err)
	}
}

func (c *Cached) restore(ctx context.Context, asset string) (oracle.Price, bool) {
	if c.rdb == nil {
		return oracle.Price{}, false
	}
	raw, err := c.rdb.Get(ctx, priceKey(asset)).Bytes()
	if err != nil {
		return oracle.Price{}, false
	}
	var sp storedPrice
	if err := json.Unmarshal(raw, &sp); err != nil {
		return oracle.Price{}, false
	}
	value, err := decimal.NewFromString(sp.Value)
	if err != nil || value.Sign() <= 0 {
		return oracle.Price{}, false
	}
	return oracle.Price{Asset: asset, Value: value, AsOf: sp.AsOf}, true
}
