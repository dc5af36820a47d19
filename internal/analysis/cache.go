package analysis

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"riskgraph/internal/domain"
	"riskgraph/internal/metrics"
)

// DefaultCacheEntries caps the number of responses a Cache keeps
const DefaultCacheEntries = 256

type cacheEntry struct {
	value   any
	expires time.Time
}

// Cache wraps an Analyzer and reuses responses for identical requests.
// A request is identified by its kind plus the portfolio and the state of
// every risk node, so toggling any factor produces a fresh call.
type Cache struct {
	next       Analyzer
	ttl        time.Duration
	maxEntries int
	metrics    *metrics.Metrics
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache wraps next with a response cache holding entries for ttl, at
// most DefaultCacheEntries of them
func NewCache(next Analyzer, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		next:       next,
		ttl:        ttl,
		maxEntries: DefaultCacheEntries,
		metrics:    m,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
	}
}

// AnalyzeRisk implements Analyzer
func (c *Cache) AnalyzeRisk(ctx context.Context, assets []domain.Asset, nodes []domain.Node) (*domain.AnalysisResult, error) {
	key := fingerprint("risk", assets, domain.NodeStates(nodes))
	if v, ok := c.get(key); ok {
		return v.(*domain.AnalysisResult).Clone(), nil
	}
	result, err := c.next.AnalyzeRisk(ctx, assets, nodes)
	if err != nil {
		return nil, err
	}
	c.put(key, result.Clone())
	return result, nil
}

// DiagnosePortfolioDrop implements Analyzer
func (c *Cache) DiagnosePortfolioDrop(ctx context.Context, assets []domain.Asset, nodes []domain.Node) (*domain.AnalysisResult, error) {
	key := fingerprint("diagnose", assets, domain.NodeStates(nodes))
	if v, ok := c.get(key); ok {
		return v.(*domain.AnalysisResult).Clone(), nil
	}
	result, err := c.next.DiagnosePortfolioDrop(ctx, assets, nodes)
	if err != nil {
		return nil, err
	}
	c.put(key, result.Clone())
	return result, nil
}

// SuggestHedges implements Analyzer
func (c *Cache) SuggestHedges(ctx context.Context, assets []domain.Asset, result *domain.AnalysisResult) (string, error) {
	key := fingerprint("hedge", assets, result)
	if v, ok := c.get(key); ok {
		return v.(string), nil
	}
	text, err := c.next.SuggestHedges(ctx, assets, result)
	if err != nil {
		return "", err
	}
	c.put(key, text)
	return text, nil
}

// AssetDetails implements Analyzer
func (c *Cache) AssetDetails(ctx context.Context, asset domain.Asset, portfolio []domain.Asset) (*domain.AssetDetails, error) {
	key := fingerprint("details", asset, portfolio)
	if v, ok := c.get(key); ok {
		d := *v.(*domain.AssetDetails)
		d.CorrelationMatrix = append([]domain.Correlation(nil), d.CorrelationMatrix...)
		return &d, nil
	}
	details, err := c.next.AssetDetails(ctx, asset, portfolio)
	if err != nil {
		return nil, err
	}
	stored := *details
	stored.CorrelationMatrix = append([]domain.Correlation(nil), details.CorrelationMatrix...)
	c.put(key, &stored)
	return details, nil
}

// Len returns the number of live entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked()
	return len(c.entries)
}

func (c *Cache) get(key string) (any, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().After(e.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.metrics.ObserveCache(ok)
	return e.value, ok
}

func (c *Cache) put(key string, value any) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked()
	if _, ok := c.entries[key]; !ok && c.maxEntries > 0 {
		for len(c.entries) >= c.maxEntries {
			c.evictOldestLocked()
		}
	}
	c.entries[key] = cacheEntry{value: value, expires: c.now().Add(c.ttl)}
}

func (c *Cache) evictLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
}

// evictOldestLocked drops the entry closest to expiry
func (c *Cache) evictOldestLocked() {
	var (
		oldest string
		first  time.Time
	)
	for k, e := range c.entries {
		if oldest == "" || e.expires.Before(first) {
			oldest, first = k, e.expires
		}
	}
	delete(c.entries, oldest)
}

// fingerprint hashes the JSON form of parts. Map keys are sorted by
// encoding/json so equal inputs always hash equally.
func fingerprint(parts ...any) string {
	h, _ := blake2b.New256(nil)
	enc := json.NewEncoder(h)
	for _, p := range parts {
		_ = enc.Encode(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
