package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/jonwraymond/authcache/cache"
)

// DatabaseChecker verifies the origin database answers pings.
type DatabaseChecker struct {
	db *gorm.DB
}

// NewDatabaseChecker creates a checker for the given gorm handle.
func NewDatabaseChecker(db *gorm.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

// Name returns the name of this checker.
func (c *DatabaseChecker) Name() string { return "database" }

// Check pings the underlying connection pool.
func (c *DatabaseChecker) Check(ctx context.Context) Result {
	if c.db == nil {
		return Unhealthy("database not configured", ErrCheckFailed)
	}

	sqlDB, err := c.db.DB()
	if err != nil {
		return Unhealthy("database handle unavailable", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return Unhealthy("database ping failed", err)
	}

	stats := sqlDB.Stats()
	return Healthy("database reachable").WithDetails(map[string]any{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	})
}

// EdgeChecker verifies the shared edge tier endpoint is reachable. The
// local tier keeps serving when the edge is down, so an unreachable
// edge degrades the service rather than failing it.
type EdgeChecker struct {
	endpoint string
	client   *http.Client
}

// NewEdgeChecker creates a checker that pings the edge endpoint.
func NewEdgeChecker(endpoint string, timeout time.Duration) *EdgeChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &EdgeChecker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns the name of this checker.
func (c *EdgeChecker) Name() string { return "edge" }

// Check issues a GET against the endpoint root. Any HTTP response below
// 500 counts as reachable.
func (c *EdgeChecker) Check(ctx context.Context) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return Unhealthy("invalid edge endpoint", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Degraded(fmt.Sprintf("edge unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Degraded(fmt.Sprintf("edge returned %d", resp.StatusCode))
	}
	return Healthy("edge reachable").WithDetails(map[string]any{
		"status_code": resp.StatusCode,
	})
}

// CacheChecker verifies the local cache tier by writing and reading a
// probe entry in a reserved namespace.
type CacheChecker struct {
	tier cache.Tier
}

// NewCacheChecker creates a checker for the given tier.
func NewCacheChecker(tier cache.Tier) *CacheChecker {
	return &CacheChecker{tier: tier}
}

// Name returns the name of this checker.
func (c *CacheChecker) Name() string { return "cache" }

// Check round-trips a probe value through the tier.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if c.tier == nil {
		return Unhealthy("cache tier not configured", ErrCheckFailed)
	}

	entry := cache.Entry{Value: []byte("ok"), StoredAt: time.Now()}
	if err := c.tier.Set(ctx, "health", "probe", entry); err != nil {
		return Unhealthy("cache write failed", err)
	}
	if res := c.tier.Get(ctx, "health", "probe"); res.Status == cache.StatusMiss {
		return Unhealthy("cache probe not readable after write", ErrCheckFailed)
	}
	return Healthy("cache round-trip ok")
}
