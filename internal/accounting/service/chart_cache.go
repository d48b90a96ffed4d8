package service

import (
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/cache"
	"github.com/smallbiznis/caskr/internal/clock"
)

// ChartCache holds fetched charts of accounts per company. It is shared by the
// chart service and the auth service, which drops entries on reconnect.
//
// Every invalidation bumps the company's generation; a fetch started under an
// older generation never populates the cache.
type ChartCache struct {
	entries cache.Cache[string, *domain.ChartOfAccounts]

	mu          sync.Mutex
	generations map[string]uint64
}

func NewChartCache(clk clock.Clock) *ChartCache {
	return &ChartCache{
		entries:     cache.NewTTLCacheWithClock[string, *domain.ChartOfAccounts](clk),
		generations: map[string]uint64{},
	}
}

func (c *ChartCache) key(companyID snowflake.ID) string {
	return cache.Key("chart_of_accounts", companyID.String())
}

func (c *ChartCache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

// flightKey separates in-flight fetches of different generations.
func (c *ChartCache) flightKey(key string, gen uint64) string {
	return key + "#" + strconv.FormatUint(gen, 10)
}

// setIfCurrent stores chart unless the company was invalidated since gen.
func (c *ChartCache) setIfCurrent(key string, gen uint64, chart *domain.ChartOfAccounts, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key] != gen {
		return false
	}
	c.entries.Set(key, chart, ttl)
	return true
}

func (c *ChartCache) Invalidate(companyID snowflake.ID) {
	if c == nil {
		return
	}
	key := c.key(companyID)
	c.mu.Lock()
	c.generations[key]++
	c.entries.Delete(key)
	c.mu.Unlock()
}
