package ranges

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantex/qx-algo/pkg/model"
)

// Cache memoizes computed boundaries per (session, session-date). Boundaries
// are immutable once the range window has closed, so compute-once is safe for
// the rest of the day.
type Cache struct {
	mu     sync.Mutex
	bounds map[string]model.RangeBounds
	logger *zap.Logger
}

// NewCache creates an empty boundary cache.
func NewCache(logger *zap.Logger) *Cache {
	return &Cache{
		bounds: make(map[string]model.RangeBounds),
		logger: logger,
	}
}

func key(s model.Session, date time.Time) string {
	return string(s) + ":" + date.Format("2006-01-02")
}

// GetOrCompute returns cached boundaries for (session, date), computing them
// from bars on first use.
func (c *Cache) GetOrCompute(bars []model.Bar, s model.Session, date time.Time) (model.RangeBounds, error) {
	k := key(s, date)

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.bounds[k]; ok {
		return b, nil
	}

	b, err := Compute(bars, s, date)
	if err != nil {
		return model.RangeBounds{}, err
	}
	c.bounds[k] = b
	c.logger.Info("ranges.boundaries_cached",
		zap.String("session", s.Upper()),
		zap.String("date", b.Date),
		zap.Float64("dr_high", b.DRHigh),
		zap.Float64("dr_low", b.DRLow),
		zap.Float64("idr_high", b.IDRHigh),
		zap.Float64("idr_low", b.IDRLow),
		zap.Float64("idr_std", b.IDRStd))
	return b, nil
}

// Get returns cached boundaries without computing.
func (c *Cache) Get(s model.Session, date time.Time) (model.RangeBounds, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bounds[key(s, date)]
	return b, ok
}

// Put seeds the cache, e.g. from boundaries restored out of the store.
func (c *Cache) Put(b model.RangeBounds, date time.Time) {
	c.mu.Lock()
	c.bounds[key(b.Session, date)] = b
	c.mu.Unlock()
}

// Reset clears all cached boundaries (daily reset).
func (c *Cache) Reset() {
	c.mu.Lock()
	c.bounds = make(map[string]model.RangeBounds)
	c.mu.Unlock()
}
