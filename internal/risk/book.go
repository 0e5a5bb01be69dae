// Package risk tracks daily P&L, per-session trade slots and the streak-based
// risk ladder, and sizes positions off a virtual balance.
package risk

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/internal/metrics"
	"github.com/quantex/qx-algo/pkg/model"
)

// Risk ladder steps. The ladder reacts to streaks but sizing itself uses the
// flat RiskFraction of the virtual balance.
const (
	riskBase      = 0.015
	riskHotStreak = 0.02
	riskAfterLoss = 0.01
)

// Config holds the account and instrument parameters the book sizes with.
type Config struct {
	VirtualBalance      float64
	MaxDailyLoss        float64
	MaxTradesPerSession int
	RiskFraction        float64
	TickSize            float64
	TickValue           float64
	PointValue          float64
}

// Book is the daily risk ledger. All methods are safe for concurrent use.
type Book struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger

	dailyPnL       decimal.Decimal
	virtualBalance decimal.Decimal
	sessionTrades  map[model.Session]int
	sessionPnL     map[model.Session]decimal.Decimal

	consecutiveWins   int
	consecutiveLosses int
	riskPercent       float64
	wins              int
	losses            int
}

// NewBook creates a ledger starting from the configured virtual balance.
func NewBook(cfg Config, log *zap.Logger) *Book {
	b := &Book{cfg: cfg, log: log}
	b.resetLocked()
	return b
}

func (b *Book) resetLocked() {
	b.dailyPnL = decimal.Zero
	b.virtualBalance = decimal.NewFromFloat(b.cfg.VirtualBalance)
	b.sessionTrades = make(map[model.Session]int)
	b.sessionPnL = make(map[model.Session]decimal.Decimal)
	b.consecutiveWins = 0
	b.consecutiveLosses = 0
	b.riskPercent = riskBase
	b.wins = 0
	b.losses = 0
}

// ResetDaily clears all counters at the ET day boundary.
func (b *Book) ResetDaily() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	b.log.Info("risk.daily_reset")
}

// CanTrade reports whether a new trade may open in the session. Blocked when
// the daily loss limit is breached or the session's slots are used up.
func (b *Book) CanTrade(s model.Session) (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	maxLoss := decimal.NewFromFloat(b.cfg.MaxDailyLoss)
	if b.dailyPnL.LessThanOrEqual(maxLoss.Neg()) {
		return false, "max daily loss reached"
	}
	if b.sessionTrades[s] >= b.cfg.MaxTradesPerSession {
		return false, "max trades for session reached"
	}
	return true, ""
}

// ConsumeSlot counts a trade attempt against the session's allowance. Failed
// and errored orders still consume a slot.
func (b *Book) ConsumeSlot(s model.Session) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionTrades[s]++
	return b.sessionTrades[s]
}

// ApplyPnL books a realized P&L amount against the day, the session and the
// virtual balance, and advances the risk ladder.
func (b *Book) ApplyPnL(s model.Session, pnl decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dailyPnL = b.dailyPnL.Add(pnl)
	b.virtualBalance = b.virtualBalance.Add(pnl)
	b.sessionPnL[s] = b.sessionPnL[s].Add(pnl)

	if pnl.IsPositive() {
		b.wins++
		b.consecutiveWins++
		b.consecutiveLosses = 0
		switch {
		case b.consecutiveWins == 2:
			b.riskPercent = riskHotStreak
		case b.consecutiveWins > 2:
			b.riskPercent = riskBase
		}
	} else {
		b.losses++
		b.consecutiveLosses++
		b.consecutiveWins = 0
		b.riskPercent = riskAfterLoss
	}

	dailyF, _ := b.dailyPnL.Float64()
	metrics.DailyPnL.Set(dailyF)

	b.log.Info("risk.pnl_applied",
		zap.String("session", s.Upper()),
		zap.String("pnl", pnl.StringFixed(2)),
		zap.String("daily_pnl", b.dailyPnL.StringFixed(2)),
		zap.String("virtual_balance", b.virtualBalance.StringFixed(2)),
		zap.Int("consecutive_wins", b.consecutiveWins),
		zap.Int("consecutive_losses", b.consecutiveLosses),
		zap.Float64("risk_percent", b.riskPercent))
}

// Snapshot is a point-in-time view of the ledger for the dashboard.
type Snapshot struct {
	DailyPnL       decimal.Decimal
	VirtualBalance decimal.Decimal
	Wins           int
	Losses         int
	RiskPercent    float64
	SessionTrades  map[model.Session]int
}

// Snapshot returns a copy of the current state.
func (b *Book) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	trades := make(map[model.Session]int, len(b.sessionTrades))
	for k, v := range b.sessionTrades {
		trades[k] = v
	}
	return Snapshot{
		DailyPnL:       b.dailyPnL,
		VirtualBalance: b.virtualBalance,
		Wins:           b.wins,
		Losses:         b.losses,
		RiskPercent:    b.riskPercent,
		SessionTrades:  trades,
	}
}

// SessionTrades returns how many slots the session has used today.
func (b *Book) SessionTrades(s model.Session) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionTrades[s]
}
