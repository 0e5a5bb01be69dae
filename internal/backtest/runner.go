package backtest

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/quantex/qx-algo/internal/ranges"
	"github.com/quantex/qx-algo/internal/session"
	"github.com/quantex/qx-algo/internal/signal"
	"github.com/quantex/qx-algo/pkg/config"
	"github.com/quantex/qx-algo/pkg/model"
)

// maxProfitPerTrade caps simulated profit per trade for challenge compliance.
const maxProfitPerTrade = 1300.0

// lookaheadBars bounds the exit simulation (~8 hours of 5-minute bars).
const lookaheadBars = 100

// entryCutoffs: a confirmation whose retrace has not filled by this ET time
// is skipped.
var entryCutoffs = map[model.Session]session.TimeOfDay{
	model.SessionODR: {Hour: 6, Minute: 0},
	model.SessionRDR: {Hour: 14, Minute: 0},
	model.SessionADR: {Hour: 23, Minute: 0},
}

// Result is the outcome of one simulated session trade.
type Result struct {
	Date       string
	Session    model.Session
	Bias       model.Bias
	ConfTime   time.Time
	Entry      float64
	Stop       float64
	TakeProfit float64
	Contracts  int
	Filled     bool
	ExitReason string
	PnL        float64
}

// Report aggregates a backtest run.
type Report struct {
	Results      []Result
	Trades       int
	NoEntry      int
	Wins         int
	Losses       int
	TotalPnL     float64
	FinalBalance float64
}

// Runner replays bars through the range/confirmation/entry pipeline.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRunner creates a backtest runner.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Run walks every ET date in the bar set and simulates at most one trade per
// session per day, compounding the virtual balance.
func (r *Runner) Run(bars []model.Bar) (*Report, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars to backtest")
	}

	report := &Report{FinalBalance: r.cfg.VirtualBalance}
	balance := r.cfg.VirtualBalance

	for _, date := range tradingDates(bars) {
		for _, s := range model.Sessions {
			res, ok := r.simulateSession(bars, s, date, balance)
			if !ok {
				continue
			}
			report.Results = append(report.Results, res)
			if !res.Filled {
				report.NoEntry++
				continue
			}
			report.Trades++
			report.TotalPnL += res.PnL
			balance += res.PnL
			if res.PnL > 0 {
				report.Wins++
			} else {
				report.Losses++
			}
		}
	}
	report.FinalBalance = balance

	r.logger.Info("backtest.complete",
		zap.Int("trades", report.Trades),
		zap.Int("wins", report.Wins),
		zap.Int("losses", report.Losses),
		zap.Int("no_entry", report.NoEntry),
		zap.Float64("total_pnl", report.TotalPnL),
		zap.Float64("final_balance", report.FinalBalance))
	return report, nil
}

func (r *Runner) simulateSession(bars []model.Bar, s model.Session, date time.Time, balance float64) (Result, bool) {
	b, err := ranges.Compute(bars, s, date)
	if err != nil {
		return Result{}, false
	}
	conf, ok := signal.Detect(bars, b, date)
	if !ok {
		return Result{}, false
	}

	idrRange := b.IDRRange()
	mid := b.IDRMidpoint()

	var entry, stop, tp float64
	if conf.Bias == model.BiasBullish {
		entry = b.IDRHigh - r.cfg.EntryRetraceFraction*idrRange
		stop = mid - r.cfg.StopBufferPoints
		tp = b.IDRHigh + b.IDRStd
	} else {
		entry = b.IDRLow + r.cfg.EntryRetraceFraction*idrRange
		stop = mid + r.cfg.StopBufferPoints
		tp = b.IDRLow - b.IDRStd
	}

	res := Result{
		Date:       date.Format("2006-01-02"),
		Session:    s,
		Bias:       conf.Bias,
		ConfTime:   conf.Time,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: tp,
	}

	fillIdx, filled := r.findFill(bars, conf, entry, s, date)
	if !filled {
		res.ExitReason = "no entry"
		return res, true
	}

	contracts := r.positionSize(entry, stop, balance)
	res.Contracts = contracts
	res.Filled = true
	res.PnL, res.ExitReason = r.simulateExit(bars, fillIdx, conf.Bias, entry, stop, tp, contracts)
	return res, true
}

// findFill scans the bars after the confirmation for the retrace fill. Fills
// are restricted to the session's formation date, up to the entry cutoff (for
// ADR that is 23:00 on the formation evening; bars past midnight never fill).
func (r *Runner) findFill(bars []model.Bar, conf model.Confirmation, entry float64, s model.Session, date time.Time) (int, bool) {
	cutoff := entryCutoffs[s]
	day := date.Format("2006-01-02")
	for i, bar := range bars {
		if !bar.Start.After(conf.Time) {
			continue
		}
		et := bar.Start.In(session.Eastern())
		if et.Format("2006-01-02") != day {
			break
		}
		if et.Hour()*60+et.Minute() > cutoff.Minutes() {
			break
		}
		if conf.Bias == model.BiasBullish && bar.Close <= entry {
			return i, true
		}
		if conf.Bias == model.BiasBearish && bar.Close >= entry {
			return i, true
		}
	}
	return 0, false
}

// simulateExit walks forward from the fill, applying the stop, the partial
// target (remainder assumed to trail out at breakeven) and the profit cap.
func (r *Runner) simulateExit(bars []model.Bar, fillIdx int, bias model.Bias, entry, stop, tp float64, contracts int) (float64, string) {
	partial := int(float64(contracts) * r.cfg.PartialExitFraction)
	end := fillIdx + 1 + lookaheadBars
	if end > len(bars) {
		end = len(bars)
	}
	window := bars[fillIdx+1 : end]
	if len(window) == 0 {
		return 0, "no data"
	}

	for _, bar := range window {
		if bias == model.BiasBullish {
			if profit := (bar.High - entry) * float64(contracts) * r.cfg.PointValue; profit >= maxProfitPerTrade {
				return maxProfitPerTrade, "profit cap"
			}
			if bar.Low <= stop {
				return (stop - entry) * float64(contracts) * r.cfg.PointValue, fmt.Sprintf("stop at %.2f", stop)
			}
			if bar.High >= tp {
				pnl := (tp - entry) * float64(partial) * r.cfg.PointValue
				return math.Min(pnl, maxProfitPerTrade), fmt.Sprintf("target at %.2f", tp)
			}
		} else {
			if profit := (entry - bar.Low) * float64(contracts) * r.cfg.PointValue; profit >= maxProfitPerTrade {
				return maxProfitPerTrade, "profit cap"
			}
			if bar.High >= stop {
				return (entry - stop) * float64(contracts) * r.cfg.PointValue, fmt.Sprintf("stop at %.2f", stop)
			}
			if bar.Low <= tp {
				pnl := (entry - tp) * float64(partial) * r.cfg.PointValue
				return math.Min(pnl, maxProfitPerTrade), fmt.Sprintf("target at %.2f", tp)
			}
		}
	}

	last := window[len(window)-1].Close
	var pnl float64
	if bias == model.BiasBullish {
		pnl = (last - entry) * float64(contracts) * r.cfg.PointValue
	} else {
		pnl = (entry - last) * float64(contracts) * r.cfg.PointValue
	}
	return math.Min(pnl, maxProfitPerTrade), fmt.Sprintf("time limit at %.2f", last)
}

func (r *Runner) positionSize(entry, stop, balance float64) int {
	ticks := math.Abs(entry-stop) / r.cfg.TickSize
	riskPerContract := ticks * r.cfg.TickValue
	riskDollars := math.Max(0, balance*r.cfg.RiskFraction)
	if riskPerContract <= 0 {
		return 1
	}
	contracts := int(riskDollars / riskPerContract)
	if contracts < 1 {
		contracts = 1
	}
	return contracts
}

// tradingDates returns the distinct ET dates covered by the bars, in order.
func tradingDates(bars []model.Bar) []time.Time {
	var dates []time.Time
	seen := make(map[string]struct{})
	for _, b := range bars {
		et := b.Start.In(session.Eastern())
		key := et.Format("2006-01-02")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, session.Eastern()))
	}
	return dates
}
