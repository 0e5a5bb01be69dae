// Package trader runs the session-range strategy: poll bars, detect
// confirmations, open positions and manage their exits.
package trader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/internal/journal"
	"github.com/quantex/qx-algo/internal/marketdata"
	"github.com/quantex/qx-algo/internal/metrics"
	"github.com/quantex/qx-algo/internal/publisher"
	"github.com/quantex/qx-algo/internal/ranges"
	"github.com/quantex/qx-algo/internal/risk"
	"github.com/quantex/qx-algo/internal/session"
	"github.com/quantex/qx-algo/internal/signal"
	"github.com/quantex/qx-algo/internal/store"
	"github.com/quantex/qx-algo/internal/topstepx"
	"github.com/quantex/qx-algo/pkg/config"
	"github.com/quantex/qx-algo/pkg/model"
)

const minBarsForSignals = 10

// drFingerprint remembers which range break was already traded for a
// (session, date) pair.
type drFingerprint struct {
	High float64
	Low  float64
	Bias model.Bias
}

// drTolerance is how close two DR levels must be (in points) to count as the
// same break. Two ticks on MES.
const drTolerance = 0.5

// Deps bundles the external collaborators the trader drives.
type Deps struct {
	Client    *topstepx.Client
	Store     store.Store
	Journal   *journal.CSVJournal
	PGJournal *journal.PGWriter
	Publisher *publisher.Publisher
	Hub       *topstepx.MarketHub
}

// Trader owns the strategy state machine. One instance per process.
type Trader struct {
	cfg    *config.Config
	logger *zap.Logger
	deps   Deps

	series *marketdata.Series
	bounds *ranges.Cache
	book   *risk.Book

	mu                sync.Mutex
	running           bool
	today             string // ET date, for the daily reset
	openTrades        []model.Trade
	lastProcessedBar  map[model.Session]time.Time
	lastConfTraded    map[model.Session]time.Time
	lastDRTraded      map[string]drFingerprint
	emittedSignals    map[string]struct{}
	accountID         int64
	contractID        string
	lastPollErr       string
	lastQuote         float64
	lastQuoteAt       time.Time

	now func() time.Time
}

// New builds a trader. It does not touch the venue until Run.
func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Trader {
	return &Trader{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
		series: marketdata.NewSeries(cfg.RollingBars),
		bounds: ranges.NewCache(logger),
		book: risk.NewBook(risk.Config{
			VirtualBalance:      cfg.VirtualBalance,
			MaxDailyLoss:        cfg.MaxDailyLoss,
			MaxTradesPerSession: cfg.MaxTradesPerSession,
			RiskFraction:        cfg.RiskFraction,
			TickSize:            cfg.TickSize,
			TickValue:           cfg.TickValue,
			PointValue:          cfg.PointValue,
		}, logger),
		running:          true,
		lastProcessedBar: make(map[model.Session]time.Time),
		lastConfTraded:   make(map[model.Session]time.Time),
		lastDRTraded:     make(map[string]drFingerprint),
		emittedSignals:   make(map[string]struct{}),
		now:              time.Now,
	}
}

// Book exposes the risk ledger for the dashboard.
func (t *Trader) Book() *risk.Book {
	return t.book
}

// Start resumes signal evaluation after a Stop.
func (t *Trader) Start() {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
	t.logger.Info("trader.started")
}

// Stop pauses signal evaluation. Open trades keep being managed.
func (t *Trader) Stop() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
	t.logger.Info("trader.stopped")
}

// IsRunning reports whether signal evaluation is active.
func (t *Trader) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Run drives the poll loop until ctx is cancelled.
func (t *Trader) Run(ctx context.Context) error {
	if err := t.initVenue(ctx); err != nil {
		return fmt.Errorf("venue init: %w", err)
	}
	t.restoreState(ctx)

	if t.deps.Hub != nil {
		t.deps.Hub.AddHandler(t.onQuote)
		if err := t.deps.Hub.Connect(ctx); err != nil {
			t.logger.Warn("trader.hub_connect_failed", zap.Error(err))
		} else if t.contractID != "" {
			_ = t.deps.Hub.Subscribe(t.contractID)
		}
	}

	t.logger.Info("trader.loop_started",
		zap.Duration("poll_interval", t.cfg.PollInterval),
		zap.String("contract_id", t.contractID),
		zap.Bool("live_trading", t.cfg.EnableLiveTrading))

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	t.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("trader.loop_stopped")
			return ctx.Err()
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

func (t *Trader) initVenue(ctx context.Context) error {
	accounts, err := t.deps.Client.SearchAccounts(ctx, true)
	if err != nil {
		return fmt.Errorf("account search: %w", err)
	}
	var account *topstepx.Account
	for i := range accounts {
		a := &accounts[i]
		if t.cfg.AccountName != "" && a.Name == t.cfg.AccountName {
			account = a
			break
		}
		if t.cfg.AccountName == "" && a.CanTrade && account == nil {
			account = a
		}
	}
	if account == nil {
		return fmt.Errorf("no tradable account found (of %d)", len(accounts))
	}
	t.accountID = account.ID

	contracts, err := t.deps.Client.SearchContracts(ctx, t.cfg.Live)
	if err != nil {
		return fmt.Errorf("contract search: %w", err)
	}
	var contract *topstepx.Contract
	for i := range contracts {
		c := &contracts[i]
		if c.Name == t.cfg.ContractName {
			contract = c
			break
		}
	}
	if contract == nil {
		for i := range contracts {
			c := &contracts[i]
			if strings.Contains(c.Description, t.cfg.ContractFallback) {
				contract = c
				break
			}
		}
	}
	if contract == nil {
		return fmt.Errorf("contract %q not found", t.cfg.ContractName)
	}
	t.contractID = contract.ID

	t.logger.Info("trader.venue_ready",
		zap.Int64("account_id", t.accountID),
		zap.String("account", account.Name),
		zap.String("contract_id", t.contractID),
		zap.String("contract", contract.Name))
	return nil
}

// restoreState reloads the open trade snapshot from the store so a restart
// does not orphan managed positions.
func (t *Trader) restoreState(ctx context.Context) {
	if t.deps.Store == nil {
		return
	}
	trades, err := t.deps.Store.LoadOpenTrades(ctx)
	if err != nil {
		t.logger.Warn("trader.restore_failed", zap.Error(err))
		return
	}
	if len(trades) > 0 {
		t.mu.Lock()
		t.openTrades = trades
		t.mu.Unlock()
		t.logger.Info("trader.trades_restored", zap.Int("count", len(trades)))
	}
}

func (t *Trader) persistOpenTrades(ctx context.Context) {
	if t.deps.Store == nil {
		return
	}
	t.mu.Lock()
	snapshot := make([]model.Trade, len(t.openTrades))
	copy(snapshot, t.openTrades)
	t.mu.Unlock()
	if err := t.deps.Store.SaveOpenTrades(ctx, snapshot); err != nil {
		t.logger.Warn("trader.persist_failed", zap.Error(err))
	}
}

func (t *Trader) poll(ctx context.Context) {
	now := t.now()
	et := now.In(session.Eastern())

	t.maybeResetDaily(et)

	bars, err := t.fetchBars(ctx, now)
	if err != nil {
		t.logger.Error("trader.poll_failed", zap.Error(err))
		metrics.IncError("trader", "poll_failed")
		t.mu.Lock()
		t.lastPollErr = err.Error()
		t.mu.Unlock()
		return
	}
	t.mu.Lock()
	t.lastPollErr = ""
	t.mu.Unlock()

	t.series.Replace(bars)
	metrics.BarsLoaded.Set(float64(t.series.Len()))
	metrics.SetLastPoll(now)

	if t.series.Len() < minBarsForSignals {
		t.logger.Info("trader.insufficient_bars", zap.Int("bars", t.series.Len()))
		return
	}

	if t.IsRunning() {
		if s, w, ok := session.Current(now); ok {
			t.logger.Debug("trader.session_active",
				zap.String("session", s.Upper()),
				zap.String("window", w.String()))
			t.evaluate(ctx, s, et)
		} else {
			t.logger.Debug("trader.no_active_session", zap.String("et", et.Format("15:04:05")))
		}
	}

	t.manageExits(ctx, now)
}

// onQuote records the latest hub price so exit management can run on live
// prices between bar polls.
func (t *Trader) onQuote(q topstepx.Quote) {
	if q.ContractID != "" && q.ContractID != t.contractID {
		return
	}
	t.mu.Lock()
	t.lastQuote = q.Price
	t.lastQuoteAt = t.now()
	t.mu.Unlock()
}

func (t *Trader) fetchBars(ctx context.Context, now time.Time) ([]model.Bar, error) {
	// Lookback long enough to cover the fetch limit across a weekend.
	start := now.Add(-5 * 24 * time.Hour)
	raw, err := t.deps.Client.RetrieveBars(ctx, topstepx.RetrieveBarsRequest{
		ContractID:        t.contractID,
		Live:              t.cfg.Live,
		StartTime:         topstepx.FormatBarTime(start),
		EndTime:           topstepx.FormatBarTime(now),
		Unit:              topstepx.BarUnitMinute,
		UnitNumber:        t.cfg.BarUnitNumber,
		Limit:             t.cfg.BarLimit,
		IncludePartialBar: false,
	})
	if err != nil {
		return nil, err
	}
	return marketdata.FromRaw(raw), nil
}

func (t *Trader) maybeResetDaily(et time.Time) {
	date := et.Format("2006-01-02")
	t.mu.Lock()
	if t.today == date {
		t.mu.Unlock()
		return
	}
	first := t.today == ""
	t.today = date
	t.openTrades = nil
	t.lastProcessedBar = make(map[model.Session]time.Time)
	t.lastConfTraded = make(map[model.Session]time.Time)
	t.lastDRTraded = make(map[string]drFingerprint)
	t.emittedSignals = make(map[string]struct{})
	t.mu.Unlock()

	t.bounds.Reset()
	if !first {
		t.book.ResetDaily()
		t.logger.Info("trader.daily_reset", zap.String("date", date))
	}
}

// evaluate runs the signal pipeline for the active session, at most once per
// bar close.
func (t *Trader) evaluate(ctx context.Context, s model.Session, nowET time.Time) {
	last, ok := t.series.Last()
	if !ok {
		return
	}

	t.mu.Lock()
	if prev, seen := t.lastProcessedBar[s]; seen && prev.Equal(last.Start) {
		t.mu.Unlock()
		return
	}
	t.lastProcessedBar[s] = last.Start
	t.mu.Unlock()

	t.logger.Info("trader.bar_close",
		zap.String("session", s.Upper()),
		zap.Time("bar", last.Start))

	sessionDate := session.Date(s, nowET)
	bars := t.series.All()

	b, err := t.sessionBounds(ctx, bars, s, sessionDate)
	if err != nil {
		t.logger.Info("trader.no_boundaries",
			zap.String("session", s.Upper()),
			zap.Error(err))
		return
	}
	t.logger.Info("trader.boundaries",
		zap.String("session", s.Upper()),
		zap.Float64("dr_high", b.DRHigh),
		zap.Float64("dr_low", b.DRLow),
		zap.Float64("idr_high", b.IDRHigh),
		zap.Float64("idr_low", b.IDRLow))

	if !session.RangeComplete(s, nowET) {
		t.logger.Info("trader.range_forming", zap.String("session", s.Upper()))
		return
	}

	conf, ok := signal.Detect(bars, b, sessionDate)
	if !ok {
		t.logger.Debug("trader.no_confirmation", zap.String("session", s.Upper()))
		return
	}
	t.noteConfirmation(ctx, conf, b)

	age := nowET.Sub(conf.Time.In(session.Eastern()))
	if age > t.cfg.ConfirmationMaxAge {
		t.logger.Info("trader.confirmation_stale",
			zap.String("session", s.Upper()),
			zap.Duration("age", age))
		return
	}

	t.mu.Lock()
	if traded, seen := t.lastConfTraded[s]; seen && traded.Equal(conf.Time) {
		t.mu.Unlock()
		t.logger.Info("trader.confirmation_already_traded", zap.String("session", s.Upper()))
		return
	}
	open := 0
	for _, tr := range t.openTrades {
		if tr.Session == s {
			open++
		}
	}
	drKey := fmt.Sprintf("%s_%s", s, sessionDate.Format("2006-01-02"))
	lastDR, hasDR := t.lastDRTraded[drKey]
	t.mu.Unlock()

	if open > 0 {
		t.logger.Info("trader.position_open",
			zap.String("session", s.Upper()),
			zap.Int("open", open))
		return
	}
	if hasDR && sameDR(lastDR, b, conf.Bias) {
		t.logger.Info("trader.dr_already_traded",
			zap.String("session", s.Upper()),
			zap.String("bias", string(conf.Bias)))
		return
	}

	if ok, reason := t.book.CanTrade(s); !ok {
		t.logger.Info("trader.risk_blocked",
			zap.String("session", s.Upper()),
			zap.String("reason", reason))
		return
	}

	t.tryEnter(ctx, conf, b, drKey, nowET)
}

func sameDR(last drFingerprint, b model.RangeBounds, bias model.Bias) bool {
	return absF(b.DRHigh-last.High) < drTolerance &&
		absF(b.DRLow-last.Low) < drTolerance &&
		bias == last.Bias
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// sessionBounds memoizes boundary computation and mirrors the result into the
// store so restarts skip recomputation.
func (t *Trader) sessionBounds(ctx context.Context, bars []model.Bar, s model.Session, sessionDate time.Time) (model.RangeBounds, error) {
	if b, ok := t.bounds.Get(s, sessionDate); ok {
		return b, nil
	}
	if t.deps.Store != nil {
		if cached, err := t.deps.Store.GetBounds(ctx, s, sessionDate.Format("2006-01-02")); err == nil && cached != nil {
			t.bounds.Put(*cached, sessionDate)
			return *cached, nil
		}
	}
	b, err := t.bounds.GetOrCompute(bars, s, sessionDate)
	if err != nil {
		return model.RangeBounds{}, err
	}
	if t.deps.Store != nil {
		if err := t.deps.Store.SaveBounds(ctx, b); err != nil {
			t.logger.Warn("trader.bounds_persist_failed", zap.Error(err))
		}
	}
	return b, nil
}

// noteConfirmation emits the signal event once per confirmation.
func (t *Trader) noteConfirmation(ctx context.Context, conf model.Confirmation, b model.RangeBounds) {
	key := fmt.Sprintf("%s_%s", conf.Session, conf.Time.UTC().Format(time.RFC3339))
	t.mu.Lock()
	if _, seen := t.emittedSignals[key]; seen {
		t.mu.Unlock()
		return
	}
	t.emittedSignals[key] = struct{}{}
	t.mu.Unlock()

	metrics.SignalsTotal.WithLabelValues(string(conf.Session), string(conf.Bias)).Inc()
	t.logger.Info("trader.confirmation",
		zap.String("session", conf.Session.Upper()),
		zap.String("bias", string(conf.Bias)),
		zap.Time("time", conf.Time),
		zap.Float64("price", conf.Price))

	if err := t.deps.Publisher.PublishSignalConfirmed(ctx, model.SignalConfirmedEvent{
		Session: conf.Session,
		Bias:    conf.Bias,
		Time:    conf.Time,
		Price:   conf.Price,
		DRHigh:  b.DRHigh,
		DRLow:   b.DRLow,
	}); err != nil {
		t.logger.Warn("trader.signal_publish_failed", zap.Error(err))
	}
}

// tryEnter applies the entry model: a retrace into the IDR, a stop beyond the
// IDR midpoint and a target one IDR standard deviation beyond the extreme.
func (t *Trader) tryEnter(ctx context.Context, conf model.Confirmation, b model.RangeBounds, drKey string, nowET time.Time) {
	price, ok := t.series.LastClose()
	if !ok {
		return
	}

	idrRange := b.IDRRange()
	mid := b.IDRMidpoint()

	var entry, stop, takeProfit float64
	if conf.Bias == model.BiasBullish {
		entry = b.IDRHigh - t.cfg.EntryRetraceFraction*idrRange
		stop = mid - t.cfg.StopBufferPoints
		takeProfit = b.IDRHigh + b.IDRStd

		if price >= takeProfit {
			// Move already ran to target; burn the slot so we do not chase.
			t.logger.Info("trader.move_missed",
				zap.String("session", conf.Session.Upper()),
				zap.Float64("price", price),
				zap.Float64("target", takeProfit))
			t.book.ConsumeSlot(conf.Session)
			return
		}
		if price > entry {
			t.logger.Info("trader.awaiting_retrace",
				zap.String("session", conf.Session.Upper()),
				zap.String("bias", "bullish"),
				zap.Float64("entry", entry),
				zap.Float64("price", price))
			return
		}
	} else {
		entry = b.IDRLow + t.cfg.EntryRetraceFraction*idrRange
		stop = mid + t.cfg.StopBufferPoints
		takeProfit = b.IDRLow - b.IDRStd

		if price < entry {
			t.logger.Info("trader.awaiting_retrace",
				zap.String("session", conf.Session.Upper()),
				zap.String("bias", "bearish"),
				zap.Float64("entry", entry),
				zap.Float64("price", price))
			return
		}
	}

	contracts := t.book.PositionSize(entry, stop)

	t.logger.Info("trader.entry_signal",
		zap.String("session", conf.Session.Upper()),
		zap.String("bias", string(conf.Bias)),
		zap.Float64("idr_range", idrRange),
		zap.Float64("idr_std", b.IDRStd),
		zap.Float64("entry", entry),
		zap.Float64("stop", stop),
		zap.Float64("take_profit", takeProfit),
		zap.Int("contracts", contracts))

	rec := model.TradeRecord{
		Timestamp:  nowET,
		Session:    conf.Session,
		Bias:       conf.Bias,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: takeProfit,
		Size:       contracts,
	}

	markTraded := func() {
		t.book.ConsumeSlot(conf.Session)
		t.mu.Lock()
		t.lastConfTraded[conf.Session] = conf.Time
		t.lastDRTraded[drKey] = drFingerprint{High: b.DRHigh, Low: b.DRLow, Bias: conf.Bias}
		t.mu.Unlock()
	}

	if !t.cfg.EnableLiveTrading {
		rec.OrderID = ""
		rec.Result = model.ResultPaper
		t.openTrade(ctx, conf, entry, stop, takeProfit, contracts, "")
		t.journalRow(ctx, rec)
		markTraded()
		metrics.TradesOpenedTotal.WithLabelValues(string(conf.Session), "paper").Inc()
		return
	}

	orderID, err := t.deps.Client.PlaceOrder(ctx, topstepx.PlaceOrderRequest{
		AccountID:  t.accountID,
		ContractID: t.contractID,
		Type:       model.OrderTypeMarket,
		Side:       model.SideForBias(conf.Bias),
		Size:       contracts,
	})
	if err != nil {
		// A failed order still burns the slot so we do not spam retries.
		t.logger.Error("trader.order_failed", zap.Error(err))
		rec.Result = model.ResultFailed
		t.journalRow(ctx, rec)
		markTraded()
		metrics.TradesOpenedTotal.WithLabelValues(string(conf.Session), "failed").Inc()
		metrics.IncError("trader", "order_failed")
		return
	}

	t.logger.Info("trader.order_placed",
		zap.String("order_id", orderID),
		zap.String("session", conf.Session.Upper()),
		zap.Int("contracts", contracts))
	rec.OrderID = orderID
	rec.Result = model.ResultOpen
	t.openTrade(ctx, conf, entry, stop, takeProfit, contracts, orderID)
	t.journalRow(ctx, rec)
	markTraded()
	metrics.TradesOpenedTotal.WithLabelValues(string(conf.Session), "ok").Inc()
}

func (t *Trader) openTrade(ctx context.Context, conf model.Confirmation, entry, stop, tp float64, contracts int, orderID string) {
	tr := model.Trade{
		ID:         ulid.Make().String(),
		OrderID:    orderID,
		Session:    conf.Session,
		Bias:       conf.Bias,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: tp,
		Contracts:  contracts,
		Remaining:  contracts,
		OpenTime:   t.now(),
	}
	if conf.Bias == model.BiasBullish {
		tr.HighWater = entry
	} else {
		tr.LowWater = entry
	}

	t.mu.Lock()
	t.openTrades = append(t.openTrades, tr)
	t.mu.Unlock()
	t.persistOpenTrades(ctx)

	if err := t.deps.Publisher.PublishTradeOpened(ctx, model.TradeOpenedEvent{
		TradeID:    tr.ID,
		OrderID:    tr.OrderID,
		Session:    tr.Session,
		Bias:       tr.Bias,
		Entry:      tr.Entry,
		Stop:       tr.Stop,
		TakeProfit: tr.TakeProfit,
		Contracts:  tr.Contracts,
	}); err != nil {
		t.logger.Warn("trader.open_publish_failed", zap.Error(err))
	}
}

func (t *Trader) journalRow(ctx context.Context, rec model.TradeRecord) {
	if err := t.deps.Journal.Append(rec); err != nil {
		t.logger.Error("trader.journal_failed", zap.Error(err))
		metrics.IncError("journal", "append_failed")
	}
	if t.deps.PGJournal != nil {
		if err := t.deps.PGJournal.Upsert(ctx, rec); err != nil {
			metrics.IncError("journal", "pg_failed")
		}
	}
}

// Status is the trader-side slice of the dashboard status payload.
type Status struct {
	Running     bool
	LastBar     *model.Bar
	Session     model.Session
	Window      string
	Bounds      *model.RangeBounds
	OpenTrades  []model.Trade
	LastPollErr string
}

// Status snapshots the trader for the dashboard.
func (t *Trader) Status() Status {
	now := t.now()

	st := Status{Running: t.IsRunning()}
	if last, ok := t.series.Last(); ok {
		st.LastBar = &last
	}
	if s, w, ok := session.Current(now); ok {
		st.Session = s
		st.Window = w.String()
		if b, found := t.bounds.Get(s, session.Date(s, now)); found {
			st.Bounds = &b
		}
	}
	t.mu.Lock()
	st.OpenTrades = make([]model.Trade, len(t.openTrades))
	copy(st.OpenTrades, t.openTrades)
	st.LastPollErr = t.lastPollErr
	t.mu.Unlock()
	return st
}
