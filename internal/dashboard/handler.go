// Package dashboard serves the mobile monitoring UI and its JSON API.
package dashboard

import (
	"bufio"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/internal/journal"
	"github.com/quantex/qx-algo/internal/risk"
	"github.com/quantex/qx-algo/internal/session"
	"github.com/quantex/qx-algo/internal/trader"
	"github.com/quantex/qx-algo/pkg/model"
)

const recentTradeCount = 10

// Controller is the trader surface the dashboard drives.
type Controller interface {
	Status() trader.Status
	Start()
	Stop()
	IsRunning() bool
	Book() *risk.Book
}

// TradeLog is the journal surface the dashboard reads.
type TradeLog interface {
	Today(now time.Time) ([]model.TradeRecord, error)
}

// Handler answers the dashboard API requests.
type Handler struct {
	logger    *zap.Logger
	ctrl      Controller
	trades    TradeLog
	assetsDir string
	logPath   string
	now       func() time.Time
}

// NewHandler creates a dashboard handler.
func NewHandler(logger *zap.Logger, ctrl Controller, trades TradeLog, assetsDir, logPath string) *Handler {
	return &Handler{
		logger:    logger,
		ctrl:      ctrl,
		trades:    trades,
		assetsDir: assetsDir,
		logPath:   logPath,
		now:       time.Now,
	}
}

// Index serves the dashboard page.
func (h *Handler) Index(c *fiber.Ctx) error {
	return c.SendFile(filepath.Join(h.assetsDir, "dashboard.html"))
}

// pnlBlock mirrors the risk ledger into the status payload.
type pnlBlock struct {
	Total       float64 `json:"total"`
	Realized    float64 `json:"realized"`
	Unrealized  float64 `json:"unrealized"`
	TradesCount int     `json:"trades_count"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

type drIDRBlock struct {
	Session string  `json:"session"`
	DRHigh  float64 `json:"dr_high"`
	DRLow   float64 `json:"dr_low"`
	IDRHigh float64 `json:"idr_high"`
	IDRLow  float64 `json:"idr_low"`
	IDRStd  float64 `json:"idr_std"`
}

type recentTrade struct {
	Time       string  `json:"timestamp_est"`
	Session    string  `json:"session"`
	Bias       string  `json:"bias"`
	Entry      float64 `json:"entry"`
	Stop       float64 `json:"stop"`
	TakeProfit float64 `json:"take_profit"`
	Size       int     `json:"size"`
	OrderID    string  `json:"order_id"`
	Result     string  `json:"result"`
}

type statusResponse struct {
	Timestamp      string        `json:"timestamp"`
	CurrentSession string        `json:"current_session"`
	SessionWindow  string        `json:"session_window"`
	AlgoRunning    bool          `json:"algo_running"`
	LastUpdate     string        `json:"last_update"`
	LastBar        string        `json:"last_bar,omitempty"`
	LastPrice      float64       `json:"last_price,omitempty"`
	DRIDR          *drIDRBlock   `json:"dr_idr,omitempty"`
	OpenPositions  int           `json:"open_positions"`
	PnL            pnlBlock      `json:"pnl"`
	RecentTrades   []recentTrade `json:"recent_trades"`
}

// Status answers GET /api/status.
func (h *Handler) Status(c *fiber.Ctx) error {
	now := h.now()
	et := now.In(session.Eastern())
	st := h.ctrl.Status()
	snap := h.ctrl.Book().Snapshot()

	resp := statusResponse{
		Timestamp:      et.Format("2006-01-02 15:04:05") + " EST",
		CurrentSession: "NONE",
		SessionWindow:  "None",
		AlgoRunning:    st.Running,
		LastUpdate:     "Unknown",
		OpenPositions:  len(st.OpenTrades),
		RecentTrades:   []recentTrade{},
	}
	if st.Session != "" {
		resp.CurrentSession = st.Session.Upper()
		resp.SessionWindow = st.Window
	}
	if st.LastBar != nil {
		resp.LastBar = st.LastBar.Start.In(session.Eastern()).Format("2006-01-02 15:04:05")
		resp.LastPrice = st.LastBar.Close
		resp.LastUpdate = "Active"
	}
	if st.Bounds != nil {
		resp.DRIDR = &drIDRBlock{
			Session: st.Bounds.Session.Upper(),
			DRHigh:  st.Bounds.DRHigh,
			DRLow:   st.Bounds.DRLow,
			IDRHigh: st.Bounds.IDRHigh,
			IDRLow:  st.Bounds.IDRLow,
			IDRStd:  st.Bounds.IDRStd,
		}
	}

	daily, _ := snap.DailyPnL.Float64()
	resp.PnL = pnlBlock{
		Total:    daily,
		Realized: daily,
		Wins:     snap.Wins,
		Losses:   snap.Losses,
	}

	trades, err := h.trades.Today(now)
	if err != nil {
		h.logger.Warn("dashboard.trade_log_read_failed", zap.Error(err))
	}
	resp.PnL.TradesCount = len(trades)
	for _, tr := range journal.LastN(trades, recentTradeCount) {
		resp.RecentTrades = append(resp.RecentTrades, recentTrade{
			Time:       tr.Timestamp.In(session.Eastern()).Format("15:04:05"),
			Session:    string(tr.Session),
			Bias:       string(tr.Bias),
			Entry:      tr.Entry,
			Stop:       tr.Stop,
			TakeProfit: tr.TakeProfit,
			Size:       tr.Size,
			OrderID:    tr.OrderID,
			Result:     tr.Result,
		})
	}

	return c.JSON(resp)
}

// Logs answers GET /api/logs?lines=N with the tail of the trader log.
func (h *Handler) Logs(c *fiber.Ctx) error {
	lines := c.QueryInt("lines", 100)
	if lines <= 0 {
		lines = 100
	}
	tail, err := tailFile(h.logPath, lines)
	if err != nil {
		h.logger.Warn("dashboard.log_read_failed", zap.Error(err))
		tail = []string{}
	}
	return c.JSON(fiber.Map{"logs": tail})
}

// Control answers /api/control/:action for start and stop.
func (h *Handler) Control(c *fiber.Ctx) error {
	action := c.Params("action")
	switch action {
	case "start":
		if h.ctrl.IsRunning() {
			return c.JSON(fiber.Map{"success": false, "message": "Algo already running"})
		}
		h.ctrl.Start()
		h.logger.Info("dashboard.control", zap.String("action", "start"))
		return c.JSON(fiber.Map{"success": true, "message": "Algo started"})
	case "stop":
		if !h.ctrl.IsRunning() {
			return c.JSON(fiber.Map{"success": false, "message": "Algo not running"})
		}
		h.ctrl.Stop()
		h.logger.Info("dashboard.control", zap.String("action", "stop"))
		return c.JSON(fiber.Map{"success": true, "message": "Algo stopped"})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Unknown action: " + action,
		})
	}
}

// tailFile returns the last n lines of the file, empty when it is missing.
func tailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
