// Package bootstrap supervises process startup: it launches the trader in the
// background, probes that it came up, verifies the dashboard assets and then
// serves the dashboard until shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/pkg/config"
)

// dashboardAsset is the page the dashboard cannot run without.
const dashboardAsset = "dashboard.html"

// Runner is the background trader loop.
type Runner interface {
	Run(ctx context.Context) error
}

// Bootstrap owns the startup sequence.
type Bootstrap struct {
	cfg    *config.Config
	logger *zap.Logger
	runner Runner
	app    *fiber.App

	traderExited atomic.Bool
	traderErr    atomic.Value // error
}

// New assembles a bootstrap over an already-routed fiber app.
func New(cfg *config.Config, logger *zap.Logger, runner Runner, app *fiber.App) *Bootstrap {
	return &Bootstrap{cfg: cfg, logger: logger, runner: runner, app: app}
}

// Run starts the trader in the background, waits out the probe delay to log
// whether it is still up, checks the dashboard assets and then serves HTTP
// until ctx is cancelled. The probe is observational only; a dead trader
// never stops the dashboard. A missing dashboard asset is fatal.
func (b *Bootstrap) Run(ctx context.Context) error {
	go func() {
		err := b.runner.Run(ctx)
		if err != nil && ctx.Err() == nil {
			b.traderErr.Store(err)
			b.logger.Error("bootstrap.trader_exited", zap.Error(err))
		}
		b.traderExited.Store(true)
	}()

	b.probe(ctx)

	if err := b.checkAssets(); err != nil {
		return err
	}

	return b.serve(ctx)
}

// probe waits the configured delay and reports on the trader goroutine.
func (b *Bootstrap) probe(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(b.cfg.ProbeDelay):
	}

	if b.traderExited.Load() {
		fields := []zap.Field{}
		if err, ok := b.traderErr.Load().(error); ok {
			fields = append(fields, zap.Error(err))
		}
		b.logger.Warn("bootstrap.trader_probe_down", fields...)
		return
	}
	b.logger.Info("bootstrap.trader_probe_ok",
		zap.Duration("after", b.cfg.ProbeDelay))
}

// checkAssets verifies the dashboard page exists. On failure it logs the
// directory contents to make the deployment mistake obvious.
func (b *Bootstrap) checkAssets() error {
	asset := filepath.Join(b.cfg.AssetsDir, dashboardAsset)
	if _, err := os.Stat(asset); err == nil {
		b.logger.Info("bootstrap.assets_ok", zap.String("asset", asset))
		return nil
	}

	var names []string
	entries, dirErr := os.ReadDir(b.cfg.AssetsDir)
	if dirErr != nil {
		names = []string{"(" + dirErr.Error() + ")"}
	} else {
		for _, e := range entries {
			names = append(names, e.Name())
		}
	}
	b.logger.Error("bootstrap.asset_missing",
		zap.String("asset", asset),
		zap.String("assets_dir", b.cfg.AssetsDir),
		zap.Strings("dir_contents", names))
	return fmt.Errorf("dashboard asset %s not found", asset)
}

func (b *Bootstrap) serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", b.cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		b.logger.Info("bootstrap.dashboard_listening", zap.String("addr", addr))
		errCh <- b.app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		b.logger.Info("bootstrap.shutting_down")
		if err := b.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			b.logger.Warn("bootstrap.shutdown_error", zap.Error(err))
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dashboard server: %w", err)
		}
		return nil
	}
}
