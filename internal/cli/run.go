package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/quantex/qx-algo/internal/bootstrap"
	"github.com/quantex/qx-algo/internal/dashboard"
	"github.com/quantex/qx-algo/internal/journal"
	"github.com/quantex/qx-algo/internal/publisher"
	"github.com/quantex/qx-algo/internal/rate"
	"github.com/quantex/qx-algo/internal/secrets"
	"github.com/quantex/qx-algo/internal/store"
	"github.com/quantex/qx-algo/internal/topstepx"
	"github.com/quantex/qx-algo/internal/trader"
	"github.com/quantex/qx-algo/pkg/config"
	"github.com/quantex/qx-algo/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trader and the monitoring dashboard",
	Long: `Start the background trading loop and serve the monitoring dashboard.

The trader polls TopstepX for bars, evaluates session-range signals and
manages open positions. The dashboard exposes status, logs and start/stop
control over HTTP. A missing dashboard asset aborts startup; a failing
trader does not.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel, cfg.AlgoLogPath)
	defer logger.Sync()
	logg := logger.S()
	logg.Infof("starting [%s]...", cfg.ServiceName)

	// --- AWS Secrets Manager provider (env fallback when unavailable) ---
	var provider secrets.Provider
	awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
	if err != nil {
		logg.Warnw("aws secrets manager unavailable, using env credentials", "error", err)
	} else {
		provider = awsProvider
	}

	credCache := secrets.NewCache[secrets.Credentials](cfg.CacheTTL)
	stopCleaner := make(chan struct{})
	defer close(stopCleaner)
	go credCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

	resolver := secrets.NewResolver(logger.L(), provider, credCache, cfg.SecretPrefix, secrets.Credentials{
		Username: cfg.TopstepXUsername,
		APIKey:   cfg.TopstepXAPIKey,
	})

	// --- NATS + publisher (optional) ---
	var nc *nats.Conn
	var pub *publisher.Publisher
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Warnw("failed to connect to NATS, events disabled", "error", err)
		} else {
			pub, err = publisher.New(nc, cfg.ServiceName)
			if err != nil {
				logg.Warnw("failed to init publisher, events disabled", "error", err)
			}
		}
	}

	// --- Store (Redis + Postgres hybrid, optional) ---
	var st store.Store
	if cfg.RedisAddr != "" {
		st, err = store.NewHybrid(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		}, logger.L())
		if err != nil {
			logg.Warnw("failed to init store, running without persistence", "error", err)
			st = nil
		} else {
			defer st.Close()
		}
	}

	// --- Rate limiter + venue client ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: 5,
		Burst:             10,
	})
	client := topstepx.NewClient(logger.L(), rateMgr, cfg.TopstepXBaseURL, resolver)
	hub := topstepx.NewMarketHub(cfg.TopstepXHubURL, logger.L())

	// --- Journal (CSV + optional Postgres mirror) ---
	csvJournal := journal.NewCSV(cfg.TradeLogPath, logger.L())
	var pgJournal *journal.PGWriter
	if st != nil && st.Pool() != nil {
		pgJournal = journal.NewPGWriter(st.Pool(), logger.L())
	}

	// --- Trader ---
	tr := trader.New(cfg, logger.L(), trader.Deps{
		Client:    client,
		Store:     st,
		Journal:   csvJournal,
		PGJournal: pgJournal,
		Publisher: pub,
		Hub:       hub,
	})

	// --- Dashboard HTTP server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})
	handler := dashboard.NewHandler(logger.L(), tr, csvJournal, cfg.AssetsDir, cfg.AlgoLogPath)
	dashboard.RegisterRoutes(app, handler, nc, st)

	defer pub.Close()
	defer hub.Close()

	boot := bootstrap.New(cfg, logger.L(), tr, app)
	return boot.Run(ctx)
}
