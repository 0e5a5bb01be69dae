package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core runtime configuration for a service instance.
// It supports environment-based initialization, with sensible defaults.
type Config struct {
	ServiceName string // e.g. "qx-algo"
	Env         string // e.g. "dev", "uat", "prod"
	LogLevel    string // "debug", "info", etc.
	AlgoLogPath string // combined trader log the dashboard tails

	// Dashboard HTTP server
	Port             int // bound from PORT, platform-provided
	AssetsDir        string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Bootstrap
	ProbeDelay time.Duration // delay before the observational trader liveness probe

	// TopstepX venue
	TopstepXBaseURL   string
	TopstepXHubURL    string // market hub websocket (live quotes)
	TopstepXUsername  string
	TopstepXAPIKey    string
	AccountName       string
	ContractName      string
	ContractFallback  string // description substring used when the exact symbol is absent
	Live              bool   // live vs simulated market data
	EnableLiveTrading bool   // false = paper mode, orders journaled only

	// Bar polling
	PollInterval  time.Duration
	BarUnitNumber int // bar size in minutes
	BarLimit      int // bars fetched per poll
	RollingBars   int // bars kept in memory

	// Risk / contract economics
	TickSize            float64
	TickValue           float64
	PointValue          float64
	VirtualBalance      float64
	MaxDailyLoss        float64
	MaxTradesPerSession int
	RiskFraction        float64 // fraction of virtual balance risked per trade

	// Entry/exit model
	EntryRetraceFraction float64       // retrace into IDR before entry
	StopBufferPoints     float64       // stop distance beyond the IDR midpoint
	PartialExitFraction  float64       // contracts closed at take profit
	TrailPoints          float64       // trailing stop distance after partial
	TimeStop             time.Duration // maximum time in trade
	ConfirmationMaxAge   time.Duration // freshness window for acting on a confirmation

	// Journal / store
	TradeLogPath string
	DatabaseURL  string
	RedisAddr    string
	RedisDB      int
	RedisPass    string

	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	// Events
	NATSURL string

	// Secrets
	AWSRegion    string
	SecretPrefix string
	CacheTTL     time.Duration
	CleanupFreq  time.Duration
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: GetEnv("SERVICE_NAME", "qx-algo"),
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		AlgoLogPath: GetEnv("ALGO_LOG_PATH", "algo.log"),

		Port:             GetEnvInt("PORT", 5000),
		AssetsDir:        GetEnv("ASSETS_DIR", "web"),
		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),

		ProbeDelay: GetEnvDuration("PROBE_DELAY", 2*time.Second),

		TopstepXBaseURL:   GetEnv("TOPSTEPX_BASE_URL", "https://api.topstepx.com"),
		TopstepXHubURL:    GetEnv("TOPSTEPX_HUB_URL", ""),
		TopstepXUsername:  GetEnv("TOPSTEPX_USERNAME", ""),
		TopstepXAPIKey:    GetEnv("TOPSTEPX_API_KEY", ""),
		AccountName:       GetEnv("TOPSTEPX_ACCOUNT_NAME", ""),
		ContractName:      GetEnv("TOPSTEPX_CONTRACT_NAME", "MESZ5"),
		ContractFallback:  GetEnv("TOPSTEPX_CONTRACT_FALLBACK", "Micro E-mini S&P 500"),
		Live:              GetEnvBool("TOPSTEPX_LIVE", false),
		EnableLiveTrading: GetEnvBool("ENABLE_LIVE_TRADING", false),

		PollInterval:  GetEnvDuration("POLL_INTERVAL", 30*time.Second),
		BarUnitNumber: GetEnvInt("BAR_UNIT_NUMBER", 5),
		BarLimit:      GetEnvInt("BAR_LIMIT", 350),
		RollingBars:   GetEnvInt("ROLLING_BARS", 500),

		TickSize:            GetEnvFloat("TICK_SIZE", 0.25),
		TickValue:           GetEnvFloat("TICK_VALUE", 1.25),
		PointValue:          GetEnvFloat("POINT_VALUE", 5.0),
		VirtualBalance:      GetEnvFloat("VIRTUAL_BALANCE", 2000.0),
		MaxDailyLoss:        GetEnvFloat("MAX_DAILY_LOSS", 2000.0),
		MaxTradesPerSession: GetEnvInt("MAX_TRADES_PER_SESSION", 2),
		RiskFraction:        GetEnvFloat("RISK_FRACTION", 0.12),

		EntryRetraceFraction: GetEnvFloat("ENTRY_RETRACE_FRACTION", 0.20),
		StopBufferPoints:     GetEnvFloat("STOP_BUFFER_POINTS", 2.0),
		PartialExitFraction:  GetEnvFloat("PARTIAL_EXIT_FRACTION", 0.75),
		TrailPoints:          GetEnvFloat("TRAIL_POINTS", 5.0),
		TimeStop:             GetEnvDuration("TIME_STOP", time.Hour),
		ConfirmationMaxAge:   GetEnvDuration("CONFIRMATION_MAX_AGE", 10*time.Minute),

		TradeLogPath: GetEnv("TRADE_LOG_PATH", "trade_log.csv"),
		DatabaseURL:  GetEnv("DATABASE_URL", ""),
		RedisAddr:    GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:      GetEnvInt("REDIS_DB", 0),
		RedisPass:    GetEnv("REDIS_PASS", ""),

		PGMaxConns:          GetEnvInt("PG_MAX_CONNS", 10),
		PGMinConns:          GetEnvInt("PG_MIN_CONNS", 2),
		PGMaxConnLifetime:   GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),

		NATSURL: GetEnv("NATS_URL", ""),

		AWSRegion:    GetEnv("AWS_REGION", "us-east-2"),
		SecretPrefix: GetEnv("SECRET_PREFIX", "qx-algo/topstepx"),
		CacheTTL:     GetEnvDuration("CACHE_TTL", 24*time.Hour),
		CleanupFreq:  GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),
	}

	return cfg
}
