package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"adx-systemv1/internal/markethours"
)

// Config holds all application configuration loaded from environment variables.
// All monetary values are in paise.
type Config struct {
	// Broker credentials (live mode only)
	BrokerAPIKey     string
	BrokerClientCode string
	BrokerPIN        string
	BrokerTOTPSecret string

	// Infrastructure
	WSURL         string
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	// Subscription
	Symbols     []string
	BarInterval int // seconds

	// Strategy
	DIPeriod         int
	MinDISeparation  float64
	MinADXStrength   float64
	VolumePercentile float64
	VolumeWindow     int
	MinVolumeRatio   float64
	MinConfidence    float64
	SignalCutoff     markethours.TimeOfDay

	// Risk
	PortfolioValue  int64 // paise
	RiskPerTradePct float64
	MaxPositions    int
	TrailingStopPct float64
	SquareOffTime   markethours.TimeOfDay
	SlippageBps     int
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is merged in first, if present.
// Malformed values are fatal: a half-configured engine must not trade.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env file")
	}

	cfg := &Config{
		BrokerAPIKey:     os.Getenv("BROKER_API_KEY"),
		BrokerClientCode: os.Getenv("BROKER_CLIENT_CODE"),
		BrokerPIN:        os.Getenv("BROKER_PIN"),
		BrokerTOTPSecret: os.Getenv("BROKER_TOTP_SECRET"),

		WSURL:         getEnv("WS_URL", "ws://localhost:8081/ws"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		Symbols:     splitList(getEnv("SYMBOLS", "SBIN,TCS,RELIANCE")),
		BarInterval: getInt("BAR_INTERVAL", 300),

		DIPeriod:         getInt("DI_PERIOD", 14),
		MinDISeparation:  getFloat("MIN_DI_SEPARATION", 2.0),
		MinADXStrength:   getFloat("MIN_ADX_STRENGTH", 20.0),
		VolumePercentile: getFloat("VOLUME_THRESHOLD_PERCENTILE", 60.0),
		VolumeWindow:     getInt("VOLUME_WINDOW", 100),
		MinVolumeRatio:   getFloat("MIN_VOLUME_RATIO", 1.5),
		MinConfidence:    getFloat("MIN_CONFIDENCE", 0.60),
		SignalCutoff:     getTimeOfDay("SIGNAL_CUTOFF_TIME", "14:30"),

		PortfolioValue:  getInt64("PORTFOLIO_VALUE", 10000000),
		RiskPerTradePct: getFloat("RISK_PER_TRADE", 1.0),
		MaxPositions:    getInt("MAX_POSITIONS", 5),
		TrailingStopPct: getFloat("TRAILING_STOP_PCT", 5.0),
		SquareOffTime:   getTimeOfDay("SQUARE_OFF_TIME", "15:20"),
		SlippageBps:     getInt("SLIPPAGE_BPS", 0),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[config] invalid configuration: %v", err)
	}
	return cfg
}

// Validate checks parameter ranges. Called by Load; exported so tests and
// hand-built configs can reuse it.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("SYMBOLS must list at least one symbol")
	}
	if c.BarInterval <= 0 {
		return fmt.Errorf("BAR_INTERVAL must be positive, got %d", c.BarInterval)
	}
	if c.DIPeriod < 2 {
		return fmt.Errorf("DI_PERIOD must be at least 2, got %d", c.DIPeriod)
	}
	if c.VolumePercentile < 0 || c.VolumePercentile > 100 {
		return fmt.Errorf("VOLUME_THRESHOLD_PERCENTILE must be in [0,100], got %v", c.VolumePercentile)
	}
	if c.VolumeWindow <= 0 {
		return fmt.Errorf("VOLUME_WINDOW must be positive, got %d", c.VolumeWindow)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be in [0,1], got %v", c.MinConfidence)
	}
	if c.PortfolioValue <= 0 {
		return fmt.Errorf("PORTFOLIO_VALUE must be positive, got %d", c.PortfolioValue)
	}
	if c.RiskPerTradePct <= 0 || c.RiskPerTradePct > 100 {
		return fmt.Errorf("RISK_PER_TRADE must be in (0,100], got %v", c.RiskPerTradePct)
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("MAX_POSITIONS must be positive, got %d", c.MaxPositions)
	}
	if c.TrailingStopPct <= 0 || c.TrailingStopPct >= 100 {
		return fmt.Errorf("TRAILING_STOP_PCT must be in (0,100), got %v", c.TrailingStopPct)
	}
	if !c.SignalCutoff.Before(c.SquareOffTime) {
		return fmt.Errorf("SIGNAL_CUTOFF_TIME %s must be before SQUARE_OFF_TIME %s",
			c.SignalCutoff, c.SquareOffTime)
	}
	return nil
}

// RequireBrokerCreds is fatal when live trading credentials are missing.
// The backtester never calls this.
func (c *Config) RequireBrokerCreds() {
	for _, kv := range []struct{ key, val string }{
		{"BROKER_API_KEY", c.BrokerAPIKey},
		{"BROKER_CLIENT_CODE", c.BrokerClientCode},
		{"BROKER_PIN", c.BrokerPIN},
		{"BROKER_TOTP_SECRET", c.BrokerTOTPSecret},
	} {
		if kv.val == "" {
			log.Fatalf("[config] required env var %s not set", kv.key)
		}
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("[config] %s: invalid integer %q", key, v)
	}
	return n
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("[config] %s: invalid integer %q", key, v)
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("[config] %s: invalid float %q", key, v)
	}
	return f
}

func getTimeOfDay(key, fallback string) markethours.TimeOfDay {
	v := getEnv(key, fallback)
	tod, err := markethours.ParseTimeOfDay(v)
	if err != nil {
		log.Fatalf("[config] %s: %v", key, err)
	}
	return tod
}
