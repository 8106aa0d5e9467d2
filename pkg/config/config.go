// Package config loads the environment-driven settings for the trading
// core: venue credentials, risk limits, trading/execution knobs, and
// feature flags (spec.md §6). Grounded on the teacher's pkg/config/config.go
// getEnv/getEnvFloat/getEnvInt helper shape and its godotenv-then-env-vars
// load order, generalized from a single Binance exchange's credentials to
// the two venue credential blocks plus the risk/trading/feature surface
// spec.md names.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"oddsarb.dev/core/pkg/cryptoutil"
)

// VenueAConfig holds the Polymarket-like venue's credentials (spec.md §6).
type VenueAConfig struct {
	PrivateKey     string
	APIKey         string
	APISecret      string
	APIPassphrase  string
	FunderAddress  string
	ChainID        int64
	SignatureType  cryptoutil.SignatureType
	WSURL          string
	TakerFeeRate   float64
}

// VenueBConfig holds the Kalshi-like venue's credentials (spec.md §6).
type VenueBConfig struct {
	APIKeyID      string
	PrivateKeyPEM []byte
	Environment   string // "demo" or "prod"
	Host          string
	WSURL         string
	RateLimitTier string
	TakerFeeRate  float64
}

// RiskConfig mirrors spec.md §6's risk block; every field has the named
// default.
type RiskConfig struct {
	MaxPositionSizeUsd        float64
	MaxTotalExposureUsd       float64
	MaxDailyLossUsd           float64
	MaxDrawdownPct            float64
	MinArbitrageSpreadBps     float64
	CrossPlatformSpreadBuffer float64
	ApiErrorRateThreshold     float64
	ApiErrorWindowSeconds     int
	CheckIntervalMs           int
}

// TradingConfig mirrors spec.md §6's trading block.
type TradingConfig struct {
	PaperTrading         bool
	PaperTradingBalance  float64
	ExecutionTimeoutMs   int
	OrderRetryAttempts   int
	OrderRetryDelayMs    int
	ScanIntervalMs       int
	CooldownAfterExecMs  int
	DebounceMs           int
	TopNTrackedMarkets   int
	MaxSlippageBps       float64
}

// FeatureFlags mirrors spec.md §6's features block.
type FeatureFlags struct {
	EnableCrossPlatformArb  bool
	EnableSinglePlatformArb bool
	EnableWebSocket         bool
	EnableEndgame           bool
	EnableImbalance         bool
	EnableMeanReversion     bool
	EnableMomentum          bool
	EnableProbabilitySum    bool
}

// StrategyThresholds mirrors spec.md §4.8's per-strategy tunables.
type StrategyThresholds struct {
	EndgameMinHoursToRes          float64
	EndgameMaxHoursToRes          float64
	EndgameMinProb                float64
	EndgameMaxProb                float64
	EndgameMinAnnualizedReturnPct float64
	ImbalanceThreshold            float64
	MeanReversionTauLow           float64
	MeanReversionTauHigh          float64
	MomentumTauMomentum           float64
	MomentumTauChange             float64
	ProbabilitySumEpsilonPercent  float64
}

// Config is the root configuration loaded once at startup.
type Config struct {
	Port string
	DBPath string
	JWTSecret string
	OperatorSecret string
	Language string

	VenueA VenueAConfig
	VenueB VenueBConfig
	Risk   RiskConfig
	Trading TradingConfig
	Features FeatureFlags
	Strategy StrategyThresholds
}

// Load reads environment variables (optionally via a .env file) into
// Config. It never errors on a missing .env; it returns an error only when
// a required Kalshi PEM file path is set but unreadable.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPath := getEnv("DB_PATH", "")
	if dbPath == "" {
		dbPath = getEnv("DATABASE_PATH", "./data/trading.db")
	}

	venueB, err := loadVenueB()
	if err != nil {
		return nil, fmt.Errorf("config: venue B: %w", err)
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         dbPath,
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret"),
		OperatorSecret: getEnv("OPERATOR_SECRET", "dev-operator-secret"),
		Language:       getEnv("LANGUAGE", "en"),

		VenueA: VenueAConfig{
			PrivateKey:    os.Getenv("VENUE_A_PRIVATE_KEY"),
			APIKey:        os.Getenv("VENUE_A_API_KEY"),
			APISecret:     os.Getenv("VENUE_A_API_SECRET"),
			APIPassphrase: os.Getenv("VENUE_A_API_PASSPHRASE"),
			FunderAddress: os.Getenv("VENUE_A_FUNDER_ADDRESS"),
			ChainID:       int64(getEnvInt("VENUE_A_CHAIN_ID", 137)),
			SignatureType: cryptoutil.SigEOA,
			WSURL:         getEnv("VENUE_A_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
			TakerFeeRate:  getEnvFloat("VENUE_A_TAKER_FEE_RATE", 0),
		},
		VenueB: venueB,

		Risk: RiskConfig{
			MaxPositionSizeUsd:        getEnvFloat("RISK_MAX_POSITION_SIZE_USD", 5),
			MaxTotalExposureUsd:       getEnvFloat("RISK_MAX_TOTAL_EXPOSURE_USD", 10),
			MaxDailyLossUsd:           getEnvFloat("RISK_MAX_DAILY_LOSS_USD", 2),
			MaxDrawdownPct:            getEnvFloat("RISK_MAX_DRAWDOWN_PCT", 0.10),
			MinArbitrageSpreadBps:     getEnvFloat("RISK_MIN_ARBITRAGE_SPREAD_BPS", 5),
			CrossPlatformSpreadBuffer: getEnvFloat("RISK_CROSS_PLATFORM_SPREAD_BUFFER", 0.15),
			ApiErrorRateThreshold:     getEnvFloat("RISK_API_ERROR_RATE_THRESHOLD", 0.5),
			ApiErrorWindowSeconds:     getEnvInt("RISK_API_ERROR_WINDOW_SECONDS", 60),
			CheckIntervalMs:           getEnvInt("RISK_CHECK_INTERVAL_MS", 100),
		},

		Trading: TradingConfig{
			PaperTrading:        getEnv("TRADING_PAPER_TRADING", "true") == "true",
			PaperTradingBalance: getEnvFloat("TRADING_PAPER_TRADING_BALANCE", 10000),
			ExecutionTimeoutMs:  getEnvInt("TRADING_EXECUTION_TIMEOUT_MS", 5000),
			OrderRetryAttempts:  getEnvInt("TRADING_ORDER_RETRY_ATTEMPTS", 3),
			OrderRetryDelayMs:   getEnvInt("TRADING_ORDER_RETRY_DELAY_MS", 1000),
			ScanIntervalMs:      getEnvInt("TRADING_SCAN_INTERVAL_MS", 2000),
			CooldownAfterExecMs: getEnvInt("TRADING_COOLDOWN_AFTER_EXECUTION_MS", 3000),
			DebounceMs:          getEnvInt("TRADING_DEBOUNCE_MS", 500),
			TopNTrackedMarkets:  getEnvInt("TRADING_TOP_N_TRACKED_MARKETS", 50),
			MaxSlippageBps:      getEnvFloat("TRADING_MAX_SLIPPAGE_BPS", 200),
		},

		Features: FeatureFlags{
			EnableCrossPlatformArb:  getEnv("FEATURE_ENABLE_CROSS_PLATFORM_ARB", "true") == "true",
			EnableSinglePlatformArb: getEnv("FEATURE_ENABLE_SINGLE_PLATFORM_ARB", "true") == "true",
			EnableWebSocket:         getEnv("FEATURE_ENABLE_WEBSOCKET", "true") == "true",
			EnableEndgame:           getEnv("FEATURE_ENABLE_ENDGAME", "true") == "true",
			EnableImbalance:         getEnv("FEATURE_ENABLE_IMBALANCE", "true") == "true",
			EnableMeanReversion:     getEnv("FEATURE_ENABLE_MEAN_REVERSION", "true") == "true",
			EnableMomentum:          getEnv("FEATURE_ENABLE_MOMENTUM", "true") == "true",
			EnableProbabilitySum:    getEnv("FEATURE_ENABLE_PROBABILITY_SUM", "true") == "true",
		},

		Strategy: StrategyThresholds{
			EndgameMinHoursToRes:          getEnvFloat("STRATEGY_ENDGAME_MIN_HOURS_TO_RES", 0),
			EndgameMaxHoursToRes:          getEnvFloat("STRATEGY_ENDGAME_MAX_HOURS_TO_RES", 24),
			EndgameMinProb:                getEnvFloat("STRATEGY_ENDGAME_MIN_PROB", 0.90),
			EndgameMaxProb:                getEnvFloat("STRATEGY_ENDGAME_MAX_PROB", 0.99),
			EndgameMinAnnualizedReturnPct: getEnvFloat("STRATEGY_ENDGAME_MIN_ANNUALIZED_RETURN_PCT", 20),
			ImbalanceThreshold:            getEnvFloat("STRATEGY_IMBALANCE_THRESHOLD", 3.0),
			MeanReversionTauLow:           getEnvFloat("STRATEGY_MEAN_REVERSION_TAU_LOW", 30),
			MeanReversionTauHigh:          getEnvFloat("STRATEGY_MEAN_REVERSION_TAU_HIGH", 70),
			MomentumTauMomentum:           getEnvFloat("STRATEGY_MOMENTUM_TAU_MOMENTUM", 0.02),
			MomentumTauChange:             getEnvFloat("STRATEGY_MOMENTUM_TAU_CHANGE", 0.05),
			ProbabilitySumEpsilonPercent:  getEnvFloat("STRATEGY_PROBABILITY_SUM_EPSILON_PERCENT", 0.3),
		},
	}, nil
}

func loadVenueB() (VenueBConfig, error) {
	cfg := VenueBConfig{
		APIKeyID:      os.Getenv("VENUE_B_API_KEY_ID"),
		Environment:   getEnv("VENUE_B_ENVIRONMENT", "demo"),
		Host:          getEnv("VENUE_B_HOST", "https://trading-api.kalshi.com"),
		WSURL:         getEnv("VENUE_B_WS_URL", "wss://trading-api.kalshi.com/trade-api/ws/v2"),
		RateLimitTier: getEnv("VENUE_B_RATE_LIMIT_TIER", "kalshi.basic"),
		TakerFeeRate:  getEnvFloat("VENUE_B_TAKER_FEE_RATE", 0),
	}

	if pemPath := os.Getenv("VENUE_B_PRIVATE_KEY_PATH"); pemPath != "" {
		data, err := os.ReadFile(pemPath)
		if err != nil {
			return cfg, fmt.Errorf("read private key path: %w", err)
		}
		cfg.PrivateKeyPEM = data
		return cfg, nil
	}
	if pem := os.Getenv("VENUE_B_PRIVATE_KEY_PEM"); pem != "" {
		cfg.PrivateKeyPEM = []byte(pem)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
