package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// Database
	PostgresDSN string // пусто — ledger в памяти (только для локального запуска)
	RedisURL    string

	// Ledger
	TokenAccountID   string   // кошелёк, с которого выплачиваются токены
	DepositWhitelist []string // начальный whitelist, применяется при старте

	// TON
	TONHotWalletAddress    string
	TONHotWalletSeed       string // 24 слова через пробел
	TONNetwork             string // mainnet/testnet
	LiteServerHost         string
	LiteServerPort         int
	LiteServerKey          string
	TONProofAllowedDomains []string // домены, разрешённые в TON Proof

	// Transfers
	TransferTimeout    time.Duration
	TransferRetryAfter time.Duration // pending дольше этого — повторная отправка
	TransferRetryBatch int

	// Indexer
	IndexerPollInterval time.Duration
	IndexerBatchSize    int

	// Worker
	RetryStaleCron   string
	RefreshGaugeCron string

	// Auth
	JWTSecret     string
	JWTExpiration time.Duration // время жизни JWT токена

	// Server
	APIPort        string
	WorkerPort     string
	MigrationsDir  string
	RateLimitRPM   int
	AllowedOrigins string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		PostgresDSN: getEnv("POSTGRES_DSN", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		TokenAccountID:   getEnv("TOKEN_ACCOUNT_ID", ""),
		DepositWhitelist: parseList(getEnv("DEPOSIT_WHITELIST", "")),

		TONHotWalletAddress:    getEnv("TON_HOT_WALLET_ADDRESS", ""),
		TONHotWalletSeed:       getEnv("TON_HOT_WALLET_SEED", ""),
		TONNetwork:             getEnv("TON_NETWORK", "testnet"),
		LiteServerHost:         getEnv("LITE_SERVER_HOST", ""),
		LiteServerPort:         getEnvInt("LITE_SERVER_PORT", 4443),
		LiteServerKey:          getEnv("LITE_SERVER_KEY", ""),
		TONProofAllowedDomains: parseList(getEnv("TON_PROOF_ALLOWED_DOMAINS", "")),

		TransferTimeout:    getEnvDuration("TRANSFER_TIMEOUT", 60*time.Second),
		TransferRetryAfter: getEnvDuration("TRANSFER_RETRY_AFTER", 10*time.Minute),
		TransferRetryBatch: getEnvInt("TRANSFER_RETRY_BATCH", 50),

		IndexerPollInterval: getEnvDuration("INDEXER_POLL_INTERVAL", 5*time.Second),
		IndexerBatchSize:    getEnvInt("INDEXER_BATCH_SIZE", 20),

		RetryStaleCron:   getEnv("RETRY_STALE_CRON", "@every 1m"),
		RefreshGaugeCron: getEnv("REFRESH_GAUGE_CRON", "@every 30s"),

		JWTSecret:     getEnv("JWT_SECRET", "change-me-in-production"),
		JWTExpiration: time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,

		APIPort:        getEnv("API_PORT", "3000"),
		WorkerPort:     getEnv("WORKER_PORT", "3001"),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", ""),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 120),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
	}

	if cfg.TokenAccountID == "" {
		cfg.TokenAccountID = cfg.TONHotWalletAddress
	}

	return cfg
}

// UseMemoryStore reports whether the ledger runs without Postgres.
func (c *Config) UseMemoryStore() bool {
	return c.PostgresDSN == ""
}

func (c *Config) Validate(log *zap.Logger) {
	if c.UseMemoryStore() {
		log.Warn("POSTGRES_DSN is not set, ledger state is kept in memory")
	}
	if c.TONHotWalletSeed == "" {
		log.Warn("TON_HOT_WALLET_SEED is not set, payouts will fail")
	}
	if len(c.DepositWhitelist) == 0 {
		log.Warn("DEPOSIT_WHITELIST is empty, nobody can fund lockups")
	}
	if c.JWTSecret == "change-me-in-production" {
		log.Warn("JWT_SECRET is default, change in production")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

// getEnvDuration accepts Go durations ("90s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return v
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
