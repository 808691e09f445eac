// Package config loads SDK configuration from environment / .env file.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the SDK needs at construction time.
type Config struct {
	// Chain / signer
	PrivateKey      string
	WalletAddress   string
	ChainID         int64
	RPCURL          string
	ContractAddress string

	// Scanning / recovery timing (spec §5)
	BatchSize       uint64
	InterBatchPause time.Duration
	InterIterPause  time.Duration
	IdleSleep       time.Duration
	ReceiptTimeout  time.Duration
	RecoverOnStart  bool

	// Retry envelope (spec §5)
	RetryAttempts  int
	RetryBaseDelay time.Duration

	// Storage
	StorageDir string

	LogLevel string
}

// Load reads .env (if present) then overrides from OS env vars.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using OS environment")
	}

	return &Config{
		PrivateKey:      getEnv("PRIVATE_KEY", ""),
		WalletAddress:   getEnv("WALLET_ADDRESS", ""),
		ChainID:         getEnvInt64("CHAIN_ID", 1),
		RPCURL:          getEnv("RPC_URL", "http://127.0.0.1:8545"),
		ContractAddress: getEnv("CONTRACT_ADDRESS", ""),

		BatchSize:       getEnvUint64("BATCH_SIZE", 1000),
		InterBatchPause: time.Duration(getEnvInt("INTER_BATCH_PAUSE_MS", 50)) * time.Millisecond,
		InterIterPause:  time.Duration(getEnvInt("INTER_ITER_PAUSE_MS", 100)) * time.Millisecond,
		IdleSleep:       time.Duration(getEnvInt("IDLE_SLEEP_SEC", 5)) * time.Second,
		ReceiptTimeout:  time.Duration(getEnvInt("RECEIPT_TIMEOUT_SEC", 60)) * time.Second,
		RecoverOnStart:  getEnvBool("RECOVER_ON_START", true),

		RetryAttempts:  getEnvInt("RETRY_ATTEMPTS", 3),
		RetryBaseDelay: time.Duration(getEnvInt("RETRY_BASE_DELAY_SEC", 1)) * time.Second,

		StorageDir: getEnv("STORAGE_DIR", "./lasergun_data"),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}
}

// ── Helpers ──────────────────────────────────────────────────────────────

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvUint64(key string, fallback uint64) uint64 {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseUint(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		return strings.ToLower(v) == "true"
	}
	return fallback
}
