package conf

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config represents application configuration
type Config struct {
	// Bot configuration
	Bot BotConfig

	// Store configuration
	Store StoreConfig

	// Cache configuration
	Cache CacheConfig

	// Engine configuration
	Engine EngineConfig

	// API configuration
	API APIConfig
}

// BotConfig contains trigger and coordinator configuration
type BotConfig struct {
	InvocationPhrase  string
	BotUserID         string
	HelpChannelID     string
	StalenessSeconds  int
	SweepIntervalSec  int
	SeenSetCapacity   int
	Workers           int
	MaxContext        int
	GenerationTimeout int // seconds
}

// StoreConfig contains message store configuration
type StoreConfig struct {
	Backend          string // "memory", "sqlite" or "firestore"
	SQLitePath       string
	FirestoreProject string
}

// CacheConfig contains response cache configuration
type CacheConfig struct {
	TTLSeconds int
}

// EngineConfig contains answer engine configuration
type EngineConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// APIConfig contains HTTP API configuration
type APIConfig struct {
	Port int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	sqlitePath := os.Getenv("RAGBOT_SQLITE_PATH")
	if sqlitePath == "" {
		homeDir, _ := os.UserHomeDir()
		sqlitePath = filepath.Join(homeDir, ".ragbot", "messages.db")
	}

	return &Config{
		Bot: BotConfig{
			InvocationPhrase:  getEnv("RAGBOT_INVOCATION_PHRASE", "hey chatbot"),
			BotUserID:         os.Getenv("BOT_USER_ID"),
			HelpChannelID:     getEnv("RAGBOT_HELP_CHANNEL", "help"),
			StalenessSeconds:  getIntEnv("RAGBOT_STALENESS_SECONDS", 300),
			SweepIntervalSec:  getIntEnv("RAGBOT_SWEEP_INTERVAL_SECONDS", 150),
			SeenSetCapacity:   getIntEnv("RAGBOT_SEEN_CAPACITY", 1000),
			Workers:           getIntEnv("RAGBOT_WORKERS", 4),
			MaxContext:        getIntEnv("RAGBOT_MAX_CONTEXT", 5),
			GenerationTimeout: getIntEnv("RAGBOT_GENERATION_TIMEOUT_SECONDS", 60),
		},
		Store: StoreConfig{
			Backend:          getEnv("RAGBOT_STORE_BACKEND", "sqlite"),
			SQLitePath:       sqlitePath,
			FirestoreProject: os.Getenv("RAGBOT_FIRESTORE_PROJECT"),
		},
		Cache: CacheConfig{
			TTLSeconds: getIntEnv("RAGBOT_CACHE_TTL_SECONDS", 3600),
		},
		Engine: EngineConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		API: APIConfig{
			Port: getIntEnv("RAGBOT_API_PORT", 8000),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
