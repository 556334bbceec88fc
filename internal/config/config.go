// internal/config/config.go
//
// Environment-driven configuration. main loads .env first (godotenv), then
// calls Load. Any error returned here is fatal at startup.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrMissing is returned when a required variable is unset.
var ErrMissing = errors.New("config: required variable not set")

type Config struct {
	BotToken       string
	OperatorChatID int64 // 0 disables operator alerts

	LogLevel  string
	LogFormat string // "json" or "console"

	WordsFile string // empty uses the embedded list

	StoreBackend string
	StateSaveDir string
	SQLitePath   string
	RedisURI     string
	MongoURI     string
	MongoDB      string

	GameTime      time.Duration
	ExclusiveTime time.Duration

	Port          string
	WebhookURL    string // empty selects long polling
	WebhookSecret string
	PollTimeout   time.Duration

	JWTSecret      string
	JWTExpiresDays int
}

// Load reads the process environment.
func Load() (*Config, error) {
	c := &Config{
		BotToken:      os.Getenv("BOT_TOKEN"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		WordsFile:     os.Getenv("WORDS_FILE"),
		StoreBackend:  getEnv("STORE_BACKEND", "file"),
		StateSaveDir:  getEnv("STATE_SAVE_DIR", "state"),
		SQLitePath:    getEnv("SQLITE_PATH", "crocodile.db"),
		RedisURI:      getEnv("REDIS_URI", "redis://localhost:6379/0"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "crocodile"),
		Port:          getEnv("PORT", "5175"),
		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
	}
	if c.BotToken == "" {
		return nil, fmt.Errorf("%w: BOT_TOKEN", ErrMissing)
	}
	if c.WebhookURL != "" && c.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: WEBHOOK_SECRET (required with WEBHOOK_URL)", ErrMissing)
	}

	var err error
	if c.OperatorChatID, err = getInt64("OPERATOR_CHAT_ID", 0); err != nil {
		return nil, err
	}
	if c.GameTime, err = getSeconds("GAME_TIME", 600); err != nil {
		return nil, err
	}
	if c.ExclusiveTime, err = getSeconds("EXCLUSIVE_TIME", 20); err != nil {
		return nil, err
	}
	if c.PollTimeout, err = getSeconds("POLL_TIMEOUT", 30); err != nil {
		return nil, err
	}
	days, err := getInt64("JWT_EXPIRES_DAYS", 7)
	if err != nil {
		return nil, err
	}
	c.JWTExpiresDays = int(days)
	return c, nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt64(k string, def int64) (int64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", k, err)
	}
	return n, nil
}

func getSeconds(k string, def int64) (time.Duration, error) {
	n, err := getInt64(k, def)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %d", k, n)
	}
	return time.Duration(n) * time.Second, nil
}
