package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Env          string
	JWTSecret    string

	ChatPath        string
	PingInterval    time.Duration
	PingTimeout     time.Duration
	SendBuffer      int
	MaxMessageBytes int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration

	StatsSchedule  string
	RequestTimeout time.Duration
}

// New sets up all config related services
func New() *Config {
	// a missing .env is fine, the environment wins anyway
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "local")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:          os.Getenv("DB_URI"),
		DatabaseName: os.Getenv("DB_NAME"),
		BaseURL:      os.Getenv("BASE_URL"),
		Port:         getEnv("PORT", "8080"),
		Env:          env,
		JWTSecret:    os.Getenv("JWT_SECRET"),

		ChatPath:        getEnv("CHAT_PATH", "/api/chat"),
		PingInterval:    getDuration("CHAT_PING_INTERVAL", 25*time.Second),
		PingTimeout:     getDuration("CHAT_PING_TIMEOUT", 60*time.Second),
		SendBuffer:      getInt("CHAT_SEND_BUFFER", 256),
		MaxMessageBytes: int64(getInt("CHAT_MAX_MESSAGE_BYTES", 64*1024)),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		PresenceTTL:   getDuration("PRESENCE_TTL", 90*time.Second),

		StatsSchedule:  getEnv("STATS_SCHEDULE", "@every 1m"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
	}
}

// Validate reports the settings the server cannot start without
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if c.URL == "" || c.DatabaseName == "" {
		return fmt.Errorf("DB_URI and DB_NAME must be set")
	}
	if c.PingInterval <= 0 || c.PingTimeout <= 0 {
		return fmt.Errorf("chat ping interval and timeout must be positive")
	}
	return nil
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		zap.S().Warnw("invalid integer in environment, using default",
			"key", key,
			"value", v,
			"default", fallback)
		return fallback
	}
	return i
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		zap.S().Warnw("invalid duration in environment, using default",
			"key", key,
			"value", v,
			"default", fallback)
		return fallback
	}
	return d
}
