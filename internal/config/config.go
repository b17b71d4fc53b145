// Package config loads the service settings from the environment and an optional .env file.
package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Settings holds every tunable of the service.
type Settings struct {
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	RunAddress    string `env:"SERVER_RUN_ADDRESS" envDefault:"0.0.0.0:8080"`
	DatabaseURI   string `env:"DATABASE_URI" envDefault:"host=db user=postgres password=password dbname=voka sslmode=disable"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"supersecretkey"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"72h"`

	DefaultHearts  int `env:"DEFAULT_HEARTS" envDefault:"5"`
	DefaultCredits int `env:"DEFAULT_CREDITS" envDefault:"3"`

	ScoreWindow time.Duration `env:"SCORE_WINDOW" envDefault:"60s"`

	QuizBatchSize         int           `env:"QUIZ_BATCH_SIZE" envDefault:"20"`
	QuizPrefetchThreshold int           `env:"QUIZ_PREFETCH_THRESHOLD" envDefault:"5"`
	QuizFetchTimeout      time.Duration `env:"QUIZ_FETCH_TIMEOUT" envDefault:"10s"`
	QuizSessionTTL        time.Duration `env:"QUIZ_SESSION_TTL" envDefault:"2h"`

	PayOSBaseURL     string `env:"PAYOS_BASE_URL" envDefault:"https://api-merchant.payos.vn"`
	PayOSClientID    string `env:"PAYOS_CLIENT_ID"`
	PayOSAPIKey      string `env:"PAYOS_API_KEY"`
	PayOSChecksumKey string `env:"PAYOS_CHECKSUM_KEY"`
	PaymentReturnURL string `env:"PAYMENT_RETURN_URL" envDefault:"https://voka.app/payment/success"`
	PaymentCancelURL string `env:"PAYMENT_CANCEL_URL" envDefault:"https://voka.app/payment/cancel"`

	ZaloGraphURL  string `env:"ZALO_GRAPH_URL" envDefault:"https://graph.zalo.me"`
	ZaloAppSecret string `env:"ZALO_APP_SECRET"`

	// SandboxMode enables the provider's test webhook and the hearts reset route.
	// Never enable it in production.
	SandboxMode bool `env:"SANDBOX_MODE" envDefault:"false"`

	LeaderboardCacheTTL time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"30s"`
}

var (
	LogLevel         string
	ServerRunAddress string
	DatabaseURI      string

	// Current is the fully parsed configuration.
	Current Settings
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	if err := env.Parse(&Current); err != nil {
		log.Printf("Failed to parse environment, using defaults: %s", err)
	}

	LogLevel = Current.LogLevel
	ServerRunAddress = Current.RunAddress
	DatabaseURI = Current.DatabaseURI
}
