package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Server holds the profile API settings, read from the environment
type Server struct {
	Port        string `envconfig:"PORT" default:"8787"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:8787"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"720h"`

	// DBDriver is "postgres" or "sqlite"
	DBDriver    string `envconfig:"DB_DRIVER" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      string `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" default:"postgres"`
	DBPassword  string `envconfig:"DB_PASSWORD"`
	DBName      string `envconfig:"DB_NAME" default:"sidechain"`
	DBPath      string `envconfig:"DB_PATH" default:"profiles.db"`

	RedisHost     string        `envconfig:"REDIS_HOST"`
	RedisPort     string        `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	ProfileTTL    time.Duration `envconfig:"PROFILE_CACHE_TTL" default:"5m"`

	StreamAPIKey    string `envconfig:"STREAM_API_KEY"`
	StreamAPISecret string `envconfig:"STREAM_API_SECRET"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE" default:"server.log"`

	OTelEnabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTelEndpoint     string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	OTelSamplingRate float64 `envconfig:"OTEL_SAMPLING_RATE" default:"1.0"`
}

// LoadServer reads an optional .env file and then the process environment.
// Values already set in the environment win over the .env file.
func LoadServer(envFiles ...string) (*Server, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// missing .env is normal outside development
		_ = godotenv.Load(f)
	}

	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	return &cfg, nil
}

// PostgresDSN builds a DSN from the DB_* settings unless DATABASE_URL is set
func (s *Server) PostgresDSN() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		s.DBHost, s.DBPort, s.DBUser, s.DBPassword, s.DBName)
}

// IsProduction reports whether the server runs in production mode
func (s *Server) IsProduction() bool {
	return s.Environment == "production"
}
