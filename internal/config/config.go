package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DirectoryFile     = "file"
	DirectoryPostgres = "postgres"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Directory
	DirectoryBackend string `envconfig:"DIRECTORY_BACKEND" default:"file"`
	UsersFile        string `envconfig:"USERS_FILE" default:"users.json"`
	DatabaseURL      string `envconfig:"DATABASE_URL"`

	// Extractor
	ExtractorType    string `envconfig:"EXTRACTOR_TYPE" default:"client"`
	DeepFaceURL      string `envconfig:"DEEPFACE_URL" default:"http://localhost:5000"`
	DeepFaceModel    string `envconfig:"DEEPFACE_MODEL" default:"Dlib"`
	DeepFaceDetector string `envconfig:"DEEPFACE_DETECTOR" default:"opencv"`

	// Matching
	MatchProfile string `envconfig:"MATCH_PROFILE" default:"embedding-128"`

	// Sessions
	VerifyDeadline            time.Duration `envconfig:"VERIFY_DEADLINE" default:"5s"`
	PollInterval              time.Duration `envconfig:"POLL_INTERVAL" default:"100ms"`
	EnrollDeadline            time.Duration `envconfig:"ENROLL_DEADLINE" default:"30s"`
	EnrollRequireConfirmation bool          `envconfig:"ENROLL_REQUIRE_CONFIRMATION" default:"true"`
	ConfirmMinConfidence      float64       `envconfig:"CONFIRM_MIN_CONFIDENCE" default:"0"`
	SessionRetention          time.Duration `envconfig:"SESSION_RETENTION" default:"1m"`

	// Audit
	EventLogPath     string `envconfig:"EVENT_LOG_PATH" default:"face_logs.jsonl"`
	EventLogPostgres bool   `envconfig:"EVENT_LOG_POSTGRES" default:"false"`
	WebhookURL       string `envconfig:"WEBHOOK_URL"`
	WebhookSecret    string `envconfig:"WEBHOOK_SECRET"`

	// Security
	JWTSecret    string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL       time.Duration `envconfig:"JWT_TTL" default:"24h"`
	RateLimitMax int           `envconfig:"RATE_LIMIT_MAX" default:"120"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.DirectoryBackend {
	case DirectoryFile:
		if c.UsersFile == "" {
			return fmt.Errorf("USERS_FILE is required for the file directory")
		}
	case DirectoryPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres directory")
		}
	default:
		return fmt.Errorf("unknown DIRECTORY_BACKEND %q (supported: %s, %s)", c.DirectoryBackend, DirectoryFile, DirectoryPostgres)
	}

	if c.EventLogPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when EVENT_LOG_POSTGRES is set")
	}
	if c.PollInterval <= 0 || c.VerifyDeadline <= 0 || c.EnrollDeadline <= 0 {
		return fmt.Errorf("session durations must be positive")
	}
	if c.PollInterval >= c.VerifyDeadline {
		return fmt.Errorf("POLL_INTERVAL (%s) must be shorter than VERIFY_DEADLINE (%s)", c.PollInterval, c.VerifyDeadline)
	}
	if c.ConfirmMinConfidence < 0 || c.ConfirmMinConfidence > 100 {
		return fmt.Errorf("CONFIRM_MIN_CONFIDENCE must be between 0 and 100")
	}
	return nil
}

// UsesPostgres reports whether any component needs a database connection.
func (c *Config) UsesPostgres() bool {
	return c.DirectoryBackend == DirectoryPostgres || c.EventLogPostgres
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
