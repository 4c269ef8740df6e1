package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Mongo         MongoConfig         `json:"mongo"`
	Security      SecurityConfig      `json:"security"`
	Logging       LoggingConfig       `json:"logging"`
	Verification  VerificationConfig  `json:"verification"`
	Scheduler     SchedulerConfig     `json:"scheduler"`
	Notifications NotificationsConfig `json:"notifications"`
	Audit         AuditConfig         `json:"audit"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	Mode           string        `json:"mode"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	IdleTimeout    time.Duration `json:"idle_timeout"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// MongoConfig points at the optional audit database
type MongoConfig struct {
	URI             string        `json:"uri"`
	Database        string        `json:"database"`
	AuditCollection string        `json:"audit_collection"`
	ConnectTimeout  time.Duration `json:"connect_timeout"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
	// Format is "json" or "console"
	Format      string `json:"format"`
	Development bool   `json:"development"`
}

// VerificationConfig tunes assignment and rebalancing
type VerificationConfig struct {
	RequireSpecialty  bool   `json:"require_specialty"`
	MaxWorkload       *int   `json:"max_workload,omitempty"`
	PriorityBoost     bool   `json:"priority_boost"`
	StatsConcurrency  int    `json:"stats_concurrency"`
	RebalanceSchedule string `json:"rebalance_schedule"`
	RebalanceMaxDiff  int    `json:"rebalance_max_diff"`
}

// SchedulerConfig controls the job runner
type SchedulerConfig struct {
	Enabled      bool          `json:"enabled"`
	PollInterval time.Duration `json:"poll_interval"`
	BatchSize    int           `json:"batch_size"`
	MaxAttempts  int           `json:"max_attempts"`
	RetryDelay   time.Duration `json:"retry_delay"`
	JobTimeout   time.Duration `json:"job_timeout"`
}

// NotificationsConfig selects delivery channels. Email and SMS need AWS credentials
// from the default chain.
type NotificationsConfig struct {
	AWSRegion    string   `json:"aws_region"`
	EmailEnabled bool     `json:"email_enabled"`
	EmailFrom    string   `json:"email_from"`
	SMSEnabled   bool     `json:"sms_enabled"`
	SMSKinds     []string `json:"sms_kinds"`
}

// Audit backends
const (
	AuditBackendPostgres = "postgres"
	AuditBackendMongo    = "mongo"
)

// AuditConfig selects where the audit trail is written
type AuditConfig struct {
	Backend string `json:"backend"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "carbonscribe_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
			AutoMigrate:    true,
		},
		Mongo: MongoConfig{
			Database:        "carbonscribe_audit",
			AuditCollection: "verification_audit",
			ConnectTimeout:  10 * time.Second,
		},
		Security: SecurityConfig{
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Verification: VerificationConfig{
			RequireSpecialty:  true,
			PriorityBoost:     true,
			StatsConcurrency:  8,
			RebalanceSchedule: "0 0 2 * * *",
			RebalanceMaxDiff:  2,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			PollInterval: 30 * time.Second,
			BatchSize:    20,
			MaxAttempts:  3,
			RetryDelay:   5 * time.Minute,
			JobTimeout:   2 * time.Minute,
		},
		Notifications: NotificationsConfig{
			AWSRegion: "us-east-1",
			SMSKinds:  []string{"verification_overdue"},
		},
		Audit: AuditConfig{
			Backend: AuditBackendPostgres,
		},
	}
}

// LoadConfig loads configuration from file and environment variables. A
// missing file is not an error; a malformed one is.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnvFile loads KEY=value pairs into the environment without overriding
// variables that are already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func overrideWithEnv(config *Config) error {
	var errs []string
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	list := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			var out []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			*dst = out
		}
	}

	str("SERVER_HOST", &config.Server.Host)
	integer("SERVER_PORT", &config.Server.Port)
	str("GIN_MODE", &config.Server.Mode)
	list("ALLOWED_ORIGINS", &config.Server.AllowedOrigins)

	str("DATABASE_HOST", &config.Database.Host)
	integer("DATABASE_PORT", &config.Database.Port)
	str("DATABASE_USER", &config.Database.User)
	str("DATABASE_PASSWORD", &config.Database.Password)
	str("DATABASE_DBNAME", &config.Database.DBName)
	str("DATABASE_SSLMODE", &config.Database.SSLMode)
	boolean("DATABASE_AUTO_MIGRATE", &config.Database.AutoMigrate)

	str("MONGO_URI", &config.Mongo.URI)
	str("MONGO_DATABASE", &config.Mongo.Database)

	str("JWT_SECRET", &config.Security.JWTSecret)
	duration("JWT_TTL", &config.Security.TokenTTL)

	str("LOG_LEVEL", &config.Logging.Level)
	str("LOG_FORMAT", &config.Logging.Format)
	boolean("LOG_DEVELOPMENT", &config.Logging.Development)

	boolean("VERIFICATION_REQUIRE_SPECIALTY", &config.Verification.RequireSpecialty)
	str("VERIFICATION_REBALANCE_SCHEDULE", &config.Verification.RebalanceSchedule)
	integer("VERIFICATION_REBALANCE_MAX_DIFF", &config.Verification.RebalanceMaxDiff)
	if v := os.Getenv("VERIFICATION_MAX_WORKLOAD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("VERIFICATION_MAX_WORKLOAD: %v", err))
		} else {
			config.Verification.MaxWorkload = &n
		}
	}

	boolean("SCHEDULER_ENABLED", &config.Scheduler.Enabled)
	duration("SCHEDULER_POLL_INTERVAL", &config.Scheduler.PollInterval)
	integer("SCHEDULER_MAX_ATTEMPTS", &config.Scheduler.MaxAttempts)

	str("AWS_REGION", &config.Notifications.AWSRegion)
	boolean("NOTIFICATIONS_EMAIL_ENABLED", &config.Notifications.EmailEnabled)
	str("NOTIFICATIONS_EMAIL_FROM", &config.Notifications.EmailFrom)
	boolean("NOTIFICATIONS_SMS_ENABLED", &config.Notifications.SMSEnabled)
	list("NOTIFICATIONS_SMS_KINDS", &config.Notifications.SMSKinds)

	str("AUDIT_BACKEND", &config.Audit.Backend)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the settings the services cannot start without
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server port %d out of range", c.Server.Port))
	}
	if c.Security.JWTSecret == "" {
		problems = append(problems, "jwt secret is required")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}
	switch c.Audit.Backend {
	case AuditBackendPostgres:
	case AuditBackendMongo:
		if c.Mongo.URI == "" {
			problems = append(problems, "mongo uri is required for the mongo audit backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown audit backend %q", c.Audit.Backend))
	}
	if c.Verification.RebalanceMaxDiff < 0 {
		problems = append(problems, "rebalance max diff must not be negative")
	}
	if c.Verification.MaxWorkload != nil && *c.Verification.MaxWorkload < 0 {
		problems = append(problems, "max workload must not be negative")
	}
	if c.Notifications.EmailEnabled && c.Notifications.EmailFrom == "" {
		problems = append(problems, "email sender is required when email is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
