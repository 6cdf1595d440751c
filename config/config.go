package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all settings read from the environment.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"8081"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// DefaultTenant is used when a request carries no tenant header.
	DefaultTenant string `envconfig:"DEFAULT_TENANT" default:"diku"`
	// CentralTenant enables consortium lookups. Empty means no consortium.
	CentralTenant    string `envconfig:"CENTRAL_TENANT"`
	SeedLinkingRules bool   `envconfig:"SEED_LINKING_RULES" default:"true"`

	AuthoritySearchURL     string        `envconfig:"AUTHORITY_SEARCH_URL"`
	AuthoritySearchTimeout time.Duration `envconfig:"AUTHORITY_SEARCH_TIMEOUT" default:"10s"`

	ReportsS3URL    string `envconfig:"REPORTS_S3_URL"`
	ReportsS3Region string `envconfig:"REPORTS_S3_REGION" default:"us-east-1"`
	ReportsS3Key    string `envconfig:"REPORTS_S3_KEY"`
	ReportsS3Secret string `envconfig:"REPORTS_S3_SECRET"`
	ReportsS3Bucket string `envconfig:"REPORTS_S3_BUCKET"`
	ReportsS3Prefix string `envconfig:"REPORTS_S3_PREFIX" default:"link-reports/"`

	ReportsCronSchedule string `envconfig:"REPORTS_CRON_SCHEDULE" default:"@every 1m"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ReportsEnabled reports whether the S3 report inbox is configured.
func (c *Config) ReportsEnabled() bool {
	return c.ReportsS3Bucket != ""
}

// Load reads the configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
