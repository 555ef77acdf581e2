package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"studiobook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	RemoteModeLive    = "live"
	RemoteModeOffline = "offline"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Site       SiteConfig       `yaml:"site"`
	Remote     RemoteConfig     `yaml:"remote"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Slots      []string         `yaml:"slots"`
	Packages   []models.Package `yaml:"packages"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// SiteConfig configures the public booking API used by the website.
type SiteConfig struct {
	Port              int      `yaml:"port"`
	CORSOrigins       []string `yaml:"cors_origins"`
	SubmitLimit       int      `yaml:"submit_limit"`
	SubmitWindow      int      `yaml:"submit_window"` // seconds
	MaxAdvanceDays    int      `yaml:"max_advance_days"`
	UpcomingDays      int      `yaml:"upcoming_days"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
	ReleaseMode       bool     `yaml:"release_mode"`
	AllowPastBookings bool     `yaml:"allow_past_bookings"`
}

// RemoteConfig points the booking store at the backend booking service.
type RemoteConfig struct {
	Mode       string `yaml:"mode"` // live or offline
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	APIExtra   string `yaml:"api_extra"`
	Timeout    int    `yaml:"timeout"`     // seconds
	RetryAfter int    `yaml:"retry_after"` // seconds
	CacheTTL   int    `yaml:"cache_ttl"`   // seconds, 0 disables the redis cache
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	BookingSpreadSheetID string `yaml:"bookings_spreadsheet_id"`
	SheetName            string `yaml:"sheet_name"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Remote.Mode {
	case RemoteModeLive:
		if strings.TrimSpace(c.Remote.BaseURL) == "" {
			return errors.New("remote.base_url is required in live mode")
		}
	case RemoteModeOffline:
	default:
		return fmt.Errorf("unknown remote.mode %q", c.Remote.Mode)
	}

	if c.API.Enabled && c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if err := ValidateSlots(c.Slots); err != nil {
		return err
	}
	return ValidatePackages(c.Packages)
}

func ValidateSlots(slots []string) error {
	if len(slots) == 0 {
		return errors.New("at least one time slot is required")
	}
	seen := make(map[string]bool, len(slots))
	for _, s := range slots {
		if strings.TrimSpace(s) == "" {
			return errors.New("empty time slot")
		}
		if seen[s] {
			return fmt.Errorf("duplicate time slot: %s", s)
		}
		seen[s] = true
	}
	return nil
}

func ValidatePackages(pkgs []models.Package) error {
	ids := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		if p.ID == "" {
			return fmt.Errorf("package '%s' has empty id", p.Title)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate package id found: %s", p.ID)
		}
		ids[p.ID] = true
	}
	return nil
}

// RemoteTimeout is the per call deadline for the backend booking service.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.Timeout) * time.Second
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "studiobook"
	}
	if c.Remote.Mode == "" {
		c.Remote.Mode = RemoteModeLive
		if c.Remote.BaseURL == "" {
			c.Remote.Mode = RemoteModeOffline
		}
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = 5
	}
	if c.Remote.RetryAfter == 0 {
		c.Remote.RetryAfter = 30
	}

	if c.Database.Path == "" {
		c.Database.Path = "data/studiobook.db"
	}

	if c.Site.Port == 0 {
		c.Site.Port = 8000
	}
	if len(c.Site.CORSOrigins) == 0 {
		c.Site.CORSOrigins = []string{"*"}
	}
	if c.Site.SubmitLimit == 0 {
		c.Site.SubmitLimit = 5
	}
	if c.Site.SubmitWindow == 0 {
		c.Site.SubmitWindow = 60
	}
	if c.Site.MaxAdvanceDays == 0 {
		c.Site.MaxAdvanceDays = 365
	}
	if c.Site.UpcomingDays == 0 {
		c.Site.UpcomingDays = models.DefaultUpcomingDays
	}

	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Google.SheetName == "" {
		c.Google.SheetName = "Bookings"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}

	if len(c.Slots) == 0 {
		c.Slots = append([]string(nil), models.DefaultTimeSlots...)
	}
	if len(c.Packages) == 0 {
		c.Packages = append([]models.Package(nil), models.DefaultPackages...)
	}
}
