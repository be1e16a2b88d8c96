package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Backend      BackendConfig      `yaml:"backend"`
	Sync         SyncConfig         `yaml:"sync"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Agent        AgentConfig        `yaml:"agent"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Exports      ExportConfig       `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
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

// BackendConfig points at the REST API that queued mutations are replayed against.
// A zero Timeout leaves requests bounded only by their context.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SyncConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	RetentionWindow time.Duration `yaml:"retention_window"`
	ItemDelay       time.Duration `yaml:"item_delay"`
	Interval        time.Duration `yaml:"interval"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
	PurgeInterval   time.Duration `yaml:"purge_interval"`
}

type ConnectivityConfig struct {
	HealthPath    string        `yaml:"health_path"`
	CheckInterval time.Duration `yaml:"check_interval"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
}

type AgentConfig struct {
	Enabled       bool   `yaml:"enabled"`
	WakeQueueKey  string `yaml:"wake_queue_key"`
	EventsChannel string `yaml:"events_channel"`
	DeadLetterKey string `yaml:"dead_letter_key"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads the YAML config at configPath after loading an optional .env file.
// ${VAR} references in the file are expanded from the environment.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
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
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Backend.BaseURL == "" {
		return errors.New("backend base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base_url %q is not an absolute URL", c.Backend.BaseURL)
	}

	if c.Sync.MaxRetries < 1 {
		return errors.New("sync.max_retries must be at least 1")
	}
	if c.Sync.ItemDelay < 0 {
		return errors.New("sync.item_delay must not be negative")
	}

	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return errors.New("logging.output=file requires logging.file_path")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "flightbook-sync"
	}

	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = 3
	}
	if c.Sync.RetentionWindow == 0 {
		c.Sync.RetentionWindow = 24 * time.Hour
	}
	if c.Sync.ItemDelay == 0 {
		c.Sync.ItemDelay = 200 * time.Millisecond
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 5 * time.Minute
	}
	if c.Sync.LockTTL == 0 {
		c.Sync.LockTTL = 2 * time.Minute
	}
	if c.Sync.PurgeInterval == 0 {
		c.Sync.PurgeInterval = time.Hour
	}

	if c.Connectivity.HealthPath == "" {
		c.Connectivity.HealthPath = "/api/health"
	}
	if c.Connectivity.CheckInterval == 0 {
		c.Connectivity.CheckInterval = 15 * time.Second
	}
	if c.Connectivity.MaxBackoff == 0 {
		c.Connectivity.MaxBackoff = 2 * time.Minute
	}

	if c.Agent.WakeQueueKey == "" {
		c.Agent.WakeQueueKey = "sync:wake"
	}
	if c.Agent.EventsChannel == "" {
		c.Agent.EventsChannel = "sync:events"
	}
	if c.Agent.DeadLetterKey == "" {
		c.Agent.DeadLetterKey = "sync:deadletter"
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
