package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the oct-review-service settings.
// Values come from defaults, then an optional YAML file, then environment variables.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Media    MediaConfig    `yaml:"media"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Reports  ReportsConfig  `yaml:"reports"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	BodyLimitMB     int           `yaml:"body_limit_mb"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
}

// StoreConfig selects the patient repository backend.
type StoreConfig struct {
	Driver      string `yaml:"driver"`       // memory | file | redis | postgres
	DocumentKey string `yaml:"document_key"` // key holding the serialized patient list
	Dir         string `yaml:"dir"`          // used by the file driver
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

// DSN returns the lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// MediaConfig selects where uploaded scans, masks and rendered reports live.
type MediaConfig struct {
	Driver    string `yaml:"driver"` // local | s3
	LocalPath string `yaml:"local_path"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Region  string `yaml:"s3_region"`
	S3Prefix  string `yaml:"s3_prefix"`
}

// AnalysisConfig selects the analyzer implementation.
type AnalysisConfig struct {
	Mode      string        `yaml:"mode"` // mock | http
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	MockDelay time.Duration `yaml:"mock_delay"`
}

type ViewerConfig struct {
	MinScale          float64 `yaml:"min_scale"`
	MaxScale          float64 `yaml:"max_scale"`
	ZoomFactor        float64 `yaml:"zoom_factor"`
	WheelStep         float64 `yaml:"wheel_step"`
	MaxViewportHeight int     `yaml:"max_viewport_height"`
	DefaultOpacity    int     `yaml:"default_opacity"`
	// SessionTTL closes sessions idle for longer.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type ReportsConfig struct {
	// StatusTTL is how long a finished export status stays queryable.
	StatusTTL time.Duration `yaml:"status_ttl"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.ShutdownTimeout = 5 * time.Second
	cfg.HTTP.BodyLimitMB = 32

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	cfg.Store.Driver = "file"
	cfg.Store.DocumentKey = "patients_data"
	cfg.Store.Dir = "data"

	cfg.Redis.Addr = "localhost:6379"

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "oct_review"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10

	cfg.Media.Driver = "local"
	cfg.Media.LocalPath = "data/media"

	cfg.Analysis.Mode = "mock"
	cfg.Analysis.BaseURL = "http://localhost:5000/api"
	cfg.Analysis.Timeout = 30 * time.Second
	cfg.Analysis.MockDelay = 2 * time.Second

	cfg.Viewer.MinScale = 0.5
	cfg.Viewer.MaxScale = 8
	cfg.Viewer.ZoomFactor = 1.25
	cfg.Viewer.WheelStep = 0.1
	cfg.Viewer.MaxViewportHeight = 900
	cfg.Viewer.DefaultOpacity = 60
	cfg.Viewer.SessionTTL = 30 * time.Minute

	cfg.Reports.StatusTTL = time.Hour
	return cfg
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment variables are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.ShutdownTimeout = parseDuration(getEnv("HTTP_SHUTDOWN_TIMEOUT", ""), c.HTTP.ShutdownTimeout)
	c.HTTP.BodyLimitMB = parseInt(getEnv("HTTP_BODY_LIMIT_MB", ""), c.HTTP.BodyLimitMB)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DocumentKey = getEnv("STORE_DOCUMENT_KEY", c.Store.DocumentKey)
	c.Store.Dir = getEnv("STORE_DIR", c.Store.Dir)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = parseInt(getEnv("REDIS_DB", ""), c.Redis.DB)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = parseInt(getEnv("DB_PORT", ""), c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Media.Driver = getEnv("MEDIA_DRIVER", c.Media.Driver)
	c.Media.LocalPath = getEnv("MEDIA_LOCAL_PATH", c.Media.LocalPath)
	c.Media.S3Bucket = getEnv("MEDIA_S3_BUCKET", c.Media.S3Bucket)
	c.Media.S3Region = getEnv("MEDIA_S3_REGION", c.Media.S3Region)
	c.Media.S3Prefix = getEnv("MEDIA_S3_PREFIX", c.Media.S3Prefix)

	c.Analysis.Mode = getEnv("ANALYSIS_MODE", c.Analysis.Mode)
	c.Analysis.BaseURL = getEnv("ANALYSIS_BASE_URL", c.Analysis.BaseURL)
	c.Analysis.Timeout = parseDuration(getEnv("ANALYSIS_TIMEOUT", ""), c.Analysis.Timeout)
	c.Analysis.MockDelay = parseDuration(getEnv("ANALYSIS_MOCK_DELAY", ""), c.Analysis.MockDelay)

	c.Viewer.MaxViewportHeight = parseInt(getEnv("VIEWER_MAX_HEIGHT", ""), c.Viewer.MaxViewportHeight)
	c.Viewer.DefaultOpacity = parseInt(getEnv("VIEWER_DEFAULT_OPACITY", ""), c.Viewer.DefaultOpacity)
	c.Viewer.SessionTTL = parseDuration(getEnv("VIEWER_SESSION_TTL", ""), c.Viewer.SessionTTL)

	c.Reports.StatusTTL = parseDuration(getEnv("REPORT_STATUS_TTL", ""), c.Reports.StatusTTL)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
