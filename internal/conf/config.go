// Package conf loads the service settings from defaults, an optional
// config.yaml, a .env file and environment variables.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

// Database backends.
const (
	DatabaseSQLite   = "sqlite"
	DatabaseMySQL    = "mysql"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongodb"
)

// Settings contains all configuration options for the service.
type Settings struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`

	Server    ServerSettings       `mapstructure:"server" yaml:"server"`
	Database  DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Wikidata  WikidataSettings     `mapstructure:"wikidata" yaml:"wikidata"`
	Cache     CacheSettings        `mapstructure:"cache" yaml:"cache"`
	Scheduler SchedulerSettings    `mapstructure:"scheduler" yaml:"scheduler"`
	Redis     RedisSettings        `mapstructure:"redis" yaml:"redis"`
	Sentry    SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
	Logging   logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerSettings configures the HTTP facade.
type ServerSettings struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"readtimeout" yaml:"readtimeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"writetimeout" yaml:"writetimeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdowntimeout" yaml:"shutdowntimeout" validate:"gte=0"`
	AllowedOrigins  []string      `mapstructure:"allowedorigins" yaml:"allowedorigins"`
}

// DatabaseSettings selects and configures the entry store.
type DatabaseSettings struct {
	Type               string        `mapstructure:"type" yaml:"type" validate:"oneof=sqlite mysql postgres mongodb"`
	SlowQueryThreshold time.Duration `mapstructure:"slowquerythreshold" yaml:"slowquerythreshold"`
	SQLite             struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL struct {
		Host     string `mapstructure:"host" yaml:"host"`
		Port     string `mapstructure:"port" yaml:"port"`
		Username string `mapstructure:"username" yaml:"username"`
		Password string `mapstructure:"password" yaml:"password"`
		Database string `mapstructure:"database" yaml:"database"`
	} `mapstructure:"mysql" yaml:"mysql"`
	Postgres struct {
		DSN string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"postgres" yaml:"postgres"`
	Mongo struct {
		URI        string        `mapstructure:"uri" yaml:"uri"`
		Database   string        `mapstructure:"database" yaml:"database"`
		Collection string        `mapstructure:"collection" yaml:"collection"`
		Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"mongo" yaml:"mongo"`
}

// WikidataSettings configures the upstream query client.
type WikidataSettings struct {
	Endpoint      string        `mapstructure:"endpoint" yaml:"endpoint" validate:"required,url"`
	UserAgent     string        `mapstructure:"useragent" yaml:"useragent"`
	Language      string        `mapstructure:"language" yaml:"language" validate:"required"`
	QueryLimit    int           `mapstructure:"querylimit" yaml:"querylimit" validate:"min=1"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	CacheTTL      time.Duration `mapstructure:"cachettl" yaml:"cachettl" validate:"gt=0"`
	MaxAttempts   int           `mapstructure:"maxattempts" yaml:"maxattempts" validate:"min=1,max=10"`
	RetryDelay    time.Duration `mapstructure:"retrydelay" yaml:"retrydelay" validate:"gte=0"`
	MaxRetryAfter time.Duration `mapstructure:"maxretryafter" yaml:"maxretryafter" validate:"gte=0"`
	RateLimit     float64       `mapstructure:"ratelimit" yaml:"ratelimit" validate:"gte=0"`
	RateBurst     int           `mapstructure:"rateburst" yaml:"rateburst" validate:"gte=0"`
}

// CacheSettings configures the cache service.
type CacheSettings struct {
	MinEntriesPerCategory int  `mapstructure:"minentriespercategory" yaml:"minentriespercategory" validate:"min=1"`
	DefaultSampleSize     int  `mapstructure:"defaultsamplesize" yaml:"defaultsamplesize" validate:"min=1"`
	RequireImage          bool `mapstructure:"requireimage" yaml:"requireimage"`
	RandomEntryAttempts   int  `mapstructure:"randomentryattempts" yaml:"randomentryattempts" validate:"min=1,max=10"`
	WarmOnStart           bool `mapstructure:"warmonstart" yaml:"warmonstart"`
}

// SchedulerSettings configures the periodic stock refill.
type SchedulerSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// RedisSettings enables the shared top-up lock.
type RedisSettings struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db" validate:"gte=0"`
	LockTTL  time.Duration `mapstructure:"lockttl" yaml:"lockttl"`
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into a new Settings using the global viper
// instance, where the command line flags are bound.
func Load() (*Settings, error) {
	settings, err := LoadFrom(viper.GetViper())
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// LoadFrom reads the configuration through v.
func LoadFrom(v *viper.Viper) (*Settings, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.Newf("error unmarshaling config into struct: %w", err).
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Setting returns the settings of the last successful Load, or nil.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// loadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Newf("error loading .env file: %w", err).
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	return nil
}

// readConfigFile reads config.yaml from --config or the default paths. A
// missing file is not an error.
func readConfigFile(v *viper.Viper) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range GetDefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Newf("fatal error reading config file: %w", err).
			Category(errors.CategoryConfiguration).
			Context("path", v.ConfigFileUsed()).
			Component("conf").
			Build()
	}
	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wikidata-cache"))
	}
	return append(paths, "/etc/wikidata-cache")
}

// SaveYAMLConfig writes settings to configPath atomically.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
