// Package config provides the daemon settings for handyman using spf13/viper.
// All settings access goes through this package. The per-check configuration
// files read by the service live in internal/configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Exported configuration keys
const (
	LogLevelKey = "log_level"

	AppVersionKey = "app.version"

	ConfigDirKey = "handyman.config_dir"
	ShellKey     = "handyman.shell"

	TelemetryServiceNameKey     = "telemetry.service_name"
	TelemetryTracingExporterKey = "telemetry.tracing.exporter"
	TelemetryMetricsExporterKey = "telemetry.metrics.exporter"

	ServerEnabledKey     = "server.enabled"
	ServerAddrKey        = "server.addr"
	ServerReadTimeoutKey = "server.read_timeout"
)

// Defaults applied before any file or environment value.
const (
	DefaultConfigDir = "/etc/handyman/config.d"
	DefaultShell     = "sh"
	DefaultAddr      = "127.0.0.1:9464"
	envPrefix        = "HANDYMAN"
)

// Config holds the configuration state and provides thread-safe access
type Config struct {
	viper       *viper.Viper
	initialized bool
	initOnce    sync.Once
	mu          sync.RWMutex
	configPath  string
	searchPaths []string
}

var (
	instance          *Config
	instanceOnce      sync.Once
	requiredKeys      []string
	requiredKeysMutex sync.Mutex
	// MissingKeys holds the keys reported by the last CheckRequiredKeys call.
	MissingKeys []string
)

// getInstance returns the singleton config instance
func getInstance() *Config {
	instanceOnce.Do(func() {
		instance = &Config{
			searchPaths: []string{"./configs", "/etc/handyman", os.ExpandEnv("$HOME/.handyman")},
		}
	})
	return instance
}

// InitConfig explicitly initializes the configuration with optional parameters
func InitConfig(opts ...ConfigOption) error {
	cfg := getInstance()
	return cfg.init(opts...)
}

// ConfigOption allows for functional options pattern
type ConfigOption func(*Config)

// WithConfigPath sets a specific settings file path.
// This overrides any search paths.
func WithConfigPath(path string) ConfigOption {
	return func(c *Config) {
		c.configPath = path
		c.searchPaths = nil
	}
}

// WithSearchPaths adds search paths for the settings file.
// Only used if no explicit config path is set
func WithSearchPaths(paths ...string) ConfigOption {
	return func(c *Config) {
		if c.configPath == "" {
			c.searchPaths = append(c.searchPaths, paths...)
		}
	}
}

// WithOnlySearchPaths replaces the default search paths entirely
// Only used if no explicit config path is set
func WithOnlySearchPaths(paths ...string) ConfigOption {
	return func(c *Config) {
		if c.configPath == "" {
			c.searchPaths = paths
		}
	}
}

// init initializes the config instance with the provided options
func (c *Config) init(opts ...ConfigOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	c.initOnce.Do(func() {
		for _, opt := range opts {
			opt(c)
		}

		c.viper, err = c.loadConfig()
		if err == nil {
			c.initialized = true
		}
	})
	return err
}

// loadConfig initializes viper and loads settings from file and env.
func (c *Config) loadConfig() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("handyman")

	// Mutually exclusive: either use explicit config file OR search paths
	if c.configPath != "" {
		v.SetConfigFile(c.configPath)
	} else {
		for _, path := range c.searchPaths {
			v.AddConfigPath(path)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(LogLevelKey, "INFO")
	v.SetDefault(AppVersionKey, "dev")
	v.SetDefault(ConfigDirKey, DefaultConfigDir)
	v.SetDefault(ShellKey, DefaultShell)
	v.SetDefault(TelemetryServiceNameKey, "handyman")
	v.SetDefault(TelemetryTracingExporterKey, "none")
	v.SetDefault(TelemetryMetricsExporterKey, "none")
	v.SetDefault(ServerEnabledKey, false)
	v.SetDefault(ServerAddrKey, DefaultAddr)
	v.SetDefault(ServerReadTimeoutKey, 5*time.Second)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// No settings file: defaults and environment only
			return v, nil
		}
		return v, fmt.Errorf("read settings file: %w", err)
	}
	return v, nil
}

// ensureInitialized ensures config is initialized (lazy loading fallback)
func (c *Config) ensureInitialized() error {
	c.mu.RLock()
	if c.initialized {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	return c.init()
}

// UsedFile returns the settings file that was read, if any.
func UsedFile() string {
	cfg := getInstance()
	_ = cfg.ensureInitialized()
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	if cfg.viper == nil {
		return ""
	}
	return cfg.viper.ConfigFileUsed()
}

// GetString returns a string config value.
func GetString(key string) string {
	cfg := getInstance()
	_ = cfg.ensureInitialized()
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	if cfg.viper == nil {
		return ""
	}
	return cfg.viper.GetString(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	cfg := getInstance()
	_ = cfg.ensureInitialized()
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	if cfg.viper == nil {
		return false
	}
	return cfg.viper.GetBool(key)
}

// GetDuration returns a time.Duration config value.
func GetDuration(key string) time.Duration {
	cfg := getInstance()
	_ = cfg.ensureInitialized()
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	if cfg.viper == nil {
		return 0
	}
	return cfg.viper.GetDuration(key)
}

// RegisterRequiredKey adds a key to the list of required configuration items.
// Call it from init() of packages that depend on a setting, then validate with
// CheckRequiredKeys.
func RegisterRequiredKey(key string) {
	requiredKeysMutex.Lock()
	defer requiredKeysMutex.Unlock()
	for _, k := range requiredKeys {
		if k == key {
			return
		}
	}
	requiredKeys = append(requiredKeys, key)
}

// CheckRequiredKeys validates that all registered required keys are present in the configuration.
func CheckRequiredKeys() error {
	requiredKeysMutex.Lock()
	defer requiredKeysMutex.Unlock()

	MissingKeys = nil
	for _, key := range requiredKeys {
		if !HasKey(key) {
			MissingKeys = append(MissingKeys, key)
		}
	}

	if len(MissingKeys) > 0 {
		return fmt.Errorf("missing required configuration keys: %s", strings.Join(MissingKeys, ", "))
	}
	return nil
}

// HasKey returns true if the config has the key.
func HasKey(key string) bool {
	cfg := getInstance()
	_ = cfg.ensureInitialized()
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	if cfg.viper == nil {
		return false
	}
	return cfg.viper.IsSet(key)
}

// Set overrides a value at runtime. Command-line flags use it.
func Set(key string, value interface{}) {
	cfg := getInstance()
	_ = cfg.ensureInitialized()
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	if cfg.viper != nil {
		cfg.viper.Set(key, value)
	}
}

// SetForTest sets a configuration value for testing purposes only.
func SetForTest(key string, value interface{}) {
	Set(key, value)
}

// ResetForTest resets the config singleton for test use only.
func ResetForTest() {
	instanceOnce = sync.Once{}
	instance = nil
	requiredKeysMutex.Lock()
	requiredKeys = nil
	MissingKeys = nil
	requiredKeysMutex.Unlock()
}
