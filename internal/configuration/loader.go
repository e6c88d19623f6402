package configuration

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jerkytreats/handyman/internal/healthcheck"
	"github.com/jerkytreats/handyman/internal/logging"
)

// ErrUnknownKey is returned for a top-level key that is neither a
// configuration field nor a registered probe type.
var ErrUnknownKey = errors.New("unknown configuration key")

var baseKeys = []string{"name", "interval", "handlers"}

// Loader reads configuration files. Probe sections are decoded through the
// registry, so every registered probe type is accepted.
type Loader struct {
	registry *healthcheck.Registry
}

// NewLoader returns a loader for the probe types in registry. A nil registry
// uses healthcheck.DefaultRegistry.
func NewLoader(registry *healthcheck.Registry) *Loader {
	if registry == nil {
		registry = healthcheck.DefaultRegistry()
	}
	return &Loader{registry: registry}
}

// FormatFor maps a file extension to a viper config type. Files without a
// recognized extension are read as TOML.
func FormatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return "toml"
	}
}

func strict(dc *mapstructure.DecoderConfig) {
	dc.ErrorUnused = true
}

// Parse decodes one configuration document in the given format.
func (l *Loader) Parse(r io.Reader, format string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to parse the configuration file: %w", err)
	}

	if err := l.checkKeys(v); err != nil {
		return nil, err
	}

	cfg := &Configuration{Name: v.GetString("name")}

	if v.IsSet("interval") {
		interval, err := wholeSeconds(v.Get("interval"))
		if err != nil {
			return nil, fmt.Errorf("decode interval: %w", err)
		}
		cfg.Interval = &interval
	}

	if err := v.UnmarshalKey("handlers", &cfg.Handlers, strict); err != nil {
		return nil, fmt.Errorf("decode handlers: %w", err)
	}

	groups, err := l.registry.Decode(func(key string, out any) error {
		if !v.IsSet(key) {
			return nil
		}
		return v.UnmarshalKey(key, out, strict)
	})
	if err != nil {
		return nil, err
	}
	cfg.Groups = groups

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// wholeSeconds accepts integers, and floats without a fractional part since
// JSON numbers decode as float64. Strings and fractions are rejected.
func wholeSeconds(raw any) (int, error) {
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		if int64(int(n)) != n {
			return 0, fmt.Errorf("%d is out of range", n)
		}
		return int(n), nil
	case uint64:
		if n > math.MaxInt64 || int64(int(n)) != int64(n) {
			return 0, fmt.Errorf("%d is out of range", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not a whole number of seconds", n)
		}
		if n < math.MinInt64 || n >= math.MaxInt64 || float64(int(n)) != n {
			return 0, fmt.Errorf("%v is out of range", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected a number of seconds, got %T", raw)
	}
}

func (l *Loader) checkKeys(v *viper.Viper) error {
	known := map[string]bool{}
	for _, k := range baseKeys {
		known[k] = true
	}
	for _, k := range l.registry.Tags() {
		known[k] = true
	}

	var unknown []string
	seen := map[string]bool{}
	for _, key := range v.AllKeys() {
		top, _, _ := strings.Cut(key, ".")
		if !known[top] && !seen[top] {
			seen[top] = true
			unknown = append(unknown, top)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(unknown, ", "))
	}
	return nil
}

// LoadFile reads and parses one configuration file.
func (l *Loader) LoadFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the configuration file: %w", err)
	}

	cfg, err := l.Parse(bytes.NewReader(data), FormatFor(path))
	if err != nil {
		return nil, err
	}
	cfg.Source = path
	return cfg, nil
}

// LoadDir loads every file in dir. A missing directory is created and yields
// no configurations. Subdirectories and files that fail to load are skipped
// with a logged warning or error.
func (l *Loader) LoadDir(dir string) ([]*Configuration, error) {
	logging.Info("Reading configurations from %s", dir)

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		logging.Warn("Config directory not found, creating %s", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create the configuration directory: %w", err)
		}
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read the configuration directory: %w", err)
	}

	var configs []*Configuration
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			logging.Warn("Ignoring directory %s in configuration directory", path)
			continue
		}

		cfg, err := l.LoadFile(path)
		if err != nil {
			logging.Error("Skipping configuration %s: %v", path, err)
			continue
		}
		logging.Debug("Loaded configuration %s from %s with %d probes", cfg.DisplayName(), path, cfg.ProbeCount())
		configs = append(configs, cfg)
	}

	logging.Info("Loaded %d configurations from %s", len(configs), dir)
	return configs, nil
}
