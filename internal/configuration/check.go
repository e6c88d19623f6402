package configuration

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/jerkytreats/handyman/internal/healthcheck"
)

// LookPathFunc resolves an executable name to a path.
type LookPathFunc func(file string) (string, error)

// CheckCommands verifies that every handler's executable resolves and has an
// execute bit set. All problems are reported together.
func CheckCommands(cfg *Configuration, lookPath LookPathFunc) error {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	var errs []error
	for _, h := range cfg.Handlers {
		name := h.Executable()
		if name == "" {
			errs = append(errs, fmt.Errorf("handler %s: %q is not a valid command", h.DisplayName(), h.Command))
			continue
		}

		path, err := lookPath(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("handler %s: failed to get the full path of %s: %w", h.DisplayName(), name, err))
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("handler %s: the command %s does not exist: %w", h.DisplayName(), path, err))
			continue
		}
		if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			errs = append(errs, fmt.Errorf("handler %s: the command %s is not executable", h.DisplayName(), path))
		}
	}
	return errors.Join(errs...)
}

// targetChecker is implemented by probes whose target is accepted at load time
// but can be checked more strictly on request.
type targetChecker interface {
	CheckTarget() error
}

// CheckTargets reports every probe whose target could never be evaluated
// successfully.
func CheckTargets(cfg *Configuration) error {
	var errs []error
	for _, g := range cfg.Groups {
		for i, p := range g.Probes() {
			tc, ok := p.(targetChecker)
			if !ok {
				continue
			}
			if err := tc.CheckTarget(); err != nil {
				errs = append(errs, fmt.Errorf("%s probe %d (%s): %w", g.Kind(), i, p.ProbeName(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// CheckFile loads path and verifies its handler commands and probe targets.
func (l *Loader) CheckFile(path string, lookPath LookPathFunc) (*Configuration, error) {
	cfg, err := l.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := errors.Join(CheckCommands(cfg, lookPath), CheckTargets(cfg)); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type yamlDocument struct {
	Name     string                         `yaml:"name,omitempty"`
	Interval *int                           `yaml:"interval,omitempty"`
	Handlers []Handler                      `yaml:"handlers"`
	Probes   map[string][]healthcheck.Probe `yaml:",inline"`
}

// WriteYAML prints the parsed configuration, with defaults as decoded.
func WriteYAML(w io.Writer, cfg *Configuration) error {
	doc := yamlDocument{
		Name:     cfg.Name,
		Interval: cfg.Interval,
		Handlers: cfg.Handlers,
		Probes:   make(map[string][]healthcheck.Probe, len(cfg.Groups)),
	}
	for _, g := range cfg.Groups {
		doc.Probes[g.Kind()] = g.Probes()
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	return enc.Close()
}

// Kinds returns the probe types a configuration declares, sorted.
func Kinds(cfg *Configuration) []string {
	kinds := make([]string, 0, len(cfg.Groups))
	for _, g := range cfg.Groups {
		kinds = append(kinds, g.Kind())
	}
	sort.Strings(kinds)
	return kinds
}
