package healthcheck

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKind is returned when a tag is registered twice.
	ErrDuplicateKind = errors.New("probe type already registered")
	// ErrUnknownProbeType is returned for a tag no kind is registered under.
	ErrUnknownProbeType = errors.New("unknown probe type")
)

// Decoder decodes the list stored under key into out, a pointer to a slice of
// probe configs. A key that is absent leaves out untouched and returns nil.
type Decoder func(key string, out any) error

// Kind is a registered probe type.
type Kind interface {
	Tag() string
	// Decode reads this kind's probe list. It returns a nil Group when the
	// configuration declares no probes of this type.
	Decode(dec Decoder) (Group, error)
}

type kind[C Probe] struct {
	tag     string
	checker Checker[C]
}

func (k *kind[C]) Tag() string { return k.tag }

func (k *kind[C]) Decode(dec Decoder) (Group, error) {
	var probes []C
	if err := dec(k.tag, &probes); err != nil {
		return nil, fmt.Errorf("decode %s probes: %w", k.tag, err)
	}
	if len(probes) == 0 {
		return nil, nil
	}
	for i, p := range probes {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s probe %d (%s): %w", k.tag, i, displayName(p.ProbeName()), err)
		}
	}
	return NewGroup(k.tag, k.checker, probes...), nil
}

// Registry maps probe-type tags to their kinds, in registration order.
type Registry struct {
	kinds []Kind
	index map[string]Kind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]Kind)}
}

// Register adds a probe type under tag. New probe families are added here
// without any change to the service loop.
func Register[C Probe](r *Registry, tag string, checker Checker[C]) error {
	if tag == "" {
		return fmt.Errorf("probe type tag cannot be empty")
	}
	if _, ok := r.index[tag]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, tag)
	}
	k := &kind[C]{tag: tag, checker: checker}
	r.kinds = append(r.kinds, k)
	r.index[tag] = k
	return nil
}

// MustRegister is Register that panics on error.
func MustRegister[C Probe](r *Registry, tag string, checker Checker[C]) {
	if err := Register(r, tag, checker); err != nil {
		panic(err)
	}
}

// Tags returns the registered tags in registration order.
func (r *Registry) Tags() []string {
	tags := make([]string, len(r.kinds))
	for i, k := range r.kinds {
		tags[i] = k.Tag()
	}
	return tags
}

// Lookup returns the kind registered under tag.
func (r *Registry) Lookup(tag string) (Kind, error) {
	k, ok := r.index[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProbeType, tag)
	}
	return k, nil
}

// Decode builds one Group per declared probe type, in registration order.
// Types with no probes are omitted.
func (r *Registry) Decode(dec Decoder) ([]Group, error) {
	var groups []Group
	for _, k := range r.kinds {
		g, err := k.Decode(dec)
		if err != nil {
			return nil, err
		}
		if g != nil {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// DefaultRegistry returns a registry with every built-in probe type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	MustRegister[*HTTPProbe](r, "http", NewHTTPChecker())
	MustRegister[*TCPProbe](r, "tcp", NewTCPChecker())
	MustRegister[*DNSProbe](r, "dns", NewDNSChecker())
	MustRegister[*CertificateProbe](r, "certificate", NewCertificateChecker())
	MustRegister[*CloudflareProbe](r, "cloudflare", NewCloudflareChecker())
	return r
}
