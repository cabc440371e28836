package codec

import (
	"sort"
	"sync"

	"github.com/pion/animdecode/internal/logging"
)

// NativeThreshold is the capability level from which platform codecs for
// animated GIF, HEIF and WebP are expected to exist.
const NativeThreshold = 28

var logger = logging.NewLogger("animdecode/codec")

// Registration holds the backends available for one format.
type Registration struct {
	// Native is used when the host capability level is at least Threshold.
	Native    *NamedBackend
	Threshold int
	// Software is the bundled fallback, used below Threshold. Formats
	// without one can only be decoded natively.
	Software *NamedBackend
}

var (
	registryMu sync.RWMutex
	registry   = make(map[Format]Registration)
)

// RegisterNative registers the platform backend for f, available from
// capability level threshold onward. It replaces a previous registration.
func RegisterNative(f Format, threshold int, b NamedBackend) {
	registryMu.Lock()
	defer registryMu.Unlock()

	b.Native = true
	reg := registry[f]
	reg.Native = &b
	reg.Threshold = threshold
	registry[f] = reg
}

// RegisterSoftware registers the bundled software backend for f.
func RegisterSoftware(f Format, b NamedBackend) {
	registryMu.Lock()
	defer registryMu.Unlock()

	b.Native = false
	reg := registry[f]
	reg.Software = &b
	registry[f] = reg
}

// Registered returns the formats that have at least one backend registered.
func Registered() []Format {
	registryMu.RLock()
	defer registryMu.RUnlock()

	formats := make([]Format, 0, len(registry))
	for f := range registry {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// Selector picks the backend for a format and host capability level.
// A Selector is immutable once built and safe for concurrent use.
type Selector struct {
	entries map[Format]Registration
}

// SelectorOption is a type for specifying Selector options
type SelectorOption func(*Selector)

// WithNative sets the native backend for f and its capability threshold.
func WithNative(f Format, threshold int, b NamedBackend) SelectorOption {
	return func(s *Selector) {
		b.Native = true
		reg := s.entries[f]
		reg.Native = &b
		reg.Threshold = threshold
		s.entries[f] = reg
	}
}

// WithSoftware sets the software fallback for f.
func WithSoftware(f Format, b NamedBackend) SelectorOption {
	return func(s *Selector) {
		b.Native = false
		reg := s.entries[f]
		reg.Software = &b
		s.entries[f] = reg
	}
}

// WithRegistered copies the global registrations into the selector. Options
// applied after it override individual entries.
func WithRegistered() SelectorOption {
	return func(s *Selector) {
		registryMu.RLock()
		defer registryMu.RUnlock()

		for f, reg := range registry {
			s.entries[f] = reg
		}
	}
}

// NewSelector constructs a Selector with given variadic options. Without
// options the selector is empty.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{entries: make(map[Format]Registration)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultSelector returns a selector over the globally registered backends.
func DefaultSelector() *Selector {
	return NewSelector(WithRegistered())
}

// Select returns the backend to use for f on a host at capability level.
// The native backend is preferred from its threshold on; below it the
// software backend is used if the format has one. Otherwise Select fails
// with an *UnsupportedFormatError and never falls back silently.
func (s *Selector) Select(f Format, level int) (NamedBackend, error) {
	reg, ok := s.entries[f]
	if !ok || (reg.Native == nil && reg.Software == nil) {
		return NamedBackend{}, &UnsupportedFormatError{
			Format:    f,
			Level:     level,
			Threshold: -1,
			Reason:    "no backend registered",
		}
	}

	if reg.Native != nil && level >= reg.Threshold {
		logger.Debugf("%s: level %d selects native backend %s", f, level, reg.Native.Name)
		return *reg.Native, nil
	}

	if reg.Software != nil {
		logger.Debugf("%s: level %d selects software backend %s", f, level, reg.Software.Name)
		return *reg.Software, nil
	}

	return NamedBackend{}, &UnsupportedFormatError{
		Format:    f,
		Level:     level,
		Threshold: reg.Threshold,
		Reason:    "no software fallback",
	}
}
