package console

import (
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrPortInUse is returned by Registry.Register when an adapter is already
// registered under the requested name.
var ErrPortInUse = errors.New("console: port already registered")

// Registry tracks live adapters by name so interactive tools can address
// them. All methods are safe for concurrent use; the adapters themselves
// are not, so callers still serialize per-adapter I/O.
type Registry struct {
	adapters *xsync.MapOf[string, *Adapter]
}

// DefaultRegistry is the process-wide registry used by the interactive
// tools.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: xsync.NewMapOf[string, *Adapter]()}
}

// Register adds an adapter under name, usually the serial device path. It
// fails with ErrPortInUse when the name is taken.
func (r *Registry) Register(name string, adapter *Adapter) error {
	if adapter == nil {
		return errors.New("console: adapter is nil")
	}

	if _, loaded := r.adapters.LoadOrStore(name, adapter); loaded {
		return fmt.Errorf("%w: %s", ErrPortInUse, name)
	}

	return nil
}

// Deregister removes the adapter registered under name and returns it, or
// nil when the name is unknown. The adapter is not closed; the caller
// decides its fate.
func (r *Registry) Deregister(name string) *Adapter {
	adapter, _ := r.adapters.LoadAndDelete(name)
	return adapter
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (*Adapter, bool) {
	return r.adapters.Load(name)
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return r.adapters.Size()
}

// Range calls fn for each registered adapter until fn returns false.
func (r *Registry) Range(fn func(name string, adapter *Adapter) bool) {
	r.adapters.Range(fn)
}
