package common

import (
	"sync"

	"github.com/tracefold/anonymizer/pkg/errors"
)

// Factory constructs the serving client for a model when it is first used.
type Factory func() (ServingClient, error)

// Handle is a lazily-initialized serving client for one model. The client is
// constructed exactly once, on first use, no matter how many goroutines race
// on it; a construction failure is sticky and returned to every caller.
type Handle struct {
	name    string
	factory Factory

	once   sync.Once
	client ServingClient
	err    error
}

// Name returns the model name the handle was registered under.
func (h *Handle) Name() string { return h.name }

// Client returns the underlying serving client, constructing it on first call.
func (h *Handle) Client() (ServingClient, error) {
	h.once.Do(func() {
		h.client, h.err = h.factory()
	})
	if h.err != nil {
		return nil, errors.Wrap(h.err, errors.ErrCodeModelNotLoaded, "initialize model "+h.name)
	}
	return h.client, nil
}

// Close releases the client if it was ever constructed.
func (h *Handle) Close() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

// Registry maps model names to their handles. Registration happens during
// startup; lookups are concurrent and cheap afterwards.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Register adds a model under name. Registering the same name twice is a
// configuration bug and returns an error.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return errors.New(errors.ErrCodeValidation, "model name cannot be empty")
	}
	if factory == nil {
		return errors.New(errors.ErrCodeValidation, "model factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[name]; exists {
		return errors.Newf(errors.ErrCodeConflict, "model %q already registered", name)
	}
	r.handles[name] = &Handle{name: name, factory: factory}
	return nil
}

// Get returns the handle for name.
func (r *Registry) Get(name string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "model %q not registered", name)
	}
	return h, nil
}

// Names lists the registered model names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handles))
	for name := range r.handles {
		out = append(out, name)
	}
	return out
}

// Close closes every initialized handle and returns the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, h := range r.handles {
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
