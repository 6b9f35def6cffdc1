package dispatcher

import (
	"sort"
	"sync"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/handler"
)

// Registry manages handler registration by command kind.
type Registry struct {
	mu       sync.RWMutex
	handlers map[command.Kind][]handler.Handler // sorted by priority
}

// NewRegistry creates a new handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[command.Kind][]handler.Handler),
	}
}

// Register adds a handler for a kind. Multiple handlers can be
// registered for the same kind; the highest priority one wins.
func (r *Registry) Register(kind command.Kind, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handlers := append(r.handlers[kind], h)
	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].Priority() > handlers[j].Priority()
	})
	r.handlers[kind] = handlers
}

// Unregister removes all handlers for a kind.
func (r *Registry) Unregister(kind command.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, kind)
}

// UnregisterHandler removes a specific handler for a kind.
func (r *Registry) UnregisterHandler(kind command.Kind, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handlers := r.handlers[kind]
	for i, existing := range handlers {
		if existing == h {
			r.handlers[kind] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
}

// Get returns the highest priority handler for a kind, or nil.
func (r *Registry) Get(kind command.Kind) handler.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := r.handlers[kind]
	if len(handlers) == 0 {
		return nil
	}
	return handlers[0]
}

// GetAll returns all handlers for a kind.
func (r *Registry) GetAll(kind command.Kind) []handler.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := r.handlers[kind]
	result := make([]handler.Handler, len(handlers))
	copy(result, handlers)
	return result
}

// Has returns true if a handler is registered for the kind.
func (r *Registry) Has(kind command.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind]) > 0
}

// List returns all kinds with a handler, in canonical order.
func (r *Registry) List() []command.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var kinds []command.Kind
	for _, k := range command.Kinds() {
		if len(r.handlers[k]) > 0 {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Count returns the number of kinds with a handler.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Clear removes all registered handlers.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[command.Kind][]handler.Handler)
}
