package hook

import (
	"slices"
	"sync"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/execctx"
	"github.com/dshills/pagestorm/internal/dispatcher/handler"
)

// Manager holds the pre and post hooks of an executor. Pre hooks run
// from highest to lowest priority; post hooks run from lowest to highest,
// so the highest priority hook sees the final result.
type Manager struct {
	mu   sync.RWMutex
	pre  []PreExecuteHook
	post []PostExecuteHook
}

// NewManager creates an empty hook manager.
func NewManager() *Manager {
	return &Manager{}
}

// upsert replaces the hook with h's name or appends h, then restores the
// order. desc sorts by descending priority.
func upsert[H Hook](hooks []H, h H, desc bool) []H {
	if i := slices.IndexFunc(hooks, func(x H) bool { return x.Name() == h.Name() }); i >= 0 {
		hooks[i] = h
	} else {
		hooks = append(hooks, h)
	}
	slices.SortStableFunc(hooks, func(a, b H) int {
		if desc {
			return b.Priority() - a.Priority()
		}
		return a.Priority() - b.Priority()
	})
	return hooks
}

func remove[H Hook](hooks []H, name string) ([]H, bool) {
	i := slices.IndexFunc(hooks, func(x H) bool { return x.Name() == name })
	if i < 0 {
		return hooks, false
	}
	return slices.Delete(hooks, i, i+1), true
}

// RegisterPre adds a pre-execute hook, replacing any hook of the same name.
func (m *Manager) RegisterPre(h PreExecuteHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pre = upsert(m.pre, h, true)
}

// RegisterPost adds a post-execute hook, replacing any hook of the same name.
func (m *Manager) RegisterPost(h PostExecuteHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.post = upsert(m.post, h, false)
}

// Register adds h to each list whose interface it implements.
func (m *Manager) Register(h Hook) {
	if pre, ok := h.(PreExecuteHook); ok {
		m.RegisterPre(pre)
	}
	if post, ok := h.(PostExecuteHook); ok {
		m.RegisterPost(post)
	}
}

// UnregisterPre removes a pre-execute hook by name.
func (m *Manager) UnregisterPre(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ok bool
	m.pre, ok = remove(m.pre, name)
	return ok
}

// UnregisterPost removes a post-execute hook by name.
func (m *Manager) UnregisterPost(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ok bool
	m.post, ok = remove(m.post, name)
	return ok
}

// Unregister removes a hook by name from both lists.
func (m *Manager) Unregister(name string) bool {
	pre := m.UnregisterPre(name)
	post := m.UnregisterPost(name)
	return pre || post
}

// RunPreExecute runs the pre hooks and returns the name of the one that
// cancelled the command, or "".
func (m *Manager) RunPreExecute(cmd *command.Command, ctx *execctx.ExecutionContext) string {
	m.mu.RLock()
	hooks := slices.Clone(m.pre)
	m.mu.RUnlock()

	for _, h := range hooks {
		if !h.PreExecute(cmd, ctx) {
			return h.Name()
		}
	}
	return ""
}

// RunPostExecute runs the post hooks. They may amend the result.
func (m *Manager) RunPostExecute(cmd *command.Command, ctx *execctx.ExecutionContext, result *handler.Result) {
	m.mu.RLock()
	hooks := slices.Clone(m.post)
	m.mu.RUnlock()

	for _, h := range hooks {
		h.PostExecute(cmd, ctx, result)
	}
}

// PreHookCount returns the number of pre-execute hooks.
func (m *Manager) PreHookCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pre)
}

// PostHookCount returns the number of post-execute hooks.
func (m *Manager) PostHookCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.post)
}

// PreHookNames returns the pre hook names in run order.
func (m *Manager) PreHookNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.pre))
	for i, h := range m.pre {
		names[i] = h.Name()
	}
	return names
}

// Clear removes all hooks.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pre, m.post = nil, nil
}
