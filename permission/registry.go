package permission

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry records the modules and actions a permission set may reference.
//
// Registrations happen during startup; after [Registry.Freeze] the registry
// is read-only and safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]map[string]struct{}
	frozen  bool
}

// DefaultActions are registered for every module by [DefaultRegistry].
var DefaultActions = []string{"create", "read", "update", "delete", ActionManage}

// DefaultModules lists the hospital modules known out of the box.
var DefaultModules = []string{
	"patients",
	"appointments",
	"medical_records",
	"prescriptions",
	"laboratory",
	"pharmacy",
	"inventory",
	"billing",
	"reports",
	"staff",
	"settings",
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]map[string]struct{}),
	}
}

// DefaultRegistry returns a frozen registry holding [DefaultModules] with
// [DefaultActions].
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, m := range DefaultModules {
		// names are static and unique
		_ = r.Register(m, DefaultActions...)
	}
	r.Freeze()
	return r
}

// Register adds module with the given actions. Registering an existing
// module extends its action list. [ActionManage] is always implied.
func (r *Registry) Register(module string, actions ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry frozen")
	}
	if module == "" {
		return errors.New("module name cannot be empty")
	}

	set, ok := r.modules[module]
	if !ok {
		set = map[string]struct{}{ActionManage: {}}
		r.modules[module] = set
	}
	for _, a := range actions {
		if a == "" {
			return errors.New("action name cannot be empty")
		}
		set[a] = struct{}{}
	}
	return nil
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Has reports whether action is registered on module.
func (r *Registry) Has(module, action string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.modules[module]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}

// Modules returns the registered module names in sorted order.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.modules))
	for m := range r.modules {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every entry in s references registered names.
func (r *Registry) Validate(s Set) error {
	for _, entry := range s {
		if len(entry.Actions) == 0 {
			return fmt.Errorf("permission entry %q has no actions", entry.Module)
		}
		for _, a := range entry.Actions {
			if !r.Has(entry.Module, a) {
				return fmt.Errorf("unknown permission %s:%s", entry.Module, a)
			}
		}
	}
	return nil
}
