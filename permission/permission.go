package permission

import (
	"sort"
	"strings"
)

// ActionManage grants every action on a module.
const ActionManage = "manage"

// Entry grants a set of actions on one module.
type Entry struct {
	Module  string   `json:"module" yaml:"module"`
	Actions []string `json:"actions" yaml:"actions"`
}

// Set is an order-irrelevant collection of entries.
type Set []Entry

// Allows reports whether s grants action on module.
func (s Set) Allows(module, action string) bool {
	for _, entry := range s {
		if entry.Module != module {
			continue
		}
		for _, a := range entry.Actions {
			if a == action || a == ActionManage {
				return true
			}
		}
	}
	return false
}

// Normalize lowercases names, merges entries for the same module, and sorts
// both modules and actions so that equal sets compare equal.
func (s Set) Normalize() Set {
	if len(s) == 0 {
		return Set{}
	}

	merged := make(map[string]map[string]struct{}, len(s))
	for _, entry := range s {
		module := strings.ToLower(strings.TrimSpace(entry.Module))
		if module == "" {
			continue
		}
		actions, ok := merged[module]
		if !ok {
			actions = make(map[string]struct{}, len(entry.Actions))
			merged[module] = actions
		}
		for _, a := range entry.Actions {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				actions[a] = struct{}{}
			}
		}
	}

	out := make(Set, 0, len(merged))
	for module, actions := range merged {
		list := make([]string, 0, len(actions))
		for a := range actions {
			list = append(list, a)
		}
		sort.Strings(list)
		out = append(out, Entry{Module: module, Actions: list})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}

// Clone returns a deep copy of s.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for i, entry := range s {
		out[i] = Entry{
			Module:  entry.Module,
			Actions: append([]string(nil), entry.Actions...),
		}
	}
	return out
}
