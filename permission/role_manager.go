package permission

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed roles.yaml
var defaultTemplatesYAML []byte

// RoleManager holds the default permission set for each staff role.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Set
	frozen bool
}

type templateDocument struct {
	Roles map[string]Set `yaml:"roles"`
}

// NewRoleManager returns an empty manager validating against registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Set),
	}
}

// RegisterRole stores the template for roleName after validating it.
func (rm *RoleManager) RegisterRole(roleName string, perms Set) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}

	normalized := perms.Normalize()
	if rm.registry != nil {
		if err := rm.registry.Validate(normalized); err != nil {
			return fmt.Errorf("role %s: %w", roleName, err)
		}
	}
	rm.roles[roleName] = normalized
	return nil
}

// Template returns a copy of the template registered for roleName.
func (rm *RoleManager) Template(roleName string) (Set, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	perms, ok := rm.roles[roleName]
	if !ok {
		return nil, false
	}
	return perms.Clone(), true
}

// Freeze prevents further registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// LoadTemplates parses a YAML document of the form
//
//	roles:
//	  doctor:
//	    - module: patients
//	      actions: [read, update]
//
// and registers every role in it.
func (rm *RoleManager) LoadTemplates(r io.Reader) error {
	var doc templateDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode role templates: %w", err)
	}
	for role, perms := range doc.Roles {
		if err := rm.RegisterRole(role, perms); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRoleManager returns a frozen manager loaded with the built-in
// templates against registry.
func DefaultRoleManager(registry *Registry) (*RoleManager, error) {
	rm := NewRoleManager(registry)
	if err := rm.LoadTemplates(bytes.NewReader(defaultTemplatesYAML)); err != nil {
		return nil, err
	}
	rm.Freeze()
	return rm, nil
}
