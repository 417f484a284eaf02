package permission

import (
	"errors"
	"sync"
)

// RoleTable is an in-memory role → permission mapping. It backs the static
// role resolver used for embedded deployments and tests; production
// deployments usually resolve roles from the identity store instead.
type RoleTable struct {
	mu    sync.RWMutex
	roles map[string]Set
}

// NewRoleTable returns an empty RoleTable.
func NewRoleTable() *RoleTable {
	return &RoleTable{roles: make(map[string]Set)}
}

// RegisterRole adds a role. Registering an existing role is an error; use
// SetRole to replace one.
func (rt *RoleTable) RegisterRole(roleName string, permissionNames []string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rt.roles[roleName]; exists {
		return errors.New("role already registered")
	}

	rt.roles[roleName] = NewSet(permissionNames...)
	return nil
}

/*
====================================
ROLE EDITS
*/

// SetRole replaces (or creates) the permission list of roleName. Callers are
// responsible for invalidating cached permission sets afterwards.
func (rt *RoleTable) SetRole(roleName string, permissionNames []string) error {
	if roleName == "" {
		return errors.New("role name empty")
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.roles[roleName] = NewSet(permissionNames...)
	return nil
}

// Permissions returns a copy of the permission set of roleName.
func (rt *RoleTable) Permissions(roleName string) (Set, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	set, ok := rt.roles[roleName]
	if !ok {
		return nil, false
	}
	out := make(Set, len(set))
	out.Union(set)
	return out, true
}

/*
====================================
EXPAND
*/

// Expand unions the permissions of every known role in roles. Unknown roles
// contribute nothing.
func (rt *RoleTable) Expand(roles []string) Set {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	out := make(Set)
	for _, r := range roles {
		out.Union(rt.roles[r])
	}
	return out
}

// Count returns the number of roles.
func (rt *RoleTable) Count() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.roles)
}
