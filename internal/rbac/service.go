package rbac

import (
	"sort"
	"strings"

	"github.com/solarquote/solarquote/internal/shared"
)

// Service resolves the permissions granted to a role.
type Service struct {
	grants map[shared.Role]map[string]struct{}
}

// NewService builds a Service from grants; nil selects DefaultGrants.
func NewService(grants map[shared.Role][]string) *Service {
	if grants == nil {
		grants = DefaultGrants()
	}
	index := make(map[shared.Role]map[string]struct{}, len(grants))
	for role, perms := range grants {
		set := make(map[string]struct{}, len(perms))
		for _, p := range normalizePermissions(perms) {
			set[p] = struct{}{}
		}
		index[role] = set
	}
	return &Service{grants: index}
}

// EffectivePermissions lists the permissions of role in sorted order.
func (s *Service) EffectivePermissions(role shared.Role) []string {
	set := s.grants[role]
	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// Allowed reports whether role holds perm.
func (s *Service) Allowed(role shared.Role, perm string) bool {
	_, ok := s.grants[role][strings.ToLower(strings.TrimSpace(perm))]
	return ok
}
