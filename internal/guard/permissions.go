package guard

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"prepai/internal/model"
)

// Pattern is one allow-list entry. A Wildcard pattern matches every path that
// starts with Prefix; otherwise the path must equal Prefix.
type Pattern struct {
	Prefix   string
	Wildcard bool
}

// ParsePattern accepts an absolute path with an optional trailing "*".
func ParsePattern(s string) (Pattern, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "/") {
		return Pattern{}, fmt.Errorf("pattern %q must start with /", s)
	}
	prefix, wildcard := strings.CutSuffix(s, "*")
	if strings.Contains(prefix, "*") {
		return Pattern{}, fmt.Errorf("pattern %q: * is only allowed as the last character", s)
	}
	if !wildcard {
		prefix = trimSlash(prefix)
	}
	return Pattern{Prefix: prefix, Wildcard: wildcard}, nil
}

// Match reports whether the cleaned request path is covered by p.
func (p Pattern) Match(requestPath string) bool {
	clean := cleanPath(requestPath)
	if p.Wildcard {
		return strings.HasPrefix(clean, p.Prefix)
	}
	return trimSlash(clean) == p.Prefix
}

func (p Pattern) String() string {
	if p.Wildcard {
		return p.Prefix + "*"
	}
	return p.Prefix
}

// PermissionTable maps roles to their allowed path patterns. It is built once
// and only read afterwards, so it is safe for concurrent use.
type PermissionTable struct {
	roles map[model.Role][]Pattern
}

// NewPermissionTable compiles raw role -> pattern lists.
func NewPermissionTable(raw map[string][]string) (*PermissionTable, error) {
	t := &PermissionTable{roles: make(map[model.Role][]Pattern, len(raw))}
	for role, patterns := range raw {
		r := model.Role(strings.ToUpper(strings.TrimSpace(role)))
		if !r.Valid() {
			return nil, fmt.Errorf("unknown role %q in permission table", role)
		}
		compiled := make([]Pattern, 0, len(patterns))
		for _, s := range patterns {
			p, err := ParsePattern(s)
			if err != nil {
				return nil, fmt.Errorf("role %s: %w", r, err)
			}
			compiled = append(compiled, p)
		}
		t.roles[r] = compiled
	}
	return t, nil
}

// Allowed reports whether role may open requestPath. Unknown roles have an
// empty allow-list.
func (t *PermissionTable) Allowed(role model.Role, requestPath string) bool {
	for _, p := range t.roles[role] {
		if p.Match(requestPath) {
			return true
		}
	}
	return false
}

// Roles lists the configured roles in stable order.
func (t *PermissionTable) Roles() []model.Role {
	roles := make([]model.Role, 0, len(t.roles))
	for r := range t.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

var userRoutes = []string{
	"/dashboard",
	"/dashboard/home",
	"/dashboard/profile",
	"/dashboard/settings",
	"/dashboard/onboarding",
	"/dashboard/interview/*",
}

var authorRoutes = []string{
	"/dashboard/create-post",
	"/dashboard/posts/*",
	"/dashboard/images/*",
	"/dashboard/my-posts",
	"/dashboard/preview/*",
	"/dashboard/course/*",
	"/dashboard/calendar",
}

// DefaultPermissions is the built-in role table.
func DefaultPermissions() map[string][]string {
	author := append(append([]string{}, userRoutes...), authorRoutes...)
	return map[string][]string{
		string(model.RoleUser):   append([]string{}, userRoutes...),
		string(model.RoleAuthor): author,
		string(model.RoleAdmin):  {"/dashboard", "/dashboard/*"},
	}
}

// cleanPath resolves dot segments so "/dashboard/interview/../users" cannot
// ride on a wildcard. A trailing slash survives.
func cleanPath(p string) string {
	clean := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return clean
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimRight(p, "/")
	}
	return p
}
