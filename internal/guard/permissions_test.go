package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepai/internal/model"
)

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/dashboard/home", "/dashboard/home", true},
		{"/dashboard/home", "/dashboard/home/", true},
		{"/dashboard/home", "/dashboard/homework", false},
		{"/dashboard/home", "/dashboard/home/extra", false},
		{"/dashboard/interview/*", "/dashboard/interview/42", true},
		{"/dashboard/interview/*", "/dashboard/interview/42/feedback", true},
		{"/dashboard/interview/*", "/dashboard/interview", false},
		{"/dashboard/interview/*", "/dashboard/interviews", false},
		{"/dashboard/interview/*", "/dashboard/interview/../users", false},
		{"/dashboard/*", "/dashboard/", true},
		{"/dashboard/*", "/dashboard", false},
		{"/dashboard", "/dashboard", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			p, err := ParsePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Match(tt.path))
		})
	}
}

func TestParsePattern_Rejects(t *testing.T) {
	for _, s := range []string{"dashboard", "/dash*board", "/*/home", ""} {
		_, err := ParsePattern(s)
		assert.Error(t, err, s)
	}
}

func TestParsePattern_RoundTrip(t *testing.T) {
	p, err := ParsePattern("/dashboard/course/*")
	require.NoError(t, err)
	assert.Equal(t, Pattern{Prefix: "/dashboard/course/", Wildcard: true}, p)
	assert.Equal(t, "/dashboard/course/*", p.String())
}

func TestPermissionTable_Defaults(t *testing.T) {
	table, err := NewPermissionTable(DefaultPermissions())
	require.NoError(t, err)

	tests := []struct {
		role    model.Role
		path    string
		allowed bool
	}{
		{model.RoleUser, "/dashboard", true},
		{model.RoleUser, "/dashboard/interview/abc", true},
		{model.RoleUser, "/dashboard/users", false},
		{model.RoleUser, "/dashboard/posts/upload", false},
		{model.RoleAuthor, "/dashboard/posts/upload", true},
		{model.RoleAuthor, "/dashboard/home", true},
		{model.RoleAuthor, "/dashboard/users", false},
		{model.RoleAdmin, "/dashboard/users", true},
		{model.RoleAdmin, "/dashboard", true},
		{model.Role("GUEST"), "/dashboard", false},
		{model.Role(""), "/dashboard/home", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.allowed, table.Allowed(tt.role, tt.path))
		})
	}
}

func TestNewPermissionTable(t *testing.T) {
	table, err := NewPermissionTable(map[string][]string{"user": {"/dashboard/home"}})
	require.NoError(t, err)
	assert.Equal(t, []model.Role{model.RoleUser}, table.Roles())

	_, err = NewPermissionTable(map[string][]string{"ROOT": {"/"}})
	assert.Error(t, err)

	_, err = NewPermissionTable(map[string][]string{"USER": {"dashboard"}})
	assert.Error(t, err)
}

func TestDefaultPermissions_ReturnsCopies(t *testing.T) {
	a := DefaultPermissions()
	a["USER"][0] = "/mutated"
	assert.Equal(t, "/dashboard", DefaultPermissions()["USER"][0])
}
