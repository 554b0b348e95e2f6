package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirbridge/crowdldap/internal/config"
	"github.com/dirbridge/crowdldap/internal/crowd"
)

func newResolver(t *testing.T, backend Backend, cfg config.MemberOfConfig) *MemberOfResolver {
	t.Helper()
	return NewMemberOfResolver(backend, newTestMapper(t), cfg, nil)
}

func TestMemberOfResolveDirect(t *testing.T) {
	backend := newFakeBackend()
	backend.userGroups["alice"] = []string{"B"}
	backend.groupParents["b"] = []string{"C"}

	r := newResolver(t, backend, config.MemberOfConfig{Enabled: true, GID: -1})

	dns, err := r.Resolve(context.Background(), "alice", crowd.KindUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"cn=B,ou=groups,dc=crowd"}, dns)
}

func TestMemberOfResolveNested(t *testing.T) {
	backend := newFakeBackend()
	backend.userGroups["alice"] = []string{"B"}
	backend.groupParents["b"] = []string{"C"}

	r := newResolver(t, backend, config.MemberOfConfig{Enabled: true, Nested: true, GID: -1})

	dns, err := r.Resolve(context.Background(), "alice", crowd.KindUser)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"cn=B,ou=groups,dc=crowd",
		"cn=C,ou=groups,dc=crowd",
	}, dns)
}

func TestMemberOfResolveCycle(t *testing.T) {
	backend := newFakeBackend()
	backend.userGroups["alice"] = []string{"A"}
	backend.groupParents["a"] = []string{"B"}
	backend.groupParents["b"] = []string{"A"}

	r := newResolver(t, backend, config.MemberOfConfig{Enabled: true, Nested: true, GID: -1})

	dns, err := r.Resolve(context.Background(), "alice", crowd.KindUser)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"cn=A,ou=groups,dc=crowd",
		"cn=B,ou=groups,dc=crowd",
	}, dns, "each group of the cycle appears exactly once")
}

func TestMemberOfResolveCycleCaseInsensitive(t *testing.T) {
	backend := newFakeBackend()
	backend.userGroups["alice"] = []string{"Admins"}
	backend.groupParents["admins"] = []string{"ADMINS"}

	r := newResolver(t, backend, config.MemberOfConfig{Enabled: true, Nested: true, GID: -1})

	dns, err := r.Resolve(context.Background(), "alice", crowd.KindUser)
	require.NoError(t, err)
	assert.Len(t, dns, 1)
}

func TestMemberOfGidSelector(t *testing.T) {
	backend := newFakeBackend()
	backend.addGroup(crowd.Group{Name: "staff", Attributes: map[string][]string{"gidNumber": {"5000"}}})
	backend.addGroup(crowd.Group{Name: "other", Attributes: map[string][]string{"gidNumber": {"6000"}}})
	backend.addGroup(crowd.Group{Name: "parent", Attributes: map[string][]string{"gidNumber": {"5000"}}})
	backend.userGroups["alice"] = []string{"staff", "other"}
	backend.groupParents["other"] = []string{"parent"}

	r := newResolver(t, backend, config.MemberOfConfig{Enabled: true, Nested: true, GID: 5000})

	dns, err := r.Resolve(context.Background(), "alice", crowd.KindUser)
	require.NoError(t, err)

	// "other" fails the selector: it is dropped from the output and its
	// parents are never expanded, so "parent" stays invisible too.
	assert.Equal(t, []string{"cn=staff,ou=groups,dc=crowd"}, dns)
}

func TestMemberOfNamingTemplate(t *testing.T) {
	backend := newFakeBackend()
	backend.userGroups["alice"] = []string{"staff"}

	tests := []struct {
		name     string
		cfg      config.MemberOfConfig
		expected string
	}{
		{
			name:     "no template uses the group branch DN",
			cfg:      config.MemberOfConfig{Enabled: true, GID: -1},
			expected: "cn=staff,ou=groups,dc=crowd",
		},
		{
			name:     "full template",
			cfg:      config.MemberOfConfig{Enabled: true, GID: -1, TemplateCN: "fixed", TemplateOU: "teams", TemplateDC: "corp"},
			expected: "cn=fixed,ou=teams,dc=corp",
		},
		{
			name:     "unset cn falls back to the group name",
			cfg:      config.MemberOfConfig{Enabled: true, GID: -1, TemplateOU: "teams"},
			expected: "cn=staff,ou=teams",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, backend, tt.cfg)
			dns, err := r.Resolve(context.Background(), "alice", crowd.KindUser)
			require.NoError(t, err)
			require.Len(t, dns, 1)
			assert.Equal(t, tt.expected, dns[0])
		})
	}
}

func TestMemberOfUnknownPrincipal(t *testing.T) {
	backend := newFakeBackend()
	r := newResolver(t, backend, config.MemberOfConfig{Enabled: true, GID: -1})

	dns, err := r.Resolve(context.Background(), "ghost", crowd.KindUser)
	require.NoError(t, err)
	assert.Empty(t, dns)
}

func TestMemberOfBackendFailureAborts(t *testing.T) {
	backend := newFakeBackend()
	backend.failWith = crowd.NewError("direct_groups_of", crowd.KindUnavailable, "down", nil)

	r := newResolver(t, backend, config.MemberOfConfig{Enabled: true, GID: -1})

	_, err := r.Resolve(context.Background(), "alice", crowd.KindUser)
	require.Error(t, err)
	assert.True(t, crowd.IsUnavailable(err))
}
