package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *Entry {
	e := NewEntry("uid=alice,ou=users,dc=crowd")
	e.AddAttribute("objectClass", "top", "person", "inetOrgPerson")
	e.AddAttribute("uid", "alice")
	e.AddAttribute("cn", "alice")
	e.AddAttribute("mail", "alice@example.com")
	return e
}

func TestMatchFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		matches bool
	}{
		{
			name:    "equality",
			filter:  "(uid=alice)",
			matches: true,
		},
		{
			name:    "equality is case insensitive",
			filter:  "(UID=ALICE)",
			matches: true,
		},
		{
			name:   "equality mismatch",
			filter: "(uid=bob)",
		},
		{
			name:   "equality on absent attribute",
			filter: "(sn=liddell)",
		},
		{
			name:    "presence",
			filter:  "(mail=*)",
			matches: true,
		},
		{
			name:   "presence of absent attribute",
			filter: "(telephoneNumber=*)",
		},
		{
			name:    "substring initial",
			filter:  "(mail=alice*)",
			matches: true,
		},
		{
			name:    "substring any",
			filter:  "(mail=*@example*)",
			matches: true,
		},
		{
			name:    "substring final",
			filter:  "(mail=*.com)",
			matches: true,
		},
		{
			name:   "substring mismatch",
			filter: "(mail=bob*)",
		},
		{
			name:    "conjunction",
			filter:  "(&(objectClass=inetOrgPerson)(uid=alice))",
			matches: true,
		},
		{
			name:   "conjunction with failing term",
			filter: "(&(objectClass=inetOrgPerson)(uid=bob))",
		},
		{
			name:    "disjunction",
			filter:  "(|(uid=bob)(uid=alice))",
			matches: true,
		},
		{
			name:    "negation",
			filter:  "(!(uid=bob))",
			matches: true,
		},
		{
			name:   "greater-or-equal is unsupported and never matches",
			filter: "(uid>=a)",
		},
		{
			name:   "approximate is unsupported and never matches",
			filter: "(uid~=alice)",
		},
		{
			name:    "negated unsupported term matches",
			filter:  "(!(uid>=a))",
			matches: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := compileFilter(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.matches, matchFilter(f, testEntry()))
		})
	}
}

func TestCompileFilter(t *testing.T) {
	t.Run("empty filter matches everything", func(t *testing.T) {
		f, err := compileFilter("")
		require.NoError(t, err)
		assert.True(t, matchFilter(f, testEntry()))
	})

	t.Run("malformed filter fails", func(t *testing.T) {
		_, err := compileFilter("(uid=alice")
		assert.Error(t, err)
	})
}

func TestEqualityAnchor(t *testing.T) {
	tests := []struct {
		name     string
		filter   string
		attrs    []string
		expected string
		ok       bool
	}{
		{
			name:     "direct equality",
			filter:   "(uid=alice)",
			attrs:    []string{"uid"},
			expected: "alice",
			ok:       true,
		},
		{
			name:     "inside conjunction",
			filter:   "(&(objectClass=person)(cn=admins))",
			attrs:    []string{"cn"},
			expected: "admins",
			ok:       true,
		},
		{
			name:     "attribute name case insensitive",
			filter:   "(UID=alice)",
			attrs:    []string{"uid"},
			expected: "alice",
			ok:       true,
		},
		{
			name:   "no anchor inside disjunction",
			filter: "(|(uid=alice)(uid=bob))",
			attrs:  []string{"uid"},
		},
		{
			name:   "presence is no anchor",
			filter: "(uid=*)",
			attrs:  []string{"uid"},
		},
		{
			name:   "different attribute",
			filter: "(mail=alice@example.com)",
			attrs:  []string{"uid", "cn"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := compileFilter(tt.filter)
			require.NoError(t, err)
			got, ok := equalityAnchor(f, tt.attrs...)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
