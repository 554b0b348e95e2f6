package directory

import (
	"context"
	"strings"

	"github.com/dirbridge/crowdldap/internal/crowd"
)

// fakeBackend is an in-memory Backend for tests. Keys are matched
// case-insensitively, like the real service.
type fakeBackend struct {
	users        map[string]*crowd.User
	groups       map[string]*crowd.Group
	userGroups   map[string][]string
	groupParents map[string][]string
	secrets      map[string]string

	failWith error // when set, every call fails with this error
	calls    map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:        make(map[string]*crowd.User),
		groups:       make(map[string]*crowd.Group),
		userGroups:   make(map[string][]string),
		groupParents: make(map[string][]string),
		secrets:      make(map[string]string),
		calls:        make(map[string]int),
	}
}

func (f *fakeBackend) addUser(u crowd.User) {
	f.users[strings.ToLower(u.Name)] = &u
}

func (f *fakeBackend) addGroup(g crowd.Group) {
	f.groups[strings.ToLower(g.Name)] = &g
}

func (f *fakeBackend) FindUser(_ context.Context, name string) (*crowd.User, error) {
	f.calls["FindUser"]++
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[strings.ToLower(name)]
	if !ok {
		return nil, crowd.NewError("find_user", crowd.KindNotFound, "no such user", nil)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeBackend) FindGroup(_ context.Context, name string) (*crowd.Group, error) {
	f.calls["FindGroup"]++
	if f.failWith != nil {
		return nil, f.failWith
	}
	g, ok := f.groups[strings.ToLower(name)]
	if !ok {
		return nil, crowd.NewError("find_group", crowd.KindNotFound, "no such group", nil)
	}
	cp := *g
	return &cp, nil
}

func (f *fakeBackend) ListUsers(_ context.Context, max int) ([]crowd.User, error) {
	f.calls["ListUsers"]++
	if f.failWith != nil {
		return nil, f.failWith
	}
	users := make([]crowd.User, 0, len(f.users))
	for _, u := range f.users {
		if len(users) == max {
			break
		}
		users = append(users, *u)
	}
	return users, nil
}

func (f *fakeBackend) ListGroups(_ context.Context, max int) ([]crowd.Group, error) {
	f.calls["ListGroups"]++
	if f.failWith != nil {
		return nil, f.failWith
	}
	groups := make([]crowd.Group, 0, len(f.groups))
	for _, g := range f.groups {
		if len(groups) == max {
			break
		}
		groups = append(groups, *g)
	}
	return groups, nil
}

func (f *fakeBackend) DirectGroupsOf(_ context.Context, name string, kind crowd.PrincipalKind) ([]string, error) {
	f.calls["DirectGroupsOf"]++
	if f.failWith != nil {
		return nil, f.failWith
	}
	m := f.userGroups
	if kind == crowd.KindGroup {
		m = f.groupParents
	}
	return m[strings.ToLower(name)], nil
}

func (f *fakeBackend) Authenticate(_ context.Context, username, secret string) error {
	f.calls["Authenticate"]++
	if f.failWith != nil {
		return f.failWith
	}
	if want, ok := f.secrets[strings.ToLower(username)]; ok && want == secret {
		return nil
	}
	return crowd.NewError("authenticate", crowd.KindInvalidCredentials, "credentials rejected", nil)
}
