package directory

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/go-hclog"

	"github.com/dirbridge/crowdldap/internal/config"
	"github.com/dirbridge/crowdldap/internal/crowd"
)

// MemberOfResolver computes the memberOf attribute for a principal by
// walking the backend's group graph breadth-first. The walk tolerates
// membership cycles: each group is visited at most once, matched
// case-insensitively.
type MemberOfResolver struct {
	backend Backend
	mapper  *DNMapper
	cfg     config.MemberOfConfig
	log     hclog.Logger
}

// NewMemberOfResolver creates a resolver with the given emulation settings.
func NewMemberOfResolver(backend Backend, mapper *DNMapper, cfg config.MemberOfConfig, log hclog.Logger) *MemberOfResolver {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &MemberOfResolver{backend: backend, mapper: mapper, cfg: cfg, log: log.Named("memberof")}
}

// Resolve returns the memberOf DNs for the named principal, direct groups
// first, then transitive ancestors in discovery order when nesting is on.
// Each group appears at most once. An unknown principal resolves to no
// groups; a backend failure aborts the whole resolution.
func (r *MemberOfResolver) Resolve(ctx context.Context, name string, kind crowd.PrincipalKind) ([]string, error) {
	direct, err := r.backend.DirectGroupsOf(ctx, name, kind)
	if err != nil {
		if crowd.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	visited := make(map[string]struct{})
	queue := append([]string(nil), direct...)
	var dns []string

	for len(queue) > 0 {
		group := queue[0]
		queue = queue[1:]

		key := strings.ToLower(group)
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		admitted, err := r.admitted(ctx, group)
		if err != nil {
			return nil, err
		}
		if !admitted {
			// Excluded groups are neither reported nor expanded, but they
			// stay in the visited set so a cycle through them terminates.
			continue
		}

		dns = append(dns, r.memberOfDN(group))

		if !r.cfg.Nested {
			continue
		}
		parents, err := r.backend.DirectGroupsOf(ctx, group, crowd.KindGroup)
		if err != nil {
			if crowd.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		queue = append(queue, parents...)
	}

	r.log.Debug("resolved memberOf", "principal", name, "kind", kind, "groups", len(dns))
	return dns, nil
}

// admitted applies the gid selector. With no selector configured every
// group is admitted; otherwise only groups whose gidNumber attribute equals
// the configured gid.
func (r *MemberOfResolver) admitted(ctx context.Context, group string) (bool, error) {
	if r.cfg.GID < 0 {
		return true, nil
	}
	g, err := r.backend.FindGroup(ctx, group)
	if err != nil {
		if crowd.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	want := strconv.Itoa(r.cfg.GID)
	for name, values := range g.Attributes {
		if !strings.EqualFold(name, "gidNumber") {
			continue
		}
		for _, v := range values {
			if v == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// memberOfDN renders the DN reported for a group. Without a naming template
// the group's real DN in the served tree is used; with one, the DN is built
// from the template components, falling back to the group name for an unset
// cn.
func (r *MemberOfResolver) memberOfDN(group string) string {
	if !r.cfg.Template() {
		return r.mapper.GroupDN(group)
	}
	cn := r.cfg.TemplateCN
	if cn == "" {
		cn = group
	}
	parts := []string{"cn=" + ldap.EscapeDN(cn)}
	if r.cfg.TemplateOU != "" {
		parts = append(parts, "ou="+ldap.EscapeDN(r.cfg.TemplateOU))
	}
	if r.cfg.TemplateDC != "" {
		parts = append(parts, "dc="+ldap.EscapeDN(r.cfg.TemplateDC))
	}
	return strings.Join(parts, ",")
}
