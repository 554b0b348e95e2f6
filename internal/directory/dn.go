package directory

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

const (
	userNamingAttr  = "uid"
	groupNamingAttr = "cn"
)

// TargetKind classifies where inside the served tree a DN points.
type TargetKind int

const (
	// TargetOutside is any DN that does not belong to the served tree,
	// including malformed DNs.
	TargetOutside TargetKind = iota
	// TargetRoot is the partition suffix itself.
	TargetRoot
	// TargetUserBranch is the container holding user entries.
	TargetUserBranch
	// TargetGroupBranch is the container holding group entries.
	TargetGroupBranch
	// TargetUser is a leaf user DN; Name carries the backend user name.
	TargetUser
	// TargetGroup is a leaf group DN; Name carries the backend group name.
	TargetGroup
)

// Target is the classification of a search base or lookup DN.
type Target struct {
	Kind TargetKind
	Name string
}

// DNMapper converts between backend principal names and the DNs of the
// served tree. The mapping is total over names (every name has exactly one
// DN per kind) and partial over DNs: anything outside the tree maps to
// nothing. Comparisons are case-insensitive per distinguishedNameMatch.
type DNMapper struct {
	baseDN    string
	userBase  string
	groupBase string

	base      *ldap.DN
	userOnly  *ldap.DN
	groupOnly *ldap.DN
}

// NewDNMapper builds a mapper for the given partition suffix and the two
// container RDN values beneath it.
func NewDNMapper(baseDN, usersOU, groupsOU string) (*DNMapper, error) {
	base, err := ldap.ParseDN(baseDN)
	if err != nil {
		return nil, fmt.Errorf("invalid base DN %q: %w", baseDN, err)
	}

	m := &DNMapper{
		baseDN:    baseDN,
		userBase:  fmt.Sprintf("ou=%s,%s", ldap.EscapeDN(usersOU), baseDN),
		groupBase: fmt.Sprintf("ou=%s,%s", ldap.EscapeDN(groupsOU), baseDN),
		base:      base,
	}
	if m.userOnly, err = ldap.ParseDN(m.userBase); err != nil {
		return nil, fmt.Errorf("invalid users container %q: %w", usersOU, err)
	}
	if m.groupOnly, err = ldap.ParseDN(m.groupBase); err != nil {
		return nil, fmt.Errorf("invalid groups container %q: %w", groupsOU, err)
	}
	return m, nil
}

// BaseDN returns the partition suffix.
func (m *DNMapper) BaseDN() string { return m.baseDN }

// UserBase returns the DN of the users container.
func (m *DNMapper) UserBase() string { return m.userBase }

// GroupBase returns the DN of the groups container.
func (m *DNMapper) GroupBase() string { return m.groupBase }

// UserDN returns the DN of the named user. Special characters in the name
// are escaped, so the result always parses back to the same name.
func (m *DNMapper) UserDN(name string) string {
	return fmt.Sprintf("%s=%s,%s", userNamingAttr, ldap.EscapeDN(name), m.userBase)
}

// GroupDN returns the DN of the named group.
func (m *DNMapper) GroupDN(name string) string {
	return fmt.Sprintf("%s=%s,%s", groupNamingAttr, ldap.EscapeDN(name), m.groupBase)
}

// UserFromDN extracts the user name from a DN directly under the users
// container. It returns false for anything else.
func (m *DNMapper) UserFromDN(dn string) (string, bool) {
	return leafValue(dn, m.userOnly, userNamingAttr)
}

// GroupFromDN extracts the group name from a DN directly under the groups
// container.
func (m *DNMapper) GroupFromDN(dn string) (string, bool) {
	return leafValue(dn, m.groupOnly, groupNamingAttr)
}

// Classify resolves a DN to its place in the served tree.
func (m *DNMapper) Classify(dn string) Target {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) == 0 {
		return Target{Kind: TargetOutside}
	}
	switch {
	case parsed.EqualFold(m.base):
		return Target{Kind: TargetRoot}
	case parsed.EqualFold(m.userOnly):
		return Target{Kind: TargetUserBranch}
	case parsed.EqualFold(m.groupOnly):
		return Target{Kind: TargetGroupBranch}
	}
	if name, ok := m.UserFromDN(dn); ok {
		return Target{Kind: TargetUser, Name: name}
	}
	if name, ok := m.GroupFromDN(dn); ok {
		return Target{Kind: TargetGroup, Name: name}
	}
	return Target{Kind: TargetOutside}
}

// leafValue returns the RDN value of dn when dn is exactly one level below
// base and named by the expected attribute type.
func leafValue(dn string, base *ldap.DN, attr string) (string, bool) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) != len(base.RDNs)+1 {
		return "", false
	}
	parent := &ldap.DN{RDNs: parsed.RDNs[1:]}
	if !parent.EqualFold(base) {
		return "", false
	}
	leaf := parsed.RDNs[0]
	if len(leaf.Attributes) != 1 || !strings.EqualFold(leaf.Attributes[0].Type, attr) {
		return "", false
	}
	if leaf.Attributes[0].Value == "" {
		return "", false
	}
	return leaf.Attributes[0].Value, true
}
