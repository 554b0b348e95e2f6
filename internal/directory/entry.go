package directory

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"

	"github.com/dirbridge/crowdldap/internal/crowd"
)

// Entry is a synthesized directory entry. Attribute names keep their
// canonical spelling as map keys; lookups are case-insensitive.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// NewEntry creates an empty entry at the given DN.
func NewEntry(dn string) *Entry {
	return &Entry{DN: dn, Attributes: make(map[string][]string)}
}

// AddAttribute appends values to an attribute, preserving order. Empty
// values are dropped so absent backend fields never surface as empty
// attributes.
func (e *Entry) AddAttribute(name string, values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		key := e.canonicalName(name)
		e.Attributes[key] = append(e.Attributes[key], v)
	}
}

// Values returns the values of an attribute, matched case-insensitively.
func (e *Entry) Values(name string) []string {
	return e.Attributes[e.canonicalName(name)]
}

// Has reports whether the entry carries the attribute with at least one
// value.
func (e *Entry) Has(name string) bool {
	return len(e.Values(name)) > 0
}

// Project returns a copy of the entry restricted to the requested
// attributes. An empty request list means all attributes. Requested names
// match case-insensitively; unknown names are silently ignored.
func (e *Entry) Project(attrs []string) *Entry {
	if len(attrs) == 0 {
		return e
	}
	out := NewEntry(e.DN)
	for _, name := range attrs {
		if name == "*" {
			return e
		}
		key := e.canonicalName(name)
		if values, ok := e.Attributes[key]; ok {
			out.Attributes[key] = values
		}
	}
	return out
}

// canonicalName resolves a case-insensitive attribute reference to the
// spelling already stored on the entry, or returns the reference unchanged.
func (e *Entry) canonicalName(name string) string {
	if _, ok := e.Attributes[name]; ok {
		return name
	}
	for key := range e.Attributes {
		if strings.EqualFold(key, name) {
			return key
		}
	}
	return name
}

// Synthesizer builds directory entries from backend records. Synthesis is a
// pure function of the record and the mapper configuration.
type Synthesizer struct {
	mapper *DNMapper
}

// NewSynthesizer creates a synthesizer over the given mapper.
func NewSynthesizer(mapper *DNMapper) *Synthesizer {
	return &Synthesizer{mapper: mapper}
}

// UserEntry renders a backend user as an inetOrgPerson entry.
func (s *Synthesizer) UserEntry(u *crowd.User) *Entry {
	e := NewEntry(s.mapper.UserDN(u.Name))
	e.AddAttribute("objectClass", "top", "person", "organizationalPerson", "inetOrgPerson")
	e.AddAttribute("uid", u.Name)
	e.AddAttribute("cn", u.Name)
	e.AddAttribute("sn", u.LastName)
	e.AddAttribute("givenName", u.FirstName)
	e.AddAttribute("displayName", u.DisplayName)
	e.AddAttribute("mail", u.Email)
	s.mergeBackendAttributes(e, u.Attributes)
	e.AddAttribute("entryUUID", entryUUID(e.DN))
	return e
}

// GroupEntry renders a backend group as a groupOfNames entry. Member DNs
// list direct user members first, then direct subgroups, each in backend
// order.
func (s *Synthesizer) GroupEntry(g *crowd.Group) *Entry {
	e := NewEntry(s.mapper.GroupDN(g.Name))
	e.AddAttribute("objectClass", "top", "groupOfNames")
	e.AddAttribute("cn", g.Name)
	e.AddAttribute("description", g.Description)
	for _, member := range g.Members {
		e.AddAttribute("member", s.mapper.UserDN(member))
	}
	for _, sub := range g.Subgroups {
		e.AddAttribute("member", s.mapper.GroupDN(sub))
	}
	s.mergeBackendAttributes(e, g.Attributes)
	e.AddAttribute("entryUUID", entryUUID(e.DN))
	return e
}

// RootEntry renders the partition suffix itself.
func (s *Synthesizer) RootEntry() *Entry {
	e := NewEntry(s.mapper.BaseDN())
	e.AddAttribute("objectClass", "top", "domain")
	if rdn := s.mapper.base.RDNs[0]; len(rdn.Attributes) == 1 {
		e.AddAttribute(rdn.Attributes[0].Type, rdn.Attributes[0].Value)
	}
	e.AddAttribute("entryUUID", entryUUID(e.DN))
	return e
}

// UserBranchEntry renders the users container.
func (s *Synthesizer) UserBranchEntry() *Entry {
	return s.branchEntry(s.mapper.UserBase())
}

// GroupBranchEntry renders the groups container.
func (s *Synthesizer) GroupBranchEntry() *Entry {
	return s.branchEntry(s.mapper.GroupBase())
}

func (s *Synthesizer) branchEntry(dn string) *Entry {
	e := NewEntry(dn)
	e.AddAttribute("objectClass", "top", "organizationalUnit")
	if parsed, err := ldap.ParseDN(dn); err == nil && len(parsed.RDNs[0].Attributes) == 1 {
		e.AddAttribute("ou", parsed.RDNs[0].Attributes[0].Value)
	}
	e.AddAttribute("entryUUID", entryUUID(e.DN))
	return e
}

// mergeBackendAttributes copies backend attributes that do not collide with
// an already synthesized attribute. Core attributes always win.
func (s *Synthesizer) mergeBackendAttributes(e *Entry, attrs map[string][]string) {
	for name, values := range attrs {
		if e.Has(name) {
			continue
		}
		e.AddAttribute(name, values...)
	}
}

// entryUUID derives a stable entry identifier from the DN. The same DN
// always yields the same UUID across processes and restarts.
func entryUUID(dn string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(dn))).String()
}
