package directory

import (
	"fmt"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// compileFilter parses an RFC 4515 filter string into its BER tree. An
// empty filter matches everything.
func compileFilter(filter string) (*ber.Packet, error) {
	if filter == "" {
		filter = "(objectClass=*)"
	}
	packet, err := ldap.CompileFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidFilter, filter, err)
	}
	return packet, nil
}

// matchFilter evaluates a compiled filter against an entry. Attribute names
// and values compare case-insensitively. Match types the directory does not
// support (ordering, approximate, extensible) are treated as non-matching
// rather than as errors.
func matchFilter(f *ber.Packet, e *Entry) bool {
	switch f.Tag {
	case ldap.FilterAnd:
		for _, child := range f.Children {
			if !matchFilter(child, e) {
				return false
			}
		}
		return true

	case ldap.FilterOr:
		for _, child := range f.Children {
			if matchFilter(child, e) {
				return true
			}
		}
		return false

	case ldap.FilterNot:
		if len(f.Children) != 1 {
			return false
		}
		return !matchFilter(f.Children[0], e)

	case ldap.FilterEqualityMatch:
		if len(f.Children) != 2 {
			return false
		}
		attr := packetString(f.Children[0])
		want := packetString(f.Children[1])
		for _, v := range e.Values(attr) {
			if strings.EqualFold(v, want) {
				return true
			}
		}
		return false

	case ldap.FilterPresent:
		return e.Has(packetString(f))

	case ldap.FilterSubstrings:
		if len(f.Children) != 2 {
			return false
		}
		attr := packetString(f.Children[0])
		for _, v := range e.Values(attr) {
			if matchSubstrings(f.Children[1], strings.ToLower(v)) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// matchSubstrings checks every substring component against a lowercased
// value.
func matchSubstrings(subs *ber.Packet, value string) bool {
	for _, sub := range subs.Children {
		fragment := strings.ToLower(packetString(sub))
		switch sub.Tag {
		case ldap.FilterSubstringsInitial:
			if !strings.HasPrefix(value, fragment) {
				return false
			}
		case ldap.FilterSubstringsAny:
			if !strings.Contains(value, fragment) {
				return false
			}
		case ldap.FilterSubstringsFinal:
			if !strings.HasSuffix(value, fragment) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// equalityAnchor looks for an equality assertion on one of the given
// attributes, directly or inside a conjunction. A hit lets a search resolve
// a single candidate instead of listing the whole branch.
func equalityAnchor(f *ber.Packet, attrs ...string) (string, bool) {
	switch f.Tag {
	case ldap.FilterEqualityMatch:
		if len(f.Children) != 2 {
			return "", false
		}
		name := packetString(f.Children[0])
		for _, attr := range attrs {
			if strings.EqualFold(name, attr) {
				return packetString(f.Children[1]), true
			}
		}
	case ldap.FilterAnd:
		for _, child := range f.Children {
			if value, ok := equalityAnchor(child, attrs...); ok {
				return value, true
			}
		}
	}
	return "", false
}

// packetString reads the string payload of a BER leaf packet.
func packetString(p *ber.Packet) string {
	if s, ok := p.Value.(string); ok {
		return s
	}
	return p.Data.String()
}
