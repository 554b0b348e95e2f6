// Package directory implements the virtual directory partition that bridges
// an LDAP view onto the flat identity backend: DN mapping, entry synthesis,
// in-memory filter evaluation, memberOf emulation and bind authentication.
//
// The package holds no mutable state beyond its immutable configuration and
// the injected backend client; every operation is safe for concurrent
// invocation and performs its own backend calls. It is read-only with respect
// to the backend: write operations are uniformly rejected and identity data
// is never persisted locally.
package directory
