package directory

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/dirbridge/crowdldap/internal/config"
	"github.com/dirbridge/crowdldap/internal/crowd"
)

// Backend is the identity-service surface the partition consumes. The REST
// client implements it; tests substitute an in-memory fake.
type Backend interface {
	FindUser(ctx context.Context, name string) (*crowd.User, error)
	FindGroup(ctx context.Context, name string) (*crowd.Group, error)
	ListUsers(ctx context.Context, max int) ([]crowd.User, error)
	ListGroups(ctx context.Context, max int) ([]crowd.Group, error)
	DirectGroupsOf(ctx context.Context, name string, kind crowd.PrincipalKind) ([]string, error)
	Authenticate(ctx context.Context, username, secret string) error
}

// Partition is the read-only virtual directory over the backend. It wires
// the mapper, synthesizer, search evaluator, memberOf resolver and
// authenticator together behind one facade for the protocol layer.
type Partition struct {
	mapper *DNMapper
	synth  *Synthesizer
	eval   *SearchEvaluator
	auth   *Authenticator
	log    hclog.Logger
}

// NewPartition builds the partition from configuration.
func NewPartition(cfg *config.Config, backend Backend, log hclog.Logger) (*Partition, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	mapper, err := NewDNMapper(cfg.BaseDN, cfg.UsersOU, cfg.GroupsOU)
	if err != nil {
		return nil, err
	}
	synth := NewSynthesizer(mapper)

	var memberOf *MemberOfResolver
	if cfg.MemberOf.Enabled {
		memberOf = NewMemberOfResolver(backend, mapper, cfg.MemberOf, log)
	}

	return &Partition{
		mapper: mapper,
		synth:  synth,
		eval:   NewSearchEvaluator(backend, mapper, synth, memberOf, cfg.MaxResults, log),
		auth:   NewAuthenticator(backend, log),
		log:    log.Named("partition"),
	}, nil
}

// Mapper exposes the DN mapper for the protocol layer.
func (p *Partition) Mapper() *DNMapper { return p.mapper }

// Lookup fetches the single entry at dn with all attributes, or nil when
// the DN names nothing in the served tree.
func (p *Partition) Lookup(ctx context.Context, dn string) (*Entry, error) {
	var found *Entry
	req := &SearchRequest{BaseDN: dn, Scope: ScopeBaseObject}
	err := p.eval.Search(ctx, req, func(e *Entry) error {
		found = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Search streams matching entries through send. See SearchEvaluator.Search.
func (p *Partition) Search(ctx context.Context, req *SearchRequest, send func(*Entry) error) error {
	return p.eval.Search(ctx, req, send)
}

// Authenticate validates simple-bind credentials.
func (p *Partition) Authenticate(ctx context.Context, username, secret string) (Outcome, error) {
	return p.auth.Authenticate(ctx, username, secret)
}

// BindUsername resolves a bind name to the backend username. It accepts a
// DN under the users container or, for clients that bind with a bare
// account name, the name itself.
func (p *Partition) BindUsername(bindDN string) (string, bool) {
	if name, ok := p.mapper.UserFromDN(bindDN); ok {
		return name, true
	}
	if bindDN != "" && !strings.Contains(bindDN, "=") {
		return bindDN, true
	}
	return "", false
}

// Add rejects the request: the partition is read-only.
func (p *Partition) Add(context.Context, string) error { return ErrUnsupportedOperation }

// Modify rejects the request: the partition is read-only.
func (p *Partition) Modify(context.Context, string) error { return ErrUnsupportedOperation }

// Delete rejects the request: the partition is read-only.
func (p *Partition) Delete(context.Context, string) error { return ErrUnsupportedOperation }

// ModifyDN rejects the request: the partition is read-only.
func (p *Partition) ModifyDN(context.Context, string) error { return ErrUnsupportedOperation }
