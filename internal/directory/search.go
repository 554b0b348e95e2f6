package directory

import (
	"context"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/hashicorp/go-hclog"

	"github.com/dirbridge/crowdldap/internal/crowd"
)

// Scope mirrors the three LDAP search scopes.
type Scope int

const (
	ScopeBaseObject Scope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

// SearchRequest is a protocol-independent search. SizeLimit is the client's
// requested bound; zero means no client bound. An empty Attributes list
// requests all attributes.
type SearchRequest struct {
	BaseDN     string
	Scope      Scope
	Filter     string
	Attributes []string
	SizeLimit  int
}

// SearchEvaluator executes searches over the synthesized tree. Candidate
// entries are determined by base and scope, fetched from the backend,
// filtered in memory and streamed to the caller one by one; no result set
// is ever materialized beyond the backend's own listing pages.
type SearchEvaluator struct {
	backend    Backend
	mapper     *DNMapper
	synth      *Synthesizer
	memberOf   *MemberOfResolver // nil when emulation is off
	maxResults int
	log        hclog.Logger
}

// NewSearchEvaluator creates an evaluator. maxResults bounds every bulk
// listing against the backend; memberOf may be nil to disable emulation.
func NewSearchEvaluator(backend Backend, mapper *DNMapper, synth *Synthesizer, memberOf *MemberOfResolver, maxResults int, log hclog.Logger) *SearchEvaluator {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &SearchEvaluator{
		backend:    backend,
		mapper:     mapper,
		synth:      synth,
		memberOf:   memberOf,
		maxResults: maxResults,
		log:        log.Named("search"),
	}
}

// searchState carries the per-request emission bookkeeping.
type searchState struct {
	req       *SearchRequest
	send      func(*Entry) error
	sent      int
	truncated bool
}

// Search streams the matching entries for req through send. A base outside
// the served tree yields no entries and no error. ErrSizeLimitExceeded is
// returned after the admitted entries have been streamed when either the
// client's size limit or the bulk-listing bound was hit.
func (s *SearchEvaluator) Search(ctx context.Context, req *SearchRequest, send func(*Entry) error) error {
	target := s.mapper.Classify(req.BaseDN)
	if target.Kind == TargetOutside {
		s.log.Debug("search base outside served tree", "base", req.BaseDN)
		return nil
	}

	filter, err := compileFilter(req.Filter)
	if err != nil {
		return err
	}

	var (
		wantRoot, wantUserBranch, wantGroupBranch bool
		wantUsers, wantGroups                     bool
		userPoint, groupPoint                     string
	)
	switch target.Kind {
	case TargetRoot:
		wantRoot = req.Scope != ScopeSingleLevel
		wantUserBranch = req.Scope != ScopeBaseObject
		wantGroupBranch = req.Scope != ScopeBaseObject
		wantUsers = req.Scope == ScopeWholeSubtree
		wantGroups = req.Scope == ScopeWholeSubtree
	case TargetUserBranch:
		wantUserBranch = req.Scope != ScopeSingleLevel
		wantUsers = req.Scope != ScopeBaseObject
	case TargetGroupBranch:
		wantGroupBranch = req.Scope != ScopeSingleLevel
		wantGroups = req.Scope != ScopeBaseObject
	case TargetUser:
		// A leaf has no children; one-level yields nothing.
		if req.Scope != ScopeSingleLevel {
			wantUsers = true
			userPoint = target.Name
		}
	case TargetGroup:
		if req.Scope != ScopeSingleLevel {
			wantGroups = true
			groupPoint = target.Name
		}
	}

	st := &searchState{req: req, send: send}

	if wantRoot {
		if err := s.offer(ctx, st, filter, s.synth.RootEntry(), "", ""); err != nil {
			return err
		}
	}
	if wantUserBranch {
		if err := s.offer(ctx, st, filter, s.synth.UserBranchEntry(), "", ""); err != nil {
			return err
		}
	}
	if wantGroupBranch {
		if err := s.offer(ctx, st, filter, s.synth.GroupBranchEntry(), "", ""); err != nil {
			return err
		}
	}
	if wantUsers {
		if err := s.searchUsers(ctx, st, filter, userPoint); err != nil {
			return err
		}
	}
	if wantGroups {
		if err := s.searchGroups(ctx, st, filter, groupPoint); err != nil {
			return err
		}
	}

	if st.truncated {
		return ErrSizeLimitExceeded
	}
	s.log.Debug("search complete", "base", req.BaseDN, "scope", int(req.Scope), "entries", st.sent)
	return nil
}

// searchUsers emits the matching user entries. A point lookup (explicit
// base or equality anchor on the naming attributes) resolves one candidate;
// everything else lists the branch up to the bulk bound.
func (s *SearchEvaluator) searchUsers(ctx context.Context, st *searchState, filter *ber.Packet, point string) error {
	if point == "" {
		point, _ = equalityAnchor(filter, userNamingAttr, groupNamingAttr)
	}
	if point != "" {
		user, err := s.backend.FindUser(ctx, point)
		if err != nil {
			if crowd.IsNotFound(err) {
				return nil
			}
			return err
		}
		return s.offer(ctx, st, filter, s.synth.UserEntry(user), user.Name, crowd.KindUser)
	}

	users, err := s.backend.ListUsers(ctx, s.maxResults+1)
	if err != nil {
		return err
	}
	if len(users) > s.maxResults {
		users = users[:s.maxResults]
		st.truncated = true
	}
	for i := range users {
		if err := s.offer(ctx, st, filter, s.synth.UserEntry(&users[i]), users[i].Name, crowd.KindUser); err != nil {
			return err
		}
	}
	return nil
}

func (s *SearchEvaluator) searchGroups(ctx context.Context, st *searchState, filter *ber.Packet, point string) error {
	if point == "" {
		point, _ = equalityAnchor(filter, groupNamingAttr)
	}
	if point != "" {
		group, err := s.backend.FindGroup(ctx, point)
		if err != nil {
			if crowd.IsNotFound(err) {
				return nil
			}
			return err
		}
		return s.offer(ctx, st, filter, s.synth.GroupEntry(group), group.Name, crowd.KindGroup)
	}

	groups, err := s.backend.ListGroups(ctx, s.maxResults+1)
	if err != nil {
		return err
	}
	if len(groups) > s.maxResults {
		groups = groups[:s.maxResults]
		st.truncated = true
	}
	for i := range groups {
		if err := s.offer(ctx, st, filter, s.synth.GroupEntry(&groups[i]), groups[i].Name, crowd.KindGroup); err != nil {
			return err
		}
	}
	return nil
}

// offer runs a candidate through the filter, attaches memberOf to matching
// entries when the request calls for it, enforces the client size limit and
// streams the projected entry. principal is empty for container entries.
func (s *SearchEvaluator) offer(ctx context.Context, st *searchState, filter *ber.Packet, e *Entry, principal string, kind crowd.PrincipalKind) error {
	if !matchFilter(filter, e) {
		return nil
	}
	if s.memberOf != nil && principal != "" && wantsAttribute(st.req.Attributes, "memberOf") {
		dns, err := s.memberOf.Resolve(ctx, principal, kind)
		if err != nil {
			return err
		}
		e.AddAttribute("memberOf", dns...)
	}
	if st.req.SizeLimit > 0 && st.sent >= st.req.SizeLimit {
		st.truncated = true
		return ErrSizeLimitExceeded
	}
	st.sent++
	return st.send(e.Project(st.req.Attributes))
}

// wantsAttribute reports whether the projection includes the attribute. An
// empty or wildcard projection includes everything.
func wantsAttribute(attrs []string, name string) bool {
	if len(attrs) == 0 {
		return true
	}
	for _, a := range attrs {
		if a == "*" || strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
