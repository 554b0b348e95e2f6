package server

import (
	"context"
	"errors"

	"github.com/jimlambrt/gldap"

	"github.com/dirbridge/crowdldap/internal/crowd"
	"github.com/dirbridge/crowdldap/internal/directory"
)

// handleBind serves simple binds. The response defaults to a rejection so
// every early return fails closed.
func (s *Server) handleBind(w *gldap.ResponseWriter, r *gldap.Request) {
	resp := r.NewBindResponse(gldap.WithResponseCode(gldap.ResultInvalidCredentials))
	defer func() {
		_ = w.Write(resp)
	}()

	m, err := r.GetSimpleBindMessage()
	if err != nil {
		s.log.Error("malformed bind request", "error", err)
		resp.SetResultCode(gldap.ResultProtocolError)
		return
	}

	if m.UserName == "" && len(m.Password) == 0 {
		if s.cfg.AllowAnonymous {
			resp.SetResultCode(gldap.ResultSuccess)
			return
		}
		s.log.Debug("anonymous bind refused")
		return
	}

	username, ok := s.part.BindUsername(m.UserName)
	if !ok {
		s.log.Debug("bind DN does not name a user", "dn", m.UserName)
		return
	}

	outcome, err := s.part.Authenticate(context.Background(), username, string(m.Password))
	switch outcome {
	case directory.OutcomeAccepted:
		resp.SetResultCode(gldap.ResultSuccess)
	case directory.OutcomeUnavailable:
		s.log.Warn("bind failed, backend unavailable", "username", username, "error", err)
		resp.SetResultCode(gldap.ResultUnavailable)
	default:
		s.log.Debug("bind rejected", "username", username)
	}
}

// handleSearch streams matching entries and finishes with a done message
// carrying the mapped result code.
func (s *Server) handleSearch(w *gldap.ResponseWriter, r *gldap.Request) {
	resp := r.NewSearchDoneResponse(gldap.WithResponseCode(gldap.ResultOperationsError))
	defer func() {
		_ = w.Write(resp)
	}()

	m, err := r.GetSearchMessage()
	if err != nil {
		s.log.Error("malformed search request", "error", err)
		resp.SetResultCode(gldap.ResultProtocolError)
		return
	}
	s.log.Debug("search", "base", m.BaseDN, "scope", m.Scope, "filter", m.Filter)

	if m.BaseDN == "" && m.Scope == gldap.BaseObject {
		_ = w.Write(s.rootDSE(r))
		resp.SetResultCode(gldap.ResultSuccess)
		return
	}

	req := &directory.SearchRequest{
		BaseDN:     m.BaseDN,
		Scope:      scopeOf(m.Scope),
		Filter:     m.Filter,
		Attributes: m.Attributes,
		SizeLimit:  int(m.SizeLimit),
	}
	err = s.part.Search(context.Background(), req, func(e *directory.Entry) error {
		return w.Write(r.NewSearchResponseEntry(e.DN, gldap.WithAttributes(e.Attributes)))
	})
	resp.SetResultCode(searchResultCode(err))
	if err != nil && crowd.IsUnavailable(err) {
		s.log.Error("search failed, backend unavailable", "base", m.BaseDN, "error", err)
	}
}

// rootDSE advertises the served naming context.
func (s *Server) rootDSE(r *gldap.Request) *gldap.SearchResponseEntry {
	return r.NewSearchResponseEntry("", gldap.WithAttributes(map[string][]string{
		"objectClass":          {"top"},
		"namingContexts":       {s.cfg.BaseDN},
		"supportedLDAPVersion": {"3"},
		"vendorName":           {"crowdldap"},
	}))
}

func (s *Server) handleAdd(w *gldap.ResponseWriter, r *gldap.Request) {
	resp := r.NewResponse(
		gldap.WithApplicationCode(gldap.ApplicationAddResponse),
		gldap.WithResponseCode(gldap.ResultUnwillingToPerform),
		gldap.WithDiagnosticMessage(directory.ErrUnsupportedOperation.Error()),
	)
	_ = w.Write(resp)
}

func (s *Server) handleModify(w *gldap.ResponseWriter, r *gldap.Request) {
	resp := r.NewModifyResponse(
		gldap.WithResponseCode(gldap.ResultUnwillingToPerform),
		gldap.WithDiagnosticMessage(directory.ErrUnsupportedOperation.Error()),
	)
	_ = w.Write(resp)
}

func (s *Server) handleDelete(w *gldap.ResponseWriter, r *gldap.Request) {
	resp := r.NewResponse(
		gldap.WithApplicationCode(gldap.ApplicationDelResponse),
		gldap.WithResponseCode(gldap.ResultUnwillingToPerform),
		gldap.WithDiagnosticMessage(directory.ErrUnsupportedOperation.Error()),
	)
	_ = w.Write(resp)
}

// scopeOf converts the wire scope. Unknown values degrade to base-object,
// the most restrictive interpretation.
func scopeOf(scope gldap.Scope) directory.Scope {
	switch scope {
	case gldap.SingleLevel:
		return directory.ScopeSingleLevel
	case gldap.WholeSubtree:
		return directory.ScopeWholeSubtree
	default:
		return directory.ScopeBaseObject
	}
}

// searchResultCode maps a partition search outcome to an LDAP result code.
// Backend unavailability is surfaced as unavailable, never as an empty
// success.
func searchResultCode(err error) int {
	switch {
	case err == nil:
		return gldap.ResultSuccess
	case errors.Is(err, directory.ErrSizeLimitExceeded):
		return gldap.ResultSizeLimitExceeded
	case errors.Is(err, directory.ErrInvalidFilter):
		return gldap.ResultProtocolError
	case crowd.IsUnavailable(err):
		return gldap.ResultUnavailable
	default:
		return gldap.ResultOperationsError
	}
}
