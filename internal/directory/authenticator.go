package directory

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/dirbridge/crowdldap/internal/crowd"
)

// Outcome is the result of an authentication attempt. The zero value is
// Rejected so an unhandled path never accepts.
type Outcome int

const (
	// OutcomeRejected means the backend (or the bridge itself) refused the
	// credentials. Unknown user, wrong secret and inactive account are
	// indistinguishable at this level.
	OutcomeRejected Outcome = iota
	// OutcomeAccepted means the backend validated the credentials.
	OutcomeAccepted
	// OutcomeUnavailable means credential validity could not be determined.
	// It must never be mapped to a success.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "rejected"
	}
}

// Authenticator validates simple-bind credentials against the backend.
type Authenticator struct {
	backend Backend
	log     hclog.Logger
}

// NewAuthenticator creates an authenticator over the given backend.
func NewAuthenticator(backend Backend, log hclog.Logger) *Authenticator {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Authenticator{backend: backend, log: log.Named("auth")}
}

// Authenticate checks a username/secret pair. An empty username or secret
// is rejected locally without a backend call; an empty secret in particular
// must never turn into an LDAP unauthenticated-bind success. The error is
// populated only for the unavailable outcome.
func (a *Authenticator) Authenticate(ctx context.Context, username, secret string) (Outcome, error) {
	if username == "" || secret == "" {
		return OutcomeRejected, nil
	}

	err := a.backend.Authenticate(ctx, username, secret)
	switch {
	case err == nil:
		a.log.Debug("credentials accepted", "username", username)
		return OutcomeAccepted, nil
	case crowd.IsInvalidCredentials(err) || crowd.IsNotFound(err):
		a.log.Debug("credentials rejected", "username", username)
		return OutcomeRejected, nil
	default:
		a.log.Warn("backend unavailable during authentication", "username", username, "error", err)
		return OutcomeUnavailable, err
	}
}
