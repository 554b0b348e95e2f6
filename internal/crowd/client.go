// Package crowd implements the REST client for the backend identity service.
// It is the only component that speaks HTTP; everything above it sees typed
// records and typed error kinds. Transport-level retry policy lives here and
// nowhere else.
package crowd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"
)

const restPrefix = "/rest/usermanagement/1"

// ClientConfig holds the settings needed to reach the backend.
type ClientConfig struct {
	BaseURL     string
	Application string // application name for basic auth
	Password    string // application password
	Timeout     time.Duration
	MaxRetries  int
}

// Client talks to the backend's usermanagement resource. It is safe for
// concurrent use.
type Client struct {
	http     *retryablehttp.Client
	base     *url.URL
	app      string
	password string
	log      hclog.Logger
}

// NewClient creates a backend client. The underlying HTTP client retries
// transient transport failures with backoff; a request that still fails is
// reported as an unavailable-kind error.
func NewClient(cfg ClientConfig, log hclog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL %q: %w", cfg.BaseURL, err)
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.Logger = log.Named("http")
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}

	return &Client{
		http:     rc,
		base:     base,
		app:      cfg.Application,
		password: cfg.Password,
		log:      log,
	}, nil
}

// FindUser fetches a user by name, including its backend attributes.
func (c *Client) FindUser(ctx context.Context, name string) (*User, error) {
	q := url.Values{"username": {name}, "expand": {"attributes"}}
	var dto userDTO
	if err := c.get(ctx, "find_user", "/user", q, &dto); err != nil {
		return nil, err
	}
	user := dto.toUser()
	return &user, nil
}

// FindGroup fetches a group by name together with its direct user members
// and direct child groups.
func (c *Client) FindGroup(ctx context.Context, name string) (*Group, error) {
	q := url.Values{"groupname": {name}, "expand": {"attributes"}}
	var dto groupDTO
	if err := c.get(ctx, "find_group", "/group", q, &dto); err != nil {
		return nil, err
	}
	group := dto.toGroup()
	if err := c.hydrateMembers(ctx, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// ListUsers returns up to max users from the backend.
func (c *Client) ListUsers(ctx context.Context, max int) ([]User, error) {
	q := url.Values{
		"entity-type": {"user"},
		"expand":      {"user"},
		"start-index": {"0"},
		"max-results": {strconv.Itoa(max)},
	}
	var dto userListDTO
	if err := c.get(ctx, "list_users", "/search", q, &dto); err != nil {
		return nil, err
	}
	users := make([]User, 0, len(dto.Users))
	for _, u := range dto.Users {
		users = append(users, u.toUser())
	}
	return users, nil
}

// ListGroups returns up to max groups, each hydrated with its direct
// membership so entry synthesis has the full record in hand.
func (c *Client) ListGroups(ctx context.Context, max int) ([]Group, error) {
	q := url.Values{
		"entity-type": {"group"},
		"expand":      {"group"},
		"start-index": {"0"},
		"max-results": {strconv.Itoa(max)},
	}
	var dto groupListDTO
	if err := c.get(ctx, "list_groups", "/search", q, &dto); err != nil {
		return nil, err
	}
	groups := make([]Group, 0, len(dto.Groups))
	for _, g := range dto.Groups {
		group := g.toGroup()
		if err := c.hydrateMembers(ctx, &group); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// DirectGroupsOf returns the names of the groups the principal is a direct
// member of. An unknown principal yields a not-found error.
func (c *Client) DirectGroupsOf(ctx context.Context, name string, kind PrincipalKind) ([]string, error) {
	var path string
	q := url.Values{"max-results": {"-1"}}
	switch kind {
	case KindGroup:
		path = "/group/parent-group/direct"
		q.Set("groupname", name)
	default:
		path = "/user/group/direct"
		q.Set("username", name)
	}
	var dto nameListDTO
	if err := c.get(ctx, "direct_groups_of", path, q, &dto); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dto.Groups))
	for _, g := range dto.Groups {
		names = append(names, g.Name)
	}
	return names, nil
}

// Authenticate validates a username/secret pair against the backend. A nil
// return means the credentials are valid. Every backend-reported failure
// (wrong password, unknown user, inactive account) comes back as an
// invalid-credentials error; transport failures as unavailable.
func (c *Client) Authenticate(ctx context.Context, username, secret string) error {
	const op = "authenticate"

	body, err := json.Marshal(passwordDTO{Value: secret})
	if err != nil {
		return NewError(op, KindUnavailable, "failed to encode credential", err)
	}

	q := url.Values{"username": {username}}
	resp, err := c.do(ctx, http.MethodPost, "/authentication", q, body)
	if err != nil {
		return NewError(op, KindUnavailable, "backend request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// All 4xx responses fold into a single rejection so the caller
		// cannot distinguish an unknown user from a wrong password.
		c.log.Debug("backend rejected credentials", "username", username,
			"status", resp.StatusCode, "reason", readErrorReason(resp.Body))
		return NewError(op, KindInvalidCredentials, "credentials rejected", nil)
	default:
		return NewError(op, KindUnavailable,
			fmt.Sprintf("unexpected backend status %d", resp.StatusCode), nil)
	}
}

// hydrateMembers populates a group's direct user members and child groups.
func (c *Client) hydrateMembers(ctx context.Context, group *Group) error {
	q := url.Values{"groupname": {group.Name}, "max-results": {"-1"}}

	var users nameListDTO
	if err := c.get(ctx, "group_members", "/group/user/direct", q, &users); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	for _, u := range users.Users {
		group.Members = append(group.Members, u.Name)
	}

	var children nameListDTO
	if err := c.get(ctx, "group_children", "/group/child-group/direct", q, &children); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	for _, g := range children.Groups {
		group.Subgroups = append(group.Subgroups, g.Name)
	}
	return nil
}

// get performs a GET against the usermanagement resource and decodes a 2xx
// response into out. 404 maps to not-found; anything else to unavailable.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return NewError(op, KindUnavailable, "backend request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return NewError(op, KindUnavailable, "failed to decode backend response", err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return NewError(op, KindNotFound, readErrorReason(resp.Body), nil)
	default:
		return NewError(op, KindUnavailable,
			fmt.Sprintf("unexpected backend status %d: %s", resp.StatusCode, readErrorReason(resp.Body)), nil)
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	u := c.base.JoinPath(restPrefix, path)
	u.RawQuery = query.Encode()

	var rawBody any
	if body != nil {
		rawBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), rawBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.app != "" {
		req.SetBasicAuth(c.app, c.password)
	}
	return c.http.Do(req)
}

// readErrorReason extracts the backend's error message, best effort.
func readErrorReason(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var e errorDTO
	if err := json.Unmarshal(data, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return string(data)
}
