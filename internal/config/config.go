// Package config loads and validates the immutable runtime configuration of
// the bridge. The configuration is built once at startup and passed by
// reference into every component; nothing mutates it afterwards.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (CROWDLDAP_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"
	"github.com/spf13/viper"
)

// Config is the complete runtime configuration of the bridge.
type Config struct {
	// Listen is the address the LDAP listener binds to.
	Listen string `default:":10389" mapstructure:"listen"`

	// TLS configures the optional TLS listener.
	TLS TLSConfig `mapstructure:"tls"`

	// BaseDN is the suffix of the virtual directory partition. The user and
	// group branches hang directly beneath it.
	BaseDN string `default:"dc=crowd" mapstructure:"base_dn"`

	// UsersOU and GroupsOU name the organizational units holding synthesized
	// user and group entries (ou=<UsersOU>,<BaseDN> and so on).
	UsersOU  string `default:"users"  mapstructure:"users_ou"`
	GroupsOU string `default:"groups" mapstructure:"groups_ou"`

	// MaxResults bounds every bulk listing call against the backend. A search
	// needing more candidates than this reports a size-limit condition.
	MaxResults int `default:"1000" mapstructure:"max_results"`

	// AllowAnonymous permits the anonymous (empty DN, empty password) bind.
	AllowAnonymous bool `mapstructure:"allow_anonymous"`

	// MemberOf controls AD-style memberOf emulation.
	MemberOf MemberOfConfig `mapstructure:"memberof"`

	// Crowd configures the backend identity service client.
	Crowd CrowdConfig `mapstructure:"crowd"`

	// LogLevel is the hclog level name (trace, debug, info, warn, error).
	LogLevel string `default:"info" mapstructure:"log_level"`
}

// TLSConfig holds the listener TLS settings.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// MemberOfConfig mirrors the memberOf emulation knobs of the original
// property file (emulate.ad.memberof, emulate.ad.include.nested,
// map.member.cn/ou/dc, map.member.gid).
type MemberOfConfig struct {
	// Enabled turns memberOf synthesis on.
	Enabled bool `mapstructure:"enabled"`

	// Nested includes transitively nested group memberships.
	Nested bool `mapstructure:"nested"`

	// GID, when >= 0, restricts memberOf emulation to groups whose backend
	// gidNumber attribute equals it. Groups outside the selector are excluded
	// from output and expansion but still guard against revisitation.
	GID int `default:"-1" mapstructure:"gid"`

	// TemplateCN, TemplateOU and TemplateDC shape the DNs produced for
	// memberOf values. With all three unset the standard group-branch DN is
	// used. When a template is in effect an unset CN falls back to the
	// group's own name; unset OU/DC components are omitted.
	TemplateCN string `mapstructure:"template_cn"`
	TemplateOU string `mapstructure:"template_ou"`
	TemplateDC string `mapstructure:"template_dc"`
}

// Template reports whether any naming-template component is configured.
func (m MemberOfConfig) Template() bool {
	return m.TemplateCN != "" || m.TemplateOU != "" || m.TemplateDC != ""
}

// CrowdConfig configures the REST client talking to the identity backend.
type CrowdConfig struct {
	// BaseURL is the root of the backend service, e.g.
	// https://crowd.example.com/crowd.
	BaseURL string `mapstructure:"base_url"`

	// Application and Password authenticate the bridge itself against the
	// backend (application basic auth).
	Application string `mapstructure:"application"`
	Password    string `mapstructure:"password"`

	// Timeout applies to each backend call.
	Timeout time.Duration `default:"10s" mapstructure:"timeout"`

	// MaxRetries bounds transport-level retries. The core never retries;
	// retry policy lives entirely in the HTTP transport.
	MaxRetries int `default:"2" mapstructure:"max_retries"`
}

// Load reads the configuration from the given file (optional), the standard
// search paths and the CROWDLDAP_* environment, applies defaults and
// validates the result. Validation failures are fatal to startup.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("crowdldap")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/crowdldap")
	}
	v.SetEnvPrefix("CROWDLDAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when no explicit path was given; the
		// environment and defaults may carry the whole configuration.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply configuration defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors that would make the bridge
// misbehave at runtime. It never mutates the receiver.
func (c *Config) Validate() error {
	if _, err := ldap.ParseDN(c.BaseDN); err != nil {
		return fmt.Errorf("invalid base DN %q: %w", c.BaseDN, err)
	}
	if err := validateOU("users_ou", c.UsersOU); err != nil {
		return err
	}
	if err := validateOU("groups_ou", c.GroupsOU); err != nil {
		return err
	}
	if strings.EqualFold(c.UsersOU, c.GroupsOU) {
		return fmt.Errorf("users_ou and groups_ou must differ, both are %q", c.UsersOU)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}
	for name, comp := range map[string]string{
		"memberof.template_cn": c.MemberOf.TemplateCN,
		"memberof.template_ou": c.MemberOf.TemplateOU,
		"memberof.template_dc": c.MemberOf.TemplateDC,
	} {
		if strings.ContainsAny(comp, ",=") {
			return fmt.Errorf("%s must be a bare RDN value, got %q", name, comp)
		}
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file are required when TLS is enabled")
	}
	if c.Crowd.BaseURL == "" {
		return fmt.Errorf("crowd.base_url is required")
	}
	if _, err := url.Parse(c.Crowd.BaseURL); err != nil {
		return fmt.Errorf("invalid crowd.base_url %q: %w", c.Crowd.BaseURL, err)
	}
	if c.Crowd.Timeout <= 0 {
		return fmt.Errorf("crowd.timeout must be positive, got %s", c.Crowd.Timeout)
	}
	return nil
}

func validateOU(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	if strings.ContainsAny(value, ",=+") {
		return fmt.Errorf("%s must be a bare RDN value, got %q", name, value)
	}
	return nil
}
