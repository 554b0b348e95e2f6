package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crowdldap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
crowd:
  base_url: https://crowd.example.com/crowd
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":10389", cfg.Listen)
	assert.Equal(t, "dc=crowd", cfg.BaseDN)
	assert.Equal(t, "users", cfg.UsersOU)
	assert.Equal(t, "groups", cfg.GroupsOU)
	assert.Equal(t, 1000, cfg.MaxResults)
	assert.False(t, cfg.AllowAnonymous)
	assert.False(t, cfg.MemberOf.Enabled)
	assert.Equal(t, -1, cfg.MemberOf.GID)
	assert.Equal(t, 10*time.Second, cfg.Crowd.Timeout)
	assert.Equal(t, 2, cfg.Crowd.MaxRetries)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
listen: ":1636"
base_dn: dc=corp,dc=example
users_ou: people
max_results: 50
memberof:
  enabled: true
  nested: true
  gid: 5000
  template_ou: teams
crowd:
  base_url: https://crowd.example.com/crowd
  application: bridge
  password: hunter2
  timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":1636", cfg.Listen)
	assert.Equal(t, "dc=corp,dc=example", cfg.BaseDN)
	assert.Equal(t, "people", cfg.UsersOU)
	assert.Equal(t, 50, cfg.MaxResults)
	assert.True(t, cfg.MemberOf.Enabled)
	assert.True(t, cfg.MemberOf.Nested)
	assert.Equal(t, 5000, cfg.MemberOf.GID)
	assert.Equal(t, "teams", cfg.MemberOf.TemplateOU)
	assert.True(t, cfg.MemberOf.Template())
	assert.Equal(t, "bridge", cfg.Crowd.Application)
	assert.Equal(t, 3*time.Second, cfg.Crowd.Timeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Listen:     ":10389",
			BaseDN:     "dc=crowd",
			UsersOU:    "users",
			GroupsOU:   "groups",
			MaxResults: 100,
			MemberOf:   MemberOfConfig{GID: -1},
			Crowd: CrowdConfig{
				BaseURL: "https://crowd.example.com/crowd",
				Timeout: 10 * time.Second,
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:   "bad base DN",
			mutate: func(c *Config) { c.BaseDN = "not a dn" },
			errMsg: "invalid base DN",
		},
		{
			name:   "empty users OU",
			mutate: func(c *Config) { c.UsersOU = "" },
			errMsg: "users_ou",
		},
		{
			name:   "OU with RDN syntax",
			mutate: func(c *Config) { c.GroupsOU = "ou=groups" },
			errMsg: "groups_ou",
		},
		{
			name:   "colliding OUs",
			mutate: func(c *Config) { c.GroupsOU = "Users" },
			errMsg: "must differ",
		},
		{
			name:   "non-positive max results",
			mutate: func(c *Config) { c.MaxResults = 0 },
			errMsg: "max_results",
		},
		{
			name:   "template component with separator",
			mutate: func(c *Config) { c.MemberOf.TemplateOU = "a,b" },
			errMsg: "bare RDN value",
		},
		{
			name:   "TLS without key",
			mutate: func(c *Config) { c.TLS = TLSConfig{Enabled: true, CertFile: "cert.pem"} },
			errMsg: "tls.cert_file and tls.key_file",
		},
		{
			name:   "missing backend URL",
			mutate: func(c *Config) { c.Crowd.BaseURL = "" },
			errMsg: "crowd.base_url is required",
		},
		{
			name:   "non-positive timeout",
			mutate: func(c *Config) { c.Crowd.Timeout = 0 },
			errMsg: "crowd.timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
