package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestAllowedDomains(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"single", "corp.com", []string{"corp.com"}},
		{"multiple", "corp.com,partner.io", []string{"corp.com", "partner.io"}},
		{"whitespace and case", " Corp.com , PARTNER.io ", []string{"corp.com", "partner.io"}},
		{"empty entries dropped", "corp.com,,", []string{"corp.com"}},
		{"empty string", "", nil},
		{"only separators", " , ,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &OAuthConfig{AllowedEmailDomains: tt.raw}
			if diff := cmp.Diff(tt.want, cfg.AllowedDomains()); diff != "" {
				t.Errorf("AllowedDomains() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func validServerConfig() *Config {
	return &Config{
		OAuth: &OAuthConfig{
			CognitoDomain:       "myapp.auth.example.com",
			ClientID:            "client-123",
			AllowedEmailDomains: "corp.com",
		},
	}
}

func TestValidateServer(t *testing.T) {
	if err := validServerConfig().ValidateServer(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing oauth section", func(c *Config) { c.OAuth = nil }},
		{"missing domain", func(c *Config) { c.OAuth.CognitoDomain = "" }},
		{"missing client id", func(c *Config) { c.OAuth.ClientID = "" }},
		{"empty allow-list", func(c *Config) { c.OAuth.AllowedEmailDomains = "" }},
		{"blank allow-list", func(c *Config) { c.OAuth.AllowedEmailDomains = " , " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validServerConfig()
			tt.mutate(cfg)
			if err := cfg.ValidateServer(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestValidateClient(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Client: &ClientConfig{
				APIURL:    "http://localhost:8080",
				StorePath: "/tmp/tokens.db",
				Secret:    "hunter2",
			},
		}
	}
	if err := valid().ValidateClient(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing client section", func(c *Config) { c.Client = nil }},
		{"missing api url", func(c *Config) { c.Client.APIURL = "" }},
		{"missing store path", func(c *Config) { c.Client.StorePath = "" }},
		{"missing secret", func(c *Config) { c.Client.Secret = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.ValidateClient(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %q, want info", cfg.Logging.Level)
	}
	if cfg.OAuth == nil || cfg.OAuth.IdentityProvider != "Google" {
		t.Errorf("identity provider default missing: %+v", cfg.OAuth)
	}
	if cfg.Client == nil || cfg.Client.RefreshInterval != time.Minute {
		t.Errorf("refresh interval default missing: %+v", cfg.Client)
	}
	if cfg.Client.RefreshThreshold != 5*time.Minute {
		t.Errorf("refresh threshold = %v, want 5m", cfg.Client.RefreshThreshold)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("AUTHGATE_OAUTH_CLIENT_ID", "env-client")
	t.Setenv("AUTHGATE_SERVER_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.OAuth.ClientID != "env-client" {
		t.Errorf("client id = %q, want env override", cfg.OAuth.ClientID)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
}
