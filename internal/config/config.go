package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("authgate version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	OAuth   *OAuthConfig  `mapstructure:"oauth"`
	Client  *ClientConfig `mapstructure:"client"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// OAuthConfig describes the external identity provider and the sign-in policy.
// All values are resolved once at startup, never re-derived per request.
type OAuthConfig struct {
	CognitoDomain       string   `mapstructure:"cognito_domain"` // e.g. myapp.auth.ap-northeast-1.amazoncognito.com
	ClientID            string   `mapstructure:"client_id"`
	Scopes              string   `mapstructure:"scopes"` // space-separated
	IdentityProvider    string   `mapstructure:"identity_provider"`
	IssuerURL           string   `mapstructure:"issuer_url"` // optional; enables ID token signature verification
	AllowedEmailDomains string   `mapstructure:"allowed_email_domains"`
	AllowOrigins        []string `mapstructure:"allow_origins"`
}

// AllowedDomains returns the normalized allow-list: trimmed, lower-cased,
// empty entries dropped.
func (c *OAuthConfig) AllowedDomains() []string {
	var domains []string
	for _, d := range strings.Split(c.AllowedEmailDomains, ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

// ClientConfig configures the token lifecycle client (authctl and the
// client library packages).
type ClientConfig struct {
	APIURL           string        `mapstructure:"api_url"`
	StorePath        string        `mapstructure:"store_path"`
	Secret           string        `mapstructure:"secret"`
	RoutesFile       string        `mapstructure:"routes_file"`
	RefreshInterval  time.Duration `mapstructure:"refresh_interval"`
	RefreshThreshold time.Duration `mapstructure:"refresh_threshold"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("host", "", "Server listen host")
	pflag.Int("port", 0, "Server listen port")
	// Note: no pflag.Parse() here as it's called in main.go
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("AUTHGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/authgate")

	if err := viper.ReadInConfig(); err != nil {
		// Env-only deployments run without a config file.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if host := viper.GetString("host"); host != "" {
		config.Server.Host = host
	}
	if port := viper.GetInt("port"); port != 0 {
		config.Server.Port = port
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("oauth.scopes", "phone email openid profile aws.cognito.signin.user.admin")
	viper.SetDefault("oauth.identity_provider", "Google")
	viper.SetDefault("client.refresh_interval", time.Minute)
	viper.SetDefault("client.refresh_threshold", 5*time.Minute)

	// Every key must be registered or Unmarshal will not see its
	// AUTHGATE_* environment variable in env-only deployments.
	viper.SetDefault("oauth.cognito_domain", "")
	viper.SetDefault("oauth.client_id", "")
	viper.SetDefault("oauth.issuer_url", "")
	viper.SetDefault("oauth.allowed_email_domains", "")
	viper.SetDefault("oauth.allow_origins", []string{})
	viper.SetDefault("client.api_url", "")
	viper.SetDefault("client.store_path", "")
	viper.SetDefault("client.secret", "")
	viper.SetDefault("client.routes_file", "")
	viper.SetDefault("logging.output_path", "")
	viper.SetDefault("logging.disable_stacktrace", false)
	viper.SetDefault("logging.disable_console", false)
}

// ValidateServer checks the configuration required to run the gateway.
// An empty allow-list is a hard misconfiguration: sign-in must fail closed,
// never fall back to allow-all.
func (c *Config) ValidateServer() error {
	if c.OAuth == nil {
		return fmt.Errorf("oauth configuration is required, set AUTHGATE_OAUTH_* or the oauth section in config.yaml")
	}
	if c.OAuth.CognitoDomain == "" {
		return fmt.Errorf("oauth.cognito_domain is required")
	}
	if c.OAuth.ClientID == "" {
		return fmt.Errorf("oauth.client_id is required")
	}
	if len(c.OAuth.AllowedDomains()) == 0 {
		return fmt.Errorf("oauth.allowed_email_domains is required: refusing to start with an empty sign-in allow-list")
	}
	return nil
}

// ValidateClient checks the configuration required by the token lifecycle
// client.
func (c *Config) ValidateClient() error {
	if c.Client == nil {
		return fmt.Errorf("client configuration is required, set AUTHGATE_CLIENT_* or the client section in config.yaml")
	}
	if c.Client.APIURL == "" {
		return fmt.Errorf("client.api_url is required")
	}
	if c.Client.StorePath == "" {
		return fmt.Errorf("client.store_path is required")
	}
	if c.Client.Secret == "" {
		return fmt.Errorf("client.secret is required: the token store is always encrypted")
	}
	return nil
}
