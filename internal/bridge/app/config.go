package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/clientauth"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/credential"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/provider"
	"github.com/aussiebroadwan/tokenbridge/pkg/httpx"
)

// ProtectedClientConfig configures the client-credentials token the bridge
// presents on one provider surface. AuthMethod none disables it.
type ProtectedClientConfig struct {
	AuthMethod   string `validate:"oneof=none client_secret_basic client_secret_post"`
	TokenURL     string `validate:"omitempty,http_url"`
	ClientID     string `validate:"required_unless=AuthMethod none"`
	ClientSecret string `validate:"required_unless=AuthMethod none"`
	Scope        string // Optional: space separated
	Audience     string // Optional
}

// Enabled reports whether calls on this surface carry a bearer token.
func (c ProtectedClientConfig) Enabled() bool {
	return c.AuthMethod != string(clientauth.MethodNone)
}

type Config struct {
	HydraPublicURL         string `validate:"required,http_url"` // Required: Hydra public API base
	HydraAdminURL          string `validate:"required,http_url"` // Required: Hydra admin API base
	HydraClientID          string `validate:"required"`          // Required: client the flow runs as
	HydraClientSecret      string // Required unless HydraClientAuthMethod is none
	HydraClientAuthMethod  string `validate:"oneof=none client_secret_basic client_secret_post"`
	HydraClientRedirectURI string `validate:"required,url"` // Required: registered redirect URI of the client

	HydraAdmin  ProtectedClientConfig // Optional: bearer for admin calls
	HydraPublic ProtectedClientConfig // Optional: bearer for public calls

	Policy     PolicyConfig // Exchange policy from env, overridden by PolicyFile
	PolicyFile string       // Optional: YAML policy file

	ResolverMode          string        `validate:"oneof=userinfo jwt"`   // Subject resolver (default: userinfo)
	ResolverUserinfoURL   string        `validate:"omitempty,http_url"`   // Userinfo endpoint accepting the subject token
	ResolverJWKSURL       string        `validate:"omitempty,http_url"`   // JWKS for locally verified subject tokens
	ResolverIssuer        string        // Optional: expected iss of subject tokens
	ResolverAudience      []string      // Optional: accepted aud of subject tokens
	ResolverSubjectPrefix string        // Optional: prepended to every resolved subject
	ResolverCacheTTL      time.Duration `validate:"min=0"` // Resolution cache lifetime, 0 disables (default: 0)

	FlowTimeout                time.Duration `validate:"gt=0"` // Per outbound call (default: 10s)
	CredentialRefreshThreshold time.Duration `validate:"gt=0"` // Background refresh window (default: 30s)
	MaxBodyBytes               int64         `validate:"gt=0"` // Token endpoint body limit (default: 131072)

	AuditDatabaseFile    string        // Optional: SQLite audit log, empty disables
	AuditRetention       time.Duration // Audit row lifetime (default: 30 days)
	HousekeepingInterval time.Duration // Audit prune interval (default: 1h)

	ExchangeLimit httpx.RateLimitConfig
	ProbeLimit    httpx.RateLimitConfig

	Env                 string `validate:"required"`                            // Environment (dev, staging, prod) (default: dev)
	LogLevel            string `validate:"oneof=debug info warn warning error"` // Log level (default: info)
	LogFormat           string `validate:"oneof=json text"`                     // Log format (default: json)
	Port                int    `validate:"min=1,max=65535"`                     // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration                                          // Graceful shutdown timeout (default: 10s)
}

// LoadConfig reads the environment, after loading ENV_FILE (default .env)
// when it exists. Variables already set in the process win over the file.
func LoadConfig() (Config, error) {
	envFile := getEnvOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		HydraPublicURL:         os.Getenv("HYDRA_PUBLIC_URL"),
		HydraAdminURL:          os.Getenv("HYDRA_ADMIN_URL"),
		HydraClientID:          os.Getenv("HYDRA_CLIENT_ID"),
		HydraClientSecret:      os.Getenv("HYDRA_CLIENT_SECRET"),
		HydraClientAuthMethod:  getEnvOrDefault("HYDRA_CLIENT_AUTH_METHOD", string(clientauth.MethodClientSecretBasic)),
		HydraClientRedirectURI: os.Getenv("HYDRA_CLIENT_REDIRECT_URI"),

		HydraAdmin:  loadProtectedClient("HYDRA_ADMIN"),
		HydraPublic: loadProtectedClient("HYDRA_PUBLIC"),

		Policy: PolicyConfig{
			Scopes:            getEnvListOrDefault("EXCHANGE_SCOPES", nil),
			Audiences:         getEnvListOrDefault("EXCHANGE_AUDIENCES", nil),
			SubjectTokenTypes: getEnvListOrDefault("EXCHANGE_SUBJECT_TOKEN_TYPES", nil),
			ActorTokenTypes:   getEnvListOrDefault("EXCHANGE_ACTOR_TOKEN_TYPES", nil),
		},
		PolicyFile: os.Getenv("EXCHANGE_POLICY_FILE"),

		ResolverMode:          getEnvOrDefault("RESOLVER_MODE", "userinfo"),
		ResolverUserinfoURL:   os.Getenv("RESOLVER_USERINFO_URL"),
		ResolverJWKSURL:       os.Getenv("RESOLVER_JWKS_URL"),
		ResolverIssuer:        os.Getenv("RESOLVER_ISSUER"),
		ResolverAudience:      getEnvListOrDefault("RESOLVER_AUDIENCE", nil),
		ResolverSubjectPrefix: os.Getenv("RESOLVER_SUBJECT_PREFIX"),
		ResolverCacheTTL:      getEnvDurationOrDefault("RESOLVER_CACHE_TTL", 0),

		FlowTimeout:                getEnvDurationOrDefault("FLOW_TIMEOUT", provider.DefaultTimeout),
		CredentialRefreshThreshold: getEnvDurationOrDefault("CREDENTIAL_REFRESH_THRESHOLD", credential.DefaultRefreshThreshold),
		MaxBodyBytes:               int64(getEnvIntOrDefault("MAX_BODY_BYTES", int(httpx.DefaultMaxFormBytes))),

		AuditDatabaseFile:    os.Getenv("AUDIT_DATABASE_FILE"),
		AuditRetention:       getEnvDurationOrDefault("AUDIT_RETENTION", 30*24*time.Hour),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		ExchangeLimit: httpx.ParseRateLimitFromEnv("EXCHANGE", httpx.ExchangeLimit),
		ProbeLimit:    httpx.ParseRateLimitFromEnv("PROBE", httpx.ProbeLimit),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if cfg.PolicyFile != "" {
		policy, err := LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Policy = policy.Overlay(cfg.Policy)
	}

	return cfg, nil
}

func loadProtectedClient(prefix string) ProtectedClientConfig {
	return ProtectedClientConfig{
		AuthMethod:   getEnvOrDefault(prefix+"_AUTH_METHOD", string(clientauth.MethodNone)),
		TokenURL:     os.Getenv(prefix + "_TOKEN_URL"),
		ClientID:     os.Getenv(prefix + "_CLIENT_ID"),
		ClientSecret: os.Getenv(prefix + "_CLIENT_SECRET"),
		Scope:        os.Getenv(prefix + "_SCOPE"),
		Audience:     os.Getenv(prefix + "_AUDIENCE"),
	}
}

// Validate checks struct tags first, then the rules that span fields.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := c.HydraClient().Validate(); err != nil {
		return fmt.Errorf("invalid config: hydra client: %w", err)
	}

	redirect, err := url.Parse(c.HydraClientRedirectURI)
	if err != nil || redirect.Scheme == "" || redirect.Host == "" {
		return fmt.Errorf("invalid config: HYDRA_CLIENT_REDIRECT_URI must be an absolute URL with a host")
	}

	// Both would claim the Authorization header on the token endpoint.
	if c.HydraPublic.Enabled() && c.HydraClientAuthMethod == string(clientauth.MethodClientSecretBasic) {
		return fmt.Errorf("invalid config: HYDRA_PUBLIC_AUTH_METHOD cannot be combined with client_secret_basic")
	}

	for name, pc := range map[string]ProtectedClientConfig{"HYDRA_ADMIN": c.HydraAdmin, "HYDRA_PUBLIC": c.HydraPublic} {
		if pc.Enabled() && pc.TokenURL == "" {
			return fmt.Errorf("invalid config: %s_TOKEN_URL is required with %s_AUTH_METHOD=%s", name, name, pc.AuthMethod)
		}
	}

	switch {
	case c.ResolverMode == "userinfo" && c.ResolverUserinfoURL == "":
		return fmt.Errorf("invalid config: RESOLVER_USERINFO_URL is required with RESOLVER_MODE=userinfo")
	case c.ResolverMode == "jwt" && c.ResolverJWKSURL == "":
		return fmt.Errorf("invalid config: RESOLVER_JWKS_URL is required with RESOLVER_MODE=jwt")
	}

	if c.ResolverCacheTTL > time.Hour {
		return fmt.Errorf("invalid config: RESOLVER_CACHE_TTL must not exceed 1h")
	}

	return nil
}

// HydraClient returns the credentials of the client the flow runs as.
func (c Config) HydraClient() clientauth.Credentials {
	return clientauth.Credentials{
		Method:       clientauth.Method(c.HydraClientAuthMethod),
		ClientID:     c.HydraClientID,
		ClientSecret: c.HydraClientSecret,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// getEnvListOrDefault splits on spaces and commas.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return strings.FieldsFunc(value, func(r rune) bool { return r == ' ' || r == ',' })
}
