package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment constants
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// Token format constants
const (
	TokenFormatOpaque = "opaque"
	TokenFormatJWT    = "jwt"
)

type Config struct {
	// Server settings
	ServerAddr string
	BaseURL    string // issuer; all endpoint URLs in metadata derive from it

	// Environment controls production-only rules such as rejecting
	// non-HTTPS redirect URIs.
	Environment string

	// Session settings (CSRF token storage)
	SessionSecret string

	// Scope settings
	ValidScopes []string // server-wide scope list

	// Authorization code settings
	AuthCodeExpiration time.Duration

	// Token settings
	TokenFormat            string // "opaque" or "jwt"
	JWTSecret              string // HMAC key when TokenFormat=jwt and no key file configured
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration // zero = refresh tokens do not expire
	EnableTokenRotation    bool          // rotate refresh tokens on use

	// Device code settings
	DeviceCodeExpiration  time.Duration
	PollingInterval       int // initial poll spacing, seconds
	DeviceVerificationURI string

	// Pushed authorization request settings (RFC 9126)
	PARRequestExpiration time.Duration

	// Rich authorization request settings (RFC 9396)
	MaxAuthorizationDetails int

	// DPoP settings (RFC 9449)
	DPoPProofMaxAge time.Duration

	// Metrics
	MetricsEnabled bool
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		ServerAddr:              getEnv("SERVER_ADDR", ":8080"),
		BaseURL:                 getEnv("BASE_URL", "http://localhost:8080"),
		Environment:             getEnv("ENVIRONMENT", EnvironmentDevelopment),
		SessionSecret:           getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		ValidScopes:             getEnvSlice("VALID_SCOPES", []string{"read", "write"}),
		AuthCodeExpiration:      getEnvDuration("AUTH_CODE_EXPIRATION", 60*time.Second),
		TokenFormat:             getEnv("TOKEN_FORMAT", TokenFormatOpaque),
		JWTSecret:               getEnv("JWT_SECRET", "your-256-bit-secret-change-in-production"),
		AccessTokenExpiration:   getEnvDuration("ACCESS_TOKEN_EXPIRATION", time.Hour),
		RefreshTokenExpiration:  getEnvDuration("REFRESH_TOKEN_EXPIRATION", 0),
		EnableTokenRotation:     getEnvBool("ENABLE_TOKEN_ROTATION", false),
		DeviceCodeExpiration:    getEnvDuration("DEVICE_CODE_EXPIRATION", 5*time.Minute),
		PollingInterval:         getEnvInt("DEVICE_POLLING_INTERVAL", 5),
		DeviceVerificationURI:   getEnv("DEVICE_VERIFICATION_URI", ""),
		PARRequestExpiration:    getEnvDuration("PAR_REQUEST_EXPIRATION", 60*time.Second),
		MaxAuthorizationDetails: getEnvInt("MAX_AUTHORIZATION_DETAILS", 10),
		DPoPProofMaxAge:         getEnvDuration("DPOP_PROOF_MAX_AGE", 60*time.Second),
		MetricsEnabled:          getEnvBool("METRICS_ENABLED", true),
	}
}

// IsProduction reports whether production-only security rules apply.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	switch c.TokenFormat {
	case TokenFormatOpaque, TokenFormatJWT:
	default:
		return fmt.Errorf("invalid TOKEN_FORMAT %q: must be %q or %q",
			c.TokenFormat, TokenFormatOpaque, TokenFormatJWT)
	}
	if c.PollingInterval < 1 {
		return fmt.Errorf("DEVICE_POLLING_INTERVAL must be at least 1 second, got %d",
			c.PollingInterval)
	}
	if c.IsProduction() && c.SessionSecret == "session-secret-change-in-production" {
		return fmt.Errorf("SESSION_SECRET must be changed in production")
	}
	if c.IsProduction() && c.TokenFormat == TokenFormatJWT &&
		c.JWTSecret == "your-256-bit-secret-change-in-production" {
		return fmt.Errorf("JWT_SECRET must be changed in production")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
