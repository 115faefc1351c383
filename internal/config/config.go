// Package config handles loading and validation of service configuration.
// Supports both development (env vars, .env, CONFIG_FILE) and production
// (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"

	"opf-quickbuy/internal/opf"
	"opf-quickbuy/internal/transport"
	"opf-quickbuy/internal/wallet"
)

// Config holds all service configuration.
// Environment determines whether storefront settings load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	MerchantID string

	// Idle wallet sessions are cancelled and dropped after this long.
	SessionTTL time.Duration

	Storefront StorefrontConfig
}

// StorefrontConfig contains the backend and wallet settings of one storefront.
// In production, this is loaded from Secret Manager as JSON.
type StorefrontConfig struct {
	BaseURL     string `json:"base_url"`
	ContextPath string `json:"context_path"`
	Origin      string `json:"origin,omitempty"` // shopper-facing origin, defaults to BaseURL

	MerchantName         string `json:"merchant_name,omitempty"`
	CountryCode          string `json:"country_code,omitempty"`
	ApplePayVersion      int    `json:"apple_pay_version,omitempty"`
	ApplePayMinVersion   string `json:"apple_pay_min_version,omitempty"`
	GooglePayEnvironment string `json:"google_pay_environment,omitempty"`

	SubmitMaxAttempts int    `json:"submit_max_attempts,omitempty"`
	RequestTimeout    string `json:"request_timeout,omitempty"` // Go duration, e.g. "30s"
	TLSFingerprint    string `json:"tls_fingerprint,omitempty"` // "chrome" or "standard"
}

// Load reads configuration from file, environment, or Secret Manager.
// A .env file in the working directory is applied first without overriding
// variables already set.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		MerchantID:  os.Getenv("MERCHANT_ID"),
	}

	ttl, err := parseDuration("SESSION_TTL", os.Getenv("SESSION_TTL"), wallet.DefaultSessionTTL)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = ttl

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.MerchantID == "" {
			return nil, fmt.Errorf("MERCHANT_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading storefront config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string           `json:"port"`
		Environment string           `json:"environment"`
		LogLevel    string           `json:"log_level"`
		MerchantID  string           `json:"merchant_id"`
		SessionTTL  string           `json:"session_ttl"`
		Storefront  StorefrontConfig `json:"storefront"`
	}
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	ttl, err := parseDuration("session_ttl", fileConfig.SessionTTL, wallet.DefaultSessionTTL)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		MerchantID:  fileConfig.MerchantID,
		SessionTTL:  ttl,
		Storefront:  fileConfig.Storefront,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromSecretManager fetches the storefront config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{merchant_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.MerchantID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Storefront); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadFromEnv reads the storefront config from individual environment variables.
func (c *Config) loadFromEnv() error {
	c.Storefront = StorefrontConfig{
		BaseURL:              os.Getenv("STOREFRONT_BASE_URL"),
		ContextPath:          os.Getenv("STOREFRONT_CONTEXT_PATH"),
		Origin:               os.Getenv("STOREFRONT_ORIGIN"),
		MerchantName:         os.Getenv("MERCHANT_NAME"),
		CountryCode:          os.Getenv("COUNTRY_CODE"),
		ApplePayMinVersion:   os.Getenv("APPLE_PAY_MIN_VERSION"),
		GooglePayEnvironment: os.Getenv("GOOGLE_PAY_ENVIRONMENT"),
		RequestTimeout:       os.Getenv("REQUEST_TIMEOUT"),
		TLSFingerprint:       os.Getenv("TLS_FINGERPRINT"),
	}

	var err error
	if c.Storefront.ApplePayVersion, err = envInt("APPLE_PAY_VERSION"); err != nil {
		return err
	}
	if c.Storefront.SubmitMaxAttempts, err = envInt("SUBMIT_MAX_ATTEMPTS"); err != nil {
		return err
	}
	return nil
}

// validate checks required fields and fills defaults.
func (c *Config) validate() error {
	s := &c.Storefront
	if s.BaseURL == "" {
		return fmt.Errorf("storefront base_url is required")
	}
	if err := checkURL("base_url", s.BaseURL); err != nil {
		return err
	}
	if s.Origin != "" {
		if err := checkURL("origin", s.Origin); err != nil {
			return err
		}
	}

	if s.ContextPath != "" && !strings.HasPrefix(s.ContextPath, "/") {
		s.ContextPath = "/" + s.ContextPath
	}
	s.ContextPath = strings.TrimSuffix(s.ContextPath, "/")

	if s.SubmitMaxAttempts < 0 {
		return fmt.Errorf("submit_max_attempts must be positive, got %d", s.SubmitMaxAttempts)
	}
	if s.SubmitMaxAttempts == 0 {
		s.SubmitMaxAttempts = opf.DefaultMaxAttempts
	}
	if s.ApplePayVersion < 0 {
		return fmt.Errorf("apple_pay_version must be positive, got %d", s.ApplePayVersion)
	}
	if s.ApplePayVersion == 0 {
		s.ApplePayVersion = wallet.DefaultApplePayVersion
	}
	s.GooglePayEnvironment = withDefault(s.GooglePayEnvironment, wallet.DefaultGooglePayEnvironment)
	if s.GooglePayEnvironment != "TEST" && s.GooglePayEnvironment != "PRODUCTION" {
		return fmt.Errorf("google_pay_environment must be TEST or PRODUCTION, got %q", s.GooglePayEnvironment)
	}

	if _, err := parseDuration("request_timeout", s.RequestTimeout, opf.DefaultTimeout); err != nil {
		return err
	}

	switch transport.Fingerprint(withDefault(s.TLSFingerprint, string(transport.FingerprintChrome))) {
	case transport.FingerprintChrome, transport.FingerprintStandard:
	default:
		return fmt.Errorf("tls_fingerprint must be chrome or standard, got %q", s.TLSFingerprint)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL)
	}
	return nil
}

// OPF returns the storefront client settings.
func (c *Config) OPF(logger *slog.Logger) opf.Config {
	timeout, _ := parseDuration("request_timeout", c.Storefront.RequestTimeout, opf.DefaultTimeout)
	return opf.Config{
		BaseURL:            strings.TrimSuffix(c.Storefront.BaseURL, "/"),
		EncodedContextPath: c.Storefront.ContextPath,
		Timeout:            timeout,
		Fingerprint:        transport.Fingerprint(withDefault(c.Storefront.TLSFingerprint, string(transport.FingerprintChrome))),
		Logger:             logger,
	}
}

// Wallet returns the settings shared by every wallet session.
func (c *Config) Wallet() wallet.Settings {
	var host string
	if c.Storefront.Origin != "" {
		if u, err := url.Parse(c.Storefront.Origin); err == nil {
			host = u.Hostname()
		}
	}
	return wallet.Settings{
		MerchantName:         c.Storefront.MerchantName,
		CountryCode:          c.Storefront.CountryCode,
		ApplePayVersion:      c.Storefront.ApplePayVersion,
		ApplePayMinVersion:   c.Storefront.ApplePayMinVersion,
		GooglePayEnvironment: c.Storefront.GooglePayEnvironment,
		Hostname:             host,
	}
}

func checkURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s: %q is not an absolute URL", field, raw)
	}
	return nil
}

// parseDuration parses val, returning def when val is empty.
func parseDuration(field, val string, def time.Duration) (time.Duration, error) {
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, val)
	}
	return d, nil
}

func envInt(key string) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
