// Package config manages global stride configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvHome               = "STRIDE_HOME"
	EnvAPIURL             = "STRIDE_API_URL"
	EnvPublishableKey     = "STRIDE_PUBLISHABLE_KEY"
	EnvGoogleClientID     = "STRIDE_GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "STRIDE_GOOGLE_CLIENT_SECRET"
)

const (
	DefaultAPIURL       = "https://auth.stride.fit"
	DefaultGoogleIssuer = "https://accounts.google.com"
)

// Config holds global stride configuration.
type Config struct {
	Identity      IdentityConfig `yaml:"identity"`
	Google        GoogleConfig   `yaml:"google"`
	Routes        RoutesConfig   `yaml:"routes"`
	Browser       string         `yaml:"browser"`
	LogLevel      string         `yaml:"log_level"`
	ReducedMotion bool           `yaml:"reduced_motion"`
}

// IdentityConfig points stride at its identity service.
type IdentityConfig struct {
	APIURL         string   `yaml:"api_url"`
	PublishableKey string   `yaml:"publishable_key"`
	AllowedHosts   []string `yaml:"allowed_hosts,omitempty"`
}

// GoogleConfig configures the Google redirect sign-in. An empty ClientID
// disables it.
type GoogleConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	Issuer       string   `yaml:"issuer"`
	CallbackPort int      `yaml:"callback_port"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// RoutesConfig names the screens the navigator moves between.
type RoutesConfig struct {
	Main     string `yaml:"main"`
	Register string `yaml:"register"`
	Login    string `yaml:"login"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Identity: IdentityConfig{
			APIURL:       DefaultAPIURL,
			AllowedHosts: []string{"stride.fit"},
		},
		Google: GoogleConfig{
			Issuer: DefaultGoogleIssuer,
		},
		Routes: RoutesConfig{
			Main:     "/main",
			Register: "/register",
			Login:    "/login",
		},
		Browser:  "system",
		LogLevel: "info",
	}
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stride", "config.yaml")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "stride", "config.yaml")
	}
	return filepath.Join(homeDir, ".config", "stride", "config.yaml")
}

// HomeDir returns stride's data directory: $STRIDE_HOME, else ~/.stride.
func HomeDir() string {
	if home := os.Getenv(EnvHome); home != "" {
		return home
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".stride"
	}
	return filepath.Join(homeDir, ".stride")
}

// LogPath is where logs go while the full-screen UI owns the terminal.
func LogPath() string {
	return filepath.Join(HomeDir(), "logs", "stride.log")
}

// Load reads the config from ConfigPath.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path. A missing file yields the defaults.
// Environment overrides are applied last.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// Save writes the config to ConfigPath.
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the config atomically to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write tmp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// Validate reports the first problem that would stop stride from starting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Identity.APIURL) == "" {
		return fmt.Errorf("identity.api_url is required")
	}
	u, err := url.Parse(c.Identity.APIURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("identity.api_url %q is not a valid URL", c.Identity.APIURL)
	}
	if strings.TrimSpace(c.Identity.PublishableKey) == "" {
		return fmt.Errorf("identity.publishable_key is required (or set %s)", EnvPublishableKey)
	}

	switch c.Browser {
	case "system", "chrome", "none":
	default:
		return fmt.Errorf("browser must be one of system, chrome, none; got %q", c.Browser)
	}

	if c.Google.CallbackPort < 0 || c.Google.CallbackPort > 65535 {
		return fmt.Errorf("google.callback_port %d out of range", c.Google.CallbackPort)
	}

	for name, route := range map[string]string{
		"main":     c.Routes.Main,
		"register": c.Routes.Register,
		"login":    c.Routes.Login,
	} {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("routes.%s must start with /, got %q", name, route)
		}
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// GoogleEnabled reports whether the Google redirect sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return strings.TrimSpace(c.Google.ClientID) != ""
}

// ParseLevel maps log_level to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Identity.APIURL = v
	}
	if v := os.Getenv(EnvPublishableKey); v != "" {
		c.Identity.PublishableKey = v
	}
	if v := os.Getenv(EnvGoogleClientID); v != "" {
		c.Google.ClientID = v
	}
	if v := os.Getenv(EnvGoogleClientSecret); v != "" {
		c.Google.ClientSecret = v
	}
}

// fillDefaults restores defaults for keys a partial file left empty.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Identity.APIURL == "" {
		c.Identity.APIURL = def.Identity.APIURL
	}
	if c.Google.Issuer == "" {
		c.Google.Issuer = def.Google.Issuer
	}
	if c.Routes.Main == "" {
		c.Routes.Main = def.Routes.Main
	}
	if c.Routes.Register == "" {
		c.Routes.Register = def.Routes.Register
	}
	if c.Routes.Login == "" {
		c.Routes.Login = def.Routes.Login
	}
	if c.Browser == "" {
		c.Browser = def.Browser
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}
