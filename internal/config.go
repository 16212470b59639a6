package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/bucketpress/internal/publish"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFS       = "fs"
	DriverSupabase = "supabase"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Publish PublishConfig     `yaml:"publish"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Publish.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects and configures the object store.
//
// PublicBaseURL is the prefix that public object URLs are built from for
// the memory and fs drivers; the default points at the built-in storage
// proxy. The supabase driver derives public URLs from the project URL.
type StoreConfig struct {
	Driver        string         `yaml:"driver"`
	Path          string         `yaml:"path"`
	PublicBaseURL string         `yaml:"public_base_url"`
	Supabase      SupabaseConfig `yaml:"supabase"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverMemory, DriverFS, DriverSupabase)),
		validation.Field(&c.Path, validation.When(c.Driver == DriverFS, validation.Required)),
	); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if c.Driver == DriverSupabase {
		if err := c.Supabase.Validate(); err != nil {
			return fmt.Errorf("store: supabase: %w", err)
		}
	}
	return nil
}

// SupabaseConfig holds the Supabase Storage project settings.
type SupabaseConfig struct {
	URL    string `yaml:"url"`
	Key    string `yaml:"key"`
	Bucket string `yaml:"bucket"`
}

// Validate validates the Supabase configuration.
func (c *SupabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Key, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how the JSON API is protected:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// Basic holds the credentials for the HTML pages. Leaving them empty makes
// every page request fail with a server configuration error.
type AuthConfig struct {
	Mode  string          `yaml:"mode"`
	Token string          `yaml:"token"`
	Basic BasicAuthConfig `yaml:"basic"`
}

// BasicAuthConfig is the shared username and password for the pages.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// PublishConfig configures the publish webhook and its rate limits. An
// empty URL or token is accepted at startup; publish requests then report
// a configuration error.
type PublishConfig struct {
	URL         string        `yaml:"url"`
	Token       string        `yaml:"token"`
	Cooldown    time.Duration `yaml:"cooldown"`
	MinDuration time.Duration `yaml:"min_duration"`
}

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.URL, is.URL),
		validation.Field(&c.Cooldown, validation.Min(time.Duration(0))),
		validation.Field(&c.MinDuration, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver:        DriverFS,
			Path:          "./bucket",
			PublicBaseURL: "/storage/v1/object/public",
		},
		SQLite: SQLiteConfig{
			Path: "./bucketpress.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Publish: PublishConfig{
			Cooldown:    publish.DefaultCooldown,
			MinDuration: publish.DefaultMinDuration,
		},
	}
}
