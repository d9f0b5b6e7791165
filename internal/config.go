package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dagster-io/skills/internal/skill"
	"github.com/dagster-io/skills/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Layout LayoutConfig      `yaml:"layout"`
	Skills SkillsConfig      `yaml:"skills"`
	Links  LinksConfig       `yaml:"links"`
	Reach  ReachConfig       `yaml:"reach"`
	Watch  WatchConfig       `yaml:"watch"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// LayoutConfig names the well-known files of every skill tree.
type LayoutConfig struct {
	skill.Layout `yaml:",inline"`
}

// Validate validates the layout configuration.
func (c *LayoutConfig) Validate() error {
	if err := validation.ValidateStruct(&c.Layout,
		validation.Field(&c.Layout.EntryFile, validation.Required),
		validation.Field(&c.Layout.ReferencesDir, validation.Required),
		validation.Field(&c.Layout.IndexFile, validation.Required),
		validation.Field(&c.Layout.LinkPrefix,
			validation.In(skill.DerivedLinkPrefix(c.Layout.ReferencesDir)).Error("must be references_dir followed by a slash, or empty")),
	); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if err := validation.ValidateStruct(&c.Layout.Markers,
		validation.Field(&c.Layout.Markers.Begin, validation.Required),
		validation.Field(&c.Layout.Markers.End, validation.Required,
			validation.NotIn(c.Layout.Markers.Begin).Error("must differ from begin_marker")),
	); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	return nil
}

// SkillsConfig tells commands which skill trees to operate on when none are
// given on the command line.
//
// Dir is scanned for <dir>/<name>/skills/<name>/ and <dir>/<name>/ trees;
// Roots lists skill roots explicitly.
type SkillsConfig struct {
	Dir   string   `yaml:"dir"`
	Roots []string `yaml:"roots"`
}

// LinksConfig holds link extraction options.
type LinksConfig struct {
	// IgnoreFencedCode skips links inside fenced code blocks. Off by default:
	// every line of a document is scanned.
	IgnoreFencedCode bool `yaml:"ignore_fenced_code"`
}

// ReachConfig holds reachability options.
type ReachConfig struct {
	// Ignore lists doublestar globs, relative to the skill root, of files
	// that are never reported as orphans.
	Ignore []string `yaml:"ignore"`
}

// WatchConfig holds file watcher configuration.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// SQLiteConfig holds the link graph database configuration. An empty path
// disables the graph.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the link graph should be opened.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Layout: LayoutConfig{
			Layout: skill.DefaultLayout(),
		},
		Skills: SkillsConfig{
			Dir: "./plugins",
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
		SQLite: SQLiteConfig{
			Path: "./skillindex.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
