package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/pathgraph/internal/graphstore"
	"github.com/starford/pathgraph/internal/source"
	"github.com/starford/pathgraph/internal/writer"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store drivers.
const (
	StoreDriverNeo4j  = "neo4j"
	StoreDriverSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Source     SourceConfig      `yaml:"source"`
	Store      StoreConfig       `yaml:"store"`
	Writer     WriterConfig      `yaml:"writer"`
	Vocabulary VocabularyConfig  `yaml:"vocabulary"`
	Watch      WatchConfig       `yaml:"watch"`
	Reports    ReportsConfig     `yaml:"reports"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{&c.App, &c.Source, &c.Store, &c.Writer, &c.Watch, &c.Reports, &c.Auth} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
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

// SourceConfig points at the input records.
type SourceConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	if c.Format == "" {
		c.Format = source.FormatAuto
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Format, validation.In(source.FormatAuto, source.FormatJSONL, source.FormatXLSX)),
	)
}

// StoreConfig selects and configures the graph store.
type StoreConfig struct {
	Driver string       `yaml:"driver"`
	Neo4j  Neo4jConfig  `yaml:"neo4j"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// Validate validates the store configuration; only the selected driver's section is checked.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StoreDriverNeo4j, StoreDriverSQLite)),
	); err != nil {
		return err
	}
	if c.Driver == StoreDriverNeo4j {
		return c.Neo4j.Validate()
	}
	return c.SQLite.Validate()
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI         string        `yaml:"uri"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	Database    string        `yaml:"database"`
	MaxPoolSize int           `yaml:"max_pool_size"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Validate validates the Neo4j configuration.
func (c *Neo4jConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URI, validation.Required),
		validation.Field(&c.User, validation.Required),
		validation.Field(&c.MaxPoolSize, validation.Min(0)),
	)
}

// Driver returns the graphstore settings.
func (c *Neo4jConfig) Driver() graphstore.Neo4jConfig {
	return graphstore.Neo4jConfig{
		URI:         c.URI,
		User:        c.User,
		Password:    c.Password,
		Database:    c.Database,
		MaxPoolSize: c.MaxPoolSize,
		Timeout:     c.Timeout,
	}
}

// SQLiteConfig holds embedded store configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WriterConfig tunes graph writes.
type WriterConfig struct {
	NodeConcurrency int         `yaml:"node_concurrency"`
	Retry           RetryConfig `yaml:"retry"`
}

// Validate validates the writer configuration.
func (c *WriterConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.NodeConcurrency, validation.Required, validation.Min(1), validation.Max(64)),
	); err != nil {
		return err
	}
	return c.Retry.Validate()
}

// Writer returns the writer settings.
func (c *WriterConfig) Writer() writer.Config {
	return writer.Config{
		NodeConcurrency: c.NodeConcurrency,
		Retry: writer.RetryConfig{
			MaxTries:        c.Retry.MaxTries,
			InitialInterval: c.Retry.InitialInterval,
			MaxElapsed:      c.Retry.MaxElapsed,
		},
	}
}

// RetryConfig bounds retries of a single store write.
type RetryConfig struct {
	MaxTries        uint          `yaml:"max_tries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxElapsed      time.Duration `yaml:"max_elapsed"`
}

// Validate validates the retry configuration.
func (c *RetryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxTries, validation.Required, validation.Max(uint(20))),
		validation.Field(&c.InitialInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxElapsed, validation.Min(time.Duration(0))),
	)
}

// VocabularyConfig points at an optional YAML file extending the type vocabularies.
type VocabularyConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce         time.Duration `yaml:"debounce"`
	ProgressThrottle time.Duration `yaml:"progress_throttle"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.ProgressThrottle, validation.Min(time.Duration(0))),
	)
}

// ReportsConfig controls the build report archive. An empty Dir disables it.
type ReportsConfig struct {
	Dir  string `yaml:"dir"`
	Keep int    `yaml:"keep"`
}

// Validate validates the reports configuration.
func (c *ReportsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Keep, validation.Min(0)),
	)
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
		Source: SourceConfig{
			Path:   "./data/records.jsonl",
			Format: source.FormatAuto,
		},
		Store: StoreConfig{
			Driver: StoreDriverNeo4j,
			Neo4j: Neo4jConfig{
				URI:         "bolt://localhost:7687",
				User:        "neo4j",
				MaxPoolSize: 50,
				Timeout:     30 * time.Second,
			},
			SQLite: SQLiteConfig{
				Path: "./pathgraph.db",
			},
		},
		Writer: WriterConfig{
			NodeConcurrency: 4,
			Retry: RetryConfig{
				MaxTries:        3,
				InitialInterval: 200 * time.Millisecond,
				MaxElapsed:      10 * time.Second,
			},
		},
		Watch: WatchConfig{
			Debounce:         500 * time.Millisecond,
			ProgressThrottle: 500 * time.Millisecond,
		},
		Reports: ReportsConfig{
			Keep: 50,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
