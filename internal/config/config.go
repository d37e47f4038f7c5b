package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hylla/sectboard/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

type Backend string

const (
	BackendSQLite  Backend = "sqlite"
	BackendFixture Backend = "fixture"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Table    TableConfig    `toml:"table"`
	Saves    SavesConfig    `toml:"saves"`
	Server   ServerConfig   `toml:"server"`
	Identity IdentityConfig `toml:"identity"`
	Logging  LoggingConfig  `toml:"logging"`
	Keys     KeyConfig      `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// StorageConfig selects the persistence collaborator. The fixture backend
// reads a YAML or JSON file, or the embedded sample when fixture_path is empty.
type StorageConfig struct {
	Backend     Backend `toml:"backend"`
	FixturePath string  `toml:"fixture_path"`
	Seed        bool    `toml:"seed"`
	Watch       bool    `toml:"watch"`
}

type TableConfig struct {
	PageSize       int      `toml:"page_size"`
	PageSizes      []int    `toml:"page_sizes"`
	Variant        string   `toml:"variant"` // compact | full
	VisibleColumns []string `toml:"visible_columns"`
	SectionTypes   []string `toml:"section_types"`
	Reviewers      []string `toml:"reviewers"`
}

// SavesConfig holds the simulated latency of inline and detail saves.
type SavesConfig struct {
	InlineDelay Duration `toml:"inline_delay"`
	DetailDelay Duration `toml:"detail_delay"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// IdentityConfig is the read-only profile shown on the account screen.
// ActorID attributes local edits in the change feed.
type IdentityConfig struct {
	ActorID       string `toml:"actor_id"`
	DisplayName   string `toml:"display_name"`
	FirstName     string `toml:"first_name"`
	LastName      string `toml:"last_name"`
	Email         string `toml:"email"`
	Phone         string `toml:"phone"`
	Avatar        string `toml:"avatar"`
	Role          string `toml:"role"`
	EmailVerified bool   `toml:"email_verified"`
	PhoneVerified bool   `toml:"phone_verified"`
	TwoFactor     bool   `toml:"two_factor"`
}

// Name returns the display name, falling back to first and last name.
func (i IdentityConfig) Name() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(i.FirstName) + " " + strings.TrimSpace(i.LastName))
}

type LoggingConfig struct {
	Level   string        `toml:"level"` // debug | info | warn | error
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type KeyConfig struct {
	Search    string `toml:"search"`
	Select    string `toml:"select"`
	SelectAll string `toml:"select_all"`
	Drag      string `toml:"drag"`
	Copy      string `toml:"copy"`
	Refresh   string `toml:"refresh"`
	Columns   string `toml:"columns"`
}

// Duration decodes TOML strings such as "1500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func defaultSectionTypes() []string {
	schema := domain.DefaultSchema()
	out := make([]string, 0, len(schema.SectionTypes))
	for _, typ := range schema.SectionTypes {
		out = append(out, string(typ))
	}
	return out
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Seed:    true,
		},
		Table: TableConfig{
			PageSize:     10,
			PageSizes:    []int{10, 20, 30, 40, 50},
			Variant:      "full",
			SectionTypes: defaultSectionTypes(),
			Reviewers:    []string{"Eddie Lake", "Jamik Tashpulatov", "Emily Whalen"},
		},
		Saves: SavesConfig{
			InlineDelay: Duration{time.Second},
			DetailDelay: Duration{1500 * time.Millisecond},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Identity: IdentityConfig{
			ActorID: "local",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".sectboard/log",
			},
		},
		Keys: KeyConfig{
			Search:    "/",
			Select:    "space",
			SelectAll: "A",
			Drag:      "m",
			Copy:      "y",
			Refresh:   "r",
			Columns:   "c",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required")
		}
	case BackendFixture:
	default:
		return fmt.Errorf("invalid storage.backend: %q", c.Storage.Backend)
	}

	if len(c.Table.PageSizes) == 0 {
		return errors.New("table.page_sizes must include at least one size")
	}
	for idx, size := range c.Table.PageSizes {
		if size <= 0 {
			return fmt.Errorf("table.page_sizes[%d] must be > 0", idx)
		}
		if slices.Index(c.Table.PageSizes, size) != idx {
			return fmt.Errorf("table.page_sizes[%d] is duplicated: %d", idx, size)
		}
	}
	if !slices.Contains(c.Table.PageSizes, c.Table.PageSize) {
		return fmt.Errorf("table.page_size %d is not one of table.page_sizes", c.Table.PageSize)
	}
	switch strings.TrimSpace(strings.ToLower(c.Table.Variant)) {
	case "", "compact", "full":
	default:
		return fmt.Errorf("invalid table.variant: %q", c.Table.Variant)
	}
	for idx, raw := range c.Table.VisibleColumns {
		if _, err := domain.ParseField(raw); err != nil {
			return fmt.Errorf("table.visible_columns[%d]: %w", idx, err)
		}
	}
	if _, err := domain.NewSchema(c.Table.SectionTypes); err != nil {
		return fmt.Errorf("table.section_types: %w", err)
	}
	for idx, name := range c.Table.Reviewers {
		name = strings.TrimSpace(name)
		if name == "" || name == domain.UnassignedReviewer {
			return fmt.Errorf("table.reviewers[%d] must name a person", idx)
		}
	}

	if c.Saves.InlineDelay.Duration < 0 || c.Saves.DetailDelay.Duration < 0 {
		return errors.New("saves delays must be >= 0")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	bindings := map[string]string{
		"search":     c.Keys.Search,
		"select":     c.Keys.Select,
		"select_all": c.Keys.SelectAll,
		"drag":       c.Keys.Drag,
		"copy":       c.Keys.Copy,
		"refresh":    c.Keys.Refresh,
		"columns":    c.Keys.Columns,
	}
	seenKey := map[string]string{}
	for _, name := range slices.Sorted(maps.Keys(bindings)) {
		k := strings.TrimSpace(bindings[name])
		if k == "" {
			return fmt.Errorf("keys.%s is required", name)
		}
		if other, ok := seenKey[k]; ok {
			return fmt.Errorf("keys.%s duplicates keys.%s: %q", name, other, k)
		}
		seenKey[k] = name
	}

	return nil
}

// Schema builds the record schema from table.section_types.
func (c Config) Schema() (domain.Schema, error) {
	return domain.NewSchema(c.Table.SectionTypes)
}

// Columns resolves table.visible_columns; nil means every column.
func (c Config) Columns() ([]domain.Field, error) {
	if len(c.Table.VisibleColumns) == 0 {
		return nil, nil
	}
	out := make([]domain.Field, 0, len(c.Table.VisibleColumns))
	for _, raw := range c.Table.VisibleColumns {
		field, err := domain.ParseField(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, field)
	}
	return out, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
