// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

const (
	// DefaultConfigDir is the directory name for gm configuration.
	DefaultConfigDir = ".gm"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultWorldsFile is the default worlds file name.
	DefaultWorldsFile = "worlds.yaml"
)

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Embedder EmbedderConfig `yaml:"embedder,omitempty"`
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Approval ApprovalConfig `yaml:"approval,omitempty"`
	Calendar CalendarConfig `yaml:"calendar,omitempty"`
}

// LLMConfig holds configuration for the LLM provider.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// QdrantConfig holds configuration for the Qdrant vector database.
type QdrantConfig struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite decision database.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database. For per-world
	// databases this is computed dynamically using SQLitePathForWorld.
	Path string `yaml:"path,omitempty"`
}

// ApprovalConfig holds defaults for the deferred decision pipeline. Worlds
// may override each value in worlds.yaml.
type ApprovalConfig struct {
	// DeadlineSeconds is the wall-clock timeout for a pending request.
	DeadlineSeconds int `yaml:"deadline_seconds,omitempty"`
	// AutoApprove picks the rule-based candidate set on timeout; when
	// false a timeout resolves to an empty set.
	AutoApprove *bool `yaml:"auto_approve,omitempty"`
	// StagingTTLMinutes is how long a staging record stays valid, in
	// in-game minutes.
	StagingTTLMinutes int64 `yaml:"staging_ttl_minutes,omitempty"`
	// MaxAttempts bounds the dialogue reject/regenerate cycle.
	MaxAttempts int `yaml:"max_attempts,omitempty"`
	// SweepIntervalSeconds is how often the timeout sweep runs.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds,omitempty"`
}

// CalendarConfig holds the in-game calendar geometry.
type CalendarConfig struct {
	HoursPerDay    int `yaml:"hours_per_day,omitempty"`
	MinutesPerHour int `yaml:"minutes_per_hour,omitempty"`
	DaysPerYear    int `yaml:"days_per_year,omitempty"`
	EpochYear      int `yaml:"epoch_year,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	autoApprove := true
	defaults := entities.DefaultScopeSettings()
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Approval: ApprovalConfig{
			DeadlineSeconds:      defaults.DeadlineSeconds,
			AutoApprove:          &autoApprove,
			StagingTTLMinutes:    defaults.StagingTTLMinutes,
			MaxAttempts:          defaults.MaxAttempts,
			SweepIntervalSeconds: 5,
		},
		Calendar: CalendarConfigFrom(entities.DefaultCalendar()),
	}
}

// Load loads configuration from the .gm directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'gm init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedder.APIKey == "" {
			c.Embedder.APIKey = key
		}
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		if c.Qdrant.APIKey == "" {
			c.Qdrant.APIKey = key
		}
	}
}

// ScopeSettings converts the approval defaults to domain scope settings.
func (c *Config) ScopeSettings() entities.ScopeSettings {
	settings := entities.DefaultScopeSettings()
	if c.Approval.DeadlineSeconds > 0 {
		settings.DeadlineSeconds = c.Approval.DeadlineSeconds
	}
	if c.Approval.AutoApprove != nil {
		settings.AutoApprove = *c.Approval.AutoApprove
	}
	if c.Approval.StagingTTLMinutes > 0 {
		settings.StagingTTLMinutes = c.Approval.StagingTTLMinutes
	}
	if c.Approval.MaxAttempts > 0 {
		settings.MaxAttempts = c.Approval.MaxAttempts
	}
	return settings
}

// GameCalendar converts the calendar section to the domain calendar,
// falling back to defaults for unset fields.
func (c *Config) GameCalendar() entities.Calendar {
	cal := entities.DefaultCalendar()
	if c.Calendar.HoursPerDay > 0 {
		cal.HoursPerDay = c.Calendar.HoursPerDay
	}
	if c.Calendar.MinutesPerHour > 0 {
		cal.MinutesPerHour = c.Calendar.MinutesPerHour
	}
	if c.Calendar.DaysPerYear > 0 {
		cal.DaysPerYear = c.Calendar.DaysPerYear
	}
	if c.Calendar.EpochYear != 0 {
		cal.EpochYear = c.Calendar.EpochYear
	}
	return cal
}

// CalendarConfigFrom converts a domain calendar to its config form.
func CalendarConfigFrom(cal entities.Calendar) CalendarConfig {
	return CalendarConfig{
		HoursPerDay:    cal.HoursPerDay,
		MinutesPerHour: cal.MinutesPerHour,
		DaysPerYear:    cal.DaysPerYear,
		EpochYear:      cal.EpochYear,
	}
}

// ConfigDir returns the path to the .gm config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// WorldsFilePath returns the path to the worlds file.
func WorldsFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultWorldsFile)
}

// Exists checks if a gm config exists in the given path.
func Exists(basePath string) bool {
	configFile := filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
	_, err := os.Stat(configFile)
	return err == nil
}

// SanitizeWorldName converts a world name to a valid collection suffix.
func SanitizeWorldName(name string) string {
	name = strings.ToLower(name)

	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	name = reNonAlphanumeric.ReplaceAllString(name, "")
	name = reMultipleUnderscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		return "default"
	}

	return name
}

// GenerateCollectionName creates a memory collection name for a world.
func GenerateCollectionName(worldName string) string {
	return "gm_" + SanitizeWorldName(worldName)
}

// SQLitePathForWorld returns the SQLite database path for a given world.
func SQLitePathForWorld(basePath, worldName string) string {
	return filepath.Join(basePath, DefaultConfigDir, "worlds", SanitizeWorldName(worldName), "gm.db")
}

// WorldDir returns the directory path for a given world.
func WorldDir(basePath, worldName string) string {
	return filepath.Join(basePath, DefaultConfigDir, "worlds", SanitizeWorldName(worldName))
}
