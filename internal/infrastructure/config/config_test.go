package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

func TestSanitizeWorldName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "myworld",
			expected: "myworld",
		},
		{
			name:     "uppercase converted",
			input:    "MyWorld",
			expected: "myworld",
		},
		{
			name:     "spaces to underscores",
			input:    "my world",
			expected: "my_world",
		},
		{
			name:     "hyphens to underscores",
			input:    "my-world",
			expected: "my_world",
		},
		{
			name:     "special characters removed",
			input:    "my@world!",
			expected: "myworld",
		},
		{
			name:     "consecutive underscores collapsed",
			input:    "my--world",
			expected: "my_world",
		},
		{
			name:     "empty string returns default",
			input:    "",
			expected: "default",
		},
		{
			name:     "complex mixed input",
			input:    "Iron-Throne (Book 1)",
			expected: "iron_throne_book_1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeWorldName(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGenerateCollectionName(t *testing.T) {
	assert.Equal(t, "gm_myworld", GenerateCollectionName("myworld"))
	assert.Equal(t, "gm_my_world", GenerateCollectionName("my world"))
	assert.Equal(t, "gm_default", GenerateCollectionName(""))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)

	assert.Equal(t, 30, cfg.Approval.DeadlineSeconds)
	assert.Equal(t, int64(180), cfg.Approval.StagingTTLMinutes)
	assert.Equal(t, 3, cfg.Approval.MaxAttempts)
	assert.Equal(t, 5, cfg.Approval.SweepIntervalSeconds)
	require.NotNil(t, cfg.Approval.AutoApprove)
	assert.True(t, *cfg.Approval.AutoApprove)

	assert.Equal(t, 24, cfg.Calendar.HoursPerDay)
	assert.Equal(t, 365, cfg.Calendar.DaysPerYear)
}

func TestLoad(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gm init")
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, DefaultConfigDir), 0755))
		content := []byte("llm:\n  model: gpt-4o\napproval:\n  deadline_seconds: 60\n")
		require.NoError(t, os.WriteFile(ConfigFilePath(dir), content, 0600))

		cfg, err := Load(dir)
		require.NoError(t, err)

		assert.Equal(t, "gpt-4o", cfg.LLM.Model)
		assert.Equal(t, "openai", cfg.LLM.Provider)
		assert.Equal(t, 60, cfg.Approval.DeadlineSeconds)
		assert.Equal(t, int64(180), cfg.Approval.StagingTTLMinutes)
	})

	t.Run("env override fills empty keys", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, DefaultConfigDir), 0755))
		require.NoError(t, os.WriteFile(ConfigFilePath(dir), []byte("{}\n"), 0600))
		t.Setenv("OPENAI_API_KEY", "sk-test")

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "sk-test", cfg.LLM.APIKey)
		assert.Equal(t, "sk-test", cfg.Embedder.APIKey)
	})
}

func TestConfig_ScopeSettings(t *testing.T) {
	autoApprove := false
	cfg := &Config{
		Approval: ApprovalConfig{
			DeadlineSeconds: 120,
			AutoApprove:     &autoApprove,
		},
	}

	settings := cfg.ScopeSettings()
	assert.Equal(t, 120, settings.DeadlineSeconds)
	assert.False(t, settings.AutoApprove)
	// Unset fields fall back to domain defaults.
	assert.Equal(t, int64(180), settings.StagingTTLMinutes)
	assert.Equal(t, 3, settings.MaxAttempts)
}

func TestConfig_GameCalendar(t *testing.T) {
	cfg := &Config{Calendar: CalendarConfig{HoursPerDay: 20, DaysPerYear: 300}}

	cal := cfg.GameCalendar()
	assert.Equal(t, 20, cal.HoursPerDay)
	assert.Equal(t, 300, cal.DaysPerYear)
	// Unset fields fall back.
	assert.Equal(t, 60, cal.MinutesPerHour)
	assert.Equal(t, 1, cal.EpochYear)
}

func TestWorldsConfig(t *testing.T) {
	dir := t.TempDir()

	worlds, err := LoadWorlds(dir)
	require.NoError(t, err)
	assert.Empty(t, worlds.Worlds)

	worlds.Add("ashfall", WorldEntry{Collection: "gm_ashfall", Description: "volcanic campaign"})
	require.NoError(t, worlds.Save(dir))

	loaded, err := LoadWorlds(dir)
	require.NoError(t, err)
	assert.True(t, loaded.Exists("ashfall"))

	collection, err := loaded.GetCollection("ashfall")
	require.NoError(t, err)
	assert.Equal(t, "gm_ashfall", collection)

	_, err = loaded.Get("no-such-world")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ashfall")

	loaded.Remove("ashfall")
	assert.False(t, loaded.Exists("ashfall"))
}

func TestWorldsConfig_ScopeSettings(t *testing.T) {
	autoApprove := false
	worlds := &WorldsConfig{
		Worlds: map[string]WorldEntry{
			"ashfall": {
				Collection:        "gm_ashfall",
				DeadlineSeconds:   90,
				AutoApprove:       &autoApprove,
				StagingTTLMinutes: 480,
			},
		},
	}
	defaults := entities.DefaultScopeSettings()

	settings := worlds.ScopeSettings("ashfall", defaults)
	assert.Equal(t, 90, settings.DeadlineSeconds)
	assert.False(t, settings.AutoApprove)
	assert.Equal(t, int64(480), settings.StagingTTLMinutes)
	// Unset override falls back to the defaults.
	assert.Equal(t, defaults.MaxAttempts, settings.MaxAttempts)

	// Unknown world gets the defaults untouched.
	assert.Equal(t, defaults, worlds.ScopeSettings("elsewhere", defaults))
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteDefault(dir))
	assert.True(t, Exists(dir))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)

	// A second init refuses to clobber the existing config.
	require.Error(t, WriteDefault(dir))
}

func TestSQLitePathForWorld(t *testing.T) {
	path := SQLitePathForWorld("/base", "My World")
	assert.Equal(t, filepath.Join("/base", ".gm", "worlds", "my_world", "gm.db"), path)
}
