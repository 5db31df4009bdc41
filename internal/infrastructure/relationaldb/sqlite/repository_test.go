package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/infrastructure/config"
)

// setupTestRepo creates a file-backed SQLite repository in a temp dir.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "gm.db")})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	err = repo.EnsureSchema(context.Background())
	require.NoError(t, err)

	return repo
}

func regionScope(id string) entities.Scope {
	return entities.Scope{Kind: entities.ScopeRegion, WorldID: "world-1", ID: id}
}

func TestNewRepository(t *testing.T) {
	t.Run("error with empty path", func(t *testing.T) {
		_, err := NewRepository(config.SQLiteConfig{Path: ""})
		require.Error(t, err)
	})
}

func TestRepository_EnsureSchema(t *testing.T) {
	repo := setupTestRepo(t)

	tables := []string{"resolutions", "staging_records", "dialogue_turns", "game_clock", "audit_log"}
	for _, table := range tables {
		var count int
		err := repo.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}

	// Idempotent.
	require.NoError(t, repo.EnsureSchema(context.Background()))
}

func TestRepository_Resolutions(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	res := &entities.Resolution{
		ID:        "res-1",
		RequestID: "req-1",
		Scope:     regionScope("market"),
		Final: entities.CandidateSet{
			Source:  entities.SourceRules,
			Entries: []entities.Candidate{{SubjectID: "npc-1", Name: "Mira", Included: true}},
		},
		Source:          entities.ResolutionRuleBased,
		DecidedBy:       "director",
		DecidedAt:       540,
		ResolvedAt:      time.Now().UTC(),
		TimeCostMinutes: 15,
	}

	t.Run("save and find", func(t *testing.T) {
		require.NoError(t, repo.SaveResolution(ctx, res))

		found, err := repo.FindResolution(ctx, "res-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "req-1", found.RequestID)
		assert.Equal(t, entities.ResolutionRuleBased, found.Source)
		assert.Equal(t, entities.GameTime(540), found.DecidedAt)
		assert.Equal(t, int64(15), found.TimeCostMinutes)
		require.Len(t, found.Final.Entries, 1)
		assert.Equal(t, "Mira", found.Final.Entries[0].Name)
	})

	t.Run("find by request", func(t *testing.T) {
		found, err := repo.FindResolutionByRequest(ctx, "req-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "res-1", found.ID)
	})

	t.Run("absent returns nil", func(t *testing.T) {
		found, err := repo.FindResolution(ctx, "no-such-id")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("upsert updates content", func(t *testing.T) {
		res.Content = "approved text"
		require.NoError(t, repo.SaveResolution(ctx, res))

		found, err := repo.FindResolution(ctx, "res-1")
		require.NoError(t, err)
		assert.Equal(t, "approved text", found.Content)
	})
}

func TestRepository_StagingRecords(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	scope := regionScope("market")

	record := func(id string, active bool) *entities.StagingRecord {
		return &entities.StagingRecord{
			ID:           id,
			Scope:        scope,
			ResolutionID: "res-" + id,
			NPCs:         []entities.StagedNPC{{CharacterID: "npc-1", Name: "Mira", Present: true, Mood: "wary"}},
			GameTime:     100,
			ValidUntil:   280,
			ApprovedAt:   time.Now().UTC(),
			ApprovedBy:   "director",
			Source:       entities.StagingRuleBased,
			Active:       active,
		}
	}

	t.Run("save and read current", func(t *testing.T) {
		require.NoError(t, repo.SaveStagingRecord(ctx, record("a", true)))

		current, err := repo.CurrentStaging(ctx, scope)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, "a", current.ID)
		assert.True(t, current.Active)
		require.Len(t, current.NPCs, 1)
		assert.Equal(t, "wary", current.NPCs[0].Mood)
	})

	t.Run("new active record demotes the old one", func(t *testing.T) {
		require.NoError(t, repo.SaveStagingRecord(ctx, record("b", true)))

		current, err := repo.CurrentStaging(ctx, scope)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, "b", current.ID)

		history, err := repo.StagingHistory(ctx, scope, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		// Newest first, old record kept but demoted.
		assert.Equal(t, "b", history[0].ID)
		assert.Equal(t, "a", history[1].ID)
		assert.False(t, history[1].Active)
	})

	t.Run("inactive record does not demote", func(t *testing.T) {
		require.NoError(t, repo.SaveStagingRecord(ctx, record("c", false)))

		current, err := repo.CurrentStaging(ctx, scope)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, "b", current.ID)
	})

	t.Run("other scope is isolated", func(t *testing.T) {
		current, err := repo.CurrentStaging(ctx, regionScope("tavern"))
		require.NoError(t, err)
		assert.Nil(t, current)
	})
}

func TestRepository_DialogueTurns(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	turn := &entities.DialogueTurnRecord{
		ID:             "turn-1",
		Scope:          entities.Scope{Kind: entities.ScopeDialogue, WorldID: "world-1", ID: "turn-1"},
		RequestID:      "req-1",
		ConversationID: "conv-1",
		NPCID:          "npc-1",
		NPCName:        "Mira",
		PlayerLine:     "Where is the smuggler?",
		Draft:          "Keep your voice down.",
		Attempt:        0,
		MaxAttempts:    3,
		State:          entities.TurnPendingApproval,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	t.Run("save and find", func(t *testing.T) {
		require.NoError(t, repo.SaveDialogueTurn(ctx, turn))

		found, err := repo.FindDialogueTurn(ctx, "turn-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Keep your voice down.", found.Draft)
		assert.Equal(t, entities.TurnPendingApproval, found.State)

		byReq, err := repo.FindDialogueTurnByRequest(ctx, "req-1")
		require.NoError(t, err)
		require.NotNil(t, byReq)
		assert.Equal(t, "turn-1", byReq.ID)
	})

	t.Run("upsert advances the loop state", func(t *testing.T) {
		turn.Attempt = 1
		turn.Feedback = "too polite"
		turn.Draft = "second draft"
		turn.State = entities.TurnAccepted
		turn.ResolutionID = "res-1"
		require.NoError(t, repo.SaveDialogueTurn(ctx, turn))

		found, err := repo.FindDialogueTurn(ctx, "turn-1")
		require.NoError(t, err)
		assert.Equal(t, 1, found.Attempt)
		assert.Equal(t, "too polite", found.Feedback)
		assert.Equal(t, entities.TurnAccepted, found.State)
		assert.Equal(t, "res-1", found.ResolutionID)
	})

	t.Run("absent returns nil", func(t *testing.T) {
		found, err := repo.FindDialogueTurn(ctx, "no-such-turn")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestRepository_GameClock(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	t.Run("unset clock reads as epoch", func(t *testing.T) {
		got, err := repo.GameTime(ctx, "world-1")
		require.NoError(t, err)
		assert.Equal(t, entities.GameTime(0), got)
	})

	t.Run("advance creates and accumulates", func(t *testing.T) {
		got, err := repo.AdvanceGameTime(ctx, "world-1", 90, "travel")
		require.NoError(t, err)
		assert.Equal(t, entities.GameTime(90), got)

		got, err = repo.AdvanceGameTime(ctx, "world-1", 30, "rest")
		require.NoError(t, err)
		assert.Equal(t, entities.GameTime(120), got)
	})

	t.Run("advances are audited", func(t *testing.T) {
		entries, err := repo.FindAuditLogByAction(ctx, "clock_advance", 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "clock_advance", entries[0].Action)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, repo.SetGameTime(ctx, "world-1", 60))
		got, err := repo.GameTime(ctx, "world-1")
		require.NoError(t, err)
		assert.Equal(t, entities.GameTime(60), got)
	})

	t.Run("concurrent advances lose no minutes", func(t *testing.T) {
		require.NoError(t, repo.SetGameTime(ctx, "world-2", 0))

		const workers = 8
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.AdvanceGameTime(ctx, "world-2", 10, "tick")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.GameTime(ctx, "world-2")
		require.NoError(t, err)
		assert.Equal(t, entities.GameTime(workers*10), got)
	})
}

func TestRepository_AuditLog(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.LogDecision(ctx, "staging_rule_based", "req-1", map[string]any{"by": "director"}))
	require.NoError(t, repo.LogDecision(ctx, "dialogue_regenerate", "req-2", nil))

	t.Run("find by request", func(t *testing.T) {
		entries, err := repo.FindAuditLog(ctx, "req-1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "staging_rule_based", entries[0].Action)
		assert.Equal(t, "director", entries[0].Details["by"])
	})

	t.Run("find by action", func(t *testing.T) {
		entries, err := repo.FindAuditLogByAction(ctx, "dialogue_regenerate", 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "req-2", entries[0].RequestID)
		assert.Nil(t, entries[0].Details)
	})
}
