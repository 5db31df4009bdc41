package worldfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/mocks"
)

func newTestStore(t *testing.T) (*Store, *mocks.DecisionStore) {
	t.Helper()
	clock := mocks.NewDecisionStore()
	store := NewStore(t.TempDir(), clock, entities.DefaultCalendar(), entities.DefaultScopeSettings())
	return store, clock
}

func TestStore_Snapshot(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	t.Run("unknown region returns nil", func(t *testing.T) {
		snapshot, err := store.Snapshot(ctx, "world-1", "nowhere")
		require.NoError(t, err)
		assert.Nil(t, snapshot)
	})

	t.Run("assembles file state with the live clock", func(t *testing.T) {
		roster := []entities.RosterEntry{{CharacterID: "npc-1", Name: "Mira", DefaultMood: "wary"}}
		err := store.WriteSnapshot("world-1", "market", map[string]string{"festival": "true"}, roster, "keep it tense")
		require.NoError(t, err)
		require.NoError(t, clock.SetGameTime(ctx, "world-1", 540))

		snapshot, err := store.Snapshot(ctx, "world-1", "market")
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.Equal(t, "world-1", snapshot.WorldID)
		assert.Equal(t, "market", snapshot.RegionID)
		assert.Equal(t, entities.GameTime(540), snapshot.GameTime)
		assert.Equal(t, "true", snapshot.Flags["festival"])
		assert.Equal(t, "keep it tense", snapshot.Guidance)
		require.Len(t, snapshot.Roster, 1)
		assert.Equal(t, "Mira", snapshot.Roster[0].Name)
	})

	t.Run("clock changes show up in later snapshots", func(t *testing.T) {
		_, err := clock.AdvanceGameTime(ctx, "world-1", 60, "travel")
		require.NoError(t, err)

		snapshot, err := store.Snapshot(ctx, "world-1", "market")
		require.NoError(t, err)
		assert.Equal(t, entities.GameTime(600), snapshot.GameTime)
	})
}

func TestStore_ApplyResolutionEffects(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteSnapshot("world-1", "market", nil, nil, ""))

	res := &entities.Resolution{
		ID:    "res-1",
		Scope: entities.Scope{Kind: entities.ScopeRegion, WorldID: "world-1", ID: "market"},
		Final: entities.CandidateSet{
			Source: entities.SourceRules,
			Entries: []entities.Candidate{
				{SubjectID: "npc-1", Included: true},
				{SubjectID: "npc-2", Included: false},
			},
		},
		TimeCostMinutes: 15,
	}

	require.NoError(t, store.ApplyResolutionEffects(ctx, res))

	t.Run("presence written back to the snapshot", func(t *testing.T) {
		snapshot, err := store.Snapshot(ctx, "world-1", "market")
		require.NoError(t, err)
		assert.True(t, snapshot.PresentEntities["npc-1"])
		assert.False(t, snapshot.PresentEntities["npc-2"])
	})

	t.Run("time cost advances the clock with the resolution as reason", func(t *testing.T) {
		now, err := clock.GameTime(ctx, "world-1")
		require.NoError(t, err)
		assert.Equal(t, entities.GameTime(15), now)
	})

	t.Run("re-applying is idempotent", func(t *testing.T) {
		// A retry after a partial failure must not double-charge time.
		res2 := *res
		res2.TimeCostMinutes = 0
		require.NoError(t, store.ApplyResolutionEffects(ctx, &res2))

		now, err := clock.GameTime(ctx, "world-1")
		require.NoError(t, err)
		assert.Equal(t, entities.GameTime(15), now)

		snapshot, err := store.Snapshot(ctx, "world-1", "market")
		require.NoError(t, err)
		assert.True(t, snapshot.PresentEntities["npc-1"])
	})

	t.Run("region without a file gets one created", func(t *testing.T) {
		res3 := *res
		res3.Scope.ID = "tavern"
		res3.TimeCostMinutes = 0
		require.NoError(t, store.ApplyResolutionEffects(ctx, &res3))

		snapshot, err := store.Snapshot(ctx, "world-1", "tavern")
		require.NoError(t, err)
		require.NotNil(t, snapshot)
		assert.True(t, snapshot.PresentEntities["npc-1"])
	})

	t.Run("dialogue scope touches only the clock", func(t *testing.T) {
		res4 := &entities.Resolution{
			ID:              "res-4",
			Scope:           entities.Scope{Kind: entities.ScopeDialogue, WorldID: "world-1", ID: "turn-1"},
			TimeCostMinutes: 5,
		}
		require.NoError(t, store.ApplyResolutionEffects(ctx, res4))

		now, err := clock.GameTime(ctx, "world-1")
		require.NoError(t, err)
		assert.Equal(t, entities.GameTime(20), now)
	})
}

func TestStore_WriteSnapshot(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, mocks.NewDecisionStore(), entities.DefaultCalendar(), entities.DefaultScopeSettings())

	require.NoError(t, store.WriteSnapshot("world-1", "market", map[string]string{"weather": "rain"}, nil, ""))

	data, err := os.ReadFile(filepath.Join(dir, "world-1__market.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "weather: rain")
}
