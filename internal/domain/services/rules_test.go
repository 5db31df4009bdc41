package services

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

func testSnapshot() *entities.WorldSnapshot {
	return &entities.WorldSnapshot{
		WorldID:  "world-1",
		RegionID: "market",
		GameTime: entities.GameTime(9 * 60), // day 1, 09:00, morning
		Calendar: entities.DefaultCalendar(),
		Flags:    map[string]string{"festival": "active"},
		PresentEntities: map[string]bool{
			"npc-guard": true,
		},
		TriggeredEvents: map[string]bool{
			"dragon-attack": true,
		},
		Settings: entities.DefaultScopeSettings(),
	}
}

func TestRuleEvaluator_Evaluate(t *testing.T) {
	evaluator := NewRuleEvaluator()

	tests := []struct {
		name     string
		ruleSets []entities.RuleSet
		included bool
	}{
		{
			name:     "no rule sets defaults to absent",
			ruleSets: nil,
			included: false,
		},
		{
			name: "always rule includes",
			ruleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleAlways}}, Logic: entities.LogicAll},
			},
			included: true,
		},
		{
			name: "time of day matches",
			ruleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleTimeOfDay, Period: entities.PeriodMorning}}, Logic: entities.LogicAll},
			},
			included: true,
		},
		{
			name: "time of day does not match",
			ruleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleTimeOfDay, Period: entities.PeriodNight}}, Logic: entities.LogicAll},
			},
			included: false,
		},
		{
			name: "flag equals matches",
			ruleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleFlagEquals, FlagKey: "festival", FlagValue: "active"}}, Logic: entities.LogicAll},
			},
			included: true,
		},
		{
			name: "dangling flag reference is a non-match",
			ruleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleFlagEquals, FlagKey: "no-such-flag", FlagValue: "x"}}, Logic: entities.LogicAll},
			},
			included: false,
		},
		{
			name: "event triggered matches",
			ruleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleEventTriggered, EventID: "dragon-attack"}}, Logic: entities.LogicAll},
			},
			included: true,
		},
		{
			name: "entity present matches",
			ruleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleEntityPresent, EntityID: "npc-guard"}}, Logic: entities.LogicAll},
			},
			included: true,
		},
		{
			name: "date range covers day",
			ruleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleDateRange, FromDay: 1, ToDay: 10}}, Logic: entities.LogicAll},
			},
			included: true,
		},
		{
			name: "all logic needs every rule",
			ruleSets: []entities.RuleSet{
				{
					Rules: []entities.ActivationRule{
						{Kind: entities.RuleAlways},
						{Kind: entities.RuleTimeOfDay, Period: entities.PeriodNight},
					},
					Logic: entities.LogicAll,
				},
			},
			included: false,
		},
		{
			name: "any logic needs one rule",
			ruleSets: []entities.RuleSet{
				{
					Rules: []entities.ActivationRule{
						{Kind: entities.RuleAlways},
						{Kind: entities.RuleTimeOfDay, Period: entities.PeriodNight},
					},
					Logic: entities.LogicAny,
				},
			},
			included: true,
		},
		{
			name: "at least threshold met",
			ruleSets: []entities.RuleSet{
				{
					Rules: []entities.ActivationRule{
						{Kind: entities.RuleAlways},
						{Kind: entities.RuleFlagEquals, FlagKey: "festival", FlagValue: "active"},
						{Kind: entities.RuleTimeOfDay, Period: entities.PeriodNight},
					},
					Logic:      entities.LogicAtLeast,
					MinMatches: 2,
				},
			},
			included: true,
		},
		{
			name: "at least threshold not met",
			ruleSets: []entities.RuleSet{
				{
					Rules: []entities.ActivationRule{
						{Kind: entities.RuleAlways},
						{Kind: entities.RuleTimeOfDay, Period: entities.PeriodNight},
						{Kind: entities.RuleEventTriggered, EventID: "unfired"},
					},
					Logic:      entities.LogicAtLeast,
					MinMatches: 2,
				},
			},
			included: false,
		},
		{
			name: "malformed rule is a non-match but does not block the set",
			ruleSets: []entities.RuleSet{
				{
					Rules: []entities.ActivationRule{
						{Kind: entities.RuleDateExact, Day: 999},
						{Kind: entities.RuleAlways},
					},
					Logic: entities.LogicAny,
				},
			},
			included: true,
		},
		{
			name: "second rule set can still include",
			ruleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleTimeOfDay, Period: entities.PeriodNight}}, Logic: entities.LogicAll},
				{Rules: []entities.ActivationRule{{Kind: entities.RuleAlways}}, Logic: entities.LogicAll},
			},
			included: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := testSnapshot()
			snapshot.Roster = []entities.RosterEntry{
				{CharacterID: "npc-1", Name: "Mira", RuleSets: tt.ruleSets},
			}

			result := evaluator.Evaluate(snapshot, rand.New(rand.NewSource(1)))
			require.Len(t, result.Candidates.Entries, 1)
			assert.Equal(t, tt.included, result.Candidates.Entries[0].Included)
		})
	}
}

func TestRuleEvaluator_CustomRulesRouted(t *testing.T) {
	evaluator := NewRuleEvaluator()
	snapshot := testSnapshot()
	snapshot.Roster = []entities.RosterEntry{
		{
			CharacterID: "npc-1",
			Name:        "Mira",
			RuleSets: []entities.RuleSet{
				{
					Rules: []entities.ActivationRule{
						{Kind: entities.RuleCustom, Condition: "only when the party owes her money"},
					},
					Logic: entities.LogicAll,
				},
			},
		},
	}

	result := evaluator.Evaluate(snapshot, rand.New(rand.NewSource(1)))

	// A set of only custom rules never passes deterministically.
	require.Len(t, result.Candidates.Entries, 1)
	assert.False(t, result.Candidates.Entries[0].Included)

	assert.Equal(t, []string{"npc-1"}, result.Candidates.NeedsExternal)
	assert.Equal(t, []string{"only when the party owes her money"}, result.CustomRules["npc-1"])
}

func TestRuleEvaluator_FrequencyDeterministic(t *testing.T) {
	evaluator := NewRuleEvaluator()
	snapshot := testSnapshot()
	snapshot.Roster = []entities.RosterEntry{
		{
			CharacterID: "npc-1",
			Name:        "Mira",
			RuleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleFrequency, Chance: 0.5}}, Logic: entities.LogicAll},
			},
		},
		{
			CharacterID: "npc-2",
			Name:        "Tolen",
			RuleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleFrequency, Chance: 0.5}}, Logic: entities.LogicAll},
			},
		},
	}

	first := evaluator.Evaluate(snapshot, rand.New(rand.NewSource(42)))
	second := evaluator.Evaluate(snapshot, rand.New(rand.NewSource(42)))

	require.Len(t, first.Candidates.Entries, 2)
	for i := range first.Candidates.Entries {
		assert.Equal(t, first.Candidates.Entries[i].Included, second.Candidates.Entries[i].Included)
	}
}

func TestRuleEvaluator_FrequencyEdges(t *testing.T) {
	evaluator := NewRuleEvaluator()
	snapshot := testSnapshot()
	rng := rand.New(rand.NewSource(7))

	snapshot.Roster = []entities.RosterEntry{
		{
			CharacterID: "never",
			RuleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleFrequency, Chance: 0}}, Logic: entities.LogicAll},
			},
		},
		{
			CharacterID: "out-of-range",
			RuleSets: []entities.RuleSet{
				{Rules: []entities.ActivationRule{{Kind: entities.RuleFrequency, Chance: 1.5}}, Logic: entities.LogicAll},
			},
		},
	}

	result := evaluator.Evaluate(snapshot, rng)
	require.Len(t, result.Candidates.Entries, 2)
	assert.False(t, result.Candidates.Entries[0].Included)
	// Out-of-range chance is malformed: non-match, never an error.
	assert.False(t, result.Candidates.Entries[1].Included)
}
