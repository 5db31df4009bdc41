// Package services contains domain business logic.
package services

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// RuleEvaluator produces the deterministic candidate set for a presence
// query. Given identical snapshot, roster, and seeded random source, the
// output is identical on repeated calls.
type RuleEvaluator struct{}

// NewRuleEvaluator creates a new rule evaluator.
func NewRuleEvaluator() *RuleEvaluator {
	return &RuleEvaluator{}
}

// EvaluationResult carries the rule-based candidate set plus the Custom
// rules that were skipped and must be judged by the suggestion generator.
type EvaluationResult struct {
	Candidates entities.CandidateSet
	// CustomRules maps subject ID to the free-text conditions skipped for
	// that subject.
	CustomRules map[string][]string
}

// Evaluate runs every roster entry's rule sets against the snapshot. Custom
// rules are skipped and reported, not evaluated. A malformed rule or a rule
// referencing a nonexistent entity or flag counts as non-matching; it never
// blocks the rest of its rule set.
//
// rng must be an explicitly seeded source; probabilistic rules draw from it
// in roster order, so evaluation is reproducible.
func (e *RuleEvaluator) Evaluate(snapshot *entities.WorldSnapshot, rng *rand.Rand) EvaluationResult {
	result := EvaluationResult{
		Candidates:  entities.CandidateSet{Source: entities.SourceRules},
		CustomRules: make(map[string][]string),
	}

	for _, entry := range snapshot.Roster {
		included, justification, custom := e.evaluateSubject(entry, snapshot, rng)
		if len(custom) > 0 {
			result.CustomRules[entry.CharacterID] = custom
			result.Candidates.NeedsExternal = append(result.Candidates.NeedsExternal, entry.CharacterID)
		}
		result.Candidates.Entries = append(result.Candidates.Entries, entities.Candidate{
			SubjectID:     entry.CharacterID,
			Name:          entry.Name,
			Included:      included,
			Justification: justification,
			Mood:          entry.DefaultMood,
		})
	}

	return result
}

// evaluateSubject applies a subject's rule sets. The subject is included if
// any rule set passes. Subjects without rule sets default to absent.
func (e *RuleEvaluator) evaluateSubject(entry entities.RosterEntry, snapshot *entities.WorldSnapshot, rng *rand.Rand) (bool, string, []string) {
	if len(entry.RuleSets) == 0 {
		return false, "no activation rules", nil
	}

	var custom []string
	var reasons []string
	included := false

	for _, set := range entry.RuleSets {
		passed, reason, skipped := e.evaluateSet(set, snapshot, rng)
		custom = append(custom, skipped...)
		if passed {
			included = true
			reasons = append(reasons, reason)
		}
	}

	if included {
		return true, strings.Join(reasons, "; "), custom
	}
	return false, "no rule set matched", custom
}

// evaluateSet applies one rule set's combination policy. Custom rules are
// excluded from the policy's rule count, so a set of only Custom rules never
// passes here.
func (e *RuleEvaluator) evaluateSet(set entities.RuleSet, snapshot *entities.WorldSnapshot, rng *rand.Rand) (bool, string, []string) {
	var skipped []string
	var matchReasons []string
	matched, evaluated := 0, 0

	for _, rule := range set.Rules {
		if !rule.Deterministic() {
			skipped = append(skipped, rule.Condition)
			continue
		}
		evaluated++
		ok, desc, err := e.evaluateRule(rule, snapshot, rng)
		if err != nil {
			// Recovered locally: rule does not match.
			continue
		}
		if ok {
			matched++
			matchReasons = append(matchReasons, desc)
		}
	}

	if evaluated == 0 {
		return false, "", skipped
	}

	passed := false
	switch set.Logic {
	case entities.LogicAny:
		passed = matched > 0
	case entities.LogicAtLeast:
		passed = matched >= set.MinMatches
	default: // LogicAll
		passed = matched == evaluated
	}

	return passed, strings.Join(matchReasons, ", "), skipped
}

// evaluateRule evaluates one deterministic rule against the snapshot.
func (e *RuleEvaluator) evaluateRule(rule entities.ActivationRule, snapshot *entities.WorldSnapshot, rng *rand.Rand) (bool, string, error) {
	cal := snapshot.Calendar
	now := snapshot.GameTime

	switch rule.Kind {
	case entities.RuleAlways:
		return true, "always", nil

	case entities.RuleDateExact:
		if rule.Day < 1 || rule.Day > cal.DaysPerYear {
			return false, "", &entities.RuleError{Kind: rule.Kind, Detail: fmt.Sprintf("day %d out of range", rule.Day)}
		}
		if rule.Year != 0 && cal.Year(now) != rule.Year {
			return false, "", nil
		}
		if cal.DayOfYear(now) == rule.Day {
			return true, fmt.Sprintf("day %d", rule.Day), nil
		}
		return false, "", nil

	case entities.RuleDateRange:
		if rule.FromDay < 1 || rule.ToDay < rule.FromDay || rule.ToDay > cal.DaysPerYear {
			return false, "", &entities.RuleError{Kind: rule.Kind, Detail: fmt.Sprintf("range %d-%d invalid", rule.FromDay, rule.ToDay)}
		}
		day := cal.DayOfYear(now)
		if day >= rule.FromDay && day <= rule.ToDay {
			return true, fmt.Sprintf("days %d-%d", rule.FromDay, rule.ToDay), nil
		}
		return false, "", nil

	case entities.RuleTimeOfDay:
		switch rule.Period {
		case entities.PeriodMorning, entities.PeriodAfternoon, entities.PeriodEvening, entities.PeriodNight:
		default:
			return false, "", &entities.RuleError{Kind: rule.Kind, Detail: fmt.Sprintf("unknown period %q", rule.Period)}
		}
		if cal.Period(now) == rule.Period {
			return true, string(rule.Period), nil
		}
		return false, "", nil

	case entities.RuleEventTriggered:
		if rule.EventID == "" {
			return false, "", &entities.RuleError{Kind: rule.Kind, Detail: "missing event id"}
		}
		if snapshot.TriggeredEvents[rule.EventID] {
			return true, "event " + rule.EventID, nil
		}
		return false, "", nil

	case entities.RuleFlagEquals:
		if rule.FlagKey == "" {
			return false, "", &entities.RuleError{Kind: rule.Kind, Detail: "missing flag key"}
		}
		value, ok := snapshot.Flags[rule.FlagKey]
		if !ok {
			// Dangling flag reference: non-match, not fatal.
			return false, "", nil
		}
		if value == rule.FlagValue {
			return true, fmt.Sprintf("%s=%s", rule.FlagKey, rule.FlagValue), nil
		}
		return false, "", nil

	case entities.RuleEntityPresent:
		if rule.EntityID == "" {
			return false, "", &entities.RuleError{Kind: rule.Kind, Detail: "missing entity id"}
		}
		if snapshot.PresentEntities[rule.EntityID] {
			return true, "with " + rule.EntityID, nil
		}
		return false, "", nil

	case entities.RuleFrequency:
		if rule.Chance < 0 || rule.Chance > 1 {
			return false, "", &entities.RuleError{Kind: rule.Kind, Detail: fmt.Sprintf("chance %v out of range", rule.Chance)}
		}
		if rng.Float64() < rule.Chance {
			return true, fmt.Sprintf("%.0f%% chance", rule.Chance*100), nil
		}
		return false, "", nil

	default:
		return false, "", &entities.RuleError{Kind: rule.Kind, Detail: "unknown rule kind"}
	}
}
