package entities

// RuleKind identifies an activation rule variant.
type RuleKind string

const (
	RuleAlways         RuleKind = "always"
	RuleDateExact      RuleKind = "date_exact"
	RuleDateRange      RuleKind = "date_range"
	RuleTimeOfDay      RuleKind = "time_of_day"
	RuleEventTriggered RuleKind = "event_triggered"
	RuleFlagEquals     RuleKind = "flag_equals"
	RuleEntityPresent  RuleKind = "entity_present"
	RuleFrequency      RuleKind = "frequency"
	// RuleCustom is a free-text condition that cannot be evaluated
	// deterministically; the rule evaluator routes it to the suggestion
	// generator instead of attempting it.
	RuleCustom RuleKind = "custom"
)

// ActivationRule is a tagged variant over the closed set of rule kinds.
// Only the fields relevant to Kind are meaningful.
type ActivationRule struct {
	Kind RuleKind `json:"kind"`

	// DateExact / DateRange (1-based day of year; Year 0 means any year).
	Day     int `json:"day,omitempty"`
	Year    int `json:"year,omitempty"`
	FromDay int `json:"from_day,omitempty"`
	ToDay   int `json:"to_day,omitempty"`

	// TimeOfDay.
	Period TimeOfDayPeriod `json:"period,omitempty"`

	// EventTriggered.
	EventID string `json:"event_id,omitempty"`

	// FlagEquals.
	FlagKey   string `json:"flag_key,omitempty"`
	FlagValue string `json:"flag_value,omitempty"`

	// EntityPresent.
	EntityID string `json:"entity_id,omitempty"`

	// Frequency: probability of matching, in [0,1]. Evaluated against a
	// seeded random source supplied by the caller.
	Chance float64 `json:"chance,omitempty"`

	// Custom free-text condition.
	Condition string `json:"condition,omitempty"`
}

// Deterministic reports whether the rule can be evaluated from world state
// alone, without external reasoning.
func (r ActivationRule) Deterministic() bool {
	return r.Kind != RuleCustom
}

// RuleLogic is the combination policy for a rule set.
type RuleLogic string

const (
	LogicAll     RuleLogic = "all"
	LogicAny     RuleLogic = "any"
	LogicAtLeast RuleLogic = "at_least"
)

// RuleSet groups activation rules under a combination policy.
type RuleSet struct {
	Rules []ActivationRule `json:"rules"`
	Logic RuleLogic        `json:"logic"`
	// MinMatches is the threshold for LogicAtLeast.
	MinMatches int `json:"min_matches,omitempty"`
}
