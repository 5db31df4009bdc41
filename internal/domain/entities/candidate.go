package entities

// CandidateSource identifies which pipeline produced a candidate set.
type CandidateSource string

const (
	SourceRules CandidateSource = "rules"
	SourceAI    CandidateSource = "ai"
	// SourceDirector marks a human-authored set (edits, take-over).
	SourceDirector CandidateSource = "director"
)

// Candidate is one subject's proposed inclusion in a scope, with the
// justification that produced it.
type Candidate struct {
	SubjectID     string `json:"subject_id"`
	Name          string `json:"name,omitempty"`
	Included      bool   `json:"included"`
	Justification string `json:"justification,omitempty"`
	// Hidden marks a subject that is included but not shown to players.
	Hidden bool `json:"hidden,omitempty"`
	// Mood is the subject's proposed mood for this scope (NPC staging).
	Mood string `json:"mood,omitempty"`
}

// CandidateSet is an ordered set of candidates produced by one pipeline for
// one query. Rule-based and AI-based sets for the same query are never merged
// automatically; both are surfaced to the director.
type CandidateSet struct {
	Source  CandidateSource `json:"source"`
	Entries []Candidate     `json:"entries"`

	// Unavailable marks a set that could not be produced (suggestion
	// service timed out or failed). Reason explains why, for the director.
	Unavailable bool   `json:"unavailable,omitempty"`
	Reason      string `json:"reason,omitempty"`

	// NeedsExternal lists subject IDs whose rule sets contained Custom
	// rules the evaluator had to skip; they require the suggestion
	// generator's judgment.
	NeedsExternal []string `json:"needs_external,omitempty"`
}

// Included returns the candidates marked as included.
func (s CandidateSet) Included() []Candidate {
	var out []Candidate
	for _, c := range s.Entries {
		if c.Included {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the candidate for the given subject, if present.
func (s CandidateSet) Find(subjectID string) (Candidate, bool) {
	for _, c := range s.Entries {
		if c.SubjectID == subjectID {
			return c, true
		}
	}
	return Candidate{}, false
}

// UnavailableSet returns a marker set for a pipeline that produced nothing.
func UnavailableSet(source CandidateSource, reason string) CandidateSet {
	return CandidateSet{Source: source, Unavailable: true, Reason: reason}
}
