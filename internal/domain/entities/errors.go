package entities

import (
	"errors"
	"fmt"
)

// Caller-misuse signals surfaced to the calling domain module, never to
// players directly.
var (
	// ErrAlreadyPending means an unresolved approval request already exists
	// for the scope; callers should attach to it instead.
	ErrAlreadyPending = errors.New("approval request already pending for scope")

	// ErrNotFound means no approval request exists with the given ID.
	ErrNotFound = errors.New("approval request not found")

	// ErrAlreadyResolved means the request has already produced a resolution.
	ErrAlreadyResolved = errors.New("approval request already resolved")

	// ErrRegenerationExhausted means the dialogue turn has used all its
	// regeneration attempts; the director must accept the last draft or
	// take over.
	ErrRegenerationExhausted = errors.New("regeneration attempts exhausted")
)

// RuleError is a per-rule evaluation failure (malformed rule, dangling
// entity or flag reference). It is recovered locally: the rule is treated as
// non-matching and the rest of the rule set still evaluates.
type RuleError struct {
	Kind   RuleKind
	Detail string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %s", e.Kind, e.Detail)
}

// ApplyEffectsError means a resolution exists and is durable, but applying
// its effects to world state failed. The collaborating module retries using
// the persisted resolution; the failure is never silently dropped.
type ApplyEffectsError struct {
	ResolutionID string
	Err          error
}

func (e *ApplyEffectsError) Error() string {
	return fmt.Sprintf("applying effects of resolution %s: %v", e.ResolutionID, e.Err)
}

func (e *ApplyEffectsError) Unwrap() error {
	return e.Err
}
