package ports

import (
	"context"

	"github.com/ersonp/gm-core/internal/domain/entities"
)

// DecisionStore defines the interface for durable decision state: resolutions,
// staging history, dialogue turns, the game clock, and the decision audit log.
// Resolutions must be persisted here before they are reported to any attached
// caller; a crash between resolution and effect application is recovered by
// re-reading the stored record.
type DecisionStore interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Resolution operations

	// SaveResolution durably stores a resolution.
	SaveResolution(ctx context.Context, res *entities.Resolution) error

	// FindResolution finds a resolution by ID. Returns nil if absent.
	FindResolution(ctx context.Context, id string) (*entities.Resolution, error)

	// FindResolutionByRequest finds the resolution for a request ID.
	// Returns nil if the request never resolved.
	FindResolutionByRequest(ctx context.Context, requestID string) (*entities.Resolution, error)

	// Staging operations

	// SaveStagingRecord appends a staging record. When record.Active is
	// true the prior current record for the scope is demoted to history;
	// history is never deleted.
	SaveStagingRecord(ctx context.Context, record *entities.StagingRecord) error

	// CurrentStaging returns the active record for a scope, or nil.
	CurrentStaging(ctx context.Context, scope entities.Scope) (*entities.StagingRecord, error)

	// StagingHistory returns records for a scope, newest first.
	StagingHistory(ctx context.Context, scope entities.Scope, limit int) ([]entities.StagingRecord, error)

	// Dialogue operations

	// SaveDialogueTurn saves or updates a dialogue turn record.
	SaveDialogueTurn(ctx context.Context, turn *entities.DialogueTurnRecord) error

	// FindDialogueTurn finds a turn by ID. Returns nil if absent.
	FindDialogueTurn(ctx context.Context, id string) (*entities.DialogueTurnRecord, error)

	// FindDialogueTurnByRequest finds the turn attached to a request ID.
	FindDialogueTurnByRequest(ctx context.Context, requestID string) (*entities.DialogueTurnRecord, error)

	// Game clock operations

	// GameTime returns the stored clock value for a world, or the epoch if
	// none has been set.
	GameTime(ctx context.Context, worldID string) (entities.GameTime, error)

	// SetGameTime stores an absolute clock value.
	SetGameTime(ctx context.Context, worldID string, t entities.GameTime) error

	// AdvanceGameTime advances the clock and returns the new value.
	AdvanceGameTime(ctx context.Context, worldID string, minutes int64, reason string) (entities.GameTime, error)

	// Audit operations

	// LogDecision logs a decision action to the audit log.
	LogDecision(ctx context.Context, action string, requestID string, details map[string]any) error

	// FindAuditLog finds audit entries for a request.
	FindAuditLog(ctx context.Context, requestID string) ([]entities.AuditEntry, error)
}
