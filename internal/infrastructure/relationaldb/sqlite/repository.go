// Package sqlite provides a SQLite implementation of the DecisionStore interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/infrastructure/config"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.DecisionStore using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Resolutions (canonical outcomes of approval requests)
	CREATE TABLE IF NOT EXISTS resolutions (
		id TEXT PRIMARY KEY,
		request_id TEXT,
		scope_kind TEXT NOT NULL,
		world_id TEXT NOT NULL,
		scope_id TEXT NOT NULL,
		final TEXT NOT NULL,
		source TEXT NOT NULL,
		decided_by TEXT NOT NULL,
		decided_at INTEGER NOT NULL,
		resolved_at TIMESTAMP NOT NULL,
		content TEXT,
		time_cost_minutes INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_resolutions_request ON resolutions(request_id);
	CREATE INDEX IF NOT EXISTS idx_resolutions_scope ON resolutions(world_id, scope_kind, scope_id);

	-- Staging records (one active per scope, superseded rows kept as history)
	CREATE TABLE IF NOT EXISTS staging_records (
		id TEXT PRIMARY KEY,
		scope_kind TEXT NOT NULL,
		world_id TEXT NOT NULL,
		scope_id TEXT NOT NULL,
		resolution_id TEXT NOT NULL,
		npcs TEXT NOT NULL,
		game_time INTEGER NOT NULL,
		valid_until INTEGER NOT NULL,
		approved_at TIMESTAMP NOT NULL,
		approved_by TEXT NOT NULL,
		source TEXT NOT NULL,
		guidance TEXT,
		active INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_staging_scope ON staging_records(world_id, scope_kind, scope_id);
	CREATE INDEX IF NOT EXISTS idx_staging_active ON staging_records(world_id, scope_kind, scope_id, active);

	-- Dialogue turns (bounded regeneration loop state)
	CREATE TABLE IF NOT EXISTS dialogue_turns (
		id TEXT PRIMARY KEY,
		scope_kind TEXT NOT NULL,
		world_id TEXT NOT NULL,
		scope_id TEXT NOT NULL,
		request_id TEXT,
		conversation_id TEXT NOT NULL,
		npc_id TEXT NOT NULL,
		npc_name TEXT,
		player_line TEXT NOT NULL,
		draft TEXT,
		reasoning TEXT,
		attempt INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL,
		feedback TEXT,
		state TEXT NOT NULL,
		resolution_id TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dialogue_request ON dialogue_turns(request_id);
	CREATE INDEX IF NOT EXISTS idx_dialogue_conversation ON dialogue_turns(conversation_id);

	-- Game clock (in-game minutes since epoch, one row per world)
	CREATE TABLE IF NOT EXISTS game_clock (
		world_id TEXT PRIMARY KEY,
		game_time INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Audit log (tracks all decision actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		request_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_request ON audit_log(request_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveResolution durably stores a resolution.
func (r *Repository) SaveResolution(ctx context.Context, res *entities.Resolution) error {
	final, err := json.Marshal(res.Final)
	if err != nil {
		return fmt.Errorf("marshaling final set: %w", err)
	}

	query := `
		INSERT INTO resolutions (id, request_id, scope_kind, world_id, scope_id, final, source, decided_by, decided_at, resolved_at, content, time_cost_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			time_cost_minutes = excluded.time_cost_minutes
	`
	_, err = r.db.ExecContext(ctx, query,
		res.ID,
		res.RequestID,
		string(res.Scope.Kind),
		res.Scope.WorldID,
		res.Scope.ID,
		string(final),
		string(res.Source),
		res.DecidedBy,
		int64(res.DecidedAt),
		res.ResolvedAt,
		res.Content,
		res.TimeCostMinutes,
	)
	if err != nil {
		return fmt.Errorf("saving resolution: %w", err)
	}
	return nil
}

// FindResolution finds a resolution by ID. Returns nil if absent.
func (r *Repository) FindResolution(ctx context.Context, id string) (*entities.Resolution, error) {
	query := `
		SELECT id, request_id, scope_kind, world_id, scope_id, final, source, decided_by, decided_at, resolved_at, content, time_cost_minutes
		FROM resolutions
		WHERE id = ?
	`
	return r.scanResolution(r.db.QueryRowContext(ctx, query, id))
}

// FindResolutionByRequest finds the resolution for a request ID. Returns nil
// if the request never resolved.
func (r *Repository) FindResolutionByRequest(ctx context.Context, requestID string) (*entities.Resolution, error) {
	query := `
		SELECT id, request_id, scope_kind, world_id, scope_id, final, source, decided_by, decided_at, resolved_at, content, time_cost_minutes
		FROM resolutions
		WHERE request_id = ?
		ORDER BY resolved_at DESC
		LIMIT 1
	`
	return r.scanResolution(r.db.QueryRowContext(ctx, query, requestID))
}

// scanResolution scans a single resolution row.
func (r *Repository) scanResolution(row *sql.Row) (*entities.Resolution, error) {
	var res entities.Resolution
	var scopeKind, source, final string
	var requestID, content sql.NullString
	var decidedAt int64

	err := row.Scan(
		&res.ID,
		&requestID,
		&scopeKind,
		&res.Scope.WorldID,
		&res.Scope.ID,
		&final,
		&source,
		&res.DecidedBy,
		&decidedAt,
		&res.ResolvedAt,
		&content,
		&res.TimeCostMinutes,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning resolution: %w", err)
	}

	res.RequestID = requestID.String
	res.Content = content.String
	res.Scope.Kind = entities.ScopeKind(scopeKind)
	res.Source = entities.ResolutionSource(source)
	res.DecidedAt = entities.GameTime(decidedAt)

	if err := json.Unmarshal([]byte(final), &res.Final); err != nil {
		return nil, fmt.Errorf("unmarshaling final set: %w", err)
	}
	return &res, nil
}

// SaveStagingRecord appends a staging record. When the record is active, the
// prior current record for the scope is demoted in the same transaction.
func (r *Repository) SaveStagingRecord(ctx context.Context, record *entities.StagingRecord) error {
	npcs, err := json.Marshal(record.NPCs)
	if err != nil {
		return fmt.Errorf("marshaling staged npcs: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if record.Active {
		demote := `
			UPDATE staging_records SET active = 0
			WHERE world_id = ? AND scope_kind = ? AND scope_id = ? AND active = 1
		`
		if _, err := tx.ExecContext(ctx, demote,
			record.Scope.WorldID, string(record.Scope.Kind), record.Scope.ID); err != nil {
			return fmt.Errorf("demoting current staging: %w", err)
		}
	}

	insert := `
		INSERT INTO staging_records (id, scope_kind, world_id, scope_id, resolution_id, npcs, game_time, valid_until, approved_at, approved_by, source, guidance, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insert,
		record.ID,
		string(record.Scope.Kind),
		record.Scope.WorldID,
		record.Scope.ID,
		record.ResolutionID,
		string(npcs),
		int64(record.GameTime),
		int64(record.ValidUntil),
		record.ApprovedAt,
		record.ApprovedBy,
		string(record.Source),
		record.Guidance,
		record.Active,
		timeNow(),
	); err != nil {
		return fmt.Errorf("saving staging record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing staging record: %w", err)
	}
	return nil
}

// CurrentStaging returns the active record for a scope, or nil.
func (r *Repository) CurrentStaging(ctx context.Context, scope entities.Scope) (*entities.StagingRecord, error) {
	query := `
		SELECT id, scope_kind, world_id, scope_id, resolution_id, npcs, game_time, valid_until, approved_at, approved_by, source, guidance, active
		FROM staging_records
		WHERE world_id = ? AND scope_kind = ? AND scope_id = ? AND active = 1
		LIMIT 1
	`
	rows, err := r.db.QueryContext(ctx, query, scope.WorldID, string(scope.Kind), scope.ID)
	if err != nil {
		return nil, fmt.Errorf("querying current staging: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	record, err := r.scanStagingRecord(rows)
	if err != nil {
		return nil, err
	}
	return record, rows.Err()
}

// StagingHistory returns records for a scope, newest first.
func (r *Repository) StagingHistory(ctx context.Context, scope entities.Scope, limit int) ([]entities.StagingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, scope_kind, world_id, scope_id, resolution_id, npcs, game_time, valid_until, approved_at, approved_by, source, guidance, active
		FROM staging_records
		WHERE world_id = ? AND scope_kind = ? AND scope_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, scope.WorldID, string(scope.Kind), scope.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying staging history: %w", err)
	}
	defer rows.Close()

	records := make([]entities.StagingRecord, 0, limit)
	for rows.Next() {
		record, err := r.scanStagingRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// scanStagingRecord scans a staging record row.
func (r *Repository) scanStagingRecord(rows *sql.Rows) (*entities.StagingRecord, error) {
	var record entities.StagingRecord
	var scopeKind, source, npcs string
	var guidance sql.NullString
	var gameTime, validUntil int64

	err := rows.Scan(
		&record.ID,
		&scopeKind,
		&record.Scope.WorldID,
		&record.Scope.ID,
		&record.ResolutionID,
		&npcs,
		&gameTime,
		&validUntil,
		&record.ApprovedAt,
		&record.ApprovedBy,
		&source,
		&guidance,
		&record.Active,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning staging record: %w", err)
	}

	record.Scope.Kind = entities.ScopeKind(scopeKind)
	record.Source = entities.StagingSource(source)
	record.GameTime = entities.GameTime(gameTime)
	record.ValidUntil = entities.GameTime(validUntil)
	record.Guidance = guidance.String

	if err := json.Unmarshal([]byte(npcs), &record.NPCs); err != nil {
		return nil, fmt.Errorf("unmarshaling staged npcs: %w", err)
	}
	return &record, nil
}

// SaveDialogueTurn saves or updates a dialogue turn record.
func (r *Repository) SaveDialogueTurn(ctx context.Context, turn *entities.DialogueTurnRecord) error {
	query := `
		INSERT INTO dialogue_turns (id, scope_kind, world_id, scope_id, request_id, conversation_id, npc_id, npc_name, player_line, draft, reasoning, attempt, max_attempts, feedback, state, resolution_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			request_id = excluded.request_id,
			draft = excluded.draft,
			reasoning = excluded.reasoning,
			attempt = excluded.attempt,
			feedback = excluded.feedback,
			state = excluded.state,
			resolution_id = excluded.resolution_id,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		turn.ID,
		string(turn.Scope.Kind),
		turn.Scope.WorldID,
		turn.Scope.ID,
		turn.RequestID,
		turn.ConversationID,
		turn.NPCID,
		turn.NPCName,
		turn.PlayerLine,
		turn.Draft,
		turn.Reasoning,
		turn.Attempt,
		turn.MaxAttempts,
		turn.Feedback,
		string(turn.State),
		turn.ResolutionID,
		turn.CreatedAt,
		turn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving dialogue turn: %w", err)
	}
	return nil
}

// FindDialogueTurn finds a turn by ID. Returns nil if absent.
func (r *Repository) FindDialogueTurn(ctx context.Context, id string) (*entities.DialogueTurnRecord, error) {
	query := `
		SELECT id, scope_kind, world_id, scope_id, request_id, conversation_id, npc_id, npc_name, player_line, draft, reasoning, attempt, max_attempts, feedback, state, resolution_id, created_at, updated_at
		FROM dialogue_turns
		WHERE id = ?
	`
	return r.scanDialogueTurn(r.db.QueryRowContext(ctx, query, id))
}

// FindDialogueTurnByRequest finds the turn attached to a request ID.
func (r *Repository) FindDialogueTurnByRequest(ctx context.Context, requestID string) (*entities.DialogueTurnRecord, error) {
	query := `
		SELECT id, scope_kind, world_id, scope_id, request_id, conversation_id, npc_id, npc_name, player_line, draft, reasoning, attempt, max_attempts, feedback, state, resolution_id, created_at, updated_at
		FROM dialogue_turns
		WHERE request_id = ?
		LIMIT 1
	`
	return r.scanDialogueTurn(r.db.QueryRowContext(ctx, query, requestID))
}

// scanDialogueTurn scans a single dialogue turn row.
func (r *Repository) scanDialogueTurn(row *sql.Row) (*entities.DialogueTurnRecord, error) {
	var turn entities.DialogueTurnRecord
	var scopeKind, state string
	var requestID, npcName, draft, reasoning, feedback, resolutionID sql.NullString

	err := row.Scan(
		&turn.ID,
		&scopeKind,
		&turn.Scope.WorldID,
		&turn.Scope.ID,
		&requestID,
		&turn.ConversationID,
		&turn.NPCID,
		&npcName,
		&turn.PlayerLine,
		&draft,
		&reasoning,
		&turn.Attempt,
		&turn.MaxAttempts,
		&feedback,
		&state,
		&resolutionID,
		&turn.CreatedAt,
		&turn.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning dialogue turn: %w", err)
	}

	turn.Scope.Kind = entities.ScopeKind(scopeKind)
	turn.RequestID = requestID.String
	turn.NPCName = npcName.String
	turn.Draft = draft.String
	turn.Reasoning = reasoning.String
	turn.Feedback = feedback.String
	turn.State = entities.TurnState(state)
	turn.ResolutionID = resolutionID.String
	return &turn, nil
}

// GameTime returns the stored clock value for a world, or the epoch.
func (r *Repository) GameTime(ctx context.Context, worldID string) (entities.GameTime, error) {
	query := `SELECT game_time FROM game_clock WHERE world_id = ?`
	var t int64
	err := r.db.QueryRowContext(ctx, query, worldID).Scan(&t)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading game clock: %w", err)
	}
	return entities.GameTime(t), nil
}

// SetGameTime stores an absolute clock value.
func (r *Repository) SetGameTime(ctx context.Context, worldID string, t entities.GameTime) error {
	query := `
		INSERT INTO game_clock (world_id, game_time, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(world_id) DO UPDATE SET
			game_time = excluded.game_time,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, worldID, int64(t), timeNow())
	if err != nil {
		return fmt.Errorf("setting game clock: %w", err)
	}
	return nil
}

// AdvanceGameTime advances the clock and returns the new value. The advance
// is atomic; concurrent advances never lose minutes.
func (r *Repository) AdvanceGameTime(ctx context.Context, worldID string, minutes int64, reason string) (entities.GameTime, error) {
	query := `
		INSERT INTO game_clock (world_id, game_time, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(world_id) DO UPDATE SET
			game_time = game_time + excluded.game_time,
			updated_at = excluded.updated_at
		RETURNING game_time
	`
	var t int64
	err := r.db.QueryRowContext(ctx, query, worldID, minutes, timeNow()).Scan(&t)
	if err != nil {
		return 0, fmt.Errorf("advancing game clock: %w", err)
	}

	if err := r.LogDecision(ctx, "clock_advance", "", map[string]any{
		"world": worldID, "minutes": minutes, "reason": reason,
	}); err != nil {
		return entities.GameTime(t), fmt.Errorf("logging clock advance: %w", err)
	}
	return entities.GameTime(t), nil
}

// LogDecision logs a decision action to the audit log.
func (r *Repository) LogDecision(ctx context.Context, action string, requestID string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var requestIDPtr sql.NullString
	if requestID != "" {
		requestIDPtr = sql.NullString{String: requestID, Valid: true}
	}

	query := `INSERT INTO audit_log (action, request_id, details) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, action, requestIDPtr, detailsJSON)
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog finds audit log entries for a specific request.
func (r *Repository) FindAuditLog(ctx context.Context, requestID string) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, request_id, details, created_at
		FROM audit_log
		WHERE request_id = ?
		ORDER BY created_at DESC
	`
	return r.queryAuditLog(ctx, query, requestID)
}

// FindAuditLogByAction finds audit log entries by action type.
func (r *Repository) FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, request_id, details, created_at
		FROM audit_log
		WHERE action = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	return r.queryAuditLog(ctx, query, action, limit)
}

// queryAuditLog is a helper to execute audit log queries.
func (r *Repository) queryAuditLog(ctx context.Context, query string, args ...any) ([]entities.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var requestID, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&requestID,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.RequestID = requestID.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
