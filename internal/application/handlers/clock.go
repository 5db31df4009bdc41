package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/domain/ports"
)

// ClockHandler handles the per-world game clock.
type ClockHandler struct {
	store    ports.DecisionStore
	calendar entities.Calendar
}

// NewClockHandler creates a new clock handler.
func NewClockHandler(store ports.DecisionStore, calendar entities.Calendar) *ClockHandler {
	return &ClockHandler{
		store:    store,
		calendar: calendar,
	}
}

// ClockResult contains the game clock and its calendar rendering.
type ClockResult struct {
	Time      entities.GameTime
	Formatted string
	Period    entities.TimeOfDayPeriod
}

// Show returns the world's current game time.
func (h *ClockHandler) Show(ctx context.Context, worldID string) (*ClockResult, error) {
	t, err := h.store.GameTime(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("reading game clock: %w", err)
	}
	return h.result(t), nil
}

// Advance moves the world's clock forward by the given in-game minutes.
func (h *ClockHandler) Advance(ctx context.Context, worldID string, minutes int64, reason string) (*ClockResult, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("advance requires a positive number of minutes")
	}
	t, err := h.store.AdvanceGameTime(ctx, worldID, minutes, reason)
	if err != nil {
		return nil, fmt.Errorf("advancing game clock: %w", err)
	}
	return h.result(t), nil
}

// Set moves the world's clock to an absolute game time. Rewinding is allowed;
// staging records dated after the new time simply stay valid longer.
func (h *ClockHandler) Set(ctx context.Context, worldID string, t entities.GameTime) (*ClockResult, error) {
	if err := h.store.SetGameTime(ctx, worldID, t); err != nil {
		return nil, fmt.Errorf("setting game clock: %w", err)
	}
	return h.result(t), nil
}

func (h *ClockHandler) result(t entities.GameTime) *ClockResult {
	return &ClockResult{
		Time:      t,
		Formatted: h.calendar.Format(t),
		Period:    h.calendar.Period(t),
	}
}
