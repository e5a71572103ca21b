package ports

import (
	"github.com/digitbot/godigit/internal/events"
)

// EventSink receives observability events from the engine.
//
// Emit is fire-and-forget: it must never block and never fail the engine.
// A full or unavailable sink silently drops the event.
type EventSink interface {
	Emit(ev events.Event)
}

// NopSink drops everything. Used where no sink is wired (tests, tools).
type NopSink struct{}

func (NopSink) Emit(events.Event) {}
