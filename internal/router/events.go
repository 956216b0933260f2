package router

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a lifecycle transition.
type EventKind string

const (
	EventBuilt        EventKind = "built"
	EventConfigured   EventKind = "configured"
	EventInitialized  EventKind = "initialized"
	EventFailed       EventKind = "failed"
	EventRunning      EventKind = "running"
	EventStopped      EventKind = "stopped"
	EventCleanedUp    EventKind = "cleaned_up"
	EventHotswapped   EventKind = "hotswapped"
	EventReconfigured EventKind = "reconfigured"
)

// Event is published on the router's broadcaster.
type Event struct {
	Kind   EventKind
	Router uuid.UUID
	// Element is set for element-level events.
	Element string
	Time    time.Time
}

func (r *Router) publish(kind EventKind, elementName string) {
	ev := Event{Kind: kind, Router: r.id, Element: elementName, Time: r.master.Clock().Now()}
	if err := r.events.Write(ev); err != nil {
		r.logger.Debug("Dropped lifecycle event.", "event", kind, "error", err)
	}
}
