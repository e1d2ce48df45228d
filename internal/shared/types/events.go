package types

import "time"

// EventType identifies what happened to a module
type EventType string

const (
	EventTransition EventType = "transition"
	EventImported   EventType = "imported"
	EventScanned    EventType = "scanned"
	EventPurged     EventType = "purged"
)

// Event is published for every committed registry change
type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	ModuleID string    `json:"module_id,omitempty"`
	From     State     `json:"from,omitempty"`
	State    State     `json:"state,omitempty"`
	At       time.Time `json:"at"`
}
