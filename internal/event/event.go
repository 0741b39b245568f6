package event

import "time"

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Turn lifecycle
	TurnStarted   EventType = "turn.started"
	TurnCompleted EventType = "turn.completed"
	TurnFailed    EventType = "turn.failed"

	// Memory rotation
	RotationCompacted EventType = "rotation.compacted"
	RotationFallback  EventType = "rotation.fallback"

	// Durability
	StoreDegraded EventType = "store.degraded"

	// Cache
	CacheHit     EventType = "cache.hit"
	CacheEvicted EventType = "cache.evicted"

	// Session
	SessionCleared EventType = "session.cleared"
)

// Event carries data about a lifecycle occurrence.
type Event struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, sessionID string, data map[string]interface{}) Event {
	return Event{
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      data,
	}
}
