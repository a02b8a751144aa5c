package game

import (
	"encoding/json"
	"strconv"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with RNG seed
	EventTypeSpawn
	EventTypeDispose
	EventTypeFire
	EventTypeDamage
	EventTypeDestroyed
	EventTypeInput
	EventTypeGameOver
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8     `json:"version"`   // Schema version
	Type      EventType `json:"type"`      // Event type
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`  // Monotonic sequence
	TickNum   uint64    `json:"tickNum"`   // Game tick this occurred in
	Source    string    `json:"source"`    // Originating entity or client (for rate limiting)
	Session   string    `json:"session,omitempty"`
	Payload   []byte    `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeSpawn:
		return "spawn"
	case EventTypeDispose:
		return "dispose"
	case EventTypeFire:
		return "fire"
	case EventTypeDamage:
		return "damage"
	case EventTypeDestroyed:
		return "destroyed"
	case EventTypeInput:
		return "input"
	case EventTypeGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Typed payloads for different event types

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	RNGSeed     int64 `json:"rngSeed"`
	EntityCount int   `json:"entityCount"`
	DeltaTimeNs int64 `json:"deltaTimeNs"`
}

// SpawnPayload records an entity entering the registry
type SpawnPayload struct {
	EntityID uint64  `json:"entityId"`
	Kind     string  `json:"kind"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// DisposePayload records an entity leaving the registry
type DisposePayload struct {
	EntityID uint64 `json:"entityId"`
	Kind     string `json:"kind"`
}

// FirePayload records a shot
type FirePayload struct {
	EntityID uint64  `json:"entityId"`
	Owner    string  `json:"owner"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Angle    float64 `json:"angle"`
}

// DamagePayload contains damage event details
type DamagePayload struct {
	SourceID uint64 `json:"sourceId"`
	TargetID uint64 `json:"targetId"`
	Damage   int    `json:"damage"`
	Health   int    `json:"health"`
}

// DestroyedPayload records a tank reaching zero health
type DestroyedPayload struct {
	EntityID uint64  `json:"entityId"`
	Kind     string  `json:"kind"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// InputPayload records a change of latched input
type InputPayload struct {
	Keys KeyState `json:"keys"`
	Fire bool     `json:"fire"`
}

// GameOverPayload records the session outcome
type GameOverPayload struct {
	Outcome string `json:"outcome"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, source string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}

// sourceOf formats an entity id as an event source. Zero means the world.
func sourceOf(id EntityID) string {
	if id == 0 {
		return ""
	}
	return "e" + strconv.FormatUint(uint64(id), 10)
}
