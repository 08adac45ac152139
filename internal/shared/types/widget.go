package types

import (
	"time"

	"github.com/bytedance/sonic"
)

// Size is the content-box size of a widget container in CSS pixels
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Assets maps asset keys to URLs or data URIs
type Assets map[string]interface{}

// Settings holds user-supplied widget settings
type Settings map[string]interface{}

// Locale returns the "locale" setting, or fallback when unset.
func (s Settings) Locale(fallback string) string {
	if v, ok := s["locale"].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Reserved event types
const (
	EventTick   = "TICK"
	EventResize = "RESIZE"
)

// Event is a value published on the bus and delivered to every widget.
// A tick carries only its type.
type Event struct {
	ID        string      `json:"id,omitempty"`
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// TickEvent returns the periodic tick
func TickEvent() Event {
	return Event{Type: EventTick}
}

// ResizeEvent returns the event synthesized for a container size change
func ResizeEvent(size Size, now time.Time) Event {
	return Event{
		Type:      EventResize,
		Timestamp: now.UnixMilli(),
		Data:      map[string]interface{}{"width": size.Width, "height": size.Height},
	}
}

// IsTick reports whether e is a tick
func (e Event) IsTick() bool {
	return e.Type == EventTick
}

// Seed returns the value used to seed random() for this event: its id,
// the tick type for ticks, otherwise fallback.
func (e Event) Seed(fallback string) string {
	if e.ID != "" {
		return e.ID
	}
	if e.IsTick() {
		return EventTick
	}
	return fallback
}

// Value returns the plain object handed to guest code.
func (e Event) Value() map[string]interface{} {
	if e.IsTick() {
		return map[string]interface{}{"type": EventTick}
	}
	v := map[string]interface{}{
		"type":      e.Type,
		"timestamp": e.Timestamp,
		"data":      e.Data,
	}
	if e.ID != "" {
		v["id"] = e.ID
	}
	return v
}

// MarshalJSON encodes ticks as {"type":"TICK"}
func (e Event) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(e.Value())
}
