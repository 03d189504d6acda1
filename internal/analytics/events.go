// Package analytics records search, tool and index activity. Events flow
// either straight into an in-process Aggregator or through Kafka, where a
// Collector batches them on the producing side and the Aggregator consumes
// them on the other.
package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
	EventTool   EventType = "tool"
	EventIndex  EventType = "index"
)

// Event is the envelope published to Kafka. Exactly one payload is set,
// matching Type.
type Event struct {
	Type      EventType    `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	RequestID string       `json:"request_id,omitempty"`
	Search    *SearchEvent `json:"search,omitempty"`
	Tool      *ToolEvent   `json:"tool,omitempty"`
	Index     *IndexEvent  `json:"index,omitempty"`
}

type SearchEvent struct {
	Query      string            `json:"query"`
	Terms      []string          `json:"terms"`
	Filters    map[string]string `json:"filters,omitempty"`
	TotalHits  int               `json:"total_hits"`
	Returned   int               `json:"returned"`
	LatencyMs  int64             `json:"latency_ms"`
	CacheHit   bool              `json:"cache_hit"`
	Generation string            `json:"generation"`
	Source     string            `json:"source"`
	Failed     bool              `json:"failed,omitempty"`
}

type ToolEvent struct {
	Name      string `json:"name"`
	Failed    bool   `json:"failed,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type IndexEvent struct {
	Documents  int    `json:"documents"`
	Generation string `json:"generation"`
	LatencyMs  int64  `json:"latency_ms"`
}

// NewSearchEvent stamps a search payload.
func NewSearchEvent(requestID string, s SearchEvent) Event {
	return Event{Type: EventSearch, Timestamp: time.Now().UTC(), RequestID: requestID, Search: &s}
}

// NewToolEvent stamps a tool payload.
func NewToolEvent(requestID string, t ToolEvent) Event {
	return Event{Type: EventTool, Timestamp: time.Now().UTC(), RequestID: requestID, Tool: &t}
}

// NewIndexEvent stamps an index payload.
func NewIndexEvent(i IndexEvent) Event {
	return Event{Type: EventIndex, Timestamp: time.Now().UTC(), Index: &i}
}

// Tracker accepts events without blocking the caller.
type Tracker interface {
	Track(Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Track(Event) {}
