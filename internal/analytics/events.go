package analytics

import "time"

type EventType string

const (
	EventSearch  EventType = "search"
	EventRebuild EventType = "rebuild"
)

// Correction is a query term the interpreter rewrote.
type Correction struct {
	Input    string `json:"input"`
	Term     string `json:"term"`
	Strategy string `json:"strategy"`
}

type SearchEvent struct {
	Type        EventType    `json:"type"`
	Query       string       `json:"query"`
	Clauses     int          `json:"clauses"`
	Corrections []Correction `json:"corrections,omitempty"`
	TotalHits   int          `json:"total_hits"`
	Returned    int          `json:"returned"`
	LatencyMs   int64        `json:"latency_ms"`
	CacheHit    bool         `json:"cache_hit"`
	Browse      bool         `json:"browse"`
	Degraded    bool         `json:"degraded"`
	Timestamp   time.Time    `json:"timestamp"`
	RequestID   string       `json:"request_id,omitempty"`
}

type RebuildEvent struct {
	Type      EventType `json:"type"`
	Reason    string    `json:"reason"`
	Success   bool      `json:"success"`
	Words     int       `json:"words"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// envelope peeks at the type of an encoded event.
type envelope struct {
	Type EventType `json:"type"`
}
