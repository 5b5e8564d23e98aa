package analytics

import "time"

// Tool names as they appear in events and metrics.
const (
	ToolSearch    = "search"
	ToolCaseStudy = "lookup_case_study"
	ToolGlossary  = "lookup_glossary_term"
)

// EventSchema tags ToolEvent messages on the wire.
const EventSchema = "tool-event.v1"

// Outcome classifies how a tool call ended.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeEmpty           Outcome = "empty"
	OutcomeInvalidArgument Outcome = "invalid_argument"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeAmbiguous       Outcome = "ambiguous"
	OutcomeError           Outcome = "error"
)

// ToolEvent is published for every tool call.
type ToolEvent struct {
	Tool      string    `json:"tool"`
	Query     string    `json:"query"`
	Outcome   Outcome   `json:"outcome"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Method    string    `json:"method,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
