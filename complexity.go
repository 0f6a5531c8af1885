package cogito

import (
	"context"
	"time"
)

// ComplexityScore is the budget decision for one request: how complex the
// query is and how many reasoning passes it is allotted. Produced once per
// request, persisted for audit, never mutated.
type ComplexityScore struct {
	Score           float64            `json:"score"`
	ReasoningPasses int                `json:"reasoning_passes"`
	Factors         map[string]float64 `json:"factors,omitempty"`
}

// ComplexityDetectorOutput is the JSON-serializable record of one complexity
// detection, produced for downstream consumers and persistence.
type ComplexityDetectorOutput struct {
	RequestID       string         `json:"request_id"`
	AgentName       string         `json:"agent_name"`
	Query           string         `json:"query"`
	Score           float64        `json:"score"`
	ReasoningPasses int            `json:"reasoning_passes"`
	Confidence      float64        `json:"confidence"`
	Factors         map[string]any `json:"factors,omitempty"`
	DetectionMethod string         `json:"detection_method"`
	Explanation     string         `json:"explanation,omitempty"`
	DetectedAt      time.Time      `json:"detected_at"`
}

// ComplexityDetector determines the reasoning-pass budget for a query. The
// detect package provides the standard implementation.
type ComplexityDetector interface {
	Detect(ctx context.Context, requestID string, query string) (*ComplexityDetectorOutput, error)
}
