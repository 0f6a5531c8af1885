// Package storage persists agent outputs for audit. Each coordination
// request produces at most one record per agent (detector, executor,
// confidence scorer); saving the same pair again replaces the payload.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Record is one persisted agent output.
type Record struct {
	RequestID string          `json:"request_id"`
	AgentName string          `json:"agent_name"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewRecord marshals payload into a Record. The payload must be JSON
// serializable.
func NewRecord(requestID, agentName, kind string, payload any) (*Record, error) {
	if requestID == "" || agentName == "" {
		return nil, goerr.New("record requires request ID and agent name",
			goerr.V("request_id", requestID), goerr.V("agent_name", agentName))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal record payload",
			goerr.V("agent_name", agentName))
	}

	return &Record{
		RequestID: requestID,
		AgentName: agentName,
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now(),
	}, nil
}

// Store is the persistence contract. Save upserts on (RequestID, AgentName).
type Store interface {
	Save(ctx context.Context, record *Record) error
	GetByRequestID(ctx context.Context, requestID string) ([]*Record, error)
	Close() error
}
