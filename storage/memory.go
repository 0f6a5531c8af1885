package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// MemoryStore keeps records in process memory. Intended for tests and
// single-shot tooling that does not need durability.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]map[string]*Record{}}
}

func (x *MemoryStore) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return goerr.New("record must not be nil")
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	byAgent, ok := x.records[record.RequestID]
	if !ok {
		byAgent = map[string]*Record{}
		x.records[record.RequestID] = byAgent
	}
	copied := *record
	byAgent[record.AgentName] = &copied
	return nil
}

func (x *MemoryStore) GetByRequestID(ctx context.Context, requestID string) ([]*Record, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	byAgent, ok := x.records[requestID]
	if !ok {
		return nil, nil
	}

	records := make([]*Record, 0, len(byAgent))
	for _, record := range byAgent {
		copied := *record
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].AgentName < records[j].AgentName
	})
	return records, nil
}

func (x *MemoryStore) Close() error {
	return nil
}
