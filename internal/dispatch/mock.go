package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockDispatcher records dispatches in memory. Err, when set, fails every
// Dispatch call without recording it.
type MockDispatcher struct {
	mu        sync.Mutex
	seq       int
	records   []Record
	cancelled []string
	Err       error
	CancelErr error
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (m *MockDispatcher) Dispatch(_ context.Context, roomID, agentName, metadata string) (Record, error) {
	if err := validate(roomID, agentName, metadata); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Record{}, m.Err
	}
	m.seq++
	rec := Record{
		ID:        fmt.Sprintf("AD_mock_%d", m.seq),
		AgentName: agentName,
		Room:      roomID,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *MockDispatcher) Cancel(_ context.Context, _ string, dispatchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CancelErr != nil {
		return m.CancelErr
	}
	m.cancelled = append(m.cancelled, dispatchID)
	return nil
}

func (m *MockDispatcher) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

func (m *MockDispatcher) Cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}
