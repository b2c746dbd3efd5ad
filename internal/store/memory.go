package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wecall/signaling/internal/domain"
)

// Memory keeps records in process memory. Default store for dev and
// tests; history does not survive a restart.
type Memory struct {
	mu    sync.RWMutex
	calls []domain.CallLog
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Create(ctx context.Context, rec *domain.CallLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, *rec)
	return nil
}

func (m *Memory) UpdateByCallID(ctx context.Context, id domain.CallID, status domain.CallStatus, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.calls {
		if m.calls[i].CallID == id {
			m.calls[i].Status = status
			t := endedAt
			m.calls[i].EndedAt = &t
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) GetByCallID(ctx context.Context, id domain.CallID) (*domain.CallLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.calls {
		if m.calls[i].CallID == id {
			rec := m.calls[i]
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListByUser(ctx context.Context, user domain.UserID, limit int) ([]domain.CallLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CallLog, 0, limit)
	for i := len(m.calls) - 1; i >= 0 && len(out) < limit; i-- {
		if m.calls[i].Caller == user || m.calls[i].Callee == user {
			out = append(out, m.calls[i])
		}
	}
	return out, nil
}

// NotesMemory is the in-memory Notifications store.
type NotesMemory struct {
	mu    sync.RWMutex
	notes []domain.Notification
}

func NewNotesMemory() *NotesMemory {
	return &NotesMemory{}
}

func (m *NotesMemory) Create(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m.notes = append(m.notes, *n)
	return nil
}

func (m *NotesMemory) ListByUser(ctx context.Context, user domain.UserID, limit int) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Notification, 0, limit)
	for i := len(m.notes) - 1; i >= 0 && len(out) < limit; i-- {
		if m.notes[i].UserID == user {
			out = append(out, m.notes[i])
		}
	}
	return out, nil
}
