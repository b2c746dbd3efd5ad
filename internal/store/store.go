// Package store holds the durable records the signaling layer mirrors
// its state into: call history and notifications. Live signaling never
// depends on a store read; writes happen outside the session-manager
// critical sections and failures are logged, not propagated.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/wecall/signaling/internal/domain"
)

var ErrNotFound = errors.New("record not found")

type CallLogs interface {
	Create(ctx context.Context, rec *domain.CallLog) error
	// UpdateByCallID sets the final status and end timestamp of a record.
	// Updating an unknown call id returns ErrNotFound.
	UpdateByCallID(ctx context.Context, id domain.CallID, status domain.CallStatus, endedAt time.Time) error
	GetByCallID(ctx context.Context, id domain.CallID) (*domain.CallLog, error)
	// ListByUser returns records where user is caller or callee, newest first.
	ListByUser(ctx context.Context, user domain.UserID, limit int) ([]domain.CallLog, error)
}

type Notifications interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, user domain.UserID, limit int) ([]domain.Notification, error)
}
