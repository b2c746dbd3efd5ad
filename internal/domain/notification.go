package domain

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotifyContactRequest  NotificationType = "contact_request"
	NotifyContactAccepted NotificationType = "contact_accepted"
	NotifyMissedCall      NotificationType = "missed_call"
	NotifySystem          NotificationType = "system"
)

// Notification is an asynchronous, non-call event for one user. It is
// stored before any delivery attempt so that nothing is lost when
// delivery races a disconnect.
type Notification struct {
	ID         string           `json:"id"`
	UserID     UserID           `json:"userId"`
	Type       NotificationType `json:"type"`
	FromUserID UserID           `json:"fromUserId,omitempty"`
	Message    string           `json:"message"`
	Read       bool             `json:"read"`
	Data       json.RawMessage  `json:"data,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}
