// Package events defines the wire shape of session row-change notifications
// published by the registry and consumed by agents. The payload is decoded at
// the boundary into a concrete type so kick detection stays a pure function.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types mirror the row operation that produced the notification.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
)

// SessionsTable is the logical table name carried in change events.
const SessionsTable = "session_records"

const subjectPrefix = "sessiond.sessions.changed."

// SubjectForUser returns the NATS subject carrying session changes for one
// user. Scoping the subject by user keeps agent subscriptions narrow.
func SubjectForUser(userID uuid.UUID) string {
	return subjectPrefix + userID.String()
}

// SessionRow is the post-change row image included in every notification.
type SessionRow struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	SessionToken string    `json:"session_token"`
	DeviceName   string    `json:"device_name"`
	IsActive     bool      `json:"is_active"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// SessionChange is a single row-level change notification.
type SessionChange struct {
	Table     string     `json:"table"`
	EventType string     `json:"event_type"`
	Row       SessionRow `json:"row"`
}

// IsKickFor reports whether this change deactivates the session identified
// by token. The first matching event wins; there is no debounce.
func (c SessionChange) IsKickFor(token string) bool {
	if c.Table != SessionsTable || c.EventType != EventUpdate {
		return false
	}
	return token != "" && c.Row.SessionToken == token && !c.Row.IsActive
}
