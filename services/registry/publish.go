package registry

import (
	"context"

	"sessiond/pkg/events"
)

// publishChange fans the post-change row image out to the owning user's
// subject. Publish failures are logged and swallowed: the registry row is
// already committed and the affected client self-heals via the staleness
// check on its next read.
func (s *Service) publishChange(ctx context.Context, sess Session) {
	if s.bus == nil {
		return
	}

	eventType := events.EventUpdate
	if sess.CreatedAt.Equal(sess.UpdatedAt) {
		eventType = events.EventInsert
	}

	change := events.SessionChange{
		Table:     events.SessionsTable,
		EventType: eventType,
		Row: events.SessionRow{
			ID:           sess.ID,
			UserID:       sess.UserID,
			SessionToken: sess.SessionToken,
			DeviceName:   sess.DeviceName,
			IsActive:     sess.IsActive,
			LastActiveAt: sess.LastActiveAt,
		},
	}

	if err := s.bus.Publish(ctx, events.SubjectForUser(sess.UserID), change); err != nil {
		s.log.Warn().Err(err).Stringer("user_id", sess.UserID).Msg("publish session change")
	}
}
