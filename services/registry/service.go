package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sessiond/pkg/bus"
)

// DefaultStalenessTTL is how long a record may go without a heartbeat before
// a reader treats it as dead and opportunistically deactivates it.
const DefaultStalenessTTL = 2 * time.Minute

// Service implements the session registry semantics over a sessionStore.
type Service struct {
	store        sessionStore
	bus          *bus.Bus
	log          zerolog.Logger
	stalenessTTL time.Duration
	now          func() time.Time
}

// NewService builds a Service. bus may be nil, in which case change events
// are not published.
func NewService(store sessionStore, b *bus.Bus, log zerolog.Logger, stalenessTTL time.Duration) *Service {
	if stalenessTTL <= 0 {
		stalenessTTL = DefaultStalenessTTL
	}
	return &Service{
		store:        store,
		bus:          b,
		log:          log,
		stalenessTTL: stalenessTTL,
		now:          time.Now,
	}
}

// CheckConflict returns the most recently active session for userID held by
// a different token, or nil when the user has no competing session. A stale
// competing record is deactivated in passing (self-healing for crashed
// clients that never signed out) and not reported.
func (s *Service) CheckConflict(ctx context.Context, userID uuid.UUID, token string) (*Session, error) {
	other, found, err := s.store.latestOtherActive(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	now := s.now().UTC()
	if now.Sub(other.LastActiveAt) > s.stalenessTTL {
		corrected, _, err := s.store.deactivateByID(ctx, other.ID, now)
		if err != nil {
			s.log.Warn().Err(err).Stringer("session_id", other.ID).Msg("stale session correction failed")
			return nil, nil
		}
		staleCorrections.Inc()
		s.publishChange(ctx, corrected)
		s.log.Info().
			Stringer("session_id", other.ID).
			Time("last_active_at", other.LastActiveAt).
			Msg("deactivated stale session")
		return nil, nil
	}

	conflictsDetected.Inc()
	return &other, nil
}

// Register makes the calling session the sole active one for its user:
// every other-token record is displaced and the caller's record is upserted
// with fresh device metadata, all in one store transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	current, displaced, err := s.store.registerSession(ctx, in, s.now().UTC())
	if err != nil {
		return Session{}, err
	}

	for _, row := range displaced {
		s.publishChange(ctx, row)
	}
	s.publishChange(ctx, current)

	sessionsRegistered.Inc()
	s.log.Info().
		Stringer("user_id", in.UserID).
		Str("device", in.DeviceName).
		Int("displaced", len(displaced)).
		Msg("session registered")
	return current, nil
}

// Kick force-deactivates a session by its id.
func (s *Service) Kick(ctx context.Context, id uuid.UUID) (Session, bool, error) {
	sess, found, err := s.store.deactivateByID(ctx, id, s.now().UTC())
	if err != nil || !found {
		return Session{}, found, err
	}

	sessionsKicked.Inc()
	s.publishChange(ctx, sess)
	s.log.Info().Stringer("session_id", id).Stringer("user_id", sess.UserID).Msg("session kicked")
	return sess, true, nil
}

// DeactivateToken flips the caller's own record inactive on sign-out.
func (s *Service) DeactivateToken(ctx context.Context, token string) (bool, error) {
	sess, found, err := s.store.deactivateByToken(ctx, token, s.now().UTC())
	if err != nil || !found {
		return found, err
	}
	s.publishChange(ctx, sess)
	return true, nil
}

// Heartbeat refreshes the liveness timestamp of an active session. It
// reports false when the record is missing or already displaced.
func (s *Service) Heartbeat(ctx context.Context, token string) (bool, error) {
	updated, err := s.store.touch(ctx, token, s.now().UTC())
	if err != nil {
		return false, err
	}
	if updated {
		heartbeats.Inc()
	}
	return updated, nil
}

// ListForUser returns every session record the user has ever produced,
// newest activity first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	return s.store.listByUser(ctx, userID)
}

// DeviceOwner looks up which user first registered from a fingerprint.
func (s *Service) DeviceOwner(ctx context.Context, fingerprint string) (*DeviceRegistration, error) {
	reg, found, err := s.store.deviceOwner(ctx, fingerprint)
	if err != nil || !found {
		return nil, err
	}
	return &reg, nil
}

// RegisterDevice records the first user seen on a fingerprint. Repeated
// calls return the original registration.
func (s *Service) RegisterDevice(ctx context.Context, fingerprint string, userID uuid.UUID) (DeviceRegistration, error) {
	return s.store.registerDevice(ctx, fingerprint, userID)
}
