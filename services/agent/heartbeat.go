package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sessiond/pkg/bus"
	"sessiond/pkg/events"
)

// DefaultHeartbeatInterval matches the registry's expectation that a live
// session refreshes itself well inside the two-minute staleness window.
const DefaultHeartbeatInterval = 30 * time.Second

// HeartbeatClient is the slice of the registry surface the listener needs.
type HeartbeatClient interface {
	Heartbeat(ctx context.Context) (bool, error)
}

// Listener keeps a resolved session alive and reacts to out-of-band
// deactivation. It owns two resources for the lifetime of one login: a
// heartbeat ticker and a bus subscription for the user's session changes.
// Both are released on Close or context cancellation; repeated login/logout
// cycles must not leak either.
type Listener struct {
	client   HeartbeatClient
	bus      *bus.Bus
	auth     Authenticator
	token    string
	userID   uuid.UUID
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	sub     io.Closer
	done    chan struct{}
	started bool

	kickOnce sync.Once
	kicked   bool
}

// NewListener builds a listener for one resolved session. eventBus may be
// nil; the listener then heartbeats without a kick subscription and the
// session only learns of displacement through failing heartbeats.
func NewListener(client HeartbeatClient, eventBus *bus.Bus, auth Authenticator, userID uuid.UUID, token string, interval time.Duration, log zerolog.Logger) *Listener {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Listener{
		client:   client,
		bus:      eventBus,
		auth:     auth,
		token:    token,
		userID:   userID,
		interval: interval,
		log:      log,
	}
}

// Start acquires the ticker and subscription. It returns once both are
// running; the heartbeat loop continues in the background until Close or
// context cancellation.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return errors.New("listener already started")
	}
	l.started = true

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.mu.Unlock()

	if l.bus != nil {
		sub, err := l.bus.Subscribe(ctx, events.SubjectForUser(l.userID), l.handleChange)
		if err != nil {
			cancel()
			close(l.done)
			return err
		}
		l.mu.Lock()
		l.sub = sub
		l.mu.Unlock()
	}

	go l.run(ctx)
	return nil
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.beat(ctx)
		}
	}
}

// beat refreshes the liveness timestamp. Errors are logged and dropped; a
// missed beat is recovered by the next tick, and a session displaced
// elsewhere reports updated=false without being resurrected.
func (l *Listener) beat(ctx context.Context) {
	updated, err := l.client.Heartbeat(ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("heartbeat failed")
		return
	}
	if !updated {
		l.log.Debug().Msg("heartbeat no-op, session no longer active")
	}
}

// handleChange decodes one change notification and applies the kick
// predicate. The first matching event wins; duplicates are ignored.
func (l *Listener) handleChange(ctx context.Context, data []byte) {
	var change events.SessionChange
	if err := json.Unmarshal(data, &change); err != nil {
		l.log.Warn().Err(err).Msg("malformed session change event")
		return
	}

	if !change.IsKickFor(l.token) {
		return
	}
	l.kick(ctx)
}

// kick signs out exactly once and releases the listener's resources. There
// is no negotiation and no debounce: the session is gone the instant the
// event arrives.
func (l *Listener) kick(ctx context.Context) {
	l.kickOnce.Do(func() {
		l.mu.Lock()
		l.kicked = true
		cancel := l.cancel
		l.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		l.log.Info().Stringer("user_id", l.userID).Msg("session kicked by another device")
		if err := l.auth.SignOut(ctx, ReasonKicked); err != nil {
			l.log.Error().Err(err).Msg("forced sign-out failed")
		}
	})
}

// Kicked reports whether this session was displaced by another device.
func (l *Listener) Kicked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kicked
}

// Done is closed once the heartbeat loop has fully stopped.
func (l *Listener) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Close releases the ticker and subscription. Safe to call more than once
// and before Start.
func (l *Listener) Close() error {
	l.mu.Lock()
	cancel := l.cancel
	sub := l.sub
	done := l.done
	l.sub = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if sub != nil {
		err = sub.Close()
	}
	if done != nil {
		<-done
	}
	return err
}
