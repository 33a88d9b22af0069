package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sessiond/services/registry"
)

// State is the conflict resolver's position in the login handshake. The
// authenticated surface must stay hidden until the resolver reaches
// StateResolved.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateNoConflict
	StateConflictPending
	StateResolved
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateNoConflict:
		return "no-conflict"
	case StateConflictPending:
		return "conflict-pending"
	case StateResolved:
		return "resolved"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Choice is the user's answer to a session conflict.
type Choice int

const (
	// ChoiceUseThisDevice takes the session over, displacing the other
	// device.
	ChoiceUseThisDevice Choice = iota
	// ChoiceKeepExisting abandons this login attempt so the other device
	// stays authoritative.
	ChoiceKeepExisting
)

// RegistryClient is the slice of the registry surface the resolver needs.
type RegistryClient interface {
	CheckExistingSession(ctx context.Context, userID uuid.UUID) *registry.Session
	RegisterSession(ctx context.Context, userID uuid.UUID) error
}

// Prompter surfaces a conflict to the user and blocks for a decision. There
// is deliberately no timeout: an abandoned prompt leaves the login in limbo
// until the process exits.
type Prompter interface {
	ResolveConflict(ctx context.Context, conflict registry.Session) (Choice, error)
}

// Authenticator is the local sign-out primitive.
type Authenticator interface {
	SignOut(ctx context.Context, reason string) error
}

// AuthFunc adapts a function to the Authenticator interface.
type AuthFunc func(ctx context.Context, reason string) error

// SignOut implements Authenticator.
func (f AuthFunc) SignOut(ctx context.Context, reason string) error { return f(ctx, reason) }

// Sign-out reasons surfaced to the UI layer.
const (
	ReasonKicked   = "kicked"
	ReasonConflict = "conflict"
)

// Resolver drives the post-authentication handshake: check for a competing
// session, surface it, act on the user's choice, and register the winner.
type Resolver struct {
	client   RegistryClient
	prompter Prompter
	auth     Authenticator
	log      zerolog.Logger

	mu       sync.Mutex
	state    State
	conflict *registry.Session
}

// NewResolver builds a resolver in StateIdle.
func NewResolver(client RegistryClient, prompter Prompter, auth Authenticator, log zerolog.Logger) *Resolver {
	return &Resolver{
		client:   client,
		prompter: prompter,
		auth:     auth,
		log:      log,
		state:    StateIdle,
	}
}

// State returns the resolver's current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Conflict returns the competing session while in StateConflictPending.
func (r *Resolver) Conflict() *registry.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflict
}

func (r *Resolver) setState(s State, conflict *registry.Session) {
	r.mu.Lock()
	r.state = s
	r.conflict = conflict
	r.mu.Unlock()
}

// Resolve runs the handshake for userID immediately after authentication and
// returns the terminal state. StateResolved means this instance is now the
// sole active session; StateAborted means the login was abandoned and the
// fresh auth session has been signed out.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (State, error) {
	r.setState(StateChecking, nil)

	conflict := r.client.CheckExistingSession(ctx, userID)
	if conflict == nil {
		r.setState(StateNoConflict, nil)
		r.register(ctx, userID)
		r.setState(StateResolved, nil)
		return StateResolved, nil
	}

	r.setState(StateConflictPending, conflict)
	r.log.Info().
		Str("device", conflict.DeviceName).
		Stringer("session_id", conflict.ID).
		Msg("existing session detected")

	choice, err := r.prompter.ResolveConflict(ctx, *conflict)
	if err != nil {
		// The user never answered; stay pending so the UI keeps blocking.
		return StateConflictPending, err
	}

	switch choice {
	case ChoiceKeepExisting:
		if err := r.auth.SignOut(ctx, ReasonConflict); err != nil {
			r.log.Warn().Err(err).Msg("sign out after conflict abort failed")
		}
		r.setState(StateAborted, nil)
		return StateAborted, nil
	default:
		// Last write wins: this device's explicit confirmation displaces
		// the other session inside register.
		r.register(ctx, userID)
		r.setState(StateResolved, nil)
		return StateResolved, nil
	}
}

// register proceeds optimistically on failure; a miss here is corrected by
// the next heartbeat tick.
func (r *Resolver) register(ctx context.Context, userID uuid.UUID) {
	if err := r.client.RegisterSession(ctx, userID); err != nil {
		r.log.Warn().Err(err).Msg("session registration failed, proceeding")
	}
}
