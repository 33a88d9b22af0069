package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sessiond/services/registry"
)

type fakeRegistry struct {
	conflict    *registry.Session
	registerErr error

	checks    int
	registers int
}

func (f *fakeRegistry) CheckExistingSession(ctx context.Context, userID uuid.UUID) *registry.Session {
	f.checks++
	return f.conflict
}

func (f *fakeRegistry) RegisterSession(ctx context.Context, userID uuid.UUID) error {
	f.registers++
	return f.registerErr
}

type fakePrompter struct {
	choice Choice
	err    error

	prompted int
	seen     registry.Session
}

func (f *fakePrompter) ResolveConflict(ctx context.Context, conflict registry.Session) (Choice, error) {
	f.prompted++
	f.seen = conflict
	return f.choice, f.err
}

type fakeAuth struct {
	signOuts []string
	err      error
}

func (f *fakeAuth) SignOut(ctx context.Context, reason string) error {
	f.signOuts = append(f.signOuts, reason)
	return f.err
}

func otherSession() *registry.Session {
	return &registry.Session{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		SessionToken: "other-tab",
		DeviceName:   "MacBook Pro",
		IsActive:     true,
		LastActiveAt: time.Now().Add(-30 * time.Second),
	}
}

func TestResolveNoConflict(t *testing.T) {
	reg := &fakeRegistry{}
	prompt := &fakePrompter{}
	auth := &fakeAuth{}
	r := NewResolver(reg, prompt, auth, zerolog.Nop())

	state, err := r.Resolve(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if state != StateResolved {
		t.Fatalf("state = %s, want %s", state, StateResolved)
	}
	if reg.registers != 1 {
		t.Fatalf("registers = %d, want 1", reg.registers)
	}
	if prompt.prompted != 0 {
		t.Fatalf("prompted %d times on clean login, want 0", prompt.prompted)
	}
	if len(auth.signOuts) != 0 {
		t.Fatalf("unexpected sign outs: %v", auth.signOuts)
	}
}

func TestResolveUseThisDevice(t *testing.T) {
	conflict := otherSession()
	reg := &fakeRegistry{conflict: conflict}
	prompt := &fakePrompter{choice: ChoiceUseThisDevice}
	auth := &fakeAuth{}
	r := NewResolver(reg, prompt, auth, zerolog.Nop())

	state, err := r.Resolve(context.Background(), conflict.UserID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if state != StateResolved {
		t.Fatalf("state = %s, want %s", state, StateResolved)
	}
	if prompt.prompted != 1 {
		t.Fatalf("prompted = %d, want 1", prompt.prompted)
	}
	if prompt.seen.ID != conflict.ID {
		t.Fatalf("prompt saw session %s, want %s", prompt.seen.ID, conflict.ID)
	}
	if reg.registers != 1 {
		t.Fatalf("registers = %d, want 1", reg.registers)
	}
	if len(auth.signOuts) != 0 {
		t.Fatalf("unexpected sign outs: %v", auth.signOuts)
	}
	if r.Conflict() != nil {
		t.Fatal("conflict not cleared after resolution")
	}
}

func TestResolveKeepExisting(t *testing.T) {
	reg := &fakeRegistry{conflict: otherSession()}
	prompt := &fakePrompter{choice: ChoiceKeepExisting}
	auth := &fakeAuth{}
	r := NewResolver(reg, prompt, auth, zerolog.Nop())

	state, err := r.Resolve(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if state != StateAborted {
		t.Fatalf("state = %s, want %s", state, StateAborted)
	}
	if reg.registers != 0 {
		t.Fatalf("registered %d times after abort, want 0", reg.registers)
	}
	if len(auth.signOuts) != 1 || auth.signOuts[0] != ReasonConflict {
		t.Fatalf("sign outs = %v, want [%s]", auth.signOuts, ReasonConflict)
	}
}

func TestResolvePrompterErrorStaysPending(t *testing.T) {
	reg := &fakeRegistry{conflict: otherSession()}
	prompt := &fakePrompter{err: errors.New("prompt closed")}
	auth := &fakeAuth{}
	r := NewResolver(reg, prompt, auth, zerolog.Nop())

	state, err := r.Resolve(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected prompt error")
	}
	if state != StateConflictPending {
		t.Fatalf("state = %s, want %s", state, StateConflictPending)
	}
	if r.State() != StateConflictPending {
		t.Fatalf("resolver state = %s, want %s", r.State(), StateConflictPending)
	}
	if r.Conflict() == nil {
		t.Fatal("conflict cleared while pending")
	}
	if reg.registers != 0 || len(auth.signOuts) != 0 {
		t.Fatalf("side effects while pending: registers=%d signOuts=%v", reg.registers, auth.signOuts)
	}
}

func TestResolveRegisterFailureStillResolves(t *testing.T) {
	reg := &fakeRegistry{registerErr: errors.New("registry down")}
	r := NewResolver(reg, &fakePrompter{}, &fakeAuth{}, zerolog.Nop())

	state, err := r.Resolve(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if state != StateResolved {
		t.Fatalf("state = %s, want %s", state, StateResolved)
	}
}
