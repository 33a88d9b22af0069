package agent

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sessiond/pkg/events"
)

type countingHeartbeat struct {
	beats   atomic.Int64
	updated bool
}

func (c *countingHeartbeat) Heartbeat(ctx context.Context) (bool, error) {
	c.beats.Add(1)
	return c.updated, nil
}

func kickPayload(t *testing.T, token string, active bool) []byte {
	t.Helper()
	data, err := json.Marshal(events.SessionChange{
		Table:     events.SessionsTable,
		EventType: events.EventUpdate,
		Row:       events.SessionRow{SessionToken: token, IsActive: active},
	})
	if err != nil {
		t.Fatalf("marshal change: %v", err)
	}
	return data
}

func TestListenerHeartbeatsOnInterval(t *testing.T) {
	client := &countingHeartbeat{updated: true}
	l := NewListener(client, nil, &fakeAuth{}, uuid.New(), "tab-token", 5*time.Millisecond, zerolog.Nop())

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Close()

	deadline := time.After(2 * time.Second)
	for client.beats.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d heartbeats before deadline", client.beats.Load())
		case <-time.After(time.Millisecond):
		}
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("heartbeat loop did not stop after Close")
	}
}

func TestListenerKickSignsOutOnce(t *testing.T) {
	const token = "tab-token"
	auth := &fakeAuth{}
	l := NewListener(&countingHeartbeat{}, nil, auth, uuid.New(), token, time.Hour, zerolog.Nop())

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Close()

	payload := kickPayload(t, token, false)
	l.handleChange(context.Background(), payload)
	l.handleChange(context.Background(), payload)

	if !l.Kicked() {
		t.Fatal("listener not marked kicked")
	}
	if len(auth.signOuts) != 1 || auth.signOuts[0] != ReasonKicked {
		t.Fatalf("sign outs = %v, want exactly one %q", auth.signOuts, ReasonKicked)
	}

	// The kick cancels the loop without waiting on Close.
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("heartbeat loop did not stop after kick")
	}
}

func TestListenerIgnoresForeignChanges(t *testing.T) {
	auth := &fakeAuth{}
	l := NewListener(&countingHeartbeat{}, nil, auth, uuid.New(), "tab-token", time.Hour, zerolog.Nop())

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Close()

	l.handleChange(context.Background(), kickPayload(t, "someone-else", false))
	l.handleChange(context.Background(), kickPayload(t, "tab-token", true))
	l.handleChange(context.Background(), []byte("{not json"))

	if l.Kicked() {
		t.Fatal("kicked by a change that does not target this session")
	}
	if len(auth.signOuts) != 0 {
		t.Fatalf("unexpected sign outs: %v", auth.signOuts)
	}
}

func TestListenerStartTwice(t *testing.T) {
	l := NewListener(&countingHeartbeat{}, nil, &fakeAuth{}, uuid.New(), "tab-token", time.Hour, zerolog.Nop())

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Close()

	if err := l.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded")
	}
}

func TestListenerCloseBeforeStart(t *testing.T) {
	l := NewListener(&countingHeartbeat{}, nil, &fakeAuth{}, uuid.New(), "tab-token", time.Hour, zerolog.Nop())
	if err := l.Close(); err != nil {
		t.Fatalf("Close before Start: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("repeated Close: %v", err)
	}
}
