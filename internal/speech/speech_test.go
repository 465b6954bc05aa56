package speech

import (
	"context"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSpeaker struct {
	stops atomic.Int32
}

func (c *countingSpeaker) Speak(context.Context, string) error { return nil }
func (c *countingSpeaker) Stop()                              { c.stops.Add(1) }

func TestRegistry_NewOwnerStopsPrevious(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	first, second := &countingSpeaker{}, &countingSpeaker{}

	r.Claim("session-a", first)
	assert.Equal(t, "session-a", r.Owner())

	r.Claim("session-b", second)
	assert.Equal(t, "session-b", r.Owner())
	assert.Equal(t, int32(1), first.stops.Load())
	assert.Zero(t, second.stops.Load())
}

func TestRegistry_ReclaimBySameOwnerDoesNotStop(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	s := &countingSpeaker{}

	r.Claim("session-a", s)
	r.Claim("session-a", s)
	assert.Zero(t, s.stops.Load())
}

func TestRegistry_Release(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	a, b := &countingSpeaker{}, &countingSpeaker{}

	r.Claim("a", a)
	r.Claim("b", b)
	r.Release("a")
	assert.Equal(t, "b", r.Owner())

	r.Release("b")
	assert.Empty(t, r.Owner())

	r.Claim("c", a)
	r.StopAll()
	assert.Empty(t, r.Owner())
	assert.Equal(t, int32(2), a.stops.Load())
}

func TestCommandSpeaker_RunsCommand(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	s := NewCommandSpeaker("true", nil, zerolog.Nop())
	require.NoError(t, s.Speak(t.Context(), "hello"))
}

func TestCommandSpeaker_StopInterrupts(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	// sleep receives the text as its duration argument
	s := NewCommandSpeaker("sleep", nil, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Speak(context.Background(), "5") }()

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not interrupt the command")
	}
}

func TestCommandSpeaker_ReportsFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	s := NewCommandSpeaker("false", nil, zerolog.Nop())
	assert.Error(t, s.Speak(t.Context(), "hello"))
}
