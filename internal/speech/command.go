// ABOUTME: Speaker backed by a local text-to-speech command (say, espeak)
package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNoSpeechCommand is returned when no supported TTS binary is installed
var ErrNoSpeechCommand = errors.New("no speech command available")

// CommandSpeaker runs one TTS process per Speak call
type CommandSpeaker struct {
	name   string
	args   []string
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCommandSpeaker runs name with args followed by the text
func NewCommandSpeaker(name string, args []string, logger zerolog.Logger) *CommandSpeaker {
	return &CommandSpeaker{
		name:   name,
		args:   args,
		logger: logger.With().Str("component", "speech").Str("command", name).Logger(),
	}
}

// DetectCommandSpeaker picks the platform's TTS command
func DetectCommandSpeaker(logger zerolog.Logger) (*CommandSpeaker, error) {
	candidates := []string{"espeak-ng", "espeak", "spd-say"}
	if runtime.GOOS == "darwin" {
		candidates = []string{"say"}
	}
	for _, name := range candidates {
		if _, err := exec.LookPath(name); err == nil {
			return NewCommandSpeaker(name, nil, logger), nil
		}
	}
	return nil, ErrNoSpeechCommand
}

// Speak runs the command, interrupting any utterance already in progress
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	args := append(append([]string{}, s.args...), text)
	cmd := exec.CommandContext(ctx, s.name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn().Err(err).Str("output", string(output)).Msg("speech command failed")
		return fmt.Errorf("%s failed: %w", s.name, err)
	}
	return nil
}

// Stop interrupts the current utterance
func (s *CommandSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
