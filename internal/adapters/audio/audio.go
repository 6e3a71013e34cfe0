// Package audio plays the alert sound through an external player command.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/okian/drowsywatch/pkg/logger"
	"github.com/okian/drowsywatch/pkg/metrics"
)

const defaultCommand = "aplay"

// ErrSoundMissing is returned when the sound file cannot be used.
var ErrSoundMissing = errors.New("alert sound missing")

// Option configures a Player.
type Option func(*Player)

// WithCommand sets the player binary and any arguments placed before the
// sound path.
func WithCommand(name string, args ...string) Option {
	return func(p *Player) {
		if name != "" {
			p.command = name
			p.args = args
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.log = l
		}
	}
}

// Player runs one playback at a time. Play calls made while a playback is
// still running are coalesced into it.
type Player struct {
	path    string
	command string
	args    []string
	log     logger.Logger

	playing atomic.Bool
	plays   atomic.Int64
	wg      sync.WaitGroup
}

// NewPlayer checks the sound file once and resolves the player command.
func NewPlayer(path string, opts ...Option) (*Player, error) {
	p := &Player{
		path:    path,
		command: defaultCommand,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("audio")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSoundMissing, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSoundMissing, path)
	}
	if _, err := exec.LookPath(p.command); err != nil {
		return nil, fmt.Errorf("audio player %q: %w", p.command, err)
	}
	return p, nil
}

// Play starts the sound and returns immediately. Failures are logged and
// otherwise ignored.
func (p *Player) Play(ctx context.Context) {
	if !p.playing.CompareAndSwap(false, true) {
		return
	}

	args := append(append([]string(nil), p.args...), p.path)
	cmd := exec.Command(p.command, args...) //nolint:gosec // command comes from operator config
	if err := cmd.Start(); err != nil {
		p.playing.Store(false)
		metrics.RecordAudioError()
		p.log.Warn(ctx, "audio playback failed", logger.Error(err))
		return
	}
	p.plays.Add(1)
	metrics.RecordAudioPlay()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.playing.Store(false)
		if err := cmd.Wait(); err != nil {
			metrics.RecordAudioError()
			p.log.Warn(context.Background(), "audio player exited", logger.Error(err))
		}
	}()
}

// Plays returns how many playbacks were started.
func (p *Player) Plays() int64 { return p.plays.Load() }

// Close waits for a running playback to finish.
func (p *Player) Close() error {
	p.wg.Wait()
	return nil
}

// Nop is the alerter used when audio is disabled or unavailable.
type Nop struct{}

// Play does nothing.
func (Nop) Play(context.Context) {}

// Close does nothing.
func (Nop) Close() error { return nil }
