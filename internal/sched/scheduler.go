package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GeekyJ160/ADA/internal/audio"
)

// Source is a handle to one live playback of a scheduled buffer.
type Source interface {
	// Stop halts playback immediately. Done must still be closed afterwards.
	Stop()
	// Done is closed once the source has finished playing or was stopped.
	Done() <-chan struct{}
}

// Output is the audio device boundary. Play starts immediate playback of
// mono samples at the given rate multiplier and returns the live source.
type Output interface {
	Play(samples []float32, sampleRate int, rate float64) Source
}

// Config contains the buffer-depth watermarks and the catch-up rates applied
// above them.
type Config struct {
	ModerateDepth   float64 // seconds of backlog before mild acceleration
	AggressiveDepth float64 // seconds of backlog before aggressive acceleration
	ModerateRate    float64
	AggressiveRate  float64
}

// DefaultConfig returns the standard catch-up policy: 1.05x above half a
// second of backlog, 1.10x above a full second.
func DefaultConfig() Config {
	return Config{
		ModerateDepth:   0.5,
		AggressiveDepth: 1.0,
		ModerateRate:    1.05,
		AggressiveRate:  1.10,
	}
}

// Validate checks watermark and rate ordering.
func (c *Config) Validate() error {
	if c.ModerateDepth <= 0 {
		return fmt.Errorf("moderate depth must be positive, got %f", c.ModerateDepth)
	}
	if c.AggressiveDepth <= c.ModerateDepth {
		return fmt.Errorf("aggressive depth (%f) must be greater than moderate depth (%f)",
			c.AggressiveDepth, c.ModerateDepth)
	}
	if c.ModerateRate < 1 || c.AggressiveRate < c.ModerateRate {
		return fmt.Errorf("rates must satisfy 1 <= moderate (%f) <= aggressive (%f)",
			c.ModerateRate, c.AggressiveRate)
	}
	return nil
}

// Scheduler owns the playback timeline. It keeps a single cursor, the start
// time of the next buffer, and guarantees buffers are never scheduled in the
// past. All live sources and pending start timers are tracked so Reset can
// release every one of them.
type Scheduler struct {
	out    Output
	clock  Clock
	cfg    Config
	logger *slog.Logger

	// observer, when set, receives (depth, rate) per scheduled buffer.
	observer func(depth, rate float64)

	mu        sync.Mutex
	nextStart float64
	gen       uint64
	sources   map[Source]struct{}
	timers    map[*time.Timer]struct{}
}

// NewScheduler creates a scheduler playing through out against clock.
func NewScheduler(out Output, clock Clock, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	return &Scheduler{
		out:     out,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
		sources: make(map[Source]struct{}),
		timers:  make(map[*time.Timer]struct{}),
	}, nil
}

// SetObserver registers a callback invoked with the buffer depth and applied
// playback rate for every enqueued buffer.
func (s *Scheduler) SetObserver(fn func(depth, rate float64)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// rateFor returns the playback rate for the given scheduled-ahead depth.
func (s *Scheduler) rateFor(depth float64) float64 {
	switch {
	case depth > s.cfg.AggressiveDepth:
		return s.cfg.AggressiveRate
	case depth > s.cfg.ModerateDepth:
		return s.cfg.ModerateRate
	default:
		return 1.0
	}
}

// Enqueue schedules a decoded buffer for gapless playback after everything
// already scheduled. If the cursor has fallen behind the clock (first buffer,
// or a gap in arrivals) it is re-anchored to now first.
func (s *Scheduler) Enqueue(samples []float32, sampleRate int) {
	if len(samples) == 0 || sampleRate <= 0 {
		return
	}

	s.mu.Lock()
	now := s.clock.Now()
	if s.nextStart < now {
		s.nextStart = now
	}
	depth := s.nextStart - now
	rate := s.rateFor(depth)
	startAt := s.nextStart
	s.nextStart = startAt + audio.Duration(len(samples), sampleRate)/rate
	gen := s.gen
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(depth, rate)
	}
	if rate != 1.0 {
		s.logger.Debug("Playback catch-up engaged",
			slog.Float64("buffer_depth", depth),
			slog.Float64("rate", rate),
		)
	}

	delay := time.Duration((startAt - now) * float64(time.Second))
	if delay <= 0 {
		s.startSource(gen, samples, sampleRate, rate)
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()
		s.startSource(gen, samples, sampleRate, rate)
	})
	s.timers[timer] = struct{}{}
	s.mu.Unlock()
}

// startSource begins playback unless the scheduler was reset since the
// buffer was enqueued.
func (s *Scheduler) startSource(gen uint64, samples []float32, sampleRate int, rate float64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	src := s.out.Play(samples, sampleRate, rate)
	s.sources[src] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-src.Done()
		s.mu.Lock()
		delete(s.sources, src)
		s.mu.Unlock()
	}()
}

// PlayAndWait plays one buffer immediately at normal rate and blocks until
// it finishes or ctx is cancelled. Script-mode segments use this path:
// segments are sequential dialogue, so no overlap or rate adjustment is
// needed.
func (s *Scheduler) PlayAndWait(ctx context.Context, samples []float32, sampleRate int) error {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil
	}

	s.mu.Lock()
	src := s.out.Play(samples, sampleRate, 1.0)
	s.sources[src] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sources, src)
		s.mu.Unlock()
	}()

	select {
	case <-src.Done():
		return nil
	case <-ctx.Done():
		src.Stop()
		return ctx.Err()
	}
}

// Depth returns the currently scheduled-ahead time in seconds.
func (s *Scheduler) Depth() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	depth := s.nextStart - s.clock.Now()
	if depth < 0 {
		return 0
	}
	return depth
}

// ActiveSources returns the number of sources currently playing.
func (s *Scheduler) ActiveSources() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

// Reset stops every tracked source, cancels pending start timers and zeroes
// the cursor so the next buffer re-anchors to now. Called on session
// teardown and on an oracle "interrupted" signal.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.gen++
	s.nextStart = 0
	sources := make([]Source, 0, len(s.sources))
	for src := range s.sources {
		sources = append(sources, src)
	}
	s.sources = make(map[Source]struct{})
	for timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
	s.mu.Unlock()

	for _, src := range sources {
		src.Stop()
	}

	if len(sources) > 0 {
		s.logger.Debug("Scheduler reset", slog.Int("stopped_sources", len(sources)))
	}
}
