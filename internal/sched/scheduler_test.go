package sched

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/GeekyJ160/ADA/internal/audio"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now float64
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d float64) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// fakeSource completes only when finish is called.
type fakeSource struct {
	done    chan struct{}
	once    sync.Once
	stopped bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{done: make(chan struct{})}
}

func (s *fakeSource) Stop() {
	s.stopped = true
	s.finish()
}

func (s *fakeSource) Done() <-chan struct{} { return s.done }

func (s *fakeSource) finish() {
	s.once.Do(func() { close(s.done) })
}

// fakeOutput records every Play call.
type fakeOutput struct {
	mu      sync.Mutex
	plays   []playCall
	sources []*fakeSource
}

type playCall struct {
	numSamples int
	sampleRate int
	rate       float64
}

func (o *fakeOutput) Play(samples []float32, sampleRate int, rate float64) Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	src := newFakeSource()
	o.plays = append(o.plays, playCall{len(samples), sampleRate, rate})
	o.sources = append(o.sources, src)
	return src
}

func (o *fakeOutput) rates() []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	rates := make([]float64, len(o.plays))
	for i, p := range o.plays {
		rates[i] = p.rate
	}
	return rates
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeOutput, *fakeClock) {
	t.Helper()
	out := &fakeOutput{}
	clock := &fakeClock{}
	s, err := NewScheduler(out, clock, DefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	return s, out, clock
}

// oneSecond returns a buffer lasting one second at the oracle output rate.
func oneSecond() []float32 {
	return make([]float32, audio.OracleOutputRate)
}

func TestEnqueueBacklogRateTiers(t *testing.T) {
	s, out, _ := newTestScheduler(t)

	// First buffer: cursor at now, depth 0, normal rate.
	s.Enqueue(oneSecond(), audio.OracleOutputRate)
	// Second: depth 1.0s exactly, still not above the aggressive mark,
	// but above the moderate one.
	s.Enqueue(oneSecond(), audio.OracleOutputRate)
	// Third: depth now clearly above 1.0s.
	s.Enqueue(oneSecond(), audio.OracleOutputRate)

	rates := out.rates()
	// Only the first Play happens synchronously; later ones wait on timers.
	if len(rates) < 1 {
		t.Fatalf("Expected at least 1 play, got %d", len(rates))
	}
	if rates[0] != 1.0 {
		t.Errorf("Depth 0: expected rate 1.0, got %f", rates[0])
	}

	// Rate decisions are made at enqueue time; observe them directly.
	s2, _, _ := newTestScheduler(t)
	var observed []float64
	s2.SetObserver(func(depth, rate float64) {
		observed = append(observed, rate)
	})
	s2.Enqueue(oneSecond(), audio.OracleOutputRate)                              // depth 0
	s2.Enqueue(oneSecond()[:audio.OracleOutputRate*3/4], audio.OracleOutputRate) // depth 1.0
	s2.Enqueue(oneSecond(), audio.OracleOutputRate)                              // depth ~1.71

	if len(observed) != 3 {
		t.Fatalf("Expected 3 observations, got %d", len(observed))
	}
	if observed[0] != 1.0 {
		t.Errorf("Depth < 0.5: expected rate 1.0, got %f", observed[0])
	}
	if observed[1] != 1.05 {
		t.Errorf("Depth in (0.5, 1.0]: expected rate 1.05, got %f", observed[1])
	}
	if observed[2] != 1.10 {
		t.Errorf("Depth > 1.0: expected rate 1.10, got %f", observed[2])
	}
}

func TestEnqueueReanchorsAfterGap(t *testing.T) {
	s, _, clock := newTestScheduler(t)

	var depths []float64
	s.SetObserver(func(depth, rate float64) {
		depths = append(depths, depth)
	})

	s.Enqueue(oneSecond(), audio.OracleOutputRate)
	// Simulate a long arrival gap: the cursor is now in the past.
	clock.Advance(5.0)
	s.Enqueue(oneSecond(), audio.OracleOutputRate)

	if len(depths) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(depths))
	}
	if depths[1] != 0 {
		t.Errorf("Expected depth 0 after re-anchor, got %f", depths[1])
	}
}

func TestDepthAdvances(t *testing.T) {
	s, _, clock := newTestScheduler(t)

	if d := s.Depth(); d != 0 {
		t.Errorf("Expected zero initial depth, got %f", d)
	}
	s.Enqueue(oneSecond(), audio.OracleOutputRate)
	if d := s.Depth(); d < 0.99 || d > 1.01 {
		t.Errorf("Expected ~1.0s depth after one buffer, got %f", d)
	}
	clock.Advance(0.5)
	if d := s.Depth(); d < 0.49 || d > 0.51 {
		t.Errorf("Expected ~0.5s depth after advancing clock, got %f", d)
	}
}

func TestResetStopsTrackedSources(t *testing.T) {
	s, out, _ := newTestScheduler(t)

	s.Enqueue(oneSecond(), audio.OracleOutputRate)
	if got := s.ActiveSources(); got != 1 {
		t.Fatalf("Expected 1 active source, got %d", got)
	}

	s.Reset()

	if !out.sources[0].stopped {
		t.Error("Expected tracked source to be stopped on reset")
	}
	if d := s.Depth(); d != 0 {
		t.Errorf("Expected zero depth after reset, got %f", d)
	}

	// Wait for the completion goroutine to unregister the source.
	deadline := time.After(time.Second)
	for s.ActiveSources() != 0 {
		select {
		case <-deadline:
			t.Fatal("Source was not unregistered after reset")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestResetDiscardsPendingTimers(t *testing.T) {
	s, out, _ := newTestScheduler(t)

	// Second buffer is scheduled a second in the future via a timer.
	s.Enqueue(oneSecond(), audio.OracleOutputRate)
	s.Enqueue(oneSecond(), audio.OracleOutputRate)
	s.Reset()

	time.Sleep(20 * time.Millisecond)
	out.mu.Lock()
	plays := len(out.plays)
	out.mu.Unlock()
	if plays != 1 {
		t.Errorf("Expected the deferred buffer to be discarded after reset, got %d plays", plays)
	}
}

func TestPlayAndWaitCompletes(t *testing.T) {
	s, out, _ := newTestScheduler(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.PlayAndWait(context.Background(), oneSecond(), audio.OracleOutputRate)
	}()

	// Let the source register, then finish it.
	for s.ActiveSources() == 0 {
		time.Sleep(time.Millisecond)
	}
	out.sources[0].finish()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("PlayAndWait returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("PlayAndWait did not return after source completion")
	}
}

func TestPlayAndWaitCancellation(t *testing.T) {
	s, out, _ := newTestScheduler(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.PlayAndWait(ctx, oneSecond(), audio.OracleOutputRate)
	}()

	for s.ActiveSources() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("PlayAndWait did not return after cancellation")
	}
	if !out.sources[0].stopped {
		t.Error("Expected source to be stopped on cancellation")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default valid", func(c *Config) {}, false},
		{"zero moderate depth", func(c *Config) { c.ModerateDepth = 0 }, true},
		{"inverted depths", func(c *Config) { c.AggressiveDepth = 0.2 }, true},
		{"rate below unity", func(c *Config) { c.ModerateRate = 0.9 }, true},
		{"inverted rates", func(c *Config) { c.AggressiveRate = 1.01 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
