package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GeekyJ160/ADA/internal/audio"
	"github.com/GeekyJ160/ADA/internal/live"
	"github.com/GeekyJ160/ADA/internal/oracle"
	"github.com/GeekyJ160/ADA/internal/sched"
)

type instantSource struct{ done chan struct{} }

func newInstantSource() *instantSource {
	s := &instantSource{done: make(chan struct{})}
	close(s.done)
	return s
}

func (s *instantSource) Stop()                 {}
func (s *instantSource) Done() <-chan struct{} { return s.done }

// instantOutput finishes every buffer immediately so drain tests run fast.
type instantOutput struct {
	mu    sync.Mutex
	plays int
}

func (o *instantOutput) Play(samples []float32, sampleRate int, rate float64) sched.Source {
	o.mu.Lock()
	o.plays++
	o.mu.Unlock()
	return newInstantSource()
}

type stubSynth struct {
	mu     sync.Mutex
	failOn map[string]bool
	calls  []string
}

func (s *stubSynth) Synthesize(_ context.Context, text, voiceID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	if s.failOn[text] {
		return nil, fmt.Errorf("oracle refused %q", text)
	}
	return audio.EncodePCM16([]float32{0.1, 0.2}), nil
}

type stubResolver struct{}

func (stubResolver) ResolveVoice(string) string { return "voice-1" }

type fakeVideo struct {
	mu                             sync.Mutex
	mutes, unmutes, stops, resumes int
}

func (v *fakeVideo) Resume() { v.mu.Lock(); v.resumes++; v.mu.Unlock() }
func (v *fakeVideo) Mute()   { v.mu.Lock(); v.mutes++; v.mu.Unlock() }
func (v *fakeVideo) Unmute() { v.mu.Lock(); v.unmutes++; v.mu.Unlock() }
func (v *fakeVideo) Stop()   { v.mu.Lock(); v.stops++; v.mu.Unlock() }

func newScriptController(t *testing.T, synth *stubSynth, opts func(*Options)) *Controller {
	t.Helper()
	o := Options{
		Synth:    synth,
		Resolver: stubResolver{},
		Output:   &instantOutput{},
	}
	if opts != nil {
		opts(&o)
	}
	c, err := NewController(o)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	return c
}

func waitForOff(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for session to end")
	}
	if got := c.State(); got != StateOff {
		t.Fatalf("state = %s, want off", got)
	}
}

func TestScriptSessionDrainsToCompletion(t *testing.T) {
	synth := &stubSynth{}
	c := newScriptController(t, synth, nil)

	lines := []string{"Alice: one", "Bob: two", "Alice: three"}
	if err := c.StartScript(lines, "original"); err != nil {
		t.Fatalf("StartScript failed: %v", err)
	}
	waitForOff(t, c)

	history := c.History()
	if len(history) != 3 {
		t.Fatalf("history has %d entries, want 3", len(history))
	}
	for i, want := range []string{"one", "two", "three"} {
		if history[i].Text != want {
			t.Errorf("history[%d].Text = %q, want %q", i, history[i].Text, want)
		}
	}
	if got := c.Subtitle(); got != "" {
		t.Errorf("subtitle = %q, want cleared after drain", got)
	}
}

func TestScriptSessionSkipsFailedSegment(t *testing.T) {
	synth := &stubSynth{failOn: map[string]bool{"two": true}}
	c := newScriptController(t, synth, nil)

	if err := c.StartScript([]string{"a: one", "b: two", "c: three"}, "original"); err != nil {
		t.Fatalf("StartScript failed: %v", err)
	}
	waitForOff(t, c)

	history := c.History()
	if len(history) != 2 || history[0].Text != "one" || history[1].Text != "three" {
		t.Errorf("history = %+v, want segments one and three", history)
	}
}

func TestStartRejectedWhileActive(t *testing.T) {
	block := make(chan struct{})
	synth := &stubSynth{}
	c := newScriptController(t, synth, func(o *Options) {
		o.Output = blockingOutput{release: block}
	})

	if err := c.StartScript([]string{"a: one", "a: two"}, "original"); err != nil {
		t.Fatalf("StartScript failed: %v", err)
	}
	// Session is mid-drain; a second start must be rejected.
	waitForState(t, c, StateLive)
	if err := c.StartScript([]string{"b: other"}, "original"); err == nil {
		t.Error("expected second start to be rejected")
	}

	close(block)
	c.Stop()
	waitForOff(t, c)
}

type blockingSource struct{ release chan struct{} }

func (s blockingSource) Stop()                 {}
func (s blockingSource) Done() <-chan struct{} { return s.release }

type blockingOutput struct{ release chan struct{} }

func (o blockingOutput) Play([]float32, int, float64) sched.Source {
	return blockingSource{release: o.release}
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %s (still %s)", want, c.State())
}

func TestStartRejectsEmptyScript(t *testing.T) {
	c := newScriptController(t, &stubSynth{}, nil)
	if err := c.StartScript([]string{"", "   "}, "original"); err == nil {
		t.Error("expected empty script to be rejected")
	}
	if got := c.State(); got != StateOff {
		t.Errorf("state = %s, want off", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := newScriptController(t, &stubSynth{}, nil)

	if err := c.Stop(); err != nil {
		t.Fatalf("stop on idle controller failed: %v", err)
	}

	if err := c.StartScript([]string{"a: one"}, "original"); err != nil {
		t.Fatalf("StartScript failed: %v", err)
	}
	waitForOff(t, c)

	if err := c.Stop(); err != nil {
		t.Fatalf("first stop failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
	if got := c.State(); got != StateOff {
		t.Errorf("state = %s, want off", got)
	}
}

func TestStopTearsDownMidSession(t *testing.T) {
	release := make(chan struct{})
	video := &fakeVideo{}
	synth := &stubSynth{}
	c := newScriptController(t, synth, func(o *Options) {
		o.Output = blockingOutput{release: release}
		o.Video = video
	})

	if err := c.StartScript([]string{"a: one", "a: two"}, "original"); err != nil {
		t.Fatalf("StartScript failed: %v", err)
	}
	waitForState(t, c, StateLive)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := c.State(); got != StateOff {
		t.Fatalf("state = %s, want off after stop", got)
	}

	video.mu.Lock()
	defer video.mu.Unlock()
	if video.stops != 1 || video.unmutes != 1 {
		t.Errorf("video teardown: stops=%d unmutes=%d, want 1 each", video.stops, video.unmutes)
	}
}

func TestLateResultsDiscardedAfterStop(t *testing.T) {
	release := make(chan struct{})
	c := newScriptController(t, &stubSynth{}, func(o *Options) {
		o.Output = blockingOutput{release: release}
	})

	if err := c.StartScript([]string{"a: one", "a: two"}, "original"); err != nil {
		t.Fatalf("StartScript failed: %v", err)
	}
	waitForState(t, c, StateLive)
	c.Stop()

	before := len(c.History())
	close(release) // the in-flight playback completes after stop
	time.Sleep(50 * time.Millisecond)

	if got := len(c.History()); got != before {
		t.Errorf("history grew from %d to %d after stop", before, got)
	}
	if got := c.Subtitle(); got != "" {
		t.Errorf("subtitle = %q after stop, want empty", got)
	}
}

// stubCapture feeds a fixed set of frames, then blocks until cancelled.
type stubCapture struct {
	frames [][]float32
	index  int
}

func (s *stubCapture) ReadFrame(ctx context.Context) ([]float32, error) {
	if s.index < len(s.frames) {
		frame := s.frames[s.index]
		s.index++
		return frame, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type stubDuplex struct {
	mu       sync.Mutex
	sent     int
	closed   bool
	handlers oracle.SessionHandlers
}

func (s *stubDuplex) SendAudio([]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return nil
}

func (s *stubDuplex) Close() error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	handlers := s.handlers
	s.mu.Unlock()
	if !already && handlers.OnClose != nil {
		handlers.OnClose()
	}
	return nil
}

type stubDialer struct {
	mu      sync.Mutex
	session *stubDuplex
	err     error
}

func (d *stubDialer) OpenDuplex(_ context.Context, _, _ string, handlers oracle.SessionHandlers) (oracle.DuplexSession, error) {
	if d.err != nil {
		return nil, d.err
	}
	s := &stubDuplex{handlers: handlers}
	d.mu.Lock()
	d.session = s
	d.mu.Unlock()
	if handlers.OnOpen != nil {
		handlers.OnOpen()
	}
	return s, nil
}

func newLiveController(t *testing.T, dialer *stubDialer, capture live.CaptureSource) *Controller {
	t.Helper()
	c, err := NewController(Options{
		Dialer:        dialer,
		Capture:       capture,
		SelectedVoice: func() string { return "voice-1" },
		Output:        &instantOutput{},
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	return c
}

func TestLiveSessionRelaysAndStops(t *testing.T) {
	dialer := &stubDialer{}
	capture := &stubCapture{frames: [][]float32{
		make([]float32, live.RelayFrameSize),
		make([]float32, live.RelayFrameSize),
	}}
	c := newLiveController(t, dialer, capture)

	if err := c.StartLive(); err != nil {
		t.Fatalf("StartLive failed: %v", err)
	}
	waitForState(t, c, StateLive)

	// Give the capture loop time to relay both frames.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		dialer.mu.Lock()
		session := dialer.session
		dialer.mu.Unlock()
		if session != nil {
			session.mu.Lock()
			sent := session.sent
			session.mu.Unlock()
			if sent >= 2 {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	waitForOff(t, c)

	dialer.mu.Lock()
	session := dialer.session
	dialer.mu.Unlock()
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.sent != 2 {
		t.Errorf("relayed %d frames, want 2", session.sent)
	}
	if !session.closed {
		t.Error("duplex session not closed at teardown")
	}
}

func TestStopDuringLiveReturnsPromptly(t *testing.T) {
	dialer := &stubDialer{}
	c := newLiveController(t, dialer, &stubCapture{})

	if err := c.StartLive(); err != nil {
		t.Fatalf("StartLive failed: %v", err)
	}
	waitForState(t, c, StateLive)

	dialer.mu.Lock()
	session := dialer.session
	dialer.mu.Unlock()

	// A transcript gives the live processor subtitle state to publish back
	// into the controller during its shutdown.
	session.handlers.OnMessage(oracle.ServerMessage{Transcript: "hello "})
	if got := c.Subtitle(); got == "" {
		t.Fatal("subtitle not published before stop")
	}

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	if got := c.State(); got != StateOff {
		t.Errorf("state = %s after stop, want off", got)
	}
	if got := c.Subtitle(); got != "" {
		t.Errorf("subtitle = %q after stop, want empty", got)
	}
}

func TestLiveSessionRemoteCloseStops(t *testing.T) {
	dialer := &stubDialer{}
	capture := &stubCapture{}
	c := newLiveController(t, dialer, capture)

	if err := c.StartLive(); err != nil {
		t.Fatalf("StartLive failed: %v", err)
	}
	waitForState(t, c, StateLive)

	dialer.mu.Lock()
	session := dialer.session
	dialer.mu.Unlock()
	session.Close() // oracle-initiated close

	waitForOff(t, c)
}

func TestLiveSessionDialFailure(t *testing.T) {
	dialer := &stubDialer{err: fmt.Errorf("connection refused")}
	c := newLiveController(t, dialer, &stubCapture{})

	if err := c.StartLive(); err != nil {
		t.Fatalf("StartLive returned synchronous error: %v", err)
	}
	waitForOff(t, c)
}

func TestStartLiveRequiresVoice(t *testing.T) {
	c, err := NewController(Options{
		Dialer:        &stubDialer{},
		Capture:       &stubCapture{},
		SelectedVoice: func() string { return "" },
		Output:        &instantOutput{},
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	if err := c.StartLive(); err == nil {
		t.Error("expected start without a selected voice to be rejected")
	}
}
