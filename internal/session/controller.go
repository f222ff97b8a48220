package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/GeekyJ160/ADA/internal/audio"
	"github.com/GeekyJ160/ADA/internal/live"
	"github.com/GeekyJ160/ADA/internal/metrics"
	"github.com/GeekyJ160/ADA/internal/oracle"
	"github.com/GeekyJ160/ADA/internal/recorder"
	"github.com/GeekyJ160/ADA/internal/sched"
	"github.com/GeekyJ160/ADA/internal/script"
)

// State is the controller's lifecycle state.
type State int

const (
	// StateOff means no session is active.
	StateOff State = iota
	// StateConnecting means the oracle handshake or translation is in flight.
	StateConnecting
	// StateLive means the session is actively producing audio.
	StateLive
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// Mode selects which processor a session runs.
type Mode string

const (
	ModeScript Mode = "script"
	ModeLive   Mode = "live"
)

// HistoryEntry is one dubbed (or skipped) segment in the session log.
type HistoryEntry struct {
	Text         string    `json:"text"`
	OriginalText string    `json:"originalText"`
	VoiceID      string    `json:"voiceId,omitempty"`
	At           time.Time `json:"at"`
}

// VideoAdapter binds the controller to the companion video element. All
// methods are best-effort; implementations must not block.
type VideoAdapter interface {
	Resume()
	Mute()
	Unmute()
	Stop()
}

// Options wires the controller to its collaborators. Output is always
// required; the per-mode oracle fields are validated at Start.
type Options struct {
	Synth      oracle.Synthesizer
	Translator oracle.Translator
	Dialer     oracle.DuplexDialer

	Resolver      script.VoiceResolver
	SelectedVoice func() string

	Output          sched.Output
	Clock           sched.Clock
	SchedulerConfig sched.Config

	Capture live.CaptureSource
	Effects script.EffectTrigger
	Video   VideoAdapter

	// SystemInstruction is sent with the duplex session setup.
	SystemInstruction string

	// RecordingPath enables the session recording artifact when non-empty.
	RecordingPath string

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Controller is the session lifecycle state machine. One controller serves
// the whole process; at most one session is active at a time.
type Controller struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	state     State
	gen       uint64
	cancel    context.CancelFunc
	sched     *sched.Scheduler
	tap       *recorder.Tap
	duplex    oracle.DuplexSession
	liveProc  *live.Processor
	history   []HistoryEntry
	subtitle  string
	startedAt time.Time
	done      chan struct{}
}

// NewController validates the always-required options and returns an idle
// controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Output == nil {
		return nil, fmt.Errorf("audio output is required")
	}
	if opts.Clock == nil {
		opts.Clock = sched.NewMonotonicClock()
	}
	if opts.SchedulerConfig == (sched.Config{}) {
		opts.SchedulerConfig = sched.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		state:   StateOff,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subtitle returns the current subtitle text.
func (c *Controller) Subtitle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subtitle
}

// History returns a copy of the current session's dubbed-segment log.
func (c *Controller) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]HistoryEntry(nil), c.history...)
}

// Done returns a channel closed when the current session ends. With no
// session active it returns an already-closed channel.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

// StartScript begins a script-mode session over the given raw lines.
// Rejected when a session is already active, the script is empty or the
// oracle collaborators are missing.
func (c *Controller) StartScript(lines []string, targetLang string) error {
	if !hasContent(lines) {
		return fmt.Errorf("script is empty")
	}
	if c.opts.Synth == nil {
		return fmt.Errorf("no speech oracle configured")
	}
	if c.opts.Resolver == nil {
		return fmt.Errorf("no voice resolver configured")
	}

	ctx, gen, err := c.begin(ModeScript)
	if err != nil {
		return err
	}
	go c.runScript(ctx, gen, lines, targetLang)
	return nil
}

// StartLive begins a live duplex session over the configured capture source.
func (c *Controller) StartLive() error {
	if c.opts.Dialer == nil {
		return fmt.Errorf("no duplex oracle configured")
	}
	if c.opts.Capture == nil {
		return fmt.Errorf("no capture source configured")
	}
	if c.opts.SelectedVoice == nil || c.opts.SelectedVoice() == "" {
		return fmt.Errorf("no voice selected")
	}

	ctx, gen, err := c.begin(ModeLive)
	if err != nil {
		return err
	}
	go c.runLive(ctx, gen)
	return nil
}

// begin performs the shared start transition: state check, fresh session
// context, scheduler and recording tap construction.
func (c *Controller) begin(mode Mode) (context.Context, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOff {
		return nil, 0, fmt.Errorf("session already active (state %s)", c.state)
	}

	out := c.opts.Output
	if c.opts.RecordingPath != "" {
		tap, err := recorder.NewTap(out, audio.OracleOutputRate, c.logger)
		if err != nil {
			// Recording is optional; the session proceeds without it.
			c.logger.Warn("Recorder unavailable, session will not be recorded", "error", err)
		} else {
			c.tap = tap
			out = tap
		}
	}

	scheduler, err := sched.NewScheduler(out, c.opts.Clock, c.opts.SchedulerConfig, c.logger)
	if err != nil {
		c.tap = nil
		return nil, 0, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if c.metrics != nil {
		m := c.metrics
		scheduler.SetObserver(func(depth, rate float64) {
			m.BufferDepth.Set(depth)
			m.PlaybackRateTier.WithLabelValues(rateTierLabel(rate)).Inc()
		})
	}

	ctx, cancel := context.WithCancel(context.Background())

	c.gen++
	c.state = StateConnecting
	c.cancel = cancel
	c.sched = scheduler
	c.history = nil
	c.subtitle = ""
	c.startedAt = time.Now()
	c.done = make(chan struct{})

	if c.opts.Video != nil {
		c.opts.Video.Mute()
	}
	if c.metrics != nil {
		c.metrics.RecordSessionStarted(string(mode))
	}
	c.logger.Info("Session starting", "mode", mode, "generation", c.gen)

	return ctx, c.gen, nil
}

func (c *Controller) runScript(ctx context.Context, gen uint64, lines []string, targetLang string) {
	translator := c.opts.Translator
	if translator == nil {
		targetLang = "original"
		translator = noTranslator{}
	}
	resolver := c.opts.Resolver

	segments := script.PrepareSegments(ctx, lines, targetLang, resolver, translator, c.logger)
	if len(segments) == 0 {
		c.finish(gen, nil)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = StateLive
	scheduler := c.sched
	c.mu.Unlock()

	events := script.Events{
		PublishSubtitle: func(text string) { c.setSubtitle(gen, text) },
		AppendHistory: func(text, original, voiceID string) {
			c.appendHistory(gen, text, original, voiceID)
			if c.metrics != nil {
				c.metrics.SegmentsDubbed.Inc()
			}
		},
		ResumeVideo: func() {
			if c.opts.Video != nil {
				c.opts.Video.Resume()
			}
		},
		SegmentFailed: func(seg script.Segment, err error) {
			if c.metrics != nil {
				c.metrics.SegmentsFailed.Inc()
			}
		},
		SegmentSkipped: func(script.Segment) {
			if c.metrics != nil {
				c.metrics.SegmentsSkipped.Inc()
			}
		},
	}

	proc, err := script.NewProcessor(c.opts.Synth, scheduler, c.opts.Effects, events, c.logger)
	if err != nil {
		c.finish(gen, err)
		return
	}
	c.finish(gen, proc.Run(ctx, segments))
}

func (c *Controller) runLive(ctx context.Context, gen uint64) {
	scheduler := c.schedulerFor(gen)
	if scheduler == nil {
		return
	}
	proc, err := live.NewProcessor(scheduler, live.Events{
		PublishSubtitle: func(text string) { c.setSubtitle(gen, text) },
		FrameSent: func(int) {
			if c.metrics != nil {
				c.metrics.LiveFramesSent.Inc()
			}
		},
		FrameReceived: func(int) {
			if c.metrics != nil {
				c.metrics.LiveFramesReceived.Inc()
			}
		},
	}, c.logger)
	if err != nil {
		c.finish(gen, err)
		return
	}

	handlers := oracle.SessionHandlers{
		OnOpen: func() { c.setState(gen, StateLive) },
		OnMessage: func(msg oracle.ServerMessage) {
			if c.generationAlive(gen) {
				proc.HandleMessage(msg)
			}
		},
		OnError: func(err error) {
			c.logger.Error("Duplex session error", "error", err)
		},
		// Oracle-initiated close follows the same teardown as a user stop.
		OnClose: func() { go c.finish(gen, nil) },
	}

	voice := c.opts.SelectedVoice()
	session, err := c.opts.Dialer.OpenDuplex(ctx, c.opts.SystemInstruction, voice, handlers)
	if err != nil {
		c.logger.Error("Failed to open duplex session", "error", err)
		c.finish(gen, err)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		session.Close()
		return
	}
	c.duplex = session
	c.liveProc = proc
	c.mu.Unlock()

	c.finish(gen, proc.RunCapture(ctx, c.opts.Capture, session))
}

func (c *Controller) schedulerFor(gen uint64) *sched.Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil
	}
	return c.sched
}

// Stop ends the active session and releases every session resource. It is
// idempotent: stopping an idle controller is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == StateOff {
		c.mu.Unlock()
		return nil
	}
	release := c.detachLocked()
	c.mu.Unlock()
	release()
	return nil
}

// finish is the processors' exit path. It tears the session down unless a
// newer session has already replaced this generation.
func (c *Controller) finish(gen uint64, err error) {
	if err != nil && err != context.Canceled {
		c.logger.Error("Session ended with error", "error", err)
	}
	c.mu.Lock()
	if c.gen != gen || c.state == StateOff {
		c.mu.Unlock()
		return
	}
	release := c.detachLocked()
	c.mu.Unlock()
	release()
}

// detachLocked removes the session from the controller and returns a closure
// that releases its resources. Called with c.mu held; the closure must run
// after the lock is dropped, because the live processor and duplex session
// call back into the controller during shutdown. Bumping the generation
// first guarantees those callbacks, and results arriving from in-flight
// oracle calls, are discarded rather than applied.
func (c *Controller) detachLocked() func() {
	c.gen++

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	duplex := c.duplex
	c.duplex = nil
	liveProc := c.liveProc
	c.liveProc = nil
	scheduler := c.sched
	c.sched = nil
	tap := c.tap
	c.tap = nil
	startedAt := c.startedAt

	c.subtitle = ""
	c.state = StateOff
	if c.done != nil {
		close(c.done)
		c.done = nil
	}

	return func() {
		if duplex != nil {
			duplex.Close()
		}
		if liveProc != nil {
			liveProc.Shutdown()
		}
		if scheduler != nil {
			scheduler.Reset()
		}
		if tap != nil {
			if err := tap.FinalizeToFile(c.opts.RecordingPath); err != nil {
				c.logger.Warn("Recording not written", "path", c.opts.RecordingPath, "error", err)
			} else {
				c.logger.Info("Recording written", "path", c.opts.RecordingPath)
			}
		}
		if c.opts.Video != nil {
			c.opts.Video.Stop()
			c.opts.Video.Unmute()
		}
		if c.metrics != nil {
			c.metrics.RecordSessionStopped(time.Since(startedAt).Seconds())
			c.metrics.BufferDepth.Set(0)
		}
		c.logger.Info("Session stopped")
	}
}

func (c *Controller) generationAlive(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.state != StateOff
}

func (c *Controller) setState(gen uint64, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state == StateOff {
		return
	}
	c.state = state
}

func (c *Controller) setSubtitle(gen uint64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.subtitle = text
}

func (c *Controller) appendHistory(gen uint64, text, original, voiceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.history = append(c.history, HistoryEntry{
		Text:         text,
		OriginalText: original,
		VoiceID:      voiceID,
		At:           time.Now(),
	})
}

func hasContent(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return true
		}
	}
	return false
}

func rateTierLabel(rate float64) string {
	switch {
	case rate > 1.07:
		return "aggressive"
	case rate > 1.0:
		return "moderate"
	default:
		return "normal"
	}
}

// noTranslator satisfies the translator contract when none is configured;
// PrepareSegments never calls it for the original language.
type noTranslator struct{}

func (noTranslator) TranslateBatch(_ context.Context, texts []string, _ string) ([]string, error) {
	return texts, nil
}
