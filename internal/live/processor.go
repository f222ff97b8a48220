package live

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/GeekyJ160/ADA/internal/audio"
	"github.com/GeekyJ160/ADA/internal/oracle"
)

// CaptureSource delivers blocks of captured source audio at the oracle input
// rate. ReadFrame blocks until samples are available; io.EOF ends capture.
// The captured audio is never routed to the local output, only transmitted.
type CaptureSource interface {
	ReadFrame(ctx context.Context) ([]float32, error)
}

// Scheduler is the playback side the processor feeds synthesized audio into.
type Scheduler interface {
	Enqueue(samples []float32, sampleRate int)
	Reset()
}

// Events receives the processor's user-visible side effects. Any field may
// be nil.
type Events struct {
	// PublishSubtitle replaces the current subtitle text.
	PublishSubtitle func(text string)
	// FrameSent fires after each relayed capture frame.
	FrameSent func(numSamples int)
	// FrameReceived fires for each synthesized audio payload.
	FrameReceived func(numSamples int)
}

// RelayFrameSize is the fixed capture frame length relayed to the oracle,
// 256 ms at the 16 kHz input rate.
const RelayFrameSize = 4096

// DefaultSubtitleClearDelay is how long a lingering subtitle survives after
// a turn-complete signal with no further transcription.
const DefaultSubtitleClearDelay = 3 * time.Second

// Processor relays captured audio to a duplex oracle session and plays back
// the session's responses. One processor serves one session.
type Processor struct {
	sched  Scheduler
	events Events
	logger *slog.Logger

	clearDelay time.Duration

	mu         sync.Mutex
	subtitle   strings.Builder
	clearTimer *time.Timer
	closed     bool
}

// NewProcessor creates a live relay processor.
func NewProcessor(sched Scheduler, events Events, logger *slog.Logger) (*Processor, error) {
	if sched == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		sched:      sched,
		events:     events,
		logger:     logger,
		clearDelay: DefaultSubtitleClearDelay,
	}, nil
}

// RunCapture reads from source until ctx is cancelled or the source ends,
// regrouping samples into fixed frames and relaying each frame to session
// without waiting for acknowledgment. Send failures are logged, not
// propagated; the duplex link has no backpressure.
func (p *Processor) RunCapture(ctx context.Context, source CaptureSource, session oracle.DuplexSession) error {
	framer, err := audio.NewFramer(RelayFrameSize)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		samples, err := source.ReadFrame(ctx)
		if err != nil {
			if err == io.EOF {
				// Source ended; the held-back partial frame still belongs
				// to the stream.
				if tail := framer.Flush(); len(tail) > 0 {
					p.relayFrame(tail, session)
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("capture read failed: %w", err)
		}

		for _, frame := range framer.Push(samples) {
			p.relayFrame(frame, session)
		}
	}
}

func (p *Processor) relayFrame(frame []float32, session oracle.DuplexSession) {
	pcm := audio.EncodePCM16(frame)
	if err := session.SendAudio(pcm); err != nil {
		p.logger.Warn("Failed to relay capture frame", "error", err)
		return
	}
	if p.events.FrameSent != nil {
		p.events.FrameSent(len(frame))
	}
}

// HandleMessage dispatches one oracle message. The three signal groups are
// independent; a single message may carry any combination of them.
func (p *Processor) HandleMessage(msg oracle.ServerMessage) {
	if msg.Audio != nil {
		samples, err := audio.BytesToSamples(msg.Audio)
		if err != nil {
			p.logger.Warn("Dropping malformed oracle audio payload", "error", err)
		} else {
			p.sched.Enqueue(samples, audio.OracleOutputRate)
			if p.events.FrameReceived != nil {
				p.events.FrameReceived(len(samples))
			}
		}
	}

	if msg.Interrupted {
		p.sched.Reset()
		p.clearSubtitle()
	}

	if msg.Transcript != "" {
		p.appendTranscript(msg.Transcript)
	}

	if msg.TurnComplete {
		p.scheduleSubtitleClear()
	}
}

// Shutdown cancels the pending subtitle-clear timer and clears the subtitle.
// Safe to call more than once.
func (p *Processor) Shutdown() {
	p.mu.Lock()
	p.closed = true
	if p.clearTimer != nil {
		p.clearTimer.Stop()
		p.clearTimer = nil
	}
	p.subtitle.Reset()
	p.mu.Unlock()

	if p.events.PublishSubtitle != nil {
		p.events.PublishSubtitle("")
	}
}

// appendTranscript grows the current subtitle and cancels any pending clear,
// so a turn-complete clear only lands after real silence.
func (p *Processor) appendTranscript(fragment string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.clearTimer != nil {
		p.clearTimer.Stop()
		p.clearTimer = nil
	}
	p.subtitle.WriteString(fragment)
	text := p.subtitle.String()
	p.mu.Unlock()

	if p.events.PublishSubtitle != nil {
		p.events.PublishSubtitle(text)
	}
}

func (p *Processor) scheduleSubtitleClear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.clearTimer != nil {
		p.clearTimer.Stop()
	}
	p.clearTimer = time.AfterFunc(p.clearDelay, p.clearSubtitle)
}

func (p *Processor) clearSubtitle() {
	p.mu.Lock()
	if p.clearTimer != nil {
		p.clearTimer.Stop()
		p.clearTimer = nil
	}
	p.subtitle.Reset()
	p.mu.Unlock()

	if p.events.PublishSubtitle != nil {
		p.events.PublishSubtitle("")
	}
}

// DefaultDetectionWindow bounds how long DetectLanguage samples live audio.
const DefaultDetectionWindow = 2 * time.Second

// DetectLanguage captures up to window of source audio and asks detector to
// identify its language. Capture stops when the window elapses regardless of
// oracle responsiveness. Failure aborts only the detection.
func DetectLanguage(ctx context.Context, source CaptureSource, detector oracle.Detector, window time.Duration) (*oracle.Language, error) {
	if window <= 0 {
		window = DefaultDetectionWindow
	}
	captureCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	var collected []float32
	for captureCtx.Err() == nil {
		samples, err := source.ReadFrame(captureCtx)
		if err != nil {
			break
		}
		collected = append(collected, samples...)
	}
	if len(collected) == 0 {
		return nil, fmt.Errorf("no audio captured for language detection")
	}

	sample, _ := audio.EncodeOracleAudio(collected, audio.OracleInputRate)
	lang, err := detector.DetectLanguage(ctx, sample)
	if err != nil {
		return nil, fmt.Errorf("language detection failed: %w", err)
	}
	return lang, nil
}
