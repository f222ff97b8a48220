package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GeekyJ160/ADA/internal/audio"
	"github.com/GeekyJ160/ADA/internal/oracle"
)

// Player schedules one synthesized buffer and blocks until it has finished
// playing or ctx is cancelled.
type Player interface {
	PlayAndWait(ctx context.Context, samples []float32, sampleRate int) error
}

// EffectTrigger resolves and plays a named sound effect.
type EffectTrigger interface {
	Trigger(ctx context.Context, name string) error
}

// Events receives the processor's user-visible side effects. Any field may
// be nil.
type Events struct {
	// PublishSubtitle replaces the current subtitle.
	PublishSubtitle func(text string)
	// AppendHistory records one dubbed (or skipped) segment.
	AppendHistory func(text, original, voiceID string)
	// ResumeVideo unpauses the companion video when dubbed audio starts.
	ResumeVideo func()
	// SegmentFailed reports a per-segment oracle failure.
	SegmentFailed func(segment Segment, err error)
	// SegmentSkipped reports a segment that skipped the oracle entirely.
	SegmentSkipped func(segment Segment)
}

// Processor drains a segment queue through the oracle, strictly one segment
// at a time. It is single-use: construct, Run, discard.
type Processor struct {
	synth    oracle.Synthesizer
	player   Player
	effects  EffectTrigger
	events   Events
	sfxDelay time.Duration
	logger   *slog.Logger
}

// NewProcessor creates a segment queue processor. synth and player are
// required; effects may be nil when no sound-effect assets exist.
func NewProcessor(synth oracle.Synthesizer, player Player, effects EffectTrigger, events Events, logger *slog.Logger) (*Processor, error) {
	if synth == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if player == nil {
		return nil, fmt.Errorf("player is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		synth:    synth,
		player:   player,
		effects:  effects,
		events:   events,
		sfxDelay: time.Second,
		logger:   logger,
	}, nil
}

// Run drains the queue in order. It returns nil when the queue is exhausted
// and ctx.Err() when cancelled mid-drain. A failing segment is reported and
// skipped; it never aborts the remaining queue. Cancellation is re-checked
// after every oracle call and every completed playback, so results arriving
// for a stopped session are discarded instead of scheduled.
func (p *Processor) Run(ctx context.Context, segments []Segment) error {
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}

		effect, spoken := ExtractSFX(seg.Text)
		if effect != "" {
			p.triggerEffect(ctx, effect)
			if spoken == "" {
				// SFX-only line: no oracle call, brief pause instead.
				if p.events.AppendHistory != nil {
					p.events.AppendHistory("[SFX] "+effect, seg.OriginalText, "")
				}
				if p.events.SegmentSkipped != nil {
					p.events.SegmentSkipped(seg)
				}
				select {
				case <-time.After(p.sfxDelay):
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			}
		}

		if p.events.PublishSubtitle != nil {
			p.events.PublishSubtitle(seg.OriginalText)
		}

		pcm, err := p.synth.Synthesize(ctx, spoken, seg.VoiceID)
		if err != nil {
			p.logger.Warn("Segment synthesis failed, skipping",
				"segment", i,
				"voice_id", seg.VoiceID,
				"error", err)
			if p.events.SegmentFailed != nil {
				p.events.SegmentFailed(seg, err)
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if p.events.AppendHistory != nil {
			p.events.AppendHistory(spoken, seg.OriginalText, seg.VoiceID)
		}
		if p.events.ResumeVideo != nil {
			p.events.ResumeVideo()
		}

		if pcm == nil {
			// Oracle produced no audio for this segment.
			continue
		}
		samples, err := audio.BytesToSamples(pcm)
		if err != nil {
			p.logger.Warn("Segment audio payload is malformed, skipping",
				"segment", i,
				"error", err)
			if p.events.SegmentFailed != nil {
				p.events.SegmentFailed(seg, err)
			}
			continue
		}
		if err := p.player.PlayAndWait(ctx, samples, audio.OracleOutputRate); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("Segment playback failed, skipping",
				"segment", i,
				"error", err)
		}
	}

	if p.events.PublishSubtitle != nil {
		p.events.PublishSubtitle("")
	}
	return nil
}

func (p *Processor) triggerEffect(ctx context.Context, name string) {
	if p.effects == nil {
		p.logger.Debug("No sound effect player registered", "effect", name)
		return
	}
	// Effects run alongside dialogue, never on the sequential drain path.
	go func() {
		if err := p.effects.Trigger(ctx, name); err != nil {
			p.logger.Warn("Sound effect playback failed", "effect", name, "error", err)
		}
	}()
}
