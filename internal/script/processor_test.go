package script

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GeekyJ160/ADA/internal/audio"
)

type fakeSynth struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]bool
}

func (f *fakeSynth) Synthesize(_ context.Context, text, voiceID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.failOn[text] {
		return nil, fmt.Errorf("synthesis failed for %q", text)
	}
	return audio.EncodePCM16([]float32{0.1, 0.2, 0.3, 0.4}), nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePlayer struct {
	mu    sync.Mutex
	plays int
}

func (f *fakePlayer) PlayAndWait(ctx context.Context, samples []float32, sampleRate int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.plays++
	f.mu.Unlock()
	return nil
}

type fakeEffects struct {
	mu        sync.Mutex
	triggered []string
}

func (f *fakeEffects) Trigger(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered = append(f.triggered, name)
	return nil
}

type historyRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (h *historyRecorder) append(text, _, _ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, text)
}

func (h *historyRecorder) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

func newTestProcessor(t *testing.T, synth *fakeSynth, effects EffectTrigger, events Events) *Processor {
	t.Helper()
	p, err := NewProcessor(synth, &fakePlayer{}, effects, events, nil)
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	p.sfxDelay = time.Millisecond
	return p
}

func TestRunDrainsQueueInOrder(t *testing.T) {
	synth := &fakeSynth{}
	history := &historyRecorder{}
	p := newTestProcessor(t, synth, nil, Events{AppendHistory: history.append})

	segments := []Segment{
		{Text: "one", OriginalText: "one", VoiceID: "v"},
		{Text: "two", OriginalText: "two", VoiceID: "v"},
		{Text: "three", OriginalText: "three", VoiceID: "v"},
	}
	if err := p.Run(context.Background(), segments); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := history.snapshot()
	if len(got) != 3 {
		t.Fatalf("history has %d entries, want 3", len(got))
	}
	for i, want := range []string{"one", "two", "three"} {
		if got[i] != want {
			t.Errorf("history[%d] = %q, want %q", i, got[i], want)
		}
	}
}

func TestRunSkipsFailedSegment(t *testing.T) {
	synth := &fakeSynth{failOn: map[string]bool{"two": true}}
	history := &historyRecorder{}
	var failures []string
	p := newTestProcessor(t, synth, nil, Events{
		AppendHistory: history.append,
		SegmentFailed: func(seg Segment, _ error) { failures = append(failures, seg.Text) },
	})

	segments := []Segment{
		{Text: "one", OriginalText: "one", VoiceID: "v"},
		{Text: "two", OriginalText: "two", VoiceID: "v"},
		{Text: "three", OriginalText: "three", VoiceID: "v"},
	}
	if err := p.Run(context.Background(), segments); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := history.snapshot()
	if len(got) != 2 || got[0] != "one" || got[1] != "three" {
		t.Errorf("history = %v, want [one three]", got)
	}
	if len(failures) != 1 || failures[0] != "two" {
		t.Errorf("failures = %v, want [two]", failures)
	}
}

func TestRunSFXOnlySegmentSkipsOracle(t *testing.T) {
	synth := &fakeSynth{}
	effects := &fakeEffects{}
	history := &historyRecorder{}
	p := newTestProcessor(t, synth, effects, Events{AppendHistory: history.append})

	segments := []Segment{{Text: "[SFX: Bell]", OriginalText: "[SFX: Bell]"}}
	if err := p.Run(context.Background(), segments); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if synth.callCount() != 0 {
		t.Errorf("oracle called %d times for SFX-only segment, want 0", synth.callCount())
	}
	got := history.snapshot()
	if len(got) != 1 || got[0] != "[SFX] Bell" {
		t.Errorf("history = %v, want [[SFX] Bell]", got)
	}

	effects.mu.Lock()
	defer effects.mu.Unlock()
	if len(effects.triggered) != 1 || effects.triggered[0] != "Bell" {
		t.Errorf("triggered = %v, want [Bell]", effects.triggered)
	}
}

func TestRunSFXWithTextSpeaksRemainder(t *testing.T) {
	synth := &fakeSynth{}
	effects := &fakeEffects{}
	p := newTestProcessor(t, synth, effects, Events{})

	segments := []Segment{{Text: "[SFX: Bell] Hello there", OriginalText: "[SFX: Bell] Hello there", VoiceID: "v"}}
	if err := p.Run(context.Background(), segments); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	synth.mu.Lock()
	defer synth.mu.Unlock()
	if len(synth.calls) != 1 || synth.calls[0] != "Hello there" {
		t.Errorf("synthesized %v, want [Hello there]", synth.calls)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	synth := &fakeSynth{}
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	history := &historyRecorder{}
	p := newTestProcessor(t, synth, nil, Events{
		AppendHistory: func(text, orig, voice string) {
			history.append(text, orig, voice)
			once.Do(cancel) // stop after the first segment lands
		},
	})

	segments := []Segment{
		{Text: "one", OriginalText: "one", VoiceID: "v"},
		{Text: "two", OriginalText: "two", VoiceID: "v"},
		{Text: "three", OriginalText: "three", VoiceID: "v"},
	}
	err := p.Run(ctx, segments)
	if err == nil {
		t.Fatal("expected cancellation error")
	}

	if got := history.snapshot(); len(got) != 1 {
		t.Errorf("history = %v, want exactly the first segment", got)
	}
}

func TestRunClearsSubtitleOnExhaustion(t *testing.T) {
	synth := &fakeSynth{}
	var subtitles []string
	p := newTestProcessor(t, synth, nil, Events{
		PublishSubtitle: func(text string) { subtitles = append(subtitles, text) },
	})

	segments := []Segment{{Text: "one", OriginalText: "one", VoiceID: "v"}}
	if err := p.Run(context.Background(), segments); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(subtitles) == 0 || subtitles[len(subtitles)-1] != "" {
		t.Errorf("subtitles = %v, want trailing clear", subtitles)
	}
}
