package device

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/GeekyJ160/ADA/internal/assets"
	"github.com/GeekyJ160/ADA/internal/audio"
	"github.com/GeekyJ160/ADA/internal/sched"
)

type finishedSource struct{ done chan struct{} }

func newFinishedSource() *finishedSource {
	s := &finishedSource{done: make(chan struct{})}
	close(s.done)
	return s
}

func (s *finishedSource) Stop()                 {}
func (s *finishedSource) Done() <-chan struct{} { return s.done }

type fakeOutput struct {
	mu      sync.Mutex
	samples []float32
	rate    int
	speed   float64
	plays   int
}

func (o *fakeOutput) Play(samples []float32, sampleRate int, rate float64) sched.Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.plays++
	o.samples = samples
	o.rate = sampleRate
	o.speed = rate
	return newFinishedSource()
}

func newTestStore(t *testing.T, effects ...assets.SoundEffect) *assets.Store {
	t.Helper()
	store, err := assets.NewStore([]assets.VoicePack{
		{ID: "pack-1", Name: "Narrator", BaseVoiceID: "Charon"},
	}, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	for _, sfx := range effects {
		if _, err := store.AddSoundEffect(sfx); err != nil {
			t.Fatalf("AddSoundEffect failed: %v", err)
		}
	}
	return store
}

func TestDecodeEffectWAV(t *testing.T) {
	ints := []int16{0, 8192, -8192, 16384, -16384}
	data, err := audio.EncodeWAV(ints, 24000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	samples, rate, err := decodeEffect("bell.wav", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decodeEffect failed: %v", err)
	}
	if rate != 24000 {
		t.Errorf("sample rate = %d, want 24000", rate)
	}
	if len(samples) != len(ints) {
		t.Fatalf("decoded %d samples, want %d", len(samples), len(ints))
	}
	for i, v := range ints {
		want := float32(v) / 32768
		if math.Abs(float64(samples[i]-want)) > 1.0/32768 {
			t.Errorf("sample %d = %f, want %f", i, samples[i], want)
		}
	}
}

func TestEffectPlayerPlaysWAVAsset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bell.wav")
	data, err := audio.EncodeWAV([]int16{100, 200, 300, 400}, 24000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store := newTestStore(t, assets.SoundEffect{Name: "Bell", Src: path})
	out := &fakeOutput{}
	player, err := NewEffectPlayer(store, out, nil)
	if err != nil {
		t.Fatalf("NewEffectPlayer failed: %v", err)
	}

	// Lookup is case-insensitive.
	if err := player.Trigger(context.Background(), "bell"); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if out.plays != 1 {
		t.Fatalf("played %d times, want 1", out.plays)
	}
	if len(out.samples) != 4 || out.rate != 24000 {
		t.Errorf("played %d samples at %d Hz, want 4 at 24000", len(out.samples), out.rate)
	}
	if out.speed != 1.0 {
		t.Errorf("playback rate = %f, want 1.0", out.speed)
	}
}

func TestEffectPlayerUnknownEffect(t *testing.T) {
	store := newTestStore(t)
	player, err := NewEffectPlayer(store, &fakeOutput{}, nil)
	if err != nil {
		t.Fatalf("NewEffectPlayer failed: %v", err)
	}

	if err := player.Trigger(context.Background(), "absent"); err == nil {
		t.Error("expected error for unregistered effect")
	}
}
