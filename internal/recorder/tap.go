package recorder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/GeekyJ160/ADA/internal/audio"
	"github.com/GeekyJ160/ADA/internal/sched"
)

// Tap wraps a scheduler Output and tees every scheduled buffer into an
// in-memory capture. Connect it before any scheduling happens and finalize
// it at teardown; buffers played after Finalize are forwarded but no longer
// captured.
type Tap struct {
	out        sched.Output
	sampleRate int
	logger     *slog.Logger

	mu        sync.Mutex
	samples   []int16
	finalized bool
}

// NewTap creates a recording tap around out. sampleRate is the rate the
// artifact is written at; buffers arriving at other rates are resampled.
func NewTap(out sched.Output, sampleRate int, logger *slog.Logger) (*Tap, error) {
	if out == nil {
		return nil, fmt.Errorf("output is required")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tap{out: out, sampleRate: sampleRate, logger: logger}, nil
}

// Play forwards the buffer to the wrapped output and captures a copy.
func (t *Tap) Play(samples []float32, sampleRate int, rate float64) sched.Source {
	t.capture(samples, sampleRate)
	return t.out.Play(samples, sampleRate, rate)
}

func (t *Tap) capture(samples []float32, sampleRate int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return
	}
	if sampleRate != t.sampleRate {
		samples = resampleLinear(samples, sampleRate, t.sampleRate)
	}
	t.samples = append(t.samples, audio.SamplesToInt16(samples)...)
}

// Duration returns the captured audio length in seconds.
func (t *Tap) Duration() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return audio.Duration(len(t.samples), t.sampleRate)
}

// Finalize stops capturing and returns the recording as WAV bytes. A second
// call and an empty capture both return an error.
func (t *Tap) Finalize() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return nil, fmt.Errorf("recording already finalized")
	}
	t.finalized = true
	if len(t.samples) == 0 {
		return nil, fmt.Errorf("no audio captured")
	}

	data, err := audio.EncodeWAV(t.samples, t.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recording: %w", err)
	}
	t.logger.Info("Recording finalized",
		"samples", len(t.samples),
		"duration_sec", audio.Duration(len(t.samples), t.sampleRate))
	return data, nil
}

// FinalizeToFile finalizes the recording and writes it to path.
func (t *Tap) FinalizeToFile(path string) error {
	data, err := t.Finalize()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	return nil
}

// resampleLinear converts samples between rates by linear interpolation.
// Good enough for an artifact tap; playback quality paths use the device's
// own rate handling.
func resampleLinear(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}
