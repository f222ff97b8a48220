package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"

	"github.com/GeekyJ160/ADA/internal/assets"
	"github.com/GeekyJ160/ADA/internal/audio"
	"github.com/GeekyJ160/ADA/internal/sched"
)

// DecodeMP3 decodes an MP3 stream to mono float32 samples, returning the
// samples and their sample rate. Stereo input is downmixed.
func DecodeMP3(r io.Reader) ([]float32, int, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode mp3: %w", err)
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read mp3 stream: %w", err)
	}

	numFrames := len(pcm) / 4
	samples := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		left := int16(uint16(pcm[i*4]) | uint16(pcm[i*4+1])<<8)
		right := int16(uint16(pcm[i*4+2]) | uint16(pcm[i*4+3])<<8)
		samples[i] = (float32(left) + float32(right)) / 2 / 32768
	}
	return samples, decoder.SampleRate(), nil
}

// decodeEffect decodes a sound-effect asset by its file extension. WAV
// assets go through the RIFF decoder; everything else is treated as MP3.
func decodeEffect(path string, r io.Reader) ([]float32, int, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read wav stream: %w", err)
		}
		ints, rate, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, 0, err
		}
		samples := make([]float32, len(ints))
		for i, v := range ints {
			samples[i] = float32(v) / 32768
		}
		return samples, rate, nil
	}
	return DecodeMP3(r)
}

// EffectPlayer resolves named sound effects against the asset store and
// plays them through the output, alongside whatever dialogue is scheduled.
type EffectPlayer struct {
	store  *assets.Store
	out    sched.Output
	logger *slog.Logger
}

// NewEffectPlayer creates a sound-effect player.
func NewEffectPlayer(store *assets.Store, out sched.Output, logger *slog.Logger) (*EffectPlayer, error) {
	if store == nil {
		return nil, fmt.Errorf("asset store is required")
	}
	if out == nil {
		return nil, fmt.Errorf("output is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EffectPlayer{store: store, out: out, logger: logger}, nil
}

// Trigger looks up the effect case-insensitively, decodes its audio asset
// (MP3 or WAV) and plays it to completion or ctx cancellation.
func (e *EffectPlayer) Trigger(ctx context.Context, name string) error {
	sfx, ok := e.store.FindSoundEffect(name)
	if !ok {
		return fmt.Errorf("sound effect %q not found", name)
	}

	f, err := os.Open(sfx.Src)
	if err != nil {
		return fmt.Errorf("failed to open sound effect %q: %w", name, err)
	}
	defer f.Close()

	samples, sampleRate, err := decodeEffect(sfx.Src, f)
	if err != nil {
		return fmt.Errorf("sound effect %q: %w", name, err)
	}
	if len(samples) == 0 {
		return nil
	}

	src := e.out.Play(samples, sampleRate, 1.0)
	select {
	case <-src.Done():
		return nil
	case <-ctx.Done():
		src.Stop()
		return ctx.Err()
	}
}
