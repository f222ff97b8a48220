package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/GeekyJ160/ADA/internal/sched"
)

// Playback writes scheduled buffers to the default output device. It
// implements sched.Output; rate adjustment is done in software by linear
// resampling before the samples reach the device.
type Playback struct {
	stream     *portaudio.Stream
	buffer     []float32
	sampleRate int
	frameSize  int
	logger     *slog.Logger

	// writeMu serializes device writes across concurrent sources.
	writeMu sync.Mutex
}

// NewPlayback opens the default output stream at sampleRate.
func NewPlayback(sampleRate, frameSize int, logger *slog.Logger) (*Playback, error) {
	if sampleRate <= 0 || frameSize <= 0 {
		return nil, fmt.Errorf("invalid playback parameters: rate %d, frame %d", sampleRate, frameSize)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Playback{
		buffer:     make([]float32, frameSize),
		sampleRate: sampleRate,
		frameSize:  frameSize,
		logger:     logger,
	}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), frameSize, p.buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open playback stream: %w", err)
	}
	p.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start playback stream: %w", err)
	}
	return p, nil
}

// Play starts asynchronous playback of samples at the given rate and returns
// a handle that reports completion and supports early stop.
func (p *Playback) Play(samples []float32, sampleRate int, rate float64) sched.Source {
	src := &playbackSource{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.run(src, samples, sampleRate, rate)
	return src
}

func (p *Playback) run(src *playbackSource, samples []float32, sampleRate int, rate float64) {
	defer close(src.done)

	// Fold the source rate and the playback rate into one resample pass.
	ratio := float64(sampleRate) / float64(p.sampleRate) * rate
	adjusted := resampleLinear(samples, ratio)

	for offset := 0; offset < len(adjusted); offset += p.frameSize {
		select {
		case <-src.stop:
			return
		default:
		}

		end := offset + p.frameSize
		if end > len(adjusted) {
			end = len(adjusted)
		}
		chunk := adjusted[offset:end]

		p.writeMu.Lock()
		copy(p.buffer, chunk)
		for i := len(chunk); i < len(p.buffer); i++ {
			p.buffer[i] = 0
		}
		err := p.stream.Write()
		p.writeMu.Unlock()
		if err != nil {
			p.logger.Warn("Playback write failed", "error", err)
			return
		}
	}
}

// Close stops and releases the playback stream.
func (p *Playback) Close() error {
	if p.stream == nil {
		return nil
	}
	p.stream.Stop()
	return p.stream.Close()
}

type playbackSource struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *playbackSource) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *playbackSource) Done() <-chan struct{} { return s.done }
