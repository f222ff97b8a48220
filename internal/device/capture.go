package device

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Capture reads mono audio from the default input device. It implements the
// live relay's capture source; the captured audio is never routed to the
// output device, so the local path stays muted.
type Capture struct {
	stream *portaudio.Stream
	buffer []float32
}

// NewCapture opens the default input stream at sampleRate with frameSize
// samples per read.
func NewCapture(sampleRate, frameSize int) (*Capture, error) {
	if sampleRate <= 0 || frameSize <= 0 {
		return nil, fmt.Errorf("invalid capture parameters: rate %d, frame %d", sampleRate, frameSize)
	}

	c := &Capture{buffer: make([]float32, frameSize)}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frameSize, c.buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture stream: %w", err)
	}
	c.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start capture stream: %w", err)
	}
	return c, nil
}

// ReadFrame blocks until the next frame of captured samples is available and
// returns a copy of it.
func (c *Capture) ReadFrame(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.stream.Read(); err != nil {
		return nil, fmt.Errorf("capture read failed: %w", err)
	}
	frame := make([]float32, len(c.buffer))
	copy(frame, c.buffer)
	return frame, nil
}

// Close stops and releases the capture stream.
func (c *Capture) Close() error {
	if c.stream == nil {
		return nil
	}
	c.stream.Stop()
	return c.stream.Close()
}
