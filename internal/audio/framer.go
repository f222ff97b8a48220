package audio

import "fmt"

// Framer accumulates captured samples and emits fixed-size frames for
// transmission to a duplex oracle session. A partial tail is held back until
// the next push; Flush hands it back when the stream ends so it can be sent
// as a final short frame.
type Framer struct {
	frameSize int
	pending   []float32
}

// NewFramer creates a framer emitting frames of frameSize samples.
func NewFramer(frameSize int) (*Framer, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSize)
	}
	return &Framer{
		frameSize: frameSize,
		pending:   make([]float32, 0, frameSize),
	}, nil
}

// Push adds captured samples and returns every complete frame now available,
// in capture order. Returned frames are copies and safe to retain.
func (f *Framer) Push(samples []float32) [][]float32 {
	f.pending = append(f.pending, samples...)

	var frames [][]float32
	for len(f.pending) >= f.frameSize {
		frame := make([]float32, f.frameSize)
		copy(frame, f.pending[:f.frameSize])
		frames = append(frames, frame)
		f.pending = f.pending[f.frameSize:]
	}
	return frames
}

// Flush returns the buffered partial frame, if any, and resets the framer.
// Called when capture stops so the tail of the stream is not dropped.
func (f *Framer) Flush() []float32 {
	if len(f.pending) == 0 {
		return nil
	}
	tail := make([]float32, len(f.pending))
	copy(tail, f.pending)
	f.pending = f.pending[:0]
	return tail
}

// Pending returns the number of samples currently held back.
func (f *Framer) Pending() int {
	return len(f.pending)
}
