package audio

import "testing"

func TestFramerEmitsFixedFrames(t *testing.T) {
	framer, err := NewFramer(4)
	if err != nil {
		t.Fatalf("NewFramer failed: %v", err)
	}

	// 10 samples -> two full frames, two held back
	in := make([]float32, 10)
	for i := range in {
		in[i] = float32(i)
	}

	frames := framer.Push(in)
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	for fi, frame := range frames {
		if len(frame) != 4 {
			t.Errorf("Frame %d: expected 4 samples, got %d", fi, len(frame))
		}
		for si, s := range frame {
			if want := float32(fi*4 + si); s != want {
				t.Errorf("Frame %d sample %d: expected %f, got %f", fi, si, want, s)
			}
		}
	}

	if framer.Pending() != 2 {
		t.Errorf("Expected 2 pending samples, got %d", framer.Pending())
	}
}

func TestFramerAccumulatesAcrossPushes(t *testing.T) {
	framer, _ := NewFramer(4)

	if frames := framer.Push([]float32{1, 2}); frames != nil {
		t.Errorf("Expected no frames from partial push, got %d", len(frames))
	}
	frames := framer.Push([]float32{3, 4, 5})
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame after second push, got %d", len(frames))
	}
	if frames[0][0] != 1 || frames[0][3] != 4 {
		t.Errorf("Frame order wrong: got %v", frames[0])
	}
	if framer.Pending() != 1 {
		t.Errorf("Expected 1 pending sample, got %d", framer.Pending())
	}
}

func TestFramerFlush(t *testing.T) {
	framer, _ := NewFramer(4)
	framer.Push([]float32{1, 2, 3})

	tail := framer.Flush()
	if len(tail) != 3 {
		t.Fatalf("Expected 3 tail samples, got %d", len(tail))
	}
	if framer.Pending() != 0 {
		t.Errorf("Expected empty framer after flush, got %d pending", framer.Pending())
	}
	if tail2 := framer.Flush(); tail2 != nil {
		t.Errorf("Expected nil flush on empty framer, got %v", tail2)
	}
}

func TestNewFramerInvalidSize(t *testing.T) {
	if _, err := NewFramer(0); err == nil {
		t.Error("Expected error for zero frame size")
	}
	if _, err := NewFramer(-1); err == nil {
		t.Error("Expected error for negative frame size")
	}
}
