package device

import (
	"github.com/gordonklaus/portaudio"
)

// Init initializes the portaudio runtime. Call once at startup, paired with
// Terminate at shutdown.
func Init() error {
	return portaudio.Initialize()
}

// Terminate releases the portaudio runtime.
func Terminate() {
	portaudio.Terminate()
}

// resampleLinear converts samples between effective rates by linear
// interpolation. ratio > 1 shortens the output (faster playback).
func resampleLinear(samples []float32, ratio float64) []float32 {
	if ratio == 1.0 || len(samples) == 0 {
		return samples
	}
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
