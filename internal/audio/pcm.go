package audio

import (
	"encoding/base64"
	"fmt"
)

// Oracle wire-format sample rates. These are fixed contract constants of the
// speech oracle, not negotiated: audio sent to a duplex session must be 16 kHz
// mono PCM-16, audio received from synthesis is 24 kHz mono PCM-16.
const (
	OracleInputRate  = 16000
	OracleOutputRate = 24000
)

// EncodePCM16 converts float samples in [-1, 1] to 16-bit little-endian PCM.
// Out-of-range samples saturate at the int16 limits rather than wrapping.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// EncodeOracleAudio packs samples into the base64 PCM-16 transport encoding
// expected by the oracle, returning the payload and its MIME descriptor.
func EncodeOracleAudio(samples []float32, sampleRate int) (payload string, mimeType string) {
	data := EncodePCM16(samples)
	return base64.StdEncoding.EncodeToString(data), fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// DecodeOracleAudio reverses the transport encoding back to raw PCM-16 bytes.
// Malformed input is fatal to the decode call and propagates to the caller.
func DecodeOracleAudio(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode oracle audio payload: %w", err)
	}
	return data, nil
}

// BytesToSamples converts little-endian PCM-16 bytes to float samples in [-1, 1].
func BytesToSamples(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm data length must be even (got %d bytes)", len(pcm))
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}

// SamplesToInt16 converts float samples to int16 with the same saturating
// behavior as EncodePCM16.
func SamplesToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// Duration returns the playback duration in seconds of a sample count at the
// given rate.
func Duration(numSamples, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(numSamples) / float64(sampleRate)
}
