// Package audio provides PCM codec utilities for the oracle wire format,
// WAV encoding for the recording artifact, and fixed-size framing of
// captured audio for the live relay.
package audio
