// Package device binds the pipeline to real audio hardware: portaudio
// capture and playback streams and MP3 decoding for sound-effect assets.
package device
