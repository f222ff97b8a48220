// Package recorder captures the session's mixed dubbed audio by tapping the
// scheduler output and finalizes it into a WAV artifact.
package recorder
