// Package oracle defines the speech oracle contract and its client
// implementations: single-shot synthesis, batch translation and language
// detection over HTTP, plus a bidirectional websocket session carrying
// outgoing audio frames and incoming synthesized audio and transcription.
package oracle
