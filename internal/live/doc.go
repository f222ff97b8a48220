// Package live implements the duplex dubbing path: continuous capture of the
// source audio, fire-and-forget relay to the oracle session and handling of
// the oracle's audio, transcript and control messages.
package live
