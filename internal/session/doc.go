// Package session implements the dubbing lifecycle controller: the
// Off/Connecting/Live state machine that arbitrates start and stop, owns the
// per-session resources and guarantees full teardown on any exit path.
package session
