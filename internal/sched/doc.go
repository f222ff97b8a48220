// Package sched implements the playback buffer scheduler. It turns a stream
// of decoded audio buffers arriving asynchronously into continuous, ordered
// playback against a monotonic clock, applying mild rate acceleration when
// the scheduled-ahead depth grows too large.
package sched
