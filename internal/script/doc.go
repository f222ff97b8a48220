// Package script turns raw script lines into dubbed segments: it parses
// speaker labels, runs the pre-queue translation pass and drains the segment
// queue through the oracle one segment at a time.
package script
