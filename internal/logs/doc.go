// Package logs reads the source log files the monitor summarizes.
//
// Summarize streams a file from its first byte with bounded memory, keeping
// only a ring of the most recent lines, so multi-gigabyte logs cost one
// sequential read per cycle.
package logs
