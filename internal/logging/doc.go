// Package logging builds the structured slog loggers used by the monitor and
// the reader commands.
//
// Two handlers are available: a human-oriented console format that folds the
// component and channel into a "monitor ch02:" prefix, and a JSON format for
// machine consumption. A run identifier can be stamped on every record so the
// lines of one monitor process can be grouped after the fact. The package also
// prunes old per-run log files and offers a no-op logger for tests.
package logging
