// Package snapshot defines the Summary record published for each monitored log
// channel and the text codec used to persist it.
//
// The encoding is a MIME-style header block (Name, Lines, plus Tail-Lines and
// Content-Length framing) followed by a blank line and the tail lines joined by
// newlines. The framing headers let Decode reject truncated or half-written
// files instead of returning a shortened tail, which is what allows readers to
// skip incomplete snapshots without any locking.
package snapshot
