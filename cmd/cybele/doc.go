// Package main hosts the cybele CLI entrypoint and command graph.
//
// `cybele run` is the single writer: it summarizes each source log file into
// a rotating snapshot until interrupted. The remaining commands are readers
// that work directly on the snapshot directory, so they need no connection to
// a running monitor and may run as any number of concurrent processes.
package main
