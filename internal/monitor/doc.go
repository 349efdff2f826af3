// Package monitor runs one writer loop per source log file.
//
// Each Writer summarizes its source, publishes the Summary as a new snapshot
// of its channel, immediately reads the channel back and purges the older
// snapshots, then sleeps for the configured interval. A failed cycle is
// logged and retried on the next one.
//
// The Monitor owns the writers. Start checks its preconditions before any
// loop runs: at least one source, a usable output directory, and the
// directory's writer lock. Stop cancels every loop, waits for them, and
// releases the lock.
package monitor
