package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cybele/internal/monitor"
)

// Exit statuses: 2 for configuration errors that leave nothing to monitor,
// 1 for every other failure.
const (
	exitFailure     = 1
	exitConfigError = 2
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, monitor.ErrNoSources), errors.Is(err, monitor.ErrTooManySources):
		return exitConfigError
	default:
		return exitFailure
	}
}
