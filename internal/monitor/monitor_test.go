package monitor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cybele/internal/config"
	"cybele/internal/logging"
	"cybele/internal/monitor"
	"cybele/internal/snapshot"
	"cybele/internal/store"
	"cybele/internal/testsupport"
)

func optionsFor(cfg *config.Config) monitor.Options {
	return monitor.Options{
		Sources:       cfg.Monitor.Sources,
		OutputDir:     cfg.Monitor.OutputDir,
		Interval:      cfg.Interval(),
		TailLines:     cfg.Monitor.TailLines,
		PendingMaxAge: cfg.TempMaxAge(),
	}
}

func startMonitor(t *testing.T, opts monitor.Options) *monitor.Monitor {
	t.Helper()
	m := monitor.New(opts, logging.NewNop())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

func snapshotCount(t *testing.T, dir string, channel int) int {
	t.Helper()
	history, err := store.New(dir, nil).History(channel)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	return len(history)
}

func TestStartWithoutSourcesStartsNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := monitor.New(optionsFor(cfg), nil)

	err := m.Start(context.Background())
	if !errors.Is(err, monitor.ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
	if m.Running() {
		t.Fatal("monitor should not be running")
	}
	if _, err := os.Stat(cfg.Monitor.OutputDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output directory should not be created, stat err=%v", err)
	}
}

func TestStartRejectsUnusableOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources([]string{"a"}))
	blocker := filepath.Join(testsupport.BaseDir(cfg), "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := map[string]string{
		"path is a file":        blocker,
		"parent is a file":      filepath.Join(blocker, "out"),
		"no directory provided": "",
	}
	for name, dir := range tests {
		t.Run(name, func(t *testing.T) {
			opts := optionsFor(cfg)
			opts.OutputDir = dir
			err := monitor.New(opts, nil).Start(context.Background())
			if !errors.Is(err, monitor.ErrOutputUnavailable) {
				t.Fatalf("expected ErrOutputUnavailable, got %v", err)
			}
		})
	}
}

func TestStartRejectsTooManySources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	opts := optionsFor(cfg)
	opts.Sources = make([]string, store.MaxChannel+2)
	if err := monitor.New(opts, nil).Start(context.Background()); !errors.Is(err, monitor.ErrTooManySources) {
		t.Fatalf("expected ErrTooManySources, got %v", err)
	}
}

func TestSecondWriterIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources([]string{"a"}))
	first := startMonitor(t, optionsFor(cfg))

	second := monitor.New(optionsFor(cfg), nil)
	if err := second.Start(context.Background()); !errors.Is(err, monitor.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start after first monitor stopped: %v", err)
	}
	second.Stop()
}

func TestMonitorPublishesEveryChannel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources(
		[]string{"one", "two", "three", "four", "five"},
		[]string{"only"},
	))
	m := startMonitor(t, optionsFor(cfg))
	st := m.Store()

	testsupport.WaitFor(t, 5*time.Second, func() bool {
		channels, err := st.Channels()
		return err == nil && len(channels) == 2
	})

	got, ok, err := st.ReadLatest(0)
	if err != nil || !ok {
		t.Fatalf("ReadLatest(0): ok=%v err=%v", ok, err)
	}
	want := snapshot.Summary{Name: cfg.Monitor.Sources[0], Lines: 5, Tail: []string{"two", "three", "four", "five"}}
	if !got.Equal(want) {
		t.Fatalf("channel 0: got %+v want %+v", got, want)
	}

	testsupport.AppendLog(t, cfg.Monitor.Sources[1], "next")
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		got, ok, err := st.ReadLatest(1)
		return err == nil && ok && got.Lines == 2 && got.Tail[len(got.Tail)-1] == "next"
	})
}

func TestMonitorKeepsSnapshotCountBounded(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithSources([]string{"a"}),
		testsupport.WithInterval(5*time.Millisecond),
	)
	m := startMonitor(t, optionsFor(cfg))

	testsupport.WaitFor(t, 5*time.Second, func() bool {
		return m.Status()[0].Cycles >= 20
	})
	m.Stop()

	if n := snapshotCount(t, cfg.Monitor.OutputDir, 0); n != 1 {
		t.Fatalf("expected one snapshot after stop, got %d", n)
	}
}

func TestMissingSourceDoesNotStopOtherChannels(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources([]string{"present"}))
	missing := filepath.Join(testsupport.BaseDir(cfg), "src", "later.log")
	cfg.Monitor.Sources = append(cfg.Monitor.Sources, missing)
	m := startMonitor(t, optionsFor(cfg))

	testsupport.WaitFor(t, 5*time.Second, func() bool {
		statuses := m.Status()
		return statuses[0].Cycles > 0 && statuses[1].Failures > 1
	})
	status := m.Status()[1]
	if status.LastError == "" || !strings.Contains(status.LastError, "later.log") {
		t.Fatalf("expected last error naming the source, got %q", status.LastError)
	}
	if _, ok, _ := m.Store().ReadLatest(1); ok {
		t.Fatal("missing source should not produce a snapshot")
	}

	testsupport.WriteLog(t, missing, "arrived")
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		got, ok, err := m.Store().ReadLatest(1)
		return err == nil && ok && got.Lines == 1
	})
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		return m.Status()[1].LastError == ""
	})
}

func TestStopInterruptsSleepingLoops(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithSources([]string{"a"}, []string{"b"}),
		testsupport.WithInterval(time.Hour),
	)
	m := monitor.New(optionsFor(cfg), nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		statuses := m.Status()
		return statuses[0].Cycles == 1 && statuses[1].Cycles == 1
	})

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the interval sleep")
	}
	if m.Running() {
		t.Fatal("monitor still reports running")
	}
	m.Stop()
}

func TestRunReturnsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources([]string{"a"}))
	m := monitor.New(optionsFor(cfg), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	testsupport.WaitFor(t, 5*time.Second, func() bool {
		return m.Status()[0].Cycles > 0
	})
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStartSweepsAbandonedTempFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources([]string{"a"}))
	if err := os.MkdirAll(cfg.Monitor.OutputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stale := filepath.Join(cfg.Monitor.OutputDir, ".pending-crashed.tmp")
	if err := os.WriteFile(stale, []byte("MIME-Version: 1.0\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	startMonitor(t, optionsFor(cfg))

	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("abandoned temp file not swept: %v", err)
	}
}
