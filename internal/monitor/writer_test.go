package monitor_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cybele/internal/logs"
	"cybele/internal/monitor"
	"cybele/internal/store"
	"cybele/internal/testsupport"
)

func TestWriterCyclePublishesAndPurges(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "app.log")
	testsupport.WriteLog(t, source, "a", "b")

	st := store.New(filepath.Join(dir, "out"), nil)
	if err := st.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	w := monitor.NewWriter(4, source, st, time.Second, 4, nil)

	for i := 0; i < 3; i++ {
		if err := w.Cycle(context.Background()); err != nil {
			t.Fatalf("Cycle %d: %v", i, err)
		}
	}
	history, err := st.History(4)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected a single snapshot after read-back purge, got %v", history)
	}

	status := w.Status()
	if status.Channel != 4 || status.Cycles != 3 || status.Failures != 0 || status.Lines != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LastPath != history[0] {
		t.Fatalf("status path %q, history %q", status.LastPath, history[0])
	}
	if status.LastPublished.IsZero() {
		t.Fatal("expected publish time")
	}
}

func TestWriterCycleReportsSourceReadError(t *testing.T) {
	dir := t.TempDir()
	st := store.New(dir, nil)
	w := monitor.NewWriter(0, filepath.Join(dir, "missing.log"), st, time.Second, 4, nil)

	err := w.Cycle(context.Background())
	var readErr *logs.SourceReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected SourceReadError, got %v", err)
	}
	status := w.Status()
	if status.Failures != 1 || status.LastError == "" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if channels, _ := st.Channels(); len(channels) != 0 {
		t.Fatalf("failed cycle published a snapshot: %v", channels)
	}
}
