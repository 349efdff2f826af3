package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cybele/internal/logging"
	"cybele/internal/logs"
	"cybele/internal/store"
)

// ChannelStatus is a point-in-time view of one writer loop.
type ChannelStatus struct {
	Channel       int       `json:"channel"`
	Source        string    `json:"source"`
	Cycles        int       `json:"cycles"`
	Failures      int       `json:"failures"`
	Lines         int       `json:"lines"`
	LastPath      string    `json:"last_path,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	LastPublished time.Time `json:"last_published,omitzero"`
}

// Writer is the loop that keeps one channel's snapshot current.
type Writer struct {
	channel   int
	source    string
	store     *store.Store
	interval  time.Duration
	tailLines int
	logger    *slog.Logger

	mu         sync.RWMutex
	status     ChannelStatus
	failingRun int
}

// NewWriter builds the loop for channel, summarizing source into st.
func NewWriter(channel int, source string, st *store.Store, interval time.Duration, tailLines int, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Writer{
		channel:   channel,
		source:    source,
		store:     st,
		interval:  interval,
		tailLines: tailLines,
		logger: logger.With(
			logging.Int(logging.FieldChannel, channel),
			logging.String(logging.FieldSource, source),
		),
		status: ChannelStatus{Channel: channel, Source: source},
	}
}

// Run repeats Cycle until ctx is cancelled. Cycle failures never end the
// loop; the only suspension point is the pause between cycles.
func (w *Writer) Run(ctx context.Context) error {
	ctx = logging.WithChannel(ctx, w.channel)
	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = w.Cycle(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.interval):
		}
	}
}

// Cycle summarizes the source once, publishes the result, and reads the
// channel back so snapshots older than the newest readable one are removed.
func (w *Writer) Cycle(ctx context.Context) error {
	summary, err := logs.Summarize(w.source, w.tailLines)
	if err != nil {
		w.recordFailure(err, "source_read_failed", "check that the source file exists and is readable")
		return err
	}

	path, err := w.store.Publish(w.channel, summary)
	if err != nil {
		err = fmt.Errorf("publish snapshot: %w", err)
		w.recordFailure(err, "snapshot_publish_failed", "check free space and permissions of the output directory")
		return err
	}

	latest, ok, err := w.store.Latest(w.channel)
	if err != nil {
		err = fmt.Errorf("read back snapshot: %w", err)
		w.recordFailure(err, "snapshot_read_failed", "check the output directory for I/O errors")
		return err
	}
	purged := 0
	if ok {
		purged = w.store.Purge(latest.History, latest.Index)
	}

	w.recordSuccess(path, summary.Lines)
	if w.logger.Enabled(ctx, slog.LevelDebug) {
		w.logger.Debug("cycle complete",
			logging.String(logging.FieldSnapshotPath, path),
			logging.Int("lines", summary.Lines),
			logging.Int("purged", purged),
			logging.String(logging.FieldEventType, "cycle_complete"),
		)
	}
	return nil
}

// Status returns a copy of the loop's counters.
func (w *Writer) Status() ChannelStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

func (w *Writer) recordSuccess(path string, lines int) {
	w.mu.Lock()
	recovered := w.failingRun > 0
	w.failingRun = 0
	w.status.Cycles++
	w.status.Lines = lines
	w.status.LastPath = path
	w.status.LastError = ""
	w.status.LastPublished = time.Now()
	w.mu.Unlock()

	if recovered {
		w.logger.Info("channel recovered",
			logging.String(logging.FieldEventType, "channel_recovered"),
		)
	}
}

// recordFailure logs the first failure of a run at warn level and repeats
// at debug, so a missing source does not flood the log every interval.
func (w *Writer) recordFailure(err error, eventType, hint string) {
	w.mu.Lock()
	w.failingRun++
	first := w.failingRun == 1
	w.status.Cycles++
	w.status.Failures++
	w.status.LastError = err.Error()
	w.mu.Unlock()

	if first {
		logging.WarnWithContext(w.logger, "cycle failed; retrying next interval", eventType,
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hint),
			logging.String(logging.FieldImpact, "channel snapshot is stale until the next successful cycle"),
		)
		return
	}
	w.logger.Debug("cycle failed again",
		logging.Error(err),
		logging.String(logging.FieldEventType, eventType),
	)
}
