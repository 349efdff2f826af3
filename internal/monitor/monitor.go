package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"cybele/internal/logging"
	"cybele/internal/snapshot"
	"cybele/internal/store"
)

const (
	// DefaultInterval is the pause between two cycles of a channel.
	DefaultInterval = time.Second
	// DefaultPendingMaxAge is the age after which abandoned temp snapshots are swept.
	DefaultPendingMaxAge = 5 * time.Minute

	// LockFileName is the writer lock held inside the output directory while a
	// monitor runs.
	LockFileName = ".cybele.lock"
)

var (
	// ErrNoSources reports a run without any source file.
	ErrNoSources = errors.New("no source files given")
	// ErrTooManySources reports more sources than there are channel numbers.
	ErrTooManySources = errors.New("too many source files")
	// ErrOutputUnavailable reports an output directory that cannot be created or written.
	ErrOutputUnavailable = errors.New("output directory unavailable")
	// ErrAlreadyRunning reports another monitor holding the output directory's writer lock.
	ErrAlreadyRunning = errors.New("another monitor is writing to the output directory")
)

// Options configures a Monitor. Sources are numbered by position.
type Options struct {
	Sources       []string
	OutputDir     string
	Interval      time.Duration
	TailLines     int
	PendingMaxAge time.Duration
}

// Monitor runs one Writer per source and owns their lifecycle.
type Monitor struct {
	opts    Options
	logger  *slog.Logger
	store   *store.Store
	writers []*Writer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New constructs a Monitor. Nothing touches the filesystem until Start.
func New(opts Options, logger *slog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.TailLines == 0 {
		opts.TailLines = snapshot.DefaultTailLines
	}
	if opts.PendingMaxAge <= 0 {
		opts.PendingMaxAge = DefaultPendingMaxAge
	}
	st := store.New(opts.OutputDir, logger)
	logger = logging.NewComponentLogger(logger, "monitor")

	writers := make([]*Writer, len(opts.Sources))
	for channel, source := range opts.Sources {
		writers[channel] = NewWriter(channel, source, st, opts.Interval, opts.TailLines, logger)
	}

	lockPath := LockPath(opts.OutputDir)
	return &Monitor{
		opts:     opts,
		logger:   logger,
		store:    st,
		writers:  writers,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
}

// Store returns the snapshot store the writers publish to.
func (m *Monitor) Store() *store.Store {
	return m.store
}

// Start checks the preconditions and launches every writer loop. When it
// returns an error no loop is running and the lock is not held.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor already running")
	}

	if len(m.writers) == 0 {
		return ErrNoSources
	}
	if len(m.writers) > store.MaxChannel+1 {
		return fmt.Errorf("%w: %d given, at most %d supported", ErrTooManySources, len(m.writers), store.MaxChannel+1)
	}
	if m.opts.OutputDir == "" {
		return fmt.Errorf("%w: no directory configured", ErrOutputUnavailable)
	}
	if err := m.store.Ensure(); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}
	if err := m.store.CheckAccess(); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}

	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("%w: acquire lock %s: %w", ErrOutputUnavailable, m.lockPath, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is locked", ErrAlreadyRunning, m.lockPath)
	}

	if removed, err := m.store.SweepPending(m.opts.PendingMaxAge); err != nil {
		logging.WarnWithContext(m.logger, "temp snapshot sweep failed", "pending_sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the output directory"),
			logging.String(logging.FieldImpact, "abandoned temp files may remain"),
		)
	} else if removed > 0 {
		m.logger.Info("removed abandoned temp snapshots",
			logging.Int("count", removed),
			logging.String(logging.FieldEventType, "pending_swept"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	for _, w := range m.writers {
		group.Go(func() error {
			return w.Run(groupCtx)
		})
	}
	m.cancel = cancel
	m.group = group
	m.running = true

	m.logger.Info("monitor started",
		logging.Int("channels", len(m.writers)),
		logging.String("output_dir", m.opts.OutputDir),
		logging.Duration("interval", m.opts.Interval),
		logging.String(logging.FieldEventType, "monitor_started"),
	)
	return nil
}

// Stop cancels every writer loop, waits for them to return, and releases the
// writer lock. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	group := m.group
	m.running = false
	m.cancel = nil
	m.group = nil
	m.mu.Unlock()

	cancel()
	if err := group.Wait(); err != nil {
		m.logger.Warn("writer loop ended with error", logging.Error(err))
	}
	if err := m.lock.Unlock(); err != nil {
		logging.WarnWithContext(m.logger, "failed to release writer lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+m.lockPath+" if no monitor is running"),
		)
	}
	m.logger.Info("monitor stopped", logging.String(logging.FieldEventType, "monitor_stopped"))
}

// Run starts the monitor, blocks until ctx is cancelled, and stops it.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.Stop()
	return nil
}

// Running reports whether the writer loops are active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Status returns the state of every channel in channel order.
func (m *Monitor) Status() []ChannelStatus {
	statuses := make([]ChannelStatus, len(m.writers))
	for i, w := range m.writers {
		statuses[i] = w.Status()
	}
	return statuses
}

// LockPath returns the writer lock file of an output directory.
func LockPath(outputDir string) string {
	return filepath.Join(outputDir, LockFileName)
}
