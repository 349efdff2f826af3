package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"cybele/internal/logging"
	"cybele/internal/snapshot"
)

const (
	// MaxChannel is the highest channel number that fits the two-digit suffix.
	MaxChannel = 99

	snapshotExt   = ".dat"
	pendingPrefix = ".pending-"
	pendingSuffix = ".tmp"
	fileMode      = 0o644
	dirMode       = 0o755
)

// ErrInvalidChannel reports a channel number outside 0..MaxChannel.
var ErrInvalidChannel = errors.New("invalid channel")

// Store is a handle on one snapshot directory.
type Store struct {
	dir    string
	logger *slog.Logger

	mu        sync.Mutex
	lastStamp int64
}

// Latest is the newest readable snapshot of a channel together with the
// history it was chosen from.
type Latest struct {
	Summary snapshot.Summary
	Path    string
	// Index is the position of Path in History.
	Index   int
	History []string
}

// New returns a Store rooted at dir. The directory is not touched until
// Ensure or Publish is called.
func New(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "store"),
	}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.dir
}

// Ensure creates the snapshot directory if needed and fails when the path
// exists but is not a directory.
func (s *Store) Ensure() error {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("create snapshot directory %q: %w", s.dir, err)
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat snapshot directory %q: %w", s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("snapshot directory %q is not a directory", s.dir)
	}
	return nil
}

// CheckAccess verifies that the current user can list, create and remove
// files in the snapshot directory.
func (s *Store) CheckAccess() error {
	if err := unix.Access(s.dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("snapshot directory %q is not writable: %w", s.dir, err)
	}
	return nil
}

// Publish writes summary as a new snapshot of channel and returns its path.
// The file becomes visible under its final name only once fully written.
func (s *Store) Publish(channel int, summary snapshot.Summary) (string, error) {
	if err := validateChannel(channel); err != nil {
		return "", err
	}
	data := snapshot.Encode(summary)

	tmp, err := os.CreateTemp(s.dir, pendingPrefix+"*"+pendingSuffix)
	if err != nil {
		return "", fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close temp snapshot: %w", err)
	}

	final := filepath.Join(s.dir, s.nextToken()+"-"+channelSuffix(channel))
	if err := os.Rename(tmpPath, final); err != nil {
		cleanup()
		return "", fmt.Errorf("finalize snapshot: %w", err)
	}
	s.syncDir()

	s.logger.Debug("snapshot published",
		logging.Int(logging.FieldChannel, channel),
		logging.String(logging.FieldSnapshotPath, final),
		logging.Int("lines", summary.Lines),
		logging.String(logging.FieldEventType, "snapshot_published"),
	)
	return final, nil
}

// nextToken returns a name prefix that is unique and sorts after every token
// this Store produced before, even when the clock stalls or steps back.
func (s *Store) nextToken() string {
	s.mu.Lock()
	stamp := time.Now().UnixNano()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp
	s.mu.Unlock()
	return fmt.Sprintf("%019d.%s", stamp, uuid.NewString())
}

// syncDir flushes the rename to the directory entry; failure only weakens
// durability across a power loss.
func (s *Store) syncDir() {
	dir, err := os.Open(s.dir)
	if err != nil {
		return
	}
	_ = dir.Sync()
	_ = dir.Close()
}

type historyEntry struct {
	path    string
	name    string
	modTime time.Time
}

// History lists the snapshot files of channel, newest first. Files with the
// same modification time are ordered by token, newest first. A missing
// directory yields an empty history.
func (s *Store) History(channel int) ([]string, error) {
	if err := validateChannel(channel); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshot directory: %w", err)
	}

	suffix := "-" + channelSuffix(channel)
	history := make([]historyEntry, 0, 4)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, suffix) || len(name) == len(suffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Purged by another reader since the listing.
			continue
		}
		history = append(history, historyEntry{
			path:    filepath.Join(s.dir, name),
			name:    name,
			modTime: info.ModTime(),
		})
	}

	sort.SliceStable(history, func(i, j int) bool {
		if !history[i].modTime.Equal(history[j].modTime) {
			return history[i].modTime.After(history[j].modTime)
		}
		return history[i].name > history[j].name
	})

	paths := make([]string, len(history))
	for i, entry := range history {
		paths[i] = entry.path
	}
	return paths, nil
}

// Latest decodes the newest readable snapshot of channel. Candidates that
// disappear, cannot be opened or fail to decode are skipped; ok is false when
// no candidate could be read. Other I/O failures are returned.
func (s *Store) Latest(channel int) (Latest, bool, error) {
	history, err := s.History(channel)
	if err != nil {
		return Latest{}, false, err
	}
	for i, path := range history {
		data, err := os.ReadFile(path)
		if err == nil {
			var summary snapshot.Summary
			summary, err = snapshot.Decode(data)
			if err == nil {
				return Latest{Summary: summary, Path: path, Index: i, History: history}, true, nil
			}
		}
		if !IsTransient(err) {
			return Latest{}, false, fmt.Errorf("read snapshot %s: %w", path, err)
		}
		s.logger.Debug("skipping unreadable snapshot",
			logging.Int(logging.FieldChannel, channel),
			logging.String(logging.FieldSnapshotPath, path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "snapshot_skipped"),
		)
	}
	return Latest{}, false, nil
}

// ReadLatest returns the newest readable Summary of channel.
func (s *Store) ReadLatest(channel int) (snapshot.Summary, bool, error) {
	latest, ok, err := s.Latest(channel)
	if err != nil || !ok {
		return snapshot.Summary{}, false, err
	}
	return latest.Summary, true, nil
}

// Purge removes every history entry older than history[keepIndex] and returns
// how many files this call removed. Removal failures are logged and ignored;
// the next purge retries them.
func (s *Store) Purge(history []string, keepIndex int) int {
	if keepIndex < 0 || keepIndex >= len(history) {
		return 0
	}
	removed := 0
	for _, path := range history[keepIndex+1:] {
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("snapshot purge failed",
					logging.String(logging.FieldSnapshotPath, path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "snapshot_purge_failed"),
				)
			}
			continue
		}
		removed++
	}
	return removed
}

// GetSummary returns the newest readable Summary of channel and removes the
// snapshots older than it.
func (s *Store) GetSummary(channel int) (snapshot.Summary, bool, error) {
	latest, ok, err := s.Latest(channel)
	if err != nil || !ok {
		return snapshot.Summary{}, false, err
	}
	s.Purge(latest.History, latest.Index)
	return latest.Summary, true, nil
}

// Channels returns the channel numbers that have at least one snapshot file,
// in ascending order.
func (s *Store) Channels() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshot directory: %w", err)
	}
	seen := make(map[int]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if channel, ok := ChannelFromName(entry.Name()); ok {
			seen[channel] = struct{}{}
		}
	}
	channels := make([]int, 0, len(seen))
	for channel := range seen {
		channels = append(channels, channel)
	}
	sort.Ints(channels)
	return channels, nil
}

// SweepPending removes temporary snapshot files older than maxAge. They are
// left behind only when a writer dies between creating and renaming them.
func (s *Store) SweepPending(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list snapshot directory: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, pendingPrefix) || !strings.HasSuffix(name, pendingSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logging.WarnWithContext(s.logger, "stale temp snapshot not removed", "pending_sweep_failed",
					logging.String(logging.FieldSnapshotPath, path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check ownership of the output directory"),
					logging.String(logging.FieldImpact, "temp file remains; snapshots are unaffected"),
				)
			}
			continue
		}
		removed++
	}
	return removed, nil
}

// IsTransient reports whether err is one of the conditions readers expect
// while a writer and other readers work on the same directory: the file was
// purged, cannot be opened, or does not hold a complete snapshot.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, snapshot.ErrMalformed),
		errors.Is(err, unix.EISDIR),
		errors.Is(err, unix.ENOTDIR),
		errors.Is(err, unix.ESTALE):
		return true
	}
	return false
}

// ChannelFromName extracts the channel of a snapshot file name of the form
// <token>-<NN>.dat.
func ChannelFromName(name string) (int, bool) {
	const tailLen = len("-00" + snapshotExt)
	if len(name) <= tailLen || !strings.HasSuffix(name, snapshotExt) {
		return 0, false
	}
	tail := name[len(name)-tailLen:]
	if tail[0] != '-' || !isDigit(tail[1]) || !isDigit(tail[2]) {
		return 0, false
	}
	channel, err := strconv.Atoi(tail[1:3])
	if err != nil {
		return 0, false
	}
	return channel, true
}

func channelSuffix(channel int) string {
	return fmt.Sprintf("%02d%s", channel, snapshotExt)
}

func validateChannel(channel int) error {
	if channel < 0 || channel > MaxChannel {
		return fmt.Errorf("%w: %d (want 0-%d)", ErrInvalidChannel, channel, MaxChannel)
	}
	return nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
