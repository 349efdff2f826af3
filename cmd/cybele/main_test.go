package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cybele/internal/config"
	"cybele/internal/monitor"
	"cybele/internal/snapshot"
	"cybele/internal/store"
	"cybele/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	logDir     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv(config.OutputDirEnv, "")

	logDir := filepath.Join(base, "logs")
	configPath := filepath.Join(base, "cybele.toml")
	content := fmt.Sprintf("[monitor]\noutput_dir = %q\ninterval_ms = 20\n\n[logging]\ndir = %q\nlevel = \"debug\"\n",
		cfg.Monitor.OutputDir, logDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base, logDir: logDir}
}

func (env *cliTestEnv) store(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(env.cfg.Monitor.OutputDir, nil)
	if err := st.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	return st
}

type outputBuffer interface {
	io.Writer
	String() string
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWriter(context.Background(), args, configPath, &bytes.Buffer{})
}

func runCLIWriter(ctx context.Context, args []string, configPath string, stdout outputBuffer) (string, string, error) {
	cmd := newRootCommand()
	var stderr bytes.Buffer
	cmd.SetOut(stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// syncBuffer lets a test read output while a command is still writing it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: 0},
		{name: "cancelled", err: context.Canceled, want: 0},
		{name: "no sources", err: fmt.Errorf("run: %w", monitor.ErrNoSources), want: 2},
		{name: "too many sources", err: monitor.ErrTooManySources, want: 2},
		{name: "output unavailable", err: fmt.Errorf("%w: boom", monitor.ErrOutputUnavailable), want: 1},
		{name: "already running", err: monitor.ErrAlreadyRunning, want: 1},
		{name: "other", err: errors.New("bad flag"), want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestRunWithoutSourcesIsConfigError(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if !errors.Is(err, monitor.ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
	if exitCode(err) != 2 {
		t.Fatalf("expected exit code 2, got %d", exitCode(err))
	}
	if _, err := os.Stat(env.cfg.Monitor.OutputDir); !os.IsNotExist(err) {
		t.Fatalf("output directory created without sources: %v", err)
	}
}

func TestRunWithUnusableOutputFails(t *testing.T) {
	env := setupCLITestEnv(t)
	source := filepath.Join(env.baseDir, "app.log")
	testsupport.WriteLog(t, source, "a")
	blocker := filepath.Join(env.baseDir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := runCLI(t, []string{"run", source, "--output", blocker}, env.configPath)
	if !errors.Is(err, monitor.ErrOutputUnavailable) {
		t.Fatalf("expected ErrOutputUnavailable, got %v", err)
	}
	if exitCode(err) != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode(err))
	}
}

func TestRunPublishesUntilCancelled(t *testing.T) {
	env := setupCLITestEnv(t)
	first := filepath.Join(env.baseDir, "first.log")
	second := filepath.Join(env.baseDir, "second.log")
	testsupport.WriteLog(t, first, "a", "b")
	testsupport.WriteLog(t, second, "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, _, err := runCLIWriter(ctx, []string{"run", first, second, "--interval", "10ms"}, env.configPath, &syncBuffer{})
		done <- err
	}()

	st := store.New(env.cfg.Monitor.OutputDir, nil)
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		a, okA, _ := st.ReadLatest(0)
		b, okB, _ := st.ReadLatest(1)
		return okA && okB && a.Lines == 2 && b.Lines == 1
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}

	logs, err := filepath.Glob(filepath.Join(env.logDir, "cybele-*.log"))
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one run log, got %v err=%v", logs, err)
	}
	data, err := os.ReadFile(logs[0])
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	requireContains(t, string(data), "monitor started")
	requireContains(t, string(data), "run_id=")
}

func TestChannelsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	st := env.store(t)
	if _, err := st.Publish(0, snapshot.Summary{Name: "/var/log/a.log", Lines: 1234, Tail: []string{"first", "latest a"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := st.Publish(2, snapshot.Summary{Name: "/var/log/b.log", Lines: 7, Tail: []string{"latest b"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	out, _, err := runCLI(t, []string{"channels"}, env.configPath)
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	for _, want := range []string{"ch00", "ch02", "/var/log/a.log", "1,234", "latest a", "latest b"} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "ch01") {
		t.Fatalf("unexpected channel in output: %q", out)
	}

	out, _, err = runCLI(t, []string{"channels", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("channels --json: %v", err)
	}
	requireContains(t, out, `"channel": 2`)
	requireContains(t, out, `"lines": 1234`)
}

func TestChannelsEmptyDirectory(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"channels"}, env.configPath)
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	requireContains(t, out, "No snapshots in")
}

func TestShowCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	st := env.store(t)
	for i := 1; i <= 3; i++ {
		if _, err := st.Publish(2, snapshot.Summary{Name: "/var/log/x", Lines: 120 * i, Tail: []string{"a", "b", "c", fmt.Sprint(i)}}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"show", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "== ch02 /var/log/x ==")
	requireContains(t, out, "lines: 360")
	requireContains(t, out, "  3\n")

	history, err := st.History(2)
	if err != nil || len(history) != 1 {
		t.Fatalf("show should purge older snapshots, history=%v err=%v", history, err)
	}

	out, _, err = runCLI(t, []string{"show", "2", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	requireContains(t, out, `"available": true`)
	requireContains(t, out, `"name": "/var/log/x"`)
}

func TestShowAbsentChannel(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"show", "3"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "ch03: no summary available")
}

func TestShowRejectsInvalidChannel(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, arg := range []string{"abc", "-1", "100"} {
		if _, _, err := runCLI(t, []string{"show", "--", arg}, env.configPath); err == nil {
			t.Fatalf("expected error for channel %q", arg)
		}
	}
}

func TestShowFollowPrintsChanges(t *testing.T) {
	env := setupCLITestEnv(t)
	st := env.store(t)
	if _, err := st.Publish(0, snapshot.Summary{Name: "src", Lines: 1, Tail: []string{"before"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		_, _, err := runCLIWriter(ctx, []string{"show", "0", "--follow", "--interval", "10ms"}, env.configPath, out)
		done <- err
	}()

	testsupport.WaitFor(t, 5*time.Second, func() bool { return strings.Contains(out.String(), "before") })
	if _, err := st.Publish(0, snapshot.Summary{Name: "src", Lines: 2, Tail: []string{"before", "after"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	testsupport.WaitFor(t, 5*time.Second, func() bool { return strings.Contains(out.String(), "after") })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("show --follow returned %v", err)
	}
	if n := strings.Count(out.String(), "== ch00 src =="); n != 2 {
		t.Fatalf("expected two summaries printed, got %d:\n%s", n, out.String())
	}
}

func TestConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.cfg.Monitor.OutputDir)
	requireContains(t, out, "interval_ms = 20")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config exists without --force")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--force"}, ""); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	source := filepath.Join(env.baseDir, "app.log")
	testsupport.WriteLog(t, source, "a")

	out, _, err := runCLI(t, []string{"check", source}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Output directory")
	requireContains(t, out, "will be created")
	requireContains(t, out, "Source ch00")

	out, _, err = runCLI(t, []string{"check", filepath.Join(env.baseDir, "missing.log")}, env.configPath)
	if err == nil {
		t.Fatal("expected failure for missing source")
	}
	requireContains(t, out, "FAIL")
	if exitCode(err) != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode(err))
	}
}
