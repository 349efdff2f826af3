package testsupport

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cybele/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The snapshot directory is <base>/out and cycles run every 20ms.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Monitor.OutputDir = filepath.Join(base, "out")
	cfgVal.Monitor.IntervalMillis = 20
	cfgVal.Logging.Dir = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSources creates one log file per line set under the base directory
// and lists them as monitor sources in order.
func WithSources(contents ...[]string) ConfigOption {
	return func(b *configBuilder) {
		for i, lines := range contents {
			path := filepath.Join(b.baseDir, "src", fmt.Sprintf("source-%02d.log", i))
			WriteLog(b.t, path, lines...)
			b.cfg.Monitor.Sources = append(b.cfg.Monitor.Sources, path)
		}
	}
}

// WithInterval overrides the cycle interval.
func WithInterval(d time.Duration) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Monitor.IntervalMillis = int(d / time.Millisecond)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Monitor.OutputDir)
}
