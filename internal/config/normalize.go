package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeMonitor(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizeMonitor() error {
	c.Monitor.OutputDir = strings.TrimSpace(c.Monitor.OutputDir)
	if c.Monitor.OutputDir == "" || c.Monitor.OutputDir == defaultOutputDir {
		if value, ok := os.LookupEnv(OutputDirEnv); ok && strings.TrimSpace(value) != "" {
			c.Monitor.OutputDir = strings.TrimSpace(value)
		}
	}
	if c.Monitor.OutputDir == "" {
		c.Monitor.OutputDir = defaultOutputDir
	}
	var err error
	if c.Monitor.OutputDir, err = expandPath(c.Monitor.OutputDir); err != nil {
		return fmt.Errorf("monitor.output_dir: %w", err)
	}

	sources := make([]string, 0, len(c.Monitor.Sources))
	for i, source := range c.Monitor.Sources {
		source = strings.TrimSpace(source)
		if source == "" {
			continue
		}
		expanded, err := expandPath(source)
		if err != nil {
			return fmt.Errorf("monitor.sources[%d]: %w", i, err)
		}
		sources = append(sources, expanded)
	}
	c.Monitor.Sources = sources

	if c.Monitor.IntervalMillis == 0 {
		c.Monitor.IntervalMillis = defaultIntervalMillis
	}
	if c.Monitor.TailLines == 0 {
		c.Monitor.TailLines = defaultTailLines
	}
	if c.Monitor.TempMaxAgeSeconds == 0 {
		c.Monitor.TempMaxAgeSeconds = defaultTempMaxAgeSeconds
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
