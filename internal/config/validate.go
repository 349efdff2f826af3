package config

import (
	"errors"
	"fmt"
)

// MaxChannels bounds the number of sources; channel numbers are two digits
// in snapshot file names.
const MaxChannels = 100

// Validate ensures the configuration is usable. An empty source list is not
// rejected here: the monitor reports it with its own exit status.
func (c *Config) Validate() error {
	if err := c.validateMonitor(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateMonitor() error {
	if c.Monitor.OutputDir == "" {
		return errors.New("monitor.output_dir must be set")
	}
	if len(c.Monitor.Sources) > MaxChannels {
		return fmt.Errorf("monitor.sources lists %d files; at most %d are supported", len(c.Monitor.Sources), MaxChannels)
	}
	if c.Monitor.IntervalMillis < 0 {
		return errors.New("monitor.interval_ms must be positive")
	}
	if c.Monitor.TailLines < 0 {
		return errors.New("monitor.tail_lines must be positive")
	}
	if c.Monitor.TempMaxAgeSeconds < 0 {
		return errors.New("monitor.temp_max_age_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}
