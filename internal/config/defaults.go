package config

const (
	defaultConfigPath        = "~/.config/cybele/config.toml"
	projectConfigName        = "cybele.toml"
	defaultOutputDir         = "~/.cybele"
	defaultIntervalMillis    = 1000
	defaultTailLines         = 4
	defaultTempMaxAgeSeconds = 300
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30

	// OutputDirEnv overrides monitor.output_dir when the file leaves it unset.
	OutputDirEnv = "CYBELE_OUTPUT_DIR"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Monitor: Monitor{
			OutputDir:         defaultOutputDir,
			IntervalMillis:    defaultIntervalMillis,
			TailLines:         defaultTailLines,
			TempMaxAgeSeconds: defaultTempMaxAgeSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
