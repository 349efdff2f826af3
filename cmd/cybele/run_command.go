package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cybele/internal/config"
	"cybele/internal/logging"
	"cybele/internal/monitor"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var output string
	var interval time.Duration
	var tailLines int

	cmd := &cobra.Command{
		Use:   "run [sources...]",
		Short: "Summarize source log files into rotating snapshots until interrupted",
		Long: "Summarize each source log file into its own channel of snapshots.\n" +
			"Channels are numbered by the position of the source, starting at 0.\n" +
			"Sources given here replace monitor.sources from the configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			sources := cfg.Monitor.Sources
			if len(args) > 0 {
				sources = make([]string, 0, len(args))
				for _, arg := range args {
					source, err := config.ExpandPath(arg)
					if err != nil {
						return fmt.Errorf("resolve source %q: %w", arg, err)
					}
					sources = append(sources, source)
				}
			}
			if len(sources) == 0 {
				return fmt.Errorf("%w: pass source files as arguments or set monitor.sources", monitor.ErrNoSources)
			}

			outputDir, err := ctx.outputDir(output)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = cfg.Interval()
			}
			if !cmd.Flags().Changed("tail") {
				tailLines = cfg.Monitor.TailLines
			}

			runID := uuid.NewString()
			logger, logPath, err := newRunLogger(cfg, runID)
			if err != nil {
				return err
			}
			if cfg.Logging.Dir != "" {
				logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
					Dir:     cfg.Logging.Dir,
					Pattern: logging.RunLogPattern,
					Exclude: []string{logPath},
				})
			}

			m := monitor.New(monitor.Options{
				Sources:       sources,
				OutputDir:     outputDir,
				Interval:      interval,
				TailLines:     tailLines,
				PendingMaxAge: cfg.TempMaxAge(),
			}, logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return m.Run(runCtx)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Snapshot directory (default from monitor.output_dir)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Pause between two summaries of a source")
	cmd.Flags().IntVar(&tailLines, "tail", 4, "Number of trailing lines kept per summary")
	return cmd
}

// newRunLogger logs to stderr and, when logging.dir is set, to a file
// dedicated to this run.
func newRunLogger(cfg *config.Config, runID string) (*slog.Logger, string, error) {
	logPath := logging.RunLogPath(cfg, runID)
	outputs := []string{"stderr"}
	if logPath != "" {
		outputs = append(outputs, logPath)
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		RunID:       runID,
	})
	if err != nil {
		return nil, "", fmt.Errorf("init logger: %w", err)
	}
	return logger, logPath, nil
}
