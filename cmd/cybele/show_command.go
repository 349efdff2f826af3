package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cybele/internal/snapshot"
	"cybele/internal/store"
)

type summaryView struct {
	Channel   int      `json:"channel"`
	Available bool     `json:"available"`
	Name      string   `json:"name,omitempty"`
	Lines     int      `json:"lines"`
	Tail      []string `json:"tail"`
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var output string
	var asJSON bool
	var follow bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "show CHANNEL",
		Short: "Print the newest summary of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := parseChannel(args[0])
			if err != nil {
				return err
			}
			st, err := ctx.readerStore(output)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				if cfg, err := ctx.ensureConfig(); err == nil {
					interval = cfg.Interval()
				}
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			show := func(view summaryView) error {
				if asJSON {
					return writeJSON(cmd, view)
				}
				writeSummary(out, view, colorize)
				return nil
			}

			view, err := readSummary(st, channel)
			if err != nil {
				return err
			}
			if err := show(view); err != nil {
				return err
			}
			if !follow {
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return followSummary(followCtx, st, channel, interval, view, show)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Snapshot directory (default from monitor.output_dir)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing the summary whenever it changes")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Polling interval for --follow")
	return cmd
}

func parseChannel(arg string) (int, error) {
	channel, err := strconv.Atoi(arg)
	if err != nil || channel < 0 || channel > store.MaxChannel {
		return 0, fmt.Errorf("invalid channel %q: want a number from 0 to %d", arg, store.MaxChannel)
	}
	return channel, nil
}

// readSummary returns the newest summary of channel and purges older
// snapshots, as every reader does.
func readSummary(st *store.Store, channel int) (summaryView, error) {
	summary, ok, err := st.GetSummary(channel)
	if err != nil {
		return summaryView{}, err
	}
	return newSummaryView(channel, summary, ok), nil
}

func newSummaryView(channel int, summary snapshot.Summary, ok bool) summaryView {
	view := summaryView{Channel: channel, Available: ok, Tail: []string{}}
	if ok {
		view.Name = summary.Name
		view.Lines = summary.Lines
		if summary.Tail != nil {
			view.Tail = summary.Tail
		}
	}
	return view
}

func followSummary(ctx context.Context, st *store.Store, channel int, interval time.Duration, last summaryView, show func(summaryView) error) error {
	if interval <= 0 {
		interval = time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		view, err := readSummary(st, channel)
		if err != nil {
			return err
		}
		if sameSummary(view, last) {
			continue
		}
		if err := show(view); err != nil {
			return err
		}
		last = view
	}
}

func sameSummary(a, b summaryView) bool {
	if a.Available != b.Available {
		return false
	}
	return snapshot.Summary{Name: a.Name, Lines: a.Lines, Tail: a.Tail}.
		Equal(snapshot.Summary{Name: b.Name, Lines: b.Lines, Tail: b.Tail})
}

func writeSummary(w io.Writer, view summaryView, colorize bool) {
	if !view.Available {
		fmt.Fprintln(w, warn(fmt.Sprintf("%s: no summary available", channelLabel(view.Channel)), colorize))
		return
	}
	for _, line := range renderSectionHeader(fmt.Sprintf("%s %s", channelLabel(view.Channel), view.Name), colorize) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "%s %s\n", dim("lines:", colorize), formatCount(view.Lines))
	for _, line := range view.Tail {
		fmt.Fprintf(w, "  %s\n", line)
	}
}
