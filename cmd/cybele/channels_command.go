package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cybele/internal/store"
)

type channelView struct {
	Channel   int      `json:"channel"`
	Available bool     `json:"available"`
	Name      string   `json:"name,omitempty"`
	Lines     int      `json:"lines"`
	Tail      []string `json:"tail"`
	Snapshots int      `json:"snapshots"`
}

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	var output string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List the channels that have snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.readerStore(output)
			if err != nil {
				return err
			}
			views, err := collectChannels(st)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintf(out, "No snapshots in %s\n", st.Dir())
				return nil
			}
			fmt.Fprintln(out, renderChannelTable(views))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Snapshot directory (default from monitor.output_dir)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print channels as JSON")
	return cmd
}

// collectChannels reads the newest summary of every channel without purging.
func collectChannels(st *store.Store) ([]channelView, error) {
	channels, err := st.Channels()
	if err != nil {
		return nil, err
	}
	views := make([]channelView, 0, len(channels))
	for _, channel := range channels {
		latest, ok, err := st.Latest(channel)
		if err != nil {
			return nil, fmt.Errorf("read channel %d: %w", channel, err)
		}
		view := channelView{Channel: channel, Tail: []string{}}
		if ok {
			view.Available = true
			view.Name = latest.Summary.Name
			view.Lines = latest.Summary.Lines
			view.Snapshots = len(latest.History)
			if latest.Summary.Tail != nil {
				view.Tail = latest.Summary.Tail
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func renderChannelTable(views []channelView) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		if !v.Available {
			rows = append(rows, []string{channelLabel(v.Channel), "(unreadable)", "", "", ""})
			continue
		}
		last := ""
		if len(v.Tail) > 0 {
			last = v.Tail[len(v.Tail)-1]
		}
		rows = append(rows, []string{
			channelLabel(v.Channel),
			v.Name,
			formatCount(v.Lines),
			formatCount(v.Snapshots),
			last,
		})
	}
	return renderTable(
		[]string{"Channel", "Source", "Lines", "Snapshots", "Last line"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}
