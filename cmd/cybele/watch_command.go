package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"cybele/internal/store"
)

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	watchLabelStyle = lipgloss.NewStyle().Bold(true)
	watchDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	watchErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	watchPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var output string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Full-screen view of every channel's newest summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.readerStore(output)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				if cfg, err := ctx.ensureConfig(); err == nil {
					interval = cfg.Interval()
				}
			}

			program := tea.NewProgram(newWatchModel(st, interval), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := program.Run(); err != nil {
				if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
					return fmt.Errorf("watch requires a real terminal; use `cybele show --follow` instead")
				}
				return fmt.Errorf("run watch view: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Snapshot directory (default from monitor.output_dir)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Refresh interval")
	return cmd
}

type watchTickMsg time.Time

type watchDataMsg struct {
	views []summaryView
	err   error
	at    time.Time
}

type watchModel struct {
	store    *store.Store
	interval time.Duration

	views   []summaryView
	err     error
	updated time.Time
	width   int
}

func newWatchModel(st *store.Store, interval time.Duration) watchModel {
	if interval <= 0 {
		interval = time.Second
	}
	return watchModel{store: st, interval: interval}
}

func (m watchModel) Init() tea.Cmd {
	return m.refreshCmd()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case watchTickMsg:
		return m, m.refreshCmd()
	case watchDataMsg:
		m.err = msg.err
		if msg.err == nil {
			m.views = msg.views
		}
		m.updated = msg.at
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg {
			return watchTickMsg(t)
		})
	}
	return m, nil
}

func (m watchModel) refreshCmd() tea.Cmd {
	st := m.store
	return func() tea.Msg {
		return loadWatchData(st)
	}
}

func loadWatchData(st *store.Store) watchDataMsg {
	msg := watchDataMsg{at: time.Now()}
	channels, err := st.Channels()
	if err != nil {
		msg.err = err
		return msg
	}
	for _, channel := range channels {
		view, err := readSummary(st, channel)
		if err != nil {
			msg.err = err
			return msg
		}
		msg.views = append(msg.views, view)
	}
	return msg
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("cybele " + m.store.Dir()))
	b.WriteString("\n")
	if !m.updated.IsZero() {
		b.WriteString(watchDimStyle.Render("updated " + m.updated.Format("15:04:05") + "  (r refresh, q quit)"))
	}
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(watchErrorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	if len(m.views) == 0 {
		b.WriteString(watchDimStyle.Render("no snapshots yet"))
		b.WriteString("\n")
		return b.String()
	}

	panelWidth := 0
	if m.width > 4 {
		panelWidth = m.width - 4
	}
	for _, view := range m.views {
		b.WriteString(m.renderPanel(view, panelWidth))
		b.WriteString("\n")
	}
	return b.String()
}

func (m watchModel) renderPanel(view summaryView, width int) string {
	var lines []string
	header := watchLabelStyle.Render(channelLabel(view.Channel))
	if !view.Available {
		lines = append(lines, header+" "+watchErrorStyle.Render("no summary available"))
	} else {
		lines = append(lines, header+" "+view.Name+" "+watchDimStyle.Render(formatCount(view.Lines)+" lines"))
		for _, line := range view.Tail {
			lines = append(lines, "  "+line)
		}
	}
	style := watchPanelStyle
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(strings.Join(lines, "\n"))
}
