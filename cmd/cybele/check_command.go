package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cybele/internal/config"
	"cybele/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var output string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check [sources...]",
		Short: "Check the output directory, sources, and writer lock before a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			outputDir, err := ctx.outputDir(output)
			if err != nil {
				return err
			}
			sources := make([]string, 0, len(args))
			for _, arg := range args {
				source, err := config.ExpandPath(arg)
				if err != nil {
					return fmt.Errorf("resolve source %q: %w", arg, err)
				}
				sources = append(sources, source)
			}

			checked := *cfg
			checked.Monitor.OutputDir = outputDir
			results := preflight.RunAll(&checked, sources)

			if asJSON {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderCheckTable(results))
			}
			if failed := preflight.Failed(results); failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Snapshot directory (default from monitor.output_dir)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func renderCheckTable(results []preflight.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if !r.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{r.Name, status, r.Detail})
	}
	return renderTable(
		[]string{"Check", "Status", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	)
}
