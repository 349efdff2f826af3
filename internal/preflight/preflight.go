package preflight

import (
	"fmt"

	"cybele/internal/config"
	"cybele/internal/store"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every check for a run over sources writing to the
// configured output directory. When sources is empty the configured
// monitor.sources are checked.
func RunAll(cfg *config.Config, sources []string) []Result {
	if cfg == nil {
		return nil
	}
	if len(sources) == 0 {
		sources = cfg.Monitor.Sources
	}

	results := []Result{CheckOutputDir(cfg.Monitor.OutputDir)}
	if len(sources) == 0 {
		results = append(results, Result{Name: "Sources", Detail: "none configured"})
	} else if len(sources) > store.MaxChannel+1 {
		results = append(results, Result{
			Name:   "Sources",
			Detail: fmt.Sprintf("%d given, at most %d supported", len(sources), store.MaxChannel+1),
		})
	}
	for channel, source := range sources {
		results = append(results, CheckSourceFile(fmt.Sprintf("Source ch%02d", channel), source))
	}
	results = append(results, CheckWriterLock(cfg.Monitor.OutputDir))
	return results
}

// Failed counts the results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
