package report

import (
	"fmt"
	"strings"
	"time"

	"certify/internal/runner"
)

// LogOptions control what Log includes.
type LogOptions struct {
	IncludeStdout bool
}

// Log renders the human-readable log of a plan: one header per executed step with
// its masked command line, then its stderr and optionally stdout. Stdin content is
// never part of a result and so never appears here.
func Log(results []runner.Result, opts LogOptions) string {
	var b strings.Builder
	for _, r := range results {
		if !r.Executed() {
			if r.Status == runner.StatusNotRun {
				fmt.Fprintf(&b, "# step %d: %s (not run)\n", r.Step+1, r.Label)
			} else if r.Err != nil {
				fmt.Fprintf(&b, "# step %d: %s (%s: %v)\n", r.Step+1, r.Label, r.Status, r.Err)
			}
			continue
		}

		fmt.Fprintf(&b, "# step %d: %s [%s, exit %d, %s]\n", r.Step+1, r.Label, r.Status, r.ExitCode, r.Duration.Round(time.Millisecond))
		fmt.Fprintf(&b, "$ %s\n", r.CommandLine)
		if opts.IncludeStdout {
			writeBlock(&b, r.Stdout)
		}
		writeBlock(&b, r.Stderr)
		if r.Err != nil {
			fmt.Fprintf(&b, "error: %v\n", r.Err)
		}
	}
	return b.String()
}

func writeBlock(b *strings.Builder, s string) {
	if s == "" {
		return
	}
	b.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}
