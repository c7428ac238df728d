package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Target   string // optional - filter to one qualified identifier
}

// TraceEntry is one line of a session timeline.
type TraceEntry struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"` // "event" or "delta"
	Target string `json:"target"`
	Value  any    `json:"value"`
	Error  string `json:"error,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Events  int      `json:"events"`
	Deltas  int      `json:"deltas"`
	Targets []string `json:"targets"`
	Closed  bool     `json:"closed"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  ir.SessionRecord `json:"session"`
	Timeline []TraceEntry     `json:"timeline"`
	Stats    TraceStats       `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journaled timeline of a session",
		Long: `Show what a session consumed and rendered, in seq order.

Each event is listed with the deltas its recompute pass produced. The
deltas at the session's opening seq are the first render. --target keeps
only entries for one qualified identifier (an input like dataset.choice
or a render target like view.summary).

Examples:
  weave trace --db ./weave.db --session 0190...
  weave trace --db ./weave.db --session 0190... --target view.summary
  weave trace --db ./weave.db --session 0190... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session token to trace (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.Target, "target", "", "filter to one qualified identifier")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openJournal(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	log, err := st.ReadSessionLog(ctx, opts.Session)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return f.Fail(ExitCommandError, ErrCodeNoSession, fmt.Sprintf("session not found: %s", opts.Session), nil)
		}
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read session", err)
	}
	if opts.Target != "" {
		deltas, err := st.ReadTargetDeltas(ctx, opts.Session, opts.Target)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to read deltas", err)
		}
		log.Deltas = deltas
		log.Events = filterEvents(log.Events, opts.Target)
	}

	result := buildTrace(log)
	if f.JSON() {
		return f.Success(result)
	}
	outputTraceText(f, result)
	return nil
}

// buildTrace merges events and deltas into one timeline. Within a seq the
// event comes before the deltas it caused.
func buildTrace(log ir.SessionLog) TraceResult {
	timeline := make([]TraceEntry, 0, len(log.Events)+len(log.Deltas))
	targets := map[string]bool{}

	i, j := 0, 0
	for i < len(log.Events) || j < len(log.Deltas) {
		if i < len(log.Events) && (j >= len(log.Deltas) || log.Events[i].Seq <= log.Deltas[j].Seq) {
			ev := log.Events[i]
			timeline = append(timeline, TraceEntry{Seq: ev.Seq, Type: "event", Target: ev.Target, Value: ir.ToGo(ev.Value)})
			i++
			continue
		}
		d := log.Deltas[j]
		timeline = append(timeline, TraceEntry{Seq: d.Seq, Type: "delta", Target: d.Target, Value: ir.ToGo(d.Value), Error: d.Error})
		targets[d.Target] = true
		j++
	}

	names := make([]string, 0, len(targets))
	for t := range targets {
		names = append(names, t)
	}
	sort.Strings(names)

	return TraceResult{
		Session:  log.Session,
		Timeline: timeline,
		Stats: TraceStats{
			Events:  len(log.Events),
			Deltas:  len(log.Deltas),
			Targets: names,
			Closed:  log.Session.Closed,
		},
	}
}

func filterEvents(events []ir.Event, target string) []ir.Event {
	out := make([]ir.Event, 0, len(events))
	for _, ev := range events {
		if ev.Target == target {
			out = append(out, ev)
		}
	}
	return out
}

// outputTraceText outputs the trace as text.
func outputTraceText(f *OutputFormatter, result TraceResult) {
	w := f.Writer
	rec := result.Session

	fmt.Fprintf(w, "Session: %s\n", rec.ID)
	fmt.Fprintf(w, "App: %s@%s\n", rec.App, shortHash(rec.AppHash))
	if rec.Closed {
		fmt.Fprintf(w, "Seq: %d-%d (closed)\n", rec.OpenedSeq, rec.ClosedSeq)
	} else {
		fmt.Fprintf(w, "Seq: %d- (open)\n", rec.OpenedSeq)
	}
	if f.Verbose {
		fmt.Fprintf(w, "Tree hash: %s\n", rec.TreeHash)
	}
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No events recorded.")
		return
	}

	fmt.Fprintln(w, "Timeline:")
	for _, e := range result.Timeline {
		value := formatValue(e.Value)
		switch {
		case e.Type == "event":
			fmt.Fprintf(w, "  [%d] ← %s = %s\n", e.Seq, e.Target, value)
		case e.Error != "":
			fmt.Fprintf(w, "  [%d] → %s ! %s\n", e.Seq, e.Target, e.Error)
		default:
			fmt.Fprintf(w, "  [%d] → %s = %s\n", e.Seq, e.Target, value)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d event(s), %d delta(s) across %d target(s)\n",
		result.Stats.Events, result.Stats.Deltas, len(result.Stats.Targets))
}

// formatValue renders a timeline value compactly.
func formatValue(v any) string {
	iv, err := ir.FromGo(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return ir.Format(iv)
}
