package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/catalog"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	App      string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session       string            `json:"session"`
	Events        int               `json:"events"`
	Deltas        int               `json:"deltas"`
	Rejected      int               `json:"rejected"`
	Closed        bool              `json:"closed"`
	Deterministic bool              `json:"deterministic"`
	Skipped       string            `json:"skipped,omitempty"`
	Mismatches    []engine.Mismatch `json:"mismatches,omitempty"`
}

// ReplayReport holds the overall replay result.
type ReplayReport struct {
	App              string                `json:"app"`
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay journaled sessions and verify determinism",
		Long: `Replay journaled sessions and verify they render deterministically.

Each session of the application is rebuilt from the application
definition, its journaled events are dispatched again in seq order, and
the produced deltas are compared with the journaled ones in canonical
form. Sessions journaled under a different version of the application
are skipped.

Exit codes:
  0 - All replayed sessions are deterministic
  1 - At least one session rendered differently
  2 - Command error (database not found, invalid app, etc.)

Examples:
  weave replay --db ./weave.db --app ./apps/explorer.cue
  weave replay --db ./weave.db --app ./apps/explorer.cue --session 0190...
  weave replay --db ./weave.db --app ./apps/explorer.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.App, "app", "", "application the sessions ran (required)")
	_ = cmd.MarkFlagRequired("app")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	app, err := LoadApp(opts.App, catalog.Builtins())
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && len(le.Invalid) > 0 {
			// An invalid app cannot be replayed; that is a usage problem here.
			_ = outputValidationErrors(f, le.Invalid)
			return NewExitError(ExitCommandError, le.Message)
		}
		return loadFailure(f, err)
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	if f.Verbose {
		nSessions, nEvents, nDeltas, err := st.Counts(ctx)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to read journal", err)
		}
		f.VerboseLog("journal %s: %d session(s), %d event(s), %d delta(s)", opts.Database, nSessions, nEvents, nDeltas)
	}

	var sessions []ir.SessionRecord
	if opts.Session != "" {
		rec, err := st.ReadSession(ctx, opts.Session)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				return f.Fail(ExitCommandError, ErrCodeNoSession, fmt.Sprintf("session not found: %s", opts.Session), nil)
			}
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to read session", err)
		}
		sessions = []ir.SessionRecord{rec}
	} else {
		sessions, err = st.ListSessions(ctx, app.Spec.Name)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to list sessions", err)
		}
	}

	report := ReplayReport{
		App:              app.Spec.Name,
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}
	for _, rec := range sessions {
		f.VerboseLog("replaying session %s", rec.ID)
		res, err := replaySession(ctx, st, app, rec, opts)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to replay session %s", rec.ID), err)
		}
		report.Sessions = append(report.Sessions, res)
		if !res.Deterministic {
			report.AllDeterministic = false
		}
	}

	if f.JSON() {
		return outputReplayJSON(f, report)
	}
	return outputReplayText(f, report)
}

// replaySession replays one journaled session against app.
func replaySession(ctx context.Context, st *store.Store, app *LoadedApp, rec ir.SessionRecord, opts *ReplayOptions) (ReplaySessionResult, error) {
	res := ReplaySessionResult{Session: rec.ID, Closed: rec.Closed, Deterministic: true}
	if rec.App != app.Spec.Name || rec.AppHash != app.Hash {
		res.Skipped = fmt.Sprintf("journaled under %s@%s", rec.App, shortHash(rec.AppHash))
		return res, nil
	}

	log, err := st.ReadSessionLog(ctx, rec.ID)
	if err != nil {
		return res, err
	}
	out, err := engine.Replay(ctx, app.Setup, log, engine.WithLogger(opts.Logger()))
	if err != nil {
		return res, err
	}
	res.Events = out.Events
	res.Deltas = out.Deltas
	res.Rejected = out.Rejected
	res.Mismatches = out.Mismatches
	res.Deterministic = out.Deterministic()
	return res, nil
}

// openJournal opens an existing journal. store.Open would create a missing
// database, which is never what a reader wants.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(f *OutputFormatter, report ReplayReport) error {
	var cliErr *CLIError
	if !report.AllDeterministic {
		cliErr = &CLIError{Code: ErrCodeDeterminism, Message: "determinism verification failed"}
	}
	if err := f.Report(report, cliErr); err != nil {
		return err
	}
	if cliErr != nil {
		return NewExitError(ExitFailure, cliErr.Message)
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(f *OutputFormatter, report ReplayReport) error {
	w := f.Writer
	if report.TotalSessions == 0 {
		fmt.Fprintf(w, "No sessions found for app %s.\n", report.App)
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s) of %s\n", report.TotalSessions, report.App)
	fmt.Fprintln(w)

	for _, s := range report.Sessions {
		switch {
		case s.Skipped != "":
			fmt.Fprintf(w, "- Session: %s (skipped: %s)\n", s.Session, s.Skipped)
		case s.Deterministic:
			fmt.Fprintf(w, "✓ Session: %s\n", s.Session)
		default:
			fmt.Fprintf(w, "✗ Session: %s\n", s.Session)
		}
		if s.Skipped != "" {
			fmt.Fprintln(w)
			continue
		}
		fmt.Fprintf(w, "  Events: %d (%d rejected), deltas: %d\n", s.Events, s.Rejected, s.Deltas)
		if f.Verbose {
			fmt.Fprintf(w, "  Closed: %v\n", s.Closed)
		}
		for _, m := range s.Mismatches {
			fmt.Fprintf(w, "  seq %d %s\n    journal: %s\n    replay:  %s\n", m.Seq, m.Target, orNone(m.Want), orNone(m.Got))
		}
		fmt.Fprintln(w)
	}

	if report.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
