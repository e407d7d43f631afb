package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruanwenjun/spark/internal/session"
	"github.com/ruanwenjun/spark/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID  string             `json:"session_id"`
	Checked    int                `json:"checked"`
	LastSeq    int64              `json:"last_seq"`
	Mismatches []session.Mismatch `json:"mismatches"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	Reproducible  bool                  `json:"reproducible"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay session logs and verify every plan reproduces",
		Long: `Replay the submission log and verify encoding determinism.

Every stored plan is decoded and encoded again. The new bytes must be
identical to the stored bytes and hash to the stored plan id; unknown
fields from newer schemas must survive the round trip.

Exit codes:
  0 - Every plan reproduced
  1 - One or more plans did not reproduce
  2 - Command error (database not found, etc.)

Examples:
  sparkplan replay --db ./plans.db
  sparkplan replay --db ./plans.db --session etl-1
  sparkplan replay --db ./plans.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var sessionIDs []string
	if opts.Session != "" {
		sessionIDs = []string{opts.Session}
	} else {
		sessionIDs, err = st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(sessionIDs)),
		TotalSessions: len(sessionIDs),
		Reproducible:  true,
	}

	if len(sessionIDs) == 0 {
		if formatter.IsJSON() {
			return formatter.Success(result)
		}
		fmt.Fprintln(formatter.Writer, "No sessions found in database.")
		return nil
	}

	for _, id := range sessionIDs {
		formatter.VerboseLog("Replaying session %s", id)
		report, err := session.Replay(ctx, st, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", id), err)
		}
		result.Sessions = append(result.Sessions, ReplaySessionResult{
			SessionID:  report.SessionID,
			Checked:    report.Checked,
			LastSeq:    report.LastSeq,
			Mismatches: report.Mismatches,
		})
		if !report.OK() {
			result.Reproducible = false
		}
	}

	if formatter.IsJSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.Reproducible {
		return NewExitError(ExitFailure, "replay found plans that do not reproduce")
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Replayed %d session(s)\n\n", result.TotalSessions)

	for _, s := range result.Sessions {
		mark := "✓"
		if len(s.Mismatches) > 0 {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d plan(s), last seq %d\n", mark, s.SessionID, s.Checked, s.LastSeq)
		for _, m := range s.Mismatches {
			fmt.Fprintf(w, "    seq %d (%s): %s\n", m.Seq, m.OperationID, m.Reason)
		}
	}

	fmt.Fprintln(w)
	if result.Reproducible {
		fmt.Fprintln(w, "All plans reproduce byte-identically.")
	} else {
		fmt.Fprintln(w, "Replay found plans that do not reproduce.")
	}
}
