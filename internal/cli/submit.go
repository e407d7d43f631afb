package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/ruanwenjun/spark/internal/analyzer"
	"github.com/ruanwenjun/spark/internal/session"
	"github.com/ruanwenjun/spark/internal/store"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Database       string
	Session        string
	MaxSubmissions int
}

// SubmitResult is the outcome of one submitted plan.
type SubmitResult struct {
	SessionID   string                `json:"session_id"`
	OperationID string                `json:"operation_id"`
	Seq         int64                 `json:"seq"`
	PlanID      string                `json:"plan_id"`
	Which       string                `json:"which"`
	Status      string                `json:"status"`
	Message     string                `json:"message,omitempty"`
	Conflicts   []analyzer.Diagnostic `json:"conflicts"`
	Warnings    []analyzer.Diagnostic `json:"warnings"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit <plan-file>",
		Short: "Submit a plan to a session log",
		Long: `Submit a plan the way a client transmits it.

The plan is validated, encoded once and appended to the session's log in
the SQLite database together with the planner's verdict. Structurally
invalid plans are never stored. Plans with planning conflicts are stored
with a rejected outcome.

Exit codes:
  0 - Plan accepted
  1 - Plan invalid or rejected, or the session quota is exhausted
  2 - Command error (database error, unreadable file, etc.)

Examples:
  sparkplan submit plan.cue --db ./plans.db --session etl-1
  sparkplan submit query.sql --db ./plans.db --session etl-1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().IntVar(&opts.MaxSubmissions, "max-submissions", session.DefaultMaxSubmissions, "submission quota for the session")

	return cmd
}

func runSubmit(opts *SubmitOptions, planFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	rel, err := NewPlanLoader(afs.New()).Load(ctx, planFile)
	if err != nil {
		return loadErrorOutput(formatter, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sessOpts := []session.Option{session.WithMaxSubmissions(opts.MaxSubmissions)}
	if opts.Verbose {
		sessOpts = append(sessOpts, session.WithLogger(slog.New(slog.NewTextHandler(formatter.GetErrWriter(), nil))))
	}
	sess, err := session.New(ctx, st, opts.Session, session.UUIDv7Generator{}, sessOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open session", err)
	}

	sub, err := sess.Submit(ctx, rel)
	if err != nil {
		if session.IsQuotaExceeded(err) {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "submission refused", err)
		}
		if le := convertBuildError(err, ErrCodeDatabase); le.Code == ErrCodeInvalidPlan {
			return loadErrorOutput(formatter, le)
		}
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to submit plan", err)
	}

	result := SubmitResult{
		SessionID:   sess.ID(),
		OperationID: sub.OperationID,
		Seq:         sub.Seq,
		PlanID:      sub.PlanID,
		Which:       sub.RootKind,
		Status:      string(sub.Outcome.Status),
		Message:     sub.Outcome.Message,
		Conflicts:   sub.Analysis.Conflicts,
		Warnings:    sub.Analysis.Warnings,
	}

	if err := outputSubmitResult(formatter, result); err != nil {
		return err
	}
	if !sub.Accepted() {
		return WrapExitError(ExitFailure, "plan rejected", sub.Analysis.Err())
	}
	return nil
}

func outputSubmitResult(formatter *OutputFormatter, result SubmitResult) error {
	if formatter.IsJSON() {
		if result.Status != string(store.StatusAccepted) {
			return formatter.Error(ErrCodePlanning, result.Message, result)
		}
		return formatter.SuccessTrace(result.SessionID, result)
	}

	mark := "✓"
	if result.Status != string(store.StatusAccepted) {
		mark = "✗"
	}
	fmt.Fprintf(formatter.Writer, "%s %s %s plan as seq %d in session %s\n",
		mark, result.Status, result.Which, result.Seq, result.SessionID)
	fmt.Fprintf(formatter.Writer, "  operation_id: %s\n", result.OperationID)
	fmt.Fprintf(formatter.Writer, "  plan_id: %s\n", result.PlanID)
	for _, d := range result.Conflicts {
		fmt.Fprintf(formatter.Writer, "  %s\n", d)
	}
	for _, d := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  ! %s\n", d)
	}
	return nil
}
