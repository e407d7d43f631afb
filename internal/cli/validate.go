package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/ruanwenjun/spark/internal/analyzer"
	"github.com/ruanwenjun/spark/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                  `json:"valid"`
	Which     string                `json:"which"`
	PlanID    string                `json:"plan_id"`
	Conflicts []analyzer.Diagnostic `json:"conflicts"`
	Warnings  []analyzer.Diagnostic `json:"warnings"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Check a plan for structural errors and planning conflicts",
		Long: `Validate a plan without encoding or submitting it.

Structural errors (missing inputs, missing variants, shared nodes) are
reported first. A structurally valid plan is then analyzed the way the
engine's planner would: conflicts fail validation, warnings flag values
the engine will default.

Exit codes:
  0 - Plan is valid (warnings allowed)
  1 - Structural errors or planning conflicts
  2 - Command error (unreadable file, unknown format, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, planFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	rel, err := NewPlanLoader(afs.New()).Load(cmd.Context(), planFile)
	if err != nil {
		return loadErrorOutput(formatter, err)
	}
	formatter.VerboseLog("Analyzing %s plan from %s", rel.WhichOneof(), planFile)

	analysis := analyzer.Analyze(rel)
	result := ValidationResult{
		Valid:     analysis.OK(),
		Which:     rel.WhichOneof(),
		PlanID:    ir.MustPlanID(rel),
		Conflicts: analysis.Conflicts,
		Warnings:  analysis.Warnings,
	}

	if err := outputValidationResult(formatter, result); err != nil {
		return err
	}
	if !result.Valid {
		return WrapExitError(ExitFailure, "plan has planning conflicts", analysis.Err())
	}
	return nil
}

func outputValidationResult(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.IsJSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		return formatter.Error(ErrCodePlanning, fmt.Sprintf("plan has %d conflict(s)", len(result.Conflicts)), result)
	}

	if result.Valid {
		fmt.Fprintf(formatter.Writer, "✓ Plan valid (%s)\n", result.Which)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ Plan has %d conflict(s)\n", len(result.Conflicts))
		for _, d := range result.Conflicts {
			fmt.Fprintf(formatter.Writer, "  %s\n", d)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(formatter.Writer, "%d warning(s):\n", len(result.Warnings))
		for _, d := range result.Warnings {
			fmt.Fprintf(formatter.Writer, "  %s\n", d)
		}
	}
	return nil
}
