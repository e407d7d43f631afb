package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/ruanwenjun/spark/internal/ir"
	"github.com/ruanwenjun/spark/internal/querysql"
)

// SQLOptions holds flags for the sql command.
type SQLOptions struct {
	*RootOptions
	Parse bool // argument is SQL text to parse, not a plan file
}

// SQLResult is the JSON payload of the sql command.
type SQLResult struct {
	Which    string          `json:"which"`
	SQL      string          `json:"sql,omitempty"`
	Document json.RawMessage `json:"document,omitempty"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SQLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sql <plan-file | query>",
		Short: "Render a plan as SQL, or parse SQL into a plan document",
		Long: `Translate between plans and SQL.

Without flags the argument is a plan file, rendered as a single SELECT
statement. With --parse the argument is SQL text; it is parsed into a
plan and printed as its canonical document.

Examples:
  sparkplan sql plan.cue
  sparkplan sql --parse "SELECT a FROM t WHERE a > 5 LIMIT 10"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Parse {
				return runSQLParse(opts, args[0], cmd)
			}
			return runSQLRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Parse, "parse", false, "parse the argument as SQL text")

	return cmd
}

func runSQLRender(opts *SQLOptions, planFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	rel, err := NewPlanLoader(afs.New()).Load(cmd.Context(), planFile)
	if err != nil {
		return loadErrorOutput(formatter, err)
	}

	query, err := querysql.Render(rel)
	if err != nil {
		_ = formatter.Error(ErrCodeRenderFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "plan has no SQL rendering", err)
	}

	if formatter.IsJSON() {
		return formatter.Success(SQLResult{Which: rel.WhichOneof(), SQL: query})
	}
	fmt.Fprintln(formatter.Writer, query)
	return nil
}

func runSQLParse(opts *SQLOptions, query string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	rel, err := BuildPlan(FormatSQL, "", []byte(query))
	if err != nil {
		return loadErrorOutput(formatter, err)
	}
	formatter.VerboseLog("Parsed %s plan, plan_id %s", rel.WhichOneof(), ir.MustPlanID(rel))

	doc, err := canonicalDocument(rel)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to decompile plan", err)
	}

	if formatter.IsJSON() {
		return formatter.Success(SQLResult{Which: rel.WhichOneof(), Document: doc})
	}
	fmt.Fprintln(formatter.Writer, string(doc))
	return nil
}
