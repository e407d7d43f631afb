package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/ruanwenjun/spark/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output location for the encoded plan
}

// CompileResult describes an encoded plan.
type CompileResult struct {
	Which         string `json:"which"`
	PlanID        string `json:"plan_id"`
	Size          int    `json:"size"`
	SchemaVersion string `json:"schema_version"`
	Output        string `json:"output,omitempty"`
	Plan          []byte `json:"plan,omitempty"` // set when no output location is given
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <plan-file>",
		Short: "Compile a plan to its binary wire encoding",
		Long: `Compile a plan document (.cue, .json) or a SQL query (.sql) to the
binary wire encoding a client transmits.

The plan is validated before encoding. With --output the encoded bytes
are written to the given location (a path or any URL afs supports);
otherwise only the plan id and size are reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output location for the encoded plan")

	return cmd
}

func runCompile(opts *CompileOptions, planFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	loader := NewPlanLoader(afs.New())
	ctx := cmd.Context()

	rel, err := loader.Load(ctx, planFile)
	if err != nil {
		return loadErrorOutput(formatter, err)
	}
	formatter.VerboseLog("Loaded %s plan from %s", rel.WhichOneof(), planFile)

	data, err := ir.Marshal(rel)
	if err != nil {
		return loadErrorOutput(formatter, convertBuildError(err, ErrCodeGeneric))
	}

	result := CompileResult{
		Which:         rel.WhichOneof(),
		PlanID:        ir.PlanIDFromBytes(data),
		Size:          len(data),
		SchemaVersion: ir.SchemaVersion,
		Output:        opts.Output,
	}

	if opts.Output != "" {
		if err := loader.Save(ctx, opts.Output, data); err != nil {
			return loadErrorOutput(formatter, err)
		}
		formatter.VerboseLog("Wrote %d byte(s) to %s", len(data), opts.Output)
	} else {
		result.Plan = data
	}

	return outputCompileSuccess(formatter, result)
}

func outputCompileSuccess(formatter *OutputFormatter, result CompileResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %s plan (%d bytes)\n", result.Which, result.Size)
	fmt.Fprintf(formatter.Writer, "  plan_id: %s\n", result.PlanID)
	if result.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote encoded plan to %s\n", result.Output)
	}
	return nil
}
