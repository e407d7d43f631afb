package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/ruanwenjun/spark/internal/adapt"
	"github.com/ruanwenjun/spark/internal/compiler"
	"github.com/ruanwenjun/spark/internal/expr"
	"github.com/ruanwenjun/spark/internal/ir"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Document bool // print the canonical document instead of the tree
}

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	Which    string          `json:"which"`
	PlanID   string          `json:"plan_id"`
	Nodes    int             `json:"nodes"`
	Tree     string          `json:"tree"`
	Document json.RawMessage `json:"document"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <plan-file>",
		Short: "Print a plan as a tree or as its canonical document",
		Long: `Explain a plan file of any supported format.

By default the plan is printed as an indented operator tree, root first.
With --document the canonical JSON document is printed instead; it
compiles back to the same plan. Binary plans (.bin, .pb) are decoded
first, so explain also inspects what a client transmitted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Document, "document", false, "print the canonical document")

	return cmd
}

func runExplain(opts *ExplainOptions, planFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	rel, err := NewPlanLoader(afs.New()).Load(cmd.Context(), planFile)
	if err != nil {
		return loadErrorOutput(formatter, err)
	}

	doc, err := canonicalDocument(rel)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to decompile plan", err)
	}

	var tree strings.Builder
	nodes := WriteTree(&tree, rel)

	if formatter.IsJSON() {
		return formatter.Success(ExplainResult{
			Which:    rel.WhichOneof(),
			PlanID:   ir.MustPlanID(rel),
			Nodes:    nodes,
			Tree:     tree.String(),
			Document: doc,
		})
	}

	if opts.Document {
		fmt.Fprintln(formatter.Writer, string(doc))
		return nil
	}
	fmt.Fprint(formatter.Writer, tree.String())
	formatter.VerboseLog("%d node(s), plan_id %s", nodes, ir.MustPlanID(rel))
	return nil
}

func canonicalDocument(rel *ir.Relation) ([]byte, error) {
	doc, err := compiler.Decompile(rel)
	if err != nil {
		return nil, err
	}
	return compiler.MarshalCanonical(doc)
}

// WriteTree writes rel as an indented operator tree and returns the number
// of nodes written.
func WriteTree(w io.Writer, rel *ir.Relation) int {
	return writeTree(w, rel, 0)
}

func writeTree(w io.Writer, rel *ir.Relation, depth int) int {
	line := describe(rel)
	if info := rel.SourceInfo(); info != "" {
		line += " @" + info
	}
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), line)

	n := 1
	for _, child := range rel.Children() {
		n += writeTree(w, child, depth+1)
	}
	return n
}

func describe(rel *ir.Relation) string {
	switch v := rel.Variant().(type) {
	case *ir.Read:
		switch src := v.Source.(type) {
		case *ir.NamedTable:
			return "Read table=" + src.UnparsedIdentifier
		case *ir.DataSource:
			parts := []string{"Read format=" + src.Format}
			if src.Schema != "" {
				parts = append(parts, "schema="+strconv.Quote(src.Schema))
			}
			parts = slices.AppendSeq(parts, adapt.MapSeq2(src.Options.All(), func(k, val string) string {
				return k + "=" + strconv.Quote(val)
			}))
			return strings.Join(parts, " ")
		}
		return "Read"
	case *ir.Project:
		return "Project " + exprList(v.Expressions)
	case *ir.Filter:
		return "Filter " + exprString(v.Condition)
	case *ir.Join:
		s := "Join"
		if v.JoinType != ir.JoinTypeUnspecified {
			s += " " + enumLabel(v.JoinType.String(), "JOIN_TYPE_")
		}
		if v.JoinCondition != nil {
			s += " on " + exprString(v.JoinCondition)
		}
		if len(v.UsingColumns) > 0 {
			s += " using [" + strings.Join(v.UsingColumns, ", ") + "]"
		}
		return s
	case *ir.SetOperation:
		s := "SetOperation"
		if v.SetOpType != ir.SetOpTypeUnspecified {
			s += " " + enumLabel(v.SetOpType.String(), "SET_OP_TYPE_")
		}
		if v.IsAll {
			s += " all"
		}
		if v.ByName {
			s += " by_name"
		}
		return s
	case *ir.Sort:
		keys := make([]string, len(v.SortFields))
		for i, f := range v.SortFields {
			key := exprString(f.Expression)
			if f.Direction != ir.SortDirectionUnspecified {
				key += " " + enumLabel(f.Direction.String(), "SORT_DIRECTION_")
			}
			if f.Nulls != ir.SortNullsUnspecified {
				key += " nulls " + enumLabel(f.Nulls.String(), "SORT_NULLS_")
			}
			keys[i] = key
		}
		return "Sort [" + strings.Join(keys, ", ") + "]"
	case *ir.Limit:
		return fmt.Sprintf("Limit %d", v.Limit)
	case *ir.Offset:
		return fmt.Sprintf("Offset %d", v.Offset)
	case *ir.Aggregate:
		results := make([]string, len(v.ResultExpressions))
		for i, fn := range v.ResultExpressions {
			args := make([]string, len(fn.Arguments))
			for j, a := range fn.Arguments {
				args[j] = exprString(a)
			}
			results[i] = fn.Name + "(" + strings.Join(args, ", ") + ")"
		}
		return "Aggregate group=" + exprList(v.GroupingExpressions) + " results=[" + strings.Join(results, ", ") + "]"
	case *ir.SQL:
		return "SQL " + strconv.Quote(v.Query)
	case *ir.LocalRelation:
		attrs := make([]string, len(v.Attributes))
		for i, a := range v.Attributes {
			attrs[i] = a.Name
			if a.Type != "" {
				attrs[i] += ":" + a.Type
			}
		}
		return "LocalRelation [" + strings.Join(attrs, ", ") + "]"
	case *ir.Sample:
		s := fmt.Sprintf("Sample [%g, %g]", v.LowerBound, v.UpperBound)
		if v.WithReplacement {
			s += " with_replacement"
		}
		if v.Seed != nil {
			s += fmt.Sprintf(" seed=%d", v.Seed.Seed)
		}
		return s
	case *ir.Deduplicate:
		if v.AllColumnsAsKeys {
			return "Deduplicate all_columns"
		}
		return "Deduplicate [" + strings.Join(v.ColumnNames, ", ") + "]"
	case *ir.Range:
		s := fmt.Sprintf("Range [%d, %d)", v.Start, v.End)
		if v.Step != nil {
			s += fmt.Sprintf(" step=%d", v.Step.Step)
		}
		if v.NumPartitions != nil {
			s += fmt.Sprintf(" partitions=%d", v.NumPartitions.NumPartitions)
		}
		return s
	case *ir.SubqueryAlias:
		s := "SubqueryAlias " + v.Alias
		if len(v.Qualifier) > 0 {
			s += " qualifier=" + strings.Join(v.Qualifier, ".")
		}
		return s
	case *ir.Unknown:
		if v.Unrecognized() {
			return "Unknown (unrecognized variant)"
		}
		return "Unknown"
	}
	return "<unset>"
}

func exprString(e expr.Expression) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

func exprList(es []expr.Expression) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = exprString(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func enumLabel(wireName, prefix string) string {
	return strings.ToLower(strings.TrimPrefix(wireName, prefix))
}
