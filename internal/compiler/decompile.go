package compiler

import (
	"errors"
	"fmt"
	"maps"

	"github.com/ruanwenjun/spark/internal/adapt"
	"github.com/ruanwenjun/spark/internal/expr"
	"github.com/ruanwenjun/spark/internal/ir"
)

// ErrNotRepresentable is returned by Decompile for content a document
// cannot express.
var ErrNotRepresentable = errors.New("not representable as a plan document")

// Decompile converts rel into the document form accepted by CompileValue.
// Values are string, int64, float64, bool, nil, []any and map[string]any,
// ready for MarshalCanonical.
//
// Unknown wire fields are not part of the document model and are dropped.
// A variant from a newer schema decompiles to the unknown placeholder.
func Decompile(rel *ir.Relation) (map[string]any, error) {
	if rel == nil {
		return nil, fmt.Errorf("%w: nil relation", ErrNotRepresentable)
	}
	if rel.Which() == ir.KindUnset {
		return nil, fmt.Errorf("%w: %w", ErrNotRepresentable, ir.ErrNoVariant)
	}
	body, err := decompileVariant(rel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel.WhichOneof(), err)
	}
	doc := map[string]any{rel.WhichOneof(): body}
	if info := rel.SourceInfo(); info != "" {
		doc["source_info"] = info
	}
	return doc, nil
}

func decompileVariant(rel *ir.Relation) (map[string]any, error) {
	m := map[string]any{}
	var err error
	put := func(key string, child *ir.Relation) {
		if err != nil || child == nil {
			return
		}
		m[key], err = Decompile(child)
	}
	putExprs := func(key string, es []expr.Expression) {
		if err != nil || len(es) == 0 {
			return
		}
		m[key], err = decompileExprs(es)
	}

	switch n := rel.Variant().(type) {
	case *ir.Read:
		switch src := n.Source.(type) {
		case *ir.NamedTable:
			m["table"] = src.UnparsedIdentifier
		case *ir.DataSource:
			m["format"] = src.Format
			if src.Schema != "" {
				m["schema"] = src.Schema
			}
			if src.Options.Len() > 0 {
				m["options"] = maps.Collect(adapt.MapValues(src.Options.All(), func(v string) any { return v }))
			}
		}
	case *ir.Project:
		put("input", n.Input)
		putExprs("expressions", n.Expressions)
	case *ir.Filter:
		put("input", n.Input)
		if n.Condition != nil && err == nil {
			m["condition"], err = decompileExpr(n.Condition)
		}
	case *ir.Join:
		put("left", n.Left)
		put("right", n.Right)
		if n.JoinCondition != nil && err == nil {
			m["condition"], err = decompileExpr(n.JoinCondition)
		}
		if n.JoinType != ir.JoinTypeUnspecified {
			m["type"] = enumValue(n.JoinType, "JOIN_TYPE_")
		}
		if len(n.UsingColumns) > 0 {
			m["using"] = stringList(n.UsingColumns)
		}
	case *ir.SetOperation:
		put("left", n.LeftInput)
		put("right", n.RightInput)
		if n.SetOpType != ir.SetOpTypeUnspecified {
			m["type"] = enumValue(n.SetOpType, "SET_OP_TYPE_")
		}
		if n.IsAll {
			m["all"] = true
		}
		if n.ByName {
			m["by_name"] = true
		}
	case *ir.Sort:
		put("input", n.Input)
		fields := make([]any, 0, len(n.SortFields))
		for _, f := range n.SortFields {
			if err != nil {
				break
			}
			fm := map[string]any{}
			fm["expr"], err = decompileExpr(f.Expression)
			if f.Direction != ir.SortDirectionUnspecified {
				fm["direction"] = enumValue(f.Direction, "SORT_DIRECTION_")
			}
			if f.Nulls != ir.SortNullsUnspecified {
				fm["nulls"] = enumValue(f.Nulls, "SORT_NULLS_")
			}
			fields = append(fields, fm)
		}
		m["fields"] = fields
	case *ir.Limit:
		put("input", n.Input)
		m["limit"] = int64(n.Limit)
	case *ir.Offset:
		put("input", n.Input)
		m["offset"] = int64(n.Offset)
	case *ir.Aggregate:
		put("input", n.Input)
		putExprs("grouping", n.GroupingExpressions)
		if len(n.ResultExpressions) > 0 {
			results := make([]any, 0, len(n.ResultExpressions))
			for _, fn := range n.ResultExpressions {
				fm := map[string]any{"fn": fn.Name}
				if len(fn.Arguments) > 0 && err == nil {
					fm["args"], err = decompileExprs(fn.Arguments)
				}
				results = append(results, fm)
			}
			m["results"] = results
		}
	case *ir.SQL:
		m["query"] = n.Query
	case *ir.LocalRelation:
		if len(n.Attributes) > 0 {
			attrs := make([]any, 0, len(n.Attributes))
			for _, a := range n.Attributes {
				am := map[string]any{"name": a.Name}
				if a.Type != "" {
					am["type"] = a.Type
				}
				attrs = append(attrs, am)
			}
			m["attributes"] = attrs
		}
	case *ir.Sample:
		put("input", n.Input)
		m["lower"] = n.LowerBound
		m["upper"] = n.UpperBound
		if n.WithReplacement {
			m["with_replacement"] = true
		}
		if n.Seed != nil {
			m["seed"] = n.Seed.Seed
		}
	case *ir.Deduplicate:
		put("input", n.Input)
		if len(n.ColumnNames) > 0 {
			m["columns"] = stringList(n.ColumnNames)
		}
		if n.AllColumnsAsKeys {
			m["all_columns"] = true
		}
	case *ir.Range:
		m["start"] = n.Start
		m["end"] = n.End
		if n.Step != nil {
			m["step"] = n.Step.Step
		}
		if n.NumPartitions != nil {
			m["num_partitions"] = int64(n.NumPartitions.NumPartitions)
		}
	case *ir.SubqueryAlias:
		put("input", n.Input)
		m["alias"] = n.Alias
		if len(n.Qualifier) > 0 {
			m["qualifier"] = stringList(n.Qualifier)
		}
	case *ir.Unknown:
	}
	return m, err
}

// enumValue returns the short name of a known enum value, or its number.
func enumValue[E interface {
	~int32
	fmt.Stringer
}](e E, prefix string) any {
	name := e.String()
	if name == fmt.Sprint(int32(e)) {
		return int64(e)
	}
	return shortName(name, prefix)
}

func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func decompileExprs(es []expr.Expression) ([]any, error) {
	out := make([]any, 0, len(es))
	for _, e := range es {
		d, err := decompileExpr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func decompileExpr(e expr.Expression) (map[string]any, error) {
	switch n := e.(type) {
	case *expr.Literal:
		switch n.Kind {
		case expr.LiteralBoolean:
			return map[string]any{"lit": n.Boolean}, nil
		case expr.LiteralLong:
			return map[string]any{"lit": n.Long}, nil
		case expr.LiteralDouble:
			return map[string]any{"lit": n.Double}, nil
		case expr.LiteralString:
			return map[string]any{"lit": n.Str}, nil
		default:
			return map[string]any{"lit": nil}, nil
		}
	case *expr.UnresolvedAttribute:
		return map[string]any{"col": n.UnparsedIdentifier}, nil
	case *expr.UnresolvedFunction:
		m := map[string]any{"fn": n.FunctionName}
		if len(n.Arguments) > 0 {
			args, err := decompileExprs(n.Arguments)
			if err != nil {
				return nil, err
			}
			m["args"] = args
		}
		if n.IsDistinct {
			m["distinct"] = true
		}
		return m, nil
	case *expr.ExpressionString:
		return map[string]any{"expr": n.Expression}, nil
	case *expr.UnresolvedStar:
		return map[string]any{"star": n.Target}, nil
	case *expr.Alias:
		inner, err := decompileExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		m := map[string]any{"alias": inner}
		if len(n.Name) == 1 {
			m["as"] = n.Name[0]
		} else {
			m["as"] = stringList(n.Name)
		}
		return m, nil
	case nil:
		return nil, fmt.Errorf("%w: nil expression", ErrNotRepresentable)
	default:
		return nil, fmt.Errorf("%w: expression %s", ErrNotRepresentable, e)
	}
}
