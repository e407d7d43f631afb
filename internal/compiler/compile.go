package compiler

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/ruanwenjun/spark/internal/expr"
	"github.com/ruanwenjun/spark/internal/ir"
)

// CompileBytes compiles a plan document written in CUE or JSON. filename
// is used in error positions only.
//
// The document is either a relation (one variant key such as "filter")
// or a struct with the relation under "plan".
func CompileBytes(filename string, src []byte) (*ir.Relation, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if plan := lookup(v, "plan"); plan.Exists() {
		v = plan
	}
	return CompileValue(v)
}

// CompileValue compiles a CUE value holding a relation document. The
// result is structurally valid; structural problems are returned as
// *ir.InvalidPlanError.
func CompileValue(v cue.Value) (*ir.Relation, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	rel, err := compileRelation("", v)
	if err != nil {
		return nil, err
	}
	if errs := ir.Validate(rel); len(errs) > 0 {
		return nil, &ir.InvalidPlanError{Errors: errs}
	}
	return rel, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	field := e.Field
	if field == "" {
		field = "document"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			field, e.Message)
	}
	return fmt.Sprintf("%s: %s", field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

func lookup(v cue.Value, name string) cue.Value {
	return v.LookupPath(cue.MakePath(cue.Str(name)))
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func errorf(path string, v cue.Value, format string, args ...any) *CompileError {
	return &CompileError{Field: path, Message: fmt.Sprintf(format, args...), Pos: v.Pos()}
}

// fields returns the labels of struct v and rejects labels not in allowed.
func fields(path string, v cue.Value, allowed ...string) ([]string, error) {
	if v.Kind() != cue.StructKind {
		return nil, errorf(path, v, "expected a struct, got %v", v.Kind())
	}
	it, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var labels []string
	for it.Next() {
		label := it.Label()
		if !slices.Contains(allowed, label) {
			return nil, errorf(join(path, label), it.Value(), "unknown field (expected one of %s)", strings.Join(allowed, ", "))
		}
		labels = append(labels, label)
	}
	return labels, nil
}

var variantKeys = func() []string {
	var keys []string
	for k := ir.KindRead; k <= ir.KindUnknown; k++ {
		keys = append(keys, k.String())
	}
	return keys
}()

func compileRelation(path string, v cue.Value) (*ir.Relation, error) {
	labels, err := fields(path, v, append(slices.Clone(variantKeys), "source_info")...)
	if err != nil {
		return nil, err
	}

	var (
		kind  ir.Kind
		opts  []ir.Option
		count int
	)
	for _, label := range labels {
		if label == "source_info" {
			info, err := str(join(path, label), lookup(v, label))
			if err != nil {
				return nil, err
			}
			opts = append(opts, ir.WithSourceInfo(info))
			continue
		}
		kind, _ = ir.ParseKind(label)
		count++
	}
	switch {
	case count == 0:
		return nil, errorf(path, v, "relation needs exactly one variant (one of %s)", strings.Join(variantKeys, ", "))
	case count > 1:
		return nil, errorf(path, v, "relation has %d variants; exactly one is allowed", count)
	}

	path = join(path, kind.String())
	variant, err := compileVariant(path, kind, lookup(v, kind.String()))
	if err != nil {
		return nil, err
	}
	return ir.New(variant, opts...)
}

func compileVariant(path string, kind ir.Kind, v cue.Value) (ir.RelType, error) {
	switch kind {
	case ir.KindRead:
		return compileRead(path, v)
	case ir.KindProject:
		if _, err := fields(path, v, "input", "expressions"); err != nil {
			return nil, err
		}
		n := &ir.Project{}
		var err error
		if n.Input, err = input(path, v, "input"); err != nil {
			return nil, err
		}
		if n.Expressions, err = exprList(join(path, "expressions"), lookup(v, "expressions")); err != nil {
			return nil, err
		}
		return n, nil
	case ir.KindFilter:
		if _, err := fields(path, v, "input", "condition"); err != nil {
			return nil, err
		}
		n := &ir.Filter{}
		var err error
		if n.Input, err = input(path, v, "input"); err != nil {
			return nil, err
		}
		if n.Condition, err = optionalExpr(join(path, "condition"), lookup(v, "condition")); err != nil {
			return nil, err
		}
		return n, nil
	case ir.KindJoin:
		return compileJoin(path, v)
	case ir.KindSetOperation:
		return compileSetOperation(path, v)
	case ir.KindSort:
		return compileSort(path, v)
	case ir.KindLimit:
		if _, err := fields(path, v, "input", "limit"); err != nil {
			return nil, err
		}
		n := &ir.Limit{}
		var err error
		if n.Input, err = input(path, v, "input"); err != nil {
			return nil, err
		}
		if n.Limit, err = int32Field(path, v, "limit"); err != nil {
			return nil, err
		}
		return n, nil
	case ir.KindOffset:
		if _, err := fields(path, v, "input", "offset"); err != nil {
			return nil, err
		}
		n := &ir.Offset{}
		var err error
		if n.Input, err = input(path, v, "input"); err != nil {
			return nil, err
		}
		if n.Offset, err = int32Field(path, v, "offset"); err != nil {
			return nil, err
		}
		return n, nil
	case ir.KindAggregate:
		return compileAggregate(path, v)
	case ir.KindSQL:
		if _, err := fields(path, v, "query"); err != nil {
			return nil, err
		}
		q, err := optionalStr(join(path, "query"), lookup(v, "query"))
		if err != nil {
			return nil, err
		}
		return &ir.SQL{Query: q}, nil
	case ir.KindLocalRelation:
		return compileLocalRelation(path, v)
	case ir.KindSample:
		return compileSample(path, v)
	case ir.KindDeduplicate:
		if _, err := fields(path, v, "input", "columns", "all_columns"); err != nil {
			return nil, err
		}
		n := &ir.Deduplicate{}
		var err error
		if n.Input, err = input(path, v, "input"); err != nil {
			return nil, err
		}
		if n.ColumnNames, err = strList(join(path, "columns"), lookup(v, "columns")); err != nil {
			return nil, err
		}
		if n.AllColumnsAsKeys, err = optionalBool(join(path, "all_columns"), lookup(v, "all_columns")); err != nil {
			return nil, err
		}
		return n, nil
	case ir.KindRange:
		return compileRange(path, v)
	case ir.KindSubqueryAlias:
		if _, err := fields(path, v, "input", "alias", "qualifier"); err != nil {
			return nil, err
		}
		n := &ir.SubqueryAlias{}
		var err error
		if n.Input, err = input(path, v, "input"); err != nil {
			return nil, err
		}
		if n.Alias, err = optionalStr(join(path, "alias"), lookup(v, "alias")); err != nil {
			return nil, err
		}
		if n.Qualifier, err = strList(join(path, "qualifier"), lookup(v, "qualifier")); err != nil {
			return nil, err
		}
		return n, nil
	case ir.KindUnknown:
		if _, err := fields(path, v); err != nil {
			return nil, err
		}
		return &ir.Unknown{}, nil
	}
	return nil, errorf(path, v, "unsupported variant %s", kind)
}

func compileRead(path string, v cue.Value) (ir.RelType, error) {
	labels, err := fields(path, v, "table", "format", "schema", "options")
	if err != nil {
		return nil, err
	}
	if slices.Contains(labels, "table") {
		if len(labels) > 1 {
			return nil, errorf(path, v, "table cannot be combined with a data source")
		}
		name, err := str(join(path, "table"), lookup(v, "table"))
		if err != nil {
			return nil, err
		}
		return &ir.Read{Source: &ir.NamedTable{UnparsedIdentifier: name}}, nil
	}
	if len(labels) == 0 {
		// Leave the source unset; ir.Validate reports it.
		return &ir.Read{}, nil
	}

	ds := &ir.DataSource{}
	if ds.Format, err = optionalStr(join(path, "format"), lookup(v, "format")); err != nil {
		return nil, err
	}
	if ds.Schema, err = optionalStr(join(path, "schema"), lookup(v, "schema")); err != nil {
		return nil, err
	}
	if opts := lookup(v, "options"); opts.Exists() {
		ds.Options = &ir.Options{}
		it, err := opts.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for it.Next() {
			key := it.Label()
			val, err := str(join(path, "options."+key), it.Value())
			if err != nil {
				return nil, err
			}
			ds.Options.Set(key, val)
		}
	}
	return &ir.Read{Source: ds}, nil
}

func compileJoin(path string, v cue.Value) (ir.RelType, error) {
	if _, err := fields(path, v, "left", "right", "condition", "type", "using"); err != nil {
		return nil, err
	}
	n := &ir.Join{}
	var err error
	if n.Left, err = input(path, v, "left"); err != nil {
		return nil, err
	}
	if n.Right, err = input(path, v, "right"); err != nil {
		return nil, err
	}
	if n.JoinCondition, err = optionalExpr(join(path, "condition"), lookup(v, "condition")); err != nil {
		return nil, err
	}
	if n.JoinType, err = enumField(path, v, "type", "JOIN_TYPE_", ir.ParseJoinType); err != nil {
		return nil, err
	}
	if n.UsingColumns, err = strList(join(path, "using"), lookup(v, "using")); err != nil {
		return nil, err
	}
	return n, nil
}

func compileSetOperation(path string, v cue.Value) (ir.RelType, error) {
	if _, err := fields(path, v, "left", "right", "type", "all", "by_name"); err != nil {
		return nil, err
	}
	n := &ir.SetOperation{}
	var err error
	if n.LeftInput, err = input(path, v, "left"); err != nil {
		return nil, err
	}
	if n.RightInput, err = input(path, v, "right"); err != nil {
		return nil, err
	}
	if n.SetOpType, err = enumField(path, v, "type", "SET_OP_TYPE_", ir.ParseSetOpType); err != nil {
		return nil, err
	}
	if n.IsAll, err = optionalBool(join(path, "all"), lookup(v, "all")); err != nil {
		return nil, err
	}
	if n.ByName, err = optionalBool(join(path, "by_name"), lookup(v, "by_name")); err != nil {
		return nil, err
	}
	return n, nil
}

func compileSort(path string, v cue.Value) (ir.RelType, error) {
	if _, err := fields(path, v, "input", "fields"); err != nil {
		return nil, err
	}
	n := &ir.Sort{}
	var err error
	if n.Input, err = input(path, v, "input"); err != nil {
		return nil, err
	}
	list := lookup(v, "fields")
	if !list.Exists() {
		return n, nil
	}
	err = each(join(path, "fields"), list, func(fp string, fv cue.Value) error {
		if _, err := fields(fp, fv, "expr", "direction", "nulls"); err != nil {
			return err
		}
		var f ir.SortField
		var err error
		if f.Expression, err = optionalExpr(join(fp, "expr"), lookup(fv, "expr")); err != nil {
			return err
		}
		if f.Direction, err = enumField(fp, fv, "direction", "SORT_DIRECTION_", ir.ParseSortDirection); err != nil {
			return err
		}
		if f.Nulls, err = enumField(fp, fv, "nulls", "SORT_NULLS_", ir.ParseSortNulls); err != nil {
			return err
		}
		n.SortFields = append(n.SortFields, f)
		return nil
	})
	return n, err
}

func compileAggregate(path string, v cue.Value) (ir.RelType, error) {
	if _, err := fields(path, v, "input", "grouping", "results"); err != nil {
		return nil, err
	}
	n := &ir.Aggregate{}
	var err error
	if n.Input, err = input(path, v, "input"); err != nil {
		return nil, err
	}
	if n.GroupingExpressions, err = exprList(join(path, "grouping"), lookup(v, "grouping")); err != nil {
		return nil, err
	}
	results := lookup(v, "results")
	if !results.Exists() {
		return n, nil
	}
	err = each(join(path, "results"), results, func(fp string, fv cue.Value) error {
		if _, err := fields(fp, fv, "fn", "args"); err != nil {
			return err
		}
		name, err := optionalStr(join(fp, "fn"), lookup(fv, "fn"))
		if err != nil {
			return err
		}
		args, err := exprList(join(fp, "args"), lookup(fv, "args"))
		if err != nil {
			return err
		}
		n.ResultExpressions = append(n.ResultExpressions, ir.Agg(name, args...))
		return nil
	})
	return n, err
}

func compileLocalRelation(path string, v cue.Value) (ir.RelType, error) {
	if _, err := fields(path, v, "attributes"); err != nil {
		return nil, err
	}
	n := &ir.LocalRelation{}
	attrs := lookup(v, "attributes")
	if !attrs.Exists() {
		return n, nil
	}
	err := each(join(path, "attributes"), attrs, func(fp string, fv cue.Value) error {
		if _, err := fields(fp, fv, "name", "type"); err != nil {
			return err
		}
		name, err := str(join(fp, "name"), lookup(fv, "name"))
		if err != nil {
			return err
		}
		typ, err := optionalStr(join(fp, "type"), lookup(fv, "type"))
		if err != nil {
			return err
		}
		n.Attributes = append(n.Attributes, expr.Attr(name, typ))
		return nil
	})
	return n, err
}

func compileSample(path string, v cue.Value) (ir.RelType, error) {
	if _, err := fields(path, v, "input", "lower", "upper", "with_replacement", "seed"); err != nil {
		return nil, err
	}
	n := &ir.Sample{}
	var err error
	if n.Input, err = input(path, v, "input"); err != nil {
		return nil, err
	}
	if n.LowerBound, err = number(join(path, "lower"), lookup(v, "lower")); err != nil {
		return nil, err
	}
	if n.UpperBound, err = number(join(path, "upper"), lookup(v, "upper")); err != nil {
		return nil, err
	}
	if n.WithReplacement, err = optionalBool(join(path, "with_replacement"), lookup(v, "with_replacement")); err != nil {
		return nil, err
	}
	if seed := lookup(v, "seed"); seed.Exists() {
		s, err := int64Value(join(path, "seed"), seed)
		if err != nil {
			return nil, err
		}
		n.Seed = &ir.Seed{Seed: s}
	}
	return n, nil
}

func compileRange(path string, v cue.Value) (ir.RelType, error) {
	if _, err := fields(path, v, "start", "end", "step", "num_partitions"); err != nil {
		return nil, err
	}
	n := &ir.Range{}
	var err error
	if start := lookup(v, "start"); start.Exists() {
		if n.Start, err = int64Value(join(path, "start"), start); err != nil {
			return nil, err
		}
	}
	end := lookup(v, "end")
	if !end.Exists() {
		return nil, errorf(join(path, "end"), v, "end is required")
	}
	if n.End, err = int64Value(join(path, "end"), end); err != nil {
		return nil, err
	}
	if step := lookup(v, "step"); step.Exists() {
		s, err := int64Value(join(path, "step"), step)
		if err != nil {
			return nil, err
		}
		n.Step = &ir.Step{Step: s}
	}
	if lookup(v, "num_partitions").Exists() {
		p, err := int32Field(path, v, "num_partitions")
		if err != nil {
			return nil, err
		}
		n.NumPartitions = &ir.NumPartitions{NumPartitions: p}
	}
	return n, nil
}

// input compiles the child relation under name. A missing child is left
// nil for ir.Validate to report.
func input(path string, v cue.Value, name string) (*ir.Relation, error) {
	child := lookup(v, name)
	if !child.Exists() {
		return nil, nil
	}
	return compileRelation(join(path, name), child)
}

func each(path string, v cue.Value, fn func(string, cue.Value) error) error {
	if v.Kind() != cue.ListKind {
		return errorf(path, v, "expected a list, got %v", v.Kind())
	}
	it, err := v.List()
	if err != nil {
		return formatCUEError(err)
	}
	for i := 0; it.Next(); i++ {
		if err := fn(fmt.Sprintf("%s[%d]", path, i), it.Value()); err != nil {
			return err
		}
	}
	return nil
}

func str(path string, v cue.Value) (string, error) {
	s, err := v.String()
	if err != nil {
		return "", errorf(path, v, "expected a string, got %v", v.Kind())
	}
	return s, nil
}

func optionalStr(path string, v cue.Value) (string, error) {
	if !v.Exists() {
		return "", nil
	}
	return str(path, v)
}

func optionalBool(path string, v cue.Value) (bool, error) {
	if !v.Exists() {
		return false, nil
	}
	b, err := v.Bool()
	if err != nil {
		return false, errorf(path, v, "expected a bool, got %v", v.Kind())
	}
	return b, nil
}

func strList(path string, v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	var out []string
	err := each(path, v, func(ep string, ev cue.Value) error {
		s, err := str(ep, ev)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func int64Value(path string, v cue.Value) (int64, error) {
	if v.Kind() != cue.IntKind {
		return 0, errorf(path, v, "expected an int, got %v", v.Kind())
	}
	n, err := v.Int64()
	if err != nil {
		return 0, errorf(path, v, "%v", err)
	}
	return n, nil
}

func int32Field(path string, v cue.Value, name string) (int32, error) {
	fv := lookup(v, name)
	if !fv.Exists() {
		return 0, nil
	}
	n, err := int64Value(join(path, name), fv)
	if err != nil {
		return 0, err
	}
	if n != int64(int32(n)) {
		return 0, errorf(join(path, name), fv, "%d overflows int32", n)
	}
	return int32(n), nil
}

func number(path string, v cue.Value) (float64, error) {
	if !v.Exists() {
		return 0, nil
	}
	f, err := v.Float64()
	if err != nil {
		return 0, errorf(path, v, "expected a number, got %v", v.Kind())
	}
	return f, nil
}

// enumField accepts a short lower-case name ("left_outer"), the full wire
// name ("JOIN_TYPE_LEFT_OUTER"), or a number. Numbers from newer schemas
// are kept as is.
func enumField[E ~int32](path string, v cue.Value, name, prefix string, parse func(string) (E, error)) (E, error) {
	fv := lookup(v, name)
	if !fv.Exists() {
		return 0, nil
	}
	fp := join(path, name)
	if fv.Kind() == cue.IntKind {
		n, err := int64Value(fp, fv)
		if err != nil {
			return 0, err
		}
		if n != int64(int32(n)) {
			return 0, errorf(fp, fv, "%d overflows int32", n)
		}
		return E(n), nil
	}
	s, err := str(fp, fv)
	if err != nil {
		return 0, err
	}
	if !strings.HasPrefix(s, prefix) {
		s = prefix + strings.ToUpper(s)
	}
	e, err := parse(s)
	if err != nil {
		return 0, errorf(fp, fv, "%v", err)
	}
	return e, nil
}

// shortName is the inverse of enumField's short form.
func shortName(wireName, prefix string) string {
	return strings.ToLower(strings.TrimPrefix(wireName, prefix))
}
