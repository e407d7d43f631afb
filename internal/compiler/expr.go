package compiler

import (
	"slices"

	"cuelang.org/go/cue"

	"github.com/ruanwenjun/spark/internal/expr"
)

// Expression forms:
//
//	{col: "a"}                      column reference
//	{lit: 5}                        literal: int, float, string, bool or null
//	{fn: ">", args: [...]}          function or operator call
//	{fn: "count", distinct: true}   call over distinct values
//	{expr: "a + 1"}                 unparsed SQL expression
//	{star: ""}                      * (or t.* with a target)
//	{alias: {...}, as: "n"}         aliased expression; as may be a list
var exprForms = []string{"col", "lit", "fn", "expr", "star", "alias"}

func optionalExpr(path string, v cue.Value) (expr.Expression, error) {
	if !v.Exists() {
		return nil, nil
	}
	return compileExpr(path, v)
}

func exprList(path string, v cue.Value) ([]expr.Expression, error) {
	if !v.Exists() {
		return nil, nil
	}
	var out []expr.Expression
	err := each(path, v, func(ep string, ev cue.Value) error {
		e, err := compileExpr(ep, ev)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func compileExpr(path string, v cue.Value) (expr.Expression, error) {
	labels, err := fields(path, v, "col", "lit", "fn", "args", "distinct", "expr", "star", "alias", "as")
	if err != nil {
		return nil, err
	}

	var form string
	for _, label := range labels {
		if !slices.Contains(exprForms, label) {
			continue
		}
		if form != "" {
			return nil, errorf(path, v, "expression has both %s and %s", form, label)
		}
		form = label
	}
	if form == "" {
		return nil, errorf(path, v, "expression needs one of col, lit, fn, expr, star, alias")
	}
	for _, label := range labels {
		switch {
		case (label == "args" || label == "distinct") && form != "fn",
			label == "as" && form != "alias":
			return nil, errorf(join(path, label), v, "%s is not valid with %s", label, form)
		}
	}

	fv := lookup(v, form)
	fp := join(path, form)
	switch form {
	case "col":
		name, err := str(fp, fv)
		if err != nil {
			return nil, err
		}
		return expr.Col(name), nil
	case "lit":
		return compileLiteral(fp, fv)
	case "fn":
		name, err := str(fp, fv)
		if err != nil {
			return nil, err
		}
		args, err := exprList(join(path, "args"), lookup(v, "args"))
		if err != nil {
			return nil, err
		}
		distinct, err := optionalBool(join(path, "distinct"), lookup(v, "distinct"))
		if err != nil {
			return nil, err
		}
		if distinct {
			return expr.DistinctFn(name, args...), nil
		}
		return expr.Fn(name, args...), nil
	case "expr":
		text, err := str(fp, fv)
		if err != nil {
			return nil, err
		}
		return expr.SQL(text), nil
	case "star":
		target, err := str(fp, fv)
		if err != nil {
			return nil, err
		}
		return expr.Star(target), nil
	default:
		inner, err := compileExpr(fp, fv)
		if err != nil {
			return nil, err
		}
		names, err := aliasNames(join(path, "as"), lookup(v, "as"))
		if err != nil {
			return nil, err
		}
		return expr.As(inner, names...), nil
	}
}

func aliasNames(path string, v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, errorf(path, v, "alias requires as")
	}
	if v.Kind() == cue.StringKind {
		s, err := str(path, v)
		return []string{s}, err
	}
	return strList(path, v)
}

func compileLiteral(path string, v cue.Value) (expr.Expression, error) {
	switch v.Kind() {
	case cue.NullKind:
		return expr.Null(), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return expr.Bool(b), nil
	case cue.IntKind:
		n, err := int64Value(path, v)
		if err != nil {
			return nil, err
		}
		return expr.Long(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, errorf(path, v, "%v", err)
		}
		return expr.Double(f), nil
	case cue.StringKind:
		s, err := str(path, v)
		if err != nil {
			return nil, err
		}
		return expr.Str(s), nil
	default:
		return nil, errorf(path, v, "unsupported literal kind %v", v.Kind())
	}
}
