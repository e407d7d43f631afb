package ir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruanwenjun/spark/internal/expr"
)

// Structural validation error codes (E200-E209)
const (
	ErrMissingVariant = "E201" // node has no variant set
	ErrMissingInput   = "E202" // input-bearing variant without its input
	ErrMissingField   = "E203" // required scalar or message field is empty
	ErrSharedNode     = "E204" // node reachable twice (shared or cyclic)
	ErrNilExpression  = "E205" // nil expression in a sequence or nested argument
	ErrMissingSource  = "E206" // read without a named table or data source
)

// ErrInvalidPlan is matched by errors.Is for every *InvalidPlanError.
var ErrInvalidPlan = errors.New("invalid plan")

// ValidationError is one structural problem in a plan. Field is the path
// from the root, e.g. "root.filter.input.read".
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// InvalidPlanError is returned by Marshal and Unmarshal for a plan that
// fails structural validation.
type InvalidPlanError struct {
	Errors []ValidationError
}

func (e *InvalidPlanError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return "invalid plan: " + strings.Join(msgs, "; ")
}

func (e *InvalidPlanError) Unwrap() error { return ErrInvalidPlan }

// Validate checks the structure of the tree rooted at r.
// Returns all errors found (does not fail-fast).
//
// Only structural rules are checked here. Cross-field rules such as the
// exclusivity of Join.UsingColumns and Join.JoinCondition belong to the
// planner; see internal/analyzer.
func Validate(r *Relation) []ValidationError {
	v := &validator{seen: make(map[*Relation]bool)}
	if r == nil {
		v.add("root", ErrMissingVariant, "plan is nil")
		return v.errs
	}
	v.relation("root", r)
	return v.errs
}

type validator struct {
	errs []ValidationError
	seen map[*Relation]bool
}

func (v *validator) add(path, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   path,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) relation(path string, r *Relation) {
	if v.seen[r] {
		v.add(path, ErrSharedNode, "node already appears elsewhere in the plan")
		return
	}
	v.seen[r] = true

	kind := r.Which()
	if kind == KindUnset {
		v.add(path, ErrMissingVariant, "exactly one variant must be set")
		return
	}
	path = path + "." + kind.String()

	switch n := r.rel.(type) {
	case *Read:
		v.read(path, n)
	case *Project:
		v.input(path, "input", n.Input)
		v.exprs(path+".expressions", n.Expressions)
	case *Filter:
		v.input(path, "input", n.Input)
		if n.Condition == nil {
			v.add(path+".condition", ErrMissingField, "filter condition is required")
		} else {
			v.expr(path+".condition", n.Condition)
		}
	case *Join:
		v.input(path, "left", n.Left)
		v.input(path, "right", n.Right)
		if n.JoinCondition != nil {
			v.expr(path+".join_condition", n.JoinCondition)
		}
	case *SetOperation:
		v.input(path, "left_input", n.LeftInput)
		v.input(path, "right_input", n.RightInput)
	case *Sort:
		v.input(path, "input", n.Input)
		if len(n.SortFields) == 0 {
			v.add(path+".sort_fields", ErrMissingField, "at least one sort field is required")
		}
		for i, f := range n.SortFields {
			fp := fmt.Sprintf("%s.sort_fields[%d].expression", path, i)
			if f.Expression == nil {
				v.add(fp, ErrMissingField, "sort expression is required")
			} else {
				v.expr(fp, f.Expression)
			}
		}
	case *Limit:
		v.input(path, "input", n.Input)
	case *Offset:
		v.input(path, "input", n.Input)
	case *Aggregate:
		v.input(path, "input", n.Input)
		v.exprs(path+".grouping_expressions", n.GroupingExpressions)
		for i, fn := range n.ResultExpressions {
			fp := fmt.Sprintf("%s.result_expressions[%d]", path, i)
			if fn.Name == "" {
				v.add(fp+".name", ErrMissingField, "aggregate function name is required")
			}
			v.exprs(fp+".arguments", fn.Arguments)
		}
	case *SQL:
		if strings.TrimSpace(n.Query) == "" {
			v.add(path+".query", ErrMissingField, "query text is required")
		}
	case *Sample:
		v.input(path, "input", n.Input)
	case *Deduplicate:
		v.input(path, "input", n.Input)
	case *SubqueryAlias:
		v.input(path, "input", n.Input)
		if n.Alias == "" {
			v.add(path+".alias", ErrMissingField, "alias is required")
		}
	case *LocalRelation, *Range, *Unknown:
		// Leaves without required references. Range.end presence is a
		// wire property and is enforced by the decoder.
	}
}

func (v *validator) read(path string, n *Read) {
	switch src := n.Source.(type) {
	case *NamedTable:
		if src == nil || src.UnparsedIdentifier == "" {
			v.add(path+".named_table.unparsed_identifier", ErrMissingField, "table identifier is required")
		}
	case *DataSource:
		if src == nil || src.Format == "" {
			v.add(path+".data_source.format", ErrMissingField, "data source format is required")
		}
	default:
		v.add(path, ErrMissingSource, "read requires a named table or a data source")
	}
}

func (v *validator) input(path, name string, in *Relation) {
	if in == nil {
		v.add(path+"."+name, ErrMissingInput, "%s is required", name)
		return
	}
	v.relation(path+"."+name, in)
}

func (v *validator) exprs(path string, es []expr.Expression) {
	for i, e := range es {
		ep := fmt.Sprintf("%s[%d]", path, i)
		if e == nil {
			v.add(ep, ErrNilExpression, "expression must not be nil")
			continue
		}
		v.expr(ep, e)
	}
}

// expr checks the nested operands of a non-nil expression.
func (v *validator) expr(path string, e expr.Expression) {
	switch n := e.(type) {
	case *expr.UnresolvedFunction:
		if n == nil {
			v.add(path, ErrNilExpression, "expression must not be nil")
			return
		}
		v.exprs(path+".arguments", n.Arguments)
	case *expr.Alias:
		if n == nil {
			v.add(path, ErrNilExpression, "expression must not be nil")
			return
		}
		if n.Expr == nil {
			v.add(path+".expr", ErrNilExpression, "aliased expression must not be nil")
			return
		}
		v.expr(path+".expr", n.Expr)
	}
}
