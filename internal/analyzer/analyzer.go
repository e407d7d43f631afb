package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruanwenjun/spark/internal/ir"
)

// Semantic diagnostic codes (E300-E399)
const (
	// Conflicts (E301-E319)
	ErrJoinUsingAndCondition = "E301" // using_columns and join_condition both set
	ErrSampleBounds          = "E302" // bounds outside [0,1] or lower > upper
	ErrNegativeLimit         = "E303" // limit below zero
	ErrNegativeOffset        = "E304" // offset below zero
	ErrZeroStep              = "E305" // explicit range step of zero
	ErrNumPartitions         = "E306" // explicit partition count <= 0
	ErrDeduplicateKeys       = "E307" // column_names with all_columns_as_keys
	ErrByNameNotUnion        = "E308" // by_name on intersect or except
	ErrUnsupportedVariant    = "E309" // variant this planner cannot plan

	// Warnings (E320-E339)
	WarnJoinTypeUnspecified      = "E320"
	WarnSetOpTypeUnspecified     = "E321"
	WarnSortDirectionUnspecified = "E322"
	WarnSortNullsUnspecified     = "E323"
	WarnJoinWithoutCondition     = "E324" // cartesian product
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityConflict Severity = "conflict"
	SeverityWarning  Severity = "warning"
)

// Diagnostic is one semantic finding. Field is the path from the root,
// in the same form ir.ValidationError uses.
type Diagnostic struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Code, d.Field, d.Message)
}

// Result contains the semantic analysis of a plan.
type Result struct {
	// Conflicts make the plan unplannable.
	Conflicts []Diagnostic `json:"conflicts"`

	// Warnings flag values the engine will default.
	Warnings []Diagnostic `json:"warnings"`
}

// OK reports whether the plan has no conflicts.
func (r Result) OK() bool {
	return len(r.Conflicts) == 0
}

// Err returns a *PlanningError for the conflicts, or nil.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &PlanningError{Diagnostics: r.Conflicts}
}

// PlanningError is the descriptive failure reported back to the caller
// when a plan decodes but cannot be planned.
type PlanningError struct {
	Diagnostics []Diagnostic
}

func (e *PlanningError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.String()
	}
	return "planning failed: " + strings.Join(msgs, "; ")
}

// IsPlanningError reports whether err is or wraps a *PlanningError.
func IsPlanningError(err error) bool {
	var pe *PlanningError
	return errors.As(err, &pe)
}

// Analyze checks the semantic rules of every node reachable from rel.
// Structural problems (missing inputs, missing variants) are skipped here;
// run ir.Validate first, or use Check.
func Analyze(rel *ir.Relation) Result {
	a := &analyzer{
		result: Result{
			Conflicts: []Diagnostic{},
			Warnings:  []Diagnostic{},
		},
		seen: make(map[*ir.Relation]bool),
	}
	a.relation("root", rel)
	return a.result
}

// Check runs structural validation and then semantic analysis. It returns
// *ir.InvalidPlanError for structural problems, *PlanningError for
// conflicts, and nil otherwise. Warnings never fail a plan.
func Check(rel *ir.Relation) error {
	if errs := ir.Validate(rel); len(errs) > 0 {
		return &ir.InvalidPlanError{Errors: errs}
	}
	return Analyze(rel).Err()
}

type analyzer struct {
	result Result
	seen   map[*ir.Relation]bool
}

func (a *analyzer) conflict(path, code, format string, args ...any) {
	a.result.Conflicts = append(a.result.Conflicts, Diagnostic{
		Field:    path,
		Message:  fmt.Sprintf(format, args...),
		Code:     code,
		Severity: SeverityConflict,
	})
}

func (a *analyzer) warn(path, code, format string, args ...any) {
	a.result.Warnings = append(a.result.Warnings, Diagnostic{
		Field:    path,
		Message:  fmt.Sprintf(format, args...),
		Code:     code,
		Severity: SeverityWarning,
	})
}

func (a *analyzer) relation(path string, rel *ir.Relation) {
	if rel == nil || a.seen[rel] || rel.Which() == ir.KindUnset {
		return
	}
	a.seen[rel] = true
	path = path + "." + rel.WhichOneof()

	switch n := rel.Variant().(type) {
	case *ir.Join:
		a.join(path, n)
		a.relation(path+".left", n.Left)
		a.relation(path+".right", n.Right)
	case *ir.SetOperation:
		a.setOperation(path, n)
		a.relation(path+".left_input", n.LeftInput)
		a.relation(path+".right_input", n.RightInput)
	case *ir.Sort:
		for i, f := range n.SortFields {
			fp := fmt.Sprintf("%s.sort_fields[%d]", path, i)
			if f.Direction == ir.SortDirectionUnspecified {
				a.warn(fp+".direction", WarnSortDirectionUnspecified, "sort direction unspecified; engine default applies")
			}
			if f.Nulls == ir.SortNullsUnspecified {
				a.warn(fp+".nulls", WarnSortNullsUnspecified, "null ordering unspecified; engine default applies")
			}
		}
		a.relation(path+".input", n.Input)
	case *ir.Limit:
		if n.Limit < 0 {
			a.conflict(path+".limit", ErrNegativeLimit, "limit must not be negative, got %d", n.Limit)
		}
		a.relation(path+".input", n.Input)
	case *ir.Offset:
		if n.Offset < 0 {
			a.conflict(path+".offset", ErrNegativeOffset, "offset must not be negative, got %d", n.Offset)
		}
		a.relation(path+".input", n.Input)
	case *ir.Sample:
		a.sample(path, n)
		a.relation(path+".input", n.Input)
	case *ir.Range:
		if n.Step != nil && n.Step.Step == 0 {
			a.conflict(path+".step", ErrZeroStep, "step must not be zero")
		}
		if n.NumPartitions != nil && n.NumPartitions.NumPartitions <= 0 {
			a.conflict(path+".num_partitions", ErrNumPartitions, "num_partitions must be positive, got %d", n.NumPartitions.NumPartitions)
		}
	case *ir.Deduplicate:
		if n.AllColumnsAsKeys && len(n.ColumnNames) > 0 {
			a.conflict(path, ErrDeduplicateKeys, "column_names and all_columns_as_keys are mutually exclusive")
		}
		a.relation(path+".input", n.Input)
	case *ir.Unknown:
		a.conflict(path, ErrUnsupportedVariant, "relation variant is not supported by this planner")
	default:
		for _, child := range rel.Children() {
			a.relation(path+".input", child)
		}
	}
}

func (a *analyzer) join(path string, j *ir.Join) {
	if len(j.UsingColumns) > 0 && j.JoinCondition != nil {
		a.conflict(path, ErrJoinUsingAndCondition,
			"using_columns %v and join_condition %s are mutually exclusive",
			j.UsingColumns, j.JoinCondition.String())
	}
	if j.JoinType == ir.JoinTypeUnspecified {
		a.warn(path+".join_type", WarnJoinTypeUnspecified, "join type unspecified; engine default applies")
	}
	if len(j.UsingColumns) == 0 && j.JoinCondition == nil {
		a.warn(path, WarnJoinWithoutCondition, "join has no condition and no using columns; every pair of rows matches")
	}
}

func (a *analyzer) setOperation(path string, s *ir.SetOperation) {
	if s.SetOpType == ir.SetOpTypeUnspecified {
		a.warn(path+".set_op_type", WarnSetOpTypeUnspecified, "set operation type unspecified; engine default applies")
	}
	if s.ByName && s.SetOpType != ir.SetOpTypeUnion && s.SetOpType != ir.SetOpTypeUnspecified {
		a.conflict(path+".by_name", ErrByNameNotUnion, "by_name is only valid for union, got %s", s.SetOpType)
	}
}

func (a *analyzer) sample(path string, s *ir.Sample) {
	lo, hi := s.LowerBound, s.UpperBound
	switch {
	case lo < 0 || lo > 1 || hi < 0 || hi > 1:
		a.conflict(path, ErrSampleBounds, "bounds [%g, %g] must lie within [0, 1]", lo, hi)
	case lo > hi:
		a.conflict(path, ErrSampleBounds, "lower bound %g exceeds upper bound %g", lo, hi)
	}
}
