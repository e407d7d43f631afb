// Package querysql converts between SQL text and logical plans.
//
// Parse builds a Relation tree from a SELECT statement using the vitess
// SQL grammar. Statements or constructs that have no plan form here
// (DML, DDL, HAVING, window functions, ...) become a single SQL leaf that
// carries the original text, so every parseable statement yields a plan.
// Text the vitess grammar rejects is checked against the TiDB grammar
// shipped in the same module; statements only TiDB accepts (JOIN ... USING,
// for one) also become a SQL leaf. Only text neither grammar accepts is a
// ParseError.
//
// Render goes the other way, producing SQL text for a plan. Operators are
// folded into one SELECT while clause order allows and nested as derived
// tables otherwise.
package querysql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blastrain/vitess-sqlparser/sqlparser"
	tidb "github.com/blastrain/vitess-sqlparser/tidbparser/parser"

	"github.com/ruanwenjun/spark/internal/expr"
	"github.com/ruanwenjun/spark/internal/ir"
)

// ErrParse wraps syntax errors reported by the SQL grammar.
var ErrParse = errors.New("sql parse error")

// errUnsupported marks constructs that fall back to a SQL leaf.
var errUnsupported = errors.New("no plan form")

// ParseError carries the statement that failed to parse.
type ParseError struct {
	SQL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.SQL, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// Parse converts a SQL statement into a plan.
func Parse(sql string) (*ir.Relation, error) {
	sql = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if sql == "" {
		return nil, &ParseError{SQL: sql, Err: errors.New("empty statement")}
	}

	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		if acceptedByTiDB(sql) {
			return ir.NewSQL(sql), nil
		}
		return nil, &ParseError{SQL: sql, Err: err}
	}

	rel, err := buildStatement(stmt)
	if errors.Is(err, errUnsupported) {
		return ir.NewSQL(sql), nil
	}
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// acceptedByTiDB reports whether sql is a single statement in the MySQL
// dialect understood by the TiDB grammar.
func acceptedByTiDB(sql string) bool {
	stmts, err := tidb.New().Parse(sql, "", "")
	return err == nil && len(stmts) == 1
}

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUnsupported, fmt.Sprintf(format, args...))
}

func buildStatement(stmt sqlparser.Statement) (*ir.Relation, error) {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return buildSelect(s)
	case *sqlparser.Union:
		return buildUnion(s)
	case *sqlparser.ParenSelect:
		return buildStatement(s.Select)
	default:
		return nil, unsupported("statement %T", stmt)
	}
}

func buildUnion(u *sqlparser.Union) (*ir.Relation, error) {
	left, err := buildStatement(u.Left)
	if err != nil {
		return nil, err
	}
	right, err := buildStatement(u.Right)
	if err != nil {
		return nil, err
	}

	var all bool
	switch strings.ToLower(u.Type) {
	case sqlparser.UnionStr, sqlparser.UnionDistinctStr:
	case sqlparser.UnionAllStr:
		all = true
	default:
		return nil, unsupported("set operation %q", u.Type)
	}

	rel := ir.NewSetOperation(left, right, ir.SetOpTypeUnion, all)
	rel, err = applyOrderBy(rel, u.OrderBy)
	if err != nil {
		return nil, err
	}
	return applyLimit(rel, u.Limit)
}

// buildSelect stacks operators in SQL evaluation order:
// FROM, WHERE, GROUP BY, SELECT, DISTINCT, ORDER BY, OFFSET, LIMIT.
func buildSelect(sel *sqlparser.Select) (*ir.Relation, error) {
	if sel.Having != nil {
		return nil, unsupported("HAVING")
	}

	rel, err := buildFrom(sel.From)
	if err != nil {
		return nil, err
	}

	if sel.Where != nil && sel.Where.Expr != nil {
		cond, err := convertExpr(sel.Where.Expr)
		if err != nil {
			return nil, err
		}
		rel = ir.NewFilter(rel, cond)
	}

	if len(sel.GroupBy) > 0 || hasAggregate(sel.SelectExprs) {
		rel, err = buildAggregate(rel, sel)
	} else {
		rel, err = buildProjection(rel, sel.SelectExprs)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(sel.Distinct) != "" {
		rel = ir.NewDeduplicate(rel)
	}

	rel, err = applyOrderBy(rel, sel.OrderBy)
	if err != nil {
		return nil, err
	}
	return applyLimit(rel, sel.Limit)
}

func buildFrom(from sqlparser.TableExprs) (*ir.Relation, error) {
	if len(from) == 0 {
		return nil, unsupported("SELECT without FROM")
	}
	rel, err := buildTableExpr(from[0])
	if err != nil {
		return nil, err
	}
	// A comma-separated FROM list is a cross join.
	for _, te := range from[1:] {
		right, err := buildTableExpr(te)
		if err != nil {
			return nil, err
		}
		rel = ir.NewJoin(rel, right).As(ir.JoinTypeInner).Relation()
	}
	return rel, nil
}

func buildTableExpr(te sqlparser.TableExpr) (*ir.Relation, error) {
	switch t := te.(type) {
	case *sqlparser.AliasedTableExpr:
		var rel *ir.Relation
		switch src := t.Expr.(type) {
		case sqlparser.TableName:
			rel = ir.ReadTable(tableName(src))
		case *sqlparser.Subquery:
			sub, err := buildStatement(src.Select)
			if err != nil {
				return nil, err
			}
			rel = sub
		default:
			return nil, unsupported("table expression %T", t.Expr)
		}
		if !t.As.IsEmpty() {
			rel = ir.NewSubqueryAlias(rel, t.As.String())
		}
		return rel, nil
	case *sqlparser.ParenTableExpr:
		return buildFrom(t.Exprs)
	case *sqlparser.JoinTableExpr:
		return buildJoin(t)
	default:
		return nil, unsupported("table expression %T", te)
	}
}

var joinTypes = map[string]ir.JoinType{
	sqlparser.JoinStr:         ir.JoinTypeInner,
	sqlparser.StraightJoinStr: ir.JoinTypeInner,
	sqlparser.LeftJoinStr:     ir.JoinTypeLeftOuter,
	sqlparser.RightJoinStr:    ir.JoinTypeRightOuter,
}

func buildJoin(j *sqlparser.JoinTableExpr) (*ir.Relation, error) {
	jt, ok := joinTypes[strings.ToLower(j.Join)]
	if !ok {
		return nil, unsupported("join %q", j.Join)
	}
	left, err := buildTableExpr(j.LeftExpr)
	if err != nil {
		return nil, err
	}
	right, err := buildTableExpr(j.RightExpr)
	if err != nil {
		return nil, err
	}

	join := ir.NewJoin(left, right).As(jt)
	if j.On != nil {
		cond, err := convertExpr(j.On)
		if err != nil {
			return nil, err
		}
		join.On(cond)
	}
	return join.Relation(), nil
}

func buildProjection(input *ir.Relation, items sqlparser.SelectExprs) (*ir.Relation, error) {
	if len(items) == 1 {
		if star, ok := items[0].(*sqlparser.StarExpr); ok && star.TableName.IsEmpty() {
			return input, nil
		}
	}
	exprs := make([]expr.Expression, 0, len(items))
	for _, item := range items {
		e, err := convertSelectExpr(item)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return ir.NewProject(input, exprs...), nil
}

var aggregateFunctions = map[string]bool{
	"count": true, "sum": true, "avg": true, "mean": true, "min": true, "max": true,
	"first": true, "last": true, "collect_list": true, "collect_set": true,
	"stddev": true, "variance": true, "approx_count_distinct": true,
}

func aggregateCall(e sqlparser.Expr) (*sqlparser.FuncExpr, bool) {
	fn, ok := e.(*sqlparser.FuncExpr)
	if !ok || !aggregateFunctions[fn.Name.Lowered()] {
		return nil, false
	}
	return fn, true
}

func hasAggregate(items sqlparser.SelectExprs) bool {
	for _, item := range items {
		if ae, ok := item.(*sqlparser.AliasedExpr); ok {
			if _, ok := aggregateCall(ae.Expr); ok {
				return true
			}
		}
	}
	return false
}

// buildAggregate maps GROUP BY and aggregate calls onto an Aggregate node.
// Select items must be grouping expressions or aggregate calls. When they
// are aliased or reordered, a Project over the aggregate output restores
// the select list, referencing output columns by their rendered names.
func buildAggregate(input *ir.Relation, sel *sqlparser.Select) (*ir.Relation, error) {
	grouping := make([]expr.Expression, 0, len(sel.GroupBy))
	groupingNames := make(map[string]bool, len(sel.GroupBy))
	for _, g := range sel.GroupBy {
		e, err := convertExpr(g)
		if err != nil {
			return nil, err
		}
		grouping = append(grouping, e)
		groupingNames[e.String()] = true
	}

	var (
		results    []ir.AggregateFunction
		outputs    []expr.Expression
		needsFinal bool
	)
	for _, item := range sel.SelectExprs {
		ae, ok := item.(*sqlparser.AliasedExpr)
		if !ok {
			return nil, unsupported("select item %s with GROUP BY", sqlparser.String(item))
		}

		var name string
		if fn, ok := aggregateCall(ae.Expr); ok {
			if fn.Distinct {
				return nil, unsupported("DISTINCT aggregate")
			}
			args, err := convertArgs(fn.Exprs)
			if err != nil {
				return nil, err
			}
			agg := ir.Agg(fn.Name.Lowered(), args...)
			results = append(results, agg)
			name = expr.Fn(agg.Name, agg.Arguments...).String()
		} else {
			e, err := convertExpr(ae.Expr)
			if err != nil {
				return nil, err
			}
			name = e.String()
			if !groupingNames[name] {
				return nil, unsupported("%s is neither grouped nor aggregated", name)
			}
		}

		var out expr.Expression = expr.Col(name)
		if !ae.As.IsEmpty() {
			out = expr.As(out, ae.As.String())
			needsFinal = true
		}
		outputs = append(outputs, out)
	}

	rel := ir.NewAggregate(input, grouping, results...)

	natural := len(grouping) + len(results)
	if len(outputs) != natural {
		needsFinal = true
	} else {
		for i, g := range grouping {
			if outputs[i].String() != g.String() {
				needsFinal = true
				break
			}
		}
	}
	if needsFinal {
		rel = ir.NewProject(rel, outputs...)
	}
	return rel, nil
}

func applyOrderBy(rel *ir.Relation, orderBy sqlparser.OrderBy) (*ir.Relation, error) {
	if len(orderBy) == 0 {
		return rel, nil
	}
	fields := make([]ir.SortField, 0, len(orderBy))
	for _, o := range orderBy {
		e, err := convertExpr(o.Expr)
		if err != nil {
			return nil, err
		}
		field := ir.SortField{Expression: e, Direction: ir.SortDirectionAscending}
		if strings.EqualFold(o.Direction, sqlparser.DescScr) {
			field.Direction = ir.SortDirectionDescending
		}
		fields = append(fields, field)
	}
	return ir.NewSort(rel, fields...), nil
}

func applyLimit(rel *ir.Relation, limit *sqlparser.Limit) (*ir.Relation, error) {
	if limit == nil {
		return rel, nil
	}
	if limit.Offset != nil {
		n, err := intValue(limit.Offset)
		if err != nil {
			return nil, err
		}
		rel = ir.NewOffset(rel, n)
	}
	if limit.Rowcount != nil {
		n, err := intValue(limit.Rowcount)
		if err != nil {
			return nil, err
		}
		rel = ir.NewLimit(rel, n)
	}
	return rel, nil
}

func intValue(e sqlparser.Expr) (int32, error) {
	v, ok := e.(*sqlparser.SQLVal)
	if !ok || v.Type != sqlparser.IntVal {
		return 0, unsupported("non-literal limit %s", sqlparser.String(e))
	}
	n, err := strconv.ParseInt(string(v.Val), 10, 32)
	if err != nil {
		return 0, unsupported("limit %s: %v", v.Val, err)
	}
	return int32(n), nil
}

func tableName(t sqlparser.TableName) string {
	if t.Qualifier.IsEmpty() {
		return t.Name.String()
	}
	return t.Qualifier.String() + "." + t.Name.String()
}
