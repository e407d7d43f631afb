package querysql

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ruanwenjun/spark/internal/adapt"
	"github.com/ruanwenjun/spark/internal/expr"
	"github.com/ruanwenjun/spark/internal/ir"
)

// ErrNotRenderable is returned for plans that have no SQL text form, such
// as a LocalRelation (its rows live on the client).
var ErrNotRenderable = errors.New("plan has no SQL form")

// Render produces SQL text for rel.
//
// Output is deterministic: derived tables are named _1, _2, ... in the
// order they are created.
func Render(rel *ir.Relation) (string, error) {
	if errs := ir.Validate(rel); len(errs) > 0 {
		return "", &ir.InvalidPlanError{Errors: errs}
	}
	r := &renderer{}
	q, err := r.relation(rel)
	if err != nil {
		return "", err
	}
	return q.String(), nil
}

// query is one SELECT under construction. A query whose raw field is set
// is already complete text (a set operation or a SQL leaf) and can only
// be used as a derived table.
type query struct {
	raw string

	distinct   bool
	columns    []string
	aggregated bool
	from       string
	where      []string
	groupBy    []string
	orderBy    []string
	limit      *int32
	offset     *int32

	// table is the bare table name while the query is "SELECT * FROM table".
	table string
}

func (q *query) String() string {
	if q.raw != "" {
		return q.raw
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.distinct {
		sb.WriteString("DISTINCT ")
	}
	if len(q.columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(q.columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(q.from)
	if len(q.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.where, " AND "))
	}
	if len(q.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(q.groupBy, ", "))
	}
	if len(q.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(q.orderBy, ", "))
	}
	if q.limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(int(*q.limit)))
	}
	if q.offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(int(*q.offset)))
	}
	return sb.String()
}

type renderer struct {
	aliases int
}

// derive wraps q as a derived table of a fresh query.
func (r *renderer) derive(q *query) *query {
	r.aliases++
	return &query{from: fmt.Sprintf("(%s) AS _%d", q, r.aliases)}
}

// source returns q as a FROM item.
func (r *renderer) source(q *query) string {
	if q.table != "" {
		return q.table
	}
	return r.derive(q).from
}

func exprStrings(es []expr.Expression) []string {
	return slices.Collect(adapt.Map(slices.Values(es), expr.Expression.String))
}

func (r *renderer) relation(rel *ir.Relation) (*query, error) {
	switch n := rel.Variant().(type) {
	case *ir.Read:
		return r.read(n)
	case *ir.SQL:
		return &query{raw: n.Query}, nil
	case *ir.Range:
		args := []string{strconv.FormatInt(n.Start, 10), strconv.FormatInt(n.End, 10)}
		if n.Step != nil || n.NumPartitions != nil {
			step := int64(1)
			if n.Step != nil {
				step = n.Step.Step
			}
			args = append(args, strconv.FormatInt(step, 10))
		}
		if n.NumPartitions != nil {
			args = append(args, strconv.Itoa(int(n.NumPartitions.NumPartitions)))
		}
		return &query{from: "range(" + strings.Join(args, ", ") + ")"}, nil
	case *ir.Filter:
		q, err := r.relation(n.Input)
		if err != nil {
			return nil, err
		}
		if q.raw != "" || q.columns != nil || q.aggregated || q.distinct || q.orderBy != nil || q.limit != nil || q.offset != nil {
			q = r.derive(q)
		}
		q.table = ""
		q.where = append(q.where, n.Condition.String())
		return q, nil
	case *ir.Project:
		q, err := r.relation(n.Input)
		if err != nil {
			return nil, err
		}
		if q.raw != "" || q.columns != nil || q.aggregated || q.distinct {
			q = r.derive(q)
		}
		q.table = ""
		q.columns = exprStrings(n.Expressions)
		return q, nil
	case *ir.Aggregate:
		q, err := r.relation(n.Input)
		if err != nil {
			return nil, err
		}
		if q.raw != "" || q.columns != nil || q.aggregated || q.distinct || q.orderBy != nil || q.limit != nil || q.offset != nil {
			q = r.derive(q)
		}
		q.table = ""
		q.aggregated = true
		q.groupBy = exprStrings(n.GroupingExpressions)
		q.columns = slices.Clone(q.groupBy)
		for _, fn := range n.ResultExpressions {
			q.columns = append(q.columns, expr.Fn(fn.Name, fn.Arguments...).String())
		}
		return q, nil
	case *ir.Deduplicate:
		if !n.AllColumnsAsKeys || len(n.ColumnNames) > 0 {
			return nil, fmt.Errorf("%w: deduplicate on a column subset", ErrNotRenderable)
		}
		q, err := r.relation(n.Input)
		if err != nil {
			return nil, err
		}
		if q.raw != "" || q.distinct || q.orderBy != nil || q.limit != nil || q.offset != nil {
			q = r.derive(q)
		}
		q.table = ""
		q.distinct = true
		return q, nil
	case *ir.Sort:
		q, err := r.relation(n.Input)
		if err != nil {
			return nil, err
		}
		if q.raw != "" || q.orderBy != nil || q.limit != nil || q.offset != nil {
			q = r.derive(q)
		}
		q.table = ""
		for _, f := range n.SortFields {
			q.orderBy = append(q.orderBy, sortKey(f))
		}
		return q, nil
	case *ir.Limit:
		q, err := r.relation(n.Input)
		if err != nil {
			return nil, err
		}
		if q.raw != "" || q.limit != nil {
			q = r.derive(q)
		}
		q.table = ""
		limit := n.Limit
		q.limit = &limit
		return q, nil
	case *ir.Offset:
		q, err := r.relation(n.Input)
		if err != nil {
			return nil, err
		}
		// SQL applies OFFSET before LIMIT, so an offset over a limit nests.
		if q.raw != "" || q.limit != nil || q.offset != nil {
			q = r.derive(q)
		}
		q.table = ""
		offset := n.Offset
		q.offset = &offset
		return q, nil
	case *ir.SubqueryAlias:
		q, err := r.relation(n.Input)
		if err != nil {
			return nil, err
		}
		if q.table != "" {
			return &query{from: q.table + " AS " + n.Alias}, nil
		}
		return &query{from: "(" + q.String() + ") AS " + n.Alias}, nil
	case *ir.Join:
		return r.join(n)
	case *ir.SetOperation:
		return r.setOperation(n)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotRenderable, rel.WhichOneof())
	}
}

func (r *renderer) read(n *ir.Read) (*query, error) {
	switch src := n.Source.(type) {
	case *ir.NamedTable:
		return &query{from: src.UnparsedIdentifier, table: src.UnparsedIdentifier}, nil
	case *ir.DataSource:
		path, ok := src.Options.Get("path")
		if !ok {
			return nil, fmt.Errorf("%w: data source without a path option", ErrNotRenderable)
		}
		return &query{from: src.Format + ".`" + strings.ReplaceAll(path, "`", "``") + "`"}, nil
	}
	return nil, fmt.Errorf("%w: read without source", ErrNotRenderable)
}

var joinKeywords = map[ir.JoinType]string{
	ir.JoinTypeUnspecified: "JOIN",
	ir.JoinTypeInner:       "INNER JOIN",
	ir.JoinTypeFullOuter:   "FULL OUTER JOIN",
	ir.JoinTypeLeftOuter:   "LEFT OUTER JOIN",
	ir.JoinTypeRightOuter:  "RIGHT OUTER JOIN",
	ir.JoinTypeLeftAnti:    "LEFT ANTI JOIN",
	ir.JoinTypeLeftSemi:    "LEFT SEMI JOIN",
}

func (r *renderer) join(n *ir.Join) (*query, error) {
	keyword, ok := joinKeywords[n.JoinType]
	if !ok {
		return nil, fmt.Errorf("%w: join type %s", ErrNotRenderable, n.JoinType)
	}
	left, err := r.relation(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := r.relation(n.Right)
	if err != nil {
		return nil, err
	}

	from := r.joinSource(left) + " " + keyword + " " + r.joinSource(right)
	if n.JoinCondition != nil {
		from += " ON " + n.JoinCondition.String()
	}
	if len(n.UsingColumns) > 0 {
		from += " USING (" + strings.Join(n.UsingColumns, ", ") + ")"
	}
	return &query{from: from}, nil
}

// joinSource returns q as one side of a join. Plain reads and aliased
// reads are used as is.
func (r *renderer) joinSource(q *query) string {
	if q.raw == "" && q.columns == nil && q.where == nil && !q.distinct &&
		q.orderBy == nil && q.limit == nil && q.offset == nil && !q.aggregated {
		return q.from
	}
	return r.source(q)
}

var setOpKeywords = map[ir.SetOpType]string{
	ir.SetOpTypeUnion:     "UNION",
	ir.SetOpTypeIntersect: "INTERSECT",
	ir.SetOpTypeExcept:    "EXCEPT",
}

func (r *renderer) setOperation(n *ir.SetOperation) (*query, error) {
	keyword, ok := setOpKeywords[n.SetOpType]
	if !ok {
		return nil, fmt.Errorf("%w: set operation type %s", ErrNotRenderable, n.SetOpType)
	}
	if n.ByName {
		return nil, fmt.Errorf("%w: set operation by name", ErrNotRenderable)
	}
	if n.IsAll {
		keyword += " ALL"
	}
	left, err := r.relation(n.LeftInput)
	if err != nil {
		return nil, err
	}
	right, err := r.relation(n.RightInput)
	if err != nil {
		return nil, err
	}
	return &query{raw: r.operand(left) + " " + keyword + " " + r.operand(right)}, nil
}

// operand returns q as a set operation input. Inputs with ORDER BY or
// LIMIT are parenthesized so the clause stays with its own SELECT.
func (r *renderer) operand(q *query) string {
	if q.raw == "" && q.orderBy == nil && q.limit == nil && q.offset == nil {
		return q.String()
	}
	return "(" + q.String() + ")"
}

func sortKey(f ir.SortField) string {
	key := f.Expression.String()
	switch f.Direction {
	case ir.SortDirectionAscending:
		key += " ASC"
	case ir.SortDirectionDescending:
		key += " DESC"
	}
	switch f.Nulls {
	case ir.SortNullsFirst:
		key += " NULLS FIRST"
	case ir.SortNullsLast:
		key += " NULLS LAST"
	}
	return key
}
