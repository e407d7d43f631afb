package querysql

import (
	"strconv"
	"strings"

	"github.com/blastrain/vitess-sqlparser/sqlparser"

	"github.com/ruanwenjun/spark/internal/expr"
)

func convertSelectExpr(item sqlparser.SelectExpr) (expr.Expression, error) {
	switch s := item.(type) {
	case *sqlparser.StarExpr:
		return expr.Star(tableName(s.TableName)), nil
	case *sqlparser.AliasedExpr:
		e, err := convertExpr(s.Expr)
		if err != nil {
			return nil, err
		}
		if !s.As.IsEmpty() {
			return expr.As(e, s.As.String()), nil
		}
		return e, nil
	default:
		return nil, unsupported("select item %s", sqlparser.String(item))
	}
}

func convertArgs(items sqlparser.SelectExprs) ([]expr.Expression, error) {
	var args []expr.Expression
	for _, item := range items {
		e, err := convertSelectExpr(item)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return args, nil
}

// convertExpr maps a SQL expression onto the expression tree. Operators
// become unresolved functions named by their symbol; anything else is
// kept as unparsed SQL text.
func convertExpr(e sqlparser.Expr) (expr.Expression, error) {
	switch n := e.(type) {
	case *sqlparser.ColName:
		if n.Qualifier.IsEmpty() {
			return expr.Col(n.Name.String()), nil
		}
		return expr.Col(tableName(n.Qualifier) + "." + n.Name.String()), nil
	case *sqlparser.SQLVal:
		return convertValue(n)
	case *sqlparser.NullVal:
		return expr.Null(), nil
	case sqlparser.BoolVal:
		return expr.Bool(bool(n)), nil
	case *sqlparser.ParenExpr:
		return convertExpr(n.Expr)
	case *sqlparser.AndExpr:
		return binary("and", n.Left, n.Right)
	case *sqlparser.OrExpr:
		return binary("or", n.Left, n.Right)
	case *sqlparser.NotExpr:
		inner, err := convertExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return expr.Fn("not", inner), nil
	case *sqlparser.ComparisonExpr:
		return convertComparison(n)
	case *sqlparser.BinaryExpr:
		return binary(n.Operator, n.Left, n.Right)
	case *sqlparser.UnaryExpr:
		return convertUnary(n)
	case *sqlparser.RangeCond:
		return convertRange(n)
	case *sqlparser.IsExpr:
		inner, err := convertExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(n.Operator) {
		case sqlparser.IsNullStr:
			return expr.Fn("isnull", inner), nil
		case sqlparser.IsNotNullStr:
			return expr.Fn("isnotnull", inner), nil
		}
	case *sqlparser.FuncExpr:
		args, err := convertArgs(n.Exprs)
		if err != nil {
			return nil, err
		}
		name := n.Name.Lowered()
		if n.Distinct {
			return expr.DistinctFn(name, args...), nil
		}
		return expr.Fn(name, args...), nil
	}
	return expr.SQL(sqlparser.String(e)), nil
}

func binary(op string, left, right sqlparser.Expr) (expr.Expression, error) {
	l, err := convertExpr(left)
	if err != nil {
		return nil, err
	}
	r, err := convertExpr(right)
	if err != nil {
		return nil, err
	}
	return expr.Fn(strings.ToLower(op), l, r), nil
}

func convertComparison(c *sqlparser.ComparisonExpr) (expr.Expression, error) {
	op := strings.ToLower(c.Operator)
	if op != sqlparser.InStr && op != sqlparser.NotInStr {
		return binary(op, c.Left, c.Right)
	}

	tuple, ok := c.Right.(sqlparser.ValTuple)
	if !ok {
		return nil, unsupported("%s subquery", op)
	}
	left, err := convertExpr(c.Left)
	if err != nil {
		return nil, err
	}
	args := []expr.Expression{left}
	for _, v := range tuple {
		e, err := convertExpr(v)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return expr.Fn(op, args...), nil
}

func convertUnary(u *sqlparser.UnaryExpr) (expr.Expression, error) {
	if u.Operator == sqlparser.UMinusStr {
		if v, ok := u.Expr.(*sqlparser.SQLVal); ok {
			switch v.Type {
			case sqlparser.IntVal:
				n, err := strconv.ParseInt("-"+string(v.Val), 10, 64)
				if err == nil {
					return expr.Long(n), nil
				}
			case sqlparser.FloatVal:
				f, err := strconv.ParseFloat("-"+string(v.Val), 64)
				if err == nil {
					return expr.Double(f), nil
				}
			}
		}
		inner, err := convertExpr(u.Expr)
		if err != nil {
			return nil, err
		}
		return expr.Fn("negative", inner), nil
	}
	return expr.SQL(sqlparser.String(u)), nil
}

func convertRange(r *sqlparser.RangeCond) (expr.Expression, error) {
	left, err := convertExpr(r.Left)
	if err != nil {
		return nil, err
	}
	from, err := convertExpr(r.From)
	if err != nil {
		return nil, err
	}
	to, err := convertExpr(r.To)
	if err != nil {
		return nil, err
	}
	between := expr.Fn("and", expr.Fn(">=", left, from), expr.Fn("<=", left, to))
	if strings.EqualFold(r.Operator, sqlparser.NotBetweenStr) {
		return expr.Fn("not", between), nil
	}
	return between, nil
}

func convertValue(v *sqlparser.SQLVal) (expr.Expression, error) {
	switch v.Type {
	case sqlparser.IntVal:
		n, err := strconv.ParseInt(string(v.Val), 10, 64)
		if err != nil {
			return expr.SQL(string(v.Val)), nil
		}
		return expr.Long(n), nil
	case sqlparser.FloatVal:
		f, err := strconv.ParseFloat(string(v.Val), 64)
		if err != nil {
			return nil, unsupported("float literal %s", v.Val)
		}
		return expr.Double(f), nil
	case sqlparser.StrVal:
		return expr.Str(string(v.Val)), nil
	default:
		return nil, unsupported("literal %s", sqlparser.String(v))
	}
}
