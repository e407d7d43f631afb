// Package expr defines the expression trees referenced by plan nodes:
// filter conditions, projected columns, sort keys, and aggregate arguments.
//
// The plan layer treats expressions as opaque values. It only relies on an
// expression being independently constructible, serializable, and owned by
// the single plan node that embeds it.
//
// Expression is a sealed interface; only types in this package implement
// it, so consumers can switch exhaustively over the variants.
package expr

import (
	"strconv"
	"strings"

	"github.com/ruanwenjun/spark/internal/wire"
)

// Expression is a scalar computation tree.
type Expression interface {
	String() string

	expressionNode() // seals the interface
}

// LiteralKind identifies which value a Literal carries.
type LiteralKind int

const (
	LiteralNull LiteralKind = iota
	LiteralBoolean
	LiteralLong
	LiteralDouble
	LiteralString
)

// Literal is a constant value.
type Literal struct {
	Kind    LiteralKind
	Boolean bool
	Long    int64
	Double  float64
	Str     string

	unknown wire.Unknown
}

func (*Literal) expressionNode() {}

func (l *Literal) String() string {
	switch l.Kind {
	case LiteralBoolean:
		if l.Boolean {
			return "TRUE"
		}
		return "FALSE"
	case LiteralLong:
		return strconv.FormatInt(l.Long, 10)
	case LiteralDouble:
		return strconv.FormatFloat(l.Double, 'g', -1, 64)
	case LiteralString:
		return "'" + strings.ReplaceAll(l.Str, "'", "''") + "'"
	default:
		return "NULL"
	}
}

// Null returns a NULL literal.
func Null() *Literal { return &Literal{Kind: LiteralNull} }

// Bool returns a boolean literal.
func Bool(v bool) *Literal { return &Literal{Kind: LiteralBoolean, Boolean: v} }

// Long returns a 64-bit integer literal.
func Long(v int64) *Literal { return &Literal{Kind: LiteralLong, Long: v} }

// Double returns a floating point literal.
func Double(v float64) *Literal { return &Literal{Kind: LiteralDouble, Double: v} }

// Str returns a string literal.
func Str(v string) *Literal { return &Literal{Kind: LiteralString, Str: v} }

// UnresolvedAttribute references a column by its (possibly qualified)
// name. Resolution happens on the server.
type UnresolvedAttribute struct {
	UnparsedIdentifier string

	unknown wire.Unknown
}

func (*UnresolvedAttribute) expressionNode() {}

func (a *UnresolvedAttribute) String() string { return a.UnparsedIdentifier }

// Col returns a column reference.
func Col(name string) *UnresolvedAttribute {
	return &UnresolvedAttribute{UnparsedIdentifier: name}
}

// UnresolvedFunction is a call to a function or operator resolved by name
// on the server. Binary operators use their symbol as the name (">", "and").
type UnresolvedFunction struct {
	FunctionName string
	Arguments    []Expression
	IsDistinct   bool

	unknown wire.Unknown
}

func (*UnresolvedFunction) expressionNode() {}

func (f *UnresolvedFunction) String() string {
	if isBinaryOperator(f.FunctionName) && len(f.Arguments) == 2 {
		return "(" + text(f.Arguments[0]) + " " + strings.ToUpper(f.FunctionName) + " " + text(f.Arguments[1]) + ")"
	}
	if strings.EqualFold(f.FunctionName, "not") && len(f.Arguments) == 1 {
		return "(NOT " + text(f.Arguments[0]) + ")"
	}
	if isMembership(f.FunctionName) && len(f.Arguments) > 1 {
		list := make([]string, len(f.Arguments)-1)
		for i, arg := range f.Arguments[1:] {
			list[i] = text(arg)
		}
		return "(" + text(f.Arguments[0]) + " " + strings.ToUpper(f.FunctionName) + " (" + strings.Join(list, ", ") + "))"
	}

	var sb strings.Builder
	sb.WriteString(f.FunctionName)
	sb.WriteByte('(')
	if f.IsDistinct {
		sb.WriteString("DISTINCT ")
	}
	for i, arg := range f.Arguments {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(text(arg))
	}
	sb.WriteByte(')')
	return sb.String()
}

// text renders e, or "<nil>" for a missing operand.
func text(e Expression) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

// Fn returns a function call.
func Fn(name string, args ...Expression) *UnresolvedFunction {
	return &UnresolvedFunction{FunctionName: name, Arguments: args}
}

// DistinctFn returns a function call over distinct argument values.
func DistinctFn(name string, args ...Expression) *UnresolvedFunction {
	return &UnresolvedFunction{FunctionName: name, Arguments: args, IsDistinct: true}
}

var binaryOperators = map[string]bool{
	"=": true, "==": true, "<=>": true, "!=": true, "<>": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"and": true, "or": true, "like": true, "not like": true,
}

func isBinaryOperator(name string) bool {
	return binaryOperators[strings.ToLower(name)]
}

// isMembership reports whether name is IN or NOT IN, whose first argument
// is tested against the rest.
func isMembership(name string) bool {
	name = strings.ToLower(name)
	return name == "in" || name == "not in"
}

// ExpressionString is an expression kept as unparsed SQL text.
type ExpressionString struct {
	Expression string

	unknown wire.Unknown
}

func (*ExpressionString) expressionNode() {}

func (e *ExpressionString) String() string { return e.Expression }

// SQL returns an unparsed SQL expression.
func SQL(text string) *ExpressionString {
	return &ExpressionString{Expression: text}
}

// UnresolvedStar expands to all columns, optionally of a single relation.
type UnresolvedStar struct {
	Target string // empty for a bare "*"

	unknown wire.Unknown
}

func (*UnresolvedStar) expressionNode() {}

func (s *UnresolvedStar) String() string {
	if s.Target == "" {
		return "*"
	}
	return s.Target + ".*"
}

// Star returns "*"; with a target it returns "target.*".
func Star(target string) *UnresolvedStar {
	return &UnresolvedStar{Target: target}
}

// Alias names the result of an expression. Multiple names are used by
// generator functions that produce several columns.
type Alias struct {
	Expr Expression
	Name []string

	unknown wire.Unknown
}

func (*Alias) expressionNode() {}

func (a *Alias) String() string {
	inner := text(a.Expr)
	switch len(a.Name) {
	case 0:
		return inner
	case 1:
		return inner + " AS " + a.Name[0]
	default:
		return inner + " AS (" + strings.Join(a.Name, ", ") + ")"
	}
}

// As aliases e.
func As(e Expression, names ...string) *Alias {
	return &Alias{Expr: e, Name: names}
}

// Opaque holds an expression variant this build does not recognize. It is
// produced only by the decoder and re-encodes to the original bytes.
type Opaque struct {
	raw []byte
}

func (*Opaque) expressionNode() {}

func (*Opaque) String() string { return "<unrecognized expression>" }

// QualifiedAttribute describes a column of a local relation.
type QualifiedAttribute struct {
	Name string
	Type string // engine type name, e.g. "bigint", "string"

	unknown wire.Unknown
}

// Attr returns a qualified attribute.
func Attr(name, typ string) QualifiedAttribute {
	return QualifiedAttribute{Name: name, Type: typ}
}
