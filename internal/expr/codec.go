package expr

import (
	"errors"
	"fmt"

	"github.com/ruanwenjun/spark/internal/wire"
)

// Expression field numbers. Append-only.
const (
	fieldLiteral             wire.Number = 1
	fieldUnresolvedAttribute wire.Number = 2
	fieldUnresolvedFunction  wire.Number = 3
	fieldExpressionString    wire.Number = 4
	fieldUnresolvedStar      wire.Number = 5
	fieldAlias               wire.Number = 6
)

// Literal field numbers.
const (
	fieldLiteralNull    wire.Number = 1
	fieldLiteralBoolean wire.Number = 2
	fieldLiteralLong    wire.Number = 3
	fieldLiteralDouble  wire.Number = 4
	fieldLiteralString  wire.Number = 5
)

// ErrNilExpression is returned when a nil Expression is encoded.
var ErrNilExpression = errors.New("nil expression")

// MaxDepth bounds expression nesting accepted by Unmarshal.
const MaxDepth = 1000

// Marshal encodes e.
func Marshal(e Expression) ([]byte, error) {
	var enc wire.Encoder
	if err := Encode(&enc, e); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// Encode writes the fields of e into enc.
func Encode(enc *wire.Encoder, e Expression) error {
	switch v := e.(type) {
	case nil:
		return ErrNilExpression
	case *Literal:
		return enc.Message(fieldLiteral, v.encode)
	case *UnresolvedAttribute:
		return enc.Message(fieldUnresolvedAttribute, func(sub *wire.Encoder) error {
			sub.String(1, v.UnparsedIdentifier)
			sub.Raw(v.unknown)
			return nil
		})
	case *UnresolvedFunction:
		return enc.Message(fieldUnresolvedFunction, v.encode)
	case *ExpressionString:
		return enc.Message(fieldExpressionString, func(sub *wire.Encoder) error {
			sub.String(1, v.Expression)
			sub.Raw(v.unknown)
			return nil
		})
	case *UnresolvedStar:
		return enc.Message(fieldUnresolvedStar, func(sub *wire.Encoder) error {
			sub.String(1, v.Target)
			sub.Raw(v.unknown)
			return nil
		})
	case *Alias:
		return enc.Message(fieldAlias, v.encode)
	case *Opaque:
		enc.Raw(v.raw)
		return nil
	default:
		return fmt.Errorf("unsupported expression type %T", e)
	}
}

func (l *Literal) encode(enc *wire.Encoder) error {
	switch l.Kind {
	case LiteralNull:
		enc.AlwaysBool(fieldLiteralNull, true)
	case LiteralBoolean:
		enc.AlwaysBool(fieldLiteralBoolean, l.Boolean)
	case LiteralLong:
		enc.AlwaysInt64(fieldLiteralLong, l.Long)
	case LiteralDouble:
		enc.AlwaysDouble(fieldLiteralDouble, l.Double)
	case LiteralString:
		enc.AlwaysString(fieldLiteralString, l.Str)
	default:
		return fmt.Errorf("unknown literal kind %d", l.Kind)
	}
	enc.Raw(l.unknown)
	return nil
}

func (f *UnresolvedFunction) encode(enc *wire.Encoder) error {
	enc.String(1, f.FunctionName)
	for i, arg := range f.Arguments {
		if err := enc.Message(2, func(sub *wire.Encoder) error { return Encode(sub, arg) }); err != nil {
			return fmt.Errorf("%s argument %d: %w", f.FunctionName, i, err)
		}
	}
	enc.Bool(3, f.IsDistinct)
	enc.Raw(f.unknown)
	return nil
}

func (a *Alias) encode(enc *wire.Encoder) error {
	if err := enc.Message(1, func(sub *wire.Encoder) error { return Encode(sub, a.Expr) }); err != nil {
		return fmt.Errorf("alias: %w", err)
	}
	enc.Strings(2, a.Name)
	enc.Raw(a.unknown)
	return nil
}

// Unmarshal decodes an Expression message.
func Unmarshal(b []byte) (Expression, error) {
	return unmarshal(b, 0)
}

func unmarshal(b []byte, depth int) (Expression, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: expression nested deeper than %d", wire.ErrMalformed, MaxDepth)
	}
	var (
		result  Expression
		unknown wire.Unknown
	)
	err := wire.Fields(b, func(f wire.Field) error {
		var decode func([]byte, int) (Expression, error)
		switch f.Num {
		case fieldLiteral:
			decode = decodeLiteral
		case fieldUnresolvedAttribute:
			decode = decodeAttribute
		case fieldUnresolvedFunction:
			decode = decodeFunction
		case fieldExpressionString:
			decode = decodeExpressionString
		case fieldUnresolvedStar:
			decode = decodeStar
		case fieldAlias:
			decode = decodeAlias
		default:
			unknown.Add(f)
			return nil
		}
		payload, err := f.Bytes()
		if err != nil {
			return err
		}
		// Last variant on the wire wins, as with any oneof.
		result, err = decode(payload, depth+1)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		if len(unknown) == 0 {
			return nil, fmt.Errorf("%w: expression has no variant", wire.ErrMalformed)
		}
		return &Opaque{raw: []byte(unknown)}, nil
	}
	return result, nil
}

func decodeLiteral(b []byte, _ int) (Expression, error) {
	l := &Literal{}
	seen := false
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case fieldLiteralNull:
			l.Kind = LiteralNull
			_, err = f.Bool()
		case fieldLiteralBoolean:
			l.Kind = LiteralBoolean
			l.Boolean, err = f.Bool()
		case fieldLiteralLong:
			l.Kind = LiteralLong
			l.Long, err = f.Int64()
		case fieldLiteralDouble:
			l.Kind = LiteralDouble
			l.Double, err = f.Double()
		case fieldLiteralString:
			l.Kind = LiteralString
			l.Str, err = f.String()
		default:
			l.unknown.Add(f)
			return nil
		}
		seen = true
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("literal: %w", err)
	}
	if !seen {
		return nil, fmt.Errorf("%w: literal has no value", wire.ErrMalformed)
	}
	return l, nil
}

func decodeAttribute(b []byte, _ int) (Expression, error) {
	a := &UnresolvedAttribute{}
	err := wire.Fields(b, func(f wire.Field) error {
		if f.Num != 1 {
			a.unknown.Add(f)
			return nil
		}
		var err error
		a.UnparsedIdentifier, err = f.String()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unresolved_attribute: %w", err)
	}
	return a, nil
}

func decodeFunction(b []byte, depth int) (Expression, error) {
	fn := &UnresolvedFunction{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			fn.FunctionName, err = f.String()
		case 2:
			var payload []byte
			if payload, err = f.Bytes(); err != nil {
				return err
			}
			var arg Expression
			if arg, err = unmarshal(payload, depth); err != nil {
				return err
			}
			fn.Arguments = append(fn.Arguments, arg)
		case 3:
			fn.IsDistinct, err = f.Bool()
		default:
			fn.unknown.Add(f)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unresolved_function: %w", err)
	}
	return fn, nil
}

func decodeExpressionString(b []byte, _ int) (Expression, error) {
	e := &ExpressionString{}
	err := wire.Fields(b, func(f wire.Field) error {
		if f.Num != 1 {
			e.unknown.Add(f)
			return nil
		}
		var err error
		e.Expression, err = f.String()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("expression_string: %w", err)
	}
	return e, nil
}

func decodeStar(b []byte, _ int) (Expression, error) {
	s := &UnresolvedStar{}
	err := wire.Fields(b, func(f wire.Field) error {
		if f.Num != 1 {
			s.unknown.Add(f)
			return nil
		}
		var err error
		s.Target, err = f.String()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unresolved_star: %w", err)
	}
	return s, nil
}

func decodeAlias(b []byte, depth int) (Expression, error) {
	a := &Alias{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			var payload []byte
			if payload, err = f.Bytes(); err != nil {
				return err
			}
			a.Expr, err = unmarshal(payload, depth)
		case 2:
			var name string
			name, err = f.String()
			a.Name = append(a.Name, name)
		default:
			a.unknown.Add(f)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("alias: %w", err)
	}
	if a.Expr == nil {
		return nil, fmt.Errorf("%w: alias without expression", wire.ErrMalformed)
	}
	return a, nil
}

// EncodeAttribute writes a QualifiedAttribute message into enc.
func EncodeAttribute(enc *wire.Encoder, a QualifiedAttribute) {
	enc.String(1, a.Name)
	enc.String(2, a.Type)
	enc.Raw(a.unknown)
}

// UnmarshalAttribute decodes a QualifiedAttribute message.
func UnmarshalAttribute(b []byte) (QualifiedAttribute, error) {
	var a QualifiedAttribute
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			a.Name, err = f.String()
		case 2:
			a.Type, err = f.String()
		default:
			a.unknown.Add(f)
		}
		return err
	})
	if err != nil {
		return QualifiedAttribute{}, fmt.Errorf("qualified_attribute: %w", err)
	}
	return a, nil
}
