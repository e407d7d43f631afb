package ir

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ruanwenjun/spark/internal/expr"
	"github.com/ruanwenjun/spark/internal/wire"
)

// Relation field numbers. Append-only: never renumber or reuse.
const (
	fieldCommon        wire.Number = 1
	fieldRead          wire.Number = 2
	fieldProject       wire.Number = 3
	fieldFilter        wire.Number = 4
	fieldJoin          wire.Number = 5
	fieldSetOp         wire.Number = 6
	fieldSort          wire.Number = 7
	fieldLimit         wire.Number = 8
	fieldAggregate     wire.Number = 9
	fieldSQL           wire.Number = 10
	fieldLocalRelation wire.Number = 11
	fieldSample        wire.Number = 12
	fieldOffset        wire.Number = 13
	fieldDeduplicate   wire.Number = 14
	fieldRange         wire.Number = 15
	fieldSubqueryAlias wire.Number = 16
	fieldUnknown       wire.Number = 999
)

// maxDepth bounds plan nesting accepted by the decoder.
const maxDepth = 1000

// ErrInvalidWire is returned for wire data that decodes but violates the
// schema, such as a Range without an end.
var ErrInvalidWire = errors.New("invalid plan encoding")

// Marshal validates r and encodes it. An invalid tree is never encoded;
// the error is an *InvalidPlanError listing every problem.
func Marshal(r *Relation) ([]byte, error) {
	if errs := Validate(r); len(errs) > 0 {
		return nil, &InvalidPlanError{Errors: errs}
	}
	return encode(r)
}

// Unmarshal decodes a plan and validates the result.
func Unmarshal(b []byte) (*Relation, error) {
	r, err := decodeRelation(b, 0)
	if err != nil {
		return nil, err
	}
	if errs := Validate(r); len(errs) > 0 {
		return nil, &InvalidPlanError{Errors: errs}
	}
	return r, nil
}

// Equal reports whether a and b are structurally equal, unknown fields
// included. Encoding is deterministic, so equal trees encode identically.
func Equal(a, b *Relation) bool {
	if a == nil || b == nil {
		return a == b
	}
	ab, err := encode(a)
	if err != nil {
		return false
	}
	bb, err := encode(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func encode(r *Relation) ([]byte, error) {
	var enc wire.Encoder
	if err := r.encode(&enc); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

func (r *Relation) encode(enc *wire.Encoder) error {
	if r.Common != nil {
		if err := enc.Message(fieldCommon, r.Common.encode); err != nil {
			return err
		}
	}

	var err error
	switch v := r.rel.(type) {
	case nil:
	case *Read:
		err = enc.Message(fieldRead, v.encode)
	case *Project:
		err = enc.Message(fieldProject, v.encode)
	case *Filter:
		err = enc.Message(fieldFilter, v.encode)
	case *Join:
		err = enc.Message(fieldJoin, v.encode)
	case *SetOperation:
		err = enc.Message(fieldSetOp, v.encode)
	case *Sort:
		err = enc.Message(fieldSort, v.encode)
	case *Limit:
		err = enc.Message(fieldLimit, v.encode)
	case *Offset:
		err = enc.Message(fieldOffset, v.encode)
	case *Aggregate:
		err = enc.Message(fieldAggregate, v.encode)
	case *SQL:
		err = enc.Message(fieldSQL, v.encode)
	case *LocalRelation:
		err = enc.Message(fieldLocalRelation, v.encode)
	case *Sample:
		err = enc.Message(fieldSample, v.encode)
	case *Deduplicate:
		err = enc.Message(fieldDeduplicate, v.encode)
	case *Range:
		err = enc.Message(fieldRange, v.encode)
	case *SubqueryAlias:
		err = enc.Message(fieldSubqueryAlias, v.encode)
	case *Unknown:
		// An unrecognized variant lives in r.unknown already.
		if !v.unrecognized {
			err = enc.Message(fieldUnknown, func(sub *wire.Encoder) error {
				sub.Raw(v.unknown)
				return nil
			})
		}
	default:
		err = fmt.Errorf("unsupported relation type %T", v)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", r.WhichOneof(), err)
	}
	enc.Raw(r.unknown)
	return nil
}

func (c *Common) encode(enc *wire.Encoder) error {
	enc.String(1, c.SourceInfo)
	enc.Raw(c.unknown)
	return nil
}

func encodeInput(enc *wire.Encoder, num wire.Number, in *Relation) error {
	if in == nil {
		return nil
	}
	return enc.Message(num, in.encode)
}

func encodeExpr(enc *wire.Encoder, num wire.Number, e expr.Expression) error {
	return enc.Message(num, func(sub *wire.Encoder) error {
		return expr.Encode(sub, e)
	})
}

func encodeExprs(enc *wire.Encoder, num wire.Number, es []expr.Expression) error {
	for i, e := range es {
		if err := encodeExpr(enc, num, e); err != nil {
			return fmt.Errorf("expression %d: %w", i, err)
		}
	}
	return nil
}

func (v *Read) encode(enc *wire.Encoder) error {
	var err error
	switch src := v.Source.(type) {
	case *NamedTable:
		err = enc.Message(1, func(sub *wire.Encoder) error {
			sub.String(1, src.UnparsedIdentifier)
			sub.Raw(src.unknown)
			return nil
		})
	case *DataSource:
		err = enc.Message(2, src.encode)
	}
	if err != nil {
		return err
	}
	enc.Raw(v.unknown)
	return nil
}

func (d *DataSource) encode(enc *wire.Encoder) error {
	enc.String(1, d.Format)
	enc.String(2, d.Schema)
	for k, val := range d.Options.All() {
		err := enc.Message(3, func(entry *wire.Encoder) error {
			entry.AlwaysString(1, k)
			entry.AlwaysString(2, val)
			return nil
		})
		if err != nil {
			return err
		}
	}
	enc.Raw(d.unknown)
	return nil
}

func (v *Project) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.Input); err != nil {
		return err
	}
	if err := encodeExprs(enc, 3, v.Expressions); err != nil {
		return err
	}
	enc.Raw(v.unknown)
	return nil
}

func (v *Filter) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.Input); err != nil {
		return err
	}
	if v.Condition != nil {
		if err := encodeExpr(enc, 2, v.Condition); err != nil {
			return fmt.Errorf("condition: %w", err)
		}
	}
	enc.Raw(v.unknown)
	return nil
}

func (v *Join) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.Left); err != nil {
		return err
	}
	if err := encodeInput(enc, 2, v.Right); err != nil {
		return err
	}
	if v.JoinCondition != nil {
		if err := encodeExpr(enc, 3, v.JoinCondition); err != nil {
			return fmt.Errorf("join_condition: %w", err)
		}
	}
	enc.Enum(4, int32(v.JoinType))
	enc.Strings(5, v.UsingColumns)
	enc.Raw(v.unknown)
	return nil
}

func (v *SetOperation) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.LeftInput); err != nil {
		return err
	}
	if err := encodeInput(enc, 2, v.RightInput); err != nil {
		return err
	}
	enc.Enum(3, int32(v.SetOpType))
	enc.Bool(4, v.IsAll)
	enc.Bool(5, v.ByName)
	enc.Raw(v.unknown)
	return nil
}

func (v *Sort) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.Input); err != nil {
		return err
	}
	for i := range v.SortFields {
		field := &v.SortFields[i]
		err := enc.Message(2, func(sub *wire.Encoder) error {
			if field.Expression != nil {
				if err := encodeExpr(sub, 1, field.Expression); err != nil {
					return err
				}
			}
			sub.Enum(2, int32(field.Direction))
			sub.Enum(3, int32(field.Nulls))
			sub.Raw(field.unknown)
			return nil
		})
		if err != nil {
			return fmt.Errorf("sort field %d: %w", i, err)
		}
	}
	enc.Raw(v.unknown)
	return nil
}

func (v *Limit) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.Input); err != nil {
		return err
	}
	enc.Int32(2, v.Limit)
	enc.Raw(v.unknown)
	return nil
}

func (v *Offset) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.Input); err != nil {
		return err
	}
	enc.Int32(2, v.Offset)
	enc.Raw(v.unknown)
	return nil
}

func (v *Aggregate) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.Input); err != nil {
		return err
	}
	if err := encodeExprs(enc, 2, v.GroupingExpressions); err != nil {
		return fmt.Errorf("grouping: %w", err)
	}
	for i := range v.ResultExpressions {
		fn := &v.ResultExpressions[i]
		err := enc.Message(3, func(sub *wire.Encoder) error {
			sub.String(1, fn.Name)
			if err := encodeExprs(sub, 2, fn.Arguments); err != nil {
				return err
			}
			sub.Raw(fn.unknown)
			return nil
		})
		if err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}
	}
	enc.Raw(v.unknown)
	return nil
}

func (v *SQL) encode(enc *wire.Encoder) error {
	enc.String(1, v.Query)
	enc.Raw(v.unknown)
	return nil
}

func (v *LocalRelation) encode(enc *wire.Encoder) error {
	for _, attr := range v.Attributes {
		err := enc.Message(1, func(sub *wire.Encoder) error {
			expr.EncodeAttribute(sub, attr)
			return nil
		})
		if err != nil {
			return err
		}
	}
	enc.Raw(v.unknown)
	return nil
}

func (v *Sample) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.Input); err != nil {
		return err
	}
	enc.Double(2, v.LowerBound)
	enc.Double(3, v.UpperBound)
	enc.Bool(4, v.WithReplacement)
	if v.Seed != nil {
		err := enc.Message(5, func(sub *wire.Encoder) error {
			sub.Int64(1, v.Seed.Seed)
			sub.Raw(v.Seed.unknown)
			return nil
		})
		if err != nil {
			return err
		}
	}
	enc.Raw(v.unknown)
	return nil
}

func (v *Deduplicate) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.Input); err != nil {
		return err
	}
	enc.Strings(2, v.ColumnNames)
	enc.Bool(3, v.AllColumnsAsKeys)
	enc.Raw(v.unknown)
	return nil
}

func (v *Range) encode(enc *wire.Encoder) error {
	enc.Int64(1, v.Start)
	// end is required, so it is present even when zero.
	enc.AlwaysInt64(2, v.End)
	if v.Step != nil {
		err := enc.Message(3, func(sub *wire.Encoder) error {
			sub.Int64(1, v.Step.Step)
			sub.Raw(v.Step.unknown)
			return nil
		})
		if err != nil {
			return err
		}
	}
	if v.NumPartitions != nil {
		err := enc.Message(4, func(sub *wire.Encoder) error {
			sub.Int32(1, v.NumPartitions.NumPartitions)
			sub.Raw(v.NumPartitions.unknown)
			return nil
		})
		if err != nil {
			return err
		}
	}
	enc.Raw(v.unknown)
	return nil
}

func (v *SubqueryAlias) encode(enc *wire.Encoder) error {
	if err := encodeInput(enc, 1, v.Input); err != nil {
		return err
	}
	enc.String(2, v.Alias)
	enc.Strings(3, v.Qualifier)
	enc.Raw(v.unknown)
	return nil
}
