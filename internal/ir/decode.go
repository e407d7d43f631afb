package ir

import (
	"fmt"

	"github.com/ruanwenjun/spark/internal/expr"
	"github.com/ruanwenjun/spark/internal/wire"
)

func decodeRelation(b []byte, depth int) (*Relation, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: plan nested deeper than %d", ErrInvalidWire, maxDepth)
	}

	r := &Relation{}
	err := wire.Fields(b, func(f wire.Field) error {
		var decode func([]byte, int) (RelType, error)
		switch f.Num {
		case fieldCommon:
			payload, err := f.Bytes()
			if err != nil {
				return err
			}
			r.Common, err = decodeCommon(payload)
			return err
		case fieldRead:
			decode = decodeRead
		case fieldProject:
			decode = decodeProject
		case fieldFilter:
			decode = decodeFilter
		case fieldJoin:
			decode = decodeJoin
		case fieldSetOp:
			decode = decodeSetOperation
		case fieldSort:
			decode = decodeSort
		case fieldLimit:
			decode = decodeLimit
		case fieldOffset:
			decode = decodeOffset
		case fieldAggregate:
			decode = decodeAggregate
		case fieldSQL:
			decode = decodeSQL
		case fieldLocalRelation:
			decode = decodeLocalRelation
		case fieldSample:
			decode = decodeSample
		case fieldDeduplicate:
			decode = decodeDeduplicate
		case fieldRange:
			decode = decodeRange
		case fieldSubqueryAlias:
			decode = decodeSubqueryAlias
		case fieldUnknown:
			decode = decodeUnknown
		default:
			r.unknown.Add(f)
			return nil
		}
		payload, err := f.Bytes()
		if err != nil {
			return err
		}
		// Last variant on the wire wins, as with any oneof.
		rel, err := decode(payload, depth+1)
		if err != nil {
			return fmt.Errorf("%s: %w", rel.Kind(), err)
		}
		r.rel = rel
		return nil
	})
	if err != nil {
		return nil, err
	}
	if r.rel == nil && len(r.unknown) > 0 {
		r.rel = &Unknown{unrecognized: true}
	}
	return r, nil
}

func decodeCommon(b []byte) (*Common, error) {
	c := &Common{}
	err := wire.Fields(b, func(f wire.Field) error {
		if f.Num != 1 {
			c.unknown.Add(f)
			return nil
		}
		var err error
		c.SourceInfo, err = f.String()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("common: %w", err)
	}
	return c, nil
}

func inputField(f wire.Field, depth int) (*Relation, error) {
	payload, err := f.Bytes()
	if err != nil {
		return nil, err
	}
	return decodeRelation(payload, depth)
}

func exprField(f wire.Field) (expr.Expression, error) {
	payload, err := f.Bytes()
	if err != nil {
		return nil, err
	}
	return expr.Unmarshal(payload)
}

func decodeRead(b []byte, _ int) (RelType, error) {
	v := &Read{}
	err := wire.Fields(b, func(f wire.Field) error {
		switch f.Num {
		case 1:
			payload, err := f.Bytes()
			if err != nil {
				return err
			}
			t := &NamedTable{}
			err = wire.Fields(payload, func(f wire.Field) error {
				if f.Num != 1 {
					t.unknown.Add(f)
					return nil
				}
				var err error
				t.UnparsedIdentifier, err = f.String()
				return err
			})
			v.Source = t
			return err
		case 2:
			payload, err := f.Bytes()
			if err != nil {
				return err
			}
			ds, err := decodeDataSource(payload)
			v.Source = ds
			return err
		default:
			v.unknown.Add(f)
			return nil
		}
	})
	return v, err
}

func decodeDataSource(b []byte) (*DataSource, error) {
	ds := &DataSource{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			ds.Format, err = f.String()
		case 2:
			ds.Schema, err = f.String()
		case 3:
			var payload []byte
			if payload, err = f.Bytes(); err != nil {
				return err
			}
			var key, val string
			err = wire.Fields(payload, func(e wire.Field) error {
				var err error
				switch e.Num {
				case 1:
					key, err = e.String()
				case 2:
					val, err = e.String()
				}
				return err
			})
			if err != nil {
				return err
			}
			if ds.Options == nil {
				ds.Options = &Options{}
			}
			ds.Options.Set(key, val)
		default:
			ds.unknown.Add(f)
		}
		return err
	})
	return ds, err
}

func decodeProject(b []byte, depth int) (RelType, error) {
	v := &Project{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			v.Input, err = inputField(f, depth)
		case 3:
			var e expr.Expression
			if e, err = exprField(f); err == nil {
				v.Expressions = append(v.Expressions, e)
			}
		default:
			v.unknown.Add(f)
		}
		return err
	})
	return v, err
}

func decodeFilter(b []byte, depth int) (RelType, error) {
	v := &Filter{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			v.Input, err = inputField(f, depth)
		case 2:
			v.Condition, err = exprField(f)
		default:
			v.unknown.Add(f)
		}
		return err
	})
	return v, err
}

func decodeJoin(b []byte, depth int) (RelType, error) {
	v := &Join{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			v.Left, err = inputField(f, depth)
		case 2:
			v.Right, err = inputField(f, depth)
		case 3:
			v.JoinCondition, err = exprField(f)
		case 4:
			var n int32
			n, err = f.Int32()
			v.JoinType = JoinType(n)
		case 5:
			var col string
			col, err = f.String()
			v.UsingColumns = append(v.UsingColumns, col)
		default:
			v.unknown.Add(f)
		}
		return err
	})
	return v, err
}

func decodeSetOperation(b []byte, depth int) (RelType, error) {
	v := &SetOperation{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			v.LeftInput, err = inputField(f, depth)
		case 2:
			v.RightInput, err = inputField(f, depth)
		case 3:
			var n int32
			n, err = f.Int32()
			v.SetOpType = SetOpType(n)
		case 4:
			v.IsAll, err = f.Bool()
		case 5:
			v.ByName, err = f.Bool()
		default:
			v.unknown.Add(f)
		}
		return err
	})
	return v, err
}

func decodeSort(b []byte, depth int) (RelType, error) {
	v := &Sort{}
	err := wire.Fields(b, func(f wire.Field) error {
		switch f.Num {
		case 1:
			var err error
			v.Input, err = inputField(f, depth)
			return err
		case 2:
			payload, err := f.Bytes()
			if err != nil {
				return err
			}
			var field SortField
			err = wire.Fields(payload, func(f wire.Field) error {
				var err error
				var n int32
				switch f.Num {
				case 1:
					field.Expression, err = exprField(f)
				case 2:
					n, err = f.Int32()
					field.Direction = SortDirection(n)
				case 3:
					n, err = f.Int32()
					field.Nulls = SortNulls(n)
				default:
					field.unknown.Add(f)
				}
				return err
			})
			if err != nil {
				return err
			}
			v.SortFields = append(v.SortFields, field)
			return nil
		default:
			v.unknown.Add(f)
			return nil
		}
	})
	return v, err
}

func decodeLimit(b []byte, depth int) (RelType, error) {
	v := &Limit{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			v.Input, err = inputField(f, depth)
		case 2:
			v.Limit, err = f.Int32()
		default:
			v.unknown.Add(f)
		}
		return err
	})
	return v, err
}

func decodeOffset(b []byte, depth int) (RelType, error) {
	v := &Offset{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			v.Input, err = inputField(f, depth)
		case 2:
			v.Offset, err = f.Int32()
		default:
			v.unknown.Add(f)
		}
		return err
	})
	return v, err
}

func decodeAggregate(b []byte, depth int) (RelType, error) {
	v := &Aggregate{}
	err := wire.Fields(b, func(f wire.Field) error {
		switch f.Num {
		case 1:
			var err error
			v.Input, err = inputField(f, depth)
			return err
		case 2:
			e, err := exprField(f)
			if err != nil {
				return err
			}
			v.GroupingExpressions = append(v.GroupingExpressions, e)
			return nil
		case 3:
			payload, err := f.Bytes()
			if err != nil {
				return err
			}
			var fn AggregateFunction
			err = wire.Fields(payload, func(f wire.Field) error {
				var err error
				switch f.Num {
				case 1:
					fn.Name, err = f.String()
				case 2:
					var arg expr.Expression
					if arg, err = exprField(f); err == nil {
						fn.Arguments = append(fn.Arguments, arg)
					}
				default:
					fn.unknown.Add(f)
				}
				return err
			})
			if err != nil {
				return err
			}
			v.ResultExpressions = append(v.ResultExpressions, fn)
			return nil
		default:
			v.unknown.Add(f)
			return nil
		}
	})
	return v, err
}

func decodeSQL(b []byte, _ int) (RelType, error) {
	v := &SQL{}
	err := wire.Fields(b, func(f wire.Field) error {
		if f.Num != 1 {
			v.unknown.Add(f)
			return nil
		}
		var err error
		v.Query, err = f.String()
		return err
	})
	return v, err
}

func decodeLocalRelation(b []byte, _ int) (RelType, error) {
	v := &LocalRelation{}
	err := wire.Fields(b, func(f wire.Field) error {
		if f.Num != 1 {
			v.unknown.Add(f)
			return nil
		}
		payload, err := f.Bytes()
		if err != nil {
			return err
		}
		attr, err := expr.UnmarshalAttribute(payload)
		if err != nil {
			return err
		}
		v.Attributes = append(v.Attributes, attr)
		return nil
	})
	return v, err
}

func decodeSample(b []byte, depth int) (RelType, error) {
	v := &Sample{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			v.Input, err = inputField(f, depth)
		case 2:
			v.LowerBound, err = f.Double()
		case 3:
			v.UpperBound, err = f.Double()
		case 4:
			v.WithReplacement, err = f.Bool()
		case 5:
			var payload []byte
			if payload, err = f.Bytes(); err != nil {
				return err
			}
			v.Seed = &Seed{}
			err = wire.Fields(payload, func(f wire.Field) error {
				if f.Num != 1 {
					v.Seed.unknown.Add(f)
					return nil
				}
				var err error
				v.Seed.Seed, err = f.Int64()
				return err
			})
		default:
			v.unknown.Add(f)
		}
		return err
	})
	return v, err
}

func decodeDeduplicate(b []byte, depth int) (RelType, error) {
	v := &Deduplicate{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			v.Input, err = inputField(f, depth)
		case 2:
			var col string
			col, err = f.String()
			v.ColumnNames = append(v.ColumnNames, col)
		case 3:
			v.AllColumnsAsKeys, err = f.Bool()
		default:
			v.unknown.Add(f)
		}
		return err
	})
	return v, err
}

func decodeRange(b []byte, _ int) (RelType, error) {
	v := &Range{}
	hasEnd := false
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			v.Start, err = f.Int64()
		case 2:
			v.End, err = f.Int64()
			hasEnd = true
		case 3:
			var payload []byte
			if payload, err = f.Bytes(); err != nil {
				return err
			}
			v.Step = &Step{}
			err = wire.Fields(payload, func(f wire.Field) error {
				if f.Num != 1 {
					v.Step.unknown.Add(f)
					return nil
				}
				var err error
				v.Step.Step, err = f.Int64()
				return err
			})
		case 4:
			var payload []byte
			if payload, err = f.Bytes(); err != nil {
				return err
			}
			v.NumPartitions = &NumPartitions{}
			err = wire.Fields(payload, func(f wire.Field) error {
				if f.Num != 1 {
					v.NumPartitions.unknown.Add(f)
					return nil
				}
				var err error
				v.NumPartitions.NumPartitions, err = f.Int32()
				return err
			})
		default:
			v.unknown.Add(f)
		}
		return err
	})
	if err != nil {
		return v, err
	}
	if !hasEnd {
		return v, fmt.Errorf("%w: range.end is required", ErrInvalidWire)
	}
	return v, nil
}

func decodeSubqueryAlias(b []byte, depth int) (RelType, error) {
	v := &SubqueryAlias{}
	err := wire.Fields(b, func(f wire.Field) error {
		var err error
		switch f.Num {
		case 1:
			v.Input, err = inputField(f, depth)
		case 2:
			v.Alias, err = f.String()
		case 3:
			var q string
			q, err = f.String()
			v.Qualifier = append(v.Qualifier, q)
		default:
			v.unknown.Add(f)
		}
		return err
	})
	return v, err
}

func decodeUnknown(b []byte, _ int) (RelType, error) {
	v := &Unknown{}
	err := wire.Fields(b, func(f wire.Field) error {
		v.unknown.Add(f)
		return nil
	})
	return v, err
}
