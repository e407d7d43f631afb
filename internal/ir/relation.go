package ir

import (
	"errors"
	"fmt"

	"github.com/ruanwenjun/spark/internal/wire"
)

// ErrNoVariant is returned when a Relation is built without a variant.
var ErrNoVariant = errors.New("relation has no variant")

// Kind identifies which variant of a Relation is set.
type Kind int

const (
	KindUnset Kind = iota
	KindRead
	KindProject
	KindFilter
	KindJoin
	KindSetOperation
	KindSort
	KindLimit
	KindAggregate
	KindSQL
	KindLocalRelation
	KindSample
	KindOffset
	KindDeduplicate
	KindRange
	KindSubqueryAlias
	KindUnknown
)

var kindNames = [...]string{
	KindUnset:         "",
	KindRead:          "read",
	KindProject:       "project",
	KindFilter:        "filter",
	KindJoin:          "join",
	KindSetOperation:  "set_op",
	KindSort:          "sort",
	KindLimit:         "limit",
	KindAggregate:     "aggregate",
	KindSQL:           "sql",
	KindLocalRelation: "local_relation",
	KindSample:        "sample",
	KindOffset:        "offset",
	KindDeduplicate:   "deduplicate",
	KindRange:         "range",
	KindSubqueryAlias: "subquery_alias",
	KindUnknown:       "unknown",
}

// String returns the oneof field name of the variant, or "" for KindUnset.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the Kind whose field name is s.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s && name != "" {
			return Kind(k), true
		}
	}
	return KindUnset, false
}

// RelType is implemented by every Relation variant. The set of variants is
// closed: only types in this package implement it.
type RelType interface {
	Kind() Kind

	relType()
}

// Common is metadata attached to any plan node.
type Common struct {
	// SourceInfo is free-form provenance, typically the client call site.
	SourceInfo string

	unknown wire.Unknown
}

// Relation is a node of a logical query plan. Exactly one variant is set.
//
// A Relation is built, submitted once, and then treated as read-only.
// Children are owned by exactly one parent; the tree is never shared
// or cyclic.
type Relation struct {
	Common *Common

	rel     RelType
	unknown wire.Unknown
}

// Option configures a Relation at construction.
type Option func(*Relation)

// WithSourceInfo attaches provenance metadata.
func WithSourceInfo(info string) Option {
	return func(r *Relation) {
		if r.Common == nil {
			r.Common = &Common{}
		}
		r.Common.SourceInfo = info
	}
}

// New returns a Relation holding variant. A nil variant is rejected.
func New(variant RelType, opts ...Option) (*Relation, error) {
	if isNilVariant(variant) {
		return nil, ErrNoVariant
	}
	r := &Relation{rel: variant}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// MustNew is like New but panics on error.
// Use only in tests or when the variant is known to be non-nil.
func MustNew(variant RelType, opts ...Option) *Relation {
	r, err := New(variant, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func isNilVariant(v RelType) bool {
	if v == nil {
		return true
	}
	switch p := v.(type) {
	case *Read:
		return p == nil
	case *Project:
		return p == nil
	case *Filter:
		return p == nil
	case *Join:
		return p == nil
	case *SetOperation:
		return p == nil
	case *Sort:
		return p == nil
	case *Limit:
		return p == nil
	case *Aggregate:
		return p == nil
	case *SQL:
		return p == nil
	case *LocalRelation:
		return p == nil
	case *Sample:
		return p == nil
	case *Offset:
		return p == nil
	case *Deduplicate:
		return p == nil
	case *Range:
		return p == nil
	case *SubqueryAlias:
		return p == nil
	case *Unknown:
		return p == nil
	}
	return false
}

// Which returns the kind of the variant that is set.
func (r *Relation) Which() Kind {
	if r == nil || r.rel == nil {
		return KindUnset
	}
	return r.rel.Kind()
}

// WhichOneof returns the field name of the variant that is set, or "".
func (r *Relation) WhichOneof() string {
	return r.Which().String()
}

// Variant returns the variant that is set, or nil.
func (r *Relation) Variant() RelType {
	if r == nil {
		return nil
	}
	return r.rel
}

// Set replaces the current variant with v. Any previously set variant is
// discarded, along with every unrecognized relation-level field: common
// is the only relation field outside the variant oneof, so those fields
// are variants from a newer schema and would otherwise be encoded beside v.
func (r *Relation) Set(v RelType) error {
	if isNilVariant(v) {
		return ErrNoVariant
	}
	r.unknown = nil
	r.rel = v
	return nil
}

// Clear resets the variant to unset. An unset Relation fails validation
// until a variant is set again.
func (r *Relation) Clear() {
	r.unknown = nil
	r.rel = nil
}

// ClearCommon drops the common metadata.
func (r *Relation) ClearCommon() {
	r.Common = nil
}

// SourceInfo returns the provenance string, or "".
func (r *Relation) SourceInfo() string {
	if r == nil || r.Common == nil {
		return ""
	}
	return r.Common.SourceInfo
}

// Children returns the input relations of r in field order. Missing
// inputs are skipped.
func (r *Relation) Children() []*Relation {
	var in []*Relation
	add := func(c *Relation) {
		if c != nil {
			in = append(in, c)
		}
	}
	switch v := r.Variant().(type) {
	case *Project:
		add(v.Input)
	case *Filter:
		add(v.Input)
	case *Join:
		add(v.Left)
		add(v.Right)
	case *SetOperation:
		add(v.LeftInput)
		add(v.RightInput)
	case *Sort:
		add(v.Input)
	case *Limit:
		add(v.Input)
	case *Offset:
		add(v.Input)
	case *Aggregate:
		add(v.Input)
	case *Sample:
		add(v.Input)
	case *Deduplicate:
		add(v.Input)
	case *SubqueryAlias:
		add(v.Input)
	}
	return in
}

// Walk visits r and its descendants depth-first, parents before
// children. Returning false from fn skips the children of that node.
func Walk(r *Relation, fn func(*Relation) bool) {
	if r == nil || !fn(r) {
		return
	}
	for _, c := range r.Children() {
		Walk(c, fn)
	}
}

// Getters return nil unless the named variant is set.

func (r *Relation) GetRead() *Read                   { v, _ := r.Variant().(*Read); return v }
func (r *Relation) GetProject() *Project             { v, _ := r.Variant().(*Project); return v }
func (r *Relation) GetFilter() *Filter               { v, _ := r.Variant().(*Filter); return v }
func (r *Relation) GetJoin() *Join                   { v, _ := r.Variant().(*Join); return v }
func (r *Relation) GetSetOperation() *SetOperation   { v, _ := r.Variant().(*SetOperation); return v }
func (r *Relation) GetSort() *Sort                   { v, _ := r.Variant().(*Sort); return v }
func (r *Relation) GetLimit() *Limit                 { v, _ := r.Variant().(*Limit); return v }
func (r *Relation) GetOffset() *Offset               { v, _ := r.Variant().(*Offset); return v }
func (r *Relation) GetAggregate() *Aggregate         { v, _ := r.Variant().(*Aggregate); return v }
func (r *Relation) GetSQL() *SQL                     { v, _ := r.Variant().(*SQL); return v }
func (r *Relation) GetLocalRelation() *LocalRelation { v, _ := r.Variant().(*LocalRelation); return v }
func (r *Relation) GetSample() *Sample               { v, _ := r.Variant().(*Sample); return v }
func (r *Relation) GetDeduplicate() *Deduplicate     { v, _ := r.Variant().(*Deduplicate); return v }
func (r *Relation) GetRange() *Range                 { v, _ := r.Variant().(*Range); return v }
func (r *Relation) GetSubqueryAlias() *SubqueryAlias { v, _ := r.Variant().(*SubqueryAlias); return v }
func (r *Relation) GetUnknown() *Unknown             { v, _ := r.Variant().(*Unknown); return v }
