package ir

import (
	"github.com/ruanwenjun/spark/internal/expr"
	"github.com/ruanwenjun/spark/internal/wire"
)

// Read scans a named table or an external data source.
type Read struct {
	// Source is either *NamedTable or *DataSource.
	Source ReadSource

	unknown wire.Unknown
}

// ReadSource is the oneof of a Read.
type ReadSource interface {
	readSource()
}

// NamedTable reads a table or view known to the catalog.
type NamedTable struct {
	UnparsedIdentifier string

	unknown wire.Unknown
}

// DataSource reads through a data source format such as "parquet".
type DataSource struct {
	Format string
	// Schema is a DDL string; empty means the engine infers it.
	Schema  string
	Options *Options

	unknown wire.Unknown
}

func (*NamedTable) readSource() {}
func (*DataSource) readSource() {}

// Project computes a list of expressions over its input.
type Project struct {
	Input       *Relation
	Expressions []expr.Expression

	unknown wire.Unknown
}

// Filter keeps the rows of its input for which Condition holds.
type Filter struct {
	Input     *Relation
	Condition expr.Expression

	unknown wire.Unknown
}

// Join combines two inputs. JoinCondition and UsingColumns are mutually
// exclusive; that rule is left to the planner (see internal/analyzer).
type Join struct {
	Left          *Relation
	Right         *Relation
	JoinCondition expr.Expression
	JoinType      JoinType
	UsingColumns  []string

	unknown wire.Unknown
}

// SetOperation is UNION, INTERSECT or EXCEPT of two inputs.
type SetOperation struct {
	LeftInput  *Relation
	RightInput *Relation
	SetOpType  SetOpType
	IsAll      bool
	ByName     bool

	unknown wire.Unknown
}

// Sort orders its input.
type Sort struct {
	Input      *Relation
	SortFields []SortField

	unknown wire.Unknown
}

// SortField is one sort key.
type SortField struct {
	Expression expr.Expression
	Direction  SortDirection
	Nulls      SortNulls

	unknown wire.Unknown
}

// Limit keeps the first Limit rows.
type Limit struct {
	Input *Relation
	Limit int32

	unknown wire.Unknown
}

// Offset skips the first Offset rows.
type Offset struct {
	Input  *Relation
	Offset int32

	unknown wire.Unknown
}

// Aggregate groups its input and computes aggregate functions per group.
type Aggregate struct {
	Input               *Relation
	GroupingExpressions []expr.Expression
	ResultExpressions   []AggregateFunction

	unknown wire.Unknown
}

// AggregateFunction is a named aggregate applied to arguments.
type AggregateFunction struct {
	Name      string
	Arguments []expr.Expression

	unknown wire.Unknown
}

// SQL is a leaf holding query text in the engine's SQL dialect.
type SQL struct {
	Query string

	unknown wire.Unknown
}

// LocalRelation is a leaf whose rows live on the client.
type LocalRelation struct {
	Attributes []expr.QualifiedAttribute

	unknown wire.Unknown
}

// Sample draws a fraction of its input.
type Sample struct {
	Input           *Relation
	LowerBound      float64
	UpperBound      float64
	WithReplacement bool
	Seed            *Seed // nil: engine picks a seed

	unknown wire.Unknown
}

// Seed wraps a sample seed so that presence can be observed.
type Seed struct {
	Seed int64

	unknown wire.Unknown
}

// Deduplicate removes duplicate rows, keyed by ColumnNames or by every
// column when AllColumnsAsKeys is set.
type Deduplicate struct {
	Input            *Relation
	ColumnNames      []string
	AllColumnsAsKeys bool

	unknown wire.Unknown
}

// Range is a leaf producing the integers in [Start, End).
type Range struct {
	Start         int64
	End           int64
	Step          *Step          // nil: step 1
	NumPartitions *NumPartitions // nil: engine decides

	unknown wire.Unknown
}

// Step wraps a range step so that presence can be observed.
type Step struct {
	Step int64

	unknown wire.Unknown
}

// NumPartitions wraps a partition count so that presence can be observed.
type NumPartitions struct {
	NumPartitions int32

	unknown wire.Unknown
}

// SubqueryAlias names its input.
type SubqueryAlias struct {
	Input     *Relation
	Alias     string
	Qualifier []string

	unknown wire.Unknown
}

// Unknown is the placeholder variant. It is also what the decoder produces
// for a variant this build does not recognize; the original bytes are kept
// on the enclosing Relation and re-emitted on encode.
type Unknown struct {
	unrecognized bool

	unknown wire.Unknown
}

// Unrecognized reports whether u stands in for a variant from a newer
// schema rather than an explicit placeholder.
func (u *Unknown) Unrecognized() bool { return u.unrecognized }

func (*Read) Kind() Kind          { return KindRead }
func (*Project) Kind() Kind       { return KindProject }
func (*Filter) Kind() Kind        { return KindFilter }
func (*Join) Kind() Kind          { return KindJoin }
func (*SetOperation) Kind() Kind  { return KindSetOperation }
func (*Sort) Kind() Kind          { return KindSort }
func (*Limit) Kind() Kind         { return KindLimit }
func (*Offset) Kind() Kind        { return KindOffset }
func (*Aggregate) Kind() Kind     { return KindAggregate }
func (*SQL) Kind() Kind           { return KindSQL }
func (*LocalRelation) Kind() Kind { return KindLocalRelation }
func (*Sample) Kind() Kind        { return KindSample }
func (*Deduplicate) Kind() Kind   { return KindDeduplicate }
func (*Range) Kind() Kind         { return KindRange }
func (*SubqueryAlias) Kind() Kind { return KindSubqueryAlias }
func (*Unknown) Kind() Kind       { return KindUnknown }

func (*Read) relType()          {}
func (*Project) relType()       {}
func (*Filter) relType()        {}
func (*Join) relType()          {}
func (*SetOperation) relType()  {}
func (*Sort) relType()          {}
func (*Limit) relType()         {}
func (*Offset) relType()        {}
func (*Aggregate) relType()     {}
func (*SQL) relType()           {}
func (*LocalRelation) relType() {}
func (*Sample) relType()        {}
func (*Deduplicate) relType()   {}
func (*Range) relType()         {}
func (*SubqueryAlias) relType() {}
func (*Unknown) relType()       {}

// Constructors for the common shapes. Each returns the union type.

// ReadTable reads a catalog table.
func ReadTable(identifier string, opts ...Option) *Relation {
	return MustNew(&Read{Source: &NamedTable{UnparsedIdentifier: identifier}}, opts...)
}

// ReadSourceFormat reads through a data source format. options may be nil.
func ReadSourceFormat(format, schema string, options *Options, opts ...Option) *Relation {
	return MustNew(&Read{Source: &DataSource{Format: format, Schema: schema, Options: options}}, opts...)
}

// NewProject projects exprs over input.
func NewProject(input *Relation, exprs ...expr.Expression) *Relation {
	return MustNew(&Project{Input: input, Expressions: exprs})
}

// NewFilter filters input by cond.
func NewFilter(input *Relation, cond expr.Expression) *Relation {
	return MustNew(&Filter{Input: input, Condition: cond})
}

// NewJoin joins left and right. The join type starts unspecified.
func NewJoin(left, right *Relation) *Join {
	return &Join{Left: left, Right: right}
}

// On sets the join condition.
func (j *Join) On(cond expr.Expression) *Join {
	j.JoinCondition = cond
	return j
}

// Using sets the equi-join column names.
func (j *Join) Using(cols ...string) *Join {
	j.UsingColumns = cols
	return j
}

// As sets the join type.
func (j *Join) As(t JoinType) *Join {
	j.JoinType = t
	return j
}

// Relation wraps j.
func (j *Join) Relation(opts ...Option) *Relation {
	return MustNew(j, opts...)
}

// NewSetOperation combines left and right.
func NewSetOperation(left, right *Relation, op SetOpType, all bool) *Relation {
	return MustNew(&SetOperation{LeftInput: left, RightInput: right, SetOpType: op, IsAll: all})
}

// NewSort sorts input by fields.
func NewSort(input *Relation, fields ...SortField) *Relation {
	return MustNew(&Sort{Input: input, SortFields: fields})
}

// Asc sorts ascending with nulls first.
func Asc(e expr.Expression) SortField {
	return SortField{Expression: e, Direction: SortDirectionAscending, Nulls: SortNullsFirst}
}

// Desc sorts descending with nulls last.
func Desc(e expr.Expression) SortField {
	return SortField{Expression: e, Direction: SortDirectionDescending, Nulls: SortNullsLast}
}

// NewLimit limits input to n rows.
func NewLimit(input *Relation, n int32) *Relation {
	return MustNew(&Limit{Input: input, Limit: n})
}

// NewOffset skips n rows of input.
func NewOffset(input *Relation, n int32) *Relation {
	return MustNew(&Offset{Input: input, Offset: n})
}

// NewAggregate groups input by grouping and computes results.
func NewAggregate(input *Relation, grouping []expr.Expression, results ...AggregateFunction) *Relation {
	return MustNew(&Aggregate{Input: input, GroupingExpressions: grouping, ResultExpressions: results})
}

// Agg returns an aggregate function call.
func Agg(name string, args ...expr.Expression) AggregateFunction {
	return AggregateFunction{Name: name, Arguments: args}
}

// NewSQL wraps query text.
func NewSQL(query string, opts ...Option) *Relation {
	return MustNew(&SQL{Query: query}, opts...)
}

// NewLocalRelation declares client-side rows with the given attributes.
func NewLocalRelation(attrs ...expr.QualifiedAttribute) *Relation {
	return MustNew(&LocalRelation{Attributes: attrs})
}

// NewDeduplicate removes duplicates of input. With no columns every
// column is used as a key.
func NewDeduplicate(input *Relation, cols ...string) *Relation {
	return MustNew(&Deduplicate{Input: input, ColumnNames: cols, AllColumnsAsKeys: len(cols) == 0})
}

// NewRange produces [start, end) with the engine's default step.
func NewRange(start, end int64) *Range {
	return &Range{Start: start, End: end}
}

// WithStep sets an explicit step.
func (r *Range) WithStep(step int64) *Range {
	r.Step = &Step{Step: step}
	return r
}

// WithNumPartitions sets an explicit partition count.
func (r *Range) WithNumPartitions(n int32) *Range {
	r.NumPartitions = &NumPartitions{NumPartitions: n}
	return r
}

// Relation wraps r.
func (r *Range) Relation(opts ...Option) *Relation {
	return MustNew(r, opts...)
}

// NewSubqueryAlias names input.
func NewSubqueryAlias(input *Relation, alias string, qualifier ...string) *Relation {
	return MustNew(&SubqueryAlias{Input: input, Alias: alias, Qualifier: qualifier})
}

// NewSample samples a fraction of input without replacement.
func NewSample(input *Relation, lower, upper float64) *Sample {
	return &Sample{Input: input, LowerBound: lower, UpperBound: upper}
}

// WithSeed sets an explicit seed.
func (s *Sample) WithSeed(seed int64) *Sample {
	s.Seed = &Seed{Seed: seed}
	return s
}

// Relation wraps s.
func (s *Sample) Relation(opts ...Option) *Relation {
	return MustNew(s, opts...)
}
