package ir

import "fmt"

// JoinType is the kind of join. The zero value is JoinTypeUnspecified,
// meaning the caller did not choose; it is never coerced to an inner join.
type JoinType int32

const (
	JoinTypeUnspecified JoinType = 0
	JoinTypeInner       JoinType = 1
	JoinTypeFullOuter   JoinType = 2
	JoinTypeLeftOuter   JoinType = 3
	JoinTypeRightOuter  JoinType = 4
	JoinTypeLeftAnti    JoinType = 5
	JoinTypeLeftSemi    JoinType = 6
)

var joinTypeNames = map[JoinType]string{
	JoinTypeUnspecified: "JOIN_TYPE_UNSPECIFIED",
	JoinTypeInner:       "JOIN_TYPE_INNER",
	JoinTypeFullOuter:   "JOIN_TYPE_FULL_OUTER",
	JoinTypeLeftOuter:   "JOIN_TYPE_LEFT_OUTER",
	JoinTypeRightOuter:  "JOIN_TYPE_RIGHT_OUTER",
	JoinTypeLeftAnti:    "JOIN_TYPE_LEFT_ANTI",
	JoinTypeLeftSemi:    "JOIN_TYPE_LEFT_SEMI",
}

func (t JoinType) String() string {
	return enumName(joinTypeNames, t)
}

// SetOpType is the kind of set operation.
type SetOpType int32

const (
	SetOpTypeUnspecified SetOpType = 0
	SetOpTypeIntersect   SetOpType = 1
	SetOpTypeUnion       SetOpType = 2
	SetOpTypeExcept      SetOpType = 3
)

var setOpTypeNames = map[SetOpType]string{
	SetOpTypeUnspecified: "SET_OP_TYPE_UNSPECIFIED",
	SetOpTypeIntersect:   "SET_OP_TYPE_INTERSECT",
	SetOpTypeUnion:       "SET_OP_TYPE_UNION",
	SetOpTypeExcept:      "SET_OP_TYPE_EXCEPT",
}

func (t SetOpType) String() string {
	return enumName(setOpTypeNames, t)
}

// SortDirection orders a sort key.
type SortDirection int32

const (
	SortDirectionUnspecified SortDirection = 0
	SortDirectionAscending   SortDirection = 1
	SortDirectionDescending  SortDirection = 2
)

var sortDirectionNames = map[SortDirection]string{
	SortDirectionUnspecified: "SORT_DIRECTION_UNSPECIFIED",
	SortDirectionAscending:   "SORT_DIRECTION_ASCENDING",
	SortDirectionDescending:  "SORT_DIRECTION_DESCENDING",
}

func (d SortDirection) String() string {
	return enumName(sortDirectionNames, d)
}

// SortNulls places nulls relative to other values of a sort key.
type SortNulls int32

const (
	SortNullsUnspecified SortNulls = 0
	SortNullsFirst       SortNulls = 1
	SortNullsLast        SortNulls = 2
)

var sortNullsNames = map[SortNulls]string{
	SortNullsUnspecified: "SORT_NULLS_UNSPECIFIED",
	SortNullsFirst:       "SORT_NULLS_FIRST",
	SortNullsLast:        "SORT_NULLS_LAST",
}

func (n SortNulls) String() string {
	return enumName(sortNullsNames, n)
}

// enumName returns the wire name of v, or its number for values a newer
// schema defined. Unrecognized numbers are kept, never coerced.
func enumName[E ~int32](names map[E]string, v E) string {
	if name, ok := names[v]; ok {
		return name
	}
	return fmt.Sprintf("%d", int32(v))
}

// ParseJoinType parses a wire name such as "JOIN_TYPE_INNER".
func ParseJoinType(s string) (JoinType, error) {
	return parseEnum(joinTypeNames, s, "join type")
}

// ParseSetOpType parses a wire name such as "SET_OP_TYPE_UNION".
func ParseSetOpType(s string) (SetOpType, error) {
	return parseEnum(setOpTypeNames, s, "set operation type")
}

// ParseSortDirection parses a wire name such as "SORT_DIRECTION_ASCENDING".
func ParseSortDirection(s string) (SortDirection, error) {
	return parseEnum(sortDirectionNames, s, "sort direction")
}

// ParseSortNulls parses a wire name such as "SORT_NULLS_FIRST".
func ParseSortNulls(s string) (SortNulls, error) {
	return parseEnum(sortNullsNames, s, "sort nulls ordering")
}

func parseEnum[E ~int32](names map[E]string, s, what string) (E, error) {
	for v, name := range names {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}
