package docdb

import (
	"slices"
	"strings"

	"github.com/andreyvit/docdb/sortable"
)

// Query selects records of a collection. The zero Query returns every
// record in id order.
type Query struct {
	// Where maps index names to filters. All filters must hold. Filters
	// on undeclared indexes are ignored.
	Where map[string]Filter

	// OrderBy sorts by the given indexed fields; ties are broken by
	// record id, in the direction of the last entry.
	OrderBy []Order

	Offset int

	// Limit caps the number of results; nil means unbounded.
	Limit *int
}

// Limit returns a pointer for Query.Limit.
func Limit(n int) *int {
	return &n
}

type Order struct {
	Field string
	Desc  bool
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }

type nullMarker struct{}

// Null compares against null or missing values; a nil filter operand means
// the operator is not used.
var Null any = nullMarker{}

type Emptiness int

const (
	AnyEmptiness Emptiness = iota
	MustBeEmpty
	MustNotBeEmpty
)

// Filter holds operators on one indexed field. Operands are raw values; they
// are encoded with the index kind before comparison. On array fields scalar
// operators hold if some element satisfies them.
type Filter struct {
	Eq     any
	Gt     any
	Gte    any
	Lt     any
	Lte    any
	Prefix any

	// In holds if the value is one of the listed ones. A non-nil empty
	// slice matches nothing.
	In []any
	// Out holds if the value is none of the listed ones.
	Out []any

	// Empty applies to array fields only.
	Empty Emptiness

	// EveryEq holds if the array contains all of the listed values.
	EveryEq []any
	// EveryPrefix holds if, for each listed prefix, some element starts
	// with it.
	EveryPrefix []any
}

// encodedFilter is a Filter with every operand in sortable form.
type encodedFilter struct {
	eq, gt, gte, lt, lte, prefix *string
	in, out                      []string
	empty                        Emptiness
	everyEq, everyPrefix         []string
}

func (f *encodedFilter) isZero() bool {
	return f.eq == nil && f.gt == nil && f.gte == nil && f.lt == nil && f.lte == nil &&
		f.prefix == nil && f.in == nil && f.out == nil && f.empty == AnyEmptiness &&
		f.everyEq == nil && f.everyPrefix == nil
}

func encodeOperand(kind sortable.Kind, v any) string {
	if v == Null {
		return nullValue
	}
	return kind.Encode(v)
}

func encodeFilter(kind sortable.Kind, f Filter) encodedFilter {
	one := func(v any) *string {
		if v == nil {
			return nil
		}
		s := encodeOperand(kind, v)
		return &s
	}
	many := func(vs []any) []string {
		if vs == nil {
			return nil
		}
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			out = append(out, encodeOperand(kind, v))
		}
		slices.Sort(out)
		return slices.Compact(out)
	}
	return encodedFilter{
		eq:          one(f.Eq),
		gt:          one(f.Gt),
		gte:         one(f.Gte),
		lt:          one(f.Lt),
		lte:         one(f.Lte),
		prefix:      one(f.Prefix),
		in:          many(f.In),
		out:         many(f.Out),
		empty:       f.Empty,
		everyEq:     many(f.EveryEq),
		everyPrefix: many(f.EveryPrefix),
	}
}

type indexFilter struct {
	field string
	f     encodedFilter
	rules []rule
}

// plan is an encoded, validated query.
type plan struct {
	where   []indexFilter // sorted by field
	orderBy []Order
	offset  int
	limit   int // negative means unbounded
}

func (c *Collection) plan(q Query) *plan {
	p := &plan{offset: max(q.Offset, 0), limit: -1}
	if q.Limit != nil {
		p.limit = max(*q.Limit, 0)
	}
	for _, field := range c.fields {
		f, ok := q.Where[field]
		if !ok {
			continue
		}
		ef := encodeFilter(c.indexes[field], f)
		if ef.isZero() {
			continue
		}
		p.where = append(p.where, indexFilter{field: field, f: ef, rules: rulesFor(ef)})
	}
	for _, o := range q.OrderBy {
		if _, ok := c.indexes[o.Field]; ok {
			p.orderBy = append(p.orderBy, o)
		}
	}
	return p
}

// inGroup returns a copy of p that keeps every filter of p and adds one
// more, restricting field to encode to value. The copy is ordered by the
// remaining sort fields, without paging. The emptiness sentinel stands for
// records whose field is an empty array.
//
// An array record falls into several groups; callers decide which one
// it belongs to.
func (p *plan) inGroup(field, value string) *plan {
	var f encodedFilter
	if value == sentinelEmpty {
		f.empty = MustBeEmpty
	} else {
		f.eq = &value
	}
	q := &plan{orderBy: p.orderBy[1:], limit: -1}
	q.where = append(slices.Clone(p.where), indexFilter{field: field, f: f, rules: rulesFor(f)})
	slices.SortStableFunc(q.where, func(a, b indexFilter) int {
		return strings.Compare(a.field, b.field)
	})
	return q
}
