package docdb

import (
	"slices"
	"strings"
)

type ruleKind int

const (
	ruleEq ruleKind = iota
	rulePrefix
	ruleRange
	ruleIn
	ruleOut
	ruleEmpty
	ruleEveryEq
	ruleEveryPrefix
)

// bound is one side of a range; a nil value means unbounded.
type bound struct {
	value *string
	inc   bool
}

// rule is one filter operator in encoded form. Each rule can check a
// candidate record, can optionally narrow the index prefix to scan, and
// builds the scanners that enumerate matching ids.
type rule struct {
	kind   ruleKind
	value  string
	values []string // sorted, distinct
	lower  bound
	upper  bound
	empty  bool
}

// rulesFor lists the rules of a filter, most selective scans first.
func rulesFor(f encodedFilter) []rule {
	var rs []rule
	if f.eq != nil {
		rs = append(rs, rule{kind: ruleEq, value: *f.eq})
	}
	if f.prefix != nil {
		rs = append(rs, rule{kind: rulePrefix, value: *f.prefix})
	}
	if f.empty != AnyEmptiness {
		rs = append(rs, rule{kind: ruleEmpty, empty: f.empty == MustBeEmpty})
	}
	if f.gt != nil || f.gte != nil || f.lt != nil || f.lte != nil {
		r := rule{kind: ruleRange}
		switch {
		case f.gt != nil && f.gte != nil:
			// the stricter of the two
			if *f.gte > *f.gt {
				r.lower = bound{f.gte, true}
			} else {
				r.lower = bound{f.gt, false}
			}
		case f.gt != nil:
			r.lower = bound{f.gt, false}
		case f.gte != nil:
			r.lower = bound{f.gte, true}
		}
		switch {
		case f.lt != nil && f.lte != nil:
			if *f.lte < *f.lt {
				r.upper = bound{f.lte, true}
			} else {
				r.upper = bound{f.lt, false}
			}
		case f.lt != nil:
			r.upper = bound{f.lt, false}
		case f.lte != nil:
			r.upper = bound{f.lte, true}
		}
		rs = append(rs, r)
	}
	if f.in != nil {
		rs = append(rs, rule{kind: ruleIn, values: f.in})
	}
	if f.out != nil {
		rs = append(rs, rule{kind: ruleOut, values: f.out})
	}
	if f.everyEq != nil {
		rs = append(rs, rule{kind: ruleEveryEq, values: f.everyEq})
	}
	if f.everyPrefix != nil {
		rs = append(rs, rule{kind: ruleEveryPrefix, values: f.everyPrefix})
	}
	return rs
}

// candidate is the encoded value of one field of a record.
type candidate struct {
	value   string
	values  []string
	isArray bool
}

func (c *candidate) some(pred func(v string) bool) bool {
	if !c.isArray {
		return pred(c.value)
	}
	return slices.ContainsFunc(c.values, pred)
}

func (c *candidate) elements() []string {
	if c.isArray {
		return c.values
	}
	return []string{c.value}
}

func (r *rule) inRange(v string) bool {
	if lo := r.lower.value; lo != nil {
		if v < *lo || (v == *lo && !r.lower.inc) {
			return false
		}
	}
	if hi := r.upper.value; hi != nil {
		if v > *hi || (v == *hi && !r.upper.inc) {
			return false
		}
	}
	return true
}

func (r *rule) contains(v string) bool {
	_, ok := slices.BinarySearch(r.values, v)
	return ok
}

func (r *rule) fails(c *candidate) bool {
	switch r.kind {
	case ruleEq:
		return !c.some(func(v string) bool { return v == r.value })
	case rulePrefix:
		return !c.some(func(v string) bool { return strings.HasPrefix(v, r.value) })
	case ruleRange:
		return !c.some(r.inRange)
	case ruleIn:
		return !c.some(r.contains)
	case ruleOut:
		return !c.some(func(v string) bool { return !r.contains(v) })
	case ruleEmpty:
		return !c.isArray || (len(c.values) == 0) != r.empty
	case ruleEveryEq:
		elems := c.elements()
		for _, v := range r.values {
			if !slices.Contains(elems, v) {
				return true
			}
		}
		return false
	case ruleEveryPrefix:
		elems := c.elements()
		for _, p := range r.values {
			if !slices.ContainsFunc(elems, func(v string) bool { return strings.HasPrefix(v, p) }) {
				return true
			}
		}
		return false
	default:
		panic("unknown rule")
	}
}

// narrow returns the index prefix this rule confines matches to, if any.
func (r *rule) narrow(path string) (string, bool) {
	switch r.kind {
	case ruleEq:
		return path + r.value + sep, true
	case rulePrefix:
		return path + r.value, true
	case ruleEmpty:
		if r.empty {
			return path + sentinelEmpty + sep, true
		}
		return path + sentinelNonEmpty + sep, true
	}
	return "", false
}

// scanners builds the id scanners of the rule over the index at path.
func (r *rule) scanners(sc *scanContext, path string) []Scanner {
	switch r.kind {
	case ruleEq, ruleEmpty:
		prefix, _ := r.narrow(path)
		return []Scanner{sc.ids(prefix)}
	case rulePrefix:
		prefix, _ := r.narrow(path)
		return []Scanner{sc.combinations(sc.groups(path, RawPrefix([]byte(prefix)), nil))}
	case ruleRange:
		rang := RawPrefix([]byte(path))
		if lo := r.lower.value; lo != nil {
			if r.lower.inc {
				rang.Lower, rang.LowerInc = []byte(path+*lo), true
			} else {
				rang.Lower, rang.LowerInc = []byte(path+*lo+afterSep), true
			}
		}
		if hi := r.upper.value; hi != nil {
			if r.upper.inc {
				rang.Upper, rang.UpperInc = []byte(path+*hi+afterSep), false
			} else {
				rang.Upper, rang.UpperInc = []byte(path+*hi), false
			}
		}
		return []Scanner{sc.combinations(sc.groups(path, rang, r.inRange))}
	case ruleIn:
		ss := make([]Scanner, 0, len(r.values))
		for _, v := range r.values {
			ss = append(ss, sc.ids(path+v+sep))
		}
		return []Scanner{newUnion(ss)}
	case ruleOut:
		// one scan per gap between excluded values
		accept := func(v string) bool { return !r.contains(v) }
		ss := make([]Scanner, 0, len(r.values)+1)
		for i := 0; i <= len(r.values); i++ {
			rang := RawPrefix([]byte(path))
			if i > 0 {
				rang.Lower, rang.LowerInc = []byte(path+r.values[i-1]+afterSep), true
			}
			if i < len(r.values) {
				rang.Upper, rang.UpperInc = []byte(path+r.values[i]), false
			}
			ss = append(ss, sc.combinations(sc.groups(path, rang, accept)))
		}
		return []Scanner{newUnion(ss)}
	case ruleEveryEq:
		if len(r.values) == 0 {
			return nil
		}
		ss := make([]Scanner, 0, len(r.values))
		for _, v := range r.values {
			ss = append(ss, sc.ids(path+v+sep))
		}
		return []Scanner{newIntersection(ss)}
	case ruleEveryPrefix:
		if len(r.values) == 0 {
			return nil
		}
		ss := make([]Scanner, 0, len(r.values))
		for _, p := range r.values {
			ss = append(ss, sc.combinations(sc.groups(path, RawPrefix([]byte(path+p)), nil)))
		}
		return []Scanner{newIntersection(ss)}
	default:
		panic("unknown rule")
	}
}
