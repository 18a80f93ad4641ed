package docdb

import (
	"bytes"
	"log/slog"
	"strings"
)

// Hint is a lower bound a consumer passes to Scanner.Next. With Same set
// the scanner may return Value itself (catching up); otherwise it must move
// past it. The zero Hint admits every token.
type Hint struct {
	Value string
	Same  bool
}

func (h Hint) admits(tok string) bool {
	if h.Same {
		return tok >= h.Value
	}
	return tok > h.Value
}

// tighter returns the stricter of two hints.
func tighter(a, b Hint) Hint {
	switch {
	case a.Value > b.Value:
		return a
	case b.Value > a.Value:
		return b
	case !a.Same:
		return a
	default:
		return b
	}
}

// Scanner produces strictly ascending tokens (record ids, or value-group
// prefixes). Next returns the smallest token that is greater than the
// previous one and admitted by the hint; ok is false once the scanner is
// exhausted. Scanners hold substrate iterators and must be closed.
type Scanner interface {
	Next(h Hint) (tok string, ok bool, err error)
	Close()
}

// scanContext creates leaf scanners over one store.
type scanContext struct {
	store  Store
	logger *slog.Logger
}

// ids scans the record ids of one value group; prefix ends with sep.
func (sc *scanContext) ids(prefix string) Scanner {
	p := []byte(prefix)
	return &rangeScanner{
		store: sc.store,
		rang:  RawPrefix(p),
		token: func(key []byte) string { return string(key[len(p):]) },
		seek: func(h Hint) ([]byte, bool) {
			return append(bytes.Clone(p), h.Value...), h.Same
		},
	}
}

// groups scans the distinct value groups of the index at path that fall
// within rang, skipping array sentinels. Tokens are group prefixes
// (path + value + sep); accept, if set, filters on the decoded value.
func (sc *scanContext) groups(path string, rang RawRange, accept func(value string) bool) Scanner {
	return sc.newGroupScanner(path, rang, func(value string) bool {
		if isSentinel(value) {
			return false
		}
		return accept == nil || accept(value)
	})
}

// allGroups is like groups, but includes array sentinels.
func (sc *scanContext) allGroups(path string, rang RawRange) Scanner {
	return sc.newGroupScanner(path, rang, nil)
}

func (sc *scanContext) newGroupScanner(path string, rang RawRange, accept func(value string) bool) Scanner {
	s := &rangeScanner{
		store: sc.store,
		rang:  rang,
		token: func(key []byte) string { return groupOf(string(key)) },
		seek: func(h Hint) ([]byte, bool) {
			if h.Same {
				return []byte(h.Value), true
			}
			return []byte(pastGroup(h.Value)), true
		},
	}
	if accept != nil {
		s.accept = func(group string) bool {
			if len(group) <= len(path) {
				return false
			}
			return accept(group[len(path) : len(group)-1])
		}
	}
	return s
}

// combinations drains a group scanner and unions the id scanners of every
// group it produced.
func (sc *scanContext) combinations(groups Scanner) Scanner {
	return &comboScanner{sc: sc, groups: groups}
}

type rangeScanner struct {
	store  Store
	rang   RawRange
	token  func(key []byte) string
	seek   func(h Hint) (lower []byte, inc bool)
	accept func(tok string) bool

	it      Iterator
	last    string
	started bool
	done    bool
}

func (s *rangeScanner) Next(h Hint) (string, bool, error) {
	if s.done {
		return "", false, nil
	}
	if s.started {
		h = tighter(h, Hint{Value: s.last})
	}
	fresh := false
	if s.it == nil {
		s.open(h)
		fresh = true
	}
	for {
		if !s.it.Next() {
			err := s.it.Err()
			s.Close()
			return "", false, err
		}
		tok := s.token(s.it.Key())
		if !h.admits(tok) {
			// Behind the hint: jump instead of stepping through the gap.
			// A fresh iterator is already positioned, so just step.
			if !fresh {
				s.open(h)
				fresh = true
			}
			continue
		}
		fresh = false
		if s.accept != nil && !s.accept(tok) {
			h = Hint{Value: tok}
			continue
		}
		s.last, s.started = tok, true
		return tok, true, nil
	}
}

func (s *rangeScanner) open(h Hint) {
	if s.it != nil {
		s.it.Close()
	}
	rang := s.rang
	if h != (Hint{}) {
		lower, inc := s.seek(h)
		if rang.Lower == nil || bytes.Compare(lower, rang.Lower) > 0 {
			rang.Lower, rang.LowerInc = lower, inc
		}
	}
	s.it = s.store.Scan(rang)
}

func (s *rangeScanner) Close() {
	s.done = true
	if s.it != nil {
		s.it.Close()
		s.it = nil
	}
}

type comboScanner struct {
	sc     *scanContext
	groups Scanner
	union  Scanner
}

func (s *comboScanner) Next(h Hint) (string, bool, error) {
	if s.union == nil {
		var children []Scanner
		for {
			g, ok, err := s.groups.Next(Hint{})
			if err != nil {
				s.groups.Close()
				closeAll(children)
				s.union = newUnion(nil)
				return "", false, err
			}
			if !ok {
				break
			}
			children = append(children, s.sc.ids(g))
		}
		s.groups.Close()
		s.union = newUnion(children)
	}
	return s.union.Next(h)
}

func (s *comboScanner) Close() {
	s.groups.Close()
	if s.union != nil {
		s.union.Close()
	}
}

func closeAll(ss []Scanner) {
	for _, s := range ss {
		s.Close()
	}
}

// fullScan enumerates every id with an entry under prefix of the index at path.
func (sc *scanContext) fullScan(path, prefix string) Scanner {
	if !strings.HasPrefix(prefix, path) {
		prefix = path
	}
	return sc.combinations(sc.allGroups(path, RawPrefix([]byte(prefix))))
}
