package docdb

// intersection yields tokens produced by every child. Children are advanced
// in turn, each one asked to catch up with the largest token seen so far,
// until all of them agree.
type intersection struct {
	children []Scanner
	cur      []string
	has      []bool
	last     string
	started  bool
	done     bool
}

func newIntersection(children []Scanner) Scanner {
	if len(children) == 1 {
		return children[0]
	}
	return &intersection{
		children: children,
		cur:      make([]string, len(children)),
		has:      make([]bool, len(children)),
	}
}

func (m *intersection) Next(h Hint) (string, bool, error) {
	if m.done {
		return "", false, nil
	}
	n := len(m.children)
	if n == 0 {
		m.done = true
		return "", false, nil
	}
	bound := h
	if m.started {
		bound = tighter(bound, Hint{Value: m.last})
	}
	agree := 0
	for i := 0; agree < n; i = (i + 1) % n {
		if !m.has[i] || !bound.admits(m.cur[i]) {
			tok, ok, err := m.children[i].Next(bound)
			if err != nil || !ok {
				m.Close()
				return "", false, err
			}
			m.cur[i], m.has[i] = tok, true
		}
		if bound.Same && m.cur[i] == bound.Value {
			agree++
		} else {
			bound = Hint{Value: m.cur[i], Same: true}
			agree = 1
		}
	}
	m.last, m.started = bound.Value, true
	return bound.Value, true, nil
}

func (m *intersection) Close() {
	m.done = true
	closeAll(m.children)
}

// union yields tokens produced by any child, each once.
type union struct {
	children []Scanner
	cur      []string
	has      []bool
	finished []bool
	last     string
	started  bool
}

func newUnion(children []Scanner) Scanner {
	if len(children) == 1 {
		return children[0]
	}
	return &union{
		children: children,
		cur:      make([]string, len(children)),
		has:      make([]bool, len(children)),
		finished: make([]bool, len(children)),
	}
}

func (m *union) Next(h Hint) (string, bool, error) {
	bound := h
	if m.started {
		bound = tighter(bound, Hint{Value: m.last})
	}
	var min string
	found := false
	for i, s := range m.children {
		if m.finished[i] {
			continue
		}
		if !m.has[i] || !bound.admits(m.cur[i]) {
			tok, ok, err := s.Next(bound)
			if err != nil {
				return "", false, err
			}
			if !ok {
				m.finished[i] = true
				s.Close()
				continue
			}
			m.cur[i], m.has[i] = tok, true
		}
		if !found || m.cur[i] < min {
			min, found = m.cur[i], true
		}
	}
	if !found {
		return "", false, nil
	}
	m.last, m.started = min, true
	return min, true, nil
}

func (m *union) Close() {
	for i, s := range m.children {
		if !m.finished[i] {
			m.finished[i] = true
			s.Close()
		}
	}
}
