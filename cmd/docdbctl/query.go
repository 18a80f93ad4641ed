package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andreyvit/docdb"
)

// queryJSON is the command-line form of docdb.Query:
//
//	{"where": {"tags": {"eq": "job"}, "effort": {"gte": 2}},
//	 "orderBy": ["-effort", "title"], "offset": 0, "limit": 10}
//
// A JSON null operand compares against null or missing values. A leading
// minus in orderBy sorts descending.
type queryJSON struct {
	Where   map[string]filterJSON `json:"where"`
	OrderBy []string              `json:"orderBy"`
	Offset  int                   `json:"offset"`
	Limit   *int                  `json:"limit"`
}

type filterJSON struct {
	Eq          json.RawMessage   `json:"eq"`
	Gt          json.RawMessage   `json:"gt"`
	Gte         json.RawMessage   `json:"gte"`
	Lt          json.RawMessage   `json:"lt"`
	Lte         json.RawMessage   `json:"lte"`
	Prefix      json.RawMessage   `json:"prefix"`
	In          []json.RawMessage `json:"in"`
	Out         []json.RawMessage `json:"out"`
	Empty       *bool             `json:"empty"`
	EveryEq     []json.RawMessage `json:"everyEq"`
	EveryPrefix []json.RawMessage `json:"everyPrefix"`
}

func parseQuery(s string) (docdb.Query, error) {
	var q docdb.Query
	if strings.TrimSpace(s) == "" {
		return q, nil
	}
	var qj queryJSON
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&qj); err != nil {
		return q, fmt.Errorf("invalid query: %w", err)
	}
	if qj.Offset < 0 {
		return q, fmt.Errorf("invalid query: negative offset")
	}
	if qj.Limit != nil && *qj.Limit < 0 {
		return q, fmt.Errorf("invalid query: negative limit")
	}

	if len(qj.Where) > 0 {
		q.Where = make(map[string]docdb.Filter, len(qj.Where))
		for field, fj := range qj.Where {
			f, err := fj.filter()
			if err != nil {
				return q, fmt.Errorf("invalid query: where.%s: %w", field, err)
			}
			q.Where[field] = f
		}
	}
	for _, o := range qj.OrderBy {
		if field, ok := strings.CutPrefix(o, "-"); ok {
			q.OrderBy = append(q.OrderBy, docdb.Desc(field))
		} else {
			q.OrderBy = append(q.OrderBy, docdb.Asc(strings.TrimPrefix(o, "+")))
		}
	}
	q.Offset = qj.Offset
	q.Limit = qj.Limit
	return q, nil
}

func (fj *filterJSON) filter() (docdb.Filter, error) {
	var f docdb.Filter
	var err error
	scalar := func(dst *any, raw json.RawMessage) {
		if err == nil && raw != nil {
			*dst, err = operand(raw)
		}
	}
	list := func(raws []json.RawMessage) []any {
		if raws == nil || err != nil {
			return nil
		}
		out := make([]any, 0, len(raws))
		for _, raw := range raws {
			var v any
			v, err = operand(raw)
			out = append(out, v)
		}
		return out
	}
	scalar(&f.Eq, fj.Eq)
	scalar(&f.Gt, fj.Gt)
	scalar(&f.Gte, fj.Gte)
	scalar(&f.Lt, fj.Lt)
	scalar(&f.Lte, fj.Lte)
	scalar(&f.Prefix, fj.Prefix)
	f.In = list(fj.In)
	f.Out = list(fj.Out)
	f.EveryEq = list(fj.EveryEq)
	f.EveryPrefix = list(fj.EveryPrefix)
	if fj.Empty != nil {
		if *fj.Empty {
			f.Empty = docdb.MustBeEmpty
		} else {
			f.Empty = docdb.MustNotBeEmpty
		}
	}
	return f, err
}

func operand(raw json.RawMessage) (any, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return docdb.Null, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
