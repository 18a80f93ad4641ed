package docdb

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/andreyvit/docdb/sortable"
)

// Record holds the fields of a document. Values are nil, bool, float64,
// string, []any and map[string]any; other numeric and slice/map types are
// converted on write.
type Record map[string]any

// Row is a record together with its id.
type Row struct {
	ID     string
	Record Record
}

func normalizeRecord(rec Record) (Record, error) {
	out := make(Record, len(rec))
	for k, v := range rec {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch v := v.(type) {
	case nil, bool, string, float64:
		return v, nil
	case Record:
		return normalizeMap(v)
	case map[string]any:
		return normalizeMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			ne, err := normalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	}
	if f, ok := sortable.ToFloat(v); ok {
		return f, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			ne, err := normalizeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			m[it.Key().String()] = it.Value().Interface()
		}
		return normalizeMap(m)
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// Clone returns a deep copy of rec.
func (rec Record) Clone() Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// decodeRecord reverses encodeValue, bringing msgpack's integer and map
// types back to the normalized form.
func decodeRecord(raw []byte) (Record, error) {
	var m map[string]any
	if err := decodeValue(raw, &m); err != nil {
		return nil, err
	}
	rec, err := normalizeRecord(m)
	if err != nil {
		return nil, dataErrf(raw, 0, err, "record")
	}
	return rec, nil
}

// fieldCandidate encodes one field of rec for rule checks.
func fieldCandidate(kind sortable.Kind, rec Record, field string) candidate {
	v := rec[field]
	if arr, ok := v.([]any); ok {
		values := make([]string, 0, len(arr))
		for _, e := range arr {
			values = append(values, kind.Encode(e))
		}
		return candidate{values: values, isArray: true}
	}
	return candidate{value: kind.Encode(v)}
}

// fieldEntries lists the distinct encoded index values of one field,
// including the emptiness sentinel for arrays.
func fieldEntries(kind sortable.Kind, rec Record, field string) []string {
	if rec == nil {
		return nil
	}
	c := fieldCandidate(kind, rec, field)
	if !c.isArray {
		return []string{c.value}
	}
	entries := make([]string, 0, len(c.values)+1)
	if len(c.values) == 0 {
		entries = append(entries, sentinelEmpty)
	} else {
		entries = append(entries, sentinelNonEmpty)
	}
	entries = append(entries, c.values...)
	slices.Sort(entries)
	return slices.Compact(entries)
}

// diffEntries returns the entries only in old and the entries only in new.
// Both inputs are sorted and distinct.
func diffEntries(old, new []string) (removed, added []string) {
	i, j := 0, 0
	for i < len(old) || j < len(new) {
		switch {
		case j >= len(new) || (i < len(old) && old[i] < new[j]):
			removed = append(removed, old[i])
			i++
		case i >= len(old) || new[j] < old[i]:
			added = append(added, new[j])
			j++
		default:
			i++
			j++
		}
	}
	return
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
