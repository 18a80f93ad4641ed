/*
Package sortable converts field values into strings whose byte-wise order
matches the natural order of the values.

Encoded strings never contain the key separator bytes \x03 and \x04, nor
the array marker \x06, as long as the source strings don't. Null sorts
before everything else.
*/
package sortable

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Null is the encoding of a missing or null value.
const Null = "\x00"

const (
	NegInf = ","
	PosInf = ":"

	intWidth   = 11
	fracDigits = 12
	maxSafe    = 1<<53 - 1
	fracPrec   = 2200
)

// Kind selects how values of an indexed field are encoded.
type Kind int

const (
	String Kind = iota + 1
	Number
	Boolean
	StringNum
	Object
)

var kindNames = map[Kind]string{
	String:    "string",
	Number:    "number",
	Boolean:   "boolean",
	StringNum: "stringNum",
	Object:    "object",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown index kind %q", s)
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Encode returns the sortable form of v. It never fails: values of an
// unexpected type are converted the closest sensible way.
func (k Kind) Encode(v any) string {
	if v == nil {
		return Null
	}
	switch k {
	case Number:
		if f, ok := toFloat(v); ok {
			return EncodeNumber(f)
		}
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return EncodeNumber(f)
			}
			return s
		}
		if b, ok := v.(bool); ok {
			return EncodeNumber(boolFloat(b))
		}
		return EncodeObject(v)
	case Boolean:
		return EncodeBool(truthy(v))
	case StringNum:
		return EncodeStringNum(plainString(v))
	case Object:
		return EncodeObject(v)
	default:
		return plainString(v)
	}
}

// EncodeBool encodes false as "0" and true as "1".
func EncodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// EncodeNumber produces a fixed-width base-36 integer part followed by
// an optional base-36 fraction. Negative numbers are prefixed with '-' and
// mirrored around the largest safe integer so that they sort correctly.
// NaN is treated like null.
func EncodeNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return Null
	case math.IsInf(f, -1):
		return NegInf
	case math.IsInf(f, 1):
		return PosInf
	}
	if f >= 0 {
		ip, fp := math.Modf(f)
		var buf strings.Builder
		buf.WriteString(padInt(intDigits(ip)))
		if fp > 0 {
			if s := fracString(new(big.Float).SetPrec(fracPrec).SetFloat64(fp)); s != "" {
				buf.WriteByte('.')
				buf.WriteString(s)
			}
		}
		return buf.String()
	}

	ip, fp := math.Modf(-f)
	var buf strings.Builder
	buf.WriteByte('-')
	if fp == 0 {
		buf.WriteString(padInt(mirror(ip, 0)))
		return buf.String()
	}
	buf.WriteString(padInt(mirror(ip, 1)))
	rest := new(big.Float).SetPrec(fracPrec).SetInt64(1)
	rest.Sub(rest, new(big.Float).SetPrec(fracPrec).SetFloat64(fp))
	if s := fracString(rest); s != "" {
		buf.WriteByte('.')
		buf.WriteString(s)
	}
	return buf.String()
}

// mirror computes maxSafe-ip-extra, clamped at zero.
func mirror(ip float64, extra int64) string {
	n := new(big.Int).SetInt64(maxSafe)
	bi, _ := new(big.Float).SetFloat64(ip).Int(nil)
	n.Sub(n, bi)
	n.Sub(n, big.NewInt(extra))
	if n.Sign() < 0 {
		n.SetInt64(0)
	}
	return n.Text(36)
}

func intDigits(ip float64) string {
	if ip < 1<<63 {
		return strconv.FormatUint(uint64(ip), 36)
	}
	bi, _ := new(big.Float).SetFloat64(ip).Int(nil)
	return bi.Text(36)
}

func padInt(s string) string {
	if len(s) >= intWidth {
		return s
	}
	return strings.Repeat("0", intWidth-len(s)) + s
}

func fracString(fp *big.Float) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	var buf [fracDigits]byte
	n := 0
	base := new(big.Float).SetPrec(fracPrec).SetInt64(36)
	for n < fracDigits && fp.Sign() > 0 {
		fp.Mul(fp, base)
		d, _ := fp.Int64()
		buf[n] = digits[d]
		n++
		fp.Sub(fp, new(big.Float).SetPrec(fracPrec).SetInt64(d))
	}
	return strings.TrimRight(string(buf[:n]), "0")
}

// EncodeStringNum replaces every decimal number embedded in s with its
// EncodeNumber form, so that "Task #9" sorts before "Task #10".
// A digit run that continues a fraction ("1.25" seen from the "25") is
// not a separate number.
func EncodeStringNum(s string) string {
	var buf strings.Builder
	i := 0
	for i < len(s) {
		start, end := nextNumber(s, i)
		if start < 0 {
			buf.WriteString(s[i:])
			break
		}
		buf.WriteString(s[i:start])
		f, err := strconv.ParseFloat(s[start:end], 64)
		if err != nil {
			buf.WriteString(s[start:end])
		} else {
			buf.WriteString(EncodeNumber(f))
		}
		i = end
	}
	return buf.String()
}

// nextNumber finds the next match of -?[0-9]+(\.[0-9]+)? at or after i
// that isn't preceded by a dot followed by digits.
func nextNumber(s string, i int) (int, int) {
	for ; i < len(s); i++ {
		start := i
		j := i
		if s[j] == '-' {
			j++
		}
		if j >= len(s) || !isDigit(s[j]) {
			continue
		}
		if insideFraction(s, start) {
			continue
		}
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j+1 < len(s) && s[j] == '.' && isDigit(s[j+1]) {
			j++
			for j < len(s) && isDigit(s[j]) {
				j++
			}
		}
		return start, j
	}
	return -1, -1
}

func insideFraction(s string, pos int) bool {
	k := pos - 1
	for k >= 0 && isDigit(s[k]) {
		k--
	}
	return k >= 0 && s[k] == '.'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// EncodeObject produces a canonical JSON-like form: map keys sorted, every
// leaf replaced by its own sortable encoding.
func EncodeObject(v any) string {
	var buf strings.Builder
	writeObject(&buf, v)
	return buf.String()
}

func writeObject(buf *strings.Builder, v any) {
	switch v := v.(type) {
	case nil:
		writeQuoted(buf, Null)
	case string:
		writeQuoted(buf, v)
	case bool:
		writeQuoted(buf, EncodeBool(v))
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(v)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeQuoted(buf, k)
			buf.WriteByte(':')
			writeObject(buf, v[k])
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeObject(buf, e)
		}
		buf.WriteByte(']')
	default:
		if f, ok := toFloat(v); ok {
			writeQuoted(buf, EncodeNumber(f))
			return
		}
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			items := make([]any, rv.Len())
			for i := range items {
				items[i] = rv.Index(i).Interface()
			}
			writeObject(buf, items)
		case reflect.Map:
			if rv.Type().Key().Kind() == reflect.String {
				m := make(map[string]any, rv.Len())
				for it := rv.MapRange(); it.Next(); {
					m[it.Key().String()] = it.Value().Interface()
				}
				writeObject(buf, m)
				return
			}
			writeQuoted(buf, fmt.Sprint(v))
		default:
			writeQuoted(buf, fmt.Sprint(v))
		}
	}
}

func writeQuoted(buf *strings.Builder, s string) {
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	buf.Write(b)
}

func plainString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return EncodeObject(v)
}

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return v != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// ToFloat reports whether v is a Go numeric type, and converts it.
func ToFloat(v any) (float64, bool) {
	return toFloat(v)
}
