package sortable

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeNumberOrder(t *testing.T) {
	values := []float64{
		math.Inf(-1), -maxSafe, -1e12, -1000.5, -37, -36, -35.75, -2, -1.5, -1.25, -1,
		-0.5, -0.25, -1e-9, 0, 1e-9, 0.25, 0.5, 1, 1.25, 1.5, 2, 35, 35.999, 36, 37,
		1000.5, 1e12, maxSafe, math.Inf(1),
	}
	for i := 1; i < len(values); i++ {
		a, b := EncodeNumber(values[i-1]), EncodeNumber(values[i])
		assert.Less(t, a, b, "%v (%q) should sort before %v (%q)", values[i-1], a, values[i], b)
	}
}

func TestEncodeNumberRandomOrder(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	values := make([]float64, 2000)
	for i := range values {
		switch i % 4 {
		case 0:
			values[i] = float64(rnd.Int63n(1e9) - 5e8)
		case 1:
			values[i] = (rnd.Float64() - 0.5) * 1e6
		case 2:
			values[i] = (rnd.Float64() - 0.5) * 4
		default:
			values[i] = float64(rnd.Intn(100)-50) + float64(rnd.Intn(8))/8
		}
	}
	sort.Float64s(values)
	for i := 1; i < len(values); i++ {
		a, b := EncodeNumber(values[i-1]), EncodeNumber(values[i])
		if values[i-1] == values[i] {
			assert.Equal(t, a, b)
		} else {
			assert.LessOrEqual(t, a, b, "%v vs %v", values[i-1], values[i])
		}
	}
}

func TestEncodeNumberFormat(t *testing.T) {
	assert.Equal(t, "00000000000", EncodeNumber(0))
	assert.Equal(t, "00000000000", EncodeNumber(math.Copysign(0, -1)))
	assert.Equal(t, "00000000001", EncodeNumber(1))
	assert.Equal(t, "0000000000a", EncodeNumber(10))
	assert.Equal(t, "00000000010", EncodeNumber(36))
	assert.Equal(t, "00000000001.i", EncodeNumber(1.5))
	assert.Equal(t, NegInf, EncodeNumber(math.Inf(-1)))
	assert.Equal(t, PosInf, EncodeNumber(math.Inf(1)))
	assert.Equal(t, Null, EncodeNumber(math.NaN()))
	assert.True(t, strings.HasPrefix(EncodeNumber(-1), "-"))
}

func TestNullSortsFirst(t *testing.T) {
	for _, k := range []Kind{String, Number, Boolean, StringNum, Object} {
		assert.Equal(t, Null, k.Encode(nil), k.String())
	}
	assert.Less(t, Null, Number.Encode(math.Inf(-1)))
	assert.Less(t, Null, String.Encode("a"))
	assert.Less(t, Null, Boolean.Encode(false))
}

func TestEncodeStringNum(t *testing.T) {
	assert.Less(t, EncodeStringNum("Task #9"), EncodeStringNum("Task #10"))
	assert.Less(t, EncodeStringNum("Task #10"), EncodeStringNum("Task #100"))
	assert.Less(t, EncodeStringNum("v2"), EncodeStringNum("v10"))
	assert.Less(t, EncodeStringNum("v1.1"), EncodeStringNum("v1.25"))
	assert.Less(t, EncodeStringNum("x -5"), EncodeStringNum("x 3"))
	assert.Equal(t, "Task #0000000000a", EncodeStringNum("Task #10"))
	assert.Equal(t, "no numbers", EncodeStringNum("no numbers"))

	// the trailing component of "1.2.3" continues a fraction
	assert.Equal(t, EncodeNumber(1.2)+".3", EncodeStringNum("1.2.3"))
	assert.Equal(t, "x."+"5", EncodeStringNum("x.5"))
}

func TestEncodeBoolean(t *testing.T) {
	assert.Equal(t, "0", Boolean.Encode(false))
	assert.Equal(t, "1", Boolean.Encode(true))
	assert.Less(t, Boolean.Encode(false), Boolean.Encode(true))
}

func TestEncodeObjectCanonical(t *testing.T) {
	a := map[string]any{"b": 2.0, "a": []any{"x", true, nil}}
	b := map[string]any{"a": []any{"x", true, nil}, "b": 2}
	require.Equal(t, EncodeObject(a), EncodeObject(b))
	assert.Equal(t, `{"a":["x","1","\u0000"],"b":"00000000002"}`, EncodeObject(a))

	nested := map[string]any{"self": map[string]any{"self": map[string]any{}}}
	assert.Equal(t, `{"self":{"self":{}}}`, EncodeObject(nested))
}

func TestKindEncodeConversions(t *testing.T) {
	assert.Equal(t, EncodeNumber(5), Number.Encode("5"))
	assert.Equal(t, EncodeNumber(5), Number.Encode(int64(5)))
	assert.Equal(t, EncodeNumber(1), Number.Encode(true))
	assert.Equal(t, "abc", String.Encode("abc"))
	assert.Equal(t, "2.5", String.Encode(2.5))
	assert.Equal(t, "1", Boolean.Encode("yes"))
}

func TestParseKind(t *testing.T) {
	for k, name := range kindNames {
		got, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("date")
	assert.Error(t, err)
}
