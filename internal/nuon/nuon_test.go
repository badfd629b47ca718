package nuon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	text, err := Marshal(v)
	require.NoError(t, err)
	out, err := Unmarshal(0, 0, []byte(text))
	require.NoError(t, err)
	return out
}

func TestRoundTripScalars(t *testing.T) {
	cases := []value.Value{
		value.Nothing(span.Unknown),
		value.MkBool(true, span.Unknown),
		value.MkBool(false, span.Unknown),
		value.MkInt(-42, span.Unknown),
		value.MkFloat(3.5, span.Unknown),
		value.MkString("hello \"world\"\nline two", span.Unknown),
		value.MkDuration(4_000_000_000, span.Unknown),
		value.MkDuration(1_500_000, span.Unknown),
		value.MkFilesize(10_000_000, span.Unknown),
		value.MkBinary([]byte{0xDE, 0xAD, 0xBE, 0xEF}, span.Unknown),
	}
	for _, in := range cases {
		out := roundTrip(t, in)
		assert.Equal(t, in.Tag, out.Tag)
		assert.Equal(t, value.Display(in), value.Display(out))
	}
}

func TestRoundTripFloatNeverReadsBackAsInt(t *testing.T) {
	in := value.MkFloat(4.0, span.Unknown)
	text, err := Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, "4.0", text)
	out, err := Unmarshal(0, 0, []byte(text))
	require.NoError(t, err)
	assert.Equal(t, value.TagFloat, out.Tag)
}

func TestRoundTripRecord(t *testing.T) {
	rec, err := value.NewRecord([]string{"name", "age", "active"}, []value.Value{
		value.MkString("ferris", span.Unknown),
		value.MkInt(3, span.Unknown),
		value.MkBool(true, span.Unknown),
	})
	require.NoError(t, err)
	in := value.MkRecord(rec, span.Unknown)

	text, err := Marshal(in)
	require.NoError(t, err)

	out, err := Unmarshal(0, 0, []byte(text))
	require.NoError(t, err)
	require.Equal(t, value.TagRecord, out.Tag)
	require.Equal(t, []string{"name", "age", "active"}, out.Record.Columns())
	nameV, ok := out.Record.Get("name")
	require.True(t, ok)
	assert.Equal(t, "ferris", nameV.Str)
}

func TestRoundTripNestedList(t *testing.T) {
	in := value.MkList([]value.Value{
		value.MkInt(1, span.Unknown),
		value.MkList([]value.Value{value.MkInt(2, span.Unknown), value.MkInt(3, span.Unknown)}, span.Unknown),
		value.Nothing(span.Unknown),
	}, span.Unknown)

	out := roundTrip(t, in)
	require.Equal(t, value.TagList, out.Tag)
	require.Len(t, out.List, 3)
	assert.Equal(t, int64(1), out.List[0].Int)
	require.Equal(t, value.TagList, out.List[1].Tag)
	assert.Equal(t, int64(2), out.List[1].List[0].Int)
	assert.Equal(t, value.TagNothing, out.List[2].Tag)
}

func TestRoundTripDate(t *testing.T) {
	d, err := value.ParseDate("2024-03-05T10:30:00Z")
	require.NoError(t, err)
	in := value.MkDate(d, span.Unknown)
	out := roundTrip(t, in)
	require.Equal(t, value.TagDate, out.Tag)
	assert.True(t, d.Equal(out.Date))
}

func TestQuotedKeyRoundTrips(t *testing.T) {
	rec, err := value.NewRecord([]string{"has space", "plain"}, []value.Value{
		value.MkInt(1, span.Unknown),
		value.MkInt(2, span.Unknown),
	})
	require.NoError(t, err)
	in := value.MkRecord(rec, span.Unknown)
	out := roundTrip(t, in)
	v, ok := out.Record.Get("has space")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Int)
}

func TestMarshalRejectsNonSerializableTags(t *testing.T) {
	closure := value.MkClosure(value.Closure{BlockID: 1}, span.Unknown)
	_, err := Marshal(closure)
	assert.Error(t, err)
}

func TestUnmarshalRejectsTrailingData(t *testing.T) {
	_, err := Unmarshal(0, 0, []byte("1 2"))
	assert.Error(t, err)
}

func TestJSONRoundTripIsLossyForDurationAndFilesize(t *testing.T) {
	rec, err := value.NewRecord([]string{"span", "size"}, []value.Value{
		value.MkDuration(4_000_000_000, span.Unknown),
		value.MkFilesize(1000, span.Unknown),
	})
	require.NoError(t, err)
	in := value.MkRecord(rec, span.Unknown)

	data, err := ToJSON(in)
	require.NoError(t, err)

	out, err := FromJSON(0, 0, data)
	require.NoError(t, err)
	require.Equal(t, []string{"span", "size"}, out.Record.Columns())

	spanV, _ := out.Record.Get("span")
	assert.Equal(t, value.TagInt, spanV.Tag)
	assert.Equal(t, int64(4_000_000_000), spanV.Int)

	sizeV, _ := out.Record.Get("size")
	assert.Equal(t, value.TagInt, sizeV.Tag)
	assert.Equal(t, int64(1000), sizeV.Int)
}

func TestJSONPreservesObjectKeyOrder(t *testing.T) {
	data := []byte(`{"z": 1, "a": 2, "m": 3}`)
	out, err := FromJSON(0, 0, data)
	require.NoError(t, err)
	require.Equal(t, []string{"z", "a", "m"}, out.Record.Columns())
}

func TestDecodeIntoUsesMapstructure(t *testing.T) {
	type target struct {
		Name string
		Age  int
	}
	data := []byte(`{"Name": "ferris", "Age": "3"}`) // weakly-typed: Age as string
	var out target
	require.NoError(t, DecodeInto(data, &out))
	assert.Equal(t, "ferris", out.Name)
	assert.Equal(t, 3, out.Age)
}
