package nuon

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// ToJSON renders v as JSON, the lossy subset of nuon spec.md §6 describes:
// durations and filesizes become plain numbers (nanoseconds / bytes) since
// JSON has no unit-suffixed number syntax, and dates become RFC3339
// strings. Record/list member order is preserved by writing objects and
// arrays by hand rather than going through encoding/json's map-keyed
// (and therefore re-sorted) encoder.
func ToJSON(v value.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v value.Value) error {
	switch v.Tag {
	case value.TagNothing:
		buf.WriteString("null")
	case value.TagBool:
		buf.WriteString(strconv.FormatBool(v.Bool))
	case value.TagInt:
		buf.WriteString(strconv.FormatInt(v.Int, 10))
	case value.TagFloat:
		buf.WriteString(formatFloat(v.Float))
	case value.TagFilesize:
		buf.WriteString(strconv.FormatInt(v.Filesize, 10))
	case value.TagDuration:
		buf.WriteString(strconv.FormatInt(v.Duration, 10))
	case value.TagDate:
		return writeJSONString(buf, value.FormatDate(v.Date))
	case value.TagString, value.TagGlob:
		return writeJSONString(buf, v.Str)
	case value.TagBinary:
		enc, err := json.Marshal(v.Binary) // encoding/json base64-encodes []byte automatically
		if err != nil {
			return errors.Wrap(err, "nuon: encoding binary as JSON")
		}
		buf.Write(enc)
	case value.TagRecord:
		buf.WriteByte('{')
		for i := 0; i < v.Record.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			col, val := v.Record.At(i)
			if err := writeJSONString(buf, col); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, val); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case value.TagList:
		buf.WriteByte('[')
		for i, el := range v.List {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return errors.Errorf("nuon: %s has no JSON representation", v.Type().String())
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "nuon: encoding JSON string")
	}
	buf.Write(enc)
	return nil
}

// FromJSON decodes JSON bytes into a Value tree, the import half of
// spec.md §6's "JSON is a lossy subset": every JSON number becomes an Int
// or Float depending on whether its source text carried a decimal point
// (json.Decoder's UseNumber preserves that original text so this
// distinction survives encoding/json's own float64-only numeric type).
// Object key order is read off the token stream in document order, which
// plain encoding/json map-based decoding would lose.
func FromJSON(fileID, base uint32, data []byte) (value.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec, fileID, base)
	if err != nil {
		return value.Value{}, errors.Wrap(err, "nuon: decoding JSON")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder, fileID, base uint32) (value.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return value.Value{}, err
	}
	s := span.Span{FileID: fileID, Start: base, End: base}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var cols []string
			var vals []value.Value
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return value.Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return value.Value{}, errors.Errorf("expected string object key, got %v", keyTok)
				}
				val, err := decodeJSONValue(dec, fileID, base)
				if err != nil {
					return value.Value{}, err
				}
				cols = append(cols, key)
				vals = append(vals, val)
			}
			if _, err := dec.Token(); err != nil { // closing '}'
				return value.Value{}, err
			}
			rec, err := value.NewRecord(cols, vals)
			if err != nil {
				return value.Value{}, err
			}
			return value.MkRecord(rec, s), nil
		case '[':
			var vals []value.Value
			for dec.More() {
				val, err := decodeJSONValue(dec, fileID, base)
				if err != nil {
					return value.Value{}, err
				}
				vals = append(vals, val)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return value.Value{}, err
			}
			return value.MkList(vals, s), nil
		}
	case json.Number:
		txt := t.String()
		if strings.ContainsAny(txt, ".eE") {
			f, err := t.Float64()
			if err != nil {
				return value.Value{}, err
			}
			return value.MkFloat(f, s), nil
		}
		n, err := t.Int64()
		if err != nil {
			return value.Value{}, err
		}
		return value.MkInt(n, s), nil
	case string:
		return value.MkString(t, s), nil
	case bool:
		return value.MkBool(t, s), nil
	case nil:
		return value.Nothing(s), nil
	}
	return value.Value{}, errors.Errorf("unrecognised JSON token %v", tok)
}

// DecodeInto is a secondary JSON import path for callers (host embedding,
// config-shaped documents) that want the decoded document hydrated into an
// arbitrary Go struct rather than a Value tree: JSON is unmarshalled into a
// generic interface{} first, then mitchellh/mapstructure decodes that
// generic tree into out using its usual weakly-typed coercions (string ->
// int, int -> float, …). Unlike FromJSON this does not preserve object key
// order, since the caller's target struct already fixes field identity.
func DecodeInto(data []byte, out interface{}) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "nuon: unmarshalling JSON")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "nuon: building mapstructure decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return errors.Wrap(err, "nuon: decoding into target struct")
	}
	return nil
}
