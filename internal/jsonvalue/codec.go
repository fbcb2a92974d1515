package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Parse decodes exactly one JSON value from data. Trailing non-space
// content is an error.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := Decode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return nil, errors.New("unexpected data after top-level value")
		}
		return nil, fmt.Errorf("after top-level value: %w", err)
	}
	return v, nil
}

// Decode reads the next complete value from dec. Callers that care about
// number fidelity should call dec.UseNumber first.
func Decode(dec *json.Decoder) (*Value, error) {
	t, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, t)
}

func decodeToken(dec *json.Decoder, t json.Token) (*Value, error) {
	switch tok := t.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(tok), nil
	case json.Number:
		return NewNumber(tok), nil
	case float64:
		return NewNumber(json.Number(strconv.FormatFloat(tok, 'g', -1, 64))), nil
	case string:
		return NewString(tok), nil
	case json.Delim:
		switch tok {
		case '[':
			return decodeArray(dec)
		case '{':
			return decodeObject(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", rune(tok))
	}
	return nil, fmt.Errorf("unexpected token %T", t)
}

func decodeArray(dec *json.Decoder) (*Value, error) {
	arr := &Value{kind: Array, arr: []*Value{}}
	for dec.More() {
		item, err := Decode(dec)
		if err != nil {
			return nil, err
		}
		arr.arr = append(arr.arr, item)
	}
	// closing bracket
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func decodeObject(dec *json.Decoder) (*Value, error) {
	obj := NewObject()
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %T", kt)
		}
		item, err := Decode(dec)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		if err := obj.Set(key, item); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

// Marshal encodes v compactly. HTML characters are not escaped.
func Marshal(v *Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalIndent is like Marshal but formats the output with json.Indent.
func MarshalIndent(v *Value, prefix, indent string) ([]byte, error) {
	compact, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, prefix, indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (v *Value) MarshalJSON() ([]byte, error) {
	return Marshal(v)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

func encode(buf *bytes.Buffer, v *Value) error {
	switch v.Kind() {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		if v.num == "" {
			buf.WriteByte('0')
			return nil
		}
		buf.WriteString(string(v.num))
	case String:
		return encodeString(buf, v.str)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, v.obj.vals[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("encode: unknown kind %s", v.Kind())
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
