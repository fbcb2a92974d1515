// Package jsonvalue holds an order-preserving JSON document model.
//
// A Value is a tagged union over the six JSON kinds. Objects remember the
// order their keys were first seen and numbers keep their literal text, so a
// document that is decoded and encoded again keeps its shape.
package jsonvalue

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a single JSON node. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []*Value
	obj  *Members
}

// Members is the ordered key/value set of a JSON object.
type Members struct {
	keys []string
	vals map[string]*Value
}

func NewNull() *Value { return &Value{kind: Null} }

func NewBool(b bool) *Value { return &Value{kind: Bool, b: b} }

func NewNumber(n json.Number) *Value { return &Value{kind: Number, num: n} }

func NewString(s string) *Value { return &Value{kind: String, str: s} }

// NewArray builds an array value from items. Nil items become null.
func NewArray(items ...*Value) *Value {
	arr := make([]*Value, len(items))
	for i, item := range items {
		if item == nil {
			item = NewNull()
		}
		arr[i] = item
	}
	return &Value{kind: Array, arr: arr}
}

// NewObject returns an empty object value.
func NewObject() *Value {
	return &Value{kind: Object, obj: newMembers()}
}

func newMembers() *Members {
	return &Members{vals: make(map[string]*Value)}
}

func (v *Value) Kind() Kind {
	if v == nil {
		return Null
	}
	return v.kind
}

// AsString returns the string payload when v is a string.
func (v *Value) AsString() (string, bool) {
	if v.Kind() != String {
		return "", false
	}
	return v.str, true
}

func (v *Value) AsBool() (bool, bool) {
	if v.Kind() != Bool {
		return false, false
	}
	return v.b, true
}

func (v *Value) AsNumber() (json.Number, bool) {
	if v.Kind() != Number {
		return "", false
	}
	return v.num, true
}

// Len is the element count of an array, the member count of an object and
// zero for everything else.
func (v *Value) Len() int {
	switch v.Kind() {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj.keys)
	default:
		return 0
	}
}

// Index returns the i-th array element.
func (v *Value) Index(i int) (*Value, bool) {
	if v.Kind() != Array || i < 0 || i >= len(v.arr) {
		return nil, false
	}
	return v.arr[i], true
}

// SetIndex replaces the i-th array element.
func (v *Value) SetIndex(i int, item *Value) error {
	if v.Kind() != Array {
		return fmt.Errorf("set index %d on %s", i, v.Kind())
	}
	if i < 0 || i >= len(v.arr) {
		return fmt.Errorf("index %d out of range [0,%d)", i, len(v.arr))
	}
	if item == nil {
		item = NewNull()
	}
	v.arr[i] = item
	return nil
}

// Append adds items to the end of an array value.
func (v *Value) Append(items ...*Value) error {
	if v.Kind() != Array {
		return fmt.Errorf("append to %s", v.Kind())
	}
	for _, item := range items {
		if item == nil {
			item = NewNull()
		}
		v.arr = append(v.arr, item)
	}
	return nil
}

// Items returns the array elements. The slice is shared with v.
func (v *Value) Items() []*Value {
	if v.Kind() != Array {
		return nil
	}
	return v.arr
}

// Get looks up key in an object value.
func (v *Value) Get(key string) (*Value, bool) {
	if v.Kind() != Object {
		return nil, false
	}
	item, ok := v.obj.vals[key]
	return item, ok
}

// Set assigns key in an object value. New keys are appended after the
// existing ones; existing keys keep their position.
func (v *Value) Set(key string, item *Value) error {
	if v.Kind() != Object {
		return fmt.Errorf("set key %q on %s", key, v.Kind())
	}
	if item == nil {
		item = NewNull()
	}
	if _, exists := v.obj.vals[key]; !exists {
		v.obj.keys = append(v.obj.keys, key)
	}
	v.obj.vals[key] = item
	return nil
}

// Keys returns object keys in document order.
func (v *Value) Keys() []string {
	if v.Kind() != Object {
		return nil
	}
	keys := make([]string, len(v.obj.keys))
	copy(keys, v.obj.keys)
	return keys
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return NewNull()
	}
	out := &Value{kind: v.kind, b: v.b, num: v.num, str: v.str}
	switch v.kind {
	case Array:
		out.arr = make([]*Value, len(v.arr))
		for i, item := range v.arr {
			out.arr[i] = item.Clone()
		}
	case Object:
		out.obj = &Members{
			keys: make([]string, len(v.obj.keys)),
			vals: make(map[string]*Value, len(v.obj.vals)),
		}
		copy(out.obj.keys, v.obj.keys)
		for k, item := range v.obj.vals {
			out.obj.vals[k] = item.Clone()
		}
	}
	return out
}

// Replace overwrites v in place with the contents of other.
func (v *Value) Replace(other *Value) {
	if other == nil {
		other = NewNull()
	}
	*v = *other.Clone()
}

// Equal reports whether a and b are structurally identical, including
// object key order. Numbers compare by literal text.
func Equal(a, b *Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Number:
		return a.num == b.num
	case String:
		return a.str == b.str
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.obj.keys) != len(b.obj.keys) {
			return false
		}
		for i, k := range a.obj.keys {
			if b.obj.keys[i] != k {
				return false
			}
			if !Equal(a.obj.vals[k], b.obj.vals[k]) {
				return false
			}
		}
		return true
	}
	return false
}
