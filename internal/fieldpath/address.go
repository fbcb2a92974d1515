package fieldpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/valpere/jsontran/internal/jsonvalue"
)

// ErrInvalidAddress is returned when an address does not resolve inside a
// record.
var ErrInvalidAddress = errors.New("invalid address")

// StepKind tells whether a Step indexes an object or an array.
type StepKind int

const (
	KeyStep StepKind = iota
	IndexStep
)

// Step is one concrete move from a container to a child.
type Step struct {
	kind  StepKind
	key   string
	index int
}

// Key returns a step into the object member named k.
func Key(k string) Step { return Step{kind: KeyStep, key: k} }

// Index returns a step into the i-th array element.
func Index(i int) Step { return Step{kind: IndexStep, index: i} }

func (s Step) Kind() StepKind { return s.kind }

// KeyName returns the member name of a key step.
func (s Step) KeyName() (string, bool) {
	return s.key, s.kind == KeyStep
}

// Position returns the element index of an index step.
func (s Step) Position() (int, bool) {
	return s.index, s.kind == IndexStep
}

func (s Step) String() string {
	if s.kind == IndexStep {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.key
}

// Address is the exact location of a node inside one record.
type Address []Step

func (a Address) String() string {
	var b strings.Builder
	for i, s := range a {
		if s.kind == KeyStep && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Append returns a new address with s added. The receiver is not modified.
func (a Address) Append(s Step) Address {
	out := make(Address, len(a), len(a)+1)
	copy(out, a)
	return append(out, s)
}

// Lookup resolves addr inside record.
func Lookup(record *jsonvalue.Value, addr Address) (*jsonvalue.Value, error) {
	cur := record
	for i, s := range addr {
		next, ok := child(cur, s)
		if !ok {
			return nil, fmt.Errorf("%w: %s at step %d (%s)", ErrInvalidAddress, addr, i, cur.Kind())
		}
		cur = next
	}
	return cur, nil
}

// SetAt replaces the node at addr with value. The parent must already
// exist and the final step must name an existing array slot or any object
// key. An empty address overwrites the record itself.
func SetAt(record *jsonvalue.Value, addr Address, value *jsonvalue.Value) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidAddress)
	}
	if len(addr) == 0 {
		record.Replace(value)
		return nil
	}

	parent, err := Lookup(record, addr[:len(addr)-1])
	if err != nil {
		return err
	}

	last := addr[len(addr)-1]
	switch last.kind {
	case KeyStep:
		if parent.Kind() != jsonvalue.Object {
			return fmt.Errorf("%w: %s: key %q on %s", ErrInvalidAddress, addr, last.key, parent.Kind())
		}
		return parent.Set(last.key, value)
	case IndexStep:
		if err := parent.SetIndex(last.index, value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown step kind %d", ErrInvalidAddress, last.kind)
}

func child(v *jsonvalue.Value, s Step) (*jsonvalue.Value, bool) {
	switch s.kind {
	case KeyStep:
		return v.Get(s.key)
	case IndexStep:
		return v.Index(s.index)
	}
	return nil, false
}
