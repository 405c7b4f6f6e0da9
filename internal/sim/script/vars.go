package script

import (
	"fmt"
	"reflect"

	"voxelcolony.ai/internal/protocol"
)

var (
	ErrUndefinedVariable = protocol.NewError(protocol.ErrUndefinedVariable, "undefined variable", nil)
	ErrKindMismatch      = protocol.NewError(protocol.ErrKindMismatch, "variable kind mismatch", nil)
)

type binding struct {
	typ reflect.Type
	val any
}

// Variables is a unit's private name -> value table. It is cleared whenever a
// new task starts on the unit.
type Variables struct {
	vals map[string]binding
}

func NewVariables() *Variables {
	return &Variables{vals: map[string]binding{}}
}

func (vs *Variables) Reset() { clear(vs.vals) }

func (vs *Variables) Len() int { return len(vs.vals) }

func (vs *Variables) Has(name string) bool {
	_, ok := vs.vals[name]
	return ok
}

// Store assigns name. Reassigning a name with a value of a different kind is rejected.
func Store[T any](vs *Variables, name string, v T) error {
	typ := reflect.TypeFor[T]()
	if vs.vals == nil {
		vs.vals = map[string]binding{}
	}
	if cur, ok := vs.vals[name]; ok && cur.typ != typ {
		return fmt.Errorf("%w: %q holds a %s, cannot assign a %s", ErrKindMismatch, name, kindName(cur.typ), kindName(typ))
	}
	vs.vals[name] = binding{typ: typ, val: v}
	return nil
}

func Load[T any](vs *Variables, name string) (T, error) {
	var zero T
	cur, ok := vs.vals[name]
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrUndefinedVariable, name)
	}
	if typ := reflect.TypeFor[T](); cur.typ != typ {
		return zero, fmt.Errorf("%w: %q holds a %s, read as %s", ErrKindMismatch, name, kindName(cur.typ), kindName(typ))
	}
	if cur.val == nil {
		return zero, nil
	}
	return cur.val.(T), nil
}

func kindName(t reflect.Type) string {
	switch t {
	case reflect.TypeFor[bool]():
		return "boolean"
	case reflect.TypeFor[Position]():
		return "position"
	case reflect.TypeFor[Actor]():
		return "unit"
	default:
		return t.String()
	}
}
