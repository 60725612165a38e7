package amf

import (
	"cmp"
	"strings"
)

// Equal compares by content. Objects and ECMA arrays are equal when they hold
// the same keys with equal values, regardless of order.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case Number:
		bv, ok := b.(Number)
		return ok && a == bv
	case Boolean:
		bv, ok := b.(Boolean)
		return ok && a == bv
	case String:
		bv, ok := b.(String)
		return ok && a == bv
	case Null:
		_, ok := b.(Null)
		return ok
	case Other:
		bv, ok := b.(Other)
		return ok && a.Raw == bv.Raw
	case *Object:
		bv, ok := b.(*Object)
		return ok && propertiesEqual(propsOf(a), propsOf(bv))
	case *EcmaArray:
		bv, ok := b.(*EcmaArray)
		return ok && propertiesEqual(arrayPropsOf(a), arrayPropsOf(bv))
	default:
		return false
	}
}

func propsOf(o *Object) *Properties {
	if o == nil {
		return &Properties{}
	}
	return &o.Properties
}

func arrayPropsOf(a *EcmaArray) *Properties {
	if a == nil {
		return &Properties{}
	}
	return &a.Properties
}

func propertiesEqual(a, b *Properties) bool {
	if a.Len() != b.Len() {
		return false
	}
	eq := true
	a.Range(func(key string, av Value) bool {
		bv, ok := b.Get(key)
		eq = ok && Equal(av, bv)
		return eq
	})
	return eq
}

// Compare orders two values of the same primitive kind. ok is false for
// mixed kinds and for kinds with no ordering.
func Compare(a, b Value) (result int, ok bool) {
	switch a := a.(type) {
	case Number:
		if bv, ok := b.(Number); ok {
			return cmp.Compare(a, bv), true
		}
	case Boolean:
		if bv, ok := b.(Boolean); ok {
			return cmp.Compare(boolInt(a), boolInt(bv)), true
		}
	case String:
		if bv, ok := b.(String); ok {
			return strings.Compare(string(a), string(bv)), true
		}
	}
	return 0, false
}

func boolInt(b Boolean) int {
	if b {
		return 1
	}
	return 0
}
