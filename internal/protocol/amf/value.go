// Package amf implements version 0 of the tagged value format carried in
// command and data message payloads.
//
// Every value starts with a one-byte Marker. Objects and ECMA arrays hold
// ordered Properties whose keys are written without a marker.
package amf

import (
	"fmt"
	"math"
)

type Marker uint8

const (
	MarkerNumber    Marker = 0x00
	MarkerBoolean   Marker = 0x01
	MarkerString    Marker = 0x02
	MarkerObject    Marker = 0x03
	MarkerNull      Marker = 0x05
	MarkerEcmaArray Marker = 0x08
	MarkerObjectEnd Marker = 0x09
)

func (m Marker) String() string {
	switch m {
	case MarkerNumber:
		return "number"
	case MarkerBoolean:
		return "boolean"
	case MarkerString:
		return "string"
	case MarkerObject:
		return "object"
	case MarkerNull:
		return "null"
	case MarkerEcmaArray:
		return "ecma-array"
	case MarkerObjectEnd:
		return "object-end"
	default:
		return fmt.Sprintf("other(%#02x)", uint8(m))
	}
}

// Value is one of Number, Boolean, String, *Object, Null, *EcmaArray or Other.
type Value interface {
	Marker() Marker
}

type Number float64

func (Number) Marker() Marker { return MarkerNumber }

type numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

func NumberFrom[T numeric](v T) Number {
	return Number(float64(v))
}

// Int truncates toward zero. NaN and out-of-range values saturate.
func (n Number) Int() int64 {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

type Boolean bool

func (Boolean) Marker() Marker { return MarkerBoolean }

func BooleanFrom(v bool) Boolean {
	return Boolean(v)
}

type String string

func (String) Marker() Marker { return MarkerString }

// EqualString compares against a plain string without converting.
func (s String) EqualString(other string) bool {
	return string(s) == other
}

type Null struct{}

func (Null) Marker() Marker { return MarkerNull }

// Other stands in for any marker outside the supported set. It has no
// payload; only the raw marker byte survives a round trip.
type Other struct {
	Raw byte
}

func (o Other) Marker() Marker { return Marker(o.Raw) }

type Object struct {
	Properties
}

func NewObject() *Object {
	return &Object{}
}

func (*Object) Marker() Marker { return MarkerObject }

// EcmaArray is an Object with an advisory entry count on the wire.
type EcmaArray struct {
	Properties
}

func NewEcmaArray() *EcmaArray {
	return &EcmaArray{}
}

func (*EcmaArray) Marker() Marker { return MarkerEcmaArray }
