package amf

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/danmuck/streamwire/internal/protocol/buffer"
)

func encode(t *testing.T, v Value) []byte {
	t.Helper()
	b := buffer.New()
	if err := Encode(b, v); err != nil {
		t.Fatalf("encode %T: %v", v, err)
	}
	return b.Bytes()
}

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	b := buffer.From(encode(t, v))
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("decode %T: %v", v, err)
	}
	if b.Remained() != 0 {
		t.Fatalf("decode %T left %d bytes", v, b.Remained())
	}
	return out
}

func TestPrimitiveRoundTrip(t *testing.T) {
	values := []Value{
		Number(0), Number(-1.5), Number(math.MaxFloat64), NumberFrom(uint32(7)),
		Boolean(true), Boolean(false),
		String(""), String("connect"), String("héllo"),
		Null{},
		Other{Raw: 0x06},
	}
	for _, v := range values {
		if out := roundTrip(t, v); !Equal(v, out) {
			t.Fatalf("round trip mismatch: in=%#v out=%#v", v, out)
		}
	}
}

func TestBooleanWireForm(t *testing.T) {
	if got := encode(t, Boolean(true)); !bytes.Equal(got, []byte{0x01, 0x01}) {
		t.Fatalf("unexpected boolean encoding: %x", got)
	}
	v, err := Decode(buffer.From([]byte{0x01, 0x7F}))
	if err != nil || v != Boolean(true) {
		t.Fatalf("nonzero byte should decode as true: v=%v err=%v", v, err)
	}
}

func TestNumberWithoutPayloadUnderflows(t *testing.T) {
	b := buffer.From([]byte{0x00, 0x00})
	_, err := DecodeNumber(b)
	if !buffer.IsInsufficient(err) {
		t.Fatalf("expected insufficient length, got %v", err)
	}
	if b.Remained() != 2 {
		t.Fatalf("cursor moved on failed decode: remained=%d", b.Remained())
	}
}

func TestNestedObjectRoundTrip(t *testing.T) {
	inner := NewEcmaArray()
	inner.Set("duration", Number(12.5))
	inner.Set("stereo", Boolean(true))

	obj := NewObject()
	obj.Set("app", String("live"))
	obj.Set("tcUrl", String("rtmp://localhost/live"))
	obj.Set("meta", inner)
	obj.Set("nothing", Null{})
	obj.Set("child", NewObject())

	out := roundTrip(t, obj)
	got, ok := out.(*Object)
	if !ok {
		t.Fatalf("expected object, got %T", out)
	}
	if !Equal(obj, got) {
		t.Fatalf("nested object mismatch")
	}
	if keys := got.Keys(); strings.Join(keys, ",") != "app,tcUrl,meta,nothing,child" {
		t.Fatalf("insertion order lost: %v", keys)
	}
}

func TestObjectWireForm(t *testing.T) {
	obj := NewObject()
	obj.Set("a", Null{})
	want := []byte{0x03, 0x00, 0x01, 'a', 0x05, 0x00, 0x00, 0x09}
	if got := encode(t, obj); !bytes.Equal(got, want) {
		t.Fatalf("unexpected object encoding: %x", got)
	}
}

func TestEcmaArrayCountIsAdvisory(t *testing.T) {
	// declared count 5, one entry
	raw := []byte{0x08, 0, 0, 0, 5, 0x00, 0x01, 'k', 0x01, 0x00, 0x00, 0x00, 0x09}
	arr, err := DecodeEcmaArray(buffer.From(raw))
	if err != nil {
		t.Fatalf("decode ecma array: %v", err)
	}
	if arr.Len() != 1 {
		t.Fatalf("unexpected len: %d", arr.Len())
	}
	if v, _ := arr.Get("k"); v != Boolean(false) {
		t.Fatalf("unexpected value: %#v", v)
	}
}

func TestTypedDecoderRejectsOtherMarker(t *testing.T) {
	b := buffer.From(encode(t, String("x")))
	_, err := DecodeNumber(b)
	var me *InconsistentMarkerError
	if !errors.As(err, &me) {
		t.Fatalf("expected InconsistentMarkerError, got %v", err)
	}
	if me.Expected != MarkerNumber || me.Actual != MarkerString {
		t.Fatalf("unexpected markers: %+v", me)
	}
	if s, err := DecodeString(b); err != nil || !s.EqualString("x") {
		t.Fatalf("buffer should be intact after mismatch: s=%q err=%v", s, err)
	}
}

func TestInvalidUTF8String(t *testing.T) {
	_, err := Decode(buffer.From([]byte{0x02, 0x00, 0x02, 0xC3, 0x28}))
	var se *InvalidStringError
	if !errors.As(err, &se) {
		t.Fatalf("expected InvalidStringError, got %v", err)
	}
	if !bytes.Equal(se.Bytes, []byte{0xC3, 0x28}) {
		t.Fatalf("unexpected bytes: %x", se.Bytes)
	}
}

func TestStringTooLong(t *testing.T) {
	b := buffer.New()
	err := Encode(b, String(strings.Repeat("a", math.MaxUint16+1)))
	if !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("failed encode wrote %d bytes", b.Len())
	}
}

func TestTopLevelObjectEndRejected(t *testing.T) {
	if _, err := Decode(buffer.From([]byte{0x09})); !errors.Is(err, ErrUnexpectedObjectEnd) {
		t.Fatalf("expected ErrUnexpectedObjectEnd, got %v", err)
	}
}

func TestDepthLimit(t *testing.T) {
	var raw []byte
	for i := 0; i <= MaxDepth; i++ {
		raw = append(raw, 0x03, 0x00, 0x01, 'x')
	}
	raw = append(raw, 0x05)
	if _, err := Decode(buffer.From(raw)); !errors.Is(err, ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
}

func TestEncodeDecodeAll(t *testing.T) {
	cmdObj := NewObject()
	cmdObj.Set("level", String("status"))
	b := buffer.New()
	if err := EncodeAll(b, String("_result"), Number(1), Null{}, cmdObj); err != nil {
		t.Fatalf("encode all: %v", err)
	}
	values, err := DecodeAll(b)
	if err != nil {
		t.Fatalf("decode all: %v", err)
	}
	if len(values) != 4 || !Equal(values[0], String("_result")) || !Equal(values[3], cmdObj) {
		t.Fatalf("unexpected values: %#v", values)
	}
}

func TestPropertiesSetOverwritesInPlace(t *testing.T) {
	var p Properties
	p.Set("a", Number(1))
	p.Set("b", Number(2))
	p.Set("a", Number(3))
	if p.Len() != 2 || strings.Join(p.Keys(), ",") != "a,b" {
		t.Fatalf("unexpected keys: %v", p.Keys())
	}
	if v, _ := p.Get("a"); v != Number(3) {
		t.Fatalf("overwrite lost: %v", v)
	}
	if !p.Delete("a") || p.Delete("a") || p.Len() != 1 {
		t.Fatalf("delete misbehaved: keys=%v", p.Keys())
	}
}

func TestEqualIgnoresPropertyOrder(t *testing.T) {
	a, b := NewObject(), NewObject()
	a.Set("x", Number(1))
	a.Set("y", String("z"))
	b.Set("y", String("z"))
	b.Set("x", Number(1))
	if !Equal(a, b) {
		t.Fatalf("objects with same pairs should be equal")
	}
	b.Set("x", Number(2))
	if Equal(a, b) {
		t.Fatalf("objects with different values should differ")
	}
	if Equal(a, NewEcmaArray()) || Equal(Number(1), String("1")) {
		t.Fatalf("mixed kinds should differ")
	}
}

func TestCompare(t *testing.T) {
	if c, ok := Compare(Number(1), Number(2)); !ok || c >= 0 {
		t.Fatalf("number compare: c=%d ok=%v", c, ok)
	}
	if c, ok := Compare(String("b"), String("a")); !ok || c <= 0 {
		t.Fatalf("string compare: c=%d ok=%v", c, ok)
	}
	if c, ok := Compare(Boolean(true), Boolean(true)); !ok || c != 0 {
		t.Fatalf("boolean compare: c=%d ok=%v", c, ok)
	}
	if _, ok := Compare(Number(1), Null{}); ok {
		t.Fatalf("mixed compare should not be ordered")
	}
}

func TestNumberInt(t *testing.T) {
	if NumberFrom(3.9).Int() != 3 || NumberFrom(-2).Int() != -2 {
		t.Fatalf("unexpected truncation")
	}
	if Number(math.NaN()).Int() != 0 || Number(math.Inf(1)).Int() != math.MaxInt64 {
		t.Fatalf("unexpected saturation")
	}
}
