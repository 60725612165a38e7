package amf

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/danmuck/streamwire/internal/protocol/buffer"
	"github.com/rs/zerolog"
)

// MaxDepth bounds object nesting on decode.
const MaxDepth = 64

var (
	ErrStringTooLong       = errors.New("amf: string longer than 65535 bytes")
	ErrUnexpectedObjectEnd = errors.New("amf: object end outside an object")
	ErrTooDeep             = errors.New("amf: nesting too deep")
	ErrUnsupportedValue    = errors.New("amf: unsupported value")
)

// InconsistentMarkerError is returned by the typed decoders when the marker
// on the wire is not the one asked for.
type InconsistentMarkerError struct {
	Expected Marker
	Actual   Marker
}

func (e *InconsistentMarkerError) Error() string {
	return fmt.Sprintf("amf: inconsistent marker: expected %s, actual %s", e.Expected, e.Actual)
}

// InvalidStringError carries string bytes that are not valid UTF-8.
type InvalidStringError struct {
	Bytes []byte
}

func (e *InvalidStringError) Error() string {
	return fmt.Sprintf("amf: invalid utf-8 string: %x", e.Bytes)
}

var logger = zerolog.Nop()

// SetLogger routes decode diagnostics. Call before any decoding starts.
func SetLogger(l zerolog.Logger) {
	logger = l
}

// Decode reads one value. On failure the buffer cursor is restored so a
// caller holding a partial payload can retry after appending more bytes.
func Decode(b *buffer.Buffer) (Value, error) {
	mark := b.Offset()
	v, err := decodeValue(b, 0)
	if err != nil {
		b.Seek(mark)
		return nil, err
	}
	return v, nil
}

// DecodeAll reads values until the buffer is exhausted.
func DecodeAll(b *buffer.Buffer) ([]Value, error) {
	var out []Value
	for b.Remained() > 0 {
		v, err := Decode(b)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeValue(b *buffer.Buffer, depth int) (Value, error) {
	m, err := b.GetU8()
	if err != nil {
		return nil, err
	}
	switch Marker(m) {
	case MarkerNumber:
		f, err := b.GetF64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case MarkerBoolean:
		v, err := b.GetU8()
		if err != nil {
			return nil, err
		}
		return Boolean(v != 0), nil
	case MarkerString:
		s, err := decodeUnmarked(b)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case MarkerObject:
		obj := NewObject()
		if err := decodeProperties(b, &obj.Properties, depth+1); err != nil {
			return nil, err
		}
		return obj, nil
	case MarkerNull:
		return Null{}, nil
	case MarkerEcmaArray:
		count, err := b.GetU32BE()
		if err != nil {
			return nil, err
		}
		arr := NewEcmaArray()
		if err := decodeProperties(b, &arr.Properties, depth+1); err != nil {
			return nil, err
		}
		if uint32(arr.Len()) != count {
			logger.Debug().Uint32("declared", count).Int("actual", arr.Len()).Msg("amf ecma array count mismatch")
		}
		return arr, nil
	case MarkerObjectEnd:
		return nil, ErrUnexpectedObjectEnd
	default:
		return Other{Raw: m}, nil
	}
}

func decodeUnmarked(b *buffer.Buffer) (string, error) {
	n, err := b.GetU16BE()
	if err != nil {
		return "", err
	}
	raw, err := b.GetBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", &InvalidStringError{Bytes: raw}
	}
	return string(raw), nil
}

// decodeProperties reads key/value pairs up to the empty key followed by
// the object end marker.
func decodeProperties(b *buffer.Buffer, p *Properties, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	for {
		key, err := decodeUnmarked(b)
		if err != nil {
			return err
		}
		if key == "" {
			next, err := b.PeekU8()
			if err != nil {
				return err
			}
			if Marker(next) == MarkerObjectEnd {
				_, _ = b.GetU8()
				return nil
			}
		}
		v, err := decodeValue(b, depth)
		if err != nil {
			return err
		}
		p.Set(key, v)
	}
}

func decodeAs(b *buffer.Buffer, want Marker) (Value, error) {
	m, err := b.PeekU8()
	if err != nil {
		return nil, err
	}
	if Marker(m) != want {
		return nil, &InconsistentMarkerError{Expected: want, Actual: Marker(m)}
	}
	return Decode(b)
}

func DecodeNumber(b *buffer.Buffer) (Number, error) {
	v, err := decodeAs(b, MarkerNumber)
	if err != nil {
		return 0, err
	}
	return v.(Number), nil
}

func DecodeBoolean(b *buffer.Buffer) (Boolean, error) {
	v, err := decodeAs(b, MarkerBoolean)
	if err != nil {
		return false, err
	}
	return v.(Boolean), nil
}

func DecodeString(b *buffer.Buffer) (String, error) {
	v, err := decodeAs(b, MarkerString)
	if err != nil {
		return "", err
	}
	return v.(String), nil
}

func DecodeObject(b *buffer.Buffer) (*Object, error) {
	v, err := decodeAs(b, MarkerObject)
	if err != nil {
		return nil, err
	}
	return v.(*Object), nil
}

func DecodeEcmaArray(b *buffer.Buffer) (*EcmaArray, error) {
	v, err := decodeAs(b, MarkerEcmaArray)
	if err != nil {
		return nil, err
	}
	return v.(*EcmaArray), nil
}

func DecodeNull(b *buffer.Buffer) (Null, error) {
	if _, err := decodeAs(b, MarkerNull); err != nil {
		return Null{}, err
	}
	return Null{}, nil
}

// Encode appends v. Nothing is written when it fails.
func Encode(b *buffer.Buffer, v Value) error {
	scratch := buffer.New()
	if err := encodeValue(scratch, v); err != nil {
		return err
	}
	b.PutBytes(scratch.Bytes())
	return nil
}

// EncodeAll appends values in order, as used for command payloads.
func EncodeAll(b *buffer.Buffer, values ...Value) error {
	for _, v := range values {
		if err := Encode(b, v); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(b *buffer.Buffer, v Value) error {
	switch v := v.(type) {
	case Number:
		b.PutU8(uint8(MarkerNumber))
		b.PutF64(float64(v))
	case Boolean:
		b.PutU8(uint8(MarkerBoolean))
		if v {
			b.PutU8(1)
		} else {
			b.PutU8(0)
		}
	case String:
		b.PutU8(uint8(MarkerString))
		return encodeUnmarked(b, string(v))
	case *Object:
		if v == nil {
			v = NewObject()
		}
		b.PutU8(uint8(MarkerObject))
		return encodeProperties(b, &v.Properties)
	case Null:
		b.PutU8(uint8(MarkerNull))
	case *EcmaArray:
		if v == nil {
			v = NewEcmaArray()
		}
		b.PutU8(uint8(MarkerEcmaArray))
		b.PutU32BE(uint32(v.Len()))
		return encodeProperties(b, &v.Properties)
	case Other:
		b.PutU8(v.Raw)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

func encodeUnmarked(b *buffer.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	b.PutU16BE(uint16(len(s)))
	b.PutBytes([]byte(s))
	return nil
}

func encodeProperties(b *buffer.Buffer, p *Properties) error {
	var err error
	p.Range(func(key string, v Value) bool {
		if err = encodeUnmarked(b, key); err != nil {
			return false
		}
		err = encodeValue(b, v)
		return err == nil
	})
	if err != nil {
		return err
	}
	b.PutU16BE(0)
	b.PutU8(uint8(MarkerObjectEnd))
	return nil
}
