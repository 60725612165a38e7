// Package buffer owns the byte cursor every wire codec reads from and
// appends to.
//
// Reads are all-or-nothing: a getter either consumes the requested bytes or
// fails with InsufficientLengthError and leaves the cursor where it was.
package buffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrInsufficientLength = errors.New("buffer: insufficient buffer length")

// InsufficientLengthError reports a read that asked for more bytes than remain.
type InsufficientLengthError struct {
	Expected int
	Actual   int
}

func (e *InsufficientLengthError) Error() string {
	return fmt.Sprintf("buffer: insufficient buffer length: expected %d, actual %d", e.Expected, e.Actual)
}

func (e *InsufficientLengthError) Is(target error) bool {
	return target == ErrInsufficientLength
}

// IsInsufficient reports whether err is (or wraps) an underflow. Streaming
// readers treat it as "read more and retry from the last whole unit".
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientLength)
}

// Buffer is a growable byte sequence with a read cursor.
type Buffer struct {
	bytes  []byte
	offset int
}

func New() *Buffer {
	return &Buffer{}
}

// From wraps b without copying. The caller gives up ownership of b.
func From(b []byte) *Buffer {
	return &Buffer{bytes: b}
}

// Remained returns the number of unread bytes.
func (b *Buffer) Remained() int {
	return len(b.bytes) - b.offset
}

// Len returns the total number of bytes held, read or not.
func (b *Buffer) Len() int {
	return len(b.bytes)
}

// Offset returns the read cursor.
func (b *Buffer) Offset() int {
	return b.offset
}

// Bytes returns the unread bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.bytes[b.offset:]
}

// Reset discards everything, read or not.
func (b *Buffer) Reset() {
	b.bytes = b.bytes[:0]
	b.offset = 0
}

// Compact drops already-read bytes so long-lived stream buffers do not grow
// without bound.
func (b *Buffer) Compact() {
	if b.offset == 0 {
		return
	}
	n := copy(b.bytes, b.bytes[b.offset:])
	b.bytes = b.bytes[:n]
	b.offset = 0
}

// Seek moves the cursor back to a previously observed offset. It is used to
// rewind after a partial decode of a streaming unit.
func (b *Buffer) Seek(offset int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(b.bytes) {
		offset = len(b.bytes)
	}
	b.offset = offset
}

func (b *Buffer) take(n int) ([]byte, error) {
	if n < 0 || b.Remained() < n {
		return nil, &InsufficientLengthError{Expected: n, Actual: b.Remained()}
	}
	out := b.bytes[b.offset : b.offset+n]
	b.offset += n
	return out, nil
}

func (b *Buffer) PeekU8() (uint8, error) {
	if b.Remained() < 1 {
		return 0, &InsufficientLengthError{Expected: 1, Actual: b.Remained()}
	}
	return b.bytes[b.offset], nil
}

func (b *Buffer) GetU8() (uint8, error) {
	p, err := b.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (b *Buffer) GetU16BE() (uint16, error) {
	p, err := b.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

// GetU24BE reads a 3-byte big-endian unsigned integer.
func (b *Buffer) GetU24BE() (uint32, error) {
	p, err := b.take(3)
	if err != nil {
		return 0, err
	}
	return uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2]), nil
}

func (b *Buffer) GetU32BE() (uint32, error) {
	p, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (b *Buffer) GetU32LE() (uint32, error) {
	p, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// GetF64 reads an IEEE-754 double in big-endian order.
func (b *Buffer) GetF64() (float64, error) {
	p, err := b.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p)), nil
}

// GetBytes returns a copy of the next n bytes.
func (b *Buffer) GetBytes(n int) ([]byte, error) {
	p, err := b.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

func (b *Buffer) PutU8(v uint8) {
	b.bytes = append(b.bytes, v)
}

func (b *Buffer) PutU16BE(v uint16) {
	b.bytes = binary.BigEndian.AppendUint16(b.bytes, v)
}

// PutU24BE writes the low 24 bits of v big-endian.
func (b *Buffer) PutU24BE(v uint32) {
	b.bytes = append(b.bytes, byte(v>>16), byte(v>>8), byte(v))
}

func (b *Buffer) PutU32BE(v uint32) {
	b.bytes = binary.BigEndian.AppendUint32(b.bytes, v)
}

func (b *Buffer) PutU32LE(v uint32) {
	b.bytes = binary.LittleEndian.AppendUint32(b.bytes, v)
}

func (b *Buffer) PutF64(v float64) {
	b.bytes = binary.BigEndian.AppendUint64(b.bytes, math.Float64bits(v))
}

func (b *Buffer) PutBytes(p []byte) {
	b.bytes = append(b.bytes, p...)
}
