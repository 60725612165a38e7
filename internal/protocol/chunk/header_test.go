package chunk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/streamwire/internal/protocol/buffer"
)

func TestBasicHeaderRoundTripBoundaries(t *testing.T) {
	cases := []struct {
		id   uint32
		size int
	}{
		{0, 0}, {1, 0}, {2, 1}, {63, 1}, {64, 2}, {319, 2}, {320, 3}, {65599, 3},
	}
	for _, tc := range cases {
		if tc.size == 0 {
			// 0 and 1 mark the wider forms on the wire
			if err := EncodeBasicHeader(buffer.New(), BasicHeader{ChunkStreamID: tc.id}); !errors.Is(err, ErrInvalidChunkStreamID) {
				t.Fatalf("id=%d: expected ErrInvalidChunkStreamID, got %v", tc.id, err)
			}
			continue
		}
		for f := FormatNew; f <= FormatContinue; f++ {
			in := BasicHeader{Format: f, ChunkStreamID: tc.id}
			b := buffer.New()
			if err := EncodeBasicHeader(b, in); err != nil {
				t.Fatalf("encode id=%d: %v", tc.id, err)
			}
			if b.Len() != tc.size || in.Size() != tc.size {
				t.Fatalf("id=%d: encoded %d bytes, Size()=%d, want %d", tc.id, b.Len(), in.Size(), tc.size)
			}
			out, err := DecodeBasicHeader(b)
			if err != nil {
				t.Fatalf("decode id=%d: %v", tc.id, err)
			}
			if out != in {
				t.Fatalf("round trip mismatch: got=%+v want=%+v", out, in)
			}
		}
	}
}

func TestBasicHeaderRejectsReservedIDs(t *testing.T) {
	for _, id := range []uint32{0, 1, MaxChunkStreamID + 1} {
		err := EncodeBasicHeader(buffer.New(), BasicHeader{ChunkStreamID: id})
		if !errors.Is(err, ErrInvalidChunkStreamID) {
			t.Fatalf("id=%d: expected ErrInvalidChunkStreamID, got %v", id, err)
		}
	}
}

func TestBasicHeaderWireForms(t *testing.T) {
	h, err := DecodeBasicHeader(buffer.From([]byte{0x01, 0x00, 0x01}))
	if err != nil || h.ChunkStreamID != 320 || h.Format != FormatNew {
		t.Fatalf("three byte form: h=%+v err=%v", h, err)
	}
	h, err = DecodeBasicHeader(buffer.From([]byte{0xC0, 0x05}))
	if err != nil || h.ChunkStreamID != 69 || h.Format != FormatContinue {
		t.Fatalf("two byte form: h=%+v err=%v", h, err)
	}
	b := buffer.From([]byte{0x41, 0x00})
	if _, err := DecodeBasicHeader(b); !buffer.IsInsufficient(err) {
		t.Fatalf("expected insufficient length, got %v", err)
	}
	if b.Remained() != 2 {
		t.Fatalf("partial decode moved cursor")
	}
}

func TestMessageHeaderSizes(t *testing.T) {
	headers := []MessageHeader{
		NewHeader(1000, 42, TypeAudio, 1),
		SameSourceHeader(20, 42, TypeVideo),
		TimerChangeHeader(20),
		ContinueHeader(),
	}
	for _, h := range headers {
		b := buffer.New()
		if err := EncodeMessageHeader(b, h); err != nil {
			t.Fatalf("encode %s: %v", h.Format(), err)
		}
		if b.Len() != HeaderSize(h.Format()) {
			t.Fatalf("%s: encoded %d bytes, want %d", h.Format(), b.Len(), HeaderSize(h.Format()))
		}
		out, err := DecodeMessageHeader(b, h.Format())
		if err != nil {
			t.Fatalf("decode %s: %v", h.Format(), err)
		}
		if out != h {
			t.Fatalf("round trip mismatch: got=%+v want=%+v", out, h)
		}
	}
}

func TestMessageHeaderAccessorsReportPresence(t *testing.T) {
	h := TimerChangeHeader(5)
	if ts, ok := h.Timestamp(); !ok || ts != 5 {
		t.Fatalf("timestamp: %d %v", ts, ok)
	}
	if _, ok := h.MessageLength(); ok {
		t.Fatalf("timer change has no length")
	}
	if _, ok := SameSourceHeader(1, 2, TypeAudio).MessageStreamID(); ok {
		t.Fatalf("same source has no stream id")
	}
	if _, ok := ContinueHeader().Timestamp(); ok {
		t.Fatalf("continue has no timestamp")
	}
	if id, ok := NewHeader(0, 0, TypeAudio, 7).MessageStreamID(); !ok || id != 7 {
		t.Fatalf("stream id: %d %v", id, ok)
	}
}

func TestMessageHeaderStreamIDLittleEndian(t *testing.T) {
	b := buffer.New()
	if err := EncodeMessageHeader(b, NewHeader(0, 0, TypeCommandAMF0, 1)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(b.Bytes()[7:11], []byte{1, 0, 0, 0}) {
		t.Fatalf("stream id bytes: %x", b.Bytes()[7:11])
	}
}

func TestExtendedTimestamp(t *testing.T) {
	h := NewHeader(0x01000000, 3, TypeVideo, 1)
	b := buffer.New()
	if err := EncodeMessageHeader(b, h); err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw := b.Bytes()
	if len(raw) != 15 || !bytes.Equal(raw[:3], []byte{0xFF, 0xFF, 0xFF}) || !bytes.Equal(raw[11:], []byte{0x01, 0, 0, 0}) {
		t.Fatalf("unexpected extended layout: %x", raw)
	}
	out, err := DecodeMessageHeader(b, FormatNew)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ts, _ := out.Timestamp(); ts != 0x01000000 || !out.Extended() {
		t.Fatalf("extended timestamp lost: ts=%#x extended=%v", ts, out.Extended())
	}

	// the sentinel value itself also needs the extended field
	b = buffer.New()
	_ = EncodeMessageHeader(b, TimerChangeHeader(ExtendedTimestampSentinel))
	if b.Len() != 7 {
		t.Fatalf("sentinel delta should be extended, len=%d", b.Len())
	}
}

func TestMessageHeaderRejectsOversizeLength(t *testing.T) {
	err := EncodeMessageHeader(buffer.New(), NewHeader(0, MaxMessageLength+1, TypeVideo, 1))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestResolveDeltas(t *testing.T) {
	first := resolve(nil, NewHeader(100, 10, TypeAudio, 1), true)
	if first.Timestamp != 100 || first.Format != FormatNew {
		t.Fatalf("new: %+v", first)
	}
	second := resolve(&first, SameSourceHeader(20, 12, TypeVideo), true)
	if second.Timestamp != 120 || second.MessageLength != 12 || second.MessageType != TypeVideo || second.MessageStreamID != 1 {
		t.Fatalf("same source: %+v", second)
	}
	third := resolve(&second, TimerChangeHeader(5), true)
	if third.Timestamp != 125 || third.MessageLength != 12 {
		t.Fatalf("timer change: %+v", third)
	}
	fourth := resolve(&third, ContinueHeader(), true)
	if fourth.Timestamp != 130 {
		t.Fatalf("continue opening a message should reuse delta: %+v", fourth)
	}
	mid := resolve(&third, ContinueHeader(), false)
	if mid.Timestamp != 125 {
		t.Fatalf("continue inside a message must not move time: %+v", mid)
	}
	afterNew := resolve(&first, ContinueHeader(), true)
	if afterNew.Timestamp != 100 {
		t.Fatalf("continue after new keeps timestamp: %+v", afterNew)
	}
}
