package chunk

// LastChunk is the cached header state of one chunk stream.
type LastChunk struct {
	// Timestamp is the absolute timestamp of the current message.
	Timestamp uint32
	// Delta is the raw timestamp field of the latest non-Continue header:
	// absolute for FormatNew, a delta otherwise.
	Delta           uint32
	MessageLength   uint32
	MessageType     MessageType
	MessageStreamID uint32
	// Format is the latest non-Continue format seen.
	Format MessageFormat
	// Extended is set while the stream's timestamp field needs 4 bytes, which
	// Continue chunks then repeat.
	Extended bool
}

// resolve returns the state after h. prev is nil when the stream has no
// history; callers must reject non-New headers in that case. startsMessage
// reports whether h opens a new message rather than continuing one.
func resolve(prev *LastChunk, h MessageHeader, startsMessage bool) LastChunk {
	if h.format == FormatNew || prev == nil {
		return LastChunk{
			Timestamp:       h.timestamp,
			Delta:           h.timestamp,
			MessageLength:   h.messageLength,
			MessageType:     h.messageType,
			MessageStreamID: h.messageStreamID,
			Format:          FormatNew,
			Extended:        h.Extended(),
		}
	}
	next := *prev
	switch h.format {
	case FormatSameSource:
		next.MessageLength = h.messageLength
		next.MessageType = h.messageType
		fallthrough
	case FormatTimerChange:
		next.Delta = h.timestamp
		next.Timestamp = prev.Timestamp + h.timestamp
		next.Format = h.format
		next.Extended = h.Extended()
	case FormatContinue:
		// A Continue header opening a new message reuses the last delta.
		if startsMessage && prev.Format != FormatNew {
			next.Timestamp = prev.Timestamp + prev.Delta
		}
	}
	return next
}
