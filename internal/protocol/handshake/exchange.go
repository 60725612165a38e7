package handshake

import (
	"fmt"
	"io"
	"time"
)

// Options controls one side of the exchange. Zero values pick NotEncrypted,
// crypto/rand and a millisecond clock starting at the call.
type Options struct {
	Algorithm EncryptionAlgorithm
	// Signed makes the initiator send LatestClient with a digest. Responders
	// follow whatever the initiator chose.
	Signed bool
	Rand   io.Reader
	Clock  func() uint32
}

func (o Options) algorithm() EncryptionAlgorithm {
	if o.Algorithm == (EncryptionAlgorithm{}) {
		return NotEncrypted
	}
	return o.Algorithm
}

func (o Options) clock() func() uint32 {
	if o.Clock != nil {
		return o.Clock
	}
	start := time.Now()
	return func() uint32 { return uint32(time.Since(start).Milliseconds()) }
}

// State is the outcome of a completed exchange.
type State struct {
	Algorithm EncryptionAlgorithm
	Signed    bool
	// Local is the block this side generated (C1 or S1).
	Local Block
	// Peer is the block the other side generated (S1 or C1).
	Peer Block
}

// Initiate runs the client role: C0+C1 out, S0+S1+S2 in, C2 out.
func Initiate(rw io.ReadWriter, opts Options) (State, error) {
	alg := opts.algorithm()
	clock := opts.clock()
	version := VersionUnsigned
	if opts.Signed {
		version = LatestClient
	}
	c1, err := NewBlock(clock(), version, opts.Rand)
	if err != nil {
		return State{}, err
	}
	if opts.Signed {
		c1.ImprintDigest(alg, ClientKey)
	}
	out := make([]byte, 0, 1+BlockSize)
	out = append(out, alg.Byte())
	out = append(out, c1[:]...)
	if _, err := rw.Write(out); err != nil {
		return State{}, fmt.Errorf("handshake: write c0c1: %w", err)
	}

	s0, err := readAlgorithm(rw)
	if err != nil {
		return State{}, fmt.Errorf("handshake: read s0: %w", err)
	}
	var s1, s2 Block
	if _, err := io.ReadFull(rw, s1[:]); err != nil {
		return State{}, fmt.Errorf("handshake: read s1: %w", err)
	}
	if _, err := io.ReadFull(rw, s2[:]); err != nil {
		return State{}, fmt.Errorf("handshake: read s2: %w", err)
	}

	// a legacy server answers a signed C1 with plain blocks
	signed := opts.Signed && !s1.Version().IsLegacy(RoleServer)
	c2 := s1
	if signed {
		if !s1.DidDigestMatch(s0, ServerKey) {
			return State{}, &MismatchError{Field: "digest", Got: clone(s1.Digest(s0))}
		}
		if !s2.DidSignatureMatch(s0, ServerResponseKey()) {
			return State{}, &MismatchError{Field: "signature", Got: clone(s2.Signature())}
		}
		c2.ImprintSignature(s0, ClientResponseKey())
	}
	if _, err := rw.Write(c2[:]); err != nil {
		return State{}, fmt.Errorf("handshake: write c2: %w", err)
	}
	return State{Algorithm: s0, Signed: signed, Local: c1, Peer: s1}, nil
}

// Respond runs the server role: C0+C1 in, S0+S1+S2 out, C2 in. The signed
// path is taken unless C1 carries a legacy client version.
func Respond(rw io.ReadWriter, opts Options) (State, error) {
	clock := opts.clock()
	alg, err := readAlgorithm(rw)
	if err != nil {
		return State{}, fmt.Errorf("handshake: read c0: %w", err)
	}
	var c1 Block
	if _, err := io.ReadFull(rw, c1[:]); err != nil {
		return State{}, fmt.Errorf("handshake: read c1: %w", err)
	}

	signed := !c1.Version().IsLegacy(RoleClient)
	version := VersionUnsigned
	if signed {
		version = LatestServer
		if !c1.DidDigestMatch(alg, ClientKey) {
			return State{}, &MismatchError{Field: "digest", Got: clone(c1.Digest(alg))}
		}
	}
	s1, err := NewBlock(clock(), version, opts.Rand)
	if err != nil {
		return State{}, err
	}
	s2 := c1
	if signed {
		s1.ImprintDigest(alg, ServerKey)
		s2.ImprintSignature(alg, ServerResponseKey())
	}

	out := make([]byte, 0, 1+2*BlockSize)
	out = append(out, alg.Byte())
	out = append(out, s1[:]...)
	out = append(out, s2[:]...)
	if _, err := rw.Write(out); err != nil {
		return State{}, fmt.Errorf("handshake: write s0s1s2: %w", err)
	}

	var c2 Block
	if _, err := io.ReadFull(rw, c2[:]); err != nil {
		return State{}, fmt.Errorf("handshake: read c2: %w", err)
	}
	if signed && !c2.DidSignatureMatch(alg, ClientResponseKey()) {
		return State{}, &MismatchError{Field: "signature", Got: clone(c2.Signature())}
	}
	return State{Algorithm: alg, Signed: signed, Local: s1, Peer: c1}, nil
}

func readAlgorithm(r io.Reader) (EncryptionAlgorithm, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return EncryptionAlgorithm{}, err
	}
	return ParseEncryptionAlgorithm(b[0]), nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
