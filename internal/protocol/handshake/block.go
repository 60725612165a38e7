package handshake

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	BlockSize  = 1536
	DigestSize = sha256.Size

	signatureOffset = BlockSize - DigestSize
)

var (
	ClientKey = []byte("Genuine Adobe Flash Player 001")
	ServerKey = []byte("Genuine Adobe Flash Media Server 001")
	CommonKey = []byte{
		0xF0, 0xEE, 0xC2, 0x4A, 0x80, 0x68, 0xBE, 0xE8,
		0x2E, 0x00, 0xD0, 0xD1, 0x02, 0x9E, 0x7E, 0x57,
		0x6E, 0xEC, 0x5D, 0x2D, 0x29, 0x80, 0x6F, 0xAB,
		0x93, 0xB8, 0xE6, 0x36, 0xCF, 0xEB, 0x31, 0xAE,
	}
)

// ClientResponseKey signs the server's S1 when it is echoed as C2.
func ClientResponseKey() []byte {
	return responseKey(ClientKey)
}

// ServerResponseKey signs the client's C1 when it is echoed as S2.
func ServerResponseKey() []byte {
	return responseKey(ServerKey)
}

func responseKey(role []byte) []byte {
	out := make([]byte, 0, len(role)+len(CommonKey))
	out = append(out, role...)
	return append(out, CommonKey...)
}

var ErrMismatch = errors.New("handshake: hmac mismatch")

// MismatchError reports a digest or signature that did not verify.
type MismatchError struct {
	Field string
	Got   []byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("handshake: %s mismatch: got %x", e.Field, e.Got)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

// Block is one C1/S1/C2/S2 payload: 4-byte timestamp, 4-byte version, then
// random fill that may carry a digest and a trailing signature.
type Block [BlockSize]byte

// NewBlock fills a block with random bytes from rnd (crypto/rand when nil).
func NewBlock(timestamp uint32, version Version, rnd io.Reader) (Block, error) {
	var b Block
	if rnd == nil {
		rnd = rand.Reader
	}
	if _, err := io.ReadFull(rnd, b[8:]); err != nil {
		return b, fmt.Errorf("handshake: fill block: %w", err)
	}
	binary.BigEndian.PutUint32(b[0:4], timestamp)
	v := version.Bytes()
	copy(b[4:8], v[:])
	return b, nil
}

func (b *Block) Timestamp() uint32 {
	return binary.BigEndian.Uint32(b[0:4])
}

func (b *Block) Version() Version {
	var v [4]byte
	copy(v[:], b[4:8])
	return VersionFromBytes(v)
}

func (b *Block) Bytes() []byte {
	return b[:]
}

func (b *Block) digestOffset(alg EncryptionAlgorithm) int {
	base, adder := alg.digestBase()
	sum := int(b[base]) + int(b[base+1]) + int(b[base+2]) + int(b[base+3])
	return sum%728 + adder
}

func (b *Block) computeDigest(alg EncryptionAlgorithm, key []byte) []byte {
	off := b.digestOffset(alg)
	mac := hmac.New(sha256.New, key)
	mac.Write(b[:off])
	mac.Write(b[off+DigestSize:])
	return mac.Sum(nil)
}

// Digest returns the 32 bytes at the digest offset for alg.
func (b *Block) Digest(alg EncryptionAlgorithm) []byte {
	off := b.digestOffset(alg)
	return b[off : off+DigestSize]
}

func (b *Block) ImprintDigest(alg EncryptionAlgorithm, key []byte) {
	off := b.digestOffset(alg)
	copy(b[off:off+DigestSize], b.computeDigest(alg, key))
}

func (b *Block) DidDigestMatch(alg EncryptionAlgorithm, key []byte) bool {
	return hmac.Equal(b.Digest(alg), b.computeDigest(alg, key))
}

// computeSignature keys an HMAC with HMAC(key, digest) and runs it over
// everything but the trailing signature. For the DH family the digest region
// can run past signatureOffset. Imprinting a signature then invalidates the
// digest, and if it rewrites a digest byte the signature fails too.
func (b *Block) computeSignature(alg EncryptionAlgorithm, key []byte) []byte {
	inner := hmac.New(sha256.New, key)
	inner.Write(b.Digest(alg))
	mac := hmac.New(sha256.New, inner.Sum(nil))
	mac.Write(b[:signatureOffset])
	return mac.Sum(nil)
}

func (b *Block) Signature() []byte {
	return b[signatureOffset:]
}

func (b *Block) ImprintSignature(alg EncryptionAlgorithm, key []byte) {
	copy(b[signatureOffset:], b.computeSignature(alg, key))
}

func (b *Block) DidSignatureMatch(alg EncryptionAlgorithm, key []byte) bool {
	return hmac.Equal(b.Signature(), b.computeSignature(alg, key))
}
