package handshake

import "fmt"

// EncryptionAlgorithm is the single byte sent as C0/S0. Only its effect on
// digest placement matters here; payload encryption is never performed.
type EncryptionAlgorithm struct {
	b byte
}

var (
	NotEncrypted  = EncryptionAlgorithm{b: 3}
	DiffieHellman = EncryptionAlgorithm{b: 6}
	Xtea          = EncryptionAlgorithm{b: 8}
	Blowfish      = EncryptionAlgorithm{b: 9}
)

// ParseEncryptionAlgorithm never fails. Unknown bytes are kept verbatim and
// behave like NotEncrypted.
func ParseEncryptionAlgorithm(b byte) EncryptionAlgorithm {
	return EncryptionAlgorithm{b: b}
}

func (a EncryptionAlgorithm) Byte() byte {
	return a.b
}

// IsOther reports whether the byte is outside the known set.
func (a EncryptionAlgorithm) IsOther() bool {
	switch a {
	case NotEncrypted, DiffieHellman, Xtea, Blowfish:
		return false
	default:
		return true
	}
}

func (a EncryptionAlgorithm) String() string {
	switch a {
	case NotEncrypted:
		return "not-encrypted"
	case DiffieHellman:
		return "diffie-hellman"
	case Xtea:
		return "xtea"
	case Blowfish:
		return "blowfish"
	default:
		return fmt.Sprintf("other(%d)", a.b)
	}
}

// digestBase returns where the 4 offset bytes start and the constant added to
// their sum.
func (a EncryptionAlgorithm) digestBase() (base, adder int) {
	switch a {
	case DiffieHellman, Xtea, Blowfish:
		return 772, 776
	default:
		return 8, 12
	}
}
