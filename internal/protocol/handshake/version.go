package handshake

import "fmt"

// Version is the 4-byte peer version carried in bytes 4..8 of C1/S1.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
	Build uint8
}

var (
	// VersionUnsigned selects the legacy exchange with no digest or signature.
	VersionUnsigned = Version{}
	LatestClient    = Version{Major: 32}
	LatestServer    = Version{Major: 5, Minor: 0, Patch: 17, Build: 0}
)

func VersionFromBytes(b [4]byte) Version {
	return Version{Major: b[0], Minor: b[1], Patch: b[2], Build: b[3]}
}

func (v Version) Bytes() [4]byte {
	return [4]byte{v.Major, v.Minor, v.Patch, v.Build}
}

// Role names the side of the exchange a version was sent by.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Class is how a peer's version selects the exchange.
type Class uint8

const (
	// ClassLegacy peers exchange plain blocks with no digest or signature.
	ClassLegacy Class = iota
	ClassLatest
)

func (c Class) String() string {
	if c == ClassLatest {
		return "latest"
	}
	return "legacy"
}

// Lowest major versions that carry a digest.
const (
	MinSignedClientMajor uint8 = 9
	MinSignedServerMajor uint8 = 3
)

// Classify compares the major version against the signed threshold for the
// role that sent it. VersionUnsigned is always legacy.
func Classify(v Version, role Role) Class {
	floor := MinSignedClientMajor
	if role == RoleServer {
		floor = MinSignedServerMajor
	}
	if v.Major < floor {
		return ClassLegacy
	}
	return ClassLatest
}

// IsLegacy reports whether a peer in role sending v expects the plain
// exchange.
func (v Version) IsLegacy(role Role) bool {
	return Classify(v, role) == ClassLegacy
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}
