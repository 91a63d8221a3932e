package core

import (
	"encoding/hex"
	"fmt"
)

// KeyTag discriminates the variants of Key.
type KeyTag uint8

const (
	KeyTagAccount KeyTag = iota
	KeyTagHash
	KeyTagURef
)

func (t KeyTag) String() string {
	switch t {
	case KeyTagAccount:
		return "account"
	case KeyTagHash:
		return "hash"
	case KeyTagURef:
		return "uref"
	default:
		return fmt.Sprintf("keytag(%d)", uint8(t))
	}
}

// AccessRights describes the permissions a URef carries at the point it is
// held, mirroring the host API's capability model: a URef grants only the
// rights it was minted or passed with, never implicit ambient authority.
type AccessRights uint8

const (
	AccessNone  AccessRights = 0
	AccessRead  AccessRights = 1 << 0
	AccessWrite AccessRights = 1 << 1
	AccessAdd   AccessRights = 1 << 2
)

// Full grants read, write and add.
const AccessFull = AccessRead | AccessWrite | AccessAdd

func (r AccessRights) CanRead() bool  { return r&AccessRead != 0 }
func (r AccessRights) CanWrite() bool { return r&AccessWrite != 0 }
func (r AccessRights) CanAdd() bool   { return r&AccessAdd != 0 }

func (r AccessRights) String() string {
	s := ""
	if r.CanRead() {
		s += "R"
	}
	if r.CanWrite() {
		s += "W"
	}
	if r.CanAdd() {
		s += "A"
	}
	if s == "" {
		return "-"
	}
	return s
}

// URef is an unforgeable reference: a 32-byte address plus the access
// rights it carries. Two URefs over the same address but different rights
// are distinct capabilities.
type URef struct {
	Address StateDigest
	Rights  AccessRights
}

func (u URef) String() string {
	return fmt.Sprintf("uref-%s-%s", u.Address.String(), u.Rights.String())
}

// Bytes renders a bare URef (not embedded in a Key) per §6's wire format: 32
// raw address bytes followed by the one-byte access-rights bitmask.
func (u URef) Bytes() []byte {
	out := make([]byte, len(u.Address)+1)
	copy(out, u.Address[:])
	out[len(out)-1] = byte(u.Rights)
	return out
}

// URefFromBytes parses the wire format produced by URef.Bytes.
func URefFromBytes(b []byte) (URef, error) {
	var d StateDigest
	if len(b) != len(d)+1 {
		return URef{}, fmt.Errorf("core: uref bytes must be %d bytes (address + rights byte), got %d", len(d)+1, len(b))
	}
	copy(d[:], b[:len(d)])
	return URef{Address: d, Rights: AccessRights(b[len(b)-1])}, nil
}

// Key is the tagged union addressing a location in global state: an
// account, a content-addressed hash (stored contract), or a URef.
type Key struct {
	Tag     KeyTag
	Account Address
	Hash    StateDigest
	URef    URef
}

func AccountKey(a Address) Key { return Key{Tag: KeyTagAccount, Account: a} }
func HashKey(h StateDigest) Key { return Key{Tag: KeyTagHash, Hash: h} }
func URefKey(u URef) Key        { return Key{Tag: KeyTagURef, URef: u} }

// Normalize strips access rights for use as a map key or persisted key: two
// URefs over the same address index the same state regardless of the rights
// the caller happened to hold.
func (k Key) Normalize() Key {
	if k.Tag != KeyTagURef {
		return k
	}
	return Key{Tag: KeyTagURef, URef: URef{Address: k.URef.Address}}
}

// Bytes renders the key into its canonical on-disk/ wire representation:
// a one-byte tag followed by the variant payload.
func (k Key) Bytes() []byte {
	switch k.Tag {
	case KeyTagAccount:
		out := make([]byte, 1+len(k.Account))
		out[0] = byte(KeyTagAccount)
		copy(out[1:], k.Account[:])
		return out
	case KeyTagHash:
		out := make([]byte, 1+len(k.Hash))
		out[0] = byte(KeyTagHash)
		copy(out[1:], k.Hash[:])
		return out
	case KeyTagURef:
		out := make([]byte, 1+len(k.URef.Address)+1)
		out[0] = byte(KeyTagURef)
		copy(out[1:], k.URef.Address[:])
		out[len(out)-1] = byte(k.URef.Rights)
		return out
	default:
		panic("core: unknown key tag")
	}
}

// KeyFromBytes parses the canonical wire/on-disk representation produced by
// Bytes: a one-byte tag followed by the variant payload. For a URef key the
// payload is the 32-byte address followed by the single access-rights
// bitmask byte the guest claims to hold for it; the caller is responsible
// for checking that claim against what was actually granted to the current
// frame (see checkAccess in host_api.go) — KeyFromBytes only parses the
// wire format, it does not authorize anything.
func KeyFromBytes(b []byte) (Key, error) {
	if len(b) < 1 {
		return Key{}, fmt.Errorf("core: empty key bytes")
	}
	switch KeyTag(b[0]) {
	case KeyTagAccount:
		var a Address
		if len(b) != 1+len(a) {
			return Key{}, fmt.Errorf("core: account key must be %d bytes, got %d", 1+len(a), len(b))
		}
		copy(a[:], b[1:])
		return AccountKey(a), nil
	case KeyTagHash:
		var d StateDigest
		if len(b) != 1+len(d) {
			return Key{}, fmt.Errorf("core: hash key must be %d bytes, got %d", 1+len(d), len(b))
		}
		copy(d[:], b[1:])
		return HashKey(d), nil
	case KeyTagURef:
		var d StateDigest
		if len(b) != 1+len(d)+1 {
			return Key{}, fmt.Errorf("core: uref key must be %d bytes (address + rights byte), got %d", 1+len(d)+1, len(b))
		}
		copy(d[:], b[1:1+len(d)])
		return URefKey(URef{Address: d, Rights: AccessRights(b[len(b)-1])}), nil
	default:
		return Key{}, fmt.Errorf("core: unknown key tag byte %d", b[0])
	}
}

func (k Key) String() string {
	switch k.Tag {
	case KeyTagAccount:
		return "account-" + k.Account.Hex()
	case KeyTagHash:
		return "hash-" + k.Hash.String()
	case KeyTagURef:
		return k.URef.String()
	default:
		return "invalid-key"
	}
}

// dbKey is the string form used as the map key inside GlobalState snapshots:
// normalized (rights stripped) hex bytes, so access rights never fragment
// the keyspace.
func (k Key) dbKey() string {
	return hex.EncodeToString(k.Normalize().Bytes())
}
