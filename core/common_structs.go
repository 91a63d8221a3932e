package core

import "encoding/hex"

// Address identifies an account: the 20-byte identity a Key::Account,
// a deploy's caller, and a purse's owner are addressed by.
type Address [20]byte

// Hex renders the address as a lowercase hex string, no 0x prefix, matching
// the engine's own key/digest formatting.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

func (a Address) Bytes() []byte { return a[:] }

// AddressFromHex parses a hex-encoded address.
func AddressFromHex(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, err
	}
	if len(b) != len(a) {
		return a, errAddressLength
	}
	copy(a[:], b)
	return a, nil
}

var errAddressLength = addressLengthError{}

type addressLengthError struct{}

func (addressLengthError) Error() string { return "core: address must be 20 bytes" }

// Hash is a 32-byte cryptographic digest, used wherever the engine needs a
// general-purpose hash distinct from a state digest (e.g. deploy hashes
// computed over something other than sorted key/value pairs).
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }
