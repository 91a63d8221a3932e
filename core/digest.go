package core

import (
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// StateDigest identifies a global state snapshot. It is the Blake2b-256 hash
// of the sorted key/value pairs the snapshot contains.
type StateDigest [32]byte

func (d StateDigest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether the digest is the all-zero sentinel used for the
// pre-genesis state.
func (d StateDigest) IsZero() bool { return d == StateDigest{} }

// DigestFromHex parses a hex-encoded digest.
func DigestFromHex(s string) (StateDigest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return StateDigest{}, fmt.Errorf("digest: %w", err)
	}
	if len(b) != 32 {
		return StateDigest{}, fmt.Errorf("digest: expected 32 bytes, got %d", len(b))
	}
	var d StateDigest
	copy(d[:], b)
	return d, nil
}

// hashKeyValues computes the deterministic Blake2b-256 digest of a key/value
// map by hashing the lexicographically sorted (key, value) pairs. It stands
// in for a real trie root: the on-disk trie node layout is out of scope.
func hashKeyValues(kv map[string][]byte) StateDigest {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h, err := blake2b.New256(nil)
	if err != nil {
		panic("core: blake2b.New256: " + err.Error())
	}
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write(kv[k])
	}
	var out StateDigest
	copy(out[:], h.Sum(nil))
	return out
}

// HashBytes computes the Blake2b-256 digest of an arbitrary byte string, used
// for contract-code addressing (Key::Hash) and deploy hashes.
func HashBytes(b []byte) StateDigest {
	return blake2b.Sum256(b)
}
