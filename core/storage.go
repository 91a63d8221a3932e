// Content addressing for deployed contract bytecode, grounded on the
// teacher's IPFS/Arweave gateway wrapper (storage.go): that file computed a
// CIDv1 locally before ever touching the network, using the same
// go-cid/go-multihash pair this engine reuses purely for the local
// computation, without the gateway pinning, disk LRU cache or storage-deal
// escrow machinery that accompanied it (none of which has a place in the
// execution engine's scope).
package core

import (
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// ContentID computes the CIDv1 of a byte string using SHA2-256 multihash.
// The engine addresses stored contracts by Blake2b-256 StateDigest
// (HashBytes); no other part of the engine calls ContentID.
func ContentID(data []byte) (string, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("core: compute multihash: %w", err)
	}
	c := cid.NewCidV1(cid.Raw, sum)
	return c.String(), nil
}
