package core

import (
	"math/big"
	"testing"

	"synnergy-network/internal/testutil"
)

func newTestGlobalState(t *testing.T) *GlobalState {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })

	gs, err := NewGlobalState(GlobalStateConfig{
		WALPath:      sb.Path("state.wal"),
		SnapshotPath: sb.Path("state.snap"),
	})
	if err != nil {
		t.Fatalf("NewGlobalState: %v", err)
	}
	t.Cleanup(func() { gs.Close() })
	return gs
}

func TestGlobalStateCommitAndCheckout(t *testing.T) {
	gs := newTestGlobalState(t)

	addr := Address{1, 2, 3}
	key := AccountKey(addr)
	effects := []KeyTransform{{Key: key, Transform: WriteTransform(UInt64Value(42))}}

	res, err := gs.CommitGenesis(effects)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.PostDigest.IsZero() {
		t.Fatalf("expected non-zero post digest")
	}

	view, ok := gs.Checkout(res.PostDigest)
	if !ok {
		t.Fatalf("Checkout: post digest not found")
	}
	raw, ok := view.Read(key)
	if !ok {
		t.Fatalf("Read: key not found in committed view")
	}
	v, err := DecodeValue(raw)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if v.Tag != ValueTagUInt64 || v.UInt64 != 42 {
		t.Fatalf("unexpected value: %+v", v)
	}

	// The all-zero digest is never a registered snapshot: it is reserved to
	// mean "unknown parent" (spec scenario: execute/checkout against it must
	// fail, not silently resolve to the pre-genesis empty state).
	if _, ok := gs.Checkout(StateDigest{}); ok {
		t.Fatalf("zero digest must not be checkout-able as a committed snapshot")
	}
}

func TestGlobalStateZeroDigestIsUnknownForCommit(t *testing.T) {
	gs := newTestGlobalState(t)
	if _, err := gs.Commit(StateDigest{}, nil); err == nil {
		t.Fatalf("expected the zero digest to be rejected as an unknown pre-state for Commit")
	}
}

func TestGlobalStateCommitMissingPrestate(t *testing.T) {
	gs := newTestGlobalState(t)
	_, err := gs.Commit(HashBytes([]byte("nonexistent")), nil)
	if err == nil {
		t.Fatalf("expected error for unknown pre-state digest")
	}
}

func TestGlobalStateOverlayViewSequentialVisibility(t *testing.T) {
	gs := newTestGlobalState(t)

	purse := URefKey(URef{Address: HashBytes([]byte("purse")), Rights: AccessFull})
	base, err := gs.CommitGenesis([]KeyTransform{{Key: purse, Transform: WriteTransform(UInt512Value(big.NewInt(0)))}})
	if err != nil {
		t.Fatalf("Commit base: %v", err)
	}

	firstAdd := []KeyTransform{{Key: purse, Transform: AddUInt512Transform(big.NewInt(10))}}
	overlay1, err := gs.OverlayView(base.PostDigest, firstAdd)
	if err != nil {
		t.Fatalf("OverlayView 1: %v", err)
	}
	raw, ok := overlay1.Read(purse)
	if !ok {
		t.Fatalf("expected purse value in first overlay")
	}
	v, _ := DecodeValue(raw)
	if v.UInt512.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected 10 after first overlay, got %s", v.UInt512)
	}

	// A second overlay that accumulates both effects should see 10+5=15,
	// while the underlying committed state (base) is untouched.
	secondAdd := append(append([]KeyTransform{}, firstAdd...), KeyTransform{Key: purse, Transform: AddUInt512Transform(big.NewInt(5))})
	overlay2, err := gs.OverlayView(base.PostDigest, secondAdd)
	if err != nil {
		t.Fatalf("OverlayView 2: %v", err)
	}
	raw2, _ := overlay2.Read(purse)
	v2, _ := DecodeValue(raw2)
	if v2.UInt512.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("expected 15 after second overlay, got %s", v2.UInt512)
	}

	baseView, ok := gs.Checkout(base.PostDigest)
	if !ok {
		t.Fatalf("Checkout base: not found")
	}
	rawBase, _ := baseView.Read(purse)
	vBase, _ := DecodeValue(rawBase)
	if vBase.UInt512.Cmp(big.NewInt(0)) != 0 {
		t.Fatalf("overlay effects leaked into committed base snapshot: got %s", vBase.UInt512)
	}
}

func TestGlobalStateOverlayViewMissingDigest(t *testing.T) {
	gs := newTestGlobalState(t)
	if _, err := gs.OverlayView(HashBytes([]byte("nope")), nil); err == nil {
		t.Fatalf("expected error for unknown digest")
	}
}
