package core

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

func TestTransformMergeAddsOfSameWidthCommute(t *testing.T) {
	a := AddUInt64Transform(10)
	b := AddUInt64Transform(5)
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Tag != TransformAddUInt64 || merged.AddUInt64 != 15 {
		t.Fatalf("expected merged AddUInt64(15), got %+v", merged)
	}
}

func TestTransformMergeUInt64Saturates(t *testing.T) {
	a := AddUInt64Transform(^uint64(0))
	b := AddUInt64Transform(1)
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.AddUInt64 != ^uint64(0) {
		t.Fatalf("expected saturation at max uint64, got %d", merged.AddUInt64)
	}
}

func TestTransformMergeUInt512Saturates(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 512), big.NewInt(1))
	a := AddUInt512Transform(max)
	b := AddUInt512Transform(big.NewInt(1))
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.AddUInt512.Cmp(max) != 0 {
		t.Fatalf("expected saturation at max uint512, got %s", merged.AddUInt512)
	}
}

func TestTransformMergeUInt256Overflow(t *testing.T) {
	max := new(uint256.Int).Not(uint256.NewInt(0))
	a := AddUInt256Transform(max)
	b := AddUInt256Transform(uint256.NewInt(1))
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.AddUInt256.Cmp(max) != 0 {
		t.Fatalf("expected saturation at max uint256, got %s", merged.AddUInt256)
	}
}

func TestTransformMergeMismatchedWidthsFail(t *testing.T) {
	a := AddUInt64Transform(1)
	b := AddInt32Transform(1)
	if _, err := a.Merge(b); err == nil {
		t.Fatalf("expected type mismatch error merging AddUInt64 with AddInt32")
	}
}

func TestTransformMergeWriteShadowsPriorTransform(t *testing.T) {
	a := AddUInt64Transform(99)
	b := WriteTransform(UInt64Value(1))
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Tag != TransformWrite || merged.WriteValue.UInt64 != 1 {
		t.Fatalf("expected write to shadow prior add, got %+v", merged)
	}
}

func TestTransformMergeFailureIsAbsorbing(t *testing.T) {
	a := WriteTransform(UInt64Value(1))
	b := FailureTransform("boom")
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Tag != TransformFailure {
		t.Fatalf("expected failure to absorb prior transform, got %+v", merged)
	}
}

func TestApplyTransformToBytesWriteThenAddRoundTrip(t *testing.T) {
	written, err := applyTransformToBytes(nil, false, WriteTransform(UInt64Value(5)))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	added, err := applyTransformToBytes(written, true, AddUInt64Transform(7))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	v, err := DecodeValue(added)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.UInt64 != 12 {
		t.Fatalf("expected 12, got %d", v.UInt64)
	}
}

func rlpRoundTrip(t *testing.T, tr Transform) Transform {
	t.Helper()
	enc, err := rlp.EncodeToBytes(tr)
	if err != nil {
		t.Fatalf("EncodeToBytes: %v", err)
	}
	var back Transform
	if err := rlp.DecodeBytes(enc, &back); err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	return back
}

func TestTransformRLPRoundTripIdentity(t *testing.T) {
	back := rlpRoundTrip(t, IdentityTransform())
	if back.Tag != TransformIdentity {
		t.Fatalf("expected identity, got %+v", back)
	}
}

func TestTransformRLPRoundTripWritePreservesFullValue(t *testing.T) {
	orig := WriteTransform(UInt128Value(big.NewInt(123456789)))
	back := rlpRoundTrip(t, orig)
	if back.Tag != TransformWrite || back.WriteValue.Tag != ValueTagUInt128 {
		t.Fatalf("expected write of a uint128 value to round-trip, got %+v", back)
	}
	if back.WriteValue.UInt128.Cmp(big.NewInt(123456789)) != 0 {
		t.Fatalf("expected uint128 value to survive the round trip undamaged, got %s", back.WriteValue.UInt128)
	}
}

func TestTransformRLPRoundTripAddInt32(t *testing.T) {
	back := rlpRoundTrip(t, AddInt32Transform(-7))
	if back.Tag != TransformAddInt32 || back.AddInt32 != -7 {
		t.Fatalf("expected AddInt32(-7), got %+v", back)
	}
}

func TestTransformRLPRoundTripAddUInt64(t *testing.T) {
	back := rlpRoundTrip(t, AddUInt64Transform(42))
	if back.Tag != TransformAddUInt64 || back.AddUInt64 != 42 {
		t.Fatalf("expected AddUInt64(42), got %+v", back)
	}
}

func TestTransformRLPRoundTripAddUInt128(t *testing.T) {
	n := new(big.Int).Lsh(big.NewInt(1), 100)
	back := rlpRoundTrip(t, AddUInt128Transform(n))
	if back.Tag != TransformAddUInt128 || back.AddUInt128.Cmp(n) != 0 {
		t.Fatalf("expected AddUInt128(%s), got %+v", n, back)
	}
}

func TestTransformRLPRoundTripAddUInt256(t *testing.T) {
	n := new(uint256.Int).Not(uint256.NewInt(0))
	back := rlpRoundTrip(t, AddUInt256Transform(n))
	if back.Tag != TransformAddUInt256 || back.AddUInt256.Cmp(n) != 0 {
		t.Fatalf("expected AddUInt256(max), got %+v", back)
	}
}

func TestTransformRLPRoundTripAddUInt512(t *testing.T) {
	n := new(big.Int).Lsh(big.NewInt(1), 500)
	back := rlpRoundTrip(t, AddUInt512Transform(n))
	if back.Tag != TransformAddUInt512 || back.AddUInt512.Cmp(n) != 0 {
		t.Fatalf("expected AddUInt512(%s), got %+v", n, back)
	}
}

func TestTransformRLPRoundTripAddKeys(t *testing.T) {
	orig := AddKeysTransform(map[string]Key{
		"purse":    URefKey(URef{Address: StateDigest{1, 2, 3}, Rights: AccessFull}),
		"contract": HashKey(StateDigest{4, 5, 6}),
	})
	back := rlpRoundTrip(t, orig)
	if back.Tag != TransformAddKeys {
		t.Fatalf("expected AddKeys, got %+v", back)
	}
	if len(back.AddKeys) != 2 {
		t.Fatalf("expected 2 named keys, got %d", len(back.AddKeys))
	}
	if back.AddKeys["purse"] != orig.AddKeys["purse"] {
		t.Fatalf("expected purse key to round-trip, got %+v", back.AddKeys["purse"])
	}
	if back.AddKeys["contract"] != orig.AddKeys["contract"] {
		t.Fatalf("expected contract key to round-trip, got %+v", back.AddKeys["contract"])
	}
}

func TestTransformRLPRoundTripFailure(t *testing.T) {
	back := rlpRoundTrip(t, FailureTransform("boom"))
	if back.Tag != TransformFailure || back.FailureMsg != "boom" {
		t.Fatalf("expected failure(\"boom\"), got %+v", back)
	}
}

func TestApplyTransformToBytesAddOnAbsentKeyUsesZero(t *testing.T) {
	b, err := applyTransformToBytes(nil, false, AddUInt64Transform(3))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	v, err := DecodeValue(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.UInt64 != 3 {
		t.Fatalf("expected 3, got %d", v.UInt64)
	}
}
