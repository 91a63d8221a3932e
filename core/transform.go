package core

import (
	"fmt"
	"io"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// TransformTag discriminates the variants of Transform, mirroring the
// original engine's protobuf mapping one-to-one.
type TransformTag uint8

const (
	TransformIdentity TransformTag = iota
	TransformWrite
	TransformAddInt32
	TransformAddUInt64
	TransformAddUInt128
	TransformAddUInt256
	TransformAddUInt512
	TransformAddKeys
	TransformFailure
)

// maxUint512 bounds the saturating 512-bit accumulator; no native uint512
// type exists in the ecosystem so math/big stands in with an explicit
// ceiling.
var maxUint512 = func() *big.Int {
	one := big.NewInt(1)
	shifted := new(big.Int).Lsh(one, 512)
	return shifted.Sub(shifted, one)
}()

// Transform describes a single state mutation produced by executing a
// deploy. Transforms accumulate in a TrackingCopy's effect log and are
// applied against GlobalState at commit time.
type Transform struct {
	Tag TransformTag

	WriteValue Value
	AddInt32   int32
	AddUInt64  uint64
	AddUInt128 *big.Int
	AddUInt256 *uint256.Int
	AddUInt512 *big.Int
	AddKeys    map[string]Key
	FailureMsg string
}

func IdentityTransform() Transform { return Transform{Tag: TransformIdentity} }
func WriteTransform(v Value) Transform { return Transform{Tag: TransformWrite, WriteValue: v} }
func AddInt32Transform(v int32) Transform { return Transform{Tag: TransformAddInt32, AddInt32: v} }
func AddUInt64Transform(v uint64) Transform { return Transform{Tag: TransformAddUInt64, AddUInt64: v} }
func AddUInt128Transform(v *big.Int) Transform {
	return Transform{Tag: TransformAddUInt128, AddUInt128: new(big.Int).Set(v)}
}
func AddUInt256Transform(v *uint256.Int) Transform {
	return Transform{Tag: TransformAddUInt256, AddUInt256: new(uint256.Int).Set(v)}
}
func AddUInt512Transform(v *big.Int) Transform {
	return Transform{Tag: TransformAddUInt512, AddUInt512: new(big.Int).Set(v)}
}
func AddKeysTransform(m map[string]Key) Transform { return Transform{Tag: TransformAddKeys, AddKeys: m} }
func FailureTransform(msg string) Transform       { return Transform{Tag: TransformFailure, FailureMsg: msg} }

// Merge combines t (applied first) with next (applied second) into a single
// equivalent transform, per the algebra's commutativity rules: Add* variants
// of the same width commute and combine by summation; Write always
// shadows whatever came before it; Failure is absorbing.
func (t Transform) Merge(next Transform) (Transform, error) {
	if next.Tag == TransformFailure {
		return next, nil
	}
	if t.Tag == TransformFailure {
		return t, nil
	}
	if next.Tag == TransformIdentity {
		return t, nil
	}
	if t.Tag == TransformIdentity {
		return next, nil
	}
	if next.Tag == TransformWrite {
		return next, nil
	}

	switch t.Tag {
	case TransformWrite:
		applied, err := applyAddToValue(t.WriteValue, next)
		if err != nil {
			return Transform{}, err
		}
		return WriteTransform(applied), nil

	case TransformAddInt32:
		if next.Tag != TransformAddInt32 {
			return Transform{}, fmt.Errorf("%w: cannot merge AddInt32 with %d", ErrTypeMismatch, next.Tag)
		}
		return AddInt32Transform(t.AddInt32 + next.AddInt32), nil

	case TransformAddUInt64:
		if next.Tag != TransformAddUInt64 {
			return Transform{}, fmt.Errorf("%w: cannot merge AddUInt64 with %d", ErrTypeMismatch, next.Tag)
		}
		sum := t.AddUInt64 + next.AddUInt64
		if sum < t.AddUInt64 {
			sum = ^uint64(0) // saturate
		}
		return AddUInt64Transform(sum), nil

	case TransformAddUInt128:
		if next.Tag != TransformAddUInt128 {
			return Transform{}, fmt.Errorf("%w: cannot merge AddUInt128 with %d", ErrTypeMismatch, next.Tag)
		}
		return AddUInt128Transform(saturatingAddBig(t.AddUInt128, next.AddUInt128, uint128Max)), nil

	case TransformAddUInt256:
		if next.Tag != TransformAddUInt256 {
			return Transform{}, fmt.Errorf("%w: cannot merge AddUInt256 with %d", ErrTypeMismatch, next.Tag)
		}
		sum, overflow := new(uint256.Int).AddOverflow(t.AddUInt256, next.AddUInt256)
		if overflow {
			sum = uint256.NewInt(0).Not(uint256.NewInt(0)) // all-ones: max uint256
		}
		return AddUInt256Transform(sum), nil

	case TransformAddUInt512:
		if next.Tag != TransformAddUInt512 {
			return Transform{}, fmt.Errorf("%w: cannot merge AddUInt512 with %d", ErrTypeMismatch, next.Tag)
		}
		return AddUInt512Transform(saturatingAddBig(t.AddUInt512, next.AddUInt512, maxUint512)), nil

	case TransformAddKeys:
		if next.Tag != TransformAddKeys {
			return Transform{}, fmt.Errorf("%w: cannot merge AddKeys with %d", ErrTypeMismatch, next.Tag)
		}
		merged := make(map[string]Key, len(t.AddKeys)+len(next.AddKeys))
		for k, v := range t.AddKeys {
			merged[k] = v
		}
		for k, v := range next.AddKeys {
			merged[k] = v
		}
		return AddKeysTransform(merged), nil

	default:
		return Transform{}, fmt.Errorf("core: unknown transform tag %d", t.Tag)
	}
}

var uint128Max = func() *big.Int {
	one := big.NewInt(1)
	shifted := new(big.Int).Lsh(one, 128)
	return shifted.Sub(shifted, one)
}()

func saturatingAddBig(a, b, max *big.Int) *big.Int {
	sum := new(big.Int).Add(a, b)
	if sum.Cmp(max) > 0 {
		return new(big.Int).Set(max)
	}
	return sum
}

// applyAddToValue applies an Add* transform directly to a Value, used when a
// Write is merged with a subsequent Add of matching type (e.g. a deploy that
// writes then immediately adds within the same tracking copy).
func applyAddToValue(v Value, add Transform) (Value, error) {
	switch add.Tag {
	case TransformAddInt32:
		if v.Tag != ValueTagInt32 {
			return Value{}, fmt.Errorf("%w: AddInt32 onto %d", ErrTypeMismatch, v.Tag)
		}
		return Int32Value(v.Int32 + add.AddInt32), nil
	case TransformAddUInt64:
		if v.Tag != ValueTagUInt64 {
			return Value{}, fmt.Errorf("%w: AddUInt64 onto %d", ErrTypeMismatch, v.Tag)
		}
		sum := v.UInt64 + add.AddUInt64
		if sum < v.UInt64 {
			sum = ^uint64(0)
		}
		return UInt64Value(sum), nil
	case TransformAddUInt128:
		if v.Tag != ValueTagUInt128 {
			return Value{}, fmt.Errorf("%w: AddUInt128 onto %d", ErrTypeMismatch, v.Tag)
		}
		return UInt128Value(saturatingAddBig(v.UInt128, add.AddUInt128, uint128Max)), nil
	case TransformAddUInt256:
		if v.Tag != ValueTagUInt256 {
			return Value{}, fmt.Errorf("%w: AddUInt256 onto %d", ErrTypeMismatch, v.Tag)
		}
		sum, overflow := new(uint256.Int).AddOverflow(v.UInt256, add.AddUInt256)
		if overflow {
			sum = uint256.NewInt(0).Not(uint256.NewInt(0))
		}
		return UInt256Value(sum), nil
	case TransformAddUInt512:
		if v.Tag != ValueTagUInt512 {
			return Value{}, fmt.Errorf("%w: AddUInt512 onto %d", ErrTypeMismatch, v.Tag)
		}
		return UInt512Value(saturatingAddBig(v.UInt512, add.AddUInt512, maxUint512)), nil
	case TransformAddKeys:
		if v.Tag != ValueTagNamedKeys {
			return Value{}, fmt.Errorf("%w: AddKeys onto %d", ErrTypeMismatch, v.Tag)
		}
		merged := make(map[string]Key, len(v.NamedKeys)+len(add.AddKeys))
		for k, kk := range v.NamedKeys {
			merged[k] = kk
		}
		for k, kk := range add.AddKeys {
			merged[k] = kk
		}
		return NamedKeysValue(merged), nil
	default:
		return Value{}, fmt.Errorf("core: %d is not an add transform", add.Tag)
	}
}

// wireTransform is the RLP-friendly shadow of Transform: big.Int/uint256
// pointers and maps don't round-trip through rlp directly as a tagged union,
// so the wire form flattens everything to byte strings. WriteBytes holds the
// same encoding Value's own wire codec produces (EncodeValue), so a Write
// transform's payload survives the round trip in full, not just its
// ByteArray field.
type wireTransform struct {
	Tag        uint8
	WriteBytes []byte
	AddInt32   int32
	AddUInt64  uint64
	AddBig     []byte // big-endian magnitude, used for UInt128/256/512
	AddKeys    [][2][]byte
	FailureMsg string
}

// EncodeRLP implements rlp.Encoder so Transform round-trips deterministically
// through the teacher's wire codec.
func (t Transform) EncodeRLP(w io.Writer) error {
	wt := wireTransform{Tag: uint8(t.Tag), AddInt32: t.AddInt32, AddUInt64: t.AddUInt64, FailureMsg: t.FailureMsg}
	switch t.Tag {
	case TransformWrite:
		enc, err := EncodeValue(t.WriteValue)
		if err != nil {
			return err
		}
		wt.WriteBytes = enc
	case TransformAddUInt128:
		if t.AddUInt128 != nil {
			wt.AddBig = t.AddUInt128.Bytes()
		}
	case TransformAddUInt256:
		if t.AddUInt256 != nil {
			wt.AddBig = t.AddUInt256.Bytes()
		}
	case TransformAddUInt512:
		if t.AddUInt512 != nil {
			wt.AddBig = t.AddUInt512.Bytes()
		}
	case TransformAddKeys:
		names := make([]string, 0, len(t.AddKeys))
		for k := range t.AddKeys {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			wt.AddKeys = append(wt.AddKeys, [2][]byte{[]byte(k), t.AddKeys[k].Bytes()})
		}
	}
	data, err := rlp.EncodeToBytes(wt)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// DecodeRLP implements rlp.Decoder, the counterpart to EncodeRLP: it decodes
// the wireTransform shadow this type encodes into and rebuilds the tagged
// union, so rlp.DecodeBytes(rlp.EncodeToBytes(t)) reproduces t exactly.
func (t *Transform) DecodeRLP(s *rlp.Stream) error {
	var wt wireTransform
	if err := s.Decode(&wt); err != nil {
		return err
	}
	rebuilt, err := wt.toTransform()
	if err != nil {
		return err
	}
	*t = rebuilt
	return nil
}

// toTransform rebuilds the tagged Transform union a wireTransform was
// flattened from.
func (wt wireTransform) toTransform() (Transform, error) {
	tag := TransformTag(wt.Tag)
	switch tag {
	case TransformIdentity:
		return IdentityTransform(), nil
	case TransformWrite:
		v, err := DecodeValue(wt.WriteBytes)
		if err != nil {
			return Transform{}, fmt.Errorf("core: decode write transform: %w", err)
		}
		return WriteTransform(v), nil
	case TransformAddInt32:
		return AddInt32Transform(wt.AddInt32), nil
	case TransformAddUInt64:
		return AddUInt64Transform(wt.AddUInt64), nil
	case TransformAddUInt128:
		return AddUInt128Transform(new(big.Int).SetBytes(wt.AddBig)), nil
	case TransformAddUInt256:
		return AddUInt256Transform(new(uint256.Int).SetBytes(wt.AddBig)), nil
	case TransformAddUInt512:
		return AddUInt512Transform(new(big.Int).SetBytes(wt.AddBig)), nil
	case TransformAddKeys:
		m := make(map[string]Key, len(wt.AddKeys))
		for _, kv := range wt.AddKeys {
			k, err := KeyFromBytes(kv[1])
			if err != nil {
				return Transform{}, fmt.Errorf("core: decode add-keys transform: %w", err)
			}
			m[string(kv[0])] = k
		}
		return AddKeysTransform(m), nil
	case TransformFailure:
		return FailureTransform(wt.FailureMsg), nil
	default:
		return Transform{}, fmt.Errorf("core: unknown wire transform tag %d", wt.Tag)
	}
}

// zeroValueFor returns the additive identity Value for an Add* transform,
// used when the transform targets a Key that has never been written.
func zeroValueFor(tag TransformTag) Value {
	switch tag {
	case TransformAddInt32:
		return Int32Value(0)
	case TransformAddUInt64:
		return UInt64Value(0)
	case TransformAddUInt128:
		return UInt128Value(big.NewInt(0))
	case TransformAddUInt256:
		return UInt256Value(uint256.NewInt(0))
	case TransformAddUInt512:
		return UInt512Value(big.NewInt(0))
	case TransformAddKeys:
		return NamedKeysValue(map[string]Key{})
	default:
		return UnitValue()
	}
}

// applyTransformToBytes applies t to the encoded bytes currently stored at a
// key (or the absence of a value) and returns the new encoded bytes, or nil
// to indicate the key should be deleted. Failure transforms never mutate
// state: the deploy that produced one has its effects discarded upstream.
func applyTransformToBytes(cur []byte, existed bool, t Transform) ([]byte, error) {
	switch t.Tag {
	case TransformIdentity, TransformFailure:
		if !existed {
			return nil, nil
		}
		return cur, nil
	case TransformWrite:
		return EncodeValue(t.WriteValue)
	default:
		var base Value
		if existed {
			v, err := DecodeValue(cur)
			if err != nil {
				return nil, err
			}
			base = v
		} else {
			base = zeroValueFor(t.Tag)
		}
		applied, err := applyAddToValue(base, t)
		if err != nil {
			return nil, err
		}
		return EncodeValue(applied)
	}
}
