package core

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// ValueTag discriminates the variants of Value.
type ValueTag uint8

const (
	ValueTagUnit ValueTag = iota
	ValueTagInt32
	ValueTagUInt64
	ValueTagUInt128
	ValueTagUInt256
	ValueTagUInt512
	ValueTagByteArray
	ValueTagString
	ValueTagNamedKeys
	ValueTagAccount
	ValueTagContract
	ValueTagTuple
)

// StoredAccount is the account value persisted at Key::Account: a main
// purse reference plus the account's named-keys table.
type StoredAccount struct {
	MainPurse URef
	NamedKeys map[string]Key
}

// StoredContract is the value persisted at Key::Hash for a deployed
// program: its wasm bytecode plus the named-keys it was deployed with.
type StoredContract struct {
	Bytecode      []byte
	ProtocolVersion ProtocolVersion
	NamedKeys     map[string]Key
}

// Value is the tagged union of everything that can be written at a Key.
// Only one of the typed fields is meaningful, selected by Tag.
type Value struct {
	Tag        ValueTag
	Int32      int32
	UInt64     uint64
	UInt128    *big.Int
	UInt256    *uint256.Int
	UInt512    *big.Int
	ByteArray  []byte
	String     string
	NamedKeys  map[string]Key
	Account    StoredAccount
	Contract   StoredContract
	Tuple      []Value
}

func UnitValue() Value                { return Value{Tag: ValueTagUnit} }
func Int32Value(v int32) Value        { return Value{Tag: ValueTagInt32, Int32: v} }
func UInt64Value(v uint64) Value      { return Value{Tag: ValueTagUInt64, UInt64: v} }
func ByteArrayValue(b []byte) Value   { return Value{Tag: ValueTagByteArray, ByteArray: append([]byte(nil), b...)} }
func StringValue(s string) Value      { return Value{Tag: ValueTagString, String: s} }
func NamedKeysValue(m map[string]Key) Value {
	return Value{Tag: ValueTagNamedKeys, NamedKeys: m}
}

func UInt128Value(v *big.Int) Value { return Value{Tag: ValueTagUInt128, UInt128: new(big.Int).Set(v)} }
func UInt256Value(v *uint256.Int) Value {
	return Value{Tag: ValueTagUInt256, UInt256: new(uint256.Int).Set(v)}
}
func UInt512Value(v *big.Int) Value { return Value{Tag: ValueTagUInt512, UInt512: new(big.Int).Set(v)} }

func (v Value) String2() string {
	switch v.Tag {
	case ValueTagUnit:
		return "()"
	case ValueTagInt32:
		return fmt.Sprintf("%d", v.Int32)
	case ValueTagUInt64:
		return fmt.Sprintf("%d", v.UInt64)
	case ValueTagUInt128:
		return v.UInt128.String()
	case ValueTagUInt512:
		return v.UInt512.String()
	case ValueTagUInt256:
		return v.UInt256.String()
	case ValueTagByteArray:
		return fmt.Sprintf("%x", v.ByteArray)
	case ValueTagString:
		return v.String
	default:
		return fmt.Sprintf("value(tag=%d)", v.Tag)
	}
}

// wireValue is the JSON-friendly shadow of Value used to persist it inside
// a GlobalState snapshot's byte-string map.
type wireValue struct {
	Tag       ValueTag
	Int32     int32           `json:",omitempty"`
	UInt64    uint64          `json:",omitempty"`
	Big       string          `json:",omitempty"` // decimal string for UInt128/256/512
	ByteArray []byte          `json:",omitempty"`
	String    string          `json:",omitempty"`
	NamedKeys map[string]Key  `json:",omitempty"`
	Account   *StoredAccount  `json:",omitempty"`
	Contract  *StoredContract `json:",omitempty"`
	Tuple     []Value         `json:",omitempty"`
}

// EncodeValue serializes a Value to bytes for storage in a GlobalState
// snapshot.
func EncodeValue(v Value) ([]byte, error) {
	w := wireValue{Tag: v.Tag, Int32: v.Int32, UInt64: v.UInt64, ByteArray: v.ByteArray, String: v.String, NamedKeys: v.NamedKeys, Tuple: v.Tuple}
	switch v.Tag {
	case ValueTagUInt128, ValueTagUInt512:
		if v.Tag == ValueTagUInt128 && v.UInt128 != nil {
			w.Big = v.UInt128.String()
		}
		if v.Tag == ValueTagUInt512 && v.UInt512 != nil {
			w.Big = v.UInt512.String()
		}
	case ValueTagUInt256:
		if v.UInt256 != nil {
			w.Big = v.UInt256.String()
		}
	case ValueTagAccount:
		w.Account = &v.Account
	case ValueTagContract:
		w.Contract = &v.Contract
	}
	return json.Marshal(w)
}

// DecodeValue deserializes bytes previously produced by EncodeValue.
func DecodeValue(b []byte) (Value, error) {
	var w wireValue
	if err := json.Unmarshal(b, &w); err != nil {
		return Value{}, fmt.Errorf("core: decode value: %w", err)
	}
	v := Value{Tag: w.Tag, Int32: w.Int32, UInt64: w.UInt64, ByteArray: w.ByteArray, String: w.String, NamedKeys: w.NamedKeys, Tuple: w.Tuple}
	switch w.Tag {
	case ValueTagUInt128:
		n, ok := new(big.Int).SetString(w.Big, 10)
		if !ok {
			n = big.NewInt(0)
		}
		v.UInt128 = n
	case ValueTagUInt512:
		n, ok := new(big.Int).SetString(w.Big, 10)
		if !ok {
			n = big.NewInt(0)
		}
		v.UInt512 = n
	case ValueTagUInt256:
		n, overflow := uint256.FromDecimal(w.Big)
		if overflow != nil || n == nil {
			n = uint256.NewInt(0)
		}
		v.UInt256 = n
	case ValueTagAccount:
		if w.Account != nil {
			v.Account = *w.Account
		}
	case ValueTagContract:
		if w.Contract != nil {
			v.Contract = *w.Contract
		}
	}
	return v, nil
}
