package main

import (
	"math/big"
	"testing"

	core "synnergy-network/core"
)

func TestWireKeyRoundTripAccount(t *testing.T) {
	addr := core.Address{1, 2, 3}
	k := core.AccountKey(addr)

	w := keyToWire(k)
	back, err := w.toCore()
	if err != nil {
		t.Fatalf("toCore: %v", err)
	}
	if back.Tag != core.KeyTagAccount || back.Account != addr {
		t.Fatalf("expected account key to round-trip, got %+v", back)
	}
}

func TestWireKeyRoundTripURefStripsNothingButPreservesRights(t *testing.T) {
	u := core.URef{Address: core.HashBytes([]byte("p")), Rights: core.AccessFull}
	k := core.URefKey(u)

	w := keyToWire(k)
	back, err := w.toCore()
	if err != nil {
		t.Fatalf("toCore: %v", err)
	}
	if back.URef.Address != u.Address || back.URef.Rights != u.Rights {
		t.Fatalf("expected uref key to round-trip with rights, got %+v", back.URef)
	}
}

func TestWireKeyUnknownTagFails(t *testing.T) {
	w := wireKey{Tag: "bogus"}
	if _, err := w.toCore(); err == nil {
		t.Fatalf("expected error for unknown key tag")
	}
}

func TestWireValueRoundTripScalars(t *testing.T) {
	cases := []core.Value{
		core.UnitValue(),
		core.Int32Value(-9),
		core.UInt64Value(77),
		core.UInt128Value(big.NewInt(123)),
		core.UInt512Value(big.NewInt(456)),
		core.ByteArrayValue([]byte{0xde, 0xad}),
		core.StringValue("hi"),
	}
	for _, v := range cases {
		w := valueToWire(v)
		back, err := w.toCore()
		if err != nil {
			t.Fatalf("toCore(%+v): %v", v, err)
		}
		if back.Tag != v.Tag {
			t.Fatalf("tag mismatch: want %v got %v", v.Tag, back.Tag)
		}
	}
}

func TestWireValueUnsupportedTagFails(t *testing.T) {
	w := wireValue{Tag: "account"}
	if _, err := w.toCore(); err == nil {
		t.Fatalf("expected error for a value tag not exchanged over the transport")
	}
}

func TestWireTransformRoundTripAdd(t *testing.T) {
	tr := core.AddUInt64Transform(42)
	w := transformToWire(tr)
	back, err := w.toCore()
	if err != nil {
		t.Fatalf("toCore: %v", err)
	}
	if back.Tag != core.TransformAddUInt64 || back.AddUInt64 != 42 {
		t.Fatalf("expected add_uint64(42) to round-trip, got %+v", back)
	}
}

func TestWireTransformRoundTripWrite(t *testing.T) {
	tr := core.WriteTransform(core.UInt64Value(9))
	w := transformToWire(tr)
	back, err := w.toCore()
	if err != nil {
		t.Fatalf("toCore: %v", err)
	}
	if back.Tag != core.TransformWrite || back.WriteValue.UInt64 != 9 {
		t.Fatalf("expected write transform to round-trip, got %+v", back)
	}
}

func TestWireProtocolVersionRoundTrip(t *testing.T) {
	v := core.NewProtocolVersion(1, 2, 3)
	w := protocolVersionToWire(v)
	if got := w.toCore(); got != v {
		t.Fatalf("expected protocol version to round-trip, got %v", got)
	}
}

func TestWireGenesisRequestToCoreParsesAccountsAndBonds(t *testing.T) {
	req := wireGenesisRequest{
		ProtocolVersion: wireProtocolVersion{Major: 1},
		Accounts: []wireGenesisAccount{
			{Address: core.Address{1}.Hex(), Balance: "100"},
		},
		InitialBonds: []wireInitialBond{
			{Validator: core.Address{2}.Hex(), Amount: "50"},
		},
	}
	cfg, err := req.toCore()
	if err != nil {
		t.Fatalf("toCore: %v", err)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].Balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected one account with balance 100, got %+v", cfg.Accounts)
	}
	if len(cfg.InitialBonds) != 1 || cfg.InitialBonds[0].Amount.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected one bond with amount 50, got %+v", cfg.InitialBonds)
	}
}

func TestWireGenesisRequestRejectsInvalidBalance(t *testing.T) {
	req := wireGenesisRequest{
		Accounts: []wireGenesisAccount{{Address: core.Address{1}.Hex(), Balance: "not-a-number"}},
	}
	if _, err := req.toCore(); err == nil {
		t.Fatalf("expected error for invalid balance string")
	}
}

func TestWireQueryRequestToCore(t *testing.T) {
	req := wireQueryRequest{
		StateDigest: core.HashBytes([]byte("s")).String(),
		BaseKey:     keyToWire(core.AccountKey(core.Address{7})),
		Path:        []string{"a", "b"},
	}
	qr, err := req.toCore()
	if err != nil {
		t.Fatalf("toCore: %v", err)
	}
	if len(qr.Path) != 2 || qr.BaseKey.Tag != core.KeyTagAccount {
		t.Fatalf("expected query request to round-trip path and base key, got %+v", qr)
	}
}

func TestBondedValidatorsToWire(t *testing.T) {
	vs := []core.BondedValidator{{Validator: core.Address{3}, Amount: big.NewInt(200)}}
	out := bondedValidatorsToWire(vs)
	if len(out) != 1 || out[0].Amount != "200" {
		t.Fatalf("expected bonded validator amount to render as decimal string, got %+v", out)
	}
}
