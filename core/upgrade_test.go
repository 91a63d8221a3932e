package core

import "testing"

func TestRunUpgradeReplacesBytecodePreservingNamedKeys(t *testing.T) {
	gs := newTestGlobalState(t)
	contractHash := HashBytes([]byte("my-contract"))
	named := map[string]Key{"entry": HashKey(HashBytes([]byte("entry")))}

	base, err := gs.CommitGenesis([]KeyTransform{
		{Key: HashKey(contractHash), Transform: WriteTransform(Value{
			Tag: ValueTagContract,
			Contract: StoredContract{
				Bytecode:        []byte("old"),
				ProtocolVersion: NewProtocolVersion(1, 0, 0),
				NamedKeys:       named,
			},
		})},
	})
	if err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	res := RunUpgrade(gs, NewProtocolVersion(1, 0, 0), UpgradeConfig{
		PreState:           base.PostDigest,
		NewProtocolVersion: NewProtocolVersion(1, 1, 0),
		NewWasmCosts:       DefaultWasmCosts(),
		CodeReplacements:   []CodeReplacement{{ContractHash: contractHash, NewCode: []byte("new")}},
	})
	if !res.Success {
		t.Fatalf("upgrade failed: %s", res.FailureMessage)
	}

	view, ok := gs.Checkout(res.PostDigest)
	if !ok {
		t.Fatalf("checkout post-upgrade digest")
	}
	tc := NewTrackingCopy(view)
	v, err := tc.Read(HashKey(contractHash))
	if err != nil {
		t.Fatalf("read contract: %v", err)
	}
	if string(v.Contract.Bytecode) != "new" {
		t.Fatalf("expected replaced bytecode, got %q", v.Contract.Bytecode)
	}
	if len(v.Contract.NamedKeys) != 1 {
		t.Fatalf("expected named keys to be preserved, got %+v", v.Contract.NamedKeys)
	}
}

func TestRunUpgradeRejectsDowngrade(t *testing.T) {
	gs := newTestGlobalState(t)
	res := RunUpgrade(gs, NewProtocolVersion(2, 0, 0), UpgradeConfig{
		PreState:           StateDigest{},
		NewProtocolVersion: NewProtocolVersion(1, 0, 0),
		NewWasmCosts:       DefaultWasmCosts(),
	})
	if res.Success {
		t.Fatalf("expected downgrade to fail")
	}
}

func TestRunUpgradeMissingPrestate(t *testing.T) {
	gs := newTestGlobalState(t)
	res := RunUpgrade(gs, NewProtocolVersion(1, 0, 0), UpgradeConfig{
		PreState:           HashBytes([]byte("ghost")),
		NewProtocolVersion: NewProtocolVersion(1, 1, 0),
		NewWasmCosts:       DefaultWasmCosts(),
	})
	if res.Success {
		t.Fatalf("expected missing pre-state to fail")
	}
}
