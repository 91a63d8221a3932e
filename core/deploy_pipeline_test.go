package core

import "testing"

func TestDeployPipelinePreconditionUnknownAccount(t *testing.T) {
	gs := newTestGlobalState(t)
	view := gs.CheckoutPreGenesis()

	dp := NewDeployPipeline(NewExecutor(nil), NewMint(), NewProofOfStake())
	res, err := dp.Process(view, Deploy{Account: Address{1, 2, 3}, GasPrice: 1}, NewProtocolVersion(1, 0, 0))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != DeployPreconditionFailure {
		t.Fatalf("expected precondition failure for unknown account, got %v", res.Outcome)
	}
}

func TestDeployPipelinePreconditionZeroGasPrice(t *testing.T) {
	gs := newTestGlobalState(t)

	acct := Address{9}
	base, err := gs.CommitGenesis([]KeyTransform{
		{Key: AccountKey(acct), Transform: WriteTransform(Value{Tag: ValueTagAccount, Account: StoredAccount{NamedKeys: map[string]Key{}}})},
	})
	if err != nil {
		t.Fatalf("seed commit: %v", err)
	}
	view, ok := gs.Checkout(base.PostDigest)
	if !ok {
		t.Fatalf("checkout post digest")
	}

	dp := NewDeployPipeline(NewExecutor(nil), NewMint(), NewProofOfStake())
	res, err := dp.Process(view, Deploy{Account: acct, GasPrice: 0}, NewProtocolVersion(1, 0, 0))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != DeployPreconditionFailure {
		t.Fatalf("expected precondition failure for zero gas price, got %v", res.Outcome)
	}
}

func TestDeployOutcomeString(t *testing.T) {
	cases := map[DeployOutcome]string{
		DeploySuccess:             "success",
		DeployRevert:              "revert",
		DeployOutOfGas:            "out_of_gas",
		DeployTrap:                "trap",
		DeployPreconditionFailure: "precondition_failure",
	}
	for outcome, want := range cases {
		if got := outcome.String(); got != want {
			t.Fatalf("outcome %d: expected %q, got %q", outcome, want, got)
		}
	}
}
