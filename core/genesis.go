// Genesis construction, grounded on the teacher's NewLedger(cfg LedgerConfig)
// open-WAL/apply-genesis-block/replay-WAL sequence (ledger.go): RunGenesis
// plays the analogous role of producing the first committed state digest,
// but against an empty GlobalState rather than a single mutable map.
package core

import (
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"
)

// GenesisAccount allocates an initial purse balance to an address at
// genesis.
type GenesisAccount struct {
	Address Address
	Balance *big.Int
}

// InitialBond seeds a validator's bonded amount at genesis, bypassing the
// normal bond/unbond purse-transfer dance since no purses hold funds yet.
type InitialBond struct {
	Validator Address
	Amount    *big.Int
}

// GenesisConfig is the input to RunGenesis.
type GenesisConfig struct {
	ProtocolVersion ProtocolVersion
	Accounts        []GenesisAccount
	WasmCosts       WasmCosts
	MintCode        []byte
	POSCode         []byte
	InitialBonds    []InitialBond
}

// GenesisResult reports the state digest produced by genesis, or a failure
// message.
type GenesisResult struct {
	Success        bool
	PostDigest     StateDigest
	Effects        []KeyTransform
	FailureMessage string
}

// mintContractHash and posContractHash are the deterministic, well-known
// hashes the mint and PoS system contracts are installed at, so the host
// API's get_mint/get_pos surface can return a fixed value across every
// chain built from this engine.
func mintContractHash() StateDigest { return HashBytes([]byte("system-contract:mint")) }
func posContractHash() StateDigest  { return HashBytes([]byte("system-contract:pos")) }

// RunGenesis constructs an empty state, installs the mint and PoS system
// contracts at deterministic hashes, allocates each account's initial
// balance purse, applies initial bonds, and commits, returning the
// resulting post-state digest.
func RunGenesis(gs *GlobalState, cfg GenesisConfig) GenesisResult {
	RegisterWasmCosts(cfg.ProtocolVersion, cfg.WasmCosts)

	view := gs.CheckoutPreGenesis()
	tc := NewTrackingCopy(view)

	tc.Write(HashKey(mintContractHash()), Value{Tag: ValueTagContract, Contract: StoredContract{
		Bytecode: cfg.MintCode, ProtocolVersion: cfg.ProtocolVersion, NamedKeys: map[string]Key{},
	}})
	tc.Write(HashKey(posContractHash()), Value{Tag: ValueTagContract, Contract: StoredContract{
		Bytecode: cfg.POSCode, ProtocolVersion: cfg.ProtocolVersion, NamedKeys: map[string]Key{},
	}})

	mint := NewMint()
	pos := NewProofOfStake()
	pos.EnsureSystemPurses(tc)

	minted := big.NewInt(0)
	for _, a := range cfg.Accounts {
		purse := mint.CreatePurse(tc)
		if err := mint.MintTo(tc, minted, purse, a.Balance); err != nil {
			return GenesisResult{FailureMessage: fmt.Sprintf("genesis: allocate %s: %v", a.Address.Hex(), err)}
		}
		minted.Add(minted, a.Balance)
		tc.Write(AccountKey(a.Address), Value{Tag: ValueTagAccount, Account: StoredAccount{
			MainPurse: purse, NamedKeys: map[string]Key{},
		}})
	}

	for _, b := range cfg.InitialBonds {
		if err := tc.Add(bondedKey(b.Validator), AddUInt512Transform(b.Amount)); err != nil {
			return GenesisResult{FailureMessage: fmt.Sprintf("genesis: bond %s: %v", b.Validator.Hex(), err)}
		}
		if err := tc.Add(bondedIndexKey(), AddKeysTransform(map[string]Key{b.Validator.Hex(): bondedKey(b.Validator)})); err != nil {
			return GenesisResult{FailureMessage: fmt.Sprintf("genesis: bond index %s: %v", b.Validator.Hex(), err)}
		}
	}

	effects, err := tc.Effects()
	if err != nil {
		return GenesisResult{FailureMessage: fmt.Sprintf("genesis: effects: %v", err)}
	}

	result, err := gs.CommitGenesis(effects)
	if err != nil {
		return GenesisResult{FailureMessage: fmt.Sprintf("genesis: commit: %v", err)}
	}

	logrus.WithFields(logrus.Fields{
		"post_digest": result.PostDigest.String(),
		"accounts":    len(cfg.Accounts),
		"bonds":       len(cfg.InitialBonds),
	}).Info("genesis: applied")

	return GenesisResult{Success: true, PostDigest: result.PostDigest, Effects: effects}
}
