// Protocol upgrades, grounded on the teacher's
// ContractManager.UpgradeContract (contract_management.go): bytecode
// replacement that preserves the target's named-keys, generalized here to
// operate over a content-addressed GlobalState snapshot instead of a single
// ledger's key/value prefix.
package core

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// CodeReplacement swaps the bytecode stored at a contract hash, preserving
// its named_keys.
type CodeReplacement struct {
	ContractHash StateDigest
	NewCode      []byte
}

// UpgradeConfig is the input to RunUpgrade.
type UpgradeConfig struct {
	PreState          StateDigest
	NewProtocolVersion ProtocolVersion
	NewWasmCosts      WasmCosts
	CodeReplacements  []CodeReplacement
}

// UpgradeResult reports the state digest produced by an upgrade, or a
// failure message.
type UpgradeResult struct {
	Success        bool
	PostDigest     StateDigest
	Effects        []KeyTransform
	FailureMessage string
}

// RunUpgrade opens a tracking copy at cfg.PreState, replaces each named
// system contract's bytecode while preserving its named_keys, bumps the
// stored protocol version, and commits. Downgrade attempts fail with
// ErrInvalidProtocolVersion.
func RunUpgrade(gs *GlobalState, currentVersion ProtocolVersion, cfg UpgradeConfig) UpgradeResult {
	if cfg.NewProtocolVersion.LessThan(currentVersion) {
		return UpgradeResult{FailureMessage: fmt.Errorf("%w: %s < %s", ErrInvalidProtocolVersion, cfg.NewProtocolVersion, currentVersion).Error()}
	}

	view, ok := gs.Checkout(cfg.PreState)
	if !ok {
		return UpgradeResult{FailureMessage: fmt.Sprintf("upgrade: pre-state %s not found", cfg.PreState)}
	}
	tc := NewTrackingCopy(view)

	for _, repl := range cfg.CodeReplacements {
		key := HashKey(repl.ContractHash)
		existing, err := tc.Read(key)
		namedKeys := map[string]Key{}
		if err == nil && existing.Tag == ValueTagContract {
			namedKeys = existing.Contract.NamedKeys
		}
		tc.Write(key, Value{Tag: ValueTagContract, Contract: StoredContract{
			Bytecode: repl.NewCode, ProtocolVersion: cfg.NewProtocolVersion, NamedKeys: namedKeys,
		}})
	}

	RegisterWasmCosts(cfg.NewProtocolVersion, cfg.NewWasmCosts)

	effects, err := tc.Effects()
	if err != nil {
		return UpgradeResult{FailureMessage: fmt.Sprintf("upgrade: effects: %v", err)}
	}

	result, err := gs.Commit(cfg.PreState, effects)
	if err != nil {
		return UpgradeResult{FailureMessage: fmt.Sprintf("upgrade: commit: %v", err)}
	}

	logrus.WithFields(logrus.Fields{
		"pre_digest":  cfg.PreState.String(),
		"post_digest": result.PostDigest.String(),
		"new_version": cfg.NewProtocolVersion.String(),
		"replacements": len(cfg.CodeReplacements),
	}).Info("upgrade: applied")

	return UpgradeResult{Success: true, PostDigest: result.PostDigest, Effects: effects}
}
