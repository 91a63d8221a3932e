package main

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	core "synnergy-network/core"
)

// wireKey is the JSON shape of a core.Key: a tag plus hex-encoded payload,
// mirroring the hex addressing the teacher's xchainserver/explorer handlers
// already use for addresses and tx ids.
type wireKey struct {
	Tag        string `json:"tag"`
	Account    string `json:"account,omitempty"`
	Hash       string `json:"hash,omitempty"`
	URefAddr   string `json:"uref_address,omitempty"`
	URefRights string `json:"uref_rights,omitempty"`
}

func (k wireKey) toCore() (core.Key, error) {
	switch k.Tag {
	case "account":
		a, err := core.AddressFromHex(k.Account)
		if err != nil {
			return core.Key{}, fmt.Errorf("key: account: %w", err)
		}
		return core.AccountKey(a), nil
	case "hash":
		d, err := core.DigestFromHex(k.Hash)
		if err != nil {
			return core.Key{}, fmt.Errorf("key: hash: %w", err)
		}
		return core.HashKey(d), nil
	case "uref":
		d, err := core.DigestFromHex(k.URefAddr)
		if err != nil {
			return core.Key{}, fmt.Errorf("key: uref: %w", err)
		}
		return core.URefKey(core.URef{Address: d, Rights: parseRights(k.URefRights)}), nil
	default:
		return core.Key{}, fmt.Errorf("key: unknown tag %q", k.Tag)
	}
}

func keyToWire(k core.Key) wireKey {
	switch k.Tag {
	case core.KeyTagAccount:
		return wireKey{Tag: "account", Account: k.Account.Hex()}
	case core.KeyTagHash:
		return wireKey{Tag: "hash", Hash: k.Hash.String()}
	case core.KeyTagURef:
		return wireKey{Tag: "uref", URefAddr: k.URef.Address.String(), URefRights: k.URef.Rights.String()}
	default:
		return wireKey{Tag: "invalid"}
	}
}

func parseRights(s string) core.AccessRights {
	var r core.AccessRights
	for _, c := range s {
		switch c {
		case 'R':
			r |= core.AccessRead
		case 'W':
			r |= core.AccessWrite
		case 'A':
			r |= core.AccessAdd
		}
	}
	return r
}

// wireValue is the JSON shape of a core.Value, supporting the scalar
// variants a caller of this illustrative transport plausibly needs to send
// or inspect directly: named-keys, account and contract values stay
// internal to deploy execution and are not exchanged over this API.
type wireValue struct {
	Tag       string `json:"tag"`
	Int32     int32  `json:"int32,omitempty"`
	UInt64    uint64 `json:"uint64,omitempty"`
	Big       string `json:"big,omitempty"` // decimal string for uint128/256/512
	ByteArray string `json:"byte_array,omitempty"` // hex
	String    string `json:"string,omitempty"`
}

func (v wireValue) toCore() (core.Value, error) {
	switch v.Tag {
	case "unit":
		return core.UnitValue(), nil
	case "int32":
		return core.Int32Value(v.Int32), nil
	case "uint64":
		return core.UInt64Value(v.UInt64), nil
	case "uint128":
		n, ok := new(big.Int).SetString(v.Big, 10)
		if !ok {
			return core.Value{}, fmt.Errorf("value: invalid uint128 %q", v.Big)
		}
		return core.UInt128Value(n), nil
	case "uint256":
		n, overflow := uint256.FromDecimal(v.Big)
		if overflow != nil {
			return core.Value{}, fmt.Errorf("value: invalid uint256 %q", v.Big)
		}
		return core.UInt256Value(n), nil
	case "uint512":
		n, ok := new(big.Int).SetString(v.Big, 10)
		if !ok {
			return core.Value{}, fmt.Errorf("value: invalid uint512 %q", v.Big)
		}
		return core.UInt512Value(n), nil
	case "bytearray":
		b, err := hex.DecodeString(v.ByteArray)
		if err != nil {
			return core.Value{}, fmt.Errorf("value: bytearray: %w", err)
		}
		return core.ByteArrayValue(b), nil
	case "string":
		return core.StringValue(v.String), nil
	default:
		return core.Value{}, fmt.Errorf("value: unsupported tag %q over this transport", v.Tag)
	}
}

func valueToWire(v core.Value) wireValue {
	switch v.Tag {
	case core.ValueTagUnit:
		return wireValue{Tag: "unit"}
	case core.ValueTagInt32:
		return wireValue{Tag: "int32", Int32: v.Int32}
	case core.ValueTagUInt64:
		return wireValue{Tag: "uint64", UInt64: v.UInt64}
	case core.ValueTagUInt128:
		return wireValue{Tag: "uint128", Big: v.UInt128.String()}
	case core.ValueTagUInt256:
		return wireValue{Tag: "uint256", Big: v.UInt256.String()}
	case core.ValueTagUInt512:
		return wireValue{Tag: "uint512", Big: v.UInt512.String()}
	case core.ValueTagByteArray:
		return wireValue{Tag: "bytearray", ByteArray: hex.EncodeToString(v.ByteArray)}
	case core.ValueTagString:
		return wireValue{Tag: "string", String: v.String}
	default:
		return wireValue{Tag: "opaque"}
	}
}

// wireDeploy is the JSON shape of a core.Deploy submitted in an execute
// request; programs and arguments travel as base64 via encoding/json's
// default []byte handling.
type wireDeploy struct {
	Account        string   `json:"account"`
	PaymentProgram []byte   `json:"payment_program"`
	PaymentArgs    [][]byte `json:"payment_args"`
	SessionProgram []byte   `json:"session_program"`
	SessionArgs    [][]byte `json:"session_args"`
	GasPrice       uint64   `json:"gas_price"`
	CorrelationID  string   `json:"correlation_id,omitempty"`
}

func (d wireDeploy) toCore() (core.Deploy, error) {
	acct, err := core.AddressFromHex(d.Account)
	if err != nil {
		return core.Deploy{}, fmt.Errorf("deploy: account: %w", err)
	}
	return core.Deploy{
		Account:        acct,
		PaymentProgram: d.PaymentProgram,
		PaymentArgs:    core.DeployArgs(d.PaymentArgs),
		SessionProgram: d.SessionProgram,
		SessionArgs:    core.DeployArgs(d.SessionArgs),
		GasPrice:       d.GasPrice,
		CorrelationID:  d.CorrelationID,
	}, nil
}

// wireDeployResult mirrors core.DeployResult for the execute response.
type wireDeployResult struct {
	Outcome    string           `json:"outcome"`
	Effects    []wireKeyTransform `json:"effects"`
	GasCost    uint64           `json:"gas_cost"`
	Error      string           `json:"error,omitempty"`
	ReturnData []byte           `json:"return_data,omitempty"`
}

func deployResultToWire(r core.DeployResult) wireDeployResult {
	effects := make([]wireKeyTransform, 0, len(r.Effects))
	for _, e := range r.Effects {
		effects = append(effects, keyTransformToWire(e))
	}
	return wireDeployResult{
		Outcome:    r.Outcome.String(),
		Effects:    effects,
		GasCost:    r.GasCost,
		Error:      r.Error,
		ReturnData: r.ReturnData,
	}
}

// wireKeyTransform is the JSON shape of a core.KeyTransform, used both for
// execute's reported per-deploy effects and for commit's input effect set.
type wireKeyTransform struct {
	Key       wireKey       `json:"key"`
	Transform wireTransform `json:"transform"`
}

func keyTransformToWire(kt core.KeyTransform) wireKeyTransform {
	return wireKeyTransform{Key: keyToWire(kt.Key), Transform: transformToWire(kt.Transform)}
}

func (kt wireKeyTransform) toCore() (core.KeyTransform, error) {
	k, err := kt.Key.toCore()
	if err != nil {
		return core.KeyTransform{}, err
	}
	t, err := kt.Transform.toCore()
	if err != nil {
		return core.KeyTransform{}, err
	}
	return core.KeyTransform{Key: k, Transform: t}, nil
}

// wireTransform is the JSON shape of a core.Transform. RLP carries the same
// transform re-encoded through core.Transform's rlp.Encoder/rlp.Decoder pair
// (transform.go): a compact binary form alongside the field-by-field JSON,
// for callers that persist or replay the raw effect log rather than inspect
// it. toCore prefers RLP when present since it round-trips every variant,
// including the ones (AddKeys, Failure) the JSON shape below doesn't carry
// fields for.
type wireTransform struct {
	Tag        string    `json:"tag"`
	WriteValue wireValue `json:"write_value,omitempty"`
	AddInt32   int32     `json:"add_int32,omitempty"`
	AddUInt64  uint64    `json:"add_uint64,omitempty"`
	AddBig     string    `json:"add_big,omitempty"`
	RLP        []byte    `json:"rlp,omitempty"`
}

func transformToWire(t core.Transform) wireTransform {
	wt := wireTransform{AddInt32: t.AddInt32, AddUInt64: t.AddUInt64}
	if enc, err := rlp.EncodeToBytes(t); err == nil {
		wt.RLP = enc
	}
	switch t.Tag {
	case core.TransformIdentity:
		wt.Tag = "identity"
	case core.TransformWrite:
		wt.Tag = "write"
		wt.WriteValue = valueToWire(t.WriteValue)
	case core.TransformAddInt32:
		wt.Tag = "add_int32"
	case core.TransformAddUInt64:
		wt.Tag = "add_uint64"
	case core.TransformAddUInt128:
		wt.Tag = "add_uint128"
		wt.AddBig = t.AddUInt128.String()
	case core.TransformAddUInt256:
		wt.Tag = "add_uint256"
		wt.AddBig = t.AddUInt256.String()
	case core.TransformAddUInt512:
		wt.Tag = "add_uint512"
		wt.AddBig = t.AddUInt512.String()
	case core.TransformFailure:
		wt.Tag = "failure"
	default:
		wt.Tag = "unknown"
	}
	return wt
}

func (wt wireTransform) toCore() (core.Transform, error) {
	if len(wt.RLP) > 0 {
		var t core.Transform
		if err := rlp.DecodeBytes(wt.RLP, &t); err != nil {
			return core.Transform{}, fmt.Errorf("transform: rlp: %w", err)
		}
		return t, nil
	}
	switch wt.Tag {
	case "identity":
		return core.IdentityTransform(), nil
	case "write":
		v, err := wt.WriteValue.toCore()
		if err != nil {
			return core.Transform{}, err
		}
		return core.WriteTransform(v), nil
	case "add_int32":
		return core.AddInt32Transform(wt.AddInt32), nil
	case "add_uint64":
		return core.AddUInt64Transform(wt.AddUInt64), nil
	case "add_uint128":
		n, ok := new(big.Int).SetString(wt.AddBig, 10)
		if !ok {
			return core.Transform{}, fmt.Errorf("transform: invalid add_uint128 %q", wt.AddBig)
		}
		return core.AddUInt128Transform(n), nil
	case "add_uint256":
		n, overflow := uint256.FromDecimal(wt.AddBig)
		if overflow != nil {
			return core.Transform{}, fmt.Errorf("transform: invalid add_uint256 %q", wt.AddBig)
		}
		return core.AddUInt256Transform(n), nil
	case "add_uint512":
		n, ok := new(big.Int).SetString(wt.AddBig, 10)
		if !ok {
			return core.Transform{}, fmt.Errorf("transform: invalid add_uint512 %q", wt.AddBig)
		}
		return core.AddUInt512Transform(n), nil
	default:
		return core.Transform{}, fmt.Errorf("transform: unsupported tag %q over this transport", wt.Tag)
	}
}

// wireGenesisAccount mirrors core.GenesisAccount.
type wireGenesisAccount struct {
	Address string `json:"address"`
	Balance string `json:"balance"` // decimal string
}

// wireInitialBond mirrors core.InitialBond.
type wireInitialBond struct {
	Validator string `json:"validator"`
	Amount    string `json:"amount"` // decimal string
}

// wireGenesisRequest is the POST /genesis body.
type wireGenesisRequest struct {
	ProtocolVersion wireProtocolVersion  `json:"protocol_version"`
	Accounts        []wireGenesisAccount `json:"accounts"`
	MintCode        []byte               `json:"mint_code"`
	POSCode         []byte               `json:"pos_code"`
	InitialBonds    []wireInitialBond    `json:"initial_bonds"`
}

type wireProtocolVersion struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
	Patch uint32 `json:"patch"`
}

func (v wireProtocolVersion) toCore() core.ProtocolVersion {
	return core.NewProtocolVersion(v.Major, v.Minor, v.Patch)
}

func protocolVersionToWire(v core.ProtocolVersion) wireProtocolVersion {
	return wireProtocolVersion{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
}

func (req wireGenesisRequest) toCore() (core.GenesisConfig, error) {
	accounts := make([]core.GenesisAccount, 0, len(req.Accounts))
	for _, a := range req.Accounts {
		addr, err := core.AddressFromHex(a.Address)
		if err != nil {
			return core.GenesisConfig{}, fmt.Errorf("genesis: account: %w", err)
		}
		bal, ok := new(big.Int).SetString(a.Balance, 10)
		if !ok {
			return core.GenesisConfig{}, fmt.Errorf("genesis: invalid balance %q", a.Balance)
		}
		accounts = append(accounts, core.GenesisAccount{Address: addr, Balance: bal})
	}
	bonds := make([]core.InitialBond, 0, len(req.InitialBonds))
	for _, b := range req.InitialBonds {
		addr, err := core.AddressFromHex(b.Validator)
		if err != nil {
			return core.GenesisConfig{}, fmt.Errorf("genesis: bond validator: %w", err)
		}
		amt, ok := new(big.Int).SetString(b.Amount, 10)
		if !ok {
			return core.GenesisConfig{}, fmt.Errorf("genesis: invalid bond amount %q", b.Amount)
		}
		bonds = append(bonds, core.InitialBond{Validator: addr, Amount: amt})
	}
	return core.GenesisConfig{
		ProtocolVersion: req.ProtocolVersion.toCore(),
		Accounts:        accounts,
		WasmCosts:       core.DefaultWasmCosts(),
		MintCode:        req.MintCode,
		POSCode:         req.POSCode,
		InitialBonds:    bonds,
	}, nil
}

// wireUpgradeRequest is the POST /upgrade body.
type wireUpgradeRequest struct {
	PreState           string              `json:"pre_state"` // hex digest
	NewProtocolVersion wireProtocolVersion `json:"new_protocol_version"`
}

func (req wireUpgradeRequest) toCore() (core.UpgradeConfig, error) {
	pre, err := core.DigestFromHex(req.PreState)
	if err != nil {
		return core.UpgradeConfig{}, fmt.Errorf("upgrade: pre_state: %w", err)
	}
	return core.UpgradeConfig{
		PreState:          pre,
		NewProtocolVersion: req.NewProtocolVersion.toCore(),
		NewWasmCosts:      core.DefaultWasmCosts(),
	}, nil
}

// wireExecuteRequest is the POST /execute body.
type wireExecuteRequest struct {
	ParentStateDigest string              `json:"parent_state_digest"`
	BlockTime         uint64              `json:"block_time"`
	ProtocolVersion   wireProtocolVersion `json:"protocol_version"`
	Deploys           []wireDeploy        `json:"deploys"`
}

func (req wireExecuteRequest) toCore() (core.ExecuteRequest, error) {
	parent, err := core.DigestFromHex(req.ParentStateDigest)
	if err != nil {
		return core.ExecuteRequest{}, fmt.Errorf("execute: parent_state_digest: %w", err)
	}
	deploys := make([]core.Deploy, 0, len(req.Deploys))
	for _, d := range req.Deploys {
		cd, err := d.toCore()
		if err != nil {
			return core.ExecuteRequest{}, err
		}
		deploys = append(deploys, cd)
	}
	return core.ExecuteRequest{
		ParentStateDigest: parent,
		BlockTime:         req.BlockTime,
		ProtocolVersion:   req.ProtocolVersion.toCore(),
		Deploys:           deploys,
	}, nil
}

// wireCommitRequest is the POST /commit body.
type wireCommitRequest struct {
	ProtocolVersion wireProtocolVersion `json:"protocol_version"`
	PreStateDigest  string              `json:"pre_state_digest"`
	Effects         []wireKeyTransform  `json:"effects"`
}

func (req wireCommitRequest) toCore() (core.CommitRequest, error) {
	pre, err := core.DigestFromHex(req.PreStateDigest)
	if err != nil {
		return core.CommitRequest{}, fmt.Errorf("commit: pre_state_digest: %w", err)
	}
	effects := make([]core.KeyTransform, 0, len(req.Effects))
	for _, e := range req.Effects {
		ce, err := e.toCore()
		if err != nil {
			return core.CommitRequest{}, err
		}
		effects = append(effects, ce)
	}
	return core.CommitRequest{
		ProtocolVersion: req.ProtocolVersion.toCore(),
		PreStateDigest:  pre,
		Effects:         effects,
	}, nil
}

// wireQueryRequest is the POST /query body.
type wireQueryRequest struct {
	StateDigest string   `json:"state_digest"`
	BaseKey     wireKey  `json:"base_key"`
	Path        []string `json:"path"`
}

func (req wireQueryRequest) toCore() (core.QueryRequest, error) {
	digest, err := core.DigestFromHex(req.StateDigest)
	if err != nil {
		return core.QueryRequest{}, fmt.Errorf("query: state_digest: %w", err)
	}
	key, err := req.BaseKey.toCore()
	if err != nil {
		return core.QueryRequest{}, err
	}
	return core.QueryRequest{StateDigest: digest, BaseKey: key, Path: req.Path}, nil
}

// wireBondedValidator mirrors core.BondedValidator for the commit response.
type wireBondedValidator struct {
	Validator string `json:"validator"`
	Amount    string `json:"amount"`
}

func bondedValidatorsToWire(vs []core.BondedValidator) []wireBondedValidator {
	out := make([]wireBondedValidator, 0, len(vs))
	for _, v := range vs {
		out = append(out, wireBondedValidator{Validator: v.Validator.Hex(), Amount: v.Amount.String()})
	}
	return out
}
