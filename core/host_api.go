// Host API surface exposed to wasm guests under the "env" import namespace,
// descended from the teacher's registerHost (host_consume_gas/host_read/
// host_write/host_log) but generalized to the full fixed surface: get_arg,
// ret, revert, call_contract, new_uref, read, write, add, put_key, get_key,
// remove_key, store_function_at_hash, upgrade_contract_at_uref,
// create_purse, transfer_from_purse_to_purse, get_pos, get_mint, main_purse.
package core

import (
	"errors"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// hostCtx is the state threaded through every host function call for one
// Executor.Run invocation: the wasm linear memory, the execution context,
// and the most recent error a host call produced (wasmer swallows Go errors
// returned from import funcs that aren't traps, so hostErr is how the
// Executor observes an out-of-gas failure after _start returns). Run acts on
// hostErr only for ErrOutOfGas; any other host error, including
// ErrForgedReference and ErrAccessDenied, reaches the guest only as a -1
// return and does not end the run.
type hostCtx struct {
	mem     *wasmer.Memory
	ec      *ExecutionContext
	hostErr error
}

func (h *hostCtx) readMem(ptr, size int32) []byte {
	data := h.mem.Data()
	out := make([]byte, size)
	copy(out, data[ptr:ptr+size])
	return out
}

func (h *hostCtx) writeMem(ptr int32, data []byte) {
	copy(h.mem.Data()[ptr:], data)
}

func (h *hostCtx) charge(fn HostFunction) bool {
	cost := WasmCostsFor(h.ec.ProtocolVersion).HostCallCost(fn)
	if err := h.ec.GasMeter.Consume(cost); err != nil {
		h.hostErr = err
		return false
	}
	return true
}

func i32fn(store *wasmer.Store, params, results int, fn func(args []wasmer.Value) ([]wasmer.Value, error)) *wasmer.Function {
	p := make([]wasmer.ValueKind, params)
	for i := range p {
		p[i] = wasmer.I32
	}
	r := make([]wasmer.ValueKind, results)
	for i := range r {
		r[i] = wasmer.I32
	}
	return wasmer.NewFunction(store, wasmer.NewFunctionType(wasmer.NewValueTypes(p...), wasmer.NewValueTypes(r...)), fn)
}

// registerHostImports builds the wasmer ImportObject exposing the fixed
// host API surface under the "env" namespace.
func registerHostImports(store *wasmer.Store, h *hostCtx) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	// get_arg(index, dstPtr) -> len|-1
	getArg := i32fn(store, 2, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostGetArg) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		idx, dst := int(args[0].I32()), args[1].I32()
		if idx < 0 || idx >= len(h.ec.Args) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		arg := h.ec.Args[idx]
		h.writeMem(dst, arg)
		return []wasmer.Value{wasmer.NewI32(int32(len(arg)))}, nil
	})

	// ret(ptr, len)
	ret := i32fn(store, 2, 0, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostRet) {
			return nil, nil
		}
		ptr, ln := args[0].I32(), args[1].I32()
		h.ec.returnData = h.readMem(ptr, ln)
		return nil, nil
	})

	// revert(ptr, len)
	revert := i32fn(store, 2, 0, func(args []wasmer.Value) ([]wasmer.Value, error) {
		h.charge(HostRevert)
		ptr, ln := args[0].I32(), args[1].I32()
		h.ec.reverted = true
		h.ec.returnData = h.readMem(ptr, ln)
		return nil, errors.New("revert")
	})

	// read(keyPtr, keyLen, dstPtr) -> len|-1
	read := i32fn(store, 3, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostRead) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		kPtr, kLen, dst := args[0].I32(), args[1].I32(), args[2].I32()
		key, err := decodeHostKey(h.readMem(kPtr, kLen))
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if err := checkAccess(h.ec, key, AccessRead); err != nil {
			h.hostErr = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		v, err := h.ec.TrackingCopy.Read(key)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		enc, _ := EncodeValue(v)
		h.writeMem(dst, enc)
		return []wasmer.Value{wasmer.NewI32(int32(len(enc)))}, nil
	})

	// write(keyPtr, keyLen, valPtr, valLen) -> i32
	write := i32fn(store, 4, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostWrite) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		kPtr, kLen, vPtr, vLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		key, err := decodeHostKey(h.readMem(kPtr, kLen))
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if err := checkAccess(h.ec, key, AccessWrite); err != nil {
			h.hostErr = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		v, err := DecodeValue(h.readMem(vPtr, vLen))
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		h.ec.TrackingCopy.Write(key, v)
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	// add(keyPtr, keyLen, valPtr, valLen) -> i32
	add := i32fn(store, 4, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostAdd) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		kPtr, kLen, vPtr, vLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		key, err := decodeHostKey(h.readMem(kPtr, kLen))
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if err := checkAccess(h.ec, key, AccessAdd); err != nil {
			h.hostErr = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		v, err := DecodeValue(h.readMem(vPtr, vLen))
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		t, err := valueToAddTransform(v)
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if err := h.ec.TrackingCopy.Add(key, t); err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	// new_uref(initPtr, initLen, dstPtr) -> len|-1; writes the newly minted
	// URef's bytes to dstPtr.
	newURef := i32fn(store, 3, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostNewURef) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		vPtr, vLen, dst := args[0].I32(), args[1].I32(), args[2].I32()
		v, err := DecodeValue(h.readMem(vPtr, vLen))
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		u := URef{Address: HashBytes(append(h.ec.Caller[:], []byte(h.ec.CorrelationID)...)), Rights: AccessFull}
		h.ec.TrackingCopy.Write(URefKey(u), v)
		h.ec.grant(u.Address, u.Rights)
		b := u.Bytes()
		h.writeMem(dst, b)
		return []wasmer.Value{wasmer.NewI32(int32(len(b)))}, nil
	})

	// put_key(namePtr, nameLen, keyPtr, keyLen) -> i32
	putKey := i32fn(store, 4, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostPutKey) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		nPtr, nLen, kPtr, kLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		name := string(h.readMem(nPtr, nLen))
		key, err := decodeHostKey(h.readMem(kPtr, kLen))
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if key.Tag == KeyTagURef {
			granted, ok := h.ec.grantedURefs[key.URef.Address]
			if !ok {
				h.hostErr = ErrForgedReference
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			if key.URef.Rights&^granted != 0 {
				h.hostErr = ErrAccessDenied
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
		}
		if err := putNamedKey(h.ec, name, key); err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	// get_key(namePtr, nameLen, dstPtr) -> len|-1
	getKey := i32fn(store, 3, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostGetKey) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		nPtr, nLen, dst := args[0].I32(), args[1].I32(), args[2].I32()
		name := string(h.readMem(nPtr, nLen))
		key, ok := getNamedKey(h.ec, name)
		if !ok {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		b := key.Bytes()
		h.writeMem(dst, b)
		return []wasmer.Value{wasmer.NewI32(int32(len(b)))}, nil
	})

	// remove_key(namePtr, nameLen) -> i32
	removeKey := i32fn(store, 2, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostRemoveKey) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		nPtr, nLen := args[0].I32(), args[1].I32()
		name := string(h.readMem(nPtr, nLen))
		if err := removeNamedKey(h.ec, name); err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	// store_function_at_hash(codePtr, codeLen, dstPtr) -> len|-1
	storeFn := i32fn(store, 3, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostStoreFunctionAtHash) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		cPtr, cLen, dst := args[0].I32(), args[1].I32(), args[2].I32()
		code := h.readMem(cPtr, cLen)
		digest := HashBytes(code)
		h.ec.TrackingCopy.Write(HashKey(digest), Value{Tag: ValueTagContract, Contract: StoredContract{
			Bytecode: code, ProtocolVersion: h.ec.ProtocolVersion, NamedKeys: map[string]Key{},
		}})
		h.writeMem(dst, digest[:])
		return []wasmer.Value{wasmer.NewI32(int32(len(digest)))}, nil
	})

	// upgrade_contract_at_uref(urefPtr, urefLen, codePtr, codeLen) -> i32
	upgradeFn := i32fn(store, 4, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostUpgradeContractAtURef) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		uPtr, uLen, cPtr, cLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
		key, err := decodeHostKey(h.readMem(uPtr, uLen))
		if err != nil || key.Tag != KeyTagURef {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if err := checkAccess(h.ec, key, AccessWrite); err != nil {
			h.hostErr = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		existing, err := h.ec.TrackingCopy.Read(key)
		namedKeys := map[string]Key{}
		if err == nil && existing.Tag == ValueTagContract {
			namedKeys = existing.Contract.NamedKeys
		}
		code := h.readMem(cPtr, cLen)
		h.ec.TrackingCopy.Write(key, Value{Tag: ValueTagContract, Contract: StoredContract{
			Bytecode: code, ProtocolVersion: h.ec.ProtocolVersion, NamedKeys: namedKeys,
		}})
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	// create_purse(dstPtr) -> len|-1
	createPurse := i32fn(store, 1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostCreatePurse) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		dst := args[0].I32()
		u := h.ec.mint.CreatePurse(h.ec.TrackingCopy)
		h.ec.grant(u.Address, AccessFull)
		b := u.Bytes()
		h.writeMem(dst, b)
		return []wasmer.Value{wasmer.NewI32(int32(len(b)))}, nil
	})

	// transfer_from_purse_to_purse(fromPtr, fromLen, toPtr, toLen, amountPtr, amountLen) -> i32
	transferPurse := i32fn(store, 6, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostTransferPurseToPurse) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		fPtr, fLen, tPtr, tLen, aPtr, aLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32(), args[4].I32(), args[5].I32()
		from, err := decodeHostURef(h.readMem(fPtr, fLen))
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		to, err := decodeHostURef(h.readMem(tPtr, tLen))
		if err != nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if err := checkAccess(h.ec, URefKey(from), AccessWrite); err != nil {
			h.hostErr = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if err := checkAccess(h.ec, URefKey(to), AccessAdd); err != nil {
			h.hostErr = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		amtVal, err := DecodeValue(h.readMem(aPtr, aLen))
		if err != nil || amtVal.UInt512 == nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if err := h.ec.mint.Transfer(h.ec.TrackingCopy, from, to, amtVal.UInt512); err != nil {
			h.hostErr = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		return []wasmer.Value{wasmer.NewI32(0)}, nil
	})

	// get_pos(dstPtr) -> len
	getPOS := i32fn(store, 1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostGetPOS) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		dst := args[0].I32()
		digest := HashBytes([]byte("system-contract:pos"))
		h.writeMem(dst, digest[:])
		return []wasmer.Value{wasmer.NewI32(int32(len(digest)))}, nil
	})

	// get_mint(dstPtr) -> len
	getMint := i32fn(store, 1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostGetMint) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		dst := args[0].I32()
		digest := HashBytes([]byte("system-contract:mint"))
		h.writeMem(dst, digest[:])
		return []wasmer.Value{wasmer.NewI32(int32(len(digest)))}, nil
	})

	// main_purse(dstPtr) -> len|-1
	mainPurse := i32fn(store, 1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostMainPurse) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		dst := args[0].I32()
		acct, err := h.ec.TrackingCopy.Read(AccountKey(h.ec.Caller))
		if err != nil || acct.Tag != ValueTagAccount {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		b := acct.Account.MainPurse.Bytes()
		h.writeMem(dst, b)
		return []wasmer.Value{wasmer.NewI32(int32(len(b)))}, nil
	})

	// call_contract(hashPtr, hashLen, argsPtr, argsLen, dstPtr) -> len|-1
	// Delegates to ExecutionContext.callContract (set through
	// WithCallContract) and returns -1 when no callback is attached.
	callContract := i32fn(store, 5, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if !h.charge(HostCallContract) {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		if h.ec.callContract == nil {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		hPtr, hLen, aPtr, aLen, dst := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32(), args[4].I32()
		hashBytes := h.readMem(hPtr, hLen)
		if len(hashBytes) != 32 {
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		var digest StateDigest
		copy(digest[:], hashBytes)
		out, err := h.ec.callContract(digest, h.readMem(aPtr, aLen))
		if err != nil {
			h.hostErr = err
			return []wasmer.Value{wasmer.NewI32(-1)}, nil
		}
		h.writeMem(dst, out)
		return []wasmer.Value{wasmer.NewI32(int32(len(out)))}, nil
	})

	imports.Register("env", map[string]wasmer.IntoExtern{
		"get_arg":                      getArg,
		"ret":                          ret,
		"revert":                       revert,
		"call_contract":                callContract,
		"new_uref":                     newURef,
		"read":                         read,
		"write":                        write,
		"add":                          add,
		"put_key":                      putKey,
		"get_key":                      getKey,
		"remove_key":                   removeKey,
		"store_function_at_hash":       storeFn,
		"upgrade_contract_at_uref":     upgradeFn,
		"create_purse":                 createPurse,
		"transfer_from_purse_to_purse": transferPurse,
		"get_pos":                      getPOS,
		"get_mint":                     getMint,
		"main_purse":                   mainPurse,
	})

	return imports
}

// checkAccess reports whether ec's frame may exercise want against k. Account
// and Hash keys are not capability-checked (they're addressed by identity),
// so every right is allowed on them. A URef key is unforgeable: its address must appear in the
// frame's grantedURefs table (ErrForgedReference if not), and the rights it
// may actually exercise are bounded by the intersection of what the guest
// claims on the wire and what was actually granted — a guest cannot inflate
// its own rights byte to exceed what it was given.
func checkAccess(ec *ExecutionContext, k Key, want AccessRights) error {
	if k.Tag != KeyTagURef {
		return nil
	}
	granted, ok := ec.grantedURefs[k.URef.Address]
	if !ok {
		return ErrForgedReference
	}
	effective := k.URef.Rights & granted
	switch want {
	case AccessRead:
		if !effective.CanRead() {
			return ErrAccessDenied
		}
	case AccessWrite:
		if !effective.CanWrite() {
			return ErrAccessDenied
		}
	case AccessAdd:
		if !effective.CanAdd() {
			return ErrAccessDenied
		}
	default:
		return ErrAccessDenied
	}
	return nil
}

// decodeHostKey parses a guest-supplied key off wasm linear memory, per §6's
// wire format (KeyFromBytes). It only parses the bytes; checkAccess is what
// enforces that a URef's claimed rights were actually granted to the frame.
func decodeHostKey(b []byte) (Key, error) {
	return KeyFromBytes(b)
}

// decodeHostURef parses a guest-supplied bare URef (address + rights byte)
// off wasm linear memory, e.g. for transfer_from_purse_to_purse's from/to
// arguments.
func decodeHostURef(b []byte) (URef, error) {
	return URefFromBytes(b)
}

func valueToAddTransform(v Value) (Transform, error) {
	switch v.Tag {
	case ValueTagInt32:
		return AddInt32Transform(v.Int32), nil
	case ValueTagUInt64:
		return AddUInt64Transform(v.UInt64), nil
	case ValueTagUInt128:
		return AddUInt128Transform(v.UInt128), nil
	case ValueTagUInt256:
		return AddUInt256Transform(v.UInt256), nil
	case ValueTagUInt512:
		return AddUInt512Transform(v.UInt512), nil
	case ValueTagNamedKeys:
		return AddKeysTransform(v.NamedKeys), nil
	default:
		return Transform{}, fmt.Errorf("core: value tag %d is not addable", v.Tag)
	}
}

func putNamedKey(ec *ExecutionContext, name string, key Key) error {
	acct, err := ec.TrackingCopy.Read(ec.ContractKey)
	if err != nil {
		return err
	}
	switch acct.Tag {
	case ValueTagAccount:
		if acct.Account.NamedKeys == nil {
			acct.Account.NamedKeys = map[string]Key{}
		}
		acct.Account.NamedKeys[name] = key
	case ValueTagContract:
		if acct.Contract.NamedKeys == nil {
			acct.Contract.NamedKeys = map[string]Key{}
		}
		acct.Contract.NamedKeys[name] = key
	default:
		return fmt.Errorf("core: context key is not an account or contract")
	}
	ec.TrackingCopy.Write(ec.ContractKey, acct)
	return nil
}

func getNamedKey(ec *ExecutionContext, name string) (Key, bool) {
	acct, err := ec.TrackingCopy.Read(ec.ContractKey)
	if err != nil {
		return Key{}, false
	}
	switch acct.Tag {
	case ValueTagAccount:
		k, ok := acct.Account.NamedKeys[name]
		return k, ok
	case ValueTagContract:
		k, ok := acct.Contract.NamedKeys[name]
		return k, ok
	default:
		return Key{}, false
	}
}

func removeNamedKey(ec *ExecutionContext, name string) error {
	acct, err := ec.TrackingCopy.Read(ec.ContractKey)
	if err != nil {
		return err
	}
	switch acct.Tag {
	case ValueTagAccount:
		delete(acct.Account.NamedKeys, name)
	case ValueTagContract:
		delete(acct.Contract.NamedKeys, name)
	default:
		return fmt.Errorf("core: context key is not an account or contract")
	}
	ec.TrackingCopy.Write(ec.ContractKey, acct)
	return nil
}
