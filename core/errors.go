package core

import "errors"

// Sentinel errors for the engine's operations, matched against with
// errors.Is by callers that need to distinguish failure categories.
var (
	ErrKeyNotFound          = errors.New("core: key not found")
	ErrAccessDenied         = errors.New("core: access denied for key")
	ErrTypeMismatch         = errors.New("core: value type mismatch for add")
	ErrDigestNotFound       = errors.New("core: state digest not found")
	ErrInvalidProtocolVersion = errors.New("core: invalid protocol version")
	ErrOutOfGas             = errors.New("core: out of gas")
	ErrInvalidWasm          = errors.New("core: invalid wasm module")
	ErrRevert               = errors.New("core: execution reverted")
	ErrInsufficientBalance  = errors.New("core: insufficient purse balance")
	ErrContractNotFound     = errors.New("core: contract not found")
	ErrNamedKeyNotFound     = errors.New("core: named key not found")
	ErrForgedReference      = errors.New("core: uref was never granted to this frame")
)
