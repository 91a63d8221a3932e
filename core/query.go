package core

import "fmt"

// QueryResult is the outcome of resolving a dotted path from a base Key.
type QueryResult struct {
	Found          bool
	Value          Value
	PrefixConsumed int // number of path steps successfully resolved when not found
}

// Query resolves path through an account/contract's named_keys map, or
// through an inline NamedKeys Value, starting at baseKey. Each step looks up
// the next path segment as a name in the current Value's named-keys table,
// replacing the current Value with whatever that name resolves to.
func Query(view *StateView, baseKey Key, path []string) (QueryResult, error) {
	tc := NewTrackingCopy(view)
	return tc.queryPath(baseKey, path)
}

func (tc *TrackingCopy) queryPath(baseKey Key, path []string) (QueryResult, error) {
	cur, err := tc.Read(baseKey)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query: base key: %w", err)
	}

	for i, step := range path {
		named, ok := namedKeysOf(cur)
		if !ok {
			return QueryResult{PrefixConsumed: i}, nil
		}
		next, ok := named[step]
		if !ok {
			return QueryResult{PrefixConsumed: i}, nil
		}
		v, err := tc.Read(next)
		if err != nil {
			return QueryResult{PrefixConsumed: i}, nil
		}
		cur = v
	}

	return QueryResult{Found: true, Value: cur}, nil
}

// namedKeysOf extracts the named-keys table from a Value, covering every
// variant path steps may traverse through: Account, Contract, or an inline
// NamedKeys map.
func namedKeysOf(v Value) (map[string]Key, bool) {
	switch v.Tag {
	case ValueTagAccount:
		return v.Account.NamedKeys, true
	case ValueTagContract:
		return v.Contract.NamedKeys, true
	case ValueTagNamedKeys:
		return v.NamedKeys, true
	default:
		return nil, false
	}
}
