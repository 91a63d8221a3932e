package core

import (
	"errors"
	"fmt"
)

// TrackingCopy is the per-deploy read/write journal described by the
// execution engine's tracking-copy component: a read cache layered over a
// StateView plus an ordered log of Transforms produced by write/add calls.
// It is the Go analogue of the teacher's memState read-through wrapper in
// virtual_machine.go, narrowed to the spec's read/write/add/query contract.
type TrackingCopy struct {
	view   *StateView
	cache  map[string]Value
	effects []KeyTransform
	parent *TrackingCopy // set for a nested copy created by Child
}

// NewTrackingCopy creates a root TrackingCopy reading through the given
// state view.
func NewTrackingCopy(view *StateView) *TrackingCopy {
	return &TrackingCopy{view: view, cache: make(map[string]Value)}
}

// Child creates a nested TrackingCopy layered over tc (the deploy pipeline
// runs its session and finalization phases in one each). Its effects are
// invisible to the parent until Merge is called.
func (tc *TrackingCopy) Child() *TrackingCopy {
	return &TrackingCopy{view: tc.view, cache: make(map[string]Value), parent: tc}
}

// Read resolves a Key, preferring the local cache (which reflects any
// writes/adds performed so far in this tracking copy) and falling back to
// the underlying state view.
func (tc *TrackingCopy) Read(k Key) (Value, error) {
	dbk := k.dbKey()
	if v, ok := tc.cache[dbk]; ok {
		return v, nil
	}
	if tc.parent != nil {
		if v, err := tc.parent.Read(k); err == nil {
			return v, nil
		}
	}
	raw, ok := tc.view.Read(k)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrKeyNotFound, k)
	}
	v, err := DecodeValue(raw)
	if err != nil {
		return Value{}, err
	}
	tc.cache[dbk] = v
	tc.effects = append(tc.effects, KeyTransform{Key: k, Transform: IdentityTransform()})
	return v, nil
}

// Write records a Write transform for k and updates the read cache so
// subsequent reads within the same tracking copy observe it immediately.
func (tc *TrackingCopy) Write(k Key, v Value) {
	dbk := k.dbKey()
	tc.cache[dbk] = v
	tc.effects = append(tc.effects, KeyTransform{Key: k, Transform: WriteTransform(v)})
}

// Add records an Add* transform for k, applying it to the cached value (or
// the key's current stored value, or the type's zero) so later reads in the
// same tracking copy see the accumulated result.
func (tc *TrackingCopy) Add(k Key, t Transform) error {
	cur, err := tc.Read(k)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			cur = zeroValueFor(t.Tag)
		} else {
			return err
		}
	}
	applied, err := applyAddToValue(cur, t)
	if err != nil {
		return err
	}
	dbk := k.dbKey()
	tc.cache[dbk] = applied
	tc.effects = append(tc.effects, KeyTransform{Key: k, Transform: t})
	return nil
}

// Query resolves a Key directly, without going through the named-keys
// dotted-path machinery in query.go; callers needing name resolution should
// use Query in query.go instead.
func (tc *TrackingCopy) Query(k Key) (Value, error) { return tc.Read(k) }

// Effects returns the raw ordered transform log accumulated in this
// tracking copy, with no deduplication or merging: commit ordering depends
// on the exact sequence recorded, and merging would silently discard the
// Identity read-markers that let concurrent deploys touching the same key
// be detected at commit-merge time.
func (tc *TrackingCopy) Effects() ([]KeyTransform, error) {
	out := make([]KeyTransform, len(tc.effects))
	copy(out, tc.effects)
	return out, nil
}

// Merge folds a child tracking copy's effects and cached values into tc.
// Nothing in the engine calls it; call_contract does not create or merge a
// child copy.
func (tc *TrackingCopy) Merge(child *TrackingCopy) {
	tc.effects = append(tc.effects, child.effects...)
	for k, v := range child.cache {
		tc.cache[k] = v
	}
}
