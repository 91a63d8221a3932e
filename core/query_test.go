package core

import "testing"

func TestQueryResolvesNestedNamedKeys(t *testing.T) {
	gs := newTestGlobalState(t)
	tc := NewTrackingCopy(gs.CheckoutPreGenesis())

	leaf := HashKey(HashBytes([]byte("leaf")))
	tc.Write(leaf, StringValue("hello"))

	mid := HashKey(HashBytes([]byte("mid")))
	tc.Write(mid, NamedKeysValue(map[string]Key{"leaf": leaf}))

	root := HashKey(HashBytes([]byte("root")))
	tc.Write(root, NamedKeysValue(map[string]Key{"mid": mid}))

	res, err := tc.queryPath(root, []string{"mid", "leaf"})
	if err != nil {
		t.Fatalf("queryPath: %v", err)
	}
	if !res.Found {
		t.Fatalf("expected path to resolve, consumed %d", res.PrefixConsumed)
	}
	if res.Value.Tag != ValueTagString || res.Value.String != "hello" {
		t.Fatalf("unexpected resolved value: %+v", res.Value)
	}
}

func TestQueryStopsAtMissingSegment(t *testing.T) {
	gs := newTestGlobalState(t)
	tc := NewTrackingCopy(gs.CheckoutPreGenesis())

	root := HashKey(HashBytes([]byte("root2")))
	tc.Write(root, NamedKeysValue(map[string]Key{"a": HashKey(HashBytes([]byte("a")))}))

	res, err := tc.queryPath(root, []string{"nonexistent"})
	if err != nil {
		t.Fatalf("queryPath: %v", err)
	}
	if res.Found {
		t.Fatalf("expected path resolution to stop at missing segment")
	}
	if res.PrefixConsumed != 0 {
		t.Fatalf("expected 0 segments consumed, got %d", res.PrefixConsumed)
	}
}

func TestQueryBaseKeyNotFound(t *testing.T) {
	gs := newTestGlobalState(t)
	view := gs.CheckoutPreGenesis()
	if _, err := Query(view, HashKey(HashBytes([]byte("missing"))), nil); err == nil {
		t.Fatalf("expected error for missing base key")
	}
}
