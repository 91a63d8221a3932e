package core

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// GlobalStateConfig mirrors the teacher's LedgerConfig: a WAL path, a
// snapshot path and interval, and an optional archive for pruned history.
type GlobalStateConfig struct {
	WALPath          string
	SnapshotPath     string
	SnapshotInterval int
	ArchivePath      string
	PruneInterval    int
	SnapshotCacheSize int
}

// commitRecord is the unit persisted to the WAL: a digest transition plus
// the effects that produced it, so the WAL can be replayed into a sequence
// of snapshots on startup exactly as the teacher's Ledger replays blocks.
type commitRecord struct {
	PreDigest  StateDigest
	PostDigest StateDigest
	KV         map[string][]byte // full resulting key/value map for PostDigest
}

// snapshot is one persistent, immutable view of global state. Snapshots
// form a parent chain: committing never mutates an existing snapshot, so a
// StateView checked out at an old digest stays valid after later commits.
type snapshot struct {
	digest StateDigest
	kv     map[string][]byte
	keys   map[string]Key // dbKey -> original Key, for query/iteration
}

// StateView is a read-only handle onto one persistent snapshot of global
// state, returned by GlobalState.Checkout.
type StateView struct {
	gs  *GlobalState
	snp *snapshot
}

// CommitResult reports the outcome of a commit.
type CommitResult struct {
	PostDigest StateDigest
}

// GlobalState is the content-addressed key/value store described by the
// execution engine's global state provider: WAL-backed and
// snapshot-checkpointed like the teacher's Ledger, but keyed by Blake2b-256
// digest with persistent (copy-on-write) snapshots instead of one mutable
// map.
type GlobalState struct {
	mu sync.RWMutex

	snapshots  map[StateDigest]*snapshot
	cache      *lru.Cache[StateDigest, *snapshot]
	preGenesis *snapshot

	walFile          *os.File
	snapshotPath     string
	snapshotInterval int
	archivePath      string
	pruneInterval    int
	commitCount      int
}

// NewGlobalState opens (or creates) a GlobalState, replaying any existing
// WAL of commit records, in the style of the teacher's NewLedger.
func NewGlobalState(cfg GlobalStateConfig) (gs *GlobalState, err error) {
	wal, err := os.OpenFile(cfg.WALPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("global_state: open WAL: %w", err)
	}
	defer func() {
		if err != nil {
			_ = wal.Close()
		}
	}()

	cacheSize := cfg.SnapshotCacheSize
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[StateDigest, *snapshot](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("global_state: lru: %w", err)
	}

	gs = &GlobalState{
		snapshots:        map[StateDigest]*snapshot{},
		cache:            cache,
		preGenesis:       &snapshot{kv: map[string][]byte{}, keys: map[string]Key{}},
		walFile:          wal,
		snapshotPath:     cfg.SnapshotPath,
		snapshotInterval: cfg.SnapshotInterval,
		archivePath:      cfg.ArchivePath,
		pruneInterval:    cfg.PruneInterval,
	}

	if cfg.SnapshotPath != "" {
		if f, ferr := os.Open(cfg.SnapshotPath); ferr == nil {
			var persisted struct {
				Snapshots []commitRecord
			}
			derr := json.NewDecoder(f).Decode(&persisted)
			f.Close()
			if derr == nil {
				for _, rec := range persisted.Snapshots {
					gs.applyRecord(rec)
				}
			}
		}
	}

	scanner := bufio.NewScanner(wal)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec commitRecord
		if err = json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("global_state: WAL unmarshal: %w", err)
		}
		gs.applyRecord(rec)
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("global_state: WAL scan: %w", err)
	}
	return gs, nil
}

func (gs *GlobalState) applyRecord(rec commitRecord) {
	snp := &snapshot{digest: rec.PostDigest, kv: rec.KV, keys: map[string]Key{}}
	gs.snapshots[rec.PostDigest] = snp
	gs.commitCount++
}

// Checkout returns a read-only StateView for the given digest. It reports
// false if the digest does not name a known snapshot.
func (gs *GlobalState) Checkout(digest StateDigest) (*StateView, bool) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	if snp, ok := gs.cache.Get(digest); ok {
		return &StateView{gs: gs, snp: snp}, true
	}
	snp, ok := gs.snapshots[digest]
	if !ok {
		return nil, false
	}
	gs.cache.Add(digest, snp)
	return &StateView{gs: gs, snp: snp}, true
}

// KeyTransform pairs a Key with the Transform to apply to it at commit.
type KeyTransform struct {
	Key       Key
	Transform Transform
}

// Commit applies the given effects against the snapshot named by preDigest,
// producing a brand-new persistent snapshot. The parent snapshot (and every
// other previously committed digest) remains valid and checkout-able
// afterwards.
func (gs *GlobalState) Commit(preDigest StateDigest, effects []KeyTransform) (CommitResult, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	parent, ok := gs.snapshots[preDigest]
	if !ok {
		return CommitResult{}, fmt.Errorf("%w: %s", ErrDigestNotFound, preDigest)
	}
	return gs.commitLocked(parent, preDigest, effects)
}

// CommitGenesis applies effects against the internal pre-genesis empty
// state and registers the result as the first publicly checkout-able
// snapshot. It exists only for RunGenesis: the pre-genesis state itself is
// never reachable through Commit/Checkout/Execute by any digest, including
// the all-zero StateDigest a caller might submit (spec §8 scenario S5).
func (gs *GlobalState) CommitGenesis(effects []KeyTransform) (CommitResult, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.commitLocked(gs.preGenesis, StateDigest{}, effects)
}

// CheckoutPreGenesis returns the internal empty state RunGenesis builds the
// first snapshot from. This is not exposed via Checkout: no StateDigest
// names this snapshot, so it can never be aliased by a client-submitted
// digest.
func (gs *GlobalState) CheckoutPreGenesis() *StateView {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return &StateView{gs: gs, snp: gs.preGenesis}
}

func (gs *GlobalState) commitLocked(parent *snapshot, preDigest StateDigest, effects []KeyTransform) (CommitResult, error) {
	kv, keys, err := applyEffects(parent, effects)
	if err != nil {
		return CommitResult{}, err
	}

	post := hashKeyValues(kv)
	gs.snapshots[post] = &snapshot{digest: post, kv: kv, keys: keys}
	gs.cache.Add(post, gs.snapshots[post])

	rec := commitRecord{PreDigest: preDigest, PostDigest: post, KV: kv}
	data, err := json.Marshal(rec)
	if err != nil {
		return CommitResult{}, fmt.Errorf("global_state: marshal commit: %w", err)
	}
	if _, err := gs.walFile.Write(append(data, '\n')); err != nil {
		return CommitResult{}, fmt.Errorf("global_state: write WAL: %w", err)
	}
	_ = gs.walFile.Sync()

	gs.commitCount++
	if gs.snapshotInterval > 0 && gs.commitCount%gs.snapshotInterval == 0 {
		if err := gs.writeSnapshotFile(); err != nil {
			logrus.WithError(err).Error("global_state: snapshot write failed")
		}
	}
	if gs.pruneInterval > 0 && len(gs.snapshots) > gs.pruneInterval {
		gs.pruneLocked()
	}

	logrus.WithFields(logrus.Fields{"pre": preDigest.String(), "post": post.String(), "effects": len(effects)}).
		Info("global_state: committed")
	return CommitResult{PostDigest: post}, nil
}

// applyEffects folds effects onto parent's key/value map, returning the
// resulting map without registering it as a committed snapshot. Shared by
// Commit (which does register the result) and OverlayView (which doesn't,
// so a batch of deploys can see each other's effects before any of them are
// durably committed).
func applyEffects(parent *snapshot, effects []KeyTransform) (map[string][]byte, map[string]Key, error) {
	kv := make(map[string][]byte, len(parent.kv))
	for k, v := range parent.kv {
		kv[k] = v
	}
	keys := make(map[string]Key, len(parent.keys))
	for k, v := range parent.keys {
		keys[k] = v
	}

	for _, e := range effects {
		dbk := e.Key.dbKey()
		keys[dbk] = e.Key.Normalize()
		cur, existed := kv[dbk]
		next, err := applyTransformToBytes(cur, existed, e.Transform)
		if err != nil {
			return nil, nil, err
		}
		if next == nil {
			delete(kv, dbk)
			continue
		}
		kv[dbk] = next
	}
	return kv, keys, nil
}

// OverlayView builds an ephemeral StateView layering effects over the
// snapshot named by digest, without registering a new committed snapshot or
// touching the WAL. Used by the engine service to run deploys within one
// execute batch sequentially against each other's in-memory effects, ahead
// of the caller's later, separate commit call.
func (gs *GlobalState) OverlayView(digest StateDigest, effects []KeyTransform) (*StateView, error) {
	gs.mu.RLock()
	parent, ok := gs.snapshots[digest]
	gs.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDigestNotFound, digest)
	}
	if len(effects) == 0 {
		return &StateView{gs: gs, snp: parent}, nil
	}
	kv, keys, err := applyEffects(parent, effects)
	if err != nil {
		return nil, err
	}
	overlay := &snapshot{digest: hashKeyValues(kv), kv: kv, keys: keys}
	return &StateView{gs: gs, snp: overlay}, nil
}

// writeSnapshotFile persists every known snapshot to SnapshotPath as JSON,
// then truncates the WAL, mirroring the teacher's snapshot()/rewriteWAL.
func (gs *GlobalState) writeSnapshotFile() error {
	if gs.snapshotPath == "" {
		return nil
	}
	recs := make([]commitRecord, 0, len(gs.snapshots))
	for d, snp := range gs.snapshots {
		recs = append(recs, commitRecord{PostDigest: d, KV: snp.kv})
	}
	f, err := os.Create(gs.snapshotPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(struct{ Snapshots []commitRecord }{recs}); err != nil {
		return err
	}
	if err := gs.walFile.Truncate(0); err != nil {
		return err
	}
	if _, err := gs.walFile.Seek(0, 0); err != nil {
		return err
	}
	return nil
}

// pruneLocked archives excess snapshots to a gzip file, keeping the snapshot
// table bounded. Which snapshots go is whatever Go's map iteration order
// yields, not their age, in the style of the teacher's prune(). The
// pre-genesis state is never in gs.snapshots (see preGenesis) so there is
// nothing genesis-specific to protect here.
func (gs *GlobalState) pruneLocked() {
	if gs.archivePath == "" {
		return
	}
	f, err := os.OpenFile(gs.archivePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		logrus.WithError(err).Error("global_state: open archive")
		return
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	defer gz.Close()

	excess := len(gs.snapshots) - gs.pruneInterval
	for d, snp := range gs.snapshots {
		if excess <= 0 {
			break
		}
		data, _ := json.Marshal(commitRecord{PostDigest: d, KV: snp.kv})
		gz.Write(append(data, '\n'))
		delete(gs.snapshots, d)
		excess--
	}
}

// StateRoot returns the digest identifying this view's snapshot.
func (v *StateView) StateRoot() StateDigest { return v.snp.digest }

// Read returns the raw stored bytes for a Key, reporting false when absent.
func (v *StateView) Read(k Key) ([]byte, bool) {
	b, ok := v.snp.kv[k.dbKey()]
	return b, ok
}

// GlobalStateConfigFromDir builds a GlobalStateConfig whose WAL and snapshot
// files are state.wal and state.snap under dir.
func GlobalStateConfigFromDir(dir string) GlobalStateConfig {
	return GlobalStateConfig{
		WALPath:      filepath.Join(dir, "state.wal"),
		SnapshotPath: filepath.Join(dir, "state.snap"),
	}
}

// Close releases the WAL file handle.
func (gs *GlobalState) Close() error {
	if gs == nil || gs.walFile == nil {
		return nil
	}
	return gs.walFile.Close()
}
