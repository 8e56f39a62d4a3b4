package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainos/retrieval/blobstore"
	"github.com/brainos/retrieval/model"
	"github.com/brainos/retrieval/store"
)

// replication wires a writer store, a bridge, and a replica together the
// way a two-process deployment would.
type replication struct {
	writer   *store.Store
	bridge   blobstore.BlobStore
	pointers blobstore.PointerStore
	pub      *Publisher
	replica  *store.Store
	sub      *Subscriber
	dir      string
}

func newReplication(t *testing.T, bridge blobstore.BlobStore, optFns ...Option) *replication {
	t.Helper()

	pointers := blobstore.KeyPointer{Store: bridge}
	writer := newWriterStore(t)

	dir := t.TempDir()
	replica, err := store.Open(dir)
	require.NoError(t, err)

	sub, err := NewSubscriber(replica, bridge, pointers, "docs", optFns...)
	require.NoError(t, err)

	return &replication{
		writer:   writer,
		bridge:   bridge,
		pointers: pointers,
		pub:      NewPublisher(writer, bridge, pointers, "docs"),
		replica:  replica,
		sub:      sub,
		dir:      dir,
	}
}

func (r *replication) replicaCount(t *testing.T) int {
	t.Helper()
	count, err := r.replica.Count("docs")
	require.NoError(t, err)
	return count
}

func TestSubscriberInstallsPublishedSnapshot(t *testing.T) {
	ctx := context.Background()
	var tr transitions
	r := newReplication(t, blobstore.NewMemoryStore(), WithOnTransition(tr.hook))

	manifest, err := r.pub.Publish(ctx)
	require.NoError(t, err)

	name, err := r.sub.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, manifest.Name, name)
	assert.Equal(t, StateServing, r.sub.State())
	assert.Equal(t, []string{
		"IDLE->PULLING",
		"PULLING->VERIFYING",
		"VERIFYING->SWAPPING",
		"SWAPPING->SERVING",
	}, tr.list())

	assert.Equal(t, 3, r.replicaCount(t))
	col, err := r.replica.Collection("docs")
	require.NoError(t, err)
	got, ok := col.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "revenue grew fourteen percent", got.Text)

	current, err := store.ReadCurrent(r.dir)
	require.NoError(t, err)
	assert.Equal(t, manifest.Name, current)

	// Exactly one installed version, no staging leftovers.
	entries, err := os.ReadDir(filepath.Join(r.dir, store.VersionsDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, manifest.Name, entries[0].Name())
}

func TestSubscriberNoSnapshotYet(t *testing.T) {
	ctx := context.Background()
	var tr transitions
	r := newReplication(t, blobstore.NewMemoryStore(), WithOnTransition(tr.hook))

	name, err := r.sub.Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Equal(t, StateIdle, r.sub.State())
	assert.Equal(t, []string{"IDLE->PULLING", "PULLING->IDLE"}, tr.list())
	assert.Empty(t, r.replica.Collections())
}

func TestSubscriberSkipsWhenAlreadyCurrent(t *testing.T) {
	ctx := context.Background()
	faulty := blobstore.NewFaulty(blobstore.NewMemoryStore())
	r := newReplication(t, faulty)

	manifest, err := r.pub.Publish(ctx)
	require.NoError(t, err)

	name, err := r.sub.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, manifest.Name, name)

	// A current replica never re-downloads: the cycle stays clear of the
	// archive even when opening it would now fail.
	faulty.AddRule(store.ArchiveExt, blobstore.Fault{FailOpen: true})

	name, err = r.sub.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, manifest.Name, name)
	assert.Equal(t, StateServing, r.sub.State())
}

func TestSubscriberFollowsNewGenerations(t *testing.T) {
	ctx := context.Background()
	r := newReplication(t, blobstore.NewMemoryStore())

	first, err := r.pub.Publish(ctx)
	require.NoError(t, err)
	_, err = r.sub.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, r.replicaCount(t))

	require.NoError(t, r.writer.Upsert(ctx, "docs", []model.Chunk{
		snapChunk("c4", 9, []float32{0, 0, 0, 1}, "appendix lists every data source"),
	}))
	second, err := r.pub.Publish(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.Name, second.Name)

	name, err := r.sub.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Name, name)
	assert.Equal(t, 4, r.replicaCount(t))

	current, err := store.ReadCurrent(r.dir)
	require.NoError(t, err)
	assert.Equal(t, second.Name, current)

	// The previous version stays on disk for rollback.
	entries, err := os.ReadDir(filepath.Join(r.dir, store.VersionsDir))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSubscriberChecksumMismatchKeepsServing(t *testing.T) {
	ctx := context.Background()
	bridge := blobstore.NewMemoryStore()
	var tr transitions
	r := newReplication(t, bridge, WithOnTransition(tr.hook))

	first, err := r.pub.Publish(ctx)
	require.NoError(t, err)
	_, err = r.sub.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, r.replicaCount(t))

	require.NoError(t, r.writer.Upsert(ctx, "docs", []model.Chunk{
		snapChunk("c4", 9, []float32{0, 0, 0, 1}, "appendix lists every data source"),
	}))
	second, err := r.pub.Publish(ctx)
	require.NoError(t, err)

	// Corrupt the stored archive after its verified upload: the subscriber
	// must catch it and keep the previous snapshot serving.
	key := archiveKey(DefaultPrefix, "docs", second.Name)
	data, err := blobstore.ReadAll(ctx, bridge, key)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xFF
	require.NoError(t, bridge.Put(ctx, key, data))

	_, err = r.sub.Sync(ctx)
	require.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Equal(t, StateFailed, r.sub.State())
	assert.Contains(t, tr.list(), "VERIFYING->FAILED")

	assert.Equal(t, 3, r.replicaCount(t), "previous snapshot keeps serving")
	current, err := store.ReadCurrent(r.dir)
	require.NoError(t, err)
	assert.Equal(t, first.Name, current)

	// The rejected download left no staging directory behind.
	entries, err := os.ReadDir(filepath.Join(r.dir, store.VersionsDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, first.Name, entries[0].Name())
}

func TestSubscriberFailedDownloadKeepsServing(t *testing.T) {
	ctx := context.Background()
	faulty := blobstore.NewFaulty(blobstore.NewMemoryStore())
	r := newReplication(t, faulty)

	first, err := r.pub.Publish(ctx)
	require.NoError(t, err)
	_, err = r.sub.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, r.writer.Upsert(ctx, "docs", []model.Chunk{
		snapChunk("c4", 9, []float32{0, 0, 0, 1}, "appendix lists every data source"),
	}))
	second, err := r.pub.Publish(ctx)
	require.NoError(t, err)

	faulty.AddRule(store.ArchiveExt, blobstore.Fault{FailOpen: true})

	_, err = r.sub.Sync(ctx)
	require.ErrorIs(t, err, blobstore.ErrInjected)
	assert.Equal(t, StateFailed, r.sub.State())
	assert.Equal(t, 3, r.replicaCount(t))

	current, err := store.ReadCurrent(r.dir)
	require.NoError(t, err)
	assert.Equal(t, first.Name, current)

	// Once the bridge recovers, the next cycle converges.
	faulty.Reset()
	name, err := r.sub.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Name, name)
	assert.Equal(t, 4, r.replicaCount(t))
}

func TestSubscriberRequiresReplicaStore(t *testing.T) {
	bridge := blobstore.NewMemoryStore()
	_, err := NewSubscriber(store.New(), bridge, blobstore.KeyPointer{Store: bridge}, "docs")
	require.Error(t, err)
}

func TestReplicationOverLocalBridge(t *testing.T) {
	ctx := context.Background()
	bridge := blobstore.NewLocalStore(t.TempDir())
	r := newReplication(t, bridge)

	manifest, err := r.pub.Publish(ctx)
	require.NoError(t, err)

	name, err := r.sub.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, manifest.Name, name)

	col, err := r.replica.Collection("docs")
	require.NoError(t, err)
	hits, err := col.SearchDense(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].Chunk.ID)
}
