// Package snapshot replicates collections from a writer store to read-only
// replicas through a shared bridge store.
//
// Replication is pull-based and file-shaped. The publisher streams a
// point-in-time archive plus a manifest under a timestamped snapshot name
// and moves the Latest Pointer only after the upload verifies; subscribers
// poll the pointer, download into a staging directory, verify the checksum,
// and swap atomically. A replica is fully on snapshot N or N+1, never in
// between, and any failure leaves the previously published state serving.
package snapshot

import (
	"errors"
	"path"
	"time"

	"github.com/brainos/retrieval/model"
	"github.com/brainos/retrieval/store"
)

// ErrChecksumMismatch reports an archive whose recomputed CRC32-C disagrees
// with its manifest. The artifact is discarded and the previous snapshot
// keeps serving.
var ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")

// NameFormat renders snapshot names as sortable UTC timestamps.
const NameFormat = "20060102T150405.000000000Z"

// Blob names inside the bridge layout <prefix>/<collection>/.
const (
	// ManifestFile names the manifest blob inside a snapshot directory.
	ManifestFile = "manifest.json"

	// LatestPointer names the per-collection Latest Pointer record.
	LatestPointer = "LATEST"
)

// NewName returns the snapshot name for t.
func NewName(t time.Time) string {
	return t.UTC().Format(NameFormat)
}

// State names one phase of a replication cycle.
//
// Publisher: IDLE -> CREATING -> TRANSFERRING -> PUBLISHED | FAILED.
// Subscriber: IDLE -> PULLING -> VERIFYING -> SWAPPING -> SERVING | FAILED.
type State string

const (
	StateIdle         State = "IDLE"
	StateCreating     State = "CREATING"
	StateTransferring State = "TRANSFERRING"
	StatePublished    State = "PUBLISHED"
	StatePulling      State = "PULLING"
	StateVerifying    State = "VERIFYING"
	StateSwapping     State = "SWAPPING"
	StateServing      State = "SERVING"
	StateFailed       State = "FAILED"
)

// OnTransition observes state changes. Hooks run synchronously inside the
// cycle and must return quickly.
type OnTransition func(from, to State)

// Manifest describes one uploaded snapshot of one collection. It is the
// subscriber's source of truth for verification: an archive is installed
// only when its size and checksum match.
type Manifest struct {
	Name          string       `json:"name"`
	Collection    string       `json:"collection"`
	Schema        model.Schema `json:"schema"`
	Chunks        int          `json:"chunks"`
	Bytes         int64        `json:"bytes"`
	Checksum      uint32       `json:"checksum"`
	FormatVersion uint8        `json:"format_version"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Pointer is the Latest Pointer record, the one mutable object in the
// bridge layout. It moves only after a verified upload.
type Pointer struct {
	Snapshot  string    `json:"snapshot"`
	UpdatedAt time.Time `json:"updated_at"`
}

func archiveKey(prefix, collection, name string) string {
	return path.Join(prefix, collection, name, collection+store.ArchiveExt)
}

func manifestKey(prefix, collection, name string) string {
	return path.Join(prefix, collection, name, ManifestFile)
}

func pointerKey(prefix, collection string) string {
	return path.Join(prefix, collection, LatestPointer)
}
