package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/brainos/retrieval/codec"
	ihash "github.com/brainos/retrieval/internal/hash"
	"github.com/brainos/retrieval/model"
)

const (
	// archiveMagic identifies snapshot archives (ASCII "BRS1").
	archiveMagic = 0x42525331

	// FormatVersion is the current archive format version, recorded in every
	// archive header and in snapshot manifests.
	FormatVersion = 1

	// maxRecordSize bounds a single length-prefixed record, so a corrupt
	// length never drives a giant allocation.
	maxRecordSize = 64 << 20

	archiveBufferSize = 256 * 1024
)

// Compression selects the archive payload compression.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

// String returns the canonical compression name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

func (c Compression) valid() bool { return c <= CompressionZstd }

// SnapshotInfo describes one written archive. Checksum is the CRC32-C of
// every byte written, computed while streaming; the publisher records it in
// the snapshot manifest and the subscriber verifies it before install.
type SnapshotInfo struct {
	Collection string
	Schema     model.Schema
	Chunks     int
	Checksum   uint32
	Bytes      int64
	CreatedAt  time.Time
}

// archiveHeader is the first record of the payload, codec-encoded like the
// rows that follow it.
type archiveHeader struct {
	Name      string       `json:"name"`
	Schema    model.Schema `json:"schema"`
	Rows      int          `json:"rows"`
	CreatedAt time.Time    `json:"created_at"`
}

// meterWriter counts and checksums everything written through it.
type meterWriter struct {
	w io.Writer
	h hash.Hash32
	n int64
}

func newMeterWriter(w io.Writer) *meterWriter {
	return &meterWriter{w: w, h: ihash.NewCRC32C()}
}

func (m *meterWriter) Write(p []byte) (int, error) {
	n, err := m.w.Write(p)
	m.h.Write(p[:n])
	m.n += int64(n)
	return n, err
}

func compressWriter(w io.Writer, comp Compression) (io.WriteCloser, error) {
	switch comp {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("store: unsupported compression %d", uint8(comp))
	}
}

func compressReader(r io.Reader, comp Compression) (io.ReadCloser, error) {
	switch comp {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported compression %d", ErrInvalidArchive, uint8(comp))
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func writeRecord(w io.Writer, cdc codec.Codec, v any) error {
	data, err := cdc.Marshal(v)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readRecord(r io.Reader, cdc codec.Codec, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("%w: short record length: %v", ErrInvalidArchive, err)
	}
	size := binary.LittleEndian.Uint32(lenBuf[:])
	if size > maxRecordSize {
		return fmt.Errorf("%w: record size %d exceeds limit", ErrInvalidArchive, size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("%w: short record: %v", ErrInvalidArchive, err)
	}
	if err := cdc.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	return nil
}

// snapshot streams a point-in-time archive of the collection to w. It holds
// the read lock for the duration, so queries keep running while writes wait
// out the barrier.
//
// Layout: a fixed file header (magic, format version, compression, codec
// name), then a compressed payload of codec-encoded records: the archive
// header, one record per row, then the inverted index as roaring bitmaps
// sorted by dimension.
func (c *Collection) snapshot(ctx context.Context, w io.Writer, cdc codec.Codec, comp Compression) (SnapshotInfo, error) {
	if !comp.valid() {
		return SnapshotInfo{}, fmt.Errorf("store: unsupported compression %d", uint8(comp))
	}
	codecName := cdc.Name()
	if len(codecName) == 0 || len(codecName) > 255 {
		return SnapshotInfo{}, fmt.Errorf("store: codec name %q is not archivable", codecName)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	createdAt := time.Now().UTC()
	mw := newMeterWriter(w)

	fileHeader := make([]byte, 10+len(codecName))
	binary.LittleEndian.PutUint32(fileHeader[0:], archiveMagic)
	binary.LittleEndian.PutUint32(fileHeader[4:], FormatVersion)
	fileHeader[8] = byte(comp)
	fileHeader[9] = byte(len(codecName))
	copy(fileHeader[10:], codecName)
	if _, err := mw.Write(fileHeader); err != nil {
		return SnapshotInfo{}, err
	}

	cw, err := compressWriter(mw, comp)
	if err != nil {
		return SnapshotInfo{}, err
	}
	bw := bufio.NewWriterSize(cw, archiveBufferSize)

	err = func() error {
		header := archiveHeader{
			Name:      c.name,
			Schema:    c.schema,
			Rows:      len(c.rows),
			CreatedAt: createdAt,
		}
		if err := writeRecord(bw, cdc, header); err != nil {
			return err
		}
		for i := range c.rows {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := writeRecord(bw, cdc, &c.rows[i]); err != nil {
				return err
			}
		}
		return c.writePostings(bw)
	}()
	if err != nil {
		cw.Close()
		return SnapshotInfo{}, err
	}
	if err := bw.Flush(); err != nil {
		cw.Close()
		return SnapshotInfo{}, err
	}
	if err := cw.Close(); err != nil {
		return SnapshotInfo{}, err
	}

	return SnapshotInfo{
		Collection: c.name,
		Schema:     c.schema,
		Chunks:     len(c.rows),
		Checksum:   mw.h.Sum32(),
		Bytes:      mw.n,
		CreatedAt:  createdAt,
	}, nil
}

// writePostings serializes the inverted index in ascending dimension order,
// so identical collections produce identical payload bytes.
func (c *Collection) writePostings(w io.Writer) error {
	dims := make([]uint32, 0, len(c.postings))
	for dim := range c.postings {
		dims = append(dims, dim)
	}
	slices.Sort(dims)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(dims)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	for _, dim := range dims {
		data, err := c.postings[dim].ToBytes()
		if err != nil {
			return err
		}
		var head [8]byte
		binary.LittleEndian.PutUint32(head[0:], dim)
		binary.LittleEndian.PutUint32(head[4:], uint32(len(data)))
		if _, err := w.Write(head[:]); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// readArchive parses one archive and rebuilds its collection, validating
// every row against the recorded schema. The codec is selected by the name
// recorded in the file header, not by the store's configured default.
func readArchive(r io.Reader) (*Collection, error) {
	fixed := make([]byte, 10)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrInvalidArchive, err)
	}
	if magic := binary.LittleEndian.Uint32(fixed[0:]); magic != archiveMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrInvalidArchive, magic)
	}
	if version := binary.LittleEndian.Uint32(fixed[4:]); version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrInvalidArchive, version)
	}
	comp := Compression(fixed[8])
	nameBuf := make([]byte, fixed[9])
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return nil, fmt.Errorf("%w: short codec name: %v", ErrInvalidArchive, err)
	}
	cdc, ok := codec.ByName(string(nameBuf))
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrInvalidArchive, string(nameBuf))
	}

	cr, err := compressReader(r, comp)
	if err != nil {
		return nil, err
	}
	defer cr.Close()
	br := bufio.NewReaderSize(cr, archiveBufferSize)

	var header archiveHeader
	if err := readRecord(br, cdc, &header); err != nil {
		return nil, err
	}
	if header.Name == "" {
		return nil, fmt.Errorf("%w: empty collection name", ErrInvalidArchive)
	}
	if err := header.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	if header.Rows < 0 {
		return nil, fmt.Errorf("%w: negative row count %d", ErrInvalidArchive, header.Rows)
	}

	col, err := newCollection(header.Name, header.Schema)
	if err != nil {
		return nil, err
	}
	col.rows = make([]model.Chunk, 0, header.Rows)
	for i := 0; i < header.Rows; i++ {
		var chunk model.Chunk
		if err := readRecord(br, cdc, &chunk); err != nil {
			return nil, err
		}
		if err := chunk.Validate(); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidArchive, i, err)
		}
		if !chunk.Encoded() {
			return nil, fmt.Errorf("%w: row %d (%s) is missing a vector", ErrInvalidArchive, i, chunk.ID)
		}
		if len(chunk.Dense) != header.Schema.DenseDimension {
			return nil, fmt.Errorf("%w: row %d (%s) dense dimension %d, schema %d",
				ErrInvalidArchive, i, chunk.ID, len(chunk.Dense), header.Schema.DenseDimension)
		}
		if _, dup := col.byID[chunk.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate chunk id %s", ErrInvalidArchive, chunk.ID)
		}
		col.byID[chunk.ID] = uint32(i)
		col.rows = append(col.rows, chunk)
	}

	if err := readPostings(br, col); err != nil {
		return nil, err
	}
	return col, nil
}

func readPostings(r io.Reader, col *Collection) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("%w: short postings count: %v", ErrInvalidArchive, err)
	}
	terms := binary.LittleEndian.Uint32(lenBuf[:])

	rows := uint32(len(col.rows))
	for i := uint32(0); i < terms; i++ {
		var head [8]byte
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return fmt.Errorf("%w: short postings header: %v", ErrInvalidArchive, err)
		}
		dim := binary.LittleEndian.Uint32(head[0:])
		size := binary.LittleEndian.Uint32(head[4:])
		if size > maxRecordSize {
			return fmt.Errorf("%w: postings size %d exceeds limit", ErrInvalidArchive, size)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return fmt.Errorf("%w: short postings data: %v", ErrInvalidArchive, err)
		}
		bm := roaring.New()
		if _, err := bm.ReadFrom(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: postings for dimension %d: %v", ErrInvalidArchive, dim, err)
		}
		if !bm.IsEmpty() && bm.Maximum() >= rows {
			return fmt.Errorf("%w: postings for dimension %d reference row %d of %d",
				ErrInvalidArchive, dim, bm.Maximum(), rows)
		}
		col.postings[dim] = bm
	}
	return nil
}
