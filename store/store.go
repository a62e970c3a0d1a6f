// Package store persists identity disk data: text chunks, their metadata,
// per-model index records and the format manifest.
//
// Two durable layouts implement the same Backend contract. The relational
// layout (SQLite) is the primary format; the key/value layout (bbolt) is an
// alternative for hosts where an embedded SQL engine is unwelcome. A disk
// file's layout is detected from its header on open, so callers never state
// it except at creation time.
//
// Backends store blobs and metadata verbatim and know nothing about vector
// search; the in-memory index is rebuilt by the caller from IndexRecords,
// whose order is the insertion order of the rows.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// SpecVersion is the disk format revision written to every manifest.
	SpecVersion = "1.0"

	// IndexTypeVectorEmbedding tags index records that hold an encoded
	// embedding vector.
	IndexTypeVectorEmbedding = "vector_embedding"

	// ManifestKeySpecVersion is the manifest key of the format revision.
	ManifestKeySpecVersion = "spec_version"

	// ManifestKeyCreatedAt is the manifest key of the creation timestamp.
	ManifestKeyCreatedAt = "created_at"
)

// File extensions conventionally used for the two layouts.
const (
	ExtSQLite = ".aim"
	ExtBolt   = ".idz"
)

var (
	// ErrNotFound reports a chunk or manifest key that does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrIO reports a filesystem-level failure, as opposed to an engine
	// failure inside an open database.
	ErrIO = errors.New("store: io failure")

	// ErrSerialization reports metadata that could not be rendered to its
	// stored JSON form.
	ErrSerialization = errors.New("store: serialization failure")
)

// Chunk is a stored unit of text with mutable structured metadata.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// IndexRecord associates a chunk with one encoded embedding under a model
// signature. Data is the raw blob; its interpretation belongs to the codec
// layer, not the store.
type IndexRecord struct {
	ChunkID        string
	IndexType      string
	ModelSignature string
	Data           []byte
}

// Backend is the storage contract an identity disk drives. Implementations
// write the chunk row and its index record atomically in AddChunk and
// return IndexRecords in row insertion order. The order of Chunks is
// unspecified.
type Backend interface {
	// Format reports the durable layout of the backing file.
	Format() Format

	// AddChunk durably inserts a chunk and its index record in one
	// transaction.
	AddChunk(chunk Chunk, rec IndexRecord) error

	// Chunk returns a single chunk by id, or ErrNotFound.
	Chunk(id string) (Chunk, error)

	// Chunks returns every stored chunk. Embedding blobs are never
	// included; they stay behind IndexRecords.
	Chunks() ([]Chunk, error)

	// UpdateChunkMetadata replaces the metadata of an existing chunk, or
	// returns ErrNotFound.
	UpdateChunkMetadata(id string, metadata map[string]any) error

	// IndexRecords returns the records filed under a model signature in
	// insertion order.
	IndexRecords(modelSignature string) ([]IndexRecord, error)

	// Manifest returns the value of a manifest key, or ErrNotFound.
	Manifest(key string) (string, error)

	// Close releases the backing file.
	Close() error
}

// Format identifies the durable layout of a disk file.
type Format int

const (
	// FormatSQLite is the relational layout in a single SQLite file.
	FormatSQLite Format = iota

	// FormatBolt is the key/value layout in a single bbolt file.
	FormatBolt
)

func (f Format) String() string {
	switch f {
	case FormatSQLite:
		return "sqlite"
	case FormatBolt:
		return "bolt"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Create initializes a fresh disk at path in the given format, replacing
// any previous file at that location.
func Create(path string, format Format) (Backend, error) {
	switch format {
	case FormatSQLite:
		return createSQLite(path)
	case FormatBolt:
		return createBolt(path)
	default:
		return nil, fmt.Errorf("store: unknown format %v", format)
	}
}

// Open opens an existing disk, detecting its layout from the file header.
func Open(path string) (Backend, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatSQLite:
		return openSQLite(path)
	default:
		return openBolt(path)
	}
}

// OpenInMemory loads an existing disk into a session-scoped copy. Writes
// against the returned backend never reach path; the file's bytes are the
// same after the session as before it.
func OpenInMemory(path string) (Backend, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatSQLite:
		return openSQLiteInMemory(path)
	default:
		return openBoltInMemory(path)
	}
}

// sqliteMagic is the 16-byte header string of every SQLite database file.
const sqliteMagic = "SQLite format 3\x00"

// boltMagic sits little-endian at byte 16 of a bbolt meta page.
const boltMagic = 0xED0CDAED

// DetectFormat sniffs the layout of an existing disk file from its header.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: open disk: %w", ErrIO, err)
	}
	defer f.Close()

	header := make([]byte, 20)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, fmt.Errorf("%w: read disk header: %w", ErrIO, err)
	}

	if string(header[:len(sqliteMagic)]) == sqliteMagic {
		return FormatSQLite, nil
	}
	if binary.LittleEndian.Uint32(header[16:20]) == boltMagic {
		return FormatBolt, nil
	}

	return 0, fmt.Errorf("store: %s is not an identity disk", filepath.Base(path))
}

// FormatForPath picks the creation format implied by a path's extension:
// ".idz" selects the key/value layout, everything else the relational one.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ExtBolt) {
		return FormatBolt
	}
	return FormatSQLite
}

// marshalMetadata renders chunk metadata as its stored JSON text. Nil and
// empty maps become the empty object.
func marshalMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("%w: encode metadata: %w", ErrSerialization, err)
	}

	return string(raw), nil
}

// unmarshalMetadata parses stored metadata text. Malformed text degrades to
// an empty map so a bad row cannot make its chunk unreadable.
func unmarshalMetadata(raw string) map[string]any {
	metadata := make(map[string]any)
	if raw == "" {
		return metadata
	}

	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return make(map[string]any)
	}

	return metadata
}
