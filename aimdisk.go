// Package aimdisk implements an embedded identity disk: a single-file store
// for text chunks and their embedding vectors with approximate semantic
// search on top.
//
// A disk binds one model signature for its whole lifetime. The signature
// names the embedding model the vectors came from and, through its suffix,
// the vector representation ("demo-4_fp32" or any signature without an
// underscore selects fp32). Chunks and their encoded vectors live in a
// durable backend; an HNSW graph over the vectors is rebuilt in memory on
// every open from the stored rows, in row insertion order, so search
// results are reproducible across sessions.
//
// A disk bound to a signature whose encoding this build cannot index still
// opens: chunks remain readable and searches return no hits, but mutations
// report ErrUnsupportedIndex. All methods are safe for concurrent use.
//
//	disk, err := aimdisk.Create("memory.aim", "demo-4_fp32")
//	if err != nil { ... }
//	defer disk.Close()
//
//	id, err := disk.AddChunk("hello world", codec.Float32([]float32{1, 0, 0, 0}),
//		map[string]any{"a": 1})
//	hits, err := disk.Search(codec.Float32([]float32{1, 0, 0, 0}), 5)
package aimdisk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aimdisk/aimdisk/codec"
	"github.com/aimdisk/aimdisk/hnsw"
	"github.com/aimdisk/aimdisk/lexical"
	"github.com/aimdisk/aimdisk/metric"
	"github.com/aimdisk/aimdisk/store"
)

// searchEF is the fixed beam width of every query. Recall stays flat no
// matter how small top_k is, at the price of a floor on query latency.
const searchEF = 100

// SearchResult is one semantic search hit: the stored chunk and its
// distance from the query under the index metric.
type SearchResult struct {
	Chunk    store.Chunk
	Distance float32
}

// KeywordResult is one keyword search hit with its relevance score.
type KeywordResult struct {
	Chunk store.Chunk
	Score float64
}

// Disk is an open identity disk. Create, Open and OpenInMemory construct
// one; Close releases it.
type Disk struct {
	backend   store.Backend
	signature string
	kind      codec.Kind

	mu      sync.RWMutex
	graph   *hnsw.Graph // nil when the signature has no supported index
	ids     []string    // dense index id -> chunk id, in insertion order
	keyword *lexical.Index

	logger  *Logger
	metrics MetricsCollector
}

// Create initializes a fresh disk at path bound to modelSignature,
// replacing any previous file at that location.
func Create(path, modelSignature string, optFns ...Option) (*Disk, error) {
	opts := resolveOptions(optFns)

	format := opts.format
	if !opts.formatSet {
		format = store.FormatForPath(path)
	}

	backend, err := store.Create(path, format)
	if err != nil {
		return nil, translateStoreError(err)
	}

	return newDisk(backend, modelSignature, opts)
}

// Open opens an existing disk at path and rebuilds the in-memory index for
// modelSignature from the stored rows.
func Open(path, modelSignature string, optFns ...Option) (*Disk, error) {
	backend, err := store.Open(path)
	if err != nil {
		return nil, translateStoreError(err)
	}

	return newDisk(backend, modelSignature, resolveOptions(optFns))
}

// OpenInMemory loads the disk at path into a session-private copy. Writes
// work normally inside the session and vanish with Close; the file at path
// keeps its exact bytes throughout.
func OpenInMemory(path, modelSignature string, optFns ...Option) (*Disk, error) {
	backend, err := store.OpenInMemory(path)
	if err != nil {
		return nil, translateStoreError(err)
	}

	return newDisk(backend, modelSignature, resolveOptions(optFns))
}

func newDisk(backend store.Backend, modelSignature string, opts options) (*Disk, error) {
	d := &Disk{
		backend:   backend,
		signature: modelSignature,
		kind:      codec.KindForSignature(modelSignature),
		logger:    opts.logger,
		metrics:   opts.metrics,
	}

	if d.kind == codec.KindUnsupported {
		d.logger.Warn("no supported index for model signature; semantic search disabled",
			"model_signature", modelSignature)
	} else {
		d.graph = hnsw.New(opts.hnswOptions...)
	}

	if err := d.loadIndex(); err != nil {
		backend.Close()
		return nil, err
	}

	if opts.keywordIndex {
		if err := d.loadKeywordIndex(); err != nil {
			backend.Close()
			return nil, err
		}
	}

	return d, nil
}

// loadIndex rebuilds the vector index from the stored records. Row
// insertion order defines the dense ids, so a reopened disk reproduces the
// id assignment of the sessions that wrote it.
func (d *Disk) loadIndex() error {
	recs, err := d.backend.IndexRecords(d.signature)
	if err != nil {
		return translateStoreError(err)
	}

	d.ids = make([]string, 0, len(recs))

	if d.graph == nil {
		// No codec for this signature: keep the chunk ids visible, leave
		// the vectors opaque.
		for _, rec := range recs {
			d.ids = append(d.ids, rec.ChunkID)
		}
		return nil
	}

	for _, rec := range recs {
		vector, err := codec.Decode(d.kind, rec.Data)
		if err != nil {
			return fmt.Errorf("%w: decode record for chunk %s: %w", ErrStorage, rec.ChunkID, err)
		}

		id, err := d.graph.Insert(vector.Float32s())
		if err != nil {
			return fmt.Errorf("%w: rebuild index for chunk %s: %w", ErrStorage, rec.ChunkID, err)
		}
		if int(id) != len(d.ids) {
			return fmt.Errorf("%w: index id %d does not match load position %d",
				ErrLock, id, len(d.ids))
		}
		d.ids = append(d.ids, rec.ChunkID)
	}

	d.logger.Debug("vector index loaded",
		"model_signature", d.signature, "vectors", len(d.ids))
	return nil
}

func (d *Disk) loadKeywordIndex() error {
	keyword, err := lexical.New()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	chunks, err := d.backend.Chunks()
	if err != nil {
		keyword.Close()
		return translateStoreError(err)
	}

	for _, chunk := range chunks {
		if err := keyword.Add(chunk.ID, chunk.Content); err != nil {
			keyword.Close()
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}

	d.keyword = keyword
	return nil
}

// AddChunk persists content with its embedding vector and metadata,
// indexes the vector, and returns the generated chunk id.
//
// The rows are committed before the in-memory index is touched. On a disk
// whose signature has no supported index the commit still happens and the
// durable chunk's id is returned alongside ErrUnsupportedIndex; the chunk
// becomes searchable once a build that understands the signature's
// encoding reopens the disk.
func (d *Disk) AddChunk(content string, vector codec.Vector, metadata map[string]any) (string, error) {
	start := time.Now()
	chunkID, err := d.addChunk(content, vector, metadata)
	d.metrics.RecordAddChunk(time.Since(start), err)
	return chunkID, err
}

func (d *Disk) addChunk(content string, vector codec.Vector, metadata map[string]any) (string, error) {
	if vector.Len() == 0 {
		return "", fmt.Errorf("%w: empty vector", ErrInvalidInput)
	}
	if d.kind != codec.KindUnsupported && vector.Kind() != d.kind {
		return "", fmt.Errorf("%w: %s vector against %s signature %q",
			ErrInvalidInput, vector.Kind(), d.kind, d.signature)
	}

	blob, err := codec.Encode(vector)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	// One lock spans the durable commit and the index mutation, so no
	// reader ever observes the gap between them.
	d.mu.Lock()
	defer d.mu.Unlock()

	// Length agreement between graph and id list is the invariant every
	// search depends on; refuse to write when it is already broken.
	if d.graph != nil && d.graph.Len() != len(d.ids) {
		return "", fmt.Errorf("%w: index holds %d vectors but id list holds %d",
			ErrLock, d.graph.Len(), len(d.ids))
	}

	if d.graph != nil && d.graph.Len() > 0 && vector.Len() != d.graph.Dimension() {
		return "", fmt.Errorf("%w: vector length %d does not match index dimension %d",
			ErrInvalidInput, vector.Len(), d.graph.Dimension())
	}

	chunkID := uuid.NewString()

	chunk := store.Chunk{ID: chunkID, Content: content, Metadata: metadata}
	rec := store.IndexRecord{
		ChunkID:        chunkID,
		IndexType:      store.IndexTypeVectorEmbedding,
		ModelSignature: d.signature,
		Data:           blob,
	}

	if err := d.backend.AddChunk(chunk, rec); err != nil {
		return "", translateStoreError(err)
	}

	if d.graph == nil {
		// The rows are durable; mirror them in the session state the way a
		// reopen would, then report that no index accepted the vector.
		d.ids = append(d.ids, chunkID)
		d.indexKeyword(chunkID, content)
		return chunkID, fmt.Errorf("%w: no index loaded for model signature %q",
			ErrUnsupportedIndex, d.signature)
	}

	id, err := d.graph.Insert(vector.Float32s())
	if err != nil {
		// The row is durable but the index refused it; the disk needs a
		// reopen to get back in lock-step.
		return "", fmt.Errorf("%w: index insert after durable commit: %w", ErrLock, err)
	}
	if int(id) != len(d.ids) {
		return "", fmt.Errorf("%w: index id %d does not match id list length %d",
			ErrLock, id, len(d.ids))
	}
	d.ids = append(d.ids, chunkID)
	d.indexKeyword(chunkID, content)

	d.logger.Debug("chunk added", "chunk_id", chunkID, "dimension", vector.Len())
	return chunkID, nil
}

// indexKeyword feeds the keyword sidecar when one is enabled. A sidecar
// failure never rolls back the committed chunk; it only costs the term a
// spot in keyword results until the next open rebuilds the sidecar.
func (d *Disk) indexKeyword(chunkID, content string) {
	if d.keyword == nil {
		return
	}
	if err := d.keyword.Add(chunkID, content); err != nil {
		d.logger.Warn("keyword index update failed", "chunk_id", chunkID, "error", err)
	}
}

// Search returns the topK chunks nearest to the query vector, closest
// first. On a disk whose signature has no supported index it returns no
// results and no error.
func (d *Disk) Search(query codec.Vector, topK int) ([]SearchResult, error) {
	start := time.Now()
	results, err := d.search(query, topK)
	d.metrics.RecordSearch(topK, time.Since(start), err)
	return results, err
}

func (d *Disk) search(query codec.Vector, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidInput, topK)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.graph == nil {
		// Degrade instead of failing: the disk still answers, with no hits.
		d.logger.Debug("search against disabled index", "model_signature", d.signature)
		return nil, nil
	}

	if query.Kind() != d.kind {
		return nil, fmt.Errorf("%w: %s query against %s index", ErrInvalidInput, query.Kind(), d.kind)
	}

	if d.graph.Len() == 0 {
		return nil, nil
	}

	if query.Len() != d.graph.Dimension() {
		return nil, fmt.Errorf("%w: query length %d does not match index dimension %d",
			ErrInvalidInput, query.Len(), d.graph.Dimension())
	}

	candidates, err := d.graph.Search(query.Float32s(), topK, searchEF)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		if int(candidate.ID) >= len(d.ids) {
			return nil, fmt.Errorf("%w: index returned id %d beyond id list length %d",
				ErrLock, candidate.ID, len(d.ids))
		}
		chunkID := d.ids[candidate.ID]

		chunk, err := d.backend.Chunk(chunkID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: chunk %s referenced by index is missing",
					ErrStorage, chunkID)
			}
			return nil, translateStoreError(err)
		}

		results = append(results, SearchResult{Chunk: chunk, Distance: candidate.Distance})
	}

	return results, nil
}

// KeywordSearch returns up to limit chunks whose content matches the query
// terms, best first. The disk must have been opened with WithKeywordIndex.
func (d *Disk) KeywordSearch(query string, limit int) ([]KeywordResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.keyword == nil {
		return nil, fmt.Errorf("%w: keyword index not enabled for this session", ErrInvalidInput)
	}

	matches, err := d.keyword.Search(query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	results := make([]KeywordResult, 0, len(matches))
	for _, match := range matches {
		chunk, err := d.backend.Chunk(match.ChunkID)
		if err != nil {
			return nil, translateStoreError(err)
		}
		results = append(results, KeywordResult{Chunk: chunk, Score: match.Score})
	}

	return results, nil
}

// GetChunk returns a single chunk by id.
func (d *Disk) GetChunk(chunkID string) (store.Chunk, error) {
	chunk, err := d.backend.Chunk(chunkID)
	if err != nil {
		return store.Chunk{}, translateStoreError(err)
	}
	return chunk, nil
}

// GetChunks returns every stored chunk with content and metadata.
// Embedding blobs are never part of the listing.
func (d *Disk) GetChunks() ([]store.Chunk, error) {
	chunks, err := d.backend.Chunks()
	if err != nil {
		return nil, translateStoreError(err)
	}
	return chunks, nil
}

// UpdateChunkMetadata replaces the metadata of an existing chunk.
func (d *Disk) UpdateChunkMetadata(chunkID string, metadata map[string]any) error {
	start := time.Now()
	err := translateStoreError(d.backend.UpdateChunkMetadata(chunkID, metadata))
	d.metrics.RecordUpdate(time.Since(start), err)

	if err == nil {
		d.logger.Debug("chunk metadata updated", "chunk_id", chunkID)
	}
	return err
}

// SpecVersion returns the disk format revision recorded in the manifest.
func (d *Disk) SpecVersion() (string, error) {
	version, err := d.backend.Manifest(store.ManifestKeySpecVersion)
	if err != nil {
		return "", translateStoreError(err)
	}
	return version, nil
}

// CreatedAt returns the creation timestamp recorded in the manifest, as an
// RFC 3339 string.
func (d *Disk) CreatedAt() (string, error) {
	created, err := d.backend.Manifest(store.ManifestKeyCreatedAt)
	if err != nil {
		return "", translateStoreError(err)
	}
	return created, nil
}

// ModelSignature returns the signature this disk is bound to.
func (d *Disk) ModelSignature() string { return d.signature }

// Format reports the durable layout of the backing file.
func (d *Disk) Format() store.Format { return d.backend.Format() }

// IndexLen reports the number of vector records tracked under the bound
// signature. On a disk with a live index this equals the index size.
func (d *Disk) IndexLen() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.ids)
}

// IndexDescription renders the live index variant for display.
func (d *Disk) IndexDescription() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.graph == nil {
		return "None (No index loaded or supported for current model signature)"
	}

	switch d.graph.Options().Distance {
	case metric.DistanceFunctionEuclidean:
		return "F32 (Euclidean Distance)"
	default:
		return "F32 (Cosine Distance)"
	}
}

// Close releases the disk. A disk opened with OpenInMemory discards its
// session state here.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error

	if d.keyword != nil {
		if err := d.keyword.Close(); err != nil {
			errs = append(errs, err)
		}
		d.keyword = nil
	}

	if err := d.backend.Close(); err != nil {
		errs = append(errs, translateStoreError(err))
	}

	return errors.Join(errs...)
}
