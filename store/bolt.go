package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketManifest  = []byte("manifest")
	bucketChunks    = []byte("chunks")
	bucketIndices   = []byte("indices")
	bucketIndexKeys = []byte("index_keys")
)

// chunkDoc is the stored form of a chunk in the chunks bucket. Metadata
// keeps its JSON text form so both layouts store the same bytes per row.
type chunkDoc struct {
	Content  string `json:"content"`
	Metadata string `json:"metadata"`
}

// indexDoc is the stored form of an index record. Bucket keys are
// big-endian sequence numbers, so cursor order is insertion order.
type indexDoc struct {
	ChunkID        string `json:"chunk_id"`
	IndexType      string `json:"index_type"`
	ModelSignature string `json:"model_signature"`
	Data           []byte `json:"data"`
}

// boltBackend is the key/value layout behind .idz files.
type boltBackend struct {
	db       *bbolt.DB
	path     string
	tempPath string // set when the backing file is a discardable copy
}

func createBolt(path string) (*boltBackend, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: remove previous disk: %w", ErrIO, err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketManifest, bucketChunks, bucketIndices, bucketIndexKeys}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}

		manifest := tx.Bucket(bucketManifest)
		if err := manifest.Put([]byte(ManifestKeySpecVersion), []byte(SpecVersion)); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
		createdAt := time.Now().UTC().Format(time.RFC3339)
		if err := manifest.Put([]byte(ManifestKeyCreatedAt), []byte(createdAt)); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &boltBackend{db: db, path: path}, nil
}

func openBolt(path string) (*boltBackend, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: stat disk: %w", ErrIO, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	b := &boltBackend{db: db, path: path}

	if _, err := b.Manifest(ManifestKeySpecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read disk manifest: %w", err)
	}

	return b, nil
}

// openBoltInMemory copies the disk at path to a throwaway temp file and
// opens that, which keeps the source file byte-identical for the whole
// session. bbolt has no true in-memory mode.
func openBoltInMemory(path string) (*boltBackend, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open disk: %w", ErrIO, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "aimdisk-*"+ExtBolt)
	if err != nil {
		return nil, fmt.Errorf("%w: create session copy: %w", ErrIO, err)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: copy disk: %w", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: close session copy: %w", ErrIO, err)
	}

	b, err := openBolt(tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	b.path = path
	b.tempPath = tmp.Name()

	return b, nil
}

func (b *boltBackend) Format() Format { return FormatBolt }

// indexKey builds the uniqueness key for one (chunk, signature) pair.
func indexKey(chunkID, modelSignature string) []byte {
	return []byte(chunkID + "\x00" + modelSignature)
}

// seqKey renders a bucket sequence number as a big-endian cursor key.
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func (b *boltBackend) AddChunk(chunk Chunk, rec IndexRecord) error {
	metadata, err := marshalMetadata(chunk.Metadata)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		if chunks.Get([]byte(chunk.ID)) != nil {
			return fmt.Errorf("chunk %s already exists", chunk.ID)
		}

		doc, err := json.Marshal(chunkDoc{Content: chunk.Content, Metadata: metadata})
		if err != nil {
			return fmt.Errorf("%w: encode chunk: %w", ErrSerialization, err)
		}
		if err := chunks.Put([]byte(chunk.ID), doc); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		keys := tx.Bucket(bucketIndexKeys)
		ik := indexKey(rec.ChunkID, rec.ModelSignature)
		if keys.Get(ik) != nil {
			return fmt.Errorf("index record for chunk %s under %s already exists",
				rec.ChunkID, rec.ModelSignature)
		}

		indices := tx.Bucket(bucketIndices)
		seq, err := indices.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate record sequence: %w", err)
		}

		recDoc, err := json.Marshal(indexDoc{
			ChunkID:        rec.ChunkID,
			IndexType:      rec.IndexType,
			ModelSignature: rec.ModelSignature,
			Data:           rec.Data,
		})
		if err != nil {
			return fmt.Errorf("%w: encode index record: %w", ErrSerialization, err)
		}

		if err := indices.Put(seqKey(seq), recDoc); err != nil {
			return fmt.Errorf("failed to insert index record: %w", err)
		}
		if err := keys.Put(ik, seqKey(seq)); err != nil {
			return fmt.Errorf("failed to insert index key: %w", err)
		}

		return nil
	})
}

func (b *boltBackend) Chunk(id string) (Chunk, error) {
	var chunk Chunk

	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: chunk %s", ErrNotFound, id)
		}

		var doc chunkDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to decode chunk %s: %w", id, err)
		}

		chunk = Chunk{
			ID:       id,
			Content:  doc.Content,
			Metadata: unmarshalMetadata(doc.Metadata),
		}
		return nil
	})
	if err != nil {
		return Chunk{}, err
	}

	return chunk, nil
}

func (b *boltBackend) Chunks() ([]Chunk, error) {
	var chunks []Chunk

	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var doc chunkDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("failed to decode chunk %s: %w", k, err)
			}

			chunks = append(chunks, Chunk{
				ID:       string(k),
				Content:  doc.Content,
				Metadata: unmarshalMetadata(doc.Metadata),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return chunks, nil
}

func (b *boltBackend) UpdateChunkMetadata(id string, metadata map[string]any) error {
	encoded, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)

		data := chunks.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: chunk %s", ErrNotFound, id)
		}

		var doc chunkDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to decode chunk %s: %w", id, err)
		}
		doc.Metadata = encoded

		updated, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("%w: encode chunk: %w", ErrSerialization, err)
		}

		return chunks.Put([]byte(id), updated)
	})
}

func (b *boltBackend) IndexRecords(modelSignature string) ([]IndexRecord, error) {
	var recs []IndexRecord

	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIndices).ForEach(func(k, v []byte) error {
			var doc indexDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("failed to decode index record: %w", err)
			}

			if doc.ModelSignature != modelSignature {
				return nil
			}

			recs = append(recs, IndexRecord{
				ChunkID:        doc.ChunkID,
				IndexType:      doc.IndexType,
				ModelSignature: doc.ModelSignature,
				Data:           doc.Data,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return recs, nil
}

func (b *boltBackend) Manifest(key string) (string, error) {
	var value string

	err := b.db.View(func(tx *bbolt.Tx) error {
		// A foreign bolt file has no manifest bucket at all.
		bucket := tx.Bucket(bucketManifest)
		if bucket == nil {
			return fmt.Errorf("%w: manifest key %s", ErrNotFound, key)
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: manifest key %s", ErrNotFound, key)
		}
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}

	return value, nil
}

func (b *boltBackend) Close() error {
	err := b.db.Close()

	if b.tempPath != "" {
		if rmErr := os.Remove(b.tempPath); rmErr != nil && err == nil {
			err = fmt.Errorf("%w: remove session copy: %w", ErrIO, rmErr)
		}
	}

	return err
}
