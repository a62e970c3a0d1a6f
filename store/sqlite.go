package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// Rollback-journal mode keeps the disk a single self-contained file, so no
// WAL side files accompany it and a read session leaves the bytes on disk
// untouched.
const sqliteDSNOptions = "?_pragma=foreign_keys(1)"

// sqliteBackend is the relational layout behind .aim files.
type sqliteBackend struct {
	db   *sql.DB
	path string
}

func createSQLite(path string) (*sqliteBackend, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: remove previous disk: %w", ErrIO, err)
	}

	db, err := sql.Open("sqlite", path+sqliteDSNOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	b := &sqliteBackend{db: db, path: path}

	if err := b.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return b, nil
}

func openSQLite(path string) (*sqliteBackend, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: stat disk: %w", ErrIO, err)
	}

	db, err := sql.Open("sqlite", path+sqliteDSNOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	b := &sqliteBackend{db: db, path: path}

	if _, err := b.Manifest(ManifestKeySpecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read disk manifest: %w", err)
	}

	return b, nil
}

// openSQLiteInMemory copies the disk at path into a private in-memory
// database. The source is read through an ATTACH and never written.
func openSQLiteInMemory(path string) (*sqliteBackend, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: stat disk: %w", ErrIO, err)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// Every pool connection would get its own empty memory database; the
	// attach, the copy and all later statements must share one.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping in-memory database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	b := &sqliteBackend{db: db, path: path}

	if err := b.copyFrom(path); err != nil {
		db.Close()
		return nil, err
	}

	return b, nil
}

// initialize applies the schema and writes the manifest of a fresh disk.
func (b *sqliteBackend) initialize() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	manifest := [][2]string{
		{ManifestKeySpecVersion, SpecVersion},
		{ManifestKeyCreatedAt, time.Now().UTC().Format(time.RFC3339)},
	}

	for _, entry := range manifest {
		if _, err := tx.Exec(
			"INSERT INTO manifest (key, value) VALUES (?, ?)",
			entry[0], entry[1],
		); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	return nil
}

// copyFrom clones the tables of the disk at path into this database,
// preserving index_id assignment so record order survives the copy.
func (b *sqliteBackend) copyFrom(path string) error {
	// SQLite refuses ATTACH inside a transaction, so the attach brackets
	// the copying transaction instead of joining it.
	if _, err := b.db.Exec("ATTACH DATABASE ? AS src", path); err != nil {
		return fmt.Errorf("failed to attach source disk: %w", err)
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	copyErr := func() error {
		tx, err := b.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(string(schema)); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}

		copies := []string{
			"INSERT INTO main.manifest (key, value) SELECT key, value FROM src.manifest",
			"INSERT INTO main.chunks (chunk_id, content, metadata) SELECT chunk_id, content, metadata FROM src.chunks",
			"INSERT INTO main.indices (index_id, chunk_id, index_type, model_signature, data) " +
				"SELECT index_id, chunk_id, index_type, model_signature, data FROM src.indices",
		}

		for _, stmt := range copies {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to copy disk contents: %w", err)
			}
		}

		return tx.Commit()
	}()

	if _, err := b.db.Exec("DETACH DATABASE src"); err != nil && copyErr == nil {
		copyErr = fmt.Errorf("failed to detach source disk: %w", err)
	}

	return copyErr
}

func (b *sqliteBackend) Format() Format { return FormatSQLite }

func (b *sqliteBackend) AddChunk(chunk Chunk, rec IndexRecord) error {
	metadata, err := marshalMetadata(chunk.Metadata)
	if err != nil {
		return err
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO chunks (chunk_id, content, metadata) VALUES (?, ?, ?)",
		chunk.ID, chunk.Content, metadata,
	); err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO indices (chunk_id, index_type, model_signature, data) VALUES (?, ?, ?, ?)",
		rec.ChunkID, rec.IndexType, rec.ModelSignature, rec.Data,
	); err != nil {
		return fmt.Errorf("failed to insert index record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Chunk(id string) (Chunk, error) {
	var content string
	var metadata sql.NullString

	err := b.db.QueryRow(
		"SELECT content, metadata FROM chunks WHERE chunk_id = ?", id,
	).Scan(&content, &metadata)
	if err != nil {
		if err == sql.ErrNoRows {
			return Chunk{}, fmt.Errorf("%w: chunk %s", ErrNotFound, id)
		}
		return Chunk{}, fmt.Errorf("failed to get chunk: %w", err)
	}

	return Chunk{
		ID:       id,
		Content:  content,
		Metadata: unmarshalMetadata(metadata.String),
	}, nil
}

func (b *sqliteBackend) Chunks() ([]Chunk, error) {
	rows, err := b.db.Query("SELECT chunk_id, content, metadata FROM chunks ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var id, content string
		var metadata sql.NullString

		if err := rows.Scan(&id, &content, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		chunks = append(chunks, Chunk{
			ID:       id,
			Content:  content,
			Metadata: unmarshalMetadata(metadata.String),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	return chunks, nil
}

func (b *sqliteBackend) UpdateChunkMetadata(id string, metadata map[string]any) error {
	encoded, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	res, err := b.db.Exec("UPDATE chunks SET metadata = ? WHERE chunk_id = ?", encoded, id)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: chunk %s", ErrNotFound, id)
	}

	return nil
}

func (b *sqliteBackend) IndexRecords(modelSignature string) ([]IndexRecord, error) {
	rows, err := b.db.Query(
		"SELECT chunk_id, index_type, model_signature, data FROM indices "+
			"WHERE model_signature = ? ORDER BY index_id",
		modelSignature,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query index records: %w", err)
	}
	defer rows.Close()

	var recs []IndexRecord
	for rows.Next() {
		var rec IndexRecord
		if err := rows.Scan(&rec.ChunkID, &rec.IndexType, &rec.ModelSignature, &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to scan index record: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index records: %w", err)
	}

	return recs, nil
}

func (b *sqliteBackend) Manifest(key string) (string, error) {
	var value string

	err := b.db.QueryRow("SELECT value FROM manifest WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("%w: manifest key %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to read manifest: %w", err)
	}

	return value, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
