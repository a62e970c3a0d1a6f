package aimdisk

import (
	"errors"
	"fmt"

	"github.com/aimdisk/aimdisk/store"
)

// Error kinds surfaced by disk operations. Callers match them with
// errors.Is; the wrapped chain keeps the lower-level detail.
var (
	// ErrStorage reports a failure inside the storage engine.
	ErrStorage = errors.New("aimdisk: storage backend failure")

	// ErrIO reports a filesystem-level failure around the disk file.
	ErrIO = errors.New("aimdisk: io failure")

	// ErrSerialization reports metadata that could not be encoded for
	// storage. Malformed metadata already on disk does not raise this;
	// it reads back as an empty map.
	ErrSerialization = errors.New("aimdisk: serialization failure")

	// ErrLock reports a broken consistency guarantee between the durable
	// rows and the in-memory index, the moral equivalent of a poisoned
	// lock. A disk that returns this should be reopened.
	ErrLock = errors.New("aimdisk: lock failure")

	// ErrInvalidInput reports arguments the operation cannot accept, such
	// as a vector whose representation or length disagrees with the index.
	ErrInvalidInput = errors.New("aimdisk: invalid input")

	// ErrNotFound reports a chunk id with no stored row.
	ErrNotFound = errors.New("aimdisk: not found")

	// ErrUnsupportedIndex reports a mutation against a disk whose model
	// signature has no index in this build.
	ErrUnsupportedIndex = errors.New("aimdisk: unsupported index")
)

// translateStoreError maps store-layer failures onto the public error
// kinds, keeping the original chain wrapped underneath.
func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrSerialization):
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	case errors.Is(err, store.ErrIO):
		return fmt.Errorf("%w: %w", ErrIO, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}
