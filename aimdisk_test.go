package aimdisk

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimdisk/aimdisk/codec"
	"github.com/aimdisk/aimdisk/hnsw"
	"github.com/aimdisk/aimdisk/metric"
	"github.com/aimdisk/aimdisk/store"
)

var diskCases = []struct {
	name string
	ext  string
}{
	{name: "sqlite", ext: store.ExtSQLite},
	{name: "bolt", ext: store.ExtBolt},
}

func newTestDisk(t *testing.T, ext, signature string, optFns ...Option) (*Disk, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test"+ext)
	disk, err := Create(path, signature, optFns...)
	require.NoError(t, err)

	t.Cleanup(func() { disk.Close() })
	return disk, path
}

func randomVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()
	}
	return v
}

func TestCreateAddSearchRoundTrip(t *testing.T) {
	for _, tc := range diskCases {
		t.Run(tc.name, func(t *testing.T) {
			disk, _ := newTestDisk(t, tc.ext, "demo-4_fp32")

			chunkID, err := disk.AddChunk("hello world",
				codec.Float32([]float32{1, 0, 0, 0}), map[string]any{"a": 1})
			require.NoError(t, err)
			require.NotEmpty(t, chunkID)

			results, err := disk.Search(codec.Float32([]float32{1, 0, 0, 0}), 5)
			require.NoError(t, err)
			require.Len(t, results, 1)

			assert.Equal(t, chunkID, results[0].Chunk.ID)
			assert.Equal(t, "hello world", results[0].Chunk.Content)
			assert.Equal(t, map[string]any{"a": float64(1)}, results[0].Chunk.Metadata)
			assert.InDelta(t, 0, results[0].Distance, 1e-5)

			chunk, err := disk.GetChunk(chunkID)
			require.NoError(t, err)
			assert.Equal(t, "hello world", chunk.Content)
		})
	}
}

func TestSearchRanksByDistance(t *testing.T) {
	disk, _ := newTestDisk(t, store.ExtSQLite, "demo-4_fp32")

	east, err := disk.AddChunk("east", codec.Float32([]float32{1, 0, 0, 0}), nil)
	require.NoError(t, err)
	_, err = disk.AddChunk("north", codec.Float32([]float32{0, 1, 0, 0}), nil)
	require.NoError(t, err)
	_, err = disk.AddChunk("up", codec.Float32([]float32{0, 0, 1, 0}), nil)
	require.NoError(t, err)

	results, err := disk.Search(codec.Float32([]float32{0.9, 0.1, 0, 0}), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, east, results[0].Chunk.ID)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestSearchTopKExceedsCount(t *testing.T) {
	disk, _ := newTestDisk(t, store.ExtSQLite, "demo-4_fp32")

	for _, content := range []string{"one", "two", "three"} {
		_, err := disk.AddChunk(content, codec.Float32([]float32{1, float32(len(content)), 0, 0}), nil)
		require.NoError(t, err)
	}

	results, err := disk.Search(codec.Float32([]float32{1, 0, 0, 0}), 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestReopenReproducesSearch(t *testing.T) {
	for _, tc := range diskCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test"+tc.ext)

			disk, err := Create(path, "demo-8_fp32")
			require.NoError(t, err)

			rng := rand.New(rand.NewSource(7))
			for i := 0; i < 30; i++ {
				_, err := disk.AddChunk("chunk", codec.Float32(randomVector(rng, 8)), nil)
				require.NoError(t, err)
			}

			query := codec.Float32(randomVector(rng, 8))

			first, err := disk.Search(query, 5)
			require.NoError(t, err)
			require.Len(t, first, 5)
			require.NoError(t, disk.Close())

			reopened, err := Open(path, "demo-8_fp32")
			require.NoError(t, err)
			defer reopened.Close()

			assert.Equal(t, 30, reopened.IndexLen())

			second, err := reopened.Search(query, 5)
			require.NoError(t, err)
			require.Len(t, second, 5)

			for i := range first {
				assert.Equal(t, first[i].Chunk.ID, second[i].Chunk.ID)
				assert.InDelta(t, first[i].Distance, second[i].Distance, 1e-6)
			}
		})
	}
}

func TestOpenInMemoryLeavesFileUntouched(t *testing.T) {
	for _, tc := range diskCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test"+tc.ext)

			disk, err := Create(path, "demo-4_fp32")
			require.NoError(t, err)
			_, err = disk.AddChunk("durable one", codec.Float32([]float32{1, 0, 0, 0}), nil)
			require.NoError(t, err)
			_, err = disk.AddChunk("durable two", codec.Float32([]float32{0, 1, 0, 0}), nil)
			require.NoError(t, err)
			require.NoError(t, disk.Close())

			before, err := os.ReadFile(path)
			require.NoError(t, err)

			session, err := OpenInMemory(path, "demo-4_fp32")
			require.NoError(t, err)

			assert.Equal(t, 2, session.IndexLen())

			_, err = session.AddChunk("transient", codec.Float32([]float32{0, 0, 1, 0}), nil)
			require.NoError(t, err)

			results, err := session.Search(codec.Float32([]float32{0, 0, 1, 0}), 3)
			require.NoError(t, err)
			require.Len(t, results, 3)
			assert.Equal(t, "transient", results[0].Chunk.Content)

			require.NoError(t, session.Close())

			after, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, before, after)

			reopened, err := Open(path, "demo-4_fp32")
			require.NoError(t, err)
			defer reopened.Close()

			chunks, err := reopened.GetChunks()
			require.NoError(t, err)
			assert.Len(t, chunks, 2)
		})
	}
}

func TestUpdateChunkMetadata(t *testing.T) {
	disk, _ := newTestDisk(t, store.ExtSQLite, "demo-4_fp32")

	chunkID, err := disk.AddChunk("content", codec.Float32([]float32{1, 0, 0, 0}),
		map[string]any{"stage": "draft"})
	require.NoError(t, err)

	err = disk.UpdateChunkMetadata(chunkID, map[string]any{"stage": "final", "rev": 2})
	require.NoError(t, err)

	chunk, err := disk.GetChunk(chunkID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"stage": "final", "rev": float64(2)}, chunk.Metadata)

	err = disk.UpdateChunkMetadata("no-such-chunk", map[string]any{"stage": "final"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnsupportedSignatureDegrades(t *testing.T) {
	for _, tc := range diskCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test"+tc.ext)

			disk, err := Create(path, "demo-4_fp16")
			require.NoError(t, err)
			defer disk.Close()

			assert.Equal(t, "None (No index loaded or supported for current model signature)",
				disk.IndexDescription())

			// The chunk commits before the index step fails, so the id comes
			// back alongside the error.
			chunkID, err := disk.AddChunk("still stored",
				codec.Float32([]float32{1, 0, 0, 0}), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedIndex)
			require.NotEmpty(t, chunkID)

			chunk, err := disk.GetChunk(chunkID)
			require.NoError(t, err)
			assert.Equal(t, "still stored", chunk.Content)

			assert.Equal(t, 1, disk.IndexLen())

			results, err := disk.Search(codec.Float32([]float32{1, 0, 0, 0}), 5)
			require.NoError(t, err)
			assert.Nil(t, results)
		})
	}
}

func TestUnsupportedSignatureSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test"+store.ExtSQLite)

	disk, err := Create(path, "demo-4_fp16")
	require.NoError(t, err)

	chunkID, err := disk.AddChunk("opaque", codec.Float32([]float32{1, 0, 0, 0}), nil)
	require.Error(t, err)
	require.NoError(t, disk.Close())

	reopened, err := Open(path, "demo-4_fp16")
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.IndexLen())

	chunk, err := reopened.GetChunk(chunkID)
	require.NoError(t, err)
	assert.Equal(t, "opaque", chunk.Content)
}

func TestSignatureBindingScopesIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test"+store.ExtSQLite)

	disk, err := Create(path, "demo-4_fp32")
	require.NoError(t, err)
	_, err = disk.AddChunk("bound", codec.Float32([]float32{1, 0, 0, 0}), nil)
	require.NoError(t, err)
	require.NoError(t, disk.Close())

	// Rows filed under one signature are invisible to a session bound to
	// another; the chunks themselves stay readable.
	other, err := Open(path, "other-model")
	require.NoError(t, err)
	defer other.Close()

	assert.Equal(t, 0, other.IndexLen())

	results, err := other.Search(codec.Float32([]float32{1, 0, 0, 0}), 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	chunks, err := other.GetChunks()
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestAddChunkValidation(t *testing.T) {
	disk, _ := newTestDisk(t, store.ExtSQLite, "demo-4_fp32")

	_, err := disk.AddChunk("seed", codec.Float32([]float32{1, 0, 0, 0}), nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		vector codec.Vector
	}{
		{name: "empty vector", vector: codec.Float32(nil)},
		{name: "zero value vector", vector: codec.Vector{}},
		{name: "dimension mismatch", vector: codec.Float32([]float32{1, 0})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := disk.AddChunk("rejected", tc.vector, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	// None of the rejected adds reached the store.
	chunks, err := disk.GetChunks()
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestSearchValidation(t *testing.T) {
	disk, _ := newTestDisk(t, store.ExtSQLite, "demo-4_fp32")

	_, err := disk.AddChunk("seed", codec.Float32([]float32{1, 0, 0, 0}), nil)
	require.NoError(t, err)

	_, err = disk.Search(codec.Float32([]float32{1, 0, 0, 0}), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = disk.Search(codec.Float32([]float32{1, 0, 0, 0}), -3)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = disk.Search(codec.Vector{}, 5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = disk.Search(codec.Float32([]float32{1, 0}), 5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchEmptyDisk(t *testing.T) {
	disk, _ := newTestDisk(t, store.ExtSQLite, "demo-4_fp32")

	results, err := disk.Search(codec.Float32([]float32{1, 0, 0, 0}), 5)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestKeywordSearch(t *testing.T) {
	disk, _ := newTestDisk(t, store.ExtSQLite, "demo-4_fp32", WithKeywordIndex())

	first, err := disk.AddChunk("the quick brown fox", codec.Float32([]float32{1, 0, 0, 0}), nil)
	require.NoError(t, err)
	_, err = disk.AddChunk("a lazy afternoon", codec.Float32([]float32{0, 1, 0, 0}), nil)
	require.NoError(t, err)

	results, err := disk.KeywordSearch("quick fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, first, results[0].Chunk.ID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestKeywordSearchRebuildsOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test"+store.ExtSQLite)

	disk, err := Create(path, "demo-4_fp32")
	require.NoError(t, err)
	_, err = disk.AddChunk("persisted keywords", codec.Float32([]float32{1, 0, 0, 0}), nil)
	require.NoError(t, err)
	require.NoError(t, disk.Close())

	reopened, err := Open(path, "demo-4_fp32", WithKeywordIndex())
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.KeywordSearch("persisted", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "persisted keywords", results[0].Chunk.Content)
}

func TestKeywordSearchRequiresOptIn(t *testing.T) {
	disk, _ := newTestDisk(t, store.ExtSQLite, "demo-4_fp32")

	_, err := disk.KeywordSearch("anything", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDiskAccessors(t *testing.T) {
	disk, _ := newTestDisk(t, store.ExtBolt, "demo-4_fp32")

	version, err := disk.SpecVersion()
	require.NoError(t, err)
	assert.Equal(t, store.SpecVersion, version)

	assert.Equal(t, "demo-4_fp32", disk.ModelSignature())
	assert.Equal(t, store.FormatBolt, disk.Format())
	assert.Equal(t, "F32 (Cosine Distance)", disk.IndexDescription())
	assert.Equal(t, 0, disk.IndexLen())
}

func TestEuclideanIndexOption(t *testing.T) {
	disk, _ := newTestDisk(t, store.ExtSQLite, "demo-2_fp32",
		WithHNSWOptions(func(o *hnsw.Options) {
			o.Distance = metric.DistanceFunctionEuclidean
		}))

	assert.Equal(t, "F32 (Euclidean Distance)", disk.IndexDescription())

	_, err := disk.AddChunk("origin", codec.Float32([]float32{0, 0}), nil)
	require.NoError(t, err)
	far, err := disk.AddChunk("far", codec.Float32([]float32{3, 4}), nil)
	require.NoError(t, err)

	results, err := disk.Search(codec.Float32([]float32{3, 4}), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, far, results[0].Chunk.ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
	assert.InDelta(t, 5, results[1].Distance, 1e-5)
}

func TestMetricsCollection(t *testing.T) {
	collector := &BasicMetricsCollector{}
	disk, _ := newTestDisk(t, store.ExtSQLite, "demo-4_fp32", WithMetrics(collector))

	_, err := disk.AddChunk("one", codec.Float32([]float32{1, 0, 0, 0}), nil)
	require.NoError(t, err)
	chunkID, err := disk.AddChunk("two", codec.Float32([]float32{0, 1, 0, 0}), nil)
	require.NoError(t, err)

	_, err = disk.Search(codec.Float32([]float32{1, 0, 0, 0}), 1)
	require.NoError(t, err)
	_, err = disk.Search(codec.Float32([]float32{1, 0, 0, 0}), 0)
	require.Error(t, err)

	require.NoError(t, disk.UpdateChunkMetadata(chunkID, map[string]any{"seen": true}))

	stats := collector.Stats()
	assert.Equal(t, int64(2), stats.AddCount)
	assert.Equal(t, int64(0), stats.AddErrors)
	assert.Equal(t, int64(2), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchErrors)
	assert.Equal(t, int64(1), stats.UpdateCount)
	assert.Equal(t, int64(0), stats.UpdateErrors)
}

func TestOpenMissingDisk(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.aim"), "demo-4_fp32")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
}

func TestOpenForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.aim")
	require.NoError(t, os.WriteFile(path, []byte("this is not an identity disk at all"), 0o644))

	_, err := Open(path, "demo-4_fp32")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestCreateFormatOverridesExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd-extension.bin")

	disk, err := Create(path, "demo-4_fp32", WithFormat(store.FormatBolt))
	require.NoError(t, err)
	assert.Equal(t, store.FormatBolt, disk.Format())
	require.NoError(t, disk.Close())

	// Open sniffs the stored layout, not the extension.
	reopened, err := Open(path, "demo-4_fp32")
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, store.FormatBolt, reopened.Format())
}
