package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchMatchesTerms(t *testing.T) {
	x, err := New()
	require.NoError(t, err)
	defer x.Close()

	require.NoError(t, x.Add("c1", "the quick brown fox jumps over the lazy dog"))
	require.NoError(t, x.Add("c2", "vector indexes trade accuracy for speed"))
	require.NoError(t, x.Add("c3", "a lazy afternoon by the river"))

	matches, err := x.Search("lazy", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	ids := []string{matches[0].ChunkID, matches[1].ChunkID}
	assert.ElementsMatch(t, []string{"c1", "c3"}, ids)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestSearchNoMatches(t *testing.T) {
	x, err := New()
	require.NoError(t, err)
	defer x.Close()

	require.NoError(t, x.Add("c1", "completely unrelated text"))

	matches, err := x.Search("zebra", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchLimit(t *testing.T) {
	x, err := New()
	require.NoError(t, err)
	defer x.Close()

	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		require.NoError(t, x.Add(id, "shared term everywhere"))
	}

	matches, err := x.Search("shared", 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	// A non-positive limit falls back to the default page size.
	matches, err = x.Search("shared", 0)
	require.NoError(t, err)
	assert.Len(t, matches, 4)
}

func TestEnglishAnalyzerStemming(t *testing.T) {
	x, err := New()
	require.NoError(t, err)
	defer x.Close()

	require.NoError(t, x.Add("c1", "indexing documents for retrieval"))

	// The "en" analyzer stems both sides, so "indexed" reaches "indexing".
	matches, err := x.Search("indexed", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].ChunkID)
}
