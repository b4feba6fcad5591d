package splitter

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biobyia-go/internal/model"
)

func TestNewRejectsBadSizes(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 10},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap above size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.size, tc.overlap)
			require.Error(t, err)
			var cfgErr *model.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestSplitShortTextReturnedWhole(t *testing.T) {
	s, err := New(100, 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"Short text."}, s.Split("Short text."))
}

func TestSplitEmptyText(t *testing.T) {
	s, err := New(100, 20)
	require.NoError(t, err)

	assert.Empty(t, s.Split(""))
}

func TestSplitSentenceChunksWithOverlap(t *testing.T) {
	s, err := New(40, 10)
	require.NoError(t, err)

	text := "The cat sat on the mat. The dog barked loudly. Birds fly south in winter. The end."
	chunks := s.Split(text)

	assert.Equal(t, []string{
		"The cat sat on the mat.",
		"the mat. The dog barked loudly.",
		"loudly. Birds fly south in winter.",
		"winter. The end.",
	}, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 40)
	}
}

func TestSplitOversizedSentenceKeptWhole(t *testing.T) {
	s, err := New(20, 5)
	require.NoError(t, err)

	// No sentence terminator, longer than the chunk size.
	text := "supercalifragilistic expialidocious words here"
	assert.Equal(t, []string{text}, s.Split(text))
}

func TestSplitOverlapWithoutWordBoundary(t *testing.T) {
	s, err := New(30, 5)
	require.NoError(t, err)

	text := "First enormous sentence goes here. Second enormous sentence follows."
	chunks := s.Split(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "First enormous sentence goes here.", chunks[0])
	// The five-rune tail "here." has no space, so it is carried as is.
	assert.Equal(t, "here. Second enormous sentence follows.", chunks[1])
}

func TestSplitEntry(t *testing.T) {
	s, err := New(40, 10)
	require.NoError(t, err)

	doc := model.Document{
		ArticleID: "pmid_101",
		Text:      "The cat sat on the mat. The dog barked loudly. Birds fly south in winter. The end.",
		Metadata:  map[string]any{"year": "2020"},
	}
	chunks, err := s.SplitEntry(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	for i, c := range chunks {
		assert.Equal(t, "pmid_101", c.ArticleID)
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, i, c.Metadata["chunk_index"])
		assert.Equal(t, "2020", c.Metadata["year"])
	}

	// Metadata is copied per chunk, never shared with the document.
	chunks[0].Metadata["year"] = "1999"
	assert.Equal(t, "2020", doc.Metadata["year"])
	assert.Equal(t, "2020", chunks[1].Metadata["year"])
}

func TestSplitEntryMissingArticleID(t *testing.T) {
	s, err := New(40, 10)
	require.NoError(t, err)

	_, err = s.SplitEntry(model.Document{Text: "Some text."})
	require.Error(t, err)
	var valErr *model.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestSplitBatchSkipsBadEntries(t *testing.T) {
	s, err := New(100, 20)
	require.NoError(t, err)

	docs := []model.Document{
		{ArticleID: "a1", Text: "First article."},
		{Text: "No id here."},
		{ArticleID: "a3", Text: "Third article."},
	}
	chunks := s.SplitBatch(docs)

	require.Len(t, chunks, 2)
	assert.Equal(t, "a1", chunks[0].ArticleID)
	assert.Equal(t, "a3", chunks[1].ArticleID)
}
