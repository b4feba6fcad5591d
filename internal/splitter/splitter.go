// Package splitter cuts document text into retrieval-sized chunks along
// sentence boundaries, carrying a word-aligned overlap between neighbours.
package splitter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"biobyia-go/internal/model"
	"biobyia-go/pkg/log"
)

// sentenceBoundary matches the gap after a sentence terminator. The
// terminator itself stays with the sentence on its left.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// Splitter produces chunks of at most chunkSize runes, except when a
// single sentence is longer than chunkSize, in which case it is kept whole.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, model.NewConfigurationError("chunk_size", "must be positive")
	}
	if chunkOverlap < 0 {
		return nil, model.NewConfigurationError("chunk_overlap", "must not be negative")
	}
	if chunkSize <= chunkOverlap {
		return nil, model.NewConfigurationError("chunk_size", "must be greater than chunk_overlap")
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split breaks text into chunks. Text at or under the chunk size is
// returned as a single chunk unchanged. Lengths are counted in runes.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return []string{}
	}
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}

	sentences := splitSentences(text)
	chunks := make([]string, 0, len(sentences))
	current := ""

	for _, sentence := range sentences {
		potential := sentence
		if current != "" {
			potential = current + " " + sentence
		}
		if utf8.RuneCountInString(potential) > s.chunkSize && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = s.overlapTail(current) + " " + sentence
		} else {
			current = potential
		}
	}
	if trimmed := strings.TrimSpace(current); trimmed != "" {
		chunks = append(chunks, trimmed)
	}
	return chunks
}

// SplitEntry chunks one document and stamps each chunk with the article id,
// its position and a copy of the document metadata.
func (s *Splitter) SplitEntry(doc model.Document) ([]model.Chunk, error) {
	if doc.ArticleID == "" {
		return nil, model.NewValidationError("split", "document has no article id")
	}

	pieces := s.Split(doc.Text)
	chunks := make([]model.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		metadata := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		metadata["chunk_index"] = i
		chunks = append(chunks, model.Chunk{
			ArticleID:  doc.ArticleID,
			ChunkIndex: i,
			Text:       piece,
			Metadata:   metadata,
		})
	}
	return chunks, nil
}

// SplitBatch chunks every document, skipping entries that fail so one bad
// record cannot sink the batch.
func (s *Splitter) SplitBatch(docs []model.Document) []model.Chunk {
	chunks := make([]model.Chunk, 0, len(docs))
	for _, doc := range docs {
		entryChunks, err := s.SplitEntry(doc)
		if err != nil {
			log.Warnf("[Splitter] skipping article %q: %v", doc.ArticleID, err)
			continue
		}
		chunks = append(chunks, entryChunks...)
	}
	return chunks
}

// overlapTail returns the last chunkOverlap runes of text, advanced to the
// next word boundary so the overlap never starts mid-word.
func (s *Splitter) overlapTail(text string) string {
	runes := []rune(text)
	if len(runes) <= s.chunkOverlap {
		return text
	}
	tail := string(runes[len(runes)-s.chunkOverlap:])
	if firstSpace := strings.Index(tail, " "); firstSpace > 0 {
		tail = tail[firstSpace+1:]
	}
	return tail
}

// splitSentences cuts text after each sentence terminator that is followed
// by whitespace, discarding blank fragments.
func splitSentences(text string) []string {
	locs := sentenceBoundary.FindAllStringIndex(text, -1)
	sentences := make([]string, 0, len(locs)+1)
	start := 0
	for _, loc := range locs {
		// loc[0] is the terminator byte; keep it with the sentence.
		if piece := strings.TrimSpace(text[start : loc[0]+1]); piece != "" {
			sentences = append(sentences, piece)
		}
		start = loc[1]
	}
	if piece := strings.TrimSpace(text[start:]); piece != "" {
		sentences = append(sentences, piece)
	}
	return sentences
}
