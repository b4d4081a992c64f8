package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github/itish2003/pdfchat/models"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// SourceLabel is the source metadata attached to every chunk of an upload.
const SourceLabel = "uploaded_pdf"

// boundaryLevels are tried in order: paragraph, line, sentence, word. When none
// of them occurs inside an oversized span the span is cut at chunk size.
var boundaryLevels = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "? ", "! ", "。"},
	{" ", "\t"},
}

// RecursiveSplitter splits text into overlapping chunks on natural boundaries.
// Unlike textsplitter.RecursiveCharacter it keeps separators and whitespace, so
// every chunk is an exact substring of the input and the chunks, with their
// overlap removed, add back up to the input. Sizes are counted in runes.
type RecursiveSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

var _ textsplitter.TextSplitter = (*RecursiveSplitter)(nil)

// NewRecursiveSplitter validates params and returns a splitter for them.
func NewRecursiveSplitter(params models.ChunkParams) (*RecursiveSplitter, error) {
	if params.Size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", params.Size)
	}
	if params.Overlap < 0 || params.Overlap >= params.Size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", params.Size, params.Overlap)
	}
	return &RecursiveSplitter{ChunkSize: params.Size, ChunkOverlap: params.Overlap}, nil
}

// SplitText implements textsplitter.TextSplitter.
func (s *RecursiveSplitter) SplitText(text string) ([]string, error) {
	chunks, err := s.SplitChunks(text, "")
	if err != nil {
		return nil, err
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out, nil
}

// SplitChunks splits text and labels every chunk with label.
func (s *RecursiveSplitter) SplitChunks(text, label string) ([]models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	chunks := s.merge(s.split(text, 0), label)
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}
	return chunks, nil
}

type piece struct {
	text string
	n    int
}

// split breaks text into pieces no longer than the chunk size, preferring the
// coarsest boundary level that occurs in it.
func (s *RecursiveSplitter) split(text string, level int) []piece {
	n := utf8.RuneCountInString(text)
	if n <= s.ChunkSize {
		return []piece{{text: text, n: n}}
	}
	for ; level < len(boundaryLevels); level++ {
		parts := splitAfter(text, boundaryLevels[level])
		if len(parts) < 2 {
			continue
		}
		var out []piece
		for _, p := range parts {
			out = append(out, s.split(p, level+1)...)
		}
		return out
	}
	return hardCut(text, s.ChunkSize)
}

// merge packs consecutive pieces into chunks. After a chunk is emitted its
// trailing pieces, up to ChunkOverlap runes, open the next chunk.
func (s *RecursiveSplitter) merge(pieces []piece, label string) []models.Chunk {
	var (
		chunks []models.Chunk
		window []piece
		total  int
		start  int
	)
	emit := func() {
		var sb strings.Builder
		for _, p := range window {
			sb.WriteString(p.text)
		}
		chunks = append(chunks, models.Chunk{
			Text:        sb.String(),
			SourceLabel: label,
			Index:       len(chunks),
			Start:       start,
			End:         start + total,
		})
	}

	for _, p := range pieces {
		if len(window) > 0 && total+p.n > s.ChunkSize {
			emit()
			for len(window) > 0 && (total > s.ChunkOverlap || total+p.n > s.ChunkSize) {
				start += window[0].n
				total -= window[0].n
				window = window[1:]
			}
		}
		window = append(window, p)
		total += p.n
	}
	if len(window) > 0 {
		emit()
	}
	return chunks
}

// splitAfter cuts text after every occurrence of any of seps. The separator
// stays with the part it ends.
func splitAfter(text string, seps []string) []string {
	var parts []string
	for text != "" {
		cut := -1
		for _, sep := range seps {
			if i := strings.Index(text, sep); i >= 0 {
				if end := i + len(sep); cut < 0 || end < cut {
					cut = end
				}
			}
		}
		if cut < 0 || cut == len(text) {
			parts = append(parts, text)
			break
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return parts
}

// hardCut cuts text every size runes. It slices on byte offsets so invalid
// UTF-8 bytes pass through unchanged, each counted as one rune.
func hardCut(text string, size int) []piece {
	var out []piece
	for text != "" {
		end, n := 0, 0
		for end < len(text) && n < size {
			_, w := utf8.DecodeRuneInString(text[end:])
			end += w
			n++
		}
		out = append(out, piece{text: text[:end], n: n})
		text = text[end:]
	}
	return out
}

// ChunkDocuments converts chunks into langchaingo documents for indexing.
func ChunkDocuments(chunks []models.Chunk) []schema.Document {
	docs := make([]schema.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = schema.Document{
			PageContent: c.Text,
			Metadata: map[string]any{
				"source":      c.SourceLabel,
				"chunk_index": c.Index,
				"start":       c.Start,
				"end":         c.End,
			},
		}
	}
	return docs
}
