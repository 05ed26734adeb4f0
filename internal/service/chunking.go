package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls chunking for document embeddings.
type ChunkConfig struct {
	MaxChars int
	MinChars int
	Overlap  int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1200,
		MinChars: 400,
		Overlap:  200,
	}
}

// Chunk is one bounded segment of a document. Text carries up to Overlap
// runes of trailing context from the previous segment so a phrase spanning a
// cut is retrievable from at least one chunk; Span is the non-overlapping
// portion. Concatenating all Spans reproduces the source text exactly.
type Chunk struct {
	Index int
	Text  string
	Span  string
}

// splitChunks cuts text into ordered chunks of at most MaxChars runes
// (plus overlap context). Cut points prefer paragraph boundaries, then
// sentence ends, then whitespace, falling back to a hard cut when a single
// sentence exceeds the budget. Output is deterministic for identical input
// and config.
func splitChunks(text string, cfg ChunkConfig) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.MinChars >= cfg.MaxChars {
		cfg.MinChars = cfg.MaxChars / 2
	}
	if cfg.Overlap >= cfg.MaxChars {
		cfg.Overlap = cfg.MaxChars / 2
	}

	runes := []rune(text)
	cuts := []int{0}
	pos := 0
	for len(runes)-pos > cfg.MaxChars {
		cut := findCut(runes, pos, pos+cfg.MaxChars, pos+cfg.MinChars)
		cuts = append(cuts, cut)
		pos = cut
	}
	cuts = append(cuts, len(runes))

	chunks := make([]Chunk, 0, len(cuts)-1)
	for i := 0; i < len(cuts)-1; i++ {
		start, end := cuts[i], cuts[i+1]
		ctxStart := start - cfg.Overlap
		if ctxStart < 0 {
			ctxStart = 0
		}
		chunks = append(chunks, Chunk{
			Index: i,
			Text:  string(runes[ctxStart:end]),
			Span:  string(runes[start:end]),
		})
	}
	return chunks
}

// findCut picks a cut point in (minCut, end], preferring a paragraph
// boundary, then a sentence end, then any whitespace. Returns end (a hard
// cut) when no boundary exists in the window.
func findCut(runes []rune, start, end, minCut int) int {
	if minCut <= start {
		minCut = start + 1
	}

	for i := end; i > minCut; i-- {
		if runes[i-1] == '\n' && i-2 >= start && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > minCut; i-- {
		if isSentenceEnd(runes[i-1]) && i < len(runes) && unicode.IsSpace(runes[i]) {
			return i
		}
	}
	for i := end; i > minCut; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
