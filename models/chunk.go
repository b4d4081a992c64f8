package models

import (
	"fmt"
	"strings"
)

// Chunk is a contiguous slice of the extracted document text. Start and End are
// rune offsets into that text.
type Chunk struct {
	Text        string `json:"text"`
	SourceLabel string `json:"source_label"`
	Index       int    `json:"index"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
}

// AnalysisMode selects the chunking parameters used when a document is indexed.
type AnalysisMode string

const (
	ModeFast     AnalysisMode = "fast"
	ModePrecise  AnalysisMode = "precise"
	ModeBalanced AnalysisMode = "balanced"
)

// ChunkParams is a chunk_size / chunk_overlap pair, both in characters.
type ChunkParams struct {
	Size    int `json:"chunk_size"`
	Overlap int `json:"chunk_overlap"`
}

// Modes lists the analysis modes in the order they are offered to users.
var Modes = []AnalysisMode{ModeFast, ModePrecise, ModeBalanced}

// Params returns the chunking parameters of the mode.
func (m AnalysisMode) Params() ChunkParams {
	switch m {
	case ModeFast:
		return ChunkParams{Size: 1500, Overlap: 75}
	case ModePrecise:
		return ChunkParams{Size: 800, Overlap: 150}
	default:
		return ChunkParams{Size: 1000, Overlap: 100}
	}
}

// Label is the human readable name of the mode.
func (m AnalysisMode) Label() string {
	switch m {
	case ModeFast:
		return "Fast analysis"
	case ModePrecise:
		return "Precise analysis"
	case ModeBalanced:
		return "Balanced analysis"
	}
	return string(m)
}

// ParseMode accepts a mode name case-insensitively.
func ParseMode(s string) (AnalysisMode, error) {
	m := AnalysisMode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown analysis mode %q", s)
}
