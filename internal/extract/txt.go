package extract

import (
	"iter"
	"os"
	"strings"

	"luma/internal"
)

// TextExtractor covers .txt dumps, typically OCR output saved by hand
// or plain-text invoice copies. The whole file is one unit.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Supports(kind internal.SourceKind) bool {
	return kind == internal.SourceText
}

func (e *TextExtractor) Open(path string) (iter.Seq[internal.RawUnit], error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, internal.UnsupportedFormatf("txt %s: empty file", path)
	}
	return one(internal.RawUnit{Kind: internal.SourceText, Text: text}), nil
}
