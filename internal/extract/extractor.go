package extract

import (
	"iter"

	"luma/internal"
	"luma/internal/config"
)

// Extractor turns one source file into a lazy sequence of RawUnits:
// one per PDF page, CSV row, XLSX (sheet, row) pair, or image. Open
// fails with internal.ErrUnsupportedFormat for corrupt or unreadable
// files; per-unit problems ride on RawUnit.Gap so the batch continues.
// Extractors never mutate their input files.
type Extractor interface {
	Supports(kind internal.SourceKind) bool
	Open(path string) (iter.Seq[internal.RawUnit], error)
}

// Registry returns the extractor set in capability order. The batch
// expander selects the first extractor that supports the declared kind.
func Registry(cfg config.Config) []Extractor {
	return []Extractor{
		NewPDFExtractor(cfg),
		NewImageExtractor(cfg),
		NewCSVExtractor(),
		NewXLSXExtractor(),
		NewHTMLExtractor(),
		NewTextExtractor(),
	}
}

// ForKind picks the extractor responsible for a file kind.
func ForKind(extractors []Extractor, kind internal.SourceKind) (Extractor, error) {
	for _, e := range extractors {
		if e.Supports(kind) {
			return e, nil
		}
	}
	return nil, internal.UnsupportedFormatf("no extractor for kind %q", kind)
}

func one(unit internal.RawUnit) iter.Seq[internal.RawUnit] {
	return func(yield func(internal.RawUnit) bool) {
		yield(unit)
	}
}
