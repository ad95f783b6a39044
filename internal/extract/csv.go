package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"luma/internal"
)

// CSVExtractor reads delimited supplier ledgers. Files exported by
// Spanish ERPs are frequently semicolon separated and Windows-1252
// encoded, so both are sniffed before parsing.
type CSVExtractor struct{}

func NewCSVExtractor() *CSVExtractor {
	return &CSVExtractor{}
}

func (e *CSVExtractor) Supports(kind internal.SourceKind) bool {
	return kind == internal.SourceCSV
}

func (e *CSVExtractor) Open(path string) (iter.Seq[internal.RawUnit], error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if !utf8.Valid(raw) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, internal.UnsupportedFormatf("csv %s: undecodable byte stream", path)
		}
		raw = decoded
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = sniffDelimiter(raw)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, internal.UnsupportedFormatf("csv %s: no header row", path)
	}
	mapping := mapColumns(headers)

	return func(yield func(internal.RawUnit) bool) {
		rowNum := 1
		for {
			row, err := reader.Read()
			if err == io.EOF {
				return
			}
			rowNum++
			if err != nil {
				unit := internal.RawUnit{
					Kind: internal.SourceCSV,
					Row:  rowNum,
					Gap:  fmt.Errorf("csv row %d: %w", rowNum, err),
				}
				if !yield(unit) {
					return
				}
				continue
			}
			cells := mapping.cellsForRow(row)
			if cells == nil {
				continue
			}
			unit := internal.RawUnit{
				Kind:  internal.SourceCSV,
				Row:   rowNum,
				Cells: cells,
			}
			if !yield(unit) {
				return
			}
		}
	}, nil
}

// sniffDelimiter inspects the header line. Semicolon wins when it
// appears at all, since Spanish locales use the comma as decimal mark.
func sniffDelimiter(raw []byte) rune {
	line := raw
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		line = raw[:idx]
	}
	header := string(line)
	if strings.Count(header, ";") > 0 {
		return ';'
	}
	if strings.Count(header, "\t") > strings.Count(header, ",") {
		return '\t'
	}
	return ','
}
