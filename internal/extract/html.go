package extract

import (
	"iter"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"luma/internal"
	"luma/internal/util"
)

// HTMLExtractor handles invoices delivered as HTML email bodies or web
// exports. Tables with a recognizable header become tabular units; when
// no table matches, the page text is emitted as a single text unit for
// pattern recognition.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

func (e *HTMLExtractor) Supports(kind internal.SourceKind) bool {
	return kind == internal.SourceHTML
}

func (e *HTMLExtractor) Open(path string) (iter.Seq[internal.RawUnit], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(f)
	f.Close()
	if err != nil {
		return nil, internal.UnsupportedFormatf("html %s: %v", path, err)
	}

	var units []internal.RawUnit
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		units = append(units, tableUnits(table)...)
	})
	if len(units) == 0 {
		text := util.NormalizeSpaces(doc.Find("body").Text())
		if text == "" {
			return nil, internal.UnsupportedFormatf("html %s: no tables and no body text", path)
		}
		units = append(units, internal.RawUnit{Kind: internal.SourceHTML, Text: text})
	}

	return func(yield func(internal.RawUnit) bool) {
		for _, u := range units {
			if !yield(u) {
				return
			}
		}
	}, nil
}

func tableUnits(table *goquery.Selection) []internal.RawUnit {
	var grid [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.TrimSpace(cell.Text()))
		})
		if len(row) > 0 {
			grid = append(grid, row)
		}
	})
	if len(grid) < 2 {
		return nil
	}

	mapping := mapColumns(grid[0])
	if len(mapping.fieldByIndex) == 0 {
		return nil
	}
	var units []internal.RawUnit
	for i, row := range grid[1:] {
		cells := mapping.cellsForRow(row)
		if cells == nil {
			continue
		}
		units = append(units, internal.RawUnit{
			Kind:  internal.SourceHTML,
			Row:   i + 2,
			Cells: cells,
		})
	}
	return units
}
