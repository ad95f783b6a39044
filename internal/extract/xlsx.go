package extract

import (
	"fmt"
	"iter"

	"github.com/xuri/excelize/v2"

	"luma/internal"
)

// XLSXExtractor walks every sheet of a workbook and emits one unit per
// populated data row. Sheets without a recognizable header contribute
// nothing.
type XLSXExtractor struct{}

func NewXLSXExtractor() *XLSXExtractor {
	return &XLSXExtractor{}
}

func (e *XLSXExtractor) Supports(kind internal.SourceKind) bool {
	return kind == internal.SourceXLSX
}

func (e *XLSXExtractor) Open(path string) (iter.Seq[internal.RawUnit], error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, internal.UnsupportedFormatf("xlsx %s: %v", path, err)
	}

	return func(yield func(internal.RawUnit) bool) {
		defer f.Close()
		for _, sheet := range f.GetSheetList() {
			if !yieldSheet(f, sheet, yield) {
				return
			}
		}
	}, nil
}

func yieldSheet(f *excelize.File, sheet string, yield func(internal.RawUnit) bool) bool {
	rows, err := f.Rows(sheet)
	if err != nil {
		return yield(internal.RawUnit{
			Kind:  internal.SourceXLSX,
			Sheet: sheet,
			Gap:   fmt.Errorf("sheet %s: %w", sheet, err),
		})
	}
	defer rows.Close()

	var mapping columnMapping
	rowNum := 0
	for rows.Next() {
		rowNum++
		cols, err := rows.Columns()
		if err != nil {
			if !yield(internal.RawUnit{
				Kind:  internal.SourceXLSX,
				Sheet: sheet,
				Row:   rowNum,
				Gap:   fmt.Errorf("sheet %s row %d: %w", sheet, rowNum, err),
			}) {
				return false
			}
			continue
		}
		if rowNum == 1 {
			mapping = mapColumns(cols)
			continue
		}
		if len(mapping.fieldByIndex) == 0 {
			// header row did not match any known columns
			return true
		}
		cells := mapping.cellsForRow(cols)
		if cells == nil {
			continue
		}
		if !yield(internal.RawUnit{
			Kind:  internal.SourceXLSX,
			Sheet: sheet,
			Row:   rowNum,
			Cells: cells,
		}) {
			return false
		}
	}
	return true
}
