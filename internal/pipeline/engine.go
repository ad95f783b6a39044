package pipeline

import (
	"iter"
	"path/filepath"

	"luma/internal"
	"luma/internal/config"
	"luma/internal/extract"
	"luma/internal/factors"
	"luma/internal/recognize"
)

// Engine runs the full intake pipeline: detect format, extract raw
// units, recognize fields, normalize, compute emissions. One usage
// record per invoice line.
type Engine struct {
	cfg        config.Config
	extractors []extract.Extractor
	recognizer *recognize.Recognizer
	calc       *Calculator
}

func NewEngine(cfg config.Config, table *factors.Table) *Engine {
	return &Engine{
		cfg:        cfg,
		extractors: extract.Registry(cfg),
		recognizer: recognize.New(),
		calc:       NewCalculator(table),
	}
}

// Summary counts one extraction run.
type Summary struct {
	Records int
	Flagged int
}

// Extract opens path and yields usage records lazily, in source order.
// The file is opened eagerly so unreadable or unsupported files fail
// before the first record; per-row and per-page problems degrade into
// flagged records instead.
func (e *Engine) Extract(path string, region string) (iter.Seq[internal.UsageRecord], error) {
	kind, ok := internal.KindForFilename(filepath.Base(path))
	if !ok {
		return nil, internal.UnsupportedFormatf("unrecognized extension: %s", filepath.Base(path))
	}
	return e.ExtractKind(path, kind, region)
}

func (e *Engine) ExtractKind(path string, kind internal.SourceKind, region string) (iter.Seq[internal.UsageRecord], error) {
	extractor, err := extract.ForKind(e.extractors, kind)
	if err != nil {
		return nil, err
	}
	units, err := extractor.Open(path)
	if err != nil {
		return nil, err
	}

	return func(yield func(internal.UsageRecord) bool) {
		for unit := range units {
			if !yield(e.record(unit, region)) {
				return
			}
		}
	}, nil
}

// ExtractAll drains Extract into a slice with run counters.
func (e *Engine) ExtractAll(path string, region string) ([]internal.UsageRecord, Summary, error) {
	seq, err := e.Extract(path, region)
	if err != nil {
		return nil, Summary{}, err
	}
	var records []internal.UsageRecord
	var summary Summary
	for record := range seq {
		records = append(records, record)
		summary.Records++
		if record.NeedsReview {
			summary.Flagged++
		}
	}
	return records, summary, nil
}

func (e *Engine) record(unit internal.RawUnit, region string) internal.UsageRecord {
	if unit.Gap != nil {
		return gapRecord(unit, unit.Gap.Error())
	}
	fields, ok := e.recognizer.Recognize(unit)
	if !ok {
		return gapRecord(unit, "no recognizable fields")
	}
	record := BuildRecord(fields, unit, e.cfg)
	e.calc.Apply(&record, region)
	return record
}

// gapRecord materializes a unit that produced no usable fields: empty
// payload, zero confidence, flagged, with the reason in meta.
func gapRecord(unit internal.RawUnit, reason string) internal.UsageRecord {
	meta := unitMeta(unit, "")
	meta[internal.MetaGap] = internal.GapExtraction
	meta["gap_reason"] = reason
	return internal.UsageRecord{
		Category:    internal.CategoryUnknown,
		Currency:    "EUR",
		Confidence:  0,
		NeedsReview: true,
		Meta:        meta,
	}
}
