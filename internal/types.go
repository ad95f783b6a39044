package internal

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type SourceKind string

const (
	SourcePDF   SourceKind = "pdf"
	SourceCSV   SourceKind = "csv"
	SourceXLSX  SourceKind = "xlsx"
	SourceImage SourceKind = "image"
	SourceHTML  SourceKind = "html"
	SourceText  SourceKind = "txt"
	SourceEmail SourceKind = "eml"
)

// KindForFilename maps a file name to a SourceKind by extension.
// Unknown extensions return false.
func KindForFilename(name string) (SourceKind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return SourcePDF, true
	case ".csv":
		return SourceCSV, true
	case ".xlsx", ".xls":
		return SourceXLSX, true
	case ".jpg", ".jpeg", ".png":
		return SourceImage, true
	case ".html", ".htm":
		return SourceHTML, true
	case ".txt":
		return SourceText, true
	case ".eml":
		return SourceEmail, true
	default:
		return "", false
	}
}

type Category string

const (
	CategoryElectricity Category = "electricity"
	CategoryNaturalGas  Category = "natural_gas"
	CategoryDiesel      Category = "diesel"
	CategoryGasoline    Category = "gasoline"
	CategoryFuelOil     Category = "fuel_oil"
	CategoryLPG         Category = "lpg"
	CategoryFreight     Category = "freight"
	CategoryUnknown     Category = "unknown"
)

// ScopeFor returns the GHG Protocol scope for a category: purchased
// electricity is scope 2, combustion fuels scope 1, freight scope 3.
func ScopeFor(category Category) *int {
	var scope int
	switch category {
	case CategoryElectricity:
		scope = 2
	case CategoryNaturalGas, CategoryDiesel, CategoryGasoline, CategoryFuelOil, CategoryLPG:
		scope = 1
	case CategoryFreight:
		scope = 3
	default:
		return nil
	}
	return &scope
}

// RawUnit is one indivisible piece of source material: a PDF page, a
// CSV/XLSX row, or an image. Extractors produce them, recognition
// consumes them; they are never persisted.
type RawUnit struct {
	Kind  SourceKind
	Sheet string
	Row   int // 1-based data row, 0 when not tabular
	Page  int // 1-based page, 0 when not paged
	Text  string
	Cells map[string]string // canonical field name -> raw cell value
	Gap   error             // per-unit extraction problem, nil when clean
}

// Field names shared between recognition rules and tabular column mapping.
const (
	FieldSupplier          = "supplier"
	FieldCategory          = "category"
	FieldInvoiceNumber     = "invoice_number"
	FieldIssueDate         = "issue_date"
	FieldPeriodStart       = "period_start"
	FieldPeriodEnd         = "period_end"
	FieldUsageValue        = "usage_value"
	FieldUsageUnit         = "usage_unit"
	FieldAmountTotal       = "amount_total"
	FieldCurrency          = "currency"
	FieldEmissionFactor    = "emission_factor"
	FieldFreightWeight     = "freight_weight"
	FieldFreightWeightUnit = "freight_weight_unit"
)

// ExtractedFields is the output of the recognition step: recognized
// field name -> raw string value, plus which rule matched and which of
// its expected fields were found.
type ExtractedFields struct {
	Fields   map[string]string
	Rule     string
	Found    []string
	Expected []string
}

type RecordStatus string

const (
	StatusProcessed   RecordStatus = "processed"
	StatusNeedsReview RecordStatus = "needs_review"
)

// Record meta keys for per-record degradation markers.
const (
	MetaGap         = "gap"
	MetaStaleFactor = "stale_factor"
	MetaSheet       = "sheet"
	MetaRow         = "row"
	MetaPage        = "page"
	MetaSourceKind  = "source_kind"
	MetaRule        = "rule"
	MetaAttachment  = "attachment"
)

// Gap marker values stored under MetaGap.
const (
	GapExtraction     = "extraction_gap"
	GapFactorNotFound = "factor_not_found"
	GapUnitMismatch   = "unit_mismatch"
)

// UsageRecord is the durable output unit: one normalized, emissions
// annotated invoice line. Immutable after the pipeline emits it.
// CO2eKg is set if and only if both UsageValue and a resolved
// EmissionFactor are present; otherwise the record is a partial
// extraction, never a silent zero.
type UsageRecord struct {
	Supplier             *string        `json:"supplier"`
	Category             Category       `json:"category"`
	Scope                *int           `json:"scope"`
	PeriodStart          *time.Time     `json:"periodStart"`
	PeriodEnd            *time.Time     `json:"periodEnd"`
	IssueDate            *time.Time     `json:"issueDate"`
	UsageValue           *float64       `json:"usageValue"`
	UsageUnit            *string        `json:"usageUnit"`
	AmountTotal          *float64       `json:"amountTotal"`
	Currency             string         `json:"currency"`
	InvoiceNumber        *string        `json:"invoiceNumber"`
	EmissionFactor       *float64       `json:"emissionFactor"`
	EmissionFactorSource *string        `json:"emissionFactorSource"`
	CO2eKg               *float64       `json:"co2eKg"`
	Confidence           float64        `json:"confidence"`
	NeedsReview          bool           `json:"needsReview"`
	Meta                 map[string]any `json:"meta"`
}

// EmissionFactor is one versioned conversion constant. At most one
// factor may be current for a (region, category, scope) key at any
// instant: validity windows for the same key must not overlap.
type EmissionFactor struct {
	Region     string     `json:"region"`
	Category   Category   `json:"category"`
	Scope      int        `json:"scope"`
	Value      float64    `json:"value"` // kg CO2e per Unit
	Unit       string     `json:"unit"`
	Source     string     `json:"source"`
	ValidFrom  time.Time  `json:"validFrom"`
	ValidUntil *time.Time `json:"validUntil"` // nil = open ended
}

// RegionGlobal is the fallback region when no region-specific factor
// applies.
const RegionGlobal = "GLOBAL"

// ErrUnsupportedFormat aborts the whole file: the caller must reject
// the upload. Every row/page-level problem degrades into a partial,
// flagged record instead.
var ErrUnsupportedFormat = errors.New("unsupported format")

func UnsupportedFormatf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, fmt.Sprintf(format, args...))
}

// UploadRow mirrors one row of the uploads table: a stored source file
// awaiting or finished processing.
type UploadRow struct {
	ID         int
	FileName   string
	Kind       string
	Hash       string
	Status     string
	RawRef     string
	Region     string
	ReceivedAt string
	Provider   string
	MessageID  string
}

// FetchedMailMessage is a raw invoice email pulled by a mail connector.
type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
