package extract

import (
	"fmt"
	"iter"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	"luma/internal"
	"luma/internal/config"
	"luma/internal/util"
)

// PDFExtractor emits one unit per page. Digital invoices are read from
// the text layer; pages whose layer is missing or too thin (scanned
// PDFs) are rendered and sent through OCR.
type PDFExtractor struct {
	cfg config.Config
	ocr ocrFunc
}

func NewPDFExtractor(cfg config.Config) *PDFExtractor {
	return &PDFExtractor{cfg: cfg, ocr: newTesseractOCR(cfg)}
}

func (e *PDFExtractor) Supports(kind internal.SourceKind) bool {
	return kind == internal.SourcePDF
}

func (e *PDFExtractor) Open(path string) (iter.Seq[internal.RawUnit], error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, internal.UnsupportedFormatf("pdf %s: %v", path, err)
	}
	pages := reader.NumPage()
	if pages == 0 {
		f.Close()
		return nil, internal.UnsupportedFormatf("pdf %s: no pages", path)
	}

	return func(yield func(internal.RawUnit) bool) {
		defer f.Close()

		var rendered *fitz.Document
		defer func() {
			if rendered != nil {
				rendered.Close()
			}
		}()

		for i := 1; i <= pages; i++ {
			unit := internal.RawUnit{Kind: internal.SourcePDF, Page: i}

			text := pageText(reader, i)
			if len(text) >= e.cfg.PDFMinTextChars {
				unit.Text = text
				if !yield(unit) {
					return
				}
				continue
			}

			if rendered == nil {
				doc, err := fitz.New(path)
				if err != nil {
					unit.Gap = fmt.Errorf("page %d: render: %w", i, err)
					if !yield(unit) {
						return
					}
					continue
				}
				rendered = doc
			}
			ocrText, err := e.ocrPage(rendered, i)
			if err != nil {
				unit.Gap = fmt.Errorf("page %d: %w", i, err)
			} else {
				unit.Text = ocrText
			}
			if !yield(unit) {
				return
			}
		}
	}, nil
}

func (e *PDFExtractor) ocrPage(doc *fitz.Document, page int) (string, error) {
	img, err := doc.ImageDPI(page-1, float64(e.cfg.OCRDPI))
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	text, err := e.ocr(preprocess(img))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("ocr produced no text")
	}
	return text, nil
}

// pageText pulls the text layer of one page. A page whose content
// stream cannot be decoded yields an empty string, which routes it to
// the OCR fallback instead of failing the whole document.
func pageText(reader *pdf.Reader, page int) string {
	defer func() { recover() }()
	p := reader.Page(page)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return util.NormalizeSpaces(text)
}
