package extract

import (
	"fmt"
	"iter"
	"strings"

	"github.com/disintegration/imaging"

	"luma/internal"
	"luma/internal/config"
)

// ImageExtractor handles photographed or scanned invoices (png, jpg,
// tiff). One image, one unit.
type ImageExtractor struct {
	cfg config.Config
	ocr ocrFunc
}

func NewImageExtractor(cfg config.Config) *ImageExtractor {
	return &ImageExtractor{cfg: cfg, ocr: newTesseractOCR(cfg)}
}

func (e *ImageExtractor) Supports(kind internal.SourceKind) bool {
	return kind == internal.SourceImage
}

func (e *ImageExtractor) Open(path string) (iter.Seq[internal.RawUnit], error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, internal.UnsupportedFormatf("image %s: %v", path, err)
	}

	return func(yield func(internal.RawUnit) bool) {
		unit := internal.RawUnit{Kind: internal.SourceImage, Page: 1}
		text, err := e.ocr(preprocess(img))
		if err != nil {
			unit.Gap = fmt.Errorf("ocr: %w", err)
		} else if strings.TrimSpace(text) == "" {
			unit.Gap = fmt.Errorf("ocr produced no text")
		} else {
			unit.Text = strings.TrimSpace(text)
		}
		yield(unit)
	}, nil
}
