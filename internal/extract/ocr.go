package extract

import (
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	"luma/internal/config"
)

// ocrFunc turns a preprocessed page image into text. Tests swap in a
// stub so the suite runs without a tesseract installation.
type ocrFunc func(img image.Image) (string, error)

// newTesseractOCR builds the production OCR function. A fresh client
// per call keeps the cgo handle lifecycle simple; throughput is bounded
// by recognition itself, not client setup.
func newTesseractOCR(cfg config.Config) ocrFunc {
	return func(img image.Image) (string, error) {
		client := gosseract.NewClient()
		defer client.Close()
		if len(cfg.OCRLanguages) > 0 {
			if err := client.SetLanguage(cfg.OCRLanguages...); err != nil {
				return "", fmt.Errorf("ocr language: %w", err)
			}
		}
		png, err := encodePNG(img)
		if err != nil {
			return "", err
		}
		if err := client.SetImageFromBytes(png); err != nil {
			return "", fmt.Errorf("ocr image: %w", err)
		}
		text, err := client.Text()
		if err != nil {
			return "", fmt.Errorf("ocr: %w", err)
		}
		return text, nil
	}
}
