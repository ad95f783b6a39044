package extract

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
)

// preprocess prepares a scan for OCR: grayscale, light blur to knock
// out scanner noise, then Otsu binarization. Mirrors the usual
// desaturate/threshold pipeline for printed invoices.
func preprocess(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	blurred := imaging.Blur(gray, 0.8)
	return binarize(blurred)
}

// binarize applies a global Otsu threshold.
func binarize(img *image.NRGBA) image.Image {
	bounds := img.Bounds()
	var hist [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[img.NRGBAAt(x, y).R]++
		}
	}
	threshold := otsuThreshold(hist, bounds.Dx()*bounds.Dy())

	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.NRGBAAt(x, y).R > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// otsuThreshold finds the gray level that maximizes between-class
// variance over the histogram.
func otsuThreshold(hist [256]int, total int) uint8 {
	if total == 0 {
		return 128
	}
	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumBack, weightBack float64
	var best float64
	var threshold uint8
	for i, n := range hist {
		weightBack += float64(n)
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(i) * float64(n)
		meanBack := sumBack / weightBack
		meanFore := (sum - sumBack) / weightFore
		diff := meanBack - meanFore
		between := weightBack * weightFore * diff * diff
		if between > best {
			best = between
			threshold = uint8(i)
		}
	}
	return threshold
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
