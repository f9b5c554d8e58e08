package denoise

import (
	"image"
	"math"
)

// nlMeans averages pixels whose surrounding patches look alike, not
// just pixels that are nearby. Patch similarity is measured on
// luminance; the resulting weight is applied to all three channels.
// templateWindow and searchWindow are full widths and expected odd.
func nlMeans(src *image.NRGBA, h float64, templateWindow, searchWindow int) *image.NRGBA {
	b := src.Bounds()
	w, ht := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, ht))

	// Luminance plane for patch comparison.
	lum := make([]float64, w*ht)
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			lum[y*w+x] = 0.299*float64(src.Pix[i]) + 0.587*float64(src.Pix[i+1]) + 0.114*float64(src.Pix[i+2])
		}
	}

	tr := templateWindow / 2
	sr := searchWindow / 2
	patchSize := float64((2*tr + 1) * (2*tr + 1))
	h2 := h * h

	patchDist := func(x1, y1, x2, y2 int) float64 {
		var sum float64
		for py := -tr; py <= tr; py++ {
			r1 := clampInt(y1+py, 0, ht-1) * w
			r2 := clampInt(y2+py, 0, ht-1) * w
			for px := -tr; px <= tr; px++ {
				c1 := clampInt(x1+px, 0, w-1)
				c2 := clampInt(x2+px, 0, w-1)
				d := lum[r1+c1] - lum[r2+c2]
				sum += d * d
			}
		}
		return sum / patchSize
	}

	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			var sumR, sumG, sumB, sumW float64
			for dy := -sr; dy <= sr; dy++ {
				ny := clampInt(y+dy, 0, ht-1)
				for dx := -sr; dx <= sr; dx++ {
					nx := clampInt(x+dx, 0, w-1)
					wgt := math.Exp(-patchDist(x, y, nx, ny) / h2)
					ni := src.PixOffset(b.Min.X+nx, b.Min.Y+ny)
					sumR += wgt * float64(src.Pix[ni])
					sumG += wgt * float64(src.Pix[ni+1])
					sumB += wgt * float64(src.Pix[ni+2])
					sumW += wgt
				}
			}

			si := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			di := dst.PixOffset(x, y)
			dst.Pix[di] = clampByte(sumR / sumW)
			dst.Pix[di+1] = clampByte(sumG / sumW)
			dst.Pix[di+2] = clampByte(sumB / sumW)
			dst.Pix[di+3] = src.Pix[si+3]
		}
	}
	return dst
}
