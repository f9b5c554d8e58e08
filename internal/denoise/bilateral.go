package denoise

import (
	"image"
	"math"
)

// bilateral smooths src while preserving edges: each output pixel is a
// weighted average of its neighborhood where the weight falls off with
// both spatial distance and color distance.
func bilateral(src *image.NRGBA, diameter int, sigmaColor, sigmaSpace float64) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	radius := diameter / 2
	spatial := make([]float64, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			spatial[(dy+radius)*(2*radius+1)+(dx+radius)] = math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))
		}
	}
	colorNorm := 2 * sigmaColor * sigmaColor

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ci := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			cr := float64(src.Pix[ci])
			cg := float64(src.Pix[ci+1])
			cb := float64(src.Pix[ci+2])

			var sumR, sumG, sumB, sumW float64
			for dy := -radius; dy <= radius; dy++ {
				ny := clampInt(y+dy, 0, h-1)
				for dx := -radius; dx <= radius; dx++ {
					nx := clampInt(x+dx, 0, w-1)
					ni := src.PixOffset(b.Min.X+nx, b.Min.Y+ny)
					nr := float64(src.Pix[ni])
					ng := float64(src.Pix[ni+1])
					nb := float64(src.Pix[ni+2])

					dr, dg, db := nr-cr, ng-cg, nb-cb
					colorDist := dr*dr + dg*dg + db*db
					wgt := spatial[(dy+radius)*(2*radius+1)+(dx+radius)] * math.Exp(-colorDist/colorNorm)

					sumR += wgt * nr
					sumG += wgt * ng
					sumB += wgt * nb
					sumW += wgt
				}
			}

			di := dst.PixOffset(x, y)
			dst.Pix[di] = clampByte(sumR / sumW)
			dst.Pix[di+1] = clampByte(sumG / sumW)
			dst.Pix[di+2] = clampByte(sumB / sumW)
			dst.Pix[di+3] = src.Pix[ci+3]
		}
	}
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
