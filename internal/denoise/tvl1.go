package denoise

import (
	"image"
	"math"
)

// tvl1 runs an explicit total-variation descent independently on each
// channel of a float-normalized copy of src. lambda weights fidelity
// to the input, so smaller lambda smooths harder.
func tvl1(src *image.NRGBA, lambda float64, iterations int) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	for ch := 0; ch < 3; ch++ {
		f := make([]float64, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
				f[y*w+x] = float64(src.Pix[i+ch]) / 255.0
			}
		}
		u := tvDescent(f, w, h, lambda, iterations)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				di := dst.PixOffset(x, y)
				dst.Pix[di+ch] = clampByte(u[y*w+x] * 255.0)
			}
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			di := dst.PixOffset(x, y)
			dst.Pix[di+3] = src.Pix[si+3]
		}
	}
	return dst
}

func tvDescent(f []float64, w, h int, lambda float64, iterations int) []float64 {
	const (
		dt  = 0.2
		eps = 1e-8
	)

	u := make([]float64, len(f))
	copy(u, f)
	next := make([]float64, len(f))

	at := func(x, y int) float64 {
		return u[clampInt(y, 0, h-1)*w+clampInt(x, 0, w-1)]
	}

	for it := 0; it < iterations; it++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := at(x, y)

				// Curvature term: divergence of the normalized gradient,
				// forward differences for the gradient, backward for the
				// divergence.
				uxf := at(x+1, y) - c
				uyf := at(x, y+1) - c
				normC := math.Sqrt(uxf*uxf + uyf*uyf + eps)

				uxbW := c - at(x-1, y)
				uyfW := at(x-1, y+1) - at(x-1, y)
				normW := math.Sqrt(uxbW*uxbW + uyfW*uyfW + eps)

				uxfN := at(x+1, y-1) - at(x, y-1)
				uybN := c - at(x, y-1)
				normN := math.Sqrt(uxfN*uxfN + uybN*uybN + eps)

				div := uxf/normC - uxbW/normW + uyf/normC - uybN/normN

				next[y*w+x] = c + dt*(div-lambda*(c-f[y*w+x]))
			}
		}
		u, next = next, u
	}
	return u
}
