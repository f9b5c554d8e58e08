package denoise

import "math"

// The caller-facing strength is a 1-10 slider. It is normalized to a
// unit interval before being mapped into each method's native range,
// so retuning one method never leaks into the others.

func unitStrength(strength int) float64 {
	if strength < 1 {
		strength = 1
	}
	if strength > 10 {
		strength = 10
	}
	return float64(strength) / 10.0
}

// Non-local means: filter strength 3-13. The search window is kept
// small; widening it improves quality but costs quadratic latency.
const (
	nlmeansTemplateWindow = 7
	nlmeansSearchWindow   = 9
)

func nlmeansH(s float64) float64 {
	return 3 + 10*s
}

// Bilateral: fixed neighborhood diameter, sigma 10-50 shared between
// the color and spatial terms.
const bilateralDiameter = 7

func bilateralSigma(s float64) float64 {
	return 10 + 40*s
}

// Gaussian: kernel forced to the nearest odd size >= 3.
func gaussianKernel(s float64) int {
	k := int(math.Round(3 + 4*s))
	if k%2 == 0 {
		k++
	}
	if k < 3 {
		k = 3
	}
	return k
}

func gaussianSigma(s float64) float64 {
	return 0.3 + 1.7*s
}

// TV-L1: lambda weights fidelity to the input, so stronger denoising
// means a smaller lambda.
const tvl1Iterations = 30

func tvl1Lambda(s float64) float64 {
	return 1.0 - 0.8*s
}
