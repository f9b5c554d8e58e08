// Package denoise implements the parameterized noise-reduction step
// applied to submitted images. Every method shares the same
// preprocessing (size cap, optional grayscale) and maps the caller's
// 1-10 strength slider onto its own native parameter range.
package denoise

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// MaxDimension bounds the larger side of any processed image. Inputs
// above it are downscaled before filtering to keep worst-case latency
// bounded.
const MaxDimension = 1500

// Method selects a denoising algorithm.
type Method string

const (
	MethodNLMeans   Method = "nlmeans"
	MethodBilateral Method = "bilateral"
	MethodGaussian  Method = "gaussian"
	MethodTVL1      Method = "tvl1"
)

// Methods returns the supported method names in display order.
func Methods() []Method {
	return []Method{MethodNLMeans, MethodBilateral, MethodGaussian, MethodTVL1}
}

// ParseMethod validates a caller-supplied method name.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodNLMeans, MethodBilateral, MethodGaussian, MethodTVL1:
		return m, nil
	}
	return "", fmt.Errorf("unsupported method %q", s)
}

// Request carries the caller-facing denoising parameters.
type Request struct {
	Method    Method `json:"method"`
	Strength  int    `json:"strength"`
	Grayscale bool   `json:"grayscale"`
}

// Validate checks that the request can be admitted.
func (r Request) Validate() error {
	if _, err := ParseMethod(string(r.Method)); err != nil {
		return err
	}
	if r.Strength < 1 || r.Strength > 10 {
		return fmt.Errorf("strength must be between 1 and 10 (got %d)", r.Strength)
	}
	return nil
}

// Denoise applies the requested method to src and returns the filtered
// image. It never falls back to returning the unmodified source: any
// failure is reported to the caller.
func Denoise(src image.Image, req Request) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("nil source image")
	}
	method, err := ParseMethod(string(req.Method))
	if err != nil {
		return nil, err
	}

	img := imaging.Clone(src)

	// Size cap with area-averaging resampling; appropriate for
	// shrinking and avoids aliasing.
	b := img.Bounds()
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Box)
	}

	if req.Grayscale {
		// Grayscale output keeps three channels so every method and
		// the storage format stay uniform.
		img = imaging.Grayscale(img)
	}

	s := unitStrength(req.Strength)

	switch method {
	case MethodGaussian:
		return imaging.Blur(img, gaussianSigma(s)), nil
	case MethodBilateral:
		return bilateral(img, bilateralDiameter, bilateralSigma(s), bilateralSigma(s)), nil
	case MethodNLMeans:
		return nlMeans(img, nlmeansH(s), nlmeansTemplateWindow, nlmeansSearchWindow), nil
	case MethodTVL1:
		return tvl1(img, tvl1Lambda(s), tvl1Iterations), nil
	}
	return nil, fmt.Errorf("unsupported method %q", method)
}
