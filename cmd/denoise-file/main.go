// cmd/denoise-file runs the denoising pipeline against a local file
// without the HTTP server or worker infrastructure. Useful for tuning
// strength values against sample images.
//
// Usage:
//   ./denoise-file -input noisy.jpg -output clean.jpg -method bilateral -strength 7
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/clearpix/simple-denoiser/internal/denoise"
)

func main() {
	input := flag.String("input", "", "Input image path (required)")
	output := flag.String("output", "", "Output image path (default: input_denoised.<ext>)")
	method := flag.String("method", "nlmeans", "Denoising method: nlmeans, bilateral, gaussian, tvl1")
	strength := flag.Int("strength", 5, "Denoising strength (1-10)")
	grayscale := flag.Bool("grayscale", false, "Convert to grayscale before denoising")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	if *input == "" {
		fmt.Println("Error: -input flag is required")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(*input); os.IsNotExist(err) {
		log.Fatalf("input file not found: %s", *input)
	}

	if *output == "" {
		ext := filepath.Ext(*input)
		base := (*input)[:len(*input)-len(ext)]
		*output = base + "_denoised" + ext
	}

	m, err := denoise.ParseMethod(*method)
	if err != nil {
		log.Fatalf("%v (supported: %v)", err, denoise.Methods())
	}

	req := denoise.Request{Method: m, Strength: *strength, Grayscale: *grayscale}
	if err := req.Validate(); err != nil {
		log.Fatalf("invalid request: %v", err)
	}

	src, err := imaging.Open(*input, imaging.AutoOrientation(true))
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	if *verbose {
		b := src.Bounds()
		fmt.Printf("input: %s (%dx%d)\n", *input, b.Dx(), b.Dy())
		fmt.Printf("method: %s strength: %d grayscale: %t\n", m, *strength, *grayscale)
	}

	start := time.Now()
	out, err := denoise.Denoise(src, req)
	if err != nil {
		log.Fatalf("denoise: %v", err)
	}
	if err := imaging.Save(out, *output); err != nil {
		log.Fatalf("save output: %v", err)
	}

	b := out.Bounds()
	fmt.Printf("wrote %s (%dx%d) in %s\n", *output, b.Dx(), b.Dy(), time.Since(start).Round(time.Millisecond))
}
