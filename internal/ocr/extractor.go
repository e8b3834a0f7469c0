package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sentinel texts let downstream consumers tell "OCR ran but found
// nothing" apart from "extraction never ran".
const (
	NoTextSentinel  = "(No text detected)"
	NoPagesSentinel = "(No pages found in PDF)"
)

// Result is the outcome of extracting one PDF. PageImages are ordered by
// page number and are present regardless of individual OCR outcomes.
type Result struct {
	Text       string
	PageImages []string
}

// PageRasterizer renders a PDF into per-page image files.
type PageRasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error)
}

// TextDetector extracts text from a single page image.
type TextDetector interface {
	DetectText(ctx context.Context, imagePath string) (string, error)
}

// Extractor is the document extraction facade: rasterize every page, then
// OCR each page independently.
type Extractor struct {
	raster   PageRasterizer
	detector TextDetector
	workDir  string
	logger   *slog.Logger
}

// NewExtractor creates an extractor writing page images into workDir.
func NewExtractor(raster PageRasterizer, detector TextDetector, workDir string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		raster:   raster,
		detector: detector,
		workDir:  workDir,
		logger:   logger,
	}
}

// CheckInstallation reports whether the rasterizer's tooling is present.
func (e *Extractor) CheckInstallation() error {
	if c, ok := e.raster.(interface{ CheckInstallation() error }); ok {
		return c.CheckInstallation()
	}
	return nil
}

// Extract rasterizes the PDF and OCRs each page. Rasterization failure is
// fatal; a single page's OCR failure is logged and skipped, so partial
// text is the norm rather than an error. Non-empty page texts are joined
// by a page-delimiter banner.
func (e *Extractor) Extract(ctx context.Context, pdfPath string) (*Result, error) {
	pages, err := e.raster.Rasterize(ctx, pdfPath, e.workDir)
	if err != nil {
		return nil, fmt.Errorf("rasterizing %s: %w", pdfPath, err)
	}

	if len(pages) == 0 {
		return &Result{Text: NoPagesSentinel}, nil
	}

	e.logger.Debug("running OCR", "pdf", pdfPath, "pages", len(pages))

	var fullText strings.Builder
	for i, image := range pages {
		text, err := e.detector.DetectText(ctx, image)
		if err != nil {
			e.logger.Warn("OCR failed for page, skipping", "page", i+1, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if fullText.Len() > 0 {
			fmt.Fprintf(&fullText, "\n\n--- Page %d ---\n\n", i+1)
		}
		fullText.WriteString(text)
	}

	text := fullText.String()
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("no text extracted from PDF", "pdf", pdfPath)
		text = NoTextSentinel
	} else {
		e.logger.Debug("extracted text", "chars", len(text))
	}

	return &Result{Text: text, PageImages: pages}, nil
}
