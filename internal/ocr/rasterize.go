// Package ocr turns a notebook PDF into page images and extracted text.
// Rasterization and text detection are decoupled: page images are always
// produced and returned even when OCR fails, so they stay available for
// the image-attachment step.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Rasterizer converts PDF pages to PNG images using pdftoppm.
type Rasterizer struct {
	bin    string
	logger *slog.Logger
}

// NewRasterizer creates a pdftoppm-backed rasterizer.
func NewRasterizer(logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{bin: "pdftoppm", logger: logger}
}

// CheckInstallation verifies pdftoppm is on PATH.
func (r *Rasterizer) CheckInstallation() error {
	if _, err := exec.LookPath(r.bin); err != nil {
		return fmt.Errorf("%s not found (install poppler): %w", r.bin, err)
	}
	return nil
}

// Rasterize renders every page of the PDF to a PNG under outDir and
// returns the generated paths sorted by page number.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	prefix := filepath.Join(outDir, stem+"_page")

	r.logger.Debug("rasterizing PDF", "pdf", pdfPath, "prefix", prefix)

	out, err := exec.CommandContext(ctx, r.bin, "-png", pdfPath, prefix).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %s: %w", r.bin, strings.TrimSpace(string(out)), err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("listing rasterized pages: %w", err)
	}

	prefixName := filepath.Base(prefix)
	var pages []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, prefixName) && strings.HasSuffix(name, ".png") {
			pages = append(pages, filepath.Join(outDir, name))
		}
	}

	// pdftoppm zero-pads page numbers, so a lexicographic sort is page order.
	sort.Strings(pages)

	r.logger.Debug("rasterized pages", "count", len(pages))
	return pages, nil
}
