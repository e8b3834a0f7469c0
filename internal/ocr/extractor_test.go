package ocr

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

type fakeRasterizer struct {
	pages []string
	err   error
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ string, _ string) ([]string, error) {
	return f.pages, f.err
}

// fakeDetector returns texts keyed by image path; a missing key means the
// OCR call fails for that page.
type fakeDetector struct {
	texts map[string]string
	calls int
}

func (f *fakeDetector) DetectText(_ context.Context, imagePath string) (string, error) {
	f.calls++
	text, ok := f.texts[imagePath]
	if !ok {
		return "", fmt.Errorf("annotate failed for %s", imagePath)
	}
	return text, nil
}

func TestExtract(t *testing.T) {
	raster := &fakeRasterizer{pages: []string{"p1.png", "p2.png"}}
	detector := &fakeDetector{texts: map[string]string{
		"p1.png": "first page",
		"p2.png": "second page",
	}}

	result, err := NewExtractor(raster, detector, t.TempDir(), nil).Extract(context.Background(), "nb.pdf")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := "first page\n\n--- Page 2 ---\n\nsecond page"
	if result.Text != want {
		t.Errorf("Text = %q, want %q", result.Text, want)
	}
	if !reflect.DeepEqual(result.PageImages, []string{"p1.png", "p2.png"}) {
		t.Errorf("unexpected page images %v", result.PageImages)
	}
}

func TestExtract_PartialOCRFailure(t *testing.T) {
	// Page 2's OCR call fails; pages 1 and 3 succeed.
	raster := &fakeRasterizer{pages: []string{"p1.png", "p2.png", "p3.png"}}
	detector := &fakeDetector{texts: map[string]string{
		"p1.png": "alpha",
		"p3.png": "gamma",
	}}

	result, err := NewExtractor(raster, detector, t.TempDir(), nil).Extract(context.Background(), "nb.pdf")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := "alpha\n\n--- Page 3 ---\n\ngamma"
	if result.Text != want {
		t.Errorf("Text = %q, want %q", result.Text, want)
	}
	if detector.calls != 3 {
		t.Errorf("expected all 3 pages to be attempted, got %d calls", detector.calls)
	}
	// All page images are still returned for the attachment step.
	if len(result.PageImages) != 3 {
		t.Errorf("expected 3 page images, got %d", len(result.PageImages))
	}
}

func TestExtract_SinglePageHasNoBanner(t *testing.T) {
	raster := &fakeRasterizer{pages: []string{"p1.png"}}
	detector := &fakeDetector{texts: map[string]string{"p1.png": "only page"}}

	result, err := NewExtractor(raster, detector, t.TempDir(), nil).Extract(context.Background(), "nb.pdf")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Text != "only page" {
		t.Errorf("Text = %q, want %q", result.Text, "only page")
	}
}

func TestExtract_AllPagesEmpty(t *testing.T) {
	raster := &fakeRasterizer{pages: []string{"p1.png", "p2.png"}}
	detector := &fakeDetector{texts: map[string]string{
		"p1.png": "",
		"p2.png": "  \n ",
	}}

	result, err := NewExtractor(raster, detector, t.TempDir(), nil).Extract(context.Background(), "nb.pdf")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Text != NoTextSentinel {
		t.Errorf("Text = %q, want sentinel %q", result.Text, NoTextSentinel)
	}
	if len(result.PageImages) != 2 {
		t.Errorf("expected 2 page images, got %d", len(result.PageImages))
	}
}

func TestExtract_NoPages(t *testing.T) {
	raster := &fakeRasterizer{pages: nil}
	detector := &fakeDetector{}

	result, err := NewExtractor(raster, detector, t.TempDir(), nil).Extract(context.Background(), "nb.pdf")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Text != NoPagesSentinel {
		t.Errorf("Text = %q, want sentinel %q", result.Text, NoPagesSentinel)
	}
	if detector.calls != 0 {
		t.Error("expected no OCR calls for an empty PDF")
	}
}

func TestExtract_RasterizeFailureIsFatal(t *testing.T) {
	raster := &fakeRasterizer{err: errors.New("pdftoppm exploded")}
	detector := &fakeDetector{}

	_, err := NewExtractor(raster, detector, t.TempDir(), nil).Extract(context.Background(), "nb.pdf")
	if err == nil {
		t.Fatal("expected rasterization failure to abort extraction")
	}
	if detector.calls != 0 {
		t.Error("expected no OCR calls after rasterization failure")
	}
}
