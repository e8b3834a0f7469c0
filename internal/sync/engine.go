// Package sync orchestrates the pipeline: export notebooks from the
// device backup, extract text and page images, and upsert each notebook
// into Notion.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mpetrov/renotion/internal/notion"
	"github.com/mpetrov/renotion/internal/ocr"
	"github.com/mpetrov/renotion/internal/remarkable"
)

// Device produces the notebook inventory and copies exported PDFs into a
// working directory.
type Device interface {
	CheckInstallation(ctx context.Context) error
	ListNotebooks(ctx context.Context) ([]*remarkable.Notebook, error)
	CopyNotebook(nb *remarkable.Notebook, destDir string) (string, error)
	SourcePDFPath(nb *remarkable.Notebook) string
}

// Extractor turns a PDF into text plus per-page images.
type Extractor interface {
	CheckInstallation() error
	Extract(ctx context.Context, pdfPath string) (*ocr.Result, error)
}

// PageStore is the Notion side of the pipeline.
type PageStore interface {
	VerifyConnection(ctx context.Context) error
	EnsureDatabaseProperties(ctx context.Context) error
	FindPageByTitle(ctx context.Context, title string) (*notion.Page, error)
	CreatePage(ctx context.Context, p notion.CreatePageParams) (*notion.Page, error)
	UpdatePage(ctx context.Context, pageID, text string, tags []string) error
	AttachImages(ctx context.Context, pageID string, imagePaths []string) error
	SetPDFURL(ctx context.Context, pageID, url string) error
	SetLocalPDFLink(ctx context.Context, pageID, pdfPath string) error
	AppendPDFReference(ctx context.Context, pageID, pdfName string) error
}

// Uploader publishes a PDF and returns a shareable URL. Nil when Drive is
// not configured.
type Uploader interface {
	UploadPDF(ctx context.Context, pdfPath, name string) (string, error)
}

// NotebookError records which notebook failed and why.
type NotebookError struct {
	Name string
	Err  error
}

func (e NotebookError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

// Result summarizes one sync run. Processed counts notebooks actually
// attempted; Skipped counts trashed notebooks left alone.
type Result struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Errors    []NotebookError
	Duration  time.Duration
}

// Options tune a run without touching the collaborator wiring.
type Options struct {
	DryRun      bool
	SkipTrashed bool
}

// Engine runs the sync pipeline over every notebook on the device.
type Engine struct {
	device    Device
	extractor Extractor
	pages     PageStore
	uploader  Uploader
	tempDir   string
	opts      Options
	logger    *slog.Logger
}

// NewEngine wires an engine. uploader may be nil, which switches the PDF
// link step to a local-path fallback.
func NewEngine(device Device, extractor Extractor, pages PageStore, uploader Uploader, tempDir string, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		device:    device,
		extractor: extractor,
		pages:     pages,
		uploader:  uploader,
		tempDir:   tempDir,
		opts:      opts,
		logger:    logger,
	}
}

// VerifyPrerequisites confirms the run can do useful work before any
// notebook is touched: export tool and pdftoppm installed, destination
// database reachable. The property ensure is advisory and cannot fail
// the check.
func (e *Engine) VerifyPrerequisites(ctx context.Context) error {
	if err := e.device.CheckInstallation(ctx); err != nil {
		return err
	}
	if err := e.extractor.CheckInstallation(); err != nil {
		return err
	}
	if err := e.pages.VerifyConnection(ctx); err != nil {
		return err
	}
	return e.pages.EnsureDatabaseProperties(ctx)
}

// Run processes every notebook sequentially. One notebook's failure is
// recorded and the run moves on; the error return is reserved for
// failures that prevent the run itself, like the device export.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	notebooks, err := e.device.ListNotebooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notebooks: %w", err)
	}

	e.logger.Info("starting sync", "notebooks", len(notebooks), "dry_run", e.opts.DryRun)

	result := &Result{}
	for _, nb := range notebooks {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if nb.Deleted && e.opts.SkipTrashed {
			e.logger.Debug("skipping trashed notebook", "name", nb.Name)
			result.Skipped++
			continue
		}

		result.Processed++
		if err := e.processNotebook(ctx, nb); err != nil {
			e.logger.Error("notebook sync failed", "name", nb.Name, "error", err)
			result.Failed++
			result.Errors = append(result.Errors, NotebookError{Name: nb.Name, Err: err})
			continue
		}
		result.Succeeded++
	}

	result.Duration = time.Since(start)
	e.logger.Info("sync complete",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// processNotebook runs the pipeline for a single notebook. Temp files are
// cleaned up on the way out; a cleanup failure on the PDF only surfaces
// when nothing worse already happened.
func (e *Engine) processNotebook(ctx context.Context, nb *remarkable.Notebook) (err error) {
	e.logger.Info("processing notebook", "name", nb.Name, "path", nb.Path)

	if e.opts.DryRun {
		e.logger.Info("dry run, skipping", "name", nb.Name)
		return nil
	}

	pdfPath, err := e.device.CopyNotebook(nb, e.tempDir)
	if err != nil {
		return fmt.Errorf("copying PDF: %w", err)
	}
	var images []string
	defer func() {
		for _, image := range images {
			_ = os.Remove(image)
		}
		if rmErr := os.Remove(pdfPath); rmErr != nil && err == nil {
			err = fmt.Errorf("cleaning up %s: %w", pdfPath, rmErr)
		}
	}()

	extracted, err := e.extractor.Extract(ctx, pdfPath)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}
	images = extracted.PageImages

	page, err := e.pages.FindPageByTitle(ctx, nb.Name)
	if err != nil {
		return fmt.Errorf("resolving page: %w", err)
	}

	if page == nil {
		page, err = e.pages.CreatePage(ctx, notion.CreatePageParams{
			Title:        nb.Name,
			Text:         extracted.Text,
			Tags:         nb.Tags,
			CreatedTime:  nb.CreatedTime,
			ModifiedTime: nb.ModifiedTime,
		})
		if err != nil {
			return fmt.Errorf("creating page: %w", err)
		}
	} else {
		if err := e.pages.UpdatePage(ctx, page.ID, extracted.Text, nb.Tags); err != nil {
			return fmt.Errorf("updating page: %w", err)
		}
	}

	if err := e.pages.AttachImages(ctx, page.ID, extracted.PageImages); err != nil {
		e.logger.Warn("failed to attach page images", "name", nb.Name, "error", err)
	}

	if err := e.linkPDF(ctx, page.ID, nb, pdfPath); err != nil {
		return err
	}

	e.logger.Info("notebook synced", "name", nb.Name, "page_id", page.ID)
	return nil
}

// linkPDF records where the notebook's PDF lives: a Drive view URL when
// upload is configured and succeeds, otherwise a reference block plus a
// best-effort link to the copy in the backup tree.
func (e *Engine) linkPDF(ctx context.Context, pageID string, nb *remarkable.Notebook, pdfPath string) error {
	pdfName := nb.Name + ".pdf"

	if e.uploader != nil {
		url, err := e.uploader.UploadPDF(ctx, pdfPath, pdfName)
		if err == nil {
			return e.pages.SetPDFURL(ctx, pageID, url)
		}
		e.logger.Warn("Drive upload failed, falling back to local reference", "name", nb.Name, "error", err)
	}

	if err := e.pages.AppendPDFReference(ctx, pageID, pdfName); err != nil {
		return fmt.Errorf("recording PDF reference: %w", err)
	}
	return e.pages.SetLocalPDFLink(ctx, pageID, e.device.SourcePDFPath(nb))
}
