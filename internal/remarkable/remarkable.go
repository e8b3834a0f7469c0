// Package remarkable drives the device export tool and turns its backup
// tree into a list of notebooks with sidecar metadata resolved.
package remarkable

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Notebook is one exported document. Built fresh on every enumeration,
// never mutated afterwards.
type Notebook struct {
	// Name is the device-assigned display name, unique per notebook.
	Name string
	// Path is the slash-joined folder path plus name, relative to the PDF
	// root. It is the storage key used to re-locate the source file.
	Path string
	// FolderPath is the folder part of Path, empty for top-level notebooks.
	FolderPath string
	// CreatedTime and ModifiedTime are RFC3339 UTC strings, empty when the
	// sidecar metadata is absent or unparseable.
	CreatedTime  string
	ModifiedTime string
	// Tags are the content-sidecar tag names in file order.
	Tags []string
	// Deleted reports whether the notebook sits in the device trash.
	Deleted bool
}

// Client wraps the export tool and the backup directory it produces.
type Client struct {
	backupDir string
	password  string
	logger    *slog.Logger

	// exportBin is the export tool binary name, a field so tests can point
	// it at a stub.
	exportBin string
}

// NewClient creates a device client rooted at backupDir, creating the
// directory if it does not exist. password is the optional device password
// forwarded to the export tool.
func NewClient(backupDir, password string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	return &Client{
		backupDir: backupDir,
		password:  password,
		logger:    logger,
		exportBin: exportToolName,
	}, nil
}

// CopyNotebook copies the notebook's source PDF from the backup tree into
// destDir, named after the notebook, and returns the destination path.
func (c *Client) CopyNotebook(nb *Notebook, destDir string) (string, error) {
	source := filepath.Join(c.backupDir, pdfDirName, filepath.FromSlash(nb.Path)+".pdf")

	src, err := os.Open(source)
	if err != nil {
		return "", fmt.Errorf("opening source PDF %s (notebook may not have been exported yet): %w", source, err)
	}
	defer src.Close()

	dest := filepath.Join(destDir, nb.Name+".pdf")
	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating working copy: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copying PDF: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("copying PDF: %w", err)
	}

	c.logger.Debug("copied notebook PDF", "notebook", nb.Name, "path", dest)
	return dest, nil
}

// SourcePDFPath returns the notebook's PDF location inside the backup
// tree. Unlike the working copy, this file survives the sync run.
func (c *Client) SourcePDFPath(nb *Notebook) string {
	return filepath.Join(c.backupDir, pdfDirName, filepath.FromSlash(nb.Path)+".pdf")
}
