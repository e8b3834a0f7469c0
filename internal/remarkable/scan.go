package remarkable

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const pdfDirName = "PDF"

// ListNotebooks runs the device export and enumerates every notebook in
// the backup tree, resolving sidecar metadata through a single-pass index.
// Enumeration order is filesystem order; callers must not rely on it.
func (c *Client) ListNotebooks(ctx context.Context) ([]*Notebook, error) {
	if err := c.Export(ctx); err != nil {
		return nil, err
	}
	return c.scanNotebooks()
}

// scanNotebooks walks the exported PDF tree and emits one Notebook per
// document, joining each against the metadata index by display name.
func (c *Client) scanNotebooks() ([]*Notebook, error) {
	pdfDir := filepath.Join(c.backupDir, pdfDirName)
	if _, err := os.Stat(pdfDir); os.IsNotExist(err) {
		c.logger.Debug("no PDF directory found yet, no notebooks exported")
		return nil, nil
	}

	index, err := c.buildMetadataIndex()
	if err != nil {
		return nil, fmt.Errorf("building metadata index: %w", err)
	}

	var notebooks []*Notebook
	err = filepath.WalkDir(pdfDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			return nil
		}

		rel, err := filepath.Rel(pdfDir, path)
		if err != nil {
			return err
		}

		name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		folder := filepath.ToSlash(filepath.Dir(rel))
		if folder == "." {
			folder = ""
		}

		nb := &Notebook{
			Name:       name,
			FolderPath: folder,
		}
		nb.Path = name
		if folder != "" {
			nb.Path = folder + "/" + name
		}

		// O(1) display-name lookup; a miss yields empty metadata, not an error.
		if meta, ok := index[name]; ok {
			nb.CreatedTime = meta.createdTime
			nb.ModifiedTime = meta.modifiedTime
			nb.Tags = meta.tags
			nb.Deleted = meta.deleted
		} else {
			c.logger.Debug("no metadata found for notebook", "name", name)
		}

		notebooks = append(notebooks, nb)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning PDF tree: %w", err)
	}

	c.logger.Debug("found notebooks", "count", len(notebooks))
	return notebooks, nil
}
