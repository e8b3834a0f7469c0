package remarkable

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	notebooksDirName = "Notebooks"
	trashParent      = "trash"
)

// metadataEntry is the indexed sidecar metadata for one notebook, keyed by
// display name. It lives for the duration of a single enumeration.
type metadataEntry struct {
	createdTime  string
	modifiedTime string
	tags         []string
	deleted      bool
}

// metadataFile is the JSON shape of a <uuid>.metadata sidecar. The device
// writes timestamps as strings of epoch milliseconds.
type metadataFile struct {
	VisibleName  string `json:"visibleName"`
	Parent       string `json:"parent"`
	CreatedTime  string `json:"createdTime"`
	LastModified string `json:"lastModified"`
}

// contentFile is the JSON shape of a <uuid>.content sidecar.
type contentFile struct {
	Tags []contentTag `json:"tags"`
}

type contentTag struct {
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// buildMetadataIndex scans every metadata sidecar exactly once and returns
// a display-name index for O(1) lookups during the PDF walk. A missing
// Notebooks directory yields an empty index: the export may simply not
// have produced any notebooks yet.
func (c *Client) buildMetadataIndex() (map[string]metadataEntry, error) {
	notebooksDir := filepath.Join(c.backupDir, notebooksDirName)

	entries, err := os.ReadDir(notebooksDir)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Debug("no Notebooks directory found")
			return map[string]metadataEntry{}, nil
		}
		return nil, err
	}

	index := make(map[string]metadataEntry)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".metadata") {
			continue
		}

		path := filepath.Join(notebooksDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			c.logger.Debug("skipping unreadable metadata sidecar", "path", path, "error", err)
			continue
		}

		var meta metadataFile
		if err := json.Unmarshal(data, &meta); err != nil {
			c.logger.Debug("skipping malformed metadata sidecar", "path", path, "error", err)
			continue
		}

		// The sidecar filename stem is the device-assigned UUID, which also
		// keys the sibling content sidecar carrying the tag list.
		uuid := strings.TrimSuffix(entry.Name(), ".metadata")

		indexed := metadataEntry{
			createdTime:  millisToRFC3339(meta.CreatedTime),
			modifiedTime: millisToRFC3339(meta.LastModified),
			tags:         c.readTags(notebooksDir, uuid),
			deleted:      meta.Parent == trashParent,
		}

		if prev, ok := index[meta.VisibleName]; ok && !prefersOver(indexed, prev) {
			c.logger.Debug("duplicate display name, keeping newer entry", "name", meta.VisibleName)
			continue
		}
		index[meta.VisibleName] = indexed
	}

	c.logger.Debug("built metadata index", "entries", len(index))
	return index, nil
}

// prefersOver decides which of two entries sharing a display name wins:
// the one with the newer modified time. With equal or absent times the
// later-scanned entry wins, which keeps the overwrite deterministic for a
// given timestamp set.
func prefersOver(candidate, existing metadataEntry) bool {
	return candidate.modifiedTime >= existing.modifiedTime
}

// readTags collects the tag names from the <uuid>.content sidecar, in file
// order. A missing or malformed content file yields no tags, not an error.
func (c *Client) readTags(notebooksDir, uuid string) []string {
	data, err := os.ReadFile(filepath.Join(notebooksDir, uuid+".content"))
	if err != nil {
		return nil
	}

	var content contentFile
	if err := json.Unmarshal(data, &content); err != nil {
		return nil
	}

	tags := make([]string, 0, len(content.Tags))
	for _, tag := range content.Tags {
		tags = append(tags, tag.Name)
	}
	return tags
}

// millisToRFC3339 converts a string of epoch milliseconds to a
// second-precision RFC3339 UTC string. Unparseable input yields "",
// treated everywhere as "timestamp unknown".
func millisToRFC3339(raw string) string {
	if raw == "" {
		return ""
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ""
	}
	return time.UnixMilli(millis).UTC().Format(time.RFC3339)
}
