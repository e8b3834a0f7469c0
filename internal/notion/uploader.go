package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// The file-upload endpoints are newer than the rest of the API surface
// and require their own version header.
const (
	defaultUploadBaseURL = "https://api.notion.com"
	uploadAPIVersion     = "2025-09-03"
)

// FileUploader pushes local files into Notion-hosted storage and attaches
// them to pages as image blocks. It speaks to the file_uploads endpoints
// directly over HTTP.
type FileUploader struct {
	httpClient *http.Client
	token      string
	baseURL    string
	logger     *slog.Logger
}

// NewFileUploader creates an uploader authenticated with the same
// integration token as the main client.
func NewFileUploader(token string, logger *slog.Logger) *FileUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileUploader{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		token:      token,
		baseURL:    defaultUploadBaseURL,
		logger:     logger,
	}
}

type fileUploadCreateRequest struct {
	Mode        string `json:"mode"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type fileUploadObject struct {
	ID        string `json:"id"`
	UploadURL string `json:"upload_url"`
	Status    string `json:"status"`
}

type imageBlockPayload struct {
	Object string `json:"object"`
	Type   string `json:"type"`
	Image  struct {
		Type       string `json:"type"`
		FileUpload struct {
			ID string `json:"id"`
		} `json:"file_upload"`
		Caption []richTextPayload `json:"caption,omitempty"`
	} `json:"image"`
}

type richTextPayload struct {
	Type string `json:"type"`
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

// AttachImages uploads each image and appends the successful ones to the
// page as image blocks captioned by original page number. One image's
// failure drops that image and keeps the rest; the append itself happens
// in a single batch at the end.
func (u *FileUploader) AttachImages(ctx context.Context, pageID string, imagePaths []string) error {
	var blocks []imageBlockPayload

	for i, path := range imagePaths {
		uploadID, err := u.uploadFile(ctx, path)
		if err != nil {
			u.logger.Warn("failed to upload page image, skipping", "image", path, "error", err)
			continue
		}

		var block imageBlockPayload
		block.Object = "block"
		block.Type = "image"
		block.Image.Type = "file_upload"
		block.Image.FileUpload.ID = uploadID
		caption := richTextPayload{Type: "text"}
		caption.Text.Content = fmt.Sprintf("Page %d", i+1)
		block.Image.Caption = []richTextPayload{caption}
		blocks = append(blocks, block)
	}

	if len(blocks) == 0 {
		u.logger.Warn("no page images uploaded", "page_id", pageID)
		return nil
	}

	if err := u.appendImageBlocks(ctx, pageID, blocks); err != nil {
		return fmt.Errorf("attaching page images: %w", err)
	}

	u.logger.Debug("attached page images", "page_id", pageID, "count", len(blocks))
	return nil
}

// uploadFile runs the two-step upload: create an upload slot, then send
// the bytes to the slot's upload URL. Returns the upload ID to reference
// from a block.
func (u *FileUploader) uploadFile(ctx context.Context, path string) (string, error) {
	slot, err := u.createUploadSlot(ctx, filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("creating upload slot: %w", err)
	}

	if err := u.transferFile(ctx, slot, path); err != nil {
		return "", fmt.Errorf("transferring file: %w", err)
	}

	return slot.ID, nil
}

func (u *FileUploader) createUploadSlot(ctx context.Context, filename string) (*fileUploadObject, error) {
	body, err := json.Marshal(fileUploadCreateRequest{
		Mode:        "single_part",
		Filename:    filename,
		ContentType: "image/png",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/v1/file_uploads", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	u.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("file upload create returned %d: %s", resp.StatusCode, data)
	}

	var slot fileUploadObject
	if err := json.NewDecoder(resp.Body).Decode(&slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

func (u *FileUploader) transferFile(ctx context.Context, slot *fileUploadObject, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	uploadURL := slot.UploadURL
	if uploadURL == "" {
		uploadURL = fmt.Sprintf("%s/v1/file_uploads/%s/send", u.baseURL, slot.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return err
	}
	u.setHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("file transfer returned %d: %s", resp.StatusCode, data)
	}
	return nil
}

func (u *FileUploader) appendImageBlocks(ctx context.Context, pageID string, blocks []imageBlockPayload) error {
	body, err := json.Marshal(map[string]any{"children": blocks})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/blocks/%s/children", u.baseURL, pageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	u.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("block append returned %d: %s", resp.StatusCode, data)
	}
	return nil
}

func (u *FileUploader) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Notion-Version", uploadAPIVersion)
}
