// Package gdrive uploads notebook PDFs to Google Drive and returns
// shareable view links for the Notion PDF Link property.
package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mpetrov/renotion/internal/gauth"
)

const (
	defaultUploadEndpoint = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart"
	defaultFilesEndpoint  = "https://www.googleapis.com/drive/v3/files"
)

// TokenSource hands out valid access tokens and can force a refresh when
// an upload hits an expired one.
type TokenSource interface {
	Load(ctx context.Context) (*gauth.StoredToken, error)
	Refresh(ctx context.Context, old *gauth.StoredToken) (*gauth.StoredToken, error)
}

// Client uploads files into one Drive folder.
type Client struct {
	httpClient     *http.Client
	source         TokenSource
	folderID       string
	logger         *slog.Logger
	uploadEndpoint string
	filesEndpoint  string

	mu    sync.Mutex
	token *gauth.StoredToken
}

// NewClient creates a Drive client targeting the given folder.
func NewClient(source TokenSource, folderID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:     &http.Client{Timeout: 5 * time.Minute},
		source:         source,
		folderID:       folderID,
		logger:         logger,
		uploadEndpoint: defaultUploadEndpoint,
		filesEndpoint:  defaultFilesEndpoint,
	}
}

// UploadPDF uploads the file to the configured folder, makes it readable
// by anyone with the link, and returns a direct view URL. A 401 from
// Drive triggers exactly one token refresh and retry.
func (c *Client) UploadPDF(ctx context.Context, pdfPath, name string) (string, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return "", err
	}

	fileID, err := c.uploadFile(ctx, token, pdfPath, name)
	if err != nil {
		if !isAuthError(err) {
			return "", err
		}

		c.logger.Debug("Drive rejected the access token, refreshing and retrying")
		token, err = c.refreshToken(ctx, token)
		if err != nil {
			return "", err
		}
		fileID, err = c.uploadFile(ctx, token, pdfPath, name)
		if err != nil {
			return "", err
		}
	}

	if err := c.shareFile(ctx, token, fileID); err != nil {
		return "", err
	}

	url := "https://drive.google.com/uc?export=view&id=" + fileID
	c.logger.Debug("uploaded PDF to Drive", "name", name, "file_id", fileID)
	return url, nil
}

// currentToken returns the cached token, loading it on first use.
func (c *Client) currentToken(ctx context.Context) (*gauth.StoredToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil {
		return c.token, nil
	}

	token, err := c.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.token = token
	return token, nil
}

func (c *Client) refreshToken(ctx context.Context, old *gauth.StoredToken) (*gauth.StoredToken, error) {
	token, err := c.source.Refresh(ctx, old)
	if err != nil {
		return nil, fmt.Errorf("refreshing Drive token: %w", err)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

type driveFileMetadata struct {
	Name    string   `json:"name"`
	Parents []string `json:"parents,omitempty"`
}

type driveFileResponse struct {
	ID string `json:"id"`
}

// uploadFile performs a multipart/related upload: a JSON metadata part
// followed by the PDF bytes. Returns the new file's ID.
func (c *Client) uploadFile(ctx context.Context, token *gauth.StoredToken, pdfPath, name string) (string, error) {
	pdfData, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", pdfPath, err)
	}

	metadata := driveFileMetadata{Name: name}
	if c.folderID != "" {
		metadata.Parents = []string{c.folderID}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return "", err
	}
	if _, err := metaPart.Write(metadataJSON); err != nil {
		return "", err
	}

	filePart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/pdf"},
	})
	if err != nil {
		return "", err
	}
	if _, err := filePart.Write(pdfData); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadEndpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Drive upload returned %d: %s", resp.StatusCode, data)
	}

	var file driveFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return "", err
	}
	if file.ID == "" {
		return "", fmt.Errorf("Drive upload response has no file ID")
	}
	return file.ID, nil
}

// shareFile grants anyone-with-the-link read access so the Notion link
// works for anyone viewing the page.
func (c *Client) shareFile(ctx context.Context, token *gauth.StoredToken, fileID string) error {
	body, err := json.Marshal(map[string]string{
		"role": "reader",
		"type": "anyone",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/permissions", c.filesEndpoint, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Drive permission grant returned %d: %s", resp.StatusCode, data)
	}
	return nil
}

// isAuthError detects an expired or revoked access token. Drive reports
// these as HTTP 401, which surfaces in the error text from uploadFile.
func isAuthError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "401")
}
