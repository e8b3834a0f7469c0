package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("png-data-"+name), 0o644); err != nil {
		t.Fatalf("writing image: %v", err)
	}
	return path
}

func TestAttachImages(t *testing.T) {
	dir := t.TempDir()
	images := []string{
		writePNG(t, dir, "nb_page01.png"),
		writePNG(t, dir, "nb_page02.png"),
	}

	var slotCount, transferCount atomic.Int32
	var appended []imageBlockPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/file_uploads":
			if r.Header.Get("Notion-Version") != uploadAPIVersion {
				t.Errorf("missing upload API version header, got %q", r.Header.Get("Notion-Version"))
			}
			var create fileUploadCreateRequest
			if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
				t.Fatalf("decoding create request: %v", err)
			}
			if create.Mode != "single_part" {
				t.Errorf("mode = %q, want single_part", create.Mode)
			}
			n := slotCount.Add(1)
			_ = json.NewEncoder(w).Encode(fileUploadObject{ID: fmt.Sprintf("upload-%d", n)})

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/send"):
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parsing multipart body: %v", err)
			}
			if _, _, err := r.FormFile("file"); err != nil {
				t.Errorf("expected a file part: %v", err)
			}
			transferCount.Add(1)
			_, _ = w.Write([]byte(`{}`))

		case r.Method == http.MethodPatch && r.URL.Path == "/v1/blocks/page-1/children":
			var body struct {
				Children []imageBlockPayload `json:"children"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decoding append request: %v", err)
			}
			appended = body.Children
			_, _ = w.Write([]byte(`{}`))

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	uploader := NewFileUploader("secret-token", nil)
	uploader.baseURL = server.URL

	if err := uploader.AttachImages(context.Background(), "page-1", images); err != nil {
		t.Fatalf("AttachImages() error = %v", err)
	}

	if slotCount.Load() != 2 || transferCount.Load() != 2 {
		t.Errorf("expected 2 uploads, got %d slots / %d transfers", slotCount.Load(), transferCount.Load())
	}
	if len(appended) != 2 {
		t.Fatalf("expected 2 image blocks appended, got %d", len(appended))
	}
	if appended[0].Image.FileUpload.ID != "upload-1" {
		t.Errorf("first block references %q", appended[0].Image.FileUpload.ID)
	}
	if appended[1].Image.Caption[0].Text.Content != "Page 2" {
		t.Errorf("second caption = %q, want %q", appended[1].Image.Caption[0].Text.Content, "Page 2")
	}
}

func TestAttachImages_OneUploadFails(t *testing.T) {
	dir := t.TempDir()
	images := []string{
		writePNG(t, dir, "nb_page01.png"),
		writePNG(t, dir, "nb_page02.png"),
	}

	var appended []imageBlockPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/file_uploads":
			var create fileUploadCreateRequest
			_ = json.NewDecoder(r.Body).Decode(&create)
			// First page's slot creation is rejected.
			if create.Filename == "nb_page01.png" {
				http.Error(w, `{"message": "quota"}`, http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(fileUploadObject{ID: "upload-ok"})

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/send"):
			_, _ = w.Write([]byte(`{}`))

		case r.Method == http.MethodPatch:
			var body struct {
				Children []imageBlockPayload `json:"children"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			appended = body.Children
			_, _ = w.Write([]byte(`{}`))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	uploader := NewFileUploader("secret-token", nil)
	uploader.baseURL = server.URL

	if err := uploader.AttachImages(context.Background(), "page-1", images); err != nil {
		t.Fatalf("one failed upload must not fail the batch: %v", err)
	}

	if len(appended) != 1 {
		t.Fatalf("expected 1 surviving image block, got %d", len(appended))
	}
	// The caption keeps the original page number even though page 1 dropped.
	if appended[0].Image.Caption[0].Text.Content != "Page 2" {
		t.Errorf("caption = %q, want %q", appended[0].Image.Caption[0].Text.Content, "Page 2")
	}
}

func TestAttachImages_Empty(t *testing.T) {
	uploader := NewFileUploader("secret-token", nil)
	uploader.baseURL = "http://127.0.0.1:0" // any request would fail

	if err := uploader.AttachImages(context.Background(), "page-1", nil); err != nil {
		t.Fatalf("empty image list must be a no-op, got %v", err)
	}
}
