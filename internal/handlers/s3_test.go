package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/watchparty/backend/internal/middleware"
)

type stubMediaStore struct {
	url     string
	saved   string
	urlErr  error
	saveErr error
}

func (s *stubMediaStore) StreamingURL(_ context.Context, key string) (string, error) {
	if s.urlErr != nil {
		return "", s.urlErr
	}
	return s.url + "/" + key, nil
}

func (s *stubMediaStore) Save(_ context.Context, name, _ string, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.saved = name
	return name, nil
}

func authedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(middleware.WithUser(req.Context(), "user-1"))
}

func TestStorageHandlerStreamingURL(t *testing.T) {
	store := &stubMediaStore{url: "https://bucket.example"}
	handler := StorageHandler{Store: store}

	rec := httptest.NewRecorder()
	handler.StreamingURL(rec, authedRequest(http.MethodGet, "/api/v1/integrations/s3/streaming-url?key=movies/night.mp4", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "https://bucket.example/movies/night.mp4") {
		t.Fatalf("presigned URL missing from body: %s", rec.Body.String())
	}
}

func TestStorageHandlerStreamingURLRequiresKey(t *testing.T) {
	handler := StorageHandler{Store: &stubMediaStore{}}

	rec := httptest.NewRecorder()
	handler.StreamingURL(rec, authedRequest(http.MethodGet, "/api/v1/integrations/s3/streaming-url", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestStorageHandlerStreamingURLPresignFailure(t *testing.T) {
	handler := StorageHandler{Store: &stubMediaStore{urlErr: errors.New("signer down")}}

	rec := httptest.NewRecorder()
	handler.StreamingURL(rec, authedRequest(http.MethodGet, "/api/v1/integrations/s3/streaming-url?key=a.mp4", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}
}

func TestStorageHandlerUpload(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "clip.mp4")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake video bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = writer.Close()

	store := &stubMediaStore{}
	handler := StorageHandler{Store: store}

	req := authedRequest(http.MethodPost, "/api/v1/integrations/s3/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if store.saved != "clip.mp4" {
		t.Fatalf("expected clip.mp4 saved, got %q", store.saved)
	}
}

func TestStorageHandlerUploadRequiresFilePart(t *testing.T) {
	handler := StorageHandler{Store: &stubMediaStore{}}

	req := authedRequest(http.MethodPost, "/api/v1/integrations/s3/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestStorageHandlerRequiresAuthentication(t *testing.T) {
	handler := StorageHandler{Store: &stubMediaStore{}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/s3/streaming-url?key=a.mp4", nil)
	handler.StreamingURL(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
