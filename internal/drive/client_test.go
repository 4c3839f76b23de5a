package drive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testCredentials() ClientCredentialsFunc {
	return func() (string, string) { return "client-id", "client-secret" }
}

func TestRefreshTokenSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Fatalf("unexpected grant_type %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "client-id" {
			t.Fatalf("unexpected client_id %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-token","expires_in":3600}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testCredentials(), time.Second)

	token, expiry, err := client.RefreshToken(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if token != "fresh-token" {
		t.Fatalf("unexpected token %q", token)
	}
	if until := time.Until(expiry); until < 55*time.Minute || until > 61*time.Minute {
		t.Fatalf("expiry not ~1h out: %v", until)
	}
}

func TestRefreshTokenInvalidGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testCredentials(), time.Second)

	_, _, err := client.RefreshToken(context.Background(), "revoked")
	if !errors.Is(err, ErrCredentialsInvalid) {
		t.Fatalf("expected ErrCredentialsInvalid got %v", err)
	}
}

func TestRefreshTokenServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testCredentials(), time.Second)

	_, _, err := client.RefreshToken(context.Background(), "refresh-1")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable got %v", err)
	}
}

func TestRefreshTokenEmptyRefreshToken(t *testing.T) {
	client := NewClient("http://invalid", "", testCredentials(), time.Second)

	_, _, err := client.RefreshToken(context.Background(), " ")
	if !errors.Is(err, ErrCredentialsInvalid) {
		t.Fatalf("expected ErrCredentialsInvalid got %v", err)
	}
}

func TestFileMetadataSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"file-1","name":"movie.mp4","mimeType":"video/mp4","size":"1048576","webContentLink":"https://files.example/dl"}`))
	}))
	defer server.Close()

	client := NewClient("", server.URL, testCredentials(), time.Second)

	meta, err := client.FileMetadata(context.Background(), "token-1", "file-1")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.Size != 1048576 {
		t.Fatalf("size string not parsed, got %d", meta.Size)
	}
	if meta.DownloadURL != "https://files.example/dl" {
		t.Fatalf("unexpected download URL %q", meta.DownloadURL)
	}
}

func TestFileMetadataErrorStatuses(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrFileNotFound},
		{http.StatusUnauthorized, ErrCredentialsInvalid},
		{http.StatusForbidden, ErrCredentialsInvalid},
		{http.StatusInternalServerError, ErrUpstreamUnavailable},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		client := NewClient("", server.URL, testCredentials(), time.Second)
		_, err := client.FileMetadata(context.Background(), "token-1", "file-1")
		server.Close()

		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v got %v", tc.status, tc.want, err)
		}
	}
}

func TestFileMetadataFallsBackToDirectDownloadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"file-2","name":"clip.webm","mimeType":"video/webm"}`))
	}))
	defer server.Close()

	client := NewClient("", server.URL, testCredentials(), time.Second)

	meta, err := client.FileMetadata(context.Background(), "token-1", "file-2")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.DownloadURL != DownloadURL("file-2") {
		t.Fatalf("expected uc fallback, got %q", meta.DownloadURL)
	}
}
