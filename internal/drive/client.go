package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTokenURL   = "https://oauth2.googleapis.com/token"
	defaultAPIBaseURL = "https://www.googleapis.com/drive/v3"

	metadataFields = "id,name,mimeType,size,webContentLink,webViewLink"
)

// ClientCredentialsFunc supplies the platform OAuth client ID and secret.
// Wiring this as a function lets the caller consult the credential rotation
// service on every refresh instead of pinning boot-time values.
type ClientCredentialsFunc func() (id, secret string)

// FileMetadata is the subset of a Drive file resource the streaming path uses.
type FileMetadata struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	DownloadURL string
	ViewURL     string
}

// Client performs the Google Drive REST calls needed to mint streaming URLs.
type Client struct {
	HTTPClient  *http.Client
	TokenURL    string
	APIBaseURL  string
	Credentials ClientCredentialsFunc
}

// NewClient constructs a Drive client with bounded request timeouts.
func NewClient(tokenURL, apiBaseURL string, creds ClientCredentialsFunc, timeout time.Duration) *Client {
	if strings.TrimSpace(tokenURL) == "" {
		tokenURL = defaultTokenURL
	}
	if strings.TrimSpace(apiBaseURL) == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HTTPClient:  &http.Client{Timeout: timeout},
		TokenURL:    tokenURL,
		APIBaseURL:  strings.TrimSuffix(apiBaseURL, "/"),
		Credentials: creds,
	}
}

// RefreshToken exchanges a refresh token for a new access token and expiry.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", time.Time{}, ErrCredentialsInvalid
	}

	var clientID, clientSecret string
	if c.Credentials != nil {
		clientID, clientSecret = c.Credentials()
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: token endpoint: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// invalid_grant, revoked consent, bad client credentials: the stored
		// refresh token is no longer usable.
		return "", time.Time{}, ErrCredentialsInvalid
	default:
		return "", time.Time{}, fmt.Errorf("%w: token endpoint status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: decode token response: %v", ErrUpstreamUnavailable, err)
	}
	if body.AccessToken == "" {
		return "", time.Time{}, ErrCredentialsInvalid
	}

	expiry := time.Now().UTC().Add(time.Duration(body.ExpiresIn) * time.Second)
	return body.AccessToken, expiry, nil
}

// FileMetadata fetches the file resource used to derive streaming links.
func (c *Client) FileMetadata(ctx context.Context, accessToken, fileID string) (FileMetadata, error) {
	endpoint := fmt.Sprintf("%s/files/%s?fields=%s", c.APIBaseURL, url.PathEscape(fileID), url.QueryEscape(metadataFields))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("%w: metadata endpoint: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return FileMetadata{}, ErrFileNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return FileMetadata{}, ErrCredentialsInvalid
	default:
		return FileMetadata{}, fmt.Errorf("%w: metadata status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		MimeType       string `json:"mimeType"`
		Size           string `json:"size"`
		WebContentLink string `json:"webContentLink"`
		WebViewLink    string `json:"webViewLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return FileMetadata{}, fmt.Errorf("%w: decode metadata: %v", ErrUpstreamUnavailable, err)
	}

	size, _ := strconv.ParseInt(body.Size, 10, 64)

	meta := FileMetadata{
		ID:          body.ID,
		Name:        body.Name,
		MimeType:    body.MimeType,
		Size:        size,
		DownloadURL: body.WebContentLink,
		ViewURL:     body.WebViewLink,
	}
	if meta.ID == "" {
		meta.ID = fileID
	}
	if meta.DownloadURL == "" {
		meta.DownloadURL = DownloadURL(meta.ID)
	}
	return meta, nil
}

// DownloadURL returns the direct-download form for a Drive file.
func DownloadURL(fileID string) string {
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(fileID)
}
