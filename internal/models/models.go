package models

import "time"

// OAuthCredential holds the per-user tokens issued by the remote provider.
type OAuthCredential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token must be refreshed before use.
// A zero expiry is treated as expired so freshly connected accounts without a
// recorded expiry go through the refresh flow once.
func (c OAuthCredential) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.ExpiresAt)
}

// DriveConnection mirrors the persisted state of a user's Drive integration.
type DriveConnection struct {
	UserID         string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	FolderID       string
	Connected      bool
	UpdatedAt      time.Time
}

// Credential extracts the OAuth tokens from a connection record.
func (c DriveConnection) Credential() OAuthCredential {
	return OAuthCredential{
		UserID:       c.UserID,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.TokenExpiresAt,
	}
}
