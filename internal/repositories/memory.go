package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/watchparty/backend/internal/models"
)

// NewMemoryConnectionRepository returns a map-backed connection repository for
// tests and local development.
func NewMemoryConnectionRepository() *MemoryConnectionRepository {
	return &MemoryConnectionRepository{connections: make(map[string]models.DriveConnection)}
}

// MemoryConnectionRepository implements the connection store in memory.
type MemoryConnectionRepository struct {
	mu          sync.RWMutex
	connections map[string]models.DriveConnection
}

// SaveConnection stores or replaces the full connection record.
func (r *MemoryConnectionRepository) SaveConnection(_ context.Context, conn models.DriveConnection) error {
	r.mu.Lock()
	r.connections[conn.UserID] = conn
	r.mu.Unlock()
	return nil
}

// LoadCredential returns the OAuth credential for a connected user.
func (r *MemoryConnectionRepository) LoadCredential(_ context.Context, userID string) (models.OAuthCredential, error) {
	r.mu.RLock()
	conn, ok := r.connections[userID]
	r.mu.RUnlock()
	if !ok || !conn.Connected {
		return models.OAuthCredential{}, ErrNotFound
	}
	return conn.Credential(), nil
}

// SaveCredential records a refreshed token pair for an existing connection.
func (r *MemoryConnectionRepository) SaveCredential(_ context.Context, userID, accessToken, refreshToken string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[userID]
	if !ok {
		return ErrNotFound
	}
	conn.AccessToken = accessToken
	conn.RefreshToken = refreshToken
	conn.TokenExpiresAt = expiry
	conn.UpdatedAt = time.Now().UTC()
	r.connections[userID] = conn
	return nil
}

// Disconnect clears tokens and marks the integration disconnected.
func (r *MemoryConnectionRepository) Disconnect(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[userID]
	if !ok {
		return ErrNotFound
	}
	conn.AccessToken = ""
	conn.RefreshToken = ""
	conn.TokenExpiresAt = time.Time{}
	conn.Connected = false
	conn.UpdatedAt = time.Now().UTC()
	r.connections[userID] = conn
	return nil
}
