package app

import (
	"log/slog"
	"testing"
	"time"

	"github.com/watchparty/backend/internal/config"
	"github.com/watchparty/backend/internal/drive"
)

func TestBuildURLCacheDefaultsToMemory(t *testing.T) {
	cfg := config.Config{StreamURLTTL: 5 * time.Minute}

	cache, cleanup := buildURLCache(cfg, nil, slog.Default())
	defer cleanup()

	if _, ok := cache.(*drive.MemoryURLCache); !ok {
		t.Fatalf("expected in-memory cache without a redis address, got %T", cache)
	}
}

func TestBuildURLCacheUsesRedisWhenConfigured(t *testing.T) {
	cfg := config.Config{StreamURLTTL: 5 * time.Minute, RedisAddr: "localhost:6379"}

	cache, cleanup := buildURLCache(cfg, nil, slog.Default())
	defer cleanup()

	if _, ok := cache.(*drive.RedisURLCache); !ok {
		t.Fatalf("expected redis cache, got %T", cache)
	}
}

func TestDriveClientCredentialsFallsBackToConfig(t *testing.T) {
	cfg := config.Config{Drive: config.DriveConfig{ClientID: "env-id", ClientSecret: "env-secret"}}

	creds := driveClientCredentials(cfg, nil)

	id, secret := creds()
	if id != "env-id" || secret != "env-secret" {
		t.Fatalf("expected env fallback, got %q %q", id, secret)
	}
}

func TestUpstreamClientHasNoWholeRequestTimeout(t *testing.T) {
	client := upstreamClient(0)

	if client.Timeout != 0 {
		t.Fatalf("whole-request timeout would cut long streams short, got %v", client.Timeout)
	}
}
