package secrets

import "testing"

func TestDecodePayloadJSONObject(t *testing.T) {
	payload := decodePayload(`{"username":"app","port":5432,"ssl":true,"comment":null}`)

	if payload["username"] != "app" {
		t.Fatalf("unexpected username: %q", payload["username"])
	}
	if payload["port"] != "5432" {
		t.Fatalf("expected numeric value to stringify, got %q", payload["port"])
	}
	if payload["ssl"] != "true" {
		t.Fatalf("expected bool value to stringify, got %q", payload["ssl"])
	}
	if payload["comment"] != "" {
		t.Fatalf("expected null to map to empty string, got %q", payload["comment"])
	}
}

func TestDecodePayloadBareString(t *testing.T) {
	payload := decodePayload("plain-auth-token")

	if payload["value"] != "plain-auth-token" {
		t.Fatalf("expected bare secret under value key, got %v", payload)
	}
}
