package drive

import "errors"

var (
	// ErrNotConnected indicates the user has no Drive credential on file.
	ErrNotConnected = errors.New("google drive not connected")
	// ErrCredentialsInvalid indicates the provider rejected the refresh token;
	// the user must reconnect the integration.
	ErrCredentialsInvalid = errors.New("google drive credentials invalid")
	// ErrFileNotFound indicates the provider reports no such file.
	ErrFileNotFound = errors.New("google drive file not found")
	// ErrUpstreamUnavailable indicates the provider is unreachable, timed out,
	// or exhausted the permitted retries.
	ErrUpstreamUnavailable = errors.New("google drive unavailable")
)
