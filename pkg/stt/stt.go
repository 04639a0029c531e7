// Package stt provides a narrow interface to speech-to-text backends.
//
// The gateway consumes transcription as a single-shot call: recorded audio
// bytes in, a plain transcript string out, or an error. The default
// implementation targets the OpenAI-compatible /audio/transcriptions
// endpoint (Whisper and drop-in replacements).
package stt

import (
	"context"
	"errors"
	"fmt"
)

// Provider defines the STT backend interface.
type Provider interface {
	// Transcribe converts recorded audio to text. The audio buffer is a
	// complete recording in a container format the backend accepts
	// (e.g. webm/opus from a browser MediaRecorder).
	Transcribe(ctx context.Context, audio []byte) (string, error)

	// Health checks backend connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Sentinel errors.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrEmptyAudio is returned when the audio buffer is empty.
	ErrEmptyAudio = errors.New("stt: empty audio buffer")
)

// APIError represents an error response from an STT API.
type APIError struct {
	StatusCode int
	Message    string
	Provider   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("stt [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("stt [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
