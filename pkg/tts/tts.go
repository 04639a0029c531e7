// Package tts provides a unified interface for text-to-speech providers.
//
// All providers implement the Provider interface, enabling seamless switching
// between OpenAI and any OpenAI-compatible speech endpoint without changing
// caller code. Synthesis accepts a tone hint so replies can be spoken to
// match the listener's mood.
//
// Example usage:
//
//	provider, _ := tts.NewOpenAI(
//	    tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    tts.WithVoice(tts.VoiceNova),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello world", "cheerful")
//	// result.Audio contains MP3 audio bytes
package tts

import "context"

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	// The tone hint shapes delivery; an empty tone uses the voice default.
	Synthesize(ctx context.Context, text, tone string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data (MP3 for OpenAI).
	Audio []byte

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the synthesis round-trip time in milliseconds.
	LatencyMs int64
}
