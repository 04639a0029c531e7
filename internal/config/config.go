// Package config provides configuration for the self-aware gateway.
// Flag parsing is done in cmd/selfaware; this struct is data only.
package config

import (
	"fmt"
	"os"
)

// Default configuration values.
const (
	DefaultPort          = "5001"
	DefaultEmotionAPIURL = "http://localhost:5139"
	DefaultLLMBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel      = "gpt-4o-mini"
	DefaultSTTModel      = "whisper-1"
	DefaultTTSModel      = "gpt-4o-mini-tts"
	DefaultTTSVoice      = "nova"
)

// Config holds all configuration for the gateway application.
type Config struct {
	// Debug enables verbose debug logging.
	Debug bool

	// Port is the HTTP/WebSocket listen port.
	Port string

	// EmotionAPIURL is the base URL of the facial emotion classifier service.
	EmotionAPIURL string

	// LLM configuration (any OpenAI-compatible endpoint).
	LLMBaseURL string
	LLMModel   string

	// STT and TTS configuration.
	STTModel string
	TTSModel string
	TTSVoice string

	// API keys (typically from environment variables).
	OpenAIKey string
}

// ConfigError describes a missing or invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// DefaultConfig returns sensible defaults for the gateway.
func DefaultConfig() Config {
	return Config{
		Port:          DefaultPort,
		EmotionAPIURL: DefaultEmotionAPIURL,
		LLMBaseURL:    DefaultLLMBaseURL,
		LLMModel:      DefaultLLMModel,
		STTModel:      DefaultSTTModel,
		TTSModel:      DefaultTTSModel,
		TTSVoice:      DefaultTTSVoice,
	}
}

// LoadEnv loads configuration values from environment variables.
// Call this after flag parsing to apply environment overrides.
func (c *Config) LoadEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Port = port
	}
	if url := os.Getenv("EMOTION_API_URL"); url != "" {
		c.EmotionAPIURL = url
	}
	if url := os.Getenv("LLM_BASE_URL"); url != "" {
		c.LLMBaseURL = url
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLMModel = model
	}
	if model := os.Getenv("STT_MODEL"); model != "" {
		c.STTModel = model
	}
	if model := os.Getenv("TTS_MODEL"); model != "" {
		c.TTSModel = model
	}
	if voice := os.Getenv("TTS_VOICE"); voice != "" {
		c.TTSVoice = voice
	}
	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.OpenAIKey == "" {
		return &ConfigError{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required"}
	}
	if c.Port == "" {
		return &ConfigError{Field: "Port", Message: "listen port must not be empty"}
	}
	return nil
}
