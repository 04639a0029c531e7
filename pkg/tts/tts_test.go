package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zetyquickly/self-aware/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world", "cheerful")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
	})

	t.Run("Tone is recorded", func(t *testing.T) {
		last := mock.LastCall()
		if last == nil {
			t.Fatal("expected a recorded call")
		}
		if last.Tone != "cheerful" {
			t.Errorf("expected tone cheerful, got %q", last.Tone)
		}
	})

	t.Run("Health returns nil", func(t *testing.T) {
		if err := mock.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		if mock.CallCount("Synthesize") != 1 {
			t.Errorf("expected 1 Synthesize call, got %d", mock.CallCount("Synthesize"))
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)
	ctx := context.Background()

	if _, err := mock.Synthesize(ctx, "Hello", ""); !errors.Is(err, testErr) {
		t.Errorf("Synthesize error = %v, want test error", err)
	}
	if err := mock.Health(ctx); !errors.Is(err, testErr) {
		t.Errorf("Health error = %v, want test error", err)
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := tts.NewOpenAI(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("NewOpenAI() error = %v, want ErrNoAPIKey", err)
	}
}

func TestOpenAISynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["input"] != "Hello there." {
			t.Errorf("input = %v", payload["input"])
		}
		if payload["voice"] != tts.VoiceNova {
			t.Errorf("voice = %v", payload["voice"])
		}
		if payload["instructions"] != "Speak in a calm tone." {
			t.Errorf("instructions = %v", payload["instructions"])
		}

		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	provider, err := tts.NewOpenAI(
		tts.WithAPIKey("test-key"),
		tts.WithBaseURL(srv.URL),
	)
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "Hello there.", "calm")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(result.Audio) != "mp3-bytes" {
		t.Errorf("audio = %q", result.Audio)
	}
	if result.CharCount != len("Hello there.") {
		t.Errorf("char count = %d", result.CharCount)
	}
}

func TestOpenAISynthesizeNoTone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		if _, ok := payload["instructions"]; ok {
			t.Error("instructions should be omitted when tone is empty")
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	provider, _ := tts.NewOpenAI(tts.WithAPIKey("test-key"), tts.WithBaseURL(srv.URL))
	defer provider.Close()

	if _, err := provider.Synthesize(context.Background(), "Hi.", ""); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
}

func TestOpenAISynthesizeEmptyText(t *testing.T) {
	provider, _ := tts.NewOpenAI(tts.WithAPIKey("test-key"))

	if _, err := provider.Synthesize(context.Background(), "", "calm"); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("Synthesize(\"\") error = %v, want ErrEmptyText", err)
	}
}

func TestOpenAISynthesizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid voice","code":"invalid_value"}}`))
	}))
	defer srv.Close()

	provider, _ := tts.NewOpenAI(tts.WithAPIKey("test-key"), tts.WithBaseURL(srv.URL))
	defer provider.Close()

	_, err := provider.Synthesize(context.Background(), "Hi.", "")
	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Synthesize() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.Code != "invalid_value" {
		t.Errorf("code = %q", apiErr.Code)
	}
}
