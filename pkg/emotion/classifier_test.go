package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClassifierDetect(t *testing.T) {
	tests := []struct {
		name     string
		response string
		status   int
		want     Detection
		wantErr  error
	}{
		{
			name:     "annotated label",
			response: `{"success":true,"detections":[{"emotion":"happy (0.92)","confidence":0.88}],"num_faces":1}`,
			status:   http.StatusOK,
			want:     Detection{Emotion: Happy, Confidence: 0.92},
		},
		{
			name:     "bare label uses box confidence",
			response: `{"success":true,"detections":[{"emotion":"anger","confidence":0.75}],"num_faces":1}`,
			status:   http.StatusOK,
			want:     Detection{Emotion: Angry, Confidence: 0.75},
		},
		{
			name:     "no face",
			response: `{"success":true,"detections":[],"num_faces":0}`,
			status:   http.StatusOK,
			wantErr:  ErrNoFace,
		},
		{
			name:     "first of multiple faces wins",
			response: `{"success":true,"detections":[{"emotion":"surprise (0.60)"},{"emotion":"sad (0.99)"}],"num_faces":2}`,
			status:   http.StatusOK,
			want:     Detection{Emotion: Surprised, Confidence: 0.60},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/detect" {
					t.Errorf("path = %s, want /detect", r.URL.Path)
				}
				var body map[string]string
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if body["image_base64"] == "" {
					t.Error("request missing image_base64")
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			c := NewClassifier(srv.URL)
			got, err := c.Detect(context.Background(), []byte("jpeg"))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Detect() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClassifierDetectTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClassifier(srv.URL, WithDetectTimeout(20*time.Millisecond))
	if _, err := c.Detect(context.Background(), []byte("jpeg")); err == nil {
		t.Error("Detect() should time out")
	}
}

func TestClassifierHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	c := NewClassifier(srv.URL)
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}

	unreachable := NewClassifier("http://127.0.0.1:1", WithDetectTimeout(100*time.Millisecond))
	if err := unreachable.Health(context.Background()); err == nil {
		t.Error("Health() should fail for unreachable classifier")
	}
}

func TestSplitAnnotatedLabel(t *testing.T) {
	tests := []struct {
		in       string
		label    string
		conf     float64
	}{
		{"happy (0.92)", "happy", 0.92},
		{"neutral", "neutral", 0},
		{"sad (not a number)", "sad (not a number)", 0},
		{" fear (1.00) ", "fear", 1.00},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			label, conf := splitAnnotatedLabel(tt.in)
			if label != tt.label || conf != tt.conf {
				t.Errorf("splitAnnotatedLabel(%q) = %q, %v; want %q, %v", tt.in, label, conf, tt.label, tt.conf)
			}
		})
	}
}
