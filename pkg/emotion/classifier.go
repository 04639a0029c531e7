package emotion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zetyquickly/self-aware/internal/httpc"
)

// DefaultDetectTimeout bounds each classification request. A slow or absent
// classifier must never stall the session loop; callers treat a timeout as
// "no emotion update this tick".
const DefaultDetectTimeout = 5 * time.Second

// Classifier errors.
var (
	// ErrNoFace is returned when the classifier found no face in the frame.
	ErrNoFace = errors.New("emotion: no face detected")
)

// Detection is one classified face.
type Detection struct {
	// Emotion is the normalized session-vocabulary label.
	Emotion Label

	// Confidence is the classifier's confidence for the label, 0 when the
	// service did not report one.
	Confidence float64
}

// Classifier calls the external facial emotion classification service.
type Classifier struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithDetectTimeout overrides the per-request timeout.
func WithDetectTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) { c.client = httpc.NewClient(d) }
}

// WithHTTPClient replaces the HTTP client, for tests.
func WithHTTPClient(client *http.Client) ClassifierOption {
	return func(c *Classifier) { c.client = client }
}

// WithClassifierLogger sets the structured logger.
func WithClassifierLogger(l *slog.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = l.With("component", "emotion.classifier") }
}

// NewClassifier creates a classifier client for the given service base URL.
func NewClassifier(baseURL string, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httpc.NewClient(DefaultDetectTimeout),
		logger:  slog.Default().With("component", "emotion.classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// detectResponse is the classifier service's /detect response shape.
type detectResponse struct {
	Success    bool `json:"success"`
	Detections []struct {
		Emotion    string  `json:"emotion"`
		Confidence float64 `json:"confidence"`
	} `json:"detections"`
	NumFaces int    `json:"num_faces"`
	Error    string `json:"error"`
}

// Detect classifies the emotion of the primary face in the image.
// Returns ErrNoFace when the frame contains no detectable face.
func (c *Classifier) Detect(ctx context.Context, image []byte) (Detection, error) {
	payload := map[string]string{
		"image_base64": base64.StdEncoding.EncodeToString(image),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Detection{}, fmt.Errorf("emotion: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return Detection{}, fmt.Errorf("emotion: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Detection{}, fmt.Errorf("emotion: detect request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Detection{}, fmt.Errorf("emotion: detect returned status %d", resp.StatusCode)
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Detection{}, fmt.Errorf("emotion: decode response: %w", err)
	}
	if result.Error != "" {
		return Detection{}, fmt.Errorf("emotion: classifier error: %s", result.Error)
	}
	if len(result.Detections) == 0 {
		return Detection{}, ErrNoFace
	}

	// Primary face is the first detection.
	first := result.Detections[0]
	raw, conf := splitAnnotatedLabel(first.Emotion)
	if conf == 0 {
		conf = first.Confidence
	}

	det := Detection{Emotion: Normalize(raw), Confidence: conf}
	c.logger.Debug("classified frame",
		"emotion", det.Emotion,
		"confidence", det.Confidence,
		"faces", result.NumFaces,
	)
	return det, nil
}

// Health checks classifier service connectivity.
func (c *Classifier) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("emotion: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("emotion: health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("emotion: health returned status %d", resp.StatusCode)
	}
	return nil
}

// splitAnnotatedLabel splits labels like "happy (0.92)" that the service
// emits when confidence annotation is enabled (its default).
func splitAnnotatedLabel(s string) (label string, confidence float64) {
	label = strings.TrimSpace(s)
	open := strings.Index(label, " (")
	if open < 0 || !strings.HasSuffix(label, ")") {
		return label, 0
	}

	conf, err := strconv.ParseFloat(label[open+2:len(label)-1], 64)
	if err != nil {
		return label, 0
	}
	return label[:open], conf
}
