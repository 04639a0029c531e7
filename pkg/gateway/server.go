// Package gateway is the client-facing edge of the assistant: a WebSocket
// endpoint for the realtime event stream, an HTTP upload endpoint for
// recordings, and a health probe. It wires sessions, the emotion
// classifier, and the turn orchestrator together.
package gateway

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/zetyquickly/self-aware/pkg/emotion"
	"github.com/zetyquickly/self-aware/pkg/inference"
	"github.com/zetyquickly/self-aware/pkg/orchestrator"
	"github.com/zetyquickly/self-aware/pkg/protocol"
	"github.com/zetyquickly/self-aware/pkg/session"
	"github.com/zetyquickly/self-aware/pkg/speech"
	"github.com/zetyquickly/self-aware/pkg/stt"
	"github.com/zetyquickly/self-aware/pkg/tts"
)

const (
	// DefaultFrameInterval is the minimum gap between classified frames.
	DefaultFrameInterval = time.Second

	// classifyTimeout bounds one classifier round trip.
	classifyTimeout = 5 * time.Second
)

// Server hosts the WebSocket and HTTP endpoints.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	sessions   *session.Store
	classifier *emotion.Classifier
	queue      *speech.Queue
	orch       *orchestrator.Orchestrator
	conns      *registry

	frameInterval time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithPort sets the listen port.
func WithPort(port string) ServerOption {
	return func(s *Server) { s.port = port }
}

// WithFrameInterval sets the minimum gap between classified video frames.
func WithFrameInterval(d time.Duration) ServerOption {
	return func(s *Server) { s.frameInterval = d }
}

// WithServerLogger sets the structured logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer builds the gateway over the given collaborators. The synthesis
// queue and orchestrator are constructed internally so delivered audio and
// drain notifications flow back through the connection registry.
func NewServer(
	sessions *session.Store,
	classifier *emotion.Classifier,
	sttProvider stt.Provider,
	llm inference.Provider,
	ttsProvider tts.Provider,
	opts ...ServerOption,
) *Server {
	s := &Server{
		port:          "5001",
		logger:        slog.Default().With("component", "gateway"),
		sessions:      sessions,
		classifier:    classifier,
		conns:         newRegistry(),
		frameInterval: DefaultFrameInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.queue = speech.NewQueue(ttsProvider, s.deliverAudio,
		speech.WithOnDrained(s.audioComplete),
		speech.WithQueueLogger(s.logger),
	)
	s.orch = orchestrator.New(sessions, sttProvider, llm, s.queue, s.conns,
		orchestrator.WithLogger(s.logger),
	)

	app := fiber.New(fiber.Config{
		AppName:               "self-aware",
		DisableStartupMessage: true,
		BodyLimit:             32 * 1024 * 1024, // recordings arrive as multipart uploads
	})

	app.Use(cors.New())

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(s.handleWS))
	app.Post("/upload", s.handleUpload)
	app.Get("/health", s.handleHealth)

	s.app = app
	return s
}

// Start blocks serving until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("gateway listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// deliverAudio forwards one synthesized clip to the session's connection.
func (s *Server) deliverAudio(sessionID string, audio []byte) {
	msg, err := protocol.NewAudioChunkMessage(audio, time.Now().UnixMilli())
	if err != nil {
		s.logger.Error("build audio chunk failed", "session_id", sessionID, "error", err)
		return
	}
	if err := s.conns.Send(sessionID, msg); err != nil {
		s.logger.Debug("audio chunk dropped", "session_id", sessionID, "error", err)
	}
}

// audioComplete signals the client that the reply has finished playing out.
func (s *Server) audioComplete(sessionID string) {
	msg, err := protocol.NewAudioCompleteMessage(time.Now().UnixMilli())
	if err != nil {
		return
	}
	if err := s.conns.Send(sessionID, msg); err != nil {
		s.logger.Debug("audio complete dropped", "session_id", sessionID, "error", err)
	}
}

// handleUpload accepts a finished recording, returns the transcript
// synchronously, and streams the rest of the turn over the WebSocket.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing audio file",
		})
	}

	sessionID := c.FormValue("session_id")
	if s.sessions.Get(sessionID) == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown session",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unreadable audio file",
		})
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unreadable audio file",
		})
	}

	transcript, err := s.orch.Transcribe(c.UserContext(), sessionID, audio)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "transcription failed",
		})
	}

	// The reply streams asynchronously over the WebSocket.
	go func() {
		if err := s.orch.Respond(context.Background(), sessionID, transcript); err != nil {
			s.logger.Error("respond failed", "session_id", sessionID, "error", err)
		}
	}()

	return c.JSON(fiber.Map{"text": transcript})
}

// handleHealth reports gateway and classifier reachability.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	classifierStatus := "ok"
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := s.classifier.Health(ctx); err != nil {
		classifierStatus = "unreachable"
	}

	return c.JSON(fiber.Map{
		"status":      "ok",
		"sessions":    s.sessions.Len(),
		"connections": s.conns.count(),
		"classifier":  classifierStatus,
	})
}
