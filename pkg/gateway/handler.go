package gateway

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/zetyquickly/self-aware/pkg/emotion"
	"github.com/zetyquickly/self-aware/pkg/protocol"
	"github.com/zetyquickly/self-aware/pkg/session"
)

// handleWS runs one client connection: init handshake, then the event loop
// until the socket closes.
func (s *Server) handleWS(ws *websocket.Conn) {
	var (
		conn      *Conn
		sess      *session.Session
		lastFrame time.Time
	)

	defer func() {
		if conn == nil {
			return
		}
		s.conns.remove(conn.SessionID)
		s.queue.Purge(conn.SessionID)
		s.sessions.Delete(conn.SessionID)
		s.logger.Info("session disconnected",
			"session_id", conn.SessionID,
			"connections", s.conns.count(),
		)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			s.logger.Debug("unparseable message", "error", err)
			continue
		}

		if msg.Type == protocol.TypeInit {
			conn, sess = s.handleInit(ws, msg, conn, sess)
			continue
		}

		// Everything else requires a completed init.
		if sess == nil {
			s.sendError(conn, ws, "session not initialized")
			continue
		}

		switch msg.Type {
		case protocol.TypeVideoFrame:
			if time.Since(lastFrame) < s.frameInterval {
				continue
			}
			lastFrame = time.Now()
			s.handleVideoFrame(sess, msg)

		case protocol.TypeRecordingStart:
			if err := sess.StartRecording(); err != nil {
				s.logger.Debug("recording start rejected", "session_id", sess.ID(), "error", err)
				continue
			}
			// The user interrupted; drop any reply still being spoken.
			s.queue.Clear(sess.ID())

		case protocol.TypeRecordingStop:
			sess.StopRecording()

		case protocol.TypeTTSStart:
			if err := sess.StartPlayback(); err != nil {
				s.logger.Debug("playback start rejected", "session_id", sess.ID(), "error", err)
			}

		case protocol.TypeTTSStop:
			sess.StopPlayback()

		case protocol.TypeEmotionUpdate:
			s.handleEmotionOverride(sess, msg)

		default:
			s.logger.Debug("unhandled message type", "type", msg.Type)
		}
	}
}

// handleInit creates (or replaces) the session for this connection and
// confirms it to the client.
func (s *Server) handleInit(ws *websocket.Conn, msg *protocol.Message, existing *Conn, existingSess *session.Session) (*Conn, *session.Session) {
	data, err := msg.GetInitData()
	if err != nil {
		s.sendError(existing, ws, "invalid init payload")
		return existing, existingSess
	}

	sessionID := data.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	if existing != nil {
		s.conns.remove(existing.SessionID)
		s.queue.Purge(existing.SessionID)
		s.sessions.Delete(existing.SessionID)
	}

	sess := s.sessions.Create(sessionID)
	conn := &Conn{
		SessionID: sessionID,
		Connected: time.Now(),
		ws:        ws,
	}
	s.conns.add(conn)

	s.logger.Info("session created",
		"session_id", sessionID,
		"connections", s.conns.count(),
	)

	reply, err := protocol.NewSessionCreatedMessage(sessionID)
	if err == nil {
		if err := conn.Send(reply); err != nil {
			s.logger.Debug("session created send failed", "session_id", sessionID, "error", err)
		}
	}

	return conn, sess
}

// handleVideoFrame classifies a frame off the read loop. Classification
// failures are swallowed: the session keeps its previous emotion.
func (s *Server) handleVideoFrame(sess *session.Session, msg *protocol.Message) {
	data, err := msg.GetVideoFrameData()
	if err != nil {
		return
	}

	frame, err := data.DecodeFrame()
	if err != nil {
		s.logger.Debug("undecodable frame", "session_id", sess.ID(), "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
		defer cancel()

		detection, err := s.classifier.Detect(ctx, frame)
		if err != nil {
			s.logger.Debug("classification failed", "session_id", sess.ID(), "error", err)
			return
		}

		sess.RecordEmotion(detection.Emotion, time.Now())

		update, err := protocol.NewEmotionUpdateMessage(string(detection.Emotion))
		if err != nil {
			return
		}
		if err := s.conns.Send(sess.ID(), update); err != nil {
			s.logger.Debug("emotion update dropped", "session_id", sess.ID(), "error", err)
		}
	}()
}

// handleEmotionOverride applies a client-supplied emotion as if it came
// from the classifier.
func (s *Server) handleEmotionOverride(sess *session.Session, msg *protocol.Message) {
	data, err := msg.GetEmotionUpdateData()
	if err != nil || data.Emotion == "" {
		return
	}
	sess.RecordEmotion(emotion.Normalize(data.Emotion), time.Now())
}

// sendError reports an error event to the client. Once a connection is
// registered its write mutex serializes the send; the raw socket is only
// written before init, when no other goroutine can hold the socket.
func (s *Server) sendError(conn *Conn, ws *websocket.Conn, text string) {
	msg, err := protocol.NewErrorMessage(text)
	if err != nil {
		return
	}
	if conn != nil {
		if err := conn.Send(msg); err != nil {
			s.logger.Debug("error event send failed", "session_id", conn.SessionID, "error", err)
		}
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("error event send failed", "error", err)
	}
}
