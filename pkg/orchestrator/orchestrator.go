// Package orchestrator runs a conversation turn end to end: transcribe the
// user's recording, stream an emotion-aware reply from the LLM, and hand
// finished utterances to the synthesis queue.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zetyquickly/self-aware/pkg/emotion"
	"github.com/zetyquickly/self-aware/pkg/inference"
	"github.com/zetyquickly/self-aware/pkg/protocol"
	"github.com/zetyquickly/self-aware/pkg/segment"
	"github.com/zetyquickly/self-aware/pkg/session"
	"github.com/zetyquickly/self-aware/pkg/speech"
	"github.com/zetyquickly/self-aware/pkg/stt"
)

// ErrSessionNotFound is returned when a turn references an unknown session.
var ErrSessionNotFound = errors.New("orchestrator: session not found")

// fallbackTemplate is spoken when the LLM cannot produce a reply.
// The turn still produces a spoken, logged response.
const fallbackTemplate = "I understand you said: '%s'. How can I help you with that?"

// historyLimit is how many conversation entries the prompt carries.
const historyLimit = 10

// EventSink delivers outbound protocol messages to a session's connection.
// Sends to departed sessions are dropped by the implementation.
type EventSink interface {
	Send(sessionID string, msg *protocol.Message) error
}

// Orchestrator coordinates STT, the LLM stream, and speech synthesis
// for one turn at a time per session.
type Orchestrator struct {
	sessions *session.Store
	stt      stt.Provider
	llm      inference.Provider
	queue    *speech.Queue
	sink     EventSink
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator over the given collaborators.
func New(sessions *session.Store, sttProvider stt.Provider, llm inference.Provider, queue *speech.Queue, sink EventSink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions: sessions,
		stt:      sttProvider,
		llm:      llm,
		queue:    queue,
		sink:     sink,
		logger:   slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Transcribe converts the recording to text, emits the transcription event
// with the aggregated speaking emotions, and appends the user history entry.
// An STT failure is fatal to the turn: an error event is emitted and no
// reply is generated.
func (o *Orchestrator) Transcribe(ctx context.Context, sessionID string, audio []byte) (string, error) {
	sess := o.sessions.Get(sessionID)
	if sess == nil {
		return "", ErrSessionNotFound
	}

	turnID := ulid.Make().String()
	log := o.logger.With("session_id", sessionID, "turn_id", turnID)

	text, err := o.stt.Transcribe(ctx, audio)
	if err != nil {
		log.Error("transcription failed", "error", err)
		o.emitError(sessionID, "Failed to transcribe audio")
		return "", err
	}

	speaking := sess.SpeakingEmotions()
	top := rankedToProtocol(emotion.Aggregate(speaking))

	log.Info("transcribed turn",
		"chars", len(text),
		"speaking_observations", len(speaking),
	)

	msg, merr := protocol.NewTranscriptionMessage(text, top, time.Now().UnixMilli())
	o.emit(sessionID, msg, merr)
	sess.AppendMessage(session.RoleUser, text, time.Now())

	return text, nil
}

// Respond streams the assistant reply for a transcript: response_chunk
// events as fragments arrive, complete utterances into the synthesis queue,
// and an assistant history entry at the end. Any LLM failure falls back to
// a templated reply so the turn is never silent.
func (o *Orchestrator) Respond(ctx context.Context, sessionID, transcript string) error {
	sess := o.sessions.Get(sessionID)
	if sess == nil {
		return ErrSessionNotFound
	}

	turnID := ulid.Make().String()
	log := o.logger.With("session_id", sessionID, "turn_id", turnID)

	tone := o.turnTone(sess)

	stream, err := o.llm.Stream(ctx, &inference.ChatRequest{
		Messages: o.buildMessages(sess, transcript),
	})
	if err != nil {
		log.Error("llm stream open failed", "error", err)
		o.fallback(sess, transcript, tone)
		return nil
	}
	defer stream.Close()

	seg := segment.New()
	var full string

	for {
		chunk, err := stream.Recv()
		if err != nil {
			log.Error("llm stream failed mid-turn", "error", err)
			o.fallback(sess, transcript, tone)
			return nil
		}

		if chunk.Delta != "" {
			full += chunk.Delta
			msg, merr := protocol.NewResponseChunkMessage(chunk.Delta, full, tone, time.Now().UnixMilli())
			o.emit(sessionID, msg, merr)
			for _, utterance := range seg.Feed(chunk.Delta) {
				o.queue.Enqueue(sessionID, utterance, tone)
			}
		}

		if chunk.Done {
			break
		}
	}

	if remainder, ok := seg.Flush(); ok {
		o.queue.Enqueue(sessionID, remainder, tone)
	}

	sess.AppendMessage(session.RoleAssistant, full, time.Now())
	log.Info("turn complete", "reply_chars", len(full), "tone", tone)

	return nil
}

// RunTurn performs a full turn: Transcribe then Respond.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID string, audio []byte) error {
	transcript, err := o.Transcribe(ctx, sessionID, audio)
	if err != nil {
		return err
	}
	return o.Respond(ctx, sessionID, transcript)
}

// fallback emits, enqueues, and records the templated reply.
func (o *Orchestrator) fallback(sess *session.Session, transcript, tone string) {
	text := fmt.Sprintf(fallbackTemplate, transcript)

	msg, merr := protocol.NewResponseChunkMessage(text, text, tone, time.Now().UnixMilli())
	o.emit(sess.ID(), msg, merr)
	o.queue.Enqueue(sess.ID(), text, tone)
	sess.AppendMessage(session.RoleAssistant, text, time.Now())
}

// turnTone picks the spoken tone from the dominant speaking emotion,
// falling back to the session's current emotion.
func (o *Orchestrator) turnTone(sess *session.Session) string {
	if dominant, ok := emotion.Dominant(sess.SpeakingEmotions()); ok {
		return emotion.Tone(dominant)
	}
	return emotion.Tone(sess.CurrentEmotion())
}

// emit sends a constructed message, logging construction failures.
func (o *Orchestrator) emit(sessionID string, msg *protocol.Message, err error) {
	if err != nil {
		o.logger.Error("build message failed", "session_id", sessionID, "error", err)
		return
	}
	if err := o.sink.Send(sessionID, msg); err != nil {
		o.logger.Debug("event dropped", "session_id", sessionID, "type", msg.Type, "error", err)
	}
}

func (o *Orchestrator) emitError(sessionID, text string) {
	msg, err := protocol.NewErrorMessage(text)
	o.emit(sessionID, msg, err)
}

func rankedToProtocol(ranked []emotion.Ranked) []protocol.RankedEmotion {
	out := make([]protocol.RankedEmotion, len(ranked))
	for i, r := range ranked {
		out[i] = protocol.RankedEmotion{
			Emotion:    string(r.Emotion),
			Percentage: r.Percentage,
		}
	}
	return out
}
