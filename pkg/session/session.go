// Package session holds the per-connection state record and its registry.
//
// A Session tracks the user's current and historical emotions, two phase-gated
// observation windows (speaking vs. listening to the assistant's reply), and a
// bounded conversation history. Every component touches sessions only through
// the Store and the session id; a session is exclusively owned by one
// connection handler.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/zetyquickly/self-aware/pkg/emotion"
)

// History bounds. Trimming always evicts from the oldest end, keeping memory
// flat for long-lived sessions and prompts within a fixed size.
const (
	MaxEmotionHistory      = 10
	MaxConversationHistory = 20 // 10 exchanges
)

// Phase-gating errors. Recording and playback are mutually exclusive phases;
// exactly one observation window accumulates at any instant.
var (
	ErrAlreadyRecording = errors.New("session: recording already in progress")
	ErrAlreadyPlaying   = errors.New("session: playback already in progress")
	ErrPhaseConflict    = errors.New("session: recording and playback are mutually exclusive")
	ErrClosed           = errors.New("session: session is closed")
)

// Role identifies a conversation participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation history entry.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Observation is one timestamped emotion reading, immutable once created.
type Observation struct {
	Emotion   emotion.Label
	Timestamp time.Time
}

// Session is the per-connection state record. All methods are safe for
// concurrent use; fields are guarded by a single mutex since each access is a
// short look-up-then-mutate step.
type Session struct {
	id string

	mu                    sync.Mutex
	currentEmotion        emotion.Label
	emotionHistory        []Observation
	speakingEmotions      []emotion.Label
	listeningEmotions     []emotion.Label
	lastListeningEmotions []emotion.Label
	conversationHistory   []Message
	recording             bool
	playingBack           bool
	active                bool
}

func newSession(id string) *Session {
	return &Session{
		id:             id,
		currentEmotion: emotion.Neutral,
		active:         true,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Active reports whether the session's connection is still open.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close marks the session inactive. Further mutations become no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// CurrentEmotion returns the latest classified emotion label.
func (s *Session) CurrentEmotion() emotion.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentEmotion
}

// RecordEmotion applies a new emotion observation: it updates the current
// label, appends to the bounded emotion history, and feeds whichever phase
// window (speaking or listening) is accumulating. Observations on a closed
// session are dropped.
func (s *Session) RecordEmotion(label emotion.Label, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}

	s.currentEmotion = label
	s.emotionHistory = append(s.emotionHistory, Observation{Emotion: label, Timestamp: at})
	if len(s.emotionHistory) > MaxEmotionHistory {
		s.emotionHistory = s.emotionHistory[len(s.emotionHistory)-MaxEmotionHistory:]
	}

	switch {
	case s.recording:
		s.speakingEmotions = append(s.speakingEmotions, label)
	case s.playingBack:
		s.listeningEmotions = append(s.listeningEmotions, label)
	}
}

// EmotionHistory returns a copy of the bounded emotion history, oldest first.
func (s *Session) EmotionHistory() []Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Observation, len(s.emotionHistory))
	copy(out, s.emotionHistory)
	return out
}

// StartRecording clears the speaking window and begins accumulating into it.
// Returns ErrPhaseConflict while playback is active: the two phases must
// never overlap.
func (s *Session) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrClosed
	}
	if s.playingBack {
		return ErrPhaseConflict
	}
	if s.recording {
		return ErrAlreadyRecording
	}
	s.recording = true
	s.speakingEmotions = nil
	return nil
}

// StopRecording ends the speaking phase and returns the collected window.
func (s *Session) StopRecording() []emotion.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
	out := make([]emotion.Label, len(s.speakingEmotions))
	copy(out, s.speakingEmotions)
	return out
}

// SpeakingEmotions returns a copy of the current speaking window.
func (s *Session) SpeakingEmotions() []emotion.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]emotion.Label, len(s.speakingEmotions))
	copy(out, s.speakingEmotions)
	return out
}

// StartPlayback clears the listening window and begins accumulating into it.
func (s *Session) StartPlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrClosed
	}
	if s.recording {
		return ErrPhaseConflict
	}
	if s.playingBack {
		return ErrAlreadyPlaying
	}
	s.playingBack = true
	s.listeningEmotions = nil
	return nil
}

// StopPlayback ends the listening phase and snapshots the window into the
// last-listening buffer, so the next prompt can reference how the user
// reacted to the previous reply.
func (s *Session) StopPlayback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playingBack {
		return
	}
	s.playingBack = false
	s.lastListeningEmotions = s.listeningEmotions
	s.listeningEmotions = nil
}

// LastListeningEmotions returns a copy of the window captured during the
// previous assistant playback.
func (s *Session) LastListeningEmotions() []emotion.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]emotion.Label, len(s.lastListeningEmotions))
	copy(out, s.lastListeningEmotions)
	return out
}

// Recording reports whether the speaking window is accumulating.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// PlayingBack reports whether the listening window is accumulating.
func (s *Session) PlayingBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playingBack
}

// AppendMessage appends one conversation entry, trimming the oldest entries
// beyond the history cap. Appends to a closed session are dropped.
func (s *Session) AppendMessage(role Role, content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.conversationHistory = append(s.conversationHistory, Message{
		Role:      role,
		Content:   content,
		Timestamp: at,
	})
	if len(s.conversationHistory) > MaxConversationHistory {
		s.conversationHistory = s.conversationHistory[len(s.conversationHistory)-MaxConversationHistory:]
	}
}

// History returns a copy of up to the last n conversation entries, oldest
// first. n <= 0 returns the whole (bounded) history.
func (s *Session) History(n int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.conversationHistory
	if n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]Message, len(h))
	copy(out, h)
	return out
}
