// Package protocol defines the WebSocket message types for the client-gateway
// session channel. The client (browser) sends audio/video control messages;
// the gateway streams transcription, response, and audio events back.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Gateway messages
	TypeInit           MessageType = "init"            // Create or reset a session
	TypeVideoFrame     MessageType = "video_frame"     // Webcam frame for emotion classification
	TypeRecordingStart MessageType = "recording_start" // User started recording speech
	TypeRecordingStop  MessageType = "recording_stop"  // User stopped recording speech
	TypeTTSStart       MessageType = "tts_start"       // Client started assistant audio playback
	TypeTTSStop        MessageType = "tts_stop"        // Client finished assistant audio playback
	TypeEmotionUpdate  MessageType = "emotion_update"  // Emotion label (direct override or server push)

	// Gateway → Client messages
	TypeSessionCreated MessageType = "session_created" // Session is ready
	TypeTranscription  MessageType = "transcription"   // Transcript of the user's speech
	TypeResponseChunk  MessageType = "response_chunk"  // Incremental assistant text
	TypeAudioChunk     MessageType = "audio_chunk"     // Synthesized utterance audio
	TypeAudioComplete  MessageType = "audio_complete"  // All queued audio delivered
	TypeError          MessageType = "error"           // Turn or protocol error
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Client → Gateway Message Types
// =============================================================================

// InitData requests session creation. SessionID is optional; the gateway
// generates one when absent.
type InitData struct {
	SessionID string `json:"session_id,omitempty"`
}

// VideoFrameData contains a webcam frame as a data URL
// (e.g. "data:image/jpeg;base64,...").
type VideoFrameData struct {
	Frame string `json:"frame"`
}

// EmotionUpdateData carries an emotion label. Sent by the client as a direct
// override, or by the gateway after classifying a frame.
type EmotionUpdateData struct {
	Emotion string `json:"emotion"`
}

// =============================================================================
// Gateway → Client Message Types
// =============================================================================

// SessionCreatedData confirms session creation.
type SessionCreatedData struct {
	SessionID string `json:"session_id"`
}

// RankedEmotion is one entry of an aggregated emotion summary.
type RankedEmotion struct {
	Emotion    string `json:"emotion"`
	Percentage int    `json:"percentage"`
}

// TranscriptionData contains the user's transcript plus the emotions observed
// while they were speaking.
type TranscriptionData struct {
	Text        string          `json:"text"`
	TopEmotions []RankedEmotion `json:"top_emotions"`
	Timestamp   int64           `json:"timestamp"`
}

// ResponseChunkData carries one fragment of the streaming assistant reply.
type ResponseChunkData struct {
	Text      string `json:"text"`      // New fragment
	FullText  string `json:"full_text"` // Response accumulated so far
	Emotion   string `json:"emotion"`   // Assistant tone label
	Timestamp int64  `json:"timestamp"`
}

// AudioChunkData carries one synthesized utterance.
type AudioChunkData struct {
	Audio     string `json:"audio"` // base64 encoded
	Timestamp int64  `json:"timestamp"`
}

// AudioCompleteData signals that the synthesis queue drained.
type AudioCompleteData struct {
	Timestamp int64 `json:"timestamp"`
}

// ErrorData reports a turn or protocol error to the client.
type ErrorData struct {
	Message string `json:"message"`
}
