package protocol

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrNotDataURL is returned when a frame payload is not a base64 data URL.
var ErrNotDataURL = errors.New("protocol: frame is not a base64 data URL")

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewInitMessage creates an init message.
func NewInitMessage(sessionID string) (*Message, error) {
	return NewMessage(TypeInit, InitData{SessionID: sessionID})
}

// NewVideoFrameMessage creates a video frame message from a data URL.
func NewVideoFrameMessage(frame string) (*Message, error) {
	return NewMessage(TypeVideoFrame, VideoFrameData{Frame: frame})
}

// NewEmotionUpdateMessage creates an emotion update message.
func NewEmotionUpdateMessage(emotion string) (*Message, error) {
	return NewMessage(TypeEmotionUpdate, EmotionUpdateData{Emotion: emotion})
}

// NewSessionCreatedMessage creates a session created message.
func NewSessionCreatedMessage(sessionID string) (*Message, error) {
	return NewMessage(TypeSessionCreated, SessionCreatedData{SessionID: sessionID})
}

// NewTranscriptionMessage creates a transcription message.
func NewTranscriptionMessage(text string, topEmotions []RankedEmotion, ts int64) (*Message, error) {
	return NewMessage(TypeTranscription, TranscriptionData{
		Text:        text,
		TopEmotions: topEmotions,
		Timestamp:   ts,
	})
}

// NewResponseChunkMessage creates a response chunk message.
func NewResponseChunkMessage(text, fullText, emotion string, ts int64) (*Message, error) {
	return NewMessage(TypeResponseChunk, ResponseChunkData{
		Text:      text,
		FullText:  fullText,
		Emotion:   emotion,
		Timestamp: ts,
	})
}

// NewAudioChunkMessage creates an audio chunk message from raw audio bytes.
func NewAudioChunkMessage(audio []byte, ts int64) (*Message, error) {
	return NewMessage(TypeAudioChunk, AudioChunkData{
		Audio:     base64.StdEncoding.EncodeToString(audio),
		Timestamp: ts,
	})
}

// NewAudioCompleteMessage creates an audio complete message.
func NewAudioCompleteMessage(ts int64) (*Message, error) {
	return NewMessage(TypeAudioComplete, AudioCompleteData{Timestamp: ts})
}

// NewErrorMessage creates an error message.
func NewErrorMessage(text string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: text})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetInitData extracts init data from a message.
func (m *Message) GetInitData() (*InitData, error) {
	var data InitData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetVideoFrameData extracts video frame data from a message.
func (m *Message) GetVideoFrameData() (*VideoFrameData, error) {
	var data VideoFrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetEmotionUpdateData extracts emotion update data from a message.
func (m *Message) GetEmotionUpdateData() (*EmotionUpdateData, error) {
	var data EmotionUpdateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSessionCreatedData extracts session created data from a message.
func (m *Message) GetSessionCreatedData() (*SessionCreatedData, error) {
	var data SessionCreatedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTranscriptionData extracts transcription data from a message.
func (m *Message) GetTranscriptionData() (*TranscriptionData, error) {
	var data TranscriptionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetResponseChunkData extracts response chunk data from a message.
func (m *Message) GetResponseChunkData() (*ResponseChunkData, error) {
	var data ResponseChunkData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAudioChunkData extracts audio chunk data from a message.
func (m *Message) GetAudioChunkData() (*AudioChunkData, error) {
	var data AudioChunkData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message.
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeAudio decodes the base64 audio payload.
func (a *AudioChunkData) DecodeAudio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Audio)
}

// DecodeFrame decodes the data URL into raw image bytes.
// Accepts "data:image/jpeg;base64,<payload>" as sent by browser canvases.
func (v *VideoFrameData) DecodeFrame() ([]byte, error) {
	payload := v.Frame
	if idx := strings.IndexByte(payload, ','); idx >= 0 {
		payload = payload[idx+1:]
	} else if strings.HasPrefix(payload, "data:") {
		return nil, ErrNotDataURL
	}
	return base64.StdEncoding.DecodeString(payload)
}
