package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zetyquickly/self-aware/pkg/emotion"
	"github.com/zetyquickly/self-aware/pkg/inference"
	"github.com/zetyquickly/self-aware/pkg/protocol"
	"github.com/zetyquickly/self-aware/pkg/session"
	"github.com/zetyquickly/self-aware/pkg/stt"
	"github.com/zetyquickly/self-aware/pkg/tts"
)

// newTestServer builds a gateway over mocks, listening on the given port.
func newTestServer(t *testing.T, port string, classifierURL string) *Server {
	t.Helper()

	sttMock := stt.NewMock()
	sttMock.TranscribeFunc = func(ctx context.Context, audio []byte) (string, error) {
		return "hello world", nil
	}

	llm := inference.NewMock()
	llm.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		return inference.NewMockStream("Hi there. ", "Nice to meet you."), nil
	}

	ttsMock := tts.NewMock()
	ttsMock.SynthesizeFunc = func(ctx context.Context, text, tone string) (*tts.AudioResult, error) {
		return &tts.AudioResult{Audio: []byte(text), CharCount: len(text)}, nil
	}

	srv := NewServer(
		session.NewStore(),
		emotion.NewClassifier(classifierURL),
		sttMock,
		llm,
		ttsMock,
		WithPort(port),
		WithFrameInterval(0),
	)

	go srv.Start()
	t.Cleanup(func() { srv.Shutdown() })
	time.Sleep(100 * time.Millisecond)

	return srv
}

// dialAndInit opens a WebSocket and completes the init handshake.
func dialAndInit(t *testing.T, port string) (*websocket.Conn, string) {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:"+port+"/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	msg, _ := protocol.NewInitMessage("")
	data, _ := msg.Bytes()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write init: %v", err)
	}

	created := readUntil(t, ws, protocol.TypeSessionCreated, 2*time.Second)
	createdData, err := created.GetSessionCreatedData()
	if err != nil {
		t.Fatalf("parse session_created: %v", err)
	}
	if createdData.SessionID == "" {
		t.Fatal("empty session id")
	}

	return ws, createdData.SessionID
}

// readUntil reads messages until one of the wanted type arrives.
func readUntil(t *testing.T, ws *websocket.Conn, want protocol.MessageType, timeout time.Duration) *protocol.Message {
	t.Helper()

	ws.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", want, err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		if msg.Type == want {
			return msg
		}
	}
}

func uploadRequest(t *testing.T, sessionID string, audio []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if audio != nil {
		part, err := writer.CreateFormFile("audio", "recording.webm")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(audio)
	}
	if sessionID != "" {
		writer.WriteField("session_id", sessionID)
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestInitCreatesAndTearsDownSession(t *testing.T) {
	srv := newTestServer(t, "18090", "http://127.0.0.1:1")

	ws, sessionID := dialAndInit(t, "18090")

	if srv.sessions.Get(sessionID) == nil {
		t.Fatal("session not in store after init")
	}
	if srv.conns.count() != 1 {
		t.Errorf("connections = %d, want 1", srv.conns.count())
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if srv.sessions.Get(sessionID) != nil {
		t.Error("session should be deleted after disconnect")
	}
	if srv.conns.count() != 0 {
		t.Errorf("connections = %d, want 0 after disconnect", srv.conns.count())
	}
}

func TestUploadMissingAudio(t *testing.T) {
	srv := newTestServer(t, "18091", "http://127.0.0.1:1")

	resp, err := srv.app.Test(uploadRequest(t, "whatever", nil))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadUnknownSession(t *testing.T) {
	srv := newTestServer(t, "18092", "http://127.0.0.1:1")

	resp, err := srv.app.Test(uploadRequest(t, "no-such-session", []byte("audio")))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUploadRunsFullTurn(t *testing.T) {
	srv := newTestServer(t, "18093", "http://127.0.0.1:1")

	ws, sessionID := dialAndInit(t, "18093")

	resp, err := srv.app.Test(uploadRequest(t, sessionID, []byte("audio-bytes")), 5000)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("parse body %q: %v", body, err)
	}
	if result.Text != "hello world" {
		t.Errorf("transcript = %q, want hello world", result.Text)
	}

	// The rest of the turn streams over the WebSocket.
	transcription := readUntil(t, ws, protocol.TypeTranscription, 3*time.Second)
	tData, _ := transcription.GetTranscriptionData()
	if tData.Text != "hello world" {
		t.Errorf("transcription event text = %q", tData.Text)
	}

	chunk := readUntil(t, ws, protocol.TypeResponseChunk, 3*time.Second)
	cData, _ := chunk.GetResponseChunkData()
	if cData.Text == "" {
		t.Error("empty response chunk")
	}

	audio := readUntil(t, ws, protocol.TypeAudioChunk, 3*time.Second)
	aData, _ := audio.GetAudioChunkData()
	decoded, err := aData.DecodeAudio()
	if err != nil {
		t.Fatalf("decode audio: %v", err)
	}
	if string(decoded) != "Hi there." {
		t.Errorf("first audio clip = %q, want Hi there.", decoded)
	}

	readUntil(t, ws, protocol.TypeAudioComplete, 3*time.Second)
}

func TestVideoFrameUpdatesEmotion(t *testing.T) {
	classifier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"success":true,"detections":[{"emotion":"happy (0.92)","confidence":0.92}],"num_faces":1}`)
	}))
	defer classifier.Close()

	srv := newTestServer(t, "18094", classifier.URL)

	ws, sessionID := dialAndInit(t, "18094")

	frame := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	msg, _ := protocol.NewVideoFrameMessage(frame)
	data, _ := msg.Bytes()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	update := readUntil(t, ws, protocol.TypeEmotionUpdate, 3*time.Second)
	uData, _ := update.GetEmotionUpdateData()
	if uData.Emotion != "happy" {
		t.Errorf("emotion = %q, want happy", uData.Emotion)
	}

	sess := srv.sessions.Get(sessionID)
	if sess.CurrentEmotion() != emotion.Happy {
		t.Errorf("current emotion = %s, want happy", sess.CurrentEmotion())
	}
}

func TestRecordingPhaseTransitions(t *testing.T) {
	srv := newTestServer(t, "18095", "http://127.0.0.1:1")

	ws, sessionID := dialAndInit(t, "18095")
	sess := srv.sessions.Get(sessionID)

	send := func(msgType protocol.MessageType) {
		msg, err := protocol.NewMessage(msgType, struct{}{})
		if err != nil {
			t.Fatalf("build %s: %v", msgType, err)
		}
		data, _ := msg.Bytes()
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatalf("write %s: %v", msgType, err)
		}
	}

	send(protocol.TypeRecordingStart)
	waitCond(t, func() bool { return sess.Recording() })

	send(protocol.TypeRecordingStop)
	waitCond(t, func() bool { return !sess.Recording() })

	send(protocol.TypeTTSStart)
	waitCond(t, func() bool { return sess.PlayingBack() })

	send(protocol.TypeTTSStop)
	waitCond(t, func() bool { return !sess.PlayingBack() })
}

func TestEmotionOverride(t *testing.T) {
	srv := newTestServer(t, "18096", "http://127.0.0.1:1")

	ws, sessionID := dialAndInit(t, "18096")
	sess := srv.sessions.Get(sessionID)

	msg, _ := protocol.NewEmotionUpdateMessage("surprise")
	data, _ := msg.Bytes()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write emotion update: %v", err)
	}

	waitCond(t, func() bool { return sess.CurrentEmotion() == emotion.Surprised })
}

func TestMessagesBeforeInitRejected(t *testing.T) {
	newTestServer(t, "18097", "http://127.0.0.1:1")

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18097/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	msg, _ := protocol.NewMessage(protocol.TypeRecordingStart, struct{}{})
	data, _ := msg.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	errMsg := readUntil(t, ws, protocol.TypeError, 2*time.Second)
	eData, _ := errMsg.GetErrorData()
	if !strings.Contains(eData.Message, "not initialized") {
		t.Errorf("error message = %q", eData.Message)
	}
}

func TestReinitPurgesQueuedAudio(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	ttsMock := tts.NewMock()
	ttsMock.SynthesizeFunc = func(ctx context.Context, text, tone string) (*tts.AudioResult, error) {
		once.Do(func() { <-release })
		return &tts.AudioResult{Audio: []byte(text)}, nil
	}

	srv := NewServer(
		session.NewStore(),
		emotion.NewClassifier("http://127.0.0.1:1"),
		stt.NewMock(),
		inference.NewMock(),
		ttsMock,
		WithPort("18099"),
		WithFrameInterval(0),
	)
	go srv.Start()
	t.Cleanup(func() { srv.Shutdown() })
	time.Sleep(100 * time.Millisecond)

	ws, sessionID := dialAndInit(t, "18099")

	srv.queue.Enqueue(sessionID, "Old reply.", "")
	srv.queue.Enqueue(sessionID, "More old reply.", "")

	// Reconnecting with the same id must drop the previous reply's audio.
	msg, _ := protocol.NewInitMessage(sessionID)
	data, _ := msg.Bytes()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write re-init: %v", err)
	}
	readUntil(t, ws, protocol.TypeSessionCreated, 2*time.Second)

	if got := srv.queue.Pending(sessionID); got != 0 {
		t.Errorf("pending after re-init = %d, want 0", got)
	}

	srv.queue.Enqueue(sessionID, "Fresh.", "")
	close(release)

	audio := readUntil(t, ws, protocol.TypeAudioChunk, 3*time.Second)
	aData, _ := audio.GetAudioChunkData()
	decoded, err := aData.DecodeAudio()
	if err != nil {
		t.Fatalf("decode audio: %v", err)
	}
	if string(decoded) != "Fresh." {
		t.Errorf("first audio clip after re-init = %q, want Fresh.", decoded)
	}
}

func TestMalformedInitAfterInitKeepsSession(t *testing.T) {
	srv := newTestServer(t, "18100", "http://127.0.0.1:1")

	ws, sessionID := dialAndInit(t, "18100")

	// session_id of the wrong type fails payload parsing.
	bad := []byte(`{"type":"init","data":{"session_id":123}}`)
	if err := ws.WriteMessage(websocket.TextMessage, bad); err != nil {
		t.Fatalf("write malformed init: %v", err)
	}

	errMsg := readUntil(t, ws, protocol.TypeError, 2*time.Second)
	eData, _ := errMsg.GetErrorData()
	if !strings.Contains(eData.Message, "invalid init payload") {
		t.Errorf("error message = %q", eData.Message)
	}

	// The established session and connection survive the bad payload.
	if srv.sessions.Get(sessionID) == nil {
		t.Error("session dropped after malformed init")
	}
	if srv.conns.get(sessionID) == nil {
		t.Error("connection dropped after malformed init")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, "18098", "http://127.0.0.1:1")

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := srv.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var status map[string]interface{}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if status["status"] != "ok" {
		t.Errorf("status = %v, want ok", status["status"])
	}
	if status["classifier"] != "unreachable" {
		t.Errorf("classifier = %v, want unreachable", status["classifier"])
	}
}

func waitCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
