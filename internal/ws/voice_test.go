package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/testutil"
)

type voiceFixture struct {
	handler *VoiceHandler
	text    *testutil.MockTextProvider
	speech  *testutil.MockSpeechProvider
	synth   *testutil.MockSynthesisProvider
	tasks   *testutil.MockTaskRepo
}

// setupTestVoiceHandler creates a VoiceHandler over an assistant wired to
// mock providers and a running Hub. Callers configure the mock funcs before
// invoking handlers.
func setupTestVoiceHandler(t *testing.T) *voiceFixture {
	t.Helper()
	f := &voiceFixture{
		text:   &testutil.MockTextProvider{},
		speech: &testutil.MockSpeechProvider{},
		synth:  &testutil.MockSynthesisProvider{},
		tasks:  testutil.NewMockTaskRepo(),
	}
	assistant, err := service.NewAssistantService(service.AssistantDeps{
		Text:      f.text,
		Speech:    f.speech,
		Synthesis: f.synth,
		Tasks:     service.NewTaskService(f.tasks),
		Profiles:  service.NewProfileService(testutil.NewMockProfileRepo(), testutil.NewMockIntegrationRepo(), f.text),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(assistant.Wait)

	hub := NewHub()
	go hub.Run()
	f.handler = NewVoiceHandler(hub, "test-secret", "https://app.example.com", assistant)
	return f
}

// newTestClient creates a Client with a buffered Send channel and no real
// websocket.Conn. This works because the handler methods write to client.Send
// rather than Conn directly.
func newTestClient(hub *Hub, userID string) *Client {
	return &Client{
		Hub:    hub,
		Send:   make(chan []byte, 256),
		RoomID: UserRoom(userID),
		UserID: userID,
	}
}

func newTestSession(f *voiceFixture) *session {
	return newSession(newTestClient(f.handler.Hub, testutil.TestUserID))
}

// readMessage reads a single WSMessage from the client's Send channel with a
// short timeout to prevent tests from hanging.
func readMessage(t *testing.T, client *Client) WSMessage {
	t.Helper()
	select {
	case data := <-client.Send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal message from Send channel: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message on Send channel")
		return WSMessage{}
	}
}

// assertNoMoreMessages verifies nothing else is pending on the Send channel.
func assertNoMoreMessages(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.Send:
		t.Fatalf("unexpected extra message on Send channel: %s", string(data))
	case <-time.After(50 * time.Millisecond):
	}
}

func expectError(t *testing.T, client *Client, code string) {
	t.Helper()
	msg := readMessage(t, client)
	if msg.Type != MsgTypeError {
		t.Fatalf("expected error type, got %q", msg.Type)
	}
	var p ErrorPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("failed to unmarshal ErrorPayload: %v", err)
	}
	if p.Code != code {
		t.Errorf("code = %q, want %q (%s)", p.Code, code, p.Error)
	}
}

func wire(t *testing.T, msgType string, payload interface{}) []byte {
	t.Helper()
	data, err := EncodeMessage(msgType, payload)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func chunk(seq int, data string) AudioChunkPayload {
	return AudioChunkPayload{
		Data:           base64.StdEncoding.EncodeToString([]byte(data)),
		SequenceNumber: seq,
	}
}

// --- stream tests ---

func TestStream_AssemblesChunksInOrder(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)

	var gotAudio, gotFilename string
	f.speech.TranscribeAudioFunc = func(ctx context.Context, audio []byte, filename string) (string, error) {
		gotAudio, gotFilename = string(audio), filename
		return "add buy milk to my list", nil
	}
	f.text.ClassifyIntentFunc = func(ctx context.Context, transcript string, history []ai.Message) (*ai.IntentResult, error) {
		return &ai.IntentResult{Intent: ai.IntentAddTask, Confidence: 0.9}, nil
	}
	f.text.ExtractTaskFunc = func(ctx context.Context, transcript string, history []ai.Message, now time.Time) (*ai.TaskDetails, error) {
		return &ai.TaskDetails{Title: "buy milk"}, nil
	}
	f.synth.SynthesizeFunc = func(ctx context.Context, text, voiceID string) ([]byte, error) {
		return []byte("mp3"), nil
	}

	f.handler.handleMessage(sess, wire(t, MsgTypeStartStream, StartStreamPayload{StreamID: "s1", Format: "wav"}))
	msg := readMessage(t, sess.client)
	if msg.Type != MsgTypeStreamStarted {
		t.Fatalf("expected %q, got %q", MsgTypeStreamStarted, msg.Type)
	}

	for _, c := range []AudioChunkPayload{chunk(2, "cc"), chunk(0, "aa"), chunk(1, "bb")} {
		f.handler.handleMessage(sess, wire(t, MsgTypeAudioChunk, c))
	}
	f.handler.handleMessage(sess, wire(t, MsgTypeEndStream, EndStreamPayload{StreamID: "s1"}))

	msg = readMessage(t, sess.client)
	if msg.Type != MsgTypeTranscript {
		t.Fatalf("expected %q, got %q", MsgTypeTranscript, msg.Type)
	}
	var transcript TranscriptPayload
	json.Unmarshal(msg.Payload, &transcript)
	if transcript.Text != "add buy milk to my list" || transcript.StreamID != "s1" {
		t.Errorf("transcript = %+v", transcript)
	}

	msg = readMessage(t, sess.client)
	if msg.Type != MsgTypeTextChunk {
		t.Fatalf("expected %q, got %q", MsgTypeTextChunk, msg.Type)
	}
	var reply TextChunkPayload
	json.Unmarshal(msg.Payload, &reply)
	if !reply.IsFinal || reply.CardType != "task_creation" || reply.Intent != "ADD_TASK" {
		t.Errorf("reply = %+v", reply)
	}

	msg = readMessage(t, sess.client)
	if msg.Type != MsgTypeAudio {
		t.Fatalf("expected %q, got %q", MsgTypeAudio, msg.Type)
	}
	assertNoMoreMessages(t, sess.client)

	if gotAudio != "aabbcc" {
		t.Errorf("assembled audio = %q, want aabbcc", gotAudio)
	}
	if gotFilename != "stream.wav" {
		t.Errorf("filename = %q", gotFilename)
	}
	if len(sess.streams) != 0 {
		t.Error("stream should be released after end_stream")
	}
	tasks, _ := f.tasks.ListTasks(testutil.TestUserID, models.TaskPending)
	if len(tasks) != 1 {
		t.Errorf("tasks = %d, want 1", len(tasks))
	}
}

func TestStream_ServerAssignsID(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)

	f.handler.handleMessage(sess, []byte(`{"type":"start_stream"}`))
	msg := readMessage(t, sess.client)
	var started StreamStartedPayload
	json.Unmarshal(msg.Payload, &started)
	if started.StreamID == "" {
		t.Fatal("stream id should be assigned")
	}
	if sess.active != started.StreamID {
		t.Errorf("active = %q, want %q", sess.active, started.StreamID)
	}

	// Chunks without an id go to the active stream.
	f.handler.handleAudioChunk(sess, mustJSON(t, chunk(0, "aa")))
	if got := sess.streams[started.StreamID].size; got != 2 {
		t.Errorf("buffered = %d bytes, want 2", got)
	}
	assertNoMoreMessages(t, sess.client)
}

func TestStream_ResentChunkReplaces(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)
	f.handler.handleStartStream(sess, mustJSON(t, StartStreamPayload{StreamID: "s1"}))
	readMessage(t, sess.client)

	f.handler.handleAudioChunk(sess, mustJSON(t, chunk(0, "aaaa")))
	f.handler.handleAudioChunk(sess, mustJSON(t, chunk(0, "bb")))

	stream := sess.streams["s1"]
	if stream.size != 2 || string(stream.assemble()) != "bb" {
		t.Errorf("stream = %d bytes %q", stream.size, stream.assemble())
	}
}

func TestStream_OpenStreamsBounded(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)

	ids := []string{"s1", "s2", "s3", "s4", "s5"}
	for i, id := range ids {
		f.handler.handleStartStream(sess, mustJSON(t, StartStreamPayload{StreamID: id}))
		if i >= maxOpenStreams {
			expectError(t, sess.client, CodeStreamDropped)
		}
		msg := readMessage(t, sess.client)
		if msg.Type != MsgTypeStreamStarted {
			t.Fatalf("start %s: got %q", id, msg.Type)
		}
		f.handler.handleAudioChunk(sess, mustJSON(t, AudioChunkPayload{
			StreamID: id,
			Data:     base64.StdEncoding.EncodeToString([]byte("audio")),
		}))
	}

	if len(sess.streams) != maxOpenStreams {
		t.Fatalf("open streams = %d, want %d", len(sess.streams), maxOpenStreams)
	}
	for _, id := range []string{"s1", "s2"} {
		if _, ok := sess.streams[id]; ok {
			t.Errorf("oldest stream %s should have been dropped", id)
		}
	}
	if sess.active != "s5" {
		t.Errorf("active = %q, want s5", sess.active)
	}

	// Restarting an open stream does not evict anything.
	f.handler.handleStartStream(sess, mustJSON(t, StartStreamPayload{StreamID: "s3"}))
	if msg := readMessage(t, sess.client); msg.Type != MsgTypeStreamStarted {
		t.Errorf("restart: got %q", msg.Type)
	}
	if len(sess.streams) != maxOpenStreams {
		t.Errorf("open streams after restart = %d", len(sess.streams))
	}
	assertNoMoreMessages(t, sess.client)
}

func TestStream_ChunkWithoutStream(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)

	f.handler.handleAudioChunk(sess, mustJSON(t, chunk(0, "aa")))
	expectError(t, sess.client, CodeNoStream)

	f.handler.handleEndStream(sess, mustJSON(t, EndStreamPayload{StreamID: "missing"}))
	expectError(t, sess.client, CodeNoStream)
}

func TestStream_BadChunk(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)
	f.handler.handleStartStream(sess, nil)
	readMessage(t, sess.client)

	f.handler.handleAudioChunk(sess, json.RawMessage(`{"data":"***","sequence_number":0}`))
	expectError(t, sess.client, CodeInvalidPayload)
}

func TestStream_EmptyStream(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)
	f.handler.handleStartStream(sess, mustJSON(t, StartStreamPayload{StreamID: "s1"}))
	readMessage(t, sess.client)

	f.handler.handleEndStream(sess, mustJSON(t, EndStreamPayload{StreamID: "s1"}))
	expectError(t, sess.client, CodeEmptyStream)
}

func TestStream_TooLarge(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)
	f.handler.handleStartStream(sess, mustJSON(t, StartStreamPayload{StreamID: "s1"}))
	readMessage(t, sess.client)

	// Write the buffer directly; a real client would need dozens of frames.
	sess.streams["s1"].size = maxStreamBytes
	f.handler.handleAudioChunk(sess, mustJSON(t, chunk(1, "a")))
	expectError(t, sess.client, CodeStreamTooLarge)
	if _, ok := sess.streams["s1"]; ok {
		t.Error("oversized stream should be dropped")
	}
}

func TestStream_TranscriptionFailure(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)
	f.speech.TranscribeAudioFunc = func(ctx context.Context, audio []byte, filename string) (string, error) {
		return "", fmt.Errorf("whisper unavailable")
	}

	f.handler.handleStartStream(sess, mustJSON(t, StartStreamPayload{StreamID: "s1"}))
	readMessage(t, sess.client)
	f.handler.handleAudioChunk(sess, mustJSON(t, chunk(0, "aa")))
	f.handler.handleEndStream(sess, mustJSON(t, EndStreamPayload{StreamID: "s1"}))

	readMessage(t, sess.client) // transcript
	msg := readMessage(t, sess.client)
	if msg.Type != MsgTypeTextChunk {
		t.Fatalf("expected %q, got %q", MsgTypeTextChunk, msg.Type)
	}
	var reply TextChunkPayload
	json.Unmarshal(msg.Payload, &reply)
	if reply.Text == "" {
		t.Error("failed transcription should still answer")
	}
}

// --- text tests ---

func TestText_Answers(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)

	f.text.ClassifyIntentFunc = func(ctx context.Context, transcript string, history []ai.Message) (*ai.IntentResult, error) {
		if transcript != "hello there" {
			t.Errorf("transcript = %q", transcript)
		}
		return &ai.IntentResult{Intent: ai.IntentGeneralChat, Confidence: 0.9}, nil
	}
	f.text.ChatFunc = func(ctx context.Context, req ai.ChatRequest) (string, error) {
		return "Hi! How can I help?", nil
	}

	speak := false
	f.handler.handleMessage(sess, wire(t, MsgTypeText, TextPayload{Text: "  hello there ", Speak: &speak}))

	msg := readMessage(t, sess.client)
	if msg.Type != MsgTypeTextChunk {
		t.Fatalf("expected %q, got %q", MsgTypeTextChunk, msg.Type)
	}
	var reply TextChunkPayload
	json.Unmarshal(msg.Payload, &reply)
	if reply.Text != "Hi! How can I help?" || reply.CardType != "conversation" {
		t.Errorf("reply = %+v", reply)
	}
	assertNoMoreMessages(t, sess.client)
	if len(f.synth.Voices) != 0 {
		t.Error("speak=false should skip synthesis")
	}
}

func TestText_Empty(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)

	f.handler.handleText(sess, mustJSON(t, TextPayload{Text: "   "}))
	expectError(t, sess.client, CodeInvalidPayload)
}

// --- handleMessage routing tests ---

func TestHandleMessage_UnknownType(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)

	f.handler.handleMessage(sess, []byte(`{"type":"bogus_type","payload":{}}`))
	expectError(t, sess.client, CodeUnknownType)
}

func TestHandleMessage_InvalidJSON(t *testing.T) {
	f := setupTestVoiceHandler(t)
	sess := newTestSession(f)

	f.handler.handleMessage(sess, []byte(`{not valid json`))
	expectError(t, sess.client, CodeInvalidMessage)
}

// --- hub tests ---

func TestHub_SendToUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	alice1 := newTestClient(hub, "alice")
	alice2 := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register <- alice1
	hub.Register <- alice2
	hub.Register <- bob

	waitFor(t, func() bool { return hub.Online("alice") && hub.Online("bob") })

	if !hub.SendToUser("alice", []byte(`{"type":"task_reminder","payload":{}}`)) {
		t.Fatal("alice should be online")
	}
	for _, c := range []*Client{alice1, alice2} {
		if msg := readMessage(t, c); msg.Type != MsgTypeTaskReminder {
			t.Errorf("type = %q", msg.Type)
		}
	}
	assertNoMoreMessages(t, bob)

	if hub.SendToUser("carol", []byte(`{}`)) {
		t.Error("carol has no connections")
	}

	hub.Unregister <- alice1
	hub.Unregister <- alice2
	waitFor(t, func() bool { return !hub.Online("alice") })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
