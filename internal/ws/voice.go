package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/metrics"
	"github.com/windoze95/manas-api/internal/middleware"
	"github.com/windoze95/manas-api/internal/service"
	"go.uber.org/zap"
)

// WebSocket message types for the voice protocol.
const (
	MsgTypeStartStream   = "start_stream"   // Client opens an audio stream
	MsgTypeAudioChunk    = "audio_chunk"    // Client sends a slice of audio
	MsgTypeText          = "text"           // Client sends a typed message
	MsgTypeEndStream     = "end_stream"     // Client closes a stream and asks for a reply
	MsgTypeConnected     = "connected"      // Connection confirmed
	MsgTypeStreamStarted = "stream_started" // Stream accepted, carries its id
	MsgTypeTranscript    = "transcript"     // Transcription of the finished stream
	MsgTypeTextChunk     = "text_chunk"     // Assistant reply text
	MsgTypeAudio         = "audio"          // Synthesized reply audio
	MsgTypeTaskReminder  = "task_reminder"  // Pushed by the reminder scheduler
	MsgTypeError         = "error"          // Error message
)

// Error codes carried in ErrorPayload.
const (
	CodeInvalidMessage = "invalid_message"
	CodeUnknownType    = "unknown_type"
	CodeInvalidPayload = "invalid_payload"
	CodeNoStream       = "no_stream"
	CodeEmptyStream    = "empty_stream"
	CodeStreamTooLarge = "stream_too_large"
	CodeStreamDropped  = "stream_dropped"
	CodeTurnFailed     = "turn_failed"
)

const (
	maxStreamBytes = 10 << 20
	// maxOpenStreams bounds buffered audio per connection; starting one
	// more drops the oldest.
	maxOpenStreams = 3
	turnTimeout    = 60 * time.Second
	defaultFormat  = "webm"
)

// WSMessage is the envelope for all messages sent over the voice WebSocket.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StartStreamPayload opens an audio stream. The server assigns an id when
// none is given.
type StartStreamPayload struct {
	StreamID string `json:"stream_id,omitempty"`
	VoiceID  string `json:"voice_id,omitempty"`
	Format   string `json:"format,omitempty"` // webm, wav, m4a...
}

// AudioChunkPayload carries base64 audio. Chunks may arrive out of order.
type AudioChunkPayload struct {
	StreamID       string `json:"stream_id,omitempty"`
	Data           string `json:"data"`
	SequenceNumber int    `json:"sequence_number"`
}

// TextPayload is a typed message answered like a chat request.
type TextPayload struct {
	Text    string   `json:"text"`
	VoiceID string   `json:"voice_id,omitempty"`
	FileIDs []string `json:"file_ids,omitempty"`
	Speak   *bool    `json:"speak,omitempty"`
}

// EndStreamPayload closes a stream.
type EndStreamPayload struct {
	StreamID string `json:"stream_id,omitempty"`
}

// StreamStartedPayload confirms a stream.
type StreamStartedPayload struct {
	StreamID string `json:"stream_id"`
}

// TranscriptPayload carries the transcription of a finished stream.
type TranscriptPayload struct {
	StreamID string `json:"stream_id,omitempty"`
	Text     string `json:"text"`
}

// TextChunkPayload carries the assistant reply along with its card.
type TextChunkPayload struct {
	Text       string      `json:"text"`
	IsFinal    bool        `json:"is_final"`
	Intent     string      `json:"intent,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
	CardType   string      `json:"card_type,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// AudioPayload carries base64 encoded mp3 audio.
type AudioPayload struct {
	Data string `json:"data"`
}

// TaskReminderPayload is pushed when a task is about to come due.
type TaskReminderPayload struct {
	Task    service.TaskResponse `json:"task"`
	Message string               `json:"message"`
}

// ErrorPayload carries an error message to the client.
type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ConnectedPayload confirms a successful connection.
type ConnectedPayload struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// audioStream buffers the chunks of one utterance.
type audioStream struct {
	id      string
	voiceID string
	format  string
	chunks  map[int][]byte
	size    int
	order   uint64
}

// assemble joins the chunks in sequence order.
func (s *audioStream) assemble() []byte {
	seqs := make([]int, 0, len(s.chunks))
	for seq := range s.chunks {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	audio := make([]byte, 0, s.size)
	for _, seq := range seqs {
		audio = append(audio, s.chunks[seq]...)
	}
	return audio
}

// session is the per-connection state. It is only touched from the
// connection's read goroutine.
type session struct {
	client  *Client
	id      string
	streams map[string]*audioStream
	active  string
	opened  uint64
}

func newSession(client *Client) *session {
	return &session{
		client:  client,
		id:      uuid.NewString(),
		streams: make(map[string]*audioStream),
	}
}

// VoiceHandler manages WebSocket connections for streaming voice sessions.
type VoiceHandler struct {
	Hub       *Hub
	JwtSecret string
	Assistant *service.AssistantService
	upgrader  websocket.Upgrader
}

// NewVoiceHandler returns a new VoiceHandler. Browser connections are
// accepted from frontendURL and localhost.
func NewVoiceHandler(hub *Hub, jwtSecret, frontendURL string, assistant *service.AssistantService) *VoiceHandler {
	frontend := strings.TrimRight(frontendURL, "/")
	return &VoiceHandler{
		Hub:       hub,
		JwtSecret: jwtSecret,
		Assistant: assistant,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Native clients send no origin.
				if origin == "" || (frontend != "" && origin == frontend) {
					return true
				}
				return strings.HasPrefix(origin, "http://localhost:") || origin == "http://localhost"
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// HandleVoiceSession upgrades an HTTP request to a WebSocket connection.
// Authentication is done via a "token" query parameter because WebSocket
// connections cannot easily use Authorization headers.
func (vh *VoiceHandler) HandleVoiceSession(c *gin.Context) {
	log := logger.FromGin(c)

	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token query parameter is required"})
		return
	}
	userID, err := middleware.ParseAccessToken(tokenString, vh.JwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := vh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := &Client{
		Hub:    vh.Hub,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
		RoomID: UserRoom(userID),
		UserID: userID,
	}
	vh.Hub.Register <- client

	sess := newSession(client)
	send(client, MsgTypeConnected, ConnectedPayload{UserID: userID, SessionID: sess.id})

	metrics.ActiveVoiceSessions.Inc()
	log.Info("voice session started",
		zap.String("user_id", userID),
		zap.String("session_id", sess.id),
	)

	go client.WritePump()
	go func() {
		defer metrics.ActiveVoiceSessions.Dec()
		client.ReadPump(func(cl *Client, data []byte) {
			vh.handleMessage(sess, data)
		})
	}()
}

// handleMessage parses an incoming WebSocket message and routes it to the
// appropriate handler.
func (vh *VoiceHandler) handleMessage(sess *session, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		sendError(sess.client, "invalid message format", CodeInvalidMessage)
		return
	}

	logger.Get().Debug("received ws message",
		zap.String("type", msg.Type),
		zap.String("user_id", sess.client.UserID),
	)

	switch msg.Type {
	case MsgTypeStartStream:
		vh.handleStartStream(sess, msg.Payload)
	case MsgTypeAudioChunk:
		vh.handleAudioChunk(sess, msg.Payload)
	case MsgTypeEndStream:
		vh.handleEndStream(sess, msg.Payload)
	case MsgTypeText:
		vh.handleText(sess, msg.Payload)
	default:
		sendError(sess.client, "unknown message type: "+msg.Type, CodeUnknownType)
	}
}

func (vh *VoiceHandler) handleStartStream(sess *session, payload json.RawMessage) {
	var p StartStreamPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			sendError(sess.client, "invalid start_stream payload", CodeInvalidPayload)
			return
		}
	}
	if p.StreamID == "" {
		p.StreamID = uuid.NewString()
	}
	if p.Format == "" {
		p.Format = defaultFormat
	}

	if _, reopened := sess.streams[p.StreamID]; !reopened && len(sess.streams) >= maxOpenStreams {
		oldest := sess.oldestStream()
		vh.dropStream(sess, oldest.id)
		sendError(sess.client, "too many open streams; dropped "+oldest.id, CodeStreamDropped)
	}

	sess.opened++
	sess.streams[p.StreamID] = &audioStream{
		id:      p.StreamID,
		voiceID: p.VoiceID,
		format:  strings.TrimPrefix(p.Format, "."),
		chunks:  make(map[int][]byte),
		order:   sess.opened,
	}
	sess.active = p.StreamID
	send(sess.client, MsgTypeStreamStarted, StreamStartedPayload{StreamID: p.StreamID})
}

func (sess *session) oldestStream() *audioStream {
	var oldest *audioStream
	for _, st := range sess.streams {
		if oldest == nil || st.order < oldest.order {
			oldest = st
		}
	}
	return oldest
}

// lookupStream finds the named stream, or the most recently started one.
func (sess *session) lookupStream(streamID string) *audioStream {
	if streamID == "" {
		streamID = sess.active
	}
	return sess.streams[streamID]
}

func (vh *VoiceHandler) handleAudioChunk(sess *session, payload json.RawMessage) {
	var p AudioChunkPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		sendError(sess.client, "invalid audio_chunk payload", CodeInvalidPayload)
		return
	}
	stream := sess.lookupStream(p.StreamID)
	if stream == nil {
		sendError(sess.client, "no open stream; send start_stream first", CodeNoStream)
		return
	}

	chunk, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		sendError(sess.client, "audio chunk is not valid base64", CodeInvalidPayload)
		return
	}

	// A resent sequence number replaces the earlier chunk.
	stream.size += len(chunk) - len(stream.chunks[p.SequenceNumber])
	stream.chunks[p.SequenceNumber] = chunk
	if stream.size > maxStreamBytes {
		vh.dropStream(sess, stream.id)
		sendError(sess.client, "audio stream exceeds 10MB", CodeStreamTooLarge)
	}
}

func (vh *VoiceHandler) handleEndStream(sess *session, payload json.RawMessage) {
	var p EndStreamPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			sendError(sess.client, "invalid end_stream payload", CodeInvalidPayload)
			return
		}
	}
	stream := sess.lookupStream(p.StreamID)
	if stream == nil {
		sendError(sess.client, "unknown stream", CodeNoStream)
		return
	}
	vh.dropStream(sess, stream.id)

	audio := stream.assemble()
	if len(audio) == 0 {
		sendError(sess.client, "stream contained no audio", CodeEmptyStream)
		return
	}

	vh.runTurn(sess, stream.id, service.Request{
		UserID:        sess.client.UserID,
		Audio:         audio,
		AudioFilename: "stream." + stream.format,
		VoiceID:       stream.voiceID,
		WantAudio:     true,
	})
}

func (vh *VoiceHandler) handleText(sess *session, payload json.RawMessage) {
	var p TextPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		sendError(sess.client, "invalid text payload", CodeInvalidPayload)
		return
	}
	p.Text = strings.TrimSpace(p.Text)
	if p.Text == "" && len(p.FileIDs) == 0 {
		sendError(sess.client, "text cannot be empty", CodeInvalidPayload)
		return
	}

	vh.runTurn(sess, "", service.Request{
		UserID:        sess.client.UserID,
		Transcript:    p.Text,
		VoiceID:       p.VoiceID,
		AttachmentIDs: p.FileIDs,
		WantAudio:     p.Speak == nil || *p.Speak,
	})
}

// runTurn answers one request and streams the envelope back in parts.
func (vh *VoiceHandler) runTurn(sess *session, streamID string, req service.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	env, err := vh.Assistant.Process(ctx, req)
	if err != nil {
		logger.Get().Error("voice turn failed",
			zap.String("user_id", sess.client.UserID),
			zap.String("session_id", sess.id),
			zap.Error(err),
		)
		sendError(sess.client, "failed to process request", CodeTurnFailed)
		return
	}

	if len(req.Audio) > 0 {
		send(sess.client, MsgTypeTranscript, TranscriptPayload{StreamID: streamID, Text: env.Transcript})
	}
	send(sess.client, MsgTypeTextChunk, TextChunkPayload{
		Text:       env.AIResponse,
		IsFinal:    true,
		Intent:     env.Intent,
		Confidence: env.Confidence,
		CardType:   env.CardType,
		Data:       env.Data,
	})
	if env.AudioBase64 != "" {
		send(sess.client, MsgTypeAudio, AudioPayload{Data: env.AudioBase64})
	}
}

func (vh *VoiceHandler) dropStream(sess *session, streamID string) {
	delete(sess.streams, streamID)
	if sess.active == streamID {
		sess.active = ""
	}
}

// EncodeMessage builds a wire message for payload.
func EncodeMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: raw})
}

// send queues a message for a single client.
func send(client *Client, msgType string, payload interface{}) {
	msg, err := EncodeMessage(msgType, payload)
	if err != nil {
		logger.Get().Error("failed to encode ws message", zap.String("type", msgType), zap.Error(err))
		return
	}
	client.Send <- msg
}

// sendError sends an error message to a single client.
func sendError(client *Client, message, code string) {
	send(client, MsgTypeError, ErrorPayload{Error: message, Code: code})
}
