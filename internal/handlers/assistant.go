package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/util"
	"go.uber.org/zap"
)

// maxAudioSize is the largest voice recording accepted (10MB).
const maxAudioSize = 10 << 20

// AssistantHandler serves voice and text turns.
type AssistantHandler struct {
	Service *service.AssistantService
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(assistantService *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{Service: assistantService}
}

// IngestVoice handles POST /v1/voice/ingest. The recording is sent as the
// multipart field "audio", with optional "voice_id" and "file_ids".
func (h *AssistantHandler) IngestVoice(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audio file is required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be an audio file"})
		return
	}
	if header.Size > maxAudioSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Audio file must be at most 10MB"})
		return
	}

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read audio file"})
		return
	}
	if len(audio) > maxAudioSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Audio file must be at most 10MB"})
		return
	}
	if len(audio) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audio file is empty"})
		return
	}

	req := service.Request{
		UserID:        util.UserIDOrDefault(c),
		Audio:         audio,
		AudioFilename: header.Filename,
		VoiceID:       c.PostForm("voice_id"),
		AttachmentIDs: splitIDs(c.PostFormArray("file_ids")),
		WantAudio:     true,
	}
	h.process(c, req)
}

// SendChat handles POST /v1/chat/send.
func (h *AssistantHandler) SendChat(c *gin.Context) {
	var body struct {
		Message string   `json:"message"`
		VoiceID string   `json:"voice_id"`
		FileIDs []string `json:"file_ids"`
		Speak   *bool    `json:"speak"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(body.Message) == "" && len(body.FileIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	req := service.Request{
		UserID:        util.UserIDOrDefault(c),
		Transcript:    body.Message,
		VoiceID:       body.VoiceID,
		AttachmentIDs: splitIDs(body.FileIDs),
		WantAudio:     body.Speak == nil || *body.Speak,
	}
	h.process(c, req)
}

func (h *AssistantHandler) process(c *gin.Context, req service.Request) {
	env, err := h.Service.Process(c.Request.Context(), req)
	if err != nil {
		// The client went away; nobody is left to answer.
		logger.FromGin(c).Info("assistant turn abandoned", zap.Error(err))
		c.AbortWithStatus(499)
		return
	}
	c.JSON(http.StatusOK, env)
}
