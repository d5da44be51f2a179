package handlers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/util"
)

// FileHandler accepts documents and images for the assistant to analyze.
type FileHandler struct {
	Service *service.FileService
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{Service: fileService}
}

// UploadFile handles POST /v1/files/upload. The returned file_id can be
// passed to the voice and chat endpoints.
func (h *FileHandler) UploadFile(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	defer file.Close()

	if header.Size > service.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds maximum size of 10MB"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, service.MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	// Browsers often send octet-stream for markdown and csv.
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
			contentType = byExt
		}
	}

	attachment, err := h.Service.Upload(c.Request.Context(), userID, header.Filename, contentType, data)
	if err != nil {
		respondError(c, err, "Failed to upload file")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"file_id":      attachment.FileID,
		"filename":     attachment.Filename,
		"content_type": attachment.ContentType,
		"size":         attachment.Size,
	})
}
