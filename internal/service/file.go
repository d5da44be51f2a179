package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/repository"
	"github.com/windoze95/manas-api/internal/s3"
	"go.uber.org/zap"
)

// MaxUploadBytes is the largest accepted upload.
const MaxUploadBytes = 10 << 20

// allowedUploadTypes are the content types the assistant can read.
var allowedUploadTypes = map[string]bool{
	"image/jpeg":       true,
	"image/png":        true,
	"image/webp":       true,
	"image/gif":        true,
	"text/plain":       true,
	"text/markdown":    true,
	"text/csv":         true,
	"application/json": true,
}

// ObjectStore is the blob storage used for attachments.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// FileService stores uploads until the turn that references them is answered.
type FileService struct {
	Repo  repository.AttachmentRepo
	Store ObjectStore
}

// NewFileService creates a new FileService.
func NewFileService(repo repository.AttachmentRepo, store ObjectStore) *FileService {
	return &FileService{Repo: repo, Store: store}
}

// normalizeContentType drops parameters such as charset.
func normalizeContentType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Upload validates and stores a file for later analysis.
func (s *FileService) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (*models.Attachment, error) {
	ct := normalizeContentType(contentType)
	if !allowedUploadTypes[ct] {
		return nil, userErrorf(CodeInvalidInput, "file type %s is not supported", contentType)
	}
	if len(data) == 0 {
		return nil, userErrorf(CodeInvalidInput, "file is empty")
	}
	if len(data) > MaxUploadBytes {
		return nil, userErrorf(CodeInvalidInput, "file must be at most 10 MB")
	}

	name := filepath.Base(filename)
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	fileID := uuid.NewString()
	key := s3.AttachmentKey(userID, fileID, name)
	if err := s.Store.Put(ctx, key, data, ct); err != nil {
		return nil, err
	}

	attachment := &models.Attachment{
		FileID:      fileID,
		UserID:      userID,
		Filename:    name,
		ContentType: ct,
		Size:        int64(len(data)),
		S3Key:       key,
	}
	if err := s.Repo.CreateAttachment(attachment); err != nil {
		if delErr := s.Store.Delete(ctx, key); delErr != nil {
			logger.Get().Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	return attachment, nil
}

// Resolve returns the user's attachments among fileIDs. IDs that are unknown
// or belong to someone else are ignored.
func (s *FileService) Resolve(userID string, fileIDs []string) ([]models.Attachment, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	return s.Repo.GetAttachments(userID, fileIDs)
}

// Load fetches attachment contents as prompt documents.
func (s *FileService) Load(ctx context.Context, attachments []models.Attachment) ([]ai.Document, error) {
	docs := make([]ai.Document, 0, len(attachments))
	for _, a := range attachments {
		data, err := s.Store.Get(ctx, a.S3Key)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", a.Filename, err)
		}
		doc := ai.Document{Filename: a.Filename, MediaType: a.ContentType}
		if strings.HasPrefix(a.ContentType, "image/") {
			doc.Data = data
		} else {
			doc.Content = strings.ToValidUTF8(string(data), string(utf8.RuneError))
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Discard deletes attachments once they have been used. Failures are logged.
func (s *FileService) Discard(ctx context.Context, attachments []models.Attachment) {
	for _, a := range attachments {
		if err := s.Store.Delete(ctx, a.S3Key); err != nil {
			logger.Get().Warn("failed to delete attachment object", zap.String("file_id", a.FileID), zap.Error(err))
		}
		if err := s.Repo.DeleteAttachment(a.UserID, a.FileID); err != nil {
			logger.Get().Warn("failed to delete attachment record", zap.String("file_id", a.FileID), zap.Error(err))
		}
	}
}
