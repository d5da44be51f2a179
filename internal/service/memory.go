package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/repository"
)

const (
	// recallLimit is how many memories a search returns.
	recallLimit = 5

	// forgetMaxDistance is the largest cosine distance a memory may have from
	// a forget request and still be deleted.
	forgetMaxDistance = 0.5
)

// ErrNoMatchingMemory is returned by Forget when nothing is close enough.
var ErrNoMatchingMemory = errors.New("no matching memory")

// MemoryService stores and searches personal facts by embedding similarity.
type MemoryService struct {
	Repo     repository.MemoryRepo
	Embedder ai.EmbeddingProvider
}

// NewMemoryService creates a new MemoryService.
func NewMemoryService(repo repository.MemoryRepo, embedder ai.EmbeddingProvider) *MemoryService {
	return &MemoryService{Repo: repo, Embedder: embedder}
}

// Remember embeds and stores a fact for the user.
func (s *MemoryService) Remember(ctx context.Context, userID, fact string) (*models.Memory, error) {
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return nil, userErrorf(CodeNeedsMoreInfo, "I couldn't understand what you'd like me to remember. Could you rephrase that?")
	}
	embedding, err := s.Embedder.GenerateEmbedding(ctx, fact)
	if err != nil {
		return nil, fmt.Errorf("embed memory: %w", err)
	}
	memory := &models.Memory{UserID: userID, Content: fact}
	if err := s.Repo.AddMemory(memory, embedding); err != nil {
		return nil, fmt.Errorf("store memory: %w", err)
	}
	return memory, nil
}

// Recall returns the user's memories closest to query.
func (s *MemoryService) Recall(ctx context.Context, userID, query string) ([]models.ScoredMemory, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	embedding, err := s.Embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.Repo.SearchMemories(userID, embedding, recallLimit)
}

// All lists every memory the user has stored.
func (s *MemoryService) All(userID string) ([]models.Memory, error) {
	return s.Repo.ListMemories(userID)
}

// Forget deletes the memory closest to query. ErrNoMatchingMemory is
// returned when nothing is similar enough.
func (s *MemoryService) Forget(ctx context.Context, userID, query string) (*models.Memory, error) {
	matches, err := s.Recall(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 || matches[0].Distance > forgetMaxDistance {
		return nil, ErrNoMatchingMemory
	}
	best := matches[0].Memory
	if err := s.Repo.DeleteMemory(userID, best.ID); err != nil {
		return nil, fmt.Errorf("delete memory: %w", err)
	}
	return &best, nil
}

// ForgetAll deletes every memory the user has stored.
func (s *MemoryService) ForgetAll(userID string) error {
	return s.Repo.DeleteAllMemories(userID)
}

// Contents flattens scored memories to their text.
func Contents(memories []models.ScoredMemory) []string {
	out := make([]string, 0, len(memories))
	for _, m := range memories {
		out = append(out, m.Content)
	}
	return out
}
