package testutil

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/integrations"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/repository"
)

// --- MockTextProvider ---

// MockTextProvider is a mock implementation of ai.TextProvider.
type MockTextProvider struct {
	ClassifyIntentFunc       func(ctx context.Context, transcript string, history []ai.Message) (*ai.IntentResult, error)
	ExtractTaskFunc          func(ctx context.Context, transcript string, history []ai.Message, now time.Time) (*ai.TaskDetails, error)
	ExtractTaskChangeFunc    func(ctx context.Context, transcript string, history []ai.Message, now time.Time) (*ai.TaskChange, error)
	ExtractCalendarEventFunc func(ctx context.Context, transcript string, now time.Time) (*ai.CalendarEventDetails, error)
	ExtractQueryFunc         func(ctx context.Context, kind ai.QueryKind, transcript string) (string, error)
	ExtractProfileFactsFunc  func(ctx context.Context, transcript string) (*ai.ProfileFacts, error)
	ChatFunc                 func(ctx context.Context, req ai.ChatRequest) (string, error)
	BeautifyFunc             func(ctx context.Context, message string, intent ai.Intent) (string, error)
	SummarizeFunc            func(ctx context.Context, instruction string, content string) (string, error)

	mu    sync.Mutex
	Calls []string
}

func (m *MockTextProvider) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
}

// Called reports whether the named method was invoked.
func (m *MockTextProvider) Called(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Calls {
		if c == name {
			return true
		}
	}
	return false
}

func (m *MockTextProvider) ClassifyIntent(ctx context.Context, transcript string, history []ai.Message) (*ai.IntentResult, error) {
	m.record("ClassifyIntent")
	if m.ClassifyIntentFunc != nil {
		return m.ClassifyIntentFunc(ctx, transcript, history)
	}
	return nil, fmt.Errorf("ClassifyIntent not configured")
}

func (m *MockTextProvider) ExtractTask(ctx context.Context, transcript string, history []ai.Message, now time.Time) (*ai.TaskDetails, error) {
	m.record("ExtractTask")
	if m.ExtractTaskFunc != nil {
		return m.ExtractTaskFunc(ctx, transcript, history, now)
	}
	return nil, fmt.Errorf("ExtractTask not configured")
}

func (m *MockTextProvider) ExtractTaskChange(ctx context.Context, transcript string, history []ai.Message, now time.Time) (*ai.TaskChange, error) {
	m.record("ExtractTaskChange")
	if m.ExtractTaskChangeFunc != nil {
		return m.ExtractTaskChangeFunc(ctx, transcript, history, now)
	}
	return nil, fmt.Errorf("ExtractTaskChange not configured")
}

func (m *MockTextProvider) ExtractCalendarEvent(ctx context.Context, transcript string, now time.Time) (*ai.CalendarEventDetails, error) {
	m.record("ExtractCalendarEvent")
	if m.ExtractCalendarEventFunc != nil {
		return m.ExtractCalendarEventFunc(ctx, transcript, now)
	}
	return nil, fmt.Errorf("ExtractCalendarEvent not configured")
}

func (m *MockTextProvider) ExtractQuery(ctx context.Context, kind ai.QueryKind, transcript string) (string, error) {
	m.record("ExtractQuery")
	if m.ExtractQueryFunc != nil {
		return m.ExtractQueryFunc(ctx, kind, transcript)
	}
	return "", fmt.Errorf("ExtractQuery not configured")
}

func (m *MockTextProvider) ExtractProfileFacts(ctx context.Context, transcript string) (*ai.ProfileFacts, error) {
	m.record("ExtractProfileFacts")
	if m.ExtractProfileFactsFunc != nil {
		return m.ExtractProfileFactsFunc(ctx, transcript)
	}
	return &ai.ProfileFacts{}, nil
}

func (m *MockTextProvider) Chat(ctx context.Context, req ai.ChatRequest) (string, error) {
	m.record("Chat")
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return "", fmt.Errorf("Chat not configured")
}

// Beautify returns the message unchanged unless BeautifyFunc is set.
func (m *MockTextProvider) Beautify(ctx context.Context, message string, intent ai.Intent) (string, error) {
	m.record("Beautify")
	if m.BeautifyFunc != nil {
		return m.BeautifyFunc(ctx, message, intent)
	}
	return message, nil
}

func (m *MockTextProvider) Summarize(ctx context.Context, instruction string, content string) (string, error) {
	m.record("Summarize")
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, instruction, content)
	}
	return "", fmt.Errorf("Summarize not configured")
}

// --- MockSpeechProvider ---

// MockSpeechProvider is a mock implementation of ai.SpeechProvider.
type MockSpeechProvider struct {
	TranscribeAudioFunc func(ctx context.Context, audioData []byte, filename string) (string, error)
}

func (m *MockSpeechProvider) TranscribeAudio(ctx context.Context, audioData []byte, filename string) (string, error) {
	if m.TranscribeAudioFunc != nil {
		return m.TranscribeAudioFunc(ctx, audioData, filename)
	}
	return "", fmt.Errorf("TranscribeAudio not configured")
}

// --- MockSynthesisProvider ---

// MockSynthesisProvider is a mock implementation of ai.SynthesisProvider.
type MockSynthesisProvider struct {
	SynthesizeFunc func(ctx context.Context, text string, voiceID string) ([]byte, error)

	mu     sync.Mutex
	Voices []string
}

func (m *MockSynthesisProvider) Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error) {
	m.mu.Lock()
	m.Voices = append(m.Voices, voiceID)
	m.mu.Unlock()
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, voiceID)
	}
	return nil, fmt.Errorf("Synthesize not configured")
}

// --- MockEmbeddingProvider ---

// MockEmbeddingProvider is a mock implementation of ai.EmbeddingProvider.
// Without GenerateEmbeddingFunc it returns a bag-of-letters vector, so texts
// sharing words land close together.
type MockEmbeddingProvider struct {
	GenerateEmbeddingFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if m.GenerateEmbeddingFunc != nil {
		return m.GenerateEmbeddingFunc(ctx, text)
	}
	v := make([]float32, 26)
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			v[r-'a']++
		case r >= 'A' && r <= 'Z':
			v[r-'A']++
		}
	}
	return v, nil
}

// --- MockSearchProvider ---

// MockSearchProvider is a mock implementation of ai.SearchProvider.
type MockSearchProvider struct {
	SearchFunc func(ctx context.Context, query string, count int) ([]ai.SearchResult, error)

	mu    sync.Mutex
	Calls int
}

func (m *MockSearchProvider) Search(ctx context.Context, query string, count int) ([]ai.SearchResult, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, count)
	}
	return nil, fmt.Errorf("Search not configured")
}

// --- MockTaskRepo ---

// MockTaskRepo is an in-memory mock implementation of repository.TaskRepo.
type MockTaskRepo struct {
	mu     sync.Mutex
	Tasks  map[uint]*models.Task
	NextID uint

	// Error overrides: set these to force specific methods to return errors.
	CreateTaskErr error
	ListTasksErr  error
	UpdateTaskErr error
	DeleteTaskErr error
}

// NewMockTaskRepo creates a new MockTaskRepo with initialized maps.
func NewMockTaskRepo() *MockTaskRepo {
	return &MockTaskRepo{Tasks: make(map[uint]*models.Task), NextID: 1}
}

func (m *MockTaskRepo) CreateTask(task *models.Task) error {
	if m.CreateTaskErr != nil {
		return m.CreateTaskErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if task.Status == "" {
		task.Status = models.TaskPending
	}
	task.ID = m.NextID
	m.NextID++
	now := time.Now()
	task.CreatedAt, task.UpdatedAt = now, now
	cp := *task
	m.Tasks[task.ID] = &cp
	return nil
}

func (m *MockTaskRepo) GetTask(userID string, taskID uint) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.Tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, repository.NewNotFoundError("task not found")
	}
	cp := *t
	return &cp, nil
}

func (m *MockTaskRepo) ListTasks(userID string, status models.TaskStatus) ([]models.Task, error) {
	if m.ListTasksErr != nil {
		return nil, m.ListTasksErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := []models.Task{}
	for _, t := range m.Tasks {
		if t.UserID == userID && (status == "" || t.Status == status) {
			tasks = append(tasks, *t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID > tasks[j].ID })
	return tasks, nil
}

func (m *MockTaskRepo) UpdateTask(task *models.Task) error {
	if m.UpdateTaskErr != nil {
		return m.UpdateTaskErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.Tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return repository.NewNotFoundError("task not found")
	}
	cp := *task
	cp.UpdatedAt = time.Now()
	m.Tasks[task.ID] = &cp
	return nil
}

func (m *MockTaskRepo) DeleteTask(userID string, taskID uint) error {
	if m.DeleteTaskErr != nil {
		return m.DeleteTaskErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.Tasks[taskID]
	if !ok || t.UserID != userID {
		return repository.NewNotFoundError("task not found")
	}
	delete(m.Tasks, taskID)
	return nil
}

func (m *MockTaskRepo) ListDueUnreminded(before time.Time) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []models.Task
	for _, t := range m.Tasks {
		if t.Status == models.TaskPending && t.DueDate != nil && t.DueDate.Before(before) && t.RemindedAt == nil {
			tasks = append(tasks, *t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (m *MockTaskRepo) MarkReminded(taskIDs []uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range taskIDs {
		if t, ok := m.Tasks[id]; ok {
			stamp := at
			t.RemindedAt = &stamp
		}
	}
	return nil
}

// --- MockProfileRepo ---

// MockProfileRepo is an in-memory mock implementation of repository.ProfileRepo.
type MockProfileRepo struct {
	mu       sync.Mutex
	Profiles map[string]*models.Profile
	NextID   uint

	GetProfileErr  error
	SaveProfileErr error
}

// NewMockProfileRepo creates a new MockProfileRepo with initialized maps.
func NewMockProfileRepo() *MockProfileRepo {
	return &MockProfileRepo{Profiles: make(map[string]*models.Profile), NextID: 1}
}

func (m *MockProfileRepo) GetProfile(userID string) (*models.Profile, error) {
	if m.GetProfileErr != nil {
		return nil, m.GetProfileErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.Profiles[userID]
	if !ok {
		return nil, repository.NewNotFoundError("profile not found")
	}
	cp := *p
	return &cp, nil
}

func (m *MockProfileRepo) CreateProfile(profile *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Profiles[profile.UserID]; ok {
		return repository.ErrProfileExists
	}
	profile.ID = m.NextID
	m.NextID++
	cp := *profile
	m.Profiles[profile.UserID] = &cp
	return nil
}

func (m *MockProfileRepo) SaveProfile(profile *models.Profile) error {
	if m.SaveProfileErr != nil {
		return m.SaveProfileErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *profile
	m.Profiles[profile.UserID] = &cp
	return nil
}

func (m *MockProfileRepo) ClearProfileField(userID string, field models.ProfileField) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.Profiles[userID]
	if !ok {
		return repository.NewNotFoundError("profile not found")
	}
	switch field {
	case models.FieldName:
		p.Name = ""
	case models.FieldEmail:
		p.Email = ""
	case models.FieldLocation:
		p.Location = ""
	case models.FieldDietaryPreference:
		p.DietaryPreference = ""
	case models.FieldLearningLevel:
		p.LearningLevel = ""
	case models.FieldPreferredVoice:
		p.PreferredVoice = ""
	case models.FieldInterests:
		p.Interests = nil
	default:
		return fmt.Errorf("field cannot be cleared")
	}
	return nil
}

// --- MockIntegrationRepo ---

// MockIntegrationRepo is an in-memory mock implementation of repository.IntegrationRepo.
type MockIntegrationRepo struct {
	mu           sync.Mutex
	Integrations map[string]*models.Integration
}

// NewMockIntegrationRepo creates a new MockIntegrationRepo with initialized maps.
func NewMockIntegrationRepo() *MockIntegrationRepo {
	return &MockIntegrationRepo{Integrations: make(map[string]*models.Integration)}
}

func integrationKey(userID string, provider models.IntegrationProvider) string {
	return userID + "/" + string(provider)
}

func (m *MockIntegrationRepo) GetIntegration(userID string, provider models.IntegrationProvider) (*models.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.Integrations[integrationKey(userID, provider)]
	if !ok {
		return nil, repository.NewNotFoundError("integration not found")
	}
	cp := *i
	return &cp, nil
}

func (m *MockIntegrationRepo) UpsertIntegration(integration *models.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *integration
	m.Integrations[integrationKey(integration.UserID, integration.Provider)] = &cp
	return nil
}

func (m *MockIntegrationRepo) DeleteIntegration(userID string, provider models.IntegrationProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Integrations, integrationKey(userID, provider))
	return nil
}

func (m *MockIntegrationRepo) ListConnected(userID string) ([]models.IntegrationProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.IntegrationProvider
	for _, p := range models.AllProviders {
		if _, ok := m.Integrations[integrationKey(userID, p)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- MockMemoryRepo ---

type storedMemory struct {
	memory    models.Memory
	embedding []float32
}

// MockMemoryRepo is an in-memory mock implementation of repository.MemoryRepo.
// Search ranks by cosine distance like the pgvector query.
type MockMemoryRepo struct {
	mu       sync.Mutex
	memories []storedMemory
	NextID   uint

	AddMemoryErr error
	SearchErr    error
}

// NewMockMemoryRepo creates a new MockMemoryRepo.
func NewMockMemoryRepo() *MockMemoryRepo {
	return &MockMemoryRepo{NextID: 1}
}

func (m *MockMemoryRepo) AddMemory(memory *models.Memory, embedding []float32) error {
	if m.AddMemoryErr != nil {
		return m.AddMemoryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	memory.ID = m.NextID
	m.NextID++
	memory.CreatedAt = time.Now()
	m.memories = append(m.memories, storedMemory{memory: *memory, embedding: embedding})
	return nil
}

func (m *MockMemoryRepo) SearchMemories(userID string, embedding []float32, limit int) ([]models.ScoredMemory, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ScoredMemory
	for _, s := range m.memories {
		if s.memory.UserID == userID {
			out = append(out, models.ScoredMemory{Memory: s.memory, Distance: cosineDistance(s.embedding, embedding)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockMemoryRepo) ListMemories(userID string) ([]models.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Memory
	for _, s := range m.memories {
		if s.memory.UserID == userID {
			out = append(out, s.memory)
		}
	}
	return out, nil
}

func (m *MockMemoryRepo) DeleteMemory(userID string, memoryID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.memories {
		if s.memory.UserID == userID && s.memory.ID == memoryID {
			m.memories = append(m.memories[:i], m.memories[i+1:]...)
			return nil
		}
	}
	return repository.NewNotFoundError("memory not found")
}

func (m *MockMemoryRepo) DeleteAllMemories(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.memories[:0]
	for _, s := range m.memories {
		if s.memory.UserID != userID {
			kept = append(kept, s)
		}
	}
	m.memories = kept
	return nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// --- MockAttachmentRepo ---

// MockAttachmentRepo is an in-memory mock implementation of repository.AttachmentRepo.
type MockAttachmentRepo struct {
	mu          sync.Mutex
	Attachments map[string]*models.Attachment

	CreateAttachmentErr error
}

// NewMockAttachmentRepo creates a new MockAttachmentRepo with initialized maps.
func NewMockAttachmentRepo() *MockAttachmentRepo {
	return &MockAttachmentRepo{Attachments: make(map[string]*models.Attachment)}
}

func (m *MockAttachmentRepo) CreateAttachment(attachment *models.Attachment) error {
	if m.CreateAttachmentErr != nil {
		return m.CreateAttachmentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *attachment
	m.Attachments[attachment.FileID] = &cp
	return nil
}

func (m *MockAttachmentRepo) GetAttachments(userID string, fileIDs []string) ([]models.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Attachment
	for _, id := range fileIDs {
		if a, ok := m.Attachments[id]; ok && a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *MockAttachmentRepo) DeleteAttachment(userID string, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.Attachments[fileID]; ok && a.UserID == userID {
		delete(m.Attachments, fileID)
	}
	return nil
}

// --- MockObjectStore ---

// MockObjectStore is an in-memory object store keyed like S3.
type MockObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte

	PutErr error
	GetErr error
}

// NewMockObjectStore creates a new MockObjectStore.
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{Objects: make(map[string][]byte)}
}

func (m *MockObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MockObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, key)
	return nil
}

// --- MockCalendar ---

// MockCalendar is an in-memory calendar.
type MockCalendar struct {
	mu     sync.Mutex
	Events []integrations.CalendarEvent
	nextID int
}

func (m *MockCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]integrations.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []integrations.CalendarEvent
	for _, e := range m.Events {
		if !e.Start.Before(from) && !e.Start.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockCalendar) CreateEvent(ctx context.Context, summary, location string, start, end time.Time) (*integrations.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e := integrations.CalendarEvent{
		ID:       fmt.Sprintf("evt%d", m.nextID),
		Summary:  summary,
		Location: location,
		Start:    start,
		End:      end,
	}
	m.Events = append(m.Events, e)
	return &e, nil
}

func (m *MockCalendar) UpdateEvent(ctx context.Context, eventID, summary string, start, end time.Time) (*integrations.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.Events {
		if m.Events[i].ID != eventID {
			continue
		}
		if summary != "" {
			m.Events[i].Summary = summary
		}
		if !start.IsZero() && !end.IsZero() {
			m.Events[i].Start, m.Events[i].End = start, end
		}
		e := m.Events[i]
		return &e, nil
	}
	return nil, fmt.Errorf("event %s not found", eventID)
}

func (m *MockCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.Events {
		if m.Events[i].ID == eventID {
			m.Events = append(m.Events[:i], m.Events[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("event %s not found", eventID)
}

// --- MockMail ---

// MockMail serves a fixed mailbox.
type MockMail struct {
	Messages []integrations.Email
	Threads  map[string][]integrations.Email
	Unread   int
	Queries  []string
}

func (m *MockMail) ListMessages(ctx context.Context, query string, max int) ([]integrations.Email, error) {
	m.Queries = append(m.Queries, query)
	out := m.Messages
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (m *MockMail) UnreadCount(ctx context.Context) (int, error) {
	return m.Unread, nil
}

func (m *MockMail) GetThread(ctx context.Context, threadID string) ([]integrations.Email, error) {
	return m.Threads[threadID], nil
}

var _ ai.TextProvider = (*MockTextProvider)(nil)
var _ ai.SpeechProvider = (*MockSpeechProvider)(nil)
var _ ai.SynthesisProvider = (*MockSynthesisProvider)(nil)
var _ ai.EmbeddingProvider = (*MockEmbeddingProvider)(nil)
var _ ai.SearchProvider = (*MockSearchProvider)(nil)
var _ repository.TaskRepo = (*MockTaskRepo)(nil)
var _ repository.ProfileRepo = (*MockProfileRepo)(nil)
var _ repository.IntegrationRepo = (*MockIntegrationRepo)(nil)
var _ repository.MemoryRepo = (*MockMemoryRepo)(nil)
var _ repository.AttachmentRepo = (*MockAttachmentRepo)(nil)
