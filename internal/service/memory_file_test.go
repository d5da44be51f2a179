package service

import (
	"context"
	"errors"
	"testing"

	"github.com/windoze95/manas-api/internal/testutil"
)

var _ ObjectStore = (*testutil.MockObjectStore)(nil)

func TestMemory_RememberRecallForget(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(testutil.NewMockMemoryRepo(), &testutil.MockEmbeddingProvider{})

	if _, err := svc.Remember(ctx, "u1", "my favourite food is sushi"); err != nil {
		t.Fatalf("Remember error: %v", err)
	}
	if _, err := svc.Remember(ctx, "u1", "my sister is called Anjali"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Remember(ctx, "u2", "someone else's secret"); err != nil {
		t.Fatal(err)
	}

	found, err := svc.Recall(ctx, "u1", "my favourite food is sushi")
	if err != nil {
		t.Fatalf("Recall error: %v", err)
	}
	if len(found) != 2 || found[0].Content != "my favourite food is sushi" {
		t.Errorf("Recall = %v, want closest first and only u1's memories", found)
	}

	forgotten, err := svc.Forget(ctx, "u1", "my favourite food is sushi")
	if err != nil {
		t.Fatalf("Forget error: %v", err)
	}
	if forgotten.Content != "my favourite food is sushi" {
		t.Errorf("forgot %q", forgotten.Content)
	}
	all, _ := svc.All("u1")
	if len(all) != 1 {
		t.Errorf("memories left = %d, want 1", len(all))
	}
}

func TestMemory_ForgetNoMatch(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(testutil.NewMockMemoryRepo(), &testutil.MockEmbeddingProvider{})
	if _, err := svc.Remember(ctx, "u1", "loves hiking"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Forget(ctx, "u1", "zzz")
	if !errors.Is(err, ErrNoMatchingMemory) {
		t.Fatalf("expected ErrNoMatchingMemory, got %v", err)
	}
}

func TestMemory_RememberEmpty(t *testing.T) {
	svc := NewMemoryService(testutil.NewMockMemoryRepo(), &testutil.MockEmbeddingProvider{})
	_, err := svc.Remember(context.Background(), "u1", "  ")
	if _, ok := AsUserError(err); !ok {
		t.Fatalf("expected UserError, got %v", err)
	}
}

func TestMemory_ForgetAll(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(testutil.NewMockMemoryRepo(), &testutil.MockEmbeddingProvider{})
	_, _ = svc.Remember(ctx, "u1", "a fact")
	_, _ = svc.Remember(ctx, "u2", "another fact")

	if err := svc.ForgetAll("u1"); err != nil {
		t.Fatal(err)
	}
	if all, _ := svc.All("u1"); len(all) != 0 {
		t.Errorf("u1 memories = %d, want 0", len(all))
	}
	if all, _ := svc.All("u2"); len(all) != 1 {
		t.Errorf("u2 memories = %d, want 1", len(all))
	}
}

func TestFileUpload_StoresAndLoads(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMockObjectStore()
	repo := testutil.NewMockAttachmentRepo()
	svc := NewFileService(repo, store)

	a, err := svc.Upload(ctx, "u1", "../notes.txt", "text/plain; charset=utf-8", []byte("buy milk"))
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if a.Filename != "notes.txt" || a.ContentType != "text/plain" {
		t.Errorf("attachment = %+v", a)
	}
	if _, ok := store.Objects[a.S3Key]; !ok {
		t.Fatalf("object %s not stored", a.S3Key)
	}

	resolved, err := svc.Resolve("u1", []string{a.FileID, "unknown"})
	if err != nil || len(resolved) != 1 {
		t.Fatalf("Resolve = %v, %v", resolved, err)
	}
	if other, _ := svc.Resolve("u2", []string{a.FileID}); len(other) != 0 {
		t.Error("another user's attachment must not resolve")
	}

	docs, err := svc.Load(ctx, resolved)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if docs[0].Content != "buy milk" || docs[0].IsImage() {
		t.Errorf("doc = %+v", docs[0])
	}

	svc.Discard(ctx, resolved)
	if len(store.Objects) != 0 || len(repo.Attachments) != 0 {
		t.Error("Discard should remove object and record")
	}
}

func TestFileUpload_Rejects(t *testing.T) {
	svc := NewFileService(testutil.NewMockAttachmentRepo(), testutil.NewMockObjectStore())
	ctx := context.Background()

	if _, err := svc.Upload(ctx, "u1", "a.exe", "application/x-msdownload", []byte("x")); err == nil {
		t.Error("expected unsupported type error")
	}
	if _, err := svc.Upload(ctx, "u1", "a.txt", "text/plain", nil); err == nil {
		t.Error("expected empty file error")
	}
	if _, err := svc.Upload(ctx, "u1", "a.txt", "text/plain", make([]byte, MaxUploadBytes+1)); err == nil {
		t.Error("expected size error")
	}
}

func TestFileUpload_RemovesOrphanOnRepoError(t *testing.T) {
	store := testutil.NewMockObjectStore()
	repo := testutil.NewMockAttachmentRepo()
	repo.CreateAttachmentErr = errors.New("db down")
	svc := NewFileService(repo, store)

	if _, err := svc.Upload(context.Background(), "u1", "a.png", "image/png", []byte{0x89, 'P', 'N', 'G'}); err == nil {
		t.Fatal("expected error")
	}
	if len(store.Objects) != 0 {
		t.Error("stored object should be removed when the record fails")
	}
}
