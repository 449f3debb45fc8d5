package metastore

import (
	"context"
	"testing"
	"time"

	"github.com/nimbusdocs/ingestcore/internal/changebus"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(nil, dir, changebus.NewInProcess())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return store
}

func TestStore_GetFolder_Missing(t *testing.T) {
	store := newTestStore(t)
	folder, err := store.GetFolder(context.Background(), "custom-documents")
	if err != nil {
		t.Fatalf("GetFolder error: %v", err)
	}
	if folder != nil {
		t.Fatalf("expected nil folder, got %+v", folder)
	}
}

func TestStore_SaveAndGetFolder_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	folder := NewFolderIndex("custom-documents")
	folder.Upsert(FileMetadata{Name: "a.json", Title: "A", WordCount: 10})

	if err := store.SaveFolder(ctx, "custom-documents", folder); err != nil {
		t.Fatalf("SaveFolder error: %v", err)
	}

	got, err := store.GetFolder(ctx, "custom-documents")
	if err != nil {
		t.Fatalf("GetFolder error: %v", err)
	}
	if got == nil || len(got.Items) != 1 || got.Items[0].Name != "a.json" {
		t.Fatalf("GetFolder = %+v, want one item named a.json", got)
	}
}

func TestStore_AddFileToFolder_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := FileMetadata{Name: "a.json", Title: "A", WordCount: 5}
	if err := store.AddFileToFolder(ctx, "custom-documents", item); err != nil {
		t.Fatalf("AddFileToFolder error: %v", err)
	}
	item.WordCount = 50
	if err := store.AddFileToFolder(ctx, "custom-documents", item); err != nil {
		t.Fatalf("AddFileToFolder error: %v", err)
	}

	folder, err := store.GetFolder(ctx, "custom-documents")
	if err != nil {
		t.Fatalf("GetFolder error: %v", err)
	}
	if len(folder.Items) != 1 {
		t.Fatalf("expected exactly one item, got %d", len(folder.Items))
	}
	if folder.Items[0].WordCount != 50 {
		t.Errorf("expected latest write to win, got WordCount=%d", folder.Items[0].WordCount)
	}
}

func TestStore_RemoveFileFromFolder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.AddFileToFolder(ctx, "custom-documents", FileMetadata{Name: "a.json"})
	if err := store.RemoveFileFromFolder(ctx, "custom-documents", "a.json"); err != nil {
		t.Fatalf("RemoveFileFromFolder error: %v", err)
	}

	folder, err := store.GetFolder(ctx, "custom-documents")
	if err != nil {
		t.Fatalf("GetFolder error: %v", err)
	}
	if len(folder.Items) != 0 {
		t.Errorf("expected folder to be empty after removal, got %d items", len(folder.Items))
	}
}

func TestStore_SaveFileMetadata_RequiresRedis(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveFileMetadata(context.Background(), "custom-documents", "a.json", FileMetadata{Name: "a.json"})
	if err == nil {
		t.Fatal("expected error saving transient metadata without redis configured")
	}
}

func TestWireChangeBusConsumer_MergesAddEvent(t *testing.T) {
	dir := t.TempDir()
	bus := changebus.NewInProcess()
	store, err := New(nil, dir, bus)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx := context.Background()
	store.WireChangeBusConsumer(ctx)

	// Without redis, GetFileMetadata returns nil, so the handler is a
	// no-op; this exercises the wiring path without requiring redis.
	if err := changebus.PublishUpdate(ctx, bus, changebus.FileUpdate{
		Action: "add", Folder: "custom-documents", File: "a.json",
	}); err != nil {
		t.Fatalf("PublishUpdate error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	folder, err := store.GetFolder(ctx, "custom-documents")
	if err != nil {
		t.Fatalf("GetFolder error: %v", err)
	}
	if folder != nil && len(folder.Items) != 0 {
		t.Errorf("expected no items, got %+v", folder.Items)
	}
}
