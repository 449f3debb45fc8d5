package resync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnumerateFolders_GlobFilter(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"reports-2024", "reports-2025", "scratch"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	engine, _ := newTestEngine(t, root)
	folders, err := engine.enumerateFolders([]string{"reports-*"})
	if err != nil {
		t.Fatalf("enumerateFolders error: %v", err)
	}
	want := []string{"reports-2024", "reports-2025"}
	if len(folders) != len(want) {
		t.Fatalf("got %v, want %v", folders, want)
	}
	for i := range want {
		if folders[i] != want[i] {
			t.Fatalf("got %v, want %v", folders, want)
		}
	}
}

func TestEnumerateFolders_ExactNameStillMatches(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "custom-documents"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "other"), 0o755); err != nil {
		t.Fatal(err)
	}

	engine, _ := newTestEngine(t, root)
	folders, err := engine.enumerateFolders([]string{"custom-documents"})
	if err != nil {
		t.Fatalf("enumerateFolders error: %v", err)
	}
	if len(folders) != 1 || folders[0] != "custom-documents" {
		t.Fatalf("got %v, want [custom-documents]", folders)
	}
}

func TestFolderOf(t *testing.T) {
	engine, _ := newTestEngine(t, filepath.FromSlash("/docs"))
	engine.docRoot = filepath.FromSlash("/docs")

	cases := []struct {
		path string
		want string
	}{
		{filepath.FromSlash("/docs/folder-a/1.json"), "folder-a"},
		{filepath.FromSlash("/docs/folder-a"), "folder-a"},
		{filepath.FromSlash("/docs"), ""},
		{filepath.FromSlash("/elsewhere/file.json"), ""},
	}
	for _, c := range cases {
		if got := engine.folderOf(c.path); got != c.want {
			t.Errorf("folderOf(%s) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestWatch_DetectsChangeAndRescans(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "custom-documents")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}

	engine, store := newTestEngine(t, root)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- engine.Watch(ctx, 50*time.Millisecond) }()

	time.Sleep(100 * time.Millisecond)
	writeDoc(t, folder, "1.json", validDoc("watched-doc"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		index, err := store.GetFolder(context.Background(), "custom-documents")
		if err == nil && index != nil && len(index.Items) == 1 {
			cancel()
			<-done
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done
	t.Fatal("watch did not pick up the new file within the deadline")
}
