package db

import (
	"context"
	"testing"
)

func TestInsertAndLookupVectorRows(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	if err := d.InsertVectorRows(ctx, "workspace-1", "doc-1", "/docs/a.json", []string{"v1", "v2"}); err != nil {
		t.Fatalf("InsertVectorRows() error: %v", err)
	}

	ids, err := d.VectorIDsForDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("VectorIDsForDocument() error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 vector ids, got %d", len(ids))
	}
}

func TestInsertVectorRows_Empty(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := d.InsertVectorRows(context.Background(), "ws", "doc", "/a.json", nil); err != nil {
		t.Fatalf("InsertVectorRows() with no ids should be a no-op, got error: %v", err)
	}
}

func TestDeleteDocument(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	_ = d.InsertVectorRows(ctx, "workspace-1", "doc-1", "/a.json", []string{"v1"})
	if err := d.DeleteDocument(ctx, "workspace-1", "doc-1"); err != nil {
		t.Fatalf("DeleteDocument() error: %v", err)
	}
	ids, err := d.VectorIDsForDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("VectorIDsForDocument() error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no vector ids after delete, got %v", ids)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}
