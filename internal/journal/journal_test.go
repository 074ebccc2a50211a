package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestMarkProcessedDedup(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	fresh, err := j.MarkProcessed(ctx, "hash-1", "ftrack.leech")
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if !fresh {
		t.Fatal("first MarkProcessed = false, want true")
	}

	fresh, err = j.MarkProcessed(ctx, "hash-1", "ftrack.leech")
	if err != nil {
		t.Fatalf("MarkProcessed redelivery: %v", err)
	}
	if fresh {
		t.Error("redelivered MarkProcessed = true, want false")
	}

	done, err := j.IsProcessed(ctx, "hash-1")
	if err != nil || !done {
		t.Errorf("IsProcessed(hash-1) = %v, %v; want true", done, err)
	}
	done, err = j.IsProcessed(ctx, "hash-2")
	if err != nil || done {
		t.Errorf("IsProcessed(hash-2) = %v, %v; want false", done, err)
	}
}

func TestPrune(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	if _, err := j.MarkProcessed(ctx, "old", "t"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	// A cutoff in the past removes nothing.
	n, err := j.Prune(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Errorf("Prune(past) = %d, %v; want 0 removed", n, err)
	}
	// A cutoff in the future removes the record.
	n, err = j.Prune(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Errorf("Prune(future) = %d, %v; want 1 removed", n, err)
	}
	done, err := j.IsProcessed(ctx, "old")
	if err != nil || done {
		t.Errorf("IsProcessed after prune = %v, %v; want false", done, err)
	}
}

func TestCounters(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	v, err := j.Counter(ctx, "events_processed")
	if err != nil || v != 0 {
		t.Fatalf("Counter(missing) = %d, %v; want 0", v, err)
	}
	if err := j.AddCounter(ctx, "events_processed", 2); err != nil {
		t.Fatalf("AddCounter: %v", err)
	}
	if err := j.AddCounter(ctx, "events_processed", 3); err != nil {
		t.Fatalf("AddCounter: %v", err)
	}
	v, err = j.Counter(ctx, "events_processed")
	if err != nil || v != 5 {
		t.Errorf("Counter = %d, %v; want 5", v, err)
	}
}

func TestWatermarks(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	v, err := j.Watermark(ctx, "comments:testproj")
	if err != nil || v != "" {
		t.Fatalf("Watermark(missing) = %q, %v; want empty", v, err)
	}
	if err := j.SetWatermark(ctx, "comments:testproj", "2024-03-01T00:00:00Z"); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}
	if err := j.SetWatermark(ctx, "comments:testproj", "2024-03-02T00:00:00Z"); err != nil {
		t.Fatalf("SetWatermark overwrite: %v", err)
	}
	v, err = j.Watermark(ctx, "comments:testproj")
	if err != nil || v != "2024-03-02T00:00:00Z" {
		t.Errorf("Watermark = %q, %v; want the newer cursor", v, err)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := j.MarkProcessed(ctx, "hash-1", "t"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	done, err := j.IsProcessed(ctx, "hash-1")
	if err != nil || !done {
		t.Errorf("IsProcessed after reopen = %v, %v; want true", done, err)
	}
}
