package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docchat/docchat/internal/testutil"
)

func newTestRegistry() *Memory {
	m := NewMemory(testutil.DiscardLogger())

	// Deterministic, strictly increasing clock so List ordering is stable.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var tick int
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return m
}

func TestMemoryRegisterAndGet(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	doc := Document{ID: "report-a1b2", Filename: "report.pdf", Pages: 12}
	if err := reg.Register(ctx, doc); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := reg.Get(ctx, "report-a1b2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("Status = %q after Register(), want %q", got.Status, StatusProcessing)
	}
	if got.Filename != "report.pdf" || got.Pages != 12 {
		t.Errorf("Get() = %+v, want filename and pages preserved", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	if err := reg.Register(ctx, doc); !errors.Is(err, ErrExists) {
		t.Errorf("Register() duplicate error = %v, want ErrExists", err)
	}

	if _, err := reg.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() absent error = %v, want ErrNotFound", err)
	}
}

func TestMemorySetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("ready records chunk count", func(t *testing.T) {
		reg := newTestRegistry()
		if err := reg.Register(ctx, Document{ID: "d1", Filename: "a.pdf"}); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if err := reg.SetStatus(ctx, "d1", StatusReady, 42, ""); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}

		got, err := reg.Get(ctx, "d1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != StatusReady || got.Chunks != 42 || got.Error != "" {
			t.Errorf("Get() = %+v, want ready with 42 chunks", got)
		}
	})

	t.Run("failed records reason", func(t *testing.T) {
		reg := newTestRegistry()
		if err := reg.Register(ctx, Document{ID: "d1", Filename: "a.pdf"}); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if err := reg.SetStatus(ctx, "d1", StatusFailed, 0, "embedding service unavailable"); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}

		got, err := reg.Get(ctx, "d1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != StatusFailed || got.Error != "embedding service unavailable" {
			t.Errorf("Get() = %+v, want failed with reason", got)
		}
		if got.Chunks != 0 {
			t.Errorf("Chunks = %d for failed document, want 0", got.Chunks)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		reg := newTestRegistry()
		err := reg.SetStatus(ctx, "absent", StatusReady, 1, "")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("SetStatus() error = %v, want ErrNotFound", err)
		}
	})
}

func TestMemoryListOrder(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	// Registration order, not id order, decides listing.
	ids := []string{"c-doc", "a-doc", "b-doc"}
	for _, id := range ids {
		if err := reg.Register(ctx, Document{ID: id, Filename: id + ".pdf"}); err != nil {
			t.Fatalf("Register(%q) error = %v", id, err)
		}
	}

	docs, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("List() returned %d documents, want 3", len(docs))
	}
	for i, want := range ids {
		if docs[i].ID != want {
			t.Errorf("List()[%d].ID = %q, want %q", i, docs[i].ID, want)
		}
	}
}

func TestMemoryRemove(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	if err := reg.Remove(ctx, "absent"); err != nil {
		t.Errorf("Remove() absent error = %v, want nil", err)
	}

	if err := reg.Register(ctx, Document{ID: "d1", Filename: "a.pdf"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Remove(ctx, "d1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := reg.Get(ctx, "d1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Remove() error = %v, want ErrNotFound", err)
	}

	// Removing twice stays a no-op.
	if err := reg.Remove(ctx, "d1"); err != nil {
		t.Errorf("Remove() twice error = %v, want nil", err)
	}
}
