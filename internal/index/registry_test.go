package index

import (
	"testing"

	"github.com/dmaslov/passage-search/internal/core/domain"
)

func TestRegistryGetUnknownCorpus(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrCorpusNotLoaded) {
		t.Fatalf("expected ErrCorpusNotLoaded, got %v", err)
	}
}

func TestRegistryLoadReplacesSnapshot(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Load("c", passages("first version")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	old, err := reg.Get("c")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if err := reg.Load("c", passages("second version", "with more passages")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	current, err := reg.Get("c")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if current == old {
		t.Fatalf("expected a fresh snapshot after reload")
	}
	if old.Len() != 1 || current.Len() != 2 {
		t.Fatalf("snapshots mixed up: old=%d current=%d", old.Len(), current.Len())
	}
}

func TestRegistryRejectsEmptyPassageContent(t *testing.T) {
	reg := NewRegistry()
	err := reg.Load("c", []domain.Passage{{Content: ""}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegistryUnloadAndStats(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Load("b", passages("b text")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := reg.Load("a", passages("a text")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	stats := reg.Stats()
	if len(stats) != 2 || stats[0].CorpusID != "a" || stats[1].CorpusID != "b" {
		t.Fatalf("expected sorted stats for a,b got %v", stats)
	}

	reg.Unload("a")
	if _, err := reg.Get("a"); err == nil {
		t.Fatalf("expected unloaded corpus to be gone")
	}
	if _, err := reg.Get("b"); err != nil {
		t.Fatalf("corpus b should survive: %v", err)
	}
}
