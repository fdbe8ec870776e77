package document

import (
	"errors"
	"testing"
)

func TestNewRejectsEmptyText(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "\n\t "} {
		if _, err := New(RoleCompanyProfile, "profile.txt", text); !errors.Is(err, ErrEmptyDocument) {
			t.Fatalf("expected ErrEmptyDocument for %q, got %v", text, err)
		}
	}
}

func TestNewAssignsIdentity(t *testing.T) {
	t.Parallel()

	doc, err := New(RoleRFP, "rfp.txt", "some requirement text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.ID == "" {
		t.Fatalf("expected a generated document id")
	}
	if doc.Role != RoleRFP {
		t.Fatalf("unexpected role: %s", doc.Role)
	}

	other, err := New(RoleRFP, "rfp.txt", "some requirement text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.ID == doc.ID {
		t.Fatalf("expected distinct ids for distinct documents")
	}
}

func TestRetrievalResultHelpers(t *testing.T) {
	t.Parallel()

	empty := RetrievalResult{}
	if _, ok := empty.Best(); ok {
		t.Fatalf("expected no best match on empty result")
	}
	if len(empty.ChunkIDs()) != 0 {
		t.Fatalf("expected no chunk ids on empty result")
	}

	result := RetrievalResult{Matches: []Match{
		{Chunk: Chunk{ID: "a"}, Score: 0.9},
		{Chunk: Chunk{ID: "b"}, Score: 0.4},
	}}

	best, ok := result.Best()
	if !ok || best.Chunk.ID != "a" {
		t.Fatalf("expected best match a, got %+v", best)
	}

	ids := result.ChunkIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected chunk ids: %v", ids)
	}
}
