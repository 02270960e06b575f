package vectorstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ragchat/internal/config"
)

func newTestChromem(t *testing.T, path string) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(config.VectorStoreConfig{
		Backend:    "chromem",
		Collection: "paloma",
		Dimension:  3,
		Path:       path,
	}, nil)
	if err != nil {
		t.Fatalf("new chromem store: %v", err)
	}
	if err := store.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("ensure collection: %v", err)
	}
	return store
}

func TestChromemUpsertIsIdempotentPerID(t *testing.T) {
	store := newTestChromem(t, "")
	ctx := context.Background()

	records := []Record{
		{ID: RecordID("brochure", 0), Vector: []float32{1, 0, 0}, Filename: "brochure", Page: 0, Content: "pool"},
		{ID: RecordID("brochure", 1), Vector: []float32{0, 1, 0}, Filename: "brochure", Page: 1, Content: "gym"},
	}
	if err := store.Upsert(ctx, records); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	records[1].Content = "gym and spa"
	if err := store.Upsert(ctx, records); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected one entry per page, got %d", count)
	}

	matches, err := store.Query(ctx, []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Content != "gym and spa" || matches[0].Page != 1 || matches[0].Filename != "brochure" {
		t.Fatalf("unexpected match %+v", matches[0])
	}
}

func TestChromemQueryOrdersByScoreAndClampsTopK(t *testing.T) {
	store := newTestChromem(t, "")
	ctx := context.Background()

	err := store.Upsert(ctx, []Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Filename: "a", Content: "a"},
		{ID: "b", Vector: []float32{0.6, 0.8, 0}, Filename: "b", Content: "b"},
		{ID: "c", Vector: []float32{0, 0, 1}, Filename: "c", Content: "c"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	matches, err := store.Query(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected all 3 records, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i-1].Score < matches[i].Score {
			t.Fatalf("matches not in descending order: %+v", matches)
		}
	}
	if matches[0].ID != "a" {
		t.Fatalf("expected closest record first, got %s", matches[0].ID)
	}
}

func TestChromemEmptyCollectionReturnsNoMatches(t *testing.T) {
	store := newTestChromem(t, "")
	matches, err := store.Query(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(matches))
	}
}

func TestChromemRejectsDimensionMismatch(t *testing.T) {
	store := newTestChromem(t, "")
	ctx := context.Background()

	if _, err := store.Query(ctx, []float32{1, 0}, 5); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch on query, got %v", err)
	}
	err := store.Upsert(ctx, []Record{{ID: "x", Vector: []float32{1, 0, 0, 0}}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch on upsert, got %v", err)
	}
}

func TestChromemPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chromem")
	ctx := context.Background()

	first := newTestChromem(t, path)
	if err := first.Upsert(ctx, []Record{{ID: RecordID("doc", 0), Vector: []float32{0, 0, 1}, Filename: "doc", Content: "lobby"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second := newTestChromem(t, path)
	count, err := second.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected persisted record, got %d", count)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), config.VectorStoreConfig{Backend: "pinecone"}, nil); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}
}

func TestRecordID(t *testing.T) {
	if got := RecordID("brochure", 4); got != "brochure_page_4_text" {
		t.Fatalf("unexpected record id %s", got)
	}
}
