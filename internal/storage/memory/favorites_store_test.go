package memory

import (
	"context"
	"testing"
)

func TestFavoritesStore_AddIsIdempotent(t *testing.T) {
	store := NewFavoritesStore()
	ctx := context.Background()

	added, err := store.Add(ctx, "ecash:a", "e1")
	if err != nil || !added {
		t.Fatalf("first Add: added=%v err=%v", added, err)
	}
	added, err = store.Add(ctx, "ecash:a", "e1")
	if err != nil || added {
		t.Fatalf("second Add: added=%v err=%v", added, err)
	}
	if _, err := store.Add(ctx, "ecash:a", "e0"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ok, _ := store.Contains(ctx, "ecash:a", "e1")
	if !ok {
		t.Error("expected e1 to be a favorite")
	}
	ok, _ = store.Contains(ctx, "ecash:b", "e1")
	if ok {
		t.Error("favorites leaked across owners")
	}

	list, _ := store.List(ctx, "ecash:a")
	if len(list) != 2 || list[0] != "e0" || list[1] != "e1" {
		t.Errorf("unexpected list %v", list)
	}
}
