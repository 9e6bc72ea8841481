package memory

import (
	"context"
	"errors"
	"testing"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

func TestStockStore_InsertAndGet(t *testing.T) {
	store := NewStockStore()
	ctx := context.Background()

	s := &domain.Stock{Code: "600000", Name: "Pudong Bank", Market: "sh"}
	if err := store.Insert(ctx, s); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByCode(ctx, "600000")
	if err != nil {
		t.Fatalf("GetByCode failed: %v", err)
	}
	if got.Name != "Pudong Bank" {
		t.Errorf("Expected name Pudong Bank, got %s", got.Name)
	}

	// Mutating the input must not affect stored data
	s.Name = "changed"
	got, _ = store.GetByCode(ctx, "600000")
	if got.Name != "Pudong Bank" {
		t.Errorf("Store was mutated through input pointer")
	}
}

func TestStockStore_Errors(t *testing.T) {
	store := NewStockStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.Stock{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if _, err := store.GetByCode(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_ = store.Insert(ctx, &domain.Stock{Code: "A"})
	if err := store.Insert(ctx, &domain.Stock{Code: "A"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestStockStore_GetAllSorted(t *testing.T) {
	store := NewStockStore()
	ctx := context.Background()

	for _, code := range []string{"C", "A", "B"} {
		if err := store.Insert(ctx, &domain.Stock{Code: code}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	for i, want := range []string{"A", "B", "C"} {
		if all[i].Code != want {
			t.Errorf("position %d: expected %s, got %s", i, want, all[i].Code)
		}
	}
}
