package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

func TestProductRepository_PostgresCrudAndSearch(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	widget := domain.Product{Code: "WID-100", Name: "Widget", UnitPriceMinor: 1500}
	gadget := domain.Product{Code: "GAD-200", Name: "Gadget", UnitPriceMinor: 2500}

	if err := repo.Create(widget); err != nil {
		t.Fatalf("create widget: %v", err)
	}
	if err := repo.Create(gadget); err != nil {
		t.Fatalf("create gadget: %v", err)
	}

	if err := repo.Create(widget); !errors.Is(err, domain.ErrProductCodeTaken) {
		t.Fatalf("expected ErrProductCodeTaken on duplicate code, got %v", err)
	}

	listed, err := repo.List()
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(listed) != 2 || listed[0].Code != "GAD-200" || listed[1].Code != "WID-100" {
		t.Fatalf("list must be sorted by code: %+v", listed)
	}

	got, err := repo.Get("WID-100")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got == nil || got.Name != "Widget" || got.Version != 1 {
		t.Fatalf("unexpected product payload: %+v", got)
	}

	found, err := repo.Search("wid")
	if err != nil {
		t.Fatalf("search products: %v", err)
	}
	if len(found) != 1 || found[0].Code != "WID-100" {
		t.Fatalf("case-insensitive search by code failed: %+v", found)
	}

	found, err = repo.Search("GADG")
	if err != nil {
		t.Fatalf("search by name: %v", err)
	}
	if len(found) != 1 || found[0].Code != "GAD-200" {
		t.Fatalf("case-insensitive search by name failed: %+v", found)
	}

	got.UnitPriceMinor = 1800
	if err := repo.Update(*got); err != nil {
		t.Fatalf("update product: %v", err)
	}
	updated, err := repo.Get("WID-100")
	if err != nil {
		t.Fatalf("get updated product: %v", err)
	}
	if updated.UnitPriceMinor != 1800 || updated.Version != 2 {
		t.Fatalf("unexpected product after update: %+v", updated)
	}

	stale := *got
	if err := repo.Update(stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on stale update, got %v", err)
	}

	if err := repo.Delete(*updated); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	gone, err := repo.Get("WID-100")
	if err != nil || gone != nil {
		t.Fatalf("deleted product must resolve to (nil, nil), got %+v, %v", gone, err)
	}
}

func TestProductRepository_PostgresSearchLimit(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	for i := 0; i < productSearchLimit+3; i++ {
		p := domain.Product{
			Code: fmt.Sprintf("BULK-%03d", i),
			Name: "Bulk item",
		}
		if err := repo.Create(p); err != nil {
			t.Fatalf("create bulk product %d: %v", i, err)
		}
	}

	found, err := repo.Search("BULK")
	if err != nil {
		t.Fatalf("search bulk products: %v", err)
	}
	if len(found) != productSearchLimit {
		t.Fatalf("search must cap results at %d, got %d", productSearchLimit, len(found))
	}
	if found[0].Code != "BULK-000" {
		t.Fatalf("search results must be ordered by code: %+v", found[0])
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}
