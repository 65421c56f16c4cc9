package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/pitchloop/sales-coach-backend/internal/domain"
)

func TestCreateCompany_DuplicateName(t *testing.T) {
	db := newRepoDB(t, &domain.Company{})

	first, err := CreateCompany(context.Background(), db, &domain.Company{Name: "Acme Corp"})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	if first.ID == "" {
		t.Fatal("company id not generated")
	}

	if _, err := CreateCompany(context.Background(), db, &domain.Company{Name: "Acme Corp"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v; want ErrDuplicate", err)
	}
}

func TestFindCompanyByName(t *testing.T) {
	db := newRepoDB(t, &domain.Company{})
	seeded, err := CreateCompany(context.Background(), db, &domain.Company{Name: "Acme Corp"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := FindCompanyByName(context.Background(), db, "Acme Corp")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != seeded.ID {
		t.Fatalf("id = %q; want %q", got.ID, seeded.ID)
	}

	// Exact match only; canonicalization happens in the service layer.
	if _, err := FindCompanyByName(context.Background(), db, "acme corp"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound for different casing", err)
	}
}

func TestGetCompany(t *testing.T) {
	db := newRepoDB(t, &domain.Company{})
	seeded, err := CreateCompany(context.Background(), db, &domain.Company{Name: "Acme Corp"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := GetCompany(context.Background(), db, seeded.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Acme Corp" {
		t.Fatalf("name = %q", got.Name)
	}

	if _, err := GetCompany(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}
