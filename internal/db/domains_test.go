package db

import (
	"context"
	"testing"

	"github.com/sisilabsai/thesignal/internal/errors"
)

func TestDomains_AddListRemove(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, t.TempDir())

	domains, err := ListDomains(ctx, db)
	if err != nil {
		t.Fatalf("ListDomains failed: %v", err)
	}
	if domains == nil || len(domains) != 0 {
		t.Errorf("ListDomains() = %v, want empty non-nil", domains)
	}

	for _, d := range []string{"news.example", "blog.example"} {
		added, err := InsertDomain(ctx, db, d)
		if err != nil {
			t.Fatalf("InsertDomain(%q) failed: %v", d, err)
		}
		if !added {
			t.Errorf("InsertDomain(%q) = false, want true", d)
		}
	}
	added, err := InsertDomain(ctx, db, "news.example")
	if err != nil {
		t.Fatalf("InsertDomain failed: %v", err)
	}
	if added {
		t.Error("second InsertDomain should report false")
	}

	domains, err = ListDomains(ctx, db)
	if err != nil {
		t.Fatalf("ListDomains failed: %v", err)
	}
	if len(domains) != 2 || domains[0] != "blog.example" || domains[1] != "news.example" {
		t.Errorf("ListDomains() = %v, want [blog.example news.example]", domains)
	}

	removed, err := DeleteDomain(ctx, db, "blog.example")
	if err != nil {
		t.Fatalf("DeleteDomain failed: %v", err)
	}
	if !removed {
		t.Error("DeleteDomain should report true for a present domain")
	}
	removed, err = DeleteDomain(ctx, db, "blog.example")
	if err != nil {
		t.Fatalf("DeleteDomain failed: %v", err)
	}
	if removed {
		t.Error("DeleteDomain should report false for a missing domain")
	}
}

func TestDomains_ClosedDatabase(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	db.Close()

	if _, err := ListDomains(context.Background(), db); !errors.Is(err, errors.ErrPersistence) {
		t.Errorf("ListDomains error = %v, want PERSISTENCE", err)
	}
	if _, err := InsertDomain(context.Background(), db, "a.example"); !errors.Is(err, errors.ErrPersistence) {
		t.Errorf("InsertDomain error = %v, want PERSISTENCE", err)
	}
}
