package user

import (
	"context"
	"testing"

	"github.com/veloshop/veloshop_auth/internal/apperr"
)

// Malformed ids resolve to not-found before any query runs, so these run
// without a database.
func TestPostgresRepositoryRejectsMalformedIDs(t *testing.T) {
	repo := NewPostgresRepository(nil)
	ctx := context.Background()

	if err := repo.MarkVerified(ctx, "not-a-uuid"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.UpdatePasswordHash(ctx, "not-a-uuid", "hash"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "not-a-uuid"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
