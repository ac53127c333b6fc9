package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/veloshop/veloshop_auth/internal/token"
)

func setupProtectedApp(t *testing.T) (*fiber.App, *token.Service) {
	t.Helper()
	tokens := token.NewService(token.NewMemoryStore(), token.Options{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})

	app := fiber.New()
	app.Get("/protected", RequireAuth(tokens), func(c *fiber.Ctx) error {
		id, err := IdentityFrom(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"user_id": id.UserID})
	})
	return app, tokens
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	app, _ := setupProtectedApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRequireAuthAcceptsLiveSession(t *testing.T) {
	app, tokens := setupProtectedApp(t)

	pair, err := tokens.IssuePair(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.AccessToken)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRequireAuthRejectsRevokedSession(t *testing.T) {
	app, tokens := setupProtectedApp(t)
	ctx := context.Background()

	pair, err := tokens.IssuePair(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := tokens.VerifyAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := tokens.RevokeSession(ctx, id.SessionID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.AccessToken)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
