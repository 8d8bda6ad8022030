package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
	apperrors "github.com/spec-kit/permit-lifecycle/pkg/util"
)

func newTestApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	mw := NewAuthMiddleware(tm)
	app.Get("/who", mw.Handle, RequireAnyRole(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.Actor + "/" + string(p.Role) + "/" + p.Department)
	})
	app.Post("/supervise", mw.Handle, RequireRole(domain.RoleSupervisor), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func bearer(t *testing.T, tm *TokenManager, actor string, role domain.Role) string {
	t.Helper()
	token, _, err := tm.GenerateToken(actor, role, "licensing")
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		status int
	}{
		{name: "missing header", method: http.MethodGet, path: "/who", status: http.StatusUnauthorized},
		{name: "malformed header", method: http.MethodGet, path: "/who", header: "Token abc", status: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, path: "/who", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "authenticated", method: http.MethodGet, path: "/who", header: bearer(t, tm, "officer1", domain.RoleOfficer), status: http.StatusOK},
		{name: "role denied", method: http.MethodPost, path: "/supervise", header: bearer(t, tm, "officer1", domain.RoleOfficer), status: http.StatusForbidden},
		{name: "role allowed", method: http.MethodPost, path: "/supervise", header: bearer(t, tm, "sup1", domain.RoleSupervisor), status: http.StatusNoContent},
		{name: "admin passes", method: http.MethodPost, path: "/supervise", header: bearer(t, tm, "root", domain.RoleAdmin), status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
