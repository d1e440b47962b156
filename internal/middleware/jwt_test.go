package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	return signed
}

func newProtectedApp() (*fiber.App, *map[string]any) {
	captured := map[string]any{}
	app := fiber.New()
	app.Get("/protected", JWTProtected(testSecret), func(c *fiber.Ctx) error {
		captured["email"] = c.Locals("staff_email")
		captured["name"] = c.Locals("staff_name")
		captured["keys"] = c.Locals("profile_keys")
		return c.SendStatus(fiber.StatusOK)
	})

	return app, &captured
}

func TestJWTProtectedExtractsIdentity(t *testing.T) {
	app, captured := newProtectedApp()

	token := signToken(t, jwt.MapClaims{
		"email":        "staff@school.org",
		"name":         "Ms Smith",
		"profile_keys": []any{"profile_5", "profile_7"},
		"exp":          time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, "staff@school.org", (*captured)["email"])
	require.Equal(t, "Ms Smith", (*captured)["name"])
	require.Equal(t, []string{"profile_5", "profile_7"}, (*captured)["keys"])
}

func TestJWTProtectedAcceptsCSVProfileKeys(t *testing.T) {
	app, captured := newProtectedApp()

	token := signToken(t, jwt.MapClaims{
		"sub":          "staff@school.org",
		"profile_keys": "profile_5, profile_7",
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"profile_5", "profile_7"}, (*captured)["keys"])
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	app, _ := newProtectedApp()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestJWTProtectedRejectsWrongSecret(t *testing.T) {
	app, _ := newProtectedApp()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "staff@school.org"})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRequiresEmail(t *testing.T) {
	app, _ := newProtectedApp()

	token := signToken(t, jwt.MapClaims{"sub": "not-an-email"})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
