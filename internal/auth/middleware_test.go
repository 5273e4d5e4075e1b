package auth_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/chatops-kit/triage-service/internal/api/http"
	"github.com/chatops-kit/triage-service/internal/auth"
)

// protectedApp wires the production middleware stack so domain errors map to
// their HTTP statuses the same way they do in the running service.
func protectedApp(t *testing.T, tm *auth.TokenManager, required ...auth.Role) *fiber.App {
	t.Helper()
	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), nil, 0)

	group := app.Group("/guarded", auth.NewAuthMiddleware(tm).Handle)
	handlers := []fiber.Handler{}
	if len(required) > 0 {
		handlers = append(handlers, auth.RequireRole(required...))
	}
	handlers = append(handlers, func(c *fiber.Ctx) error {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok {
			t.Fatal("principal missing inside guarded handler")
		}
		return c.JSON(fiber.Map{"service": principal.ServiceName})
	})
	group.Get("/resource", handlers...)
	return app
}

func request(t *testing.T, app *fiber.App, token string) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/guarded/resource", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestAuthMiddleware_RejectsMissingAndBadTokens(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 30)
	app := protectedApp(t, tm)

	if status := request(t, app, ""); status != fiber.StatusUnauthorized {
		t.Fatalf("no token: status = %d; want 401", status)
	}
	if status := request(t, app, "garbage"); status != fiber.StatusUnauthorized {
		t.Fatalf("bad token: status = %d; want 401", status)
	}
}

func TestAuthMiddleware_AcceptsValidToken(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 30)
	app := protectedApp(t, tm)

	token, _, err := tm.GenerateToken("stats-exporter", auth.RoleReader)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if status := request(t, app, token); status != fiber.StatusOK {
		t.Fatalf("status = %d; want 200", status)
	}
}

func TestRequireRole_OperatorSatisfiesReader(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 30)
	app := protectedApp(t, tm, auth.RoleReader)

	operator, _, err := tm.GenerateToken("ops-console", auth.RoleOperator)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if status := request(t, app, operator); status != fiber.StatusOK {
		t.Fatalf("operator on reader route: status = %d; want 200", status)
	}
}

func TestRequireRole_ReaderCannotMutate(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 30)
	app := protectedApp(t, tm, auth.RoleOperator)

	reader, _, err := tm.GenerateToken("stats-exporter", auth.RoleReader)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if status := request(t, app, reader); status != fiber.StatusForbidden {
		t.Fatalf("reader on operator route: status = %d; want 403", status)
	}
}
