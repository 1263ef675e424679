package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/direct-line/internal/api/http/handlers"
	"github.com/spec-kit/direct-line/internal/auth"
	"github.com/spec-kit/direct-line/internal/config"
	"github.com/spec-kit/direct-line/internal/observability"
	"github.com/spec-kit/direct-line/internal/repository"
	"github.com/spec-kit/direct-line/internal/service"
)

type testServer struct {
	app   *fiber.App
	clock time.Time
}

func newTestServer(t *testing.T, requireStaff bool) *testServer {
	t.Helper()
	ts := &testServer{clock: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()

	staffRepo := repository.NewMemoryStaffRepository()
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 10,
		BcryptCost:            4,
		AdminEmail:            "admin@city.gov",
		AdminPassword:         "correct-horse",
	}}
	authService := service.NewAuthService(cfg, service.AuthDependencies{StaffRepo: staffRepo})
	if _, err := authService.EnsureBootstrapAdmin(context.Background(), cfg.Auth); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repository.NewMemoryTicketRepository(),
		HistoryRepo: repository.NewMemoryTicketHistoryRepository(),
		Logger:      logger,
		Clock:       func() time.Time { return ts.clock },
	})

	metrics := observability.NewMetrics()
	ts.app = NewApp(ServerConfig{
		AppName: "direct-line-test",
		Routes: RouteConfig{
			Health:         handlers.NewHealthHandler("direct-line", "test", nil, metrics),
			Tickets:        handlers.NewTicketsHandler(ticketService),
			Staff:          handlers.NewStaffHandler(authService),
			AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), staffRepo),
			RequireStaff:   requireStaff,
		},
	}, logger, metrics)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return ts.send(t, req)
}

func (ts *testServer) send(t *testing.T, req *nethttp.Request) (int, []byte) {
	t.Helper()
	resp, err := ts.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

type ticketJSON struct {
	ID           string  `json:"id"`
	Category     string  `json:"category"`
	Status       string  `json:"status"`
	ReportedBy   string  `json:"reportedBy"`
	DispatchedAt *string `json:"dispatchedAt"`
	ResolvedAt   *string `json:"resolvedAt"`
}

type errorJSON struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestRootBanner(t *testing.T) {
	ts := newTestServer(t, false)
	status, body := ts.do(t, fiber.MethodGet, "/api/", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	got := decode[map[string]string](t, body)
	if got["message"] != "The Direct Line API" || got["status"] != "operational" {
		t.Fatalf("unexpected banner %v", got)
	}
}

func TestCreateAndListTickets(t *testing.T) {
	ts := newTestServer(t, false)

	status, body := ts.do(t, fiber.MethodPost, "/api/tickets", map[string]string{
		"description": "Large pothole near the cafe",
		"location":    "Tea Lobby Cafe",
	}, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	first := decode[ticketJSON](t, body)
	if first.ID != "TICK-001" || first.Category != "Roads & Infrastructure" || first.Status != "Pending" || first.ReportedBy != "Anonymous" {
		t.Fatalf("unexpected ticket %+v", first)
	}
	if first.DispatchedAt != nil || first.ResolvedAt != nil {
		t.Fatalf("expected null timestamps, got %+v", first)
	}

	ts.clock = ts.clock.Add(time.Minute)
	status, body = ts.do(t, fiber.MethodPost, "/api/tickets", map[string]string{
		"description": "no idea what this is",
		"location":    "Somewhere",
		"reportedBy":  "Asha",
	}, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}

	status, body = ts.do(t, fiber.MethodGet, "/api/tickets", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	list := decode[[]ticketJSON](t, body)
	if len(list) != 2 || list[0].ID != "TICK-002" || list[0].Category != "Other" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	status, body = ts.do(t, fiber.MethodGet, "/api/tickets?category=Other", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if filtered := decode[[]ticketJSON](t, body); len(filtered) != 1 || filtered[0].ID != "TICK-002" {
		t.Fatalf("unexpected filtered list %+v", filtered)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	ts := newTestServer(t, false)
	status, body := ts.do(t, fiber.MethodPost, "/api/tickets", map[string]string{"location": "Main St"}, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if got := decode[errorJSON](t, body); got.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("unexpected error %+v", got)
	}
}

func TestListTicketsRejectsUnknownFilters(t *testing.T) {
	ts := newTestServer(t, false)
	for _, path := range []string{"/api/tickets?status=Closed", "/api/tickets?category=Parks"} {
		status, _ := ts.do(t, fiber.MethodGet, path, nil, nil)
		if status != fiber.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, status)
		}
	}
}

func TestStatusWorkflowOverHTTP(t *testing.T) {
	ts := newTestServer(t, false)
	status, body := ts.do(t, fiber.MethodPost, "/api/tickets", map[string]string{
		"description": "water leak on the corner",
		"location":    "Pipe Rd",
	}, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d %s", status, body)
	}

	status, body = ts.do(t, fiber.MethodGet, "/api/metrics", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("metrics: %d", status)
	}
	metrics := decode[map[string]any](t, body)
	if metrics["avgResolutionTimeHours"] != "N/A" || metrics["activeReports"] != float64(1) {
		t.Fatalf("unexpected metrics before resolution %v", metrics)
	}

	status, body = ts.do(t, fiber.MethodPatch, "/api/tickets/TICK-001/status", map[string]string{"status": "Resolved"}, nil)
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 for skip, got %d", status)
	}
	if got := decode[errorJSON](t, body); got.Error.Code != "INVALID_TRANSITION" {
		t.Fatalf("unexpected error %+v", got)
	}

	ts.clock = ts.clock.Add(time.Hour)
	status, body = ts.do(t, fiber.MethodPatch, "/api/tickets/TICK-001/status", map[string]string{"status": "Dispatched"}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("dispatch: %d %s", status, body)
	}
	if got := decode[ticketJSON](t, body); got.Status != "Dispatched" || got.DispatchedAt == nil {
		t.Fatalf("unexpected dispatched ticket %+v", got)
	}

	status, _ = ts.do(t, fiber.MethodPatch, "/api/tickets/TICK-001/status", map[string]string{"status": "Dispatched"}, nil)
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 for repeat, got %d", status)
	}

	ts.clock = ts.clock.Add(2 * time.Hour)
	status, _ = ts.do(t, fiber.MethodPatch, "/api/tickets/TICK-001/status", map[string]string{"status": "Resolved"}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("resolve: %d", status)
	}

	_, body = ts.do(t, fiber.MethodGet, "/api/metrics", nil, nil)
	metrics = decode[map[string]any](t, body)
	if metrics["avgResolutionTimeHours"] != float64(3) || metrics["activeReports"] != float64(0) {
		t.Fatalf("unexpected metrics after resolution %v", metrics)
	}

	status, body = ts.do(t, fiber.MethodGet, "/api/tickets/TICK-001/history", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("history: %d", status)
	}
	history := decode[[]map[string]any](t, body)
	if len(history) != 2 || history[0]["newStatus"] != "Dispatched" || history[1]["newStatus"] != "Resolved" {
		t.Fatalf("unexpected history %v", history)
	}
}

func TestStatusUpdateErrors(t *testing.T) {
	ts := newTestServer(t, false)
	status, body := ts.do(t, fiber.MethodPatch, "/api/tickets/TICK-404/status", map[string]string{"status": "Dispatched"}, nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if got := decode[errorJSON](t, body); got.Error.Code != "NOT_FOUND" {
		t.Fatalf("unexpected error %+v", got)
	}

	status, _ = ts.do(t, fiber.MethodPatch, "/api/tickets/TICK-001/status", map[string]string{"status": "Closed"}, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", status)
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, false)
	status, body := ts.do(t, fiber.MethodGet, "/api/nope", nil, nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if got := decode[errorJSON](t, body); got.Error.Code != "NOT_FOUND" {
		t.Fatalf("unexpected error %+v", got)
	}
}

func TestCategoriesListed(t *testing.T) {
	ts := newTestServer(t, false)
	_, body := ts.do(t, fiber.MethodGet, "/api/categories", nil, nil)
	categories := decode[[]map[string]any](t, body)
	if len(categories) != 6 || categories[len(categories)-1]["name"] != "Other" {
		t.Fatalf("unexpected categories %v", categories)
	}
}

func TestMultipartImageRejectedWithoutObjectStorage(t *testing.T) {
	ts := newTestServer(t, false)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("description", "garbage near the park")
	_ = writer.WriteField("location", "Park Lane")
	part, err := writer.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG"))
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodPost, "/api/tickets", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	status, body := ts.send(t, req)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", status, body)
	}
}

func TestMultipartWithoutImageCreatesTicket(t *testing.T) {
	ts := newTestServer(t, false)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("description", "garbage near the park")
	_ = writer.WriteField("location", "Park Lane")
	_ = writer.WriteField("reportedBy", "Ravi")
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodPost, "/api/tickets", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	status, body := ts.send(t, req)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	if got := decode[ticketJSON](t, body); got.Category != "Sanitation" || got.ReportedBy != "Ravi" {
		t.Fatalf("unexpected ticket %+v", got)
	}
}

func TestStatusUpdateRequiresStaffWhenEnabled(t *testing.T) {
	ts := newTestServer(t, true)
	status, _ := ts.do(t, fiber.MethodPost, "/api/tickets", map[string]string{
		"description": "power lines down",
		"location":    "Block C",
	}, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d", status)
	}

	status, _ = ts.do(t, fiber.MethodPatch, "/api/tickets/TICK-001/status", map[string]string{"status": "Dispatched"}, nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	status, body := ts.do(t, fiber.MethodPost, "/auth/staff/login", map[string]string{
		"email":    "admin@city.gov",
		"password": "correct-horse",
	}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("login: %d %s", status, body)
	}
	login := decode[struct {
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}](t, body)
	if login.Auth.Token == "" {
		t.Fatalf("expected token in %s", body)
	}

	headers := map[string]string{"Authorization": "Bearer " + login.Auth.Token}
	status, body = ts.do(t, fiber.MethodPatch, "/api/tickets/TICK-001/status", map[string]string{"status": "Dispatched"}, headers)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", status, body)
	}

	_, body = ts.do(t, fiber.MethodGet, "/api/tickets/TICK-001/history", nil, nil)
	history := decode[[]map[string]any](t, body)
	if len(history) != 1 || history[0]["changedBy"] == nil {
		t.Fatalf("expected attributed history entry, got %v", history)
	}
}

func TestStaffLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t, false)
	status, _ := ts.do(t, fiber.MethodPost, "/auth/staff/login", map[string]string{
		"email":    "admin@city.gov",
		"password": "wrong-password",
	}, nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, false)
	if status, _ := ts.do(t, fiber.MethodGet, "/health/live", nil, nil); status != fiber.StatusOK {
		t.Fatalf("live: %d", status)
	}
	status, body := ts.do(t, fiber.MethodGet, "/health/ready", nil, nil)
	if status != fiber.StatusOK || !strings.Contains(string(body), "ready") {
		t.Fatalf("ready: %d %s", status, body)
	}
	_, body = ts.do(t, fiber.MethodGet, "/health/metrics", nil, nil)
	if !strings.Contains(string(body), "/health/live") {
		t.Fatalf("expected live probe in request metrics, got %s", body)
	}
}
