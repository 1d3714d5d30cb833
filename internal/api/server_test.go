package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepilot/internal/config"
	"sitepilot/internal/conversation"
	"sitepilot/internal/gateways/llm"
	"sitepilot/internal/gateways/platform"
	"sitepilot/internal/handlers"
	"sitepilot/internal/models"
	"sitepilot/internal/orchestrator"
	"sitepilot/internal/services"
	"sitepilot/internal/store"
	"sitepilot/internal/utils"
)

const testSecret = "test-secret"

type stubPlatform struct{}

func (stubPlatform) ListSites(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[{"_id":"site-1"}]`), nil
}
func (stubPlatform) GetSite(_ context.Context, id string) (*platform.Site, error) {
	return &platform.Site{ID: id, Name: "Acme", Raw: json.RawMessage(`{"_id":"` + id + `"}`)}, nil
}
func (stubPlatform) ListPages(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`[{"title":"Home"}]`), nil
}
func (stubPlatform) GetPage(_ context.Context, id string) (json.RawMessage, error) {
	return json.RawMessage(`{"_id":"` + id + `"}`), nil
}
func (stubPlatform) UpdatePage(context.Context, string, map[string]any) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}
func (stubPlatform) ListCollections(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}
func (stubPlatform) ListItems(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}
func (stubPlatform) CreateItem(context.Context, string, map[string]any) (json.RawMessage, error) {
	return json.RawMessage(`{"_id":"item-1"}`), nil
}
func (stubPlatform) UpdateItem(context.Context, string, string, map[string]any) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}
func (stubPlatform) PublishSite(context.Context, string, []string) (json.RawMessage, error) {
	return json.RawMessage(`{"queued":true}`), nil
}

type stubLLM struct{}

func (stubLLM) Complete(_ context.Context, prompt string, _ llm.Options) (string, error) {
	if strings.Contains(prompt, "Analyze this project summary") {
		return `{"projectName":"Acme","targetAudience":"SMBs","keyMessages":["fast"]}`, nil
	}
	return "assistant reply", nil
}

type testEnv struct {
	server *Server
	repo   *store.MemoryRepository
	cfg    *config.Config
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config, *Deps)) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Host: "localhost", Port: 0, PublicURL: "http://localhost", CORSOrigins: []string{"*"}},
		JWT:       config.JWTConfig{Secret: testSecret, Expiration: time.Hour},
		RateLimit: config.RateLimitConfig{Requests: 1000, Window: time.Minute},
	}

	repo := store.NewMemoryRepository()
	storage, err := services.NewLocalStorage(t.TempDir(), cfg.Server.PublicURL)
	require.NoError(t, err)
	handlers.RegisterStorageHandler(storage)

	opts := llm.Options{Model: "test", MaxTokens: 100, Temperature: 0.5}
	orch := orchestrator.New(orchestrator.Deps{
		Store:        repo,
		Platform:     stubPlatform{},
		LLM:          stubLLM{},
		Conversation: conversation.NewService(repo, stubPlatform{}, stubLLM{}, opts),
		Summaries:    storage,
		Options:      opts,
	})

	deps := Deps{Config: cfg, Users: repo, Orchestrator: orch}
	for _, m := range mutate {
		m(cfg, &deps)
	}
	return &testEnv{server: NewServer(deps), repo: repo, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

// login registers a user with role and returns a token for clientType.
func (e *testEnv) login(t *testing.T, email, role, clientType string) string {
	t.Helper()
	rec, _ := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Test", "email": email, "password": "secret123", "role": role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, body := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "secret123", "clientType": clientType,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return body["token"].(string)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "Ann@Example.com", "editor", "desktop")

	rec, body := env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "desktop", body["clientType"])
	assert.ElementsMatch(t, []interface{}{"ai-assist", "publish", "read", "write"}, body["permissions"])

	user := body["user"].(map[string]interface{})
	assert.Equal(t, "ann@example.com", user["email"])
	assert.NotContains(t, user, "password")
}

func TestRegisterRejections(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "ann@example.com", "", "web")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"duplicate", map[string]string{"name": "A", "email": "ann@example.com", "password": "secret123"}},
		{"admin", map[string]string{"name": "A", "email": "root@example.com", "password": "secret123", "role": "admin"}},
		{"unknown role", map[string]string{"name": "A", "email": "x@example.com", "password": "secret123", "role": "owner"}},
		{"short password", map[string]string{"name": "A", "email": "y@example.com", "password": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "ann@example.com", "viewer", "web")

	for _, creds := range []map[string]string{
		{"email": "ann@example.com", "password": "wrong-pass"},
		{"email": "nobody@example.com", "password": "secret123"},
	} {
		rec, body := env.do(t, http.MethodPost, "/api/v1/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid credentials", body["error"])
	}
}

func TestAuthenticationSources(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "ann@example.com", "editor", "web")

	rec, body := env.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects?token="+token, nil)
	rec, _ = env.serve(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	rec, _ = env.serve(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	ghost, err := utils.GenerateJWT(testSecret, models.User{Base: models.Base{ID: "missing"}, Role: models.UserRoleAdmin}, "web", time.Hour)
	require.NoError(t, err)
	rec, body = env.do(t, http.MethodGet, "/api/v1/projects", ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User not found", body["error"])

	rec, _ = env.do(t, http.MethodGet, "/api/v1/projects", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func uploadRequest(t *testing.T, token, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(handlers.SummaryField, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestProjectLifecycle(t *testing.T) {
	env := newTestEnv(t)
	owner := env.login(t, "owner@example.com", "editor", "desktop")
	other := env.login(t, "other@example.com", "editor", "desktop")

	rec, body := env.serve(t, uploadRequest(t, owner, "brief.txt", "Acme sells anvils to small businesses."))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fileID := body["fileId"].(string)
	assert.NotEmpty(t, body["fileInfo"])

	rec, body = env.do(t, http.MethodPost, "/api/v1/projects/analyze", owner, map[string]string{"fileId": fileID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	analysis := body["analysis"].(map[string]interface{})
	assert.Equal(t, "Acme", analysis["projectName"])

	rec, body = env.do(t, http.MethodPost, "/api/v1/projects", owner, map[string]interface{}{
		"name": "Acme site", "siteId": "site-1", "analysis": analysis,
		"fileInfo": map[string]interface{}{"fileId": fileID, "originalName": "brief.txt"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	projectID := body["project"].(map[string]interface{})["id"].(string)

	rec, body = env.do(t, http.MethodGet, "/api/v1/projects", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["projects"], 1)

	rec, body = env.do(t, http.MethodGet, "/api/v1/projects/"+projectID, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied", body["error"])

	name := "Renamed"
	rec, body = env.do(t, http.MethodPut, "/api/v1/projects/"+projectID, owner, map[string]*string{"name": &name})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", body["project"].(map[string]interface{})["name"])

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/projects/"+projectID, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = env.do(t, http.MethodDelete, "/api/v1/projects/"+projectID, owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/v1/projects/"+projectID, owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "owner@example.com", "editor", "web")

	rec, body := env.serve(t, uploadRequest(t, token, "brief.exe", "MZ"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported file type", body["error"])
}

func TestUploadRejectsMarkup(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "owner@example.com", "editor", "web")

	for _, name := range []string{"brief.html", "brief.htm", "brief.svg"} {
		rec, body := env.serve(t, uploadRequest(t, token, name, "<script>alert(1)</script>"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Equal(t, "Unsupported file type", body["error"], name)
	}
}

func TestUploadsServedAsAttachments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brief.txt"), []byte("<script>alert(1)</script>"), 0o600))
	env := newTestEnv(t, func(_ *config.Config, d *Deps) { d.UploadDir = dir })
	token := env.login(t, "owner@example.com", "editor", "web")

	rec, _ := env.do(t, http.MethodGet, "/uploads/brief.txt", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/uploads/brief.txt", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "attachment", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "sandbox")
}

func TestValidationErrorsListFields(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "owner@example.com", "editor", "web")

	rec, body := env.do(t, http.MethodPost, "/api/v1/projects", token, map[string]string{"name": "No site"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := body["error"].(map[string]interface{})
	assert.Contains(t, fields, "siteId")
}

func TestDiscussionFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "owner@example.com", "editor", "desktop")

	_, body := env.do(t, http.MethodPost, "/api/v1/projects", token, map[string]string{"name": "Acme", "siteId": "site-1"})
	projectID := body["project"].(map[string]interface{})["id"].(string)

	rec, body := env.do(t, http.MethodPost, "/api/v1/discussions", token, map[string]string{"projectId": projectID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	discussion := body["discussion"].(map[string]interface{})
	assert.Equal(t, "New Discussion", discussion["title"])
	id := discussion["id"].(string)

	rec, body = env.do(t, http.MethodPost, "/api/v1/discussions/"+id+"/message", token, map[string]string{"message": "Hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "assistant reply", body["assistantMessage"].(map[string]interface{})["content"])

	rec, body = env.do(t, http.MethodPost, "/api/v1/discussions/"+id+"/apply-edit", token, map[string]string{"pageId": "page-1", "content": "<h1>New</h1>"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "<h1>New</h1>", body["change"].(map[string]interface{})["content"])

	rec, body = env.do(t, http.MethodGet, "/api/v1/discussions/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := body["discussion"].(map[string]interface{})["messages"].([]interface{})
	assert.Len(t, messages, 5)

	rec, body = env.do(t, http.MethodGet, "/api/v1/discussions/project/"+projectID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["discussions"], 1)

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/discussions/"+id, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAssistantCapabilities(t *testing.T) {
	env := newTestEnv(t)
	web := env.login(t, "web@example.com", "editor", "web")
	api := env.login(t, "api@example.com", "editor", "api")
	viewer := env.login(t, "viewer@example.com", "viewer", "web")

	batch := map[string]interface{}{
		"items":          []map[string]string{{"id": "1", "name": "Anvil"}},
		"promptTemplate": "Describe {name}",
	}

	rec, _ := env.do(t, http.MethodPost, "/api/v1/ai-assistant/batch-process", web, batch)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/api/v1/ai-assistant/batch-process", api, batch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, body["results"], 1)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/ai-assistant/generate", viewer, map[string]string{"prompt": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/v1/ai-assistant/generate", web, map[string]string{"prompt": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "assistant reply", body["content"])
}

func TestCMSRoutes(t *testing.T) {
	env := newTestEnv(t)
	desktop := env.login(t, "d@example.com", "editor", "desktop")
	mobile := env.login(t, "m@example.com", "viewer", "mobile")

	rec, body := env.do(t, http.MethodGet, "/api/v1/cms/sites", mobile, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["sites"], 1)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/cms/collections/c1/items", mobile, map[string]interface{}{"fields": map[string]string{"name": "x"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/cms/collections/c1/items", desktop, map[string]interface{}{"fields": map[string]string{"name": "x"}})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/v1/cms/sites/site-1/publish", desktop, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["result"].(map[string]interface{})["queued"])
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, d *Deps) {
		d.Checks = map[string]HealthCheck{"store": func(context.Context) error { return nil }}
	})
	rec, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sitepilot_realtime_connections")

	down := newTestEnv(t, func(_ *config.Config, d *Deps) {
		d.Checks = map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("connection refused") }}
	})
	rec, body = down.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestAPIRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config, _ *Deps) {
		c.RateLimit = config.RateLimitConfig{Requests: 2, Window: time.Hour}
	})

	for i := 0; i < 2; i++ {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/projects", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, body := env.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminReconcile(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, d *Deps) {
		d.Reconciler = d.Users.(*store.MemoryRepository)
	})
	_, err := models.EnsureAdmin(context.Background(), env.repo, models.AdminSeed{Email: "root@example.com", Password: "rootpass", Name: "Root"})
	require.NoError(t, err)
	env.repo.InsertOrphanDiscussion(models.Discussion{Base: models.Base{ID: "orphan"}, ProjectID: "gone"})

	editor := env.login(t, "ed@example.com", "editor", "desktop")
	rec, _ := env.do(t, http.MethodPost, "/api/v1/admin/reconcile", editor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "root@example.com", "password": "rootpass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	admin := body["token"].(string)

	rec, body = env.do(t, http.MethodPost, "/api/v1/admin/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), body["removed"])
}
