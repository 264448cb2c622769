package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tinytrack.org/internal/activity"
	"tinytrack.org/internal/auth"
	"tinytrack.org/internal/notify"
	"tinytrack.org/internal/perm"
	"tinytrack.org/internal/stream"
	"tinytrack.org/internal/tracker"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	mem     *tracker.InMemory
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("TINYTRACK_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	mem := tracker.NewInMemory()
	recorder, err := activity.NewRecorder(activity.NewInMemory())
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	fanout, err := notify.NewFanout(notify.NewInMemory())
	if err != nil {
		t.Fatalf("fanout: %v", err)
	}
	st := stream.New()
	svc, err := tracker.NewService(tracker.Deps{
		Evaluator: tracker.NewEvaluator(nil, tracker.Settings{}),
		Users:     mem,
		Projects:  mem.Projects(),
		Issues:    mem.Issues(),
		Comments:  mem.Comments(),
		Notes:     mem.Notes(),
		Tags:      mem.Tags(),
		Recorder:  recorder,
		Fanout:    fanout,
		Stream:    st,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	api := New(Options{
		Service:        svc,
		Users:          mem,
		Stream:         st,
		Version:        "test",
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		mem:     mem,
		t:       t,
	}
}

func (c *apiClient) addUser(id, role, password string) tracker.User {
	c.t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		c.t.Fatalf("hash password: %v", err)
	}
	u := tracker.User{
		ID:           id,
		Email:        id + "@example.test",
		RoleID:       role,
		PasswordHash: hash,
	}
	if err := c.mem.Create(context.Background(), u); err != nil {
		c.t.Fatalf("add user %s: %v", id, err)
	}
	return u
}

func (c *apiClient) login(id, password string) string {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    id + "@example.test",
		"password": password,
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: status %d", id, resp.StatusCode)
	}
	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	return out.Token
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthIsPublic(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/healthz", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/v1/projects", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	c := newTestAPI(t)
	c.addUser("mgr", perm.RoleManager, "correct-horse")

	resp := c.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "mgr@example.test",
		"password": "wrong",
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestProjectIssueCommentFlow(t *testing.T) {
	c := newTestAPI(t)
	c.addUser("mgr", perm.RoleManager, "correct-horse")
	token := c.login("mgr", "correct-horse")

	resp := c.do(http.MethodPost, "/v1/projects", map[string]any{
		"name": "core",
	}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: status %d", resp.StatusCode)
	}
	p := decodeBody[tracker.Project](t, resp)

	resp = c.do(http.MethodPost, "/v1/projects/"+p.ID+"/issues", map[string]any{
		"title": "login broken",
		"body":  "500 on submit",
	}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create issue: status %d", resp.StatusCode)
	}
	is := decodeBody[tracker.Issue](t, resp)

	resp = c.do(http.MethodPost, "/v1/issues/"+is.ID+"/comments", map[string]any{
		"body": "reproduced on staging",
	}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create comment: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/v1/projects/"+p.ID+"/activity", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activity: status %d", resp.StatusCode)
	}
	feed := decodeBody[struct {
		Items []activity.Activity `json:"items"`
	}](t, resp)
	if len(feed.Items) != 2 {
		t.Fatalf("feed has %d entries, want 2", len(feed.Items))
	}
}

func TestAccessDeniedMapsToForbidden(t *testing.T) {
	c := newTestAPI(t)
	c.addUser("mgr", perm.RoleManager, "correct-horse")
	c.addUser("joe", perm.RoleUser, "hunter22222")
	mgrToken := c.login("mgr", "correct-horse")
	joeToken := c.login("joe", "hunter22222")

	resp := c.do(http.MethodPost, "/v1/projects", map[string]any{
		"name":       "core",
		"member_ids": []string{"joe"},
	}, mgrToken)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: status %d", resp.StatusCode)
	}
	p := decodeBody[tracker.Project](t, resp)

	resp = c.do(http.MethodPost, "/v1/projects/"+p.ID+"/archive", nil, joeToken)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestUnknownProjectMapsToNotFound(t *testing.T) {
	c := newTestAPI(t)
	c.addUser("mgr", perm.RoleManager, "correct-horse")
	token := c.login("mgr", "correct-horse")

	resp := c.do(http.MethodGet, "/v1/projects/missing", nil, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUserAdminRequiresAdministrator(t *testing.T) {
	c := newTestAPI(t)
	c.addUser("root", perm.RoleAdministrator, "sup3rsecret")
	c.addUser("mgr", perm.RoleManager, "correct-horse")
	rootToken := c.login("root", "sup3rsecret")
	mgrToken := c.login("mgr", "correct-horse")

	body := map[string]any{
		"email":    "new@example.test",
		"role_id":  perm.RoleDeveloper,
		"password": "longenough",
	}
	resp := c.do(http.MethodPost, "/v1/users", body, mgrToken)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("manager create user: status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/users", body, rootToken)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin create user: status %d, want 201", resp.StatusCode)
	}
	u := decodeBody[tracker.User](t, resp)
	if u.Email != "new@example.test" {
		t.Fatalf("unexpected user: %+v", u)
	}

	// The new account can log in right away.
	c.login("new", "longenough")
}

func TestDeletedUserTokenRejected(t *testing.T) {
	c := newTestAPI(t)
	c.addUser("root", perm.RoleAdministrator, "sup3rsecret")
	c.addUser("joe", perm.RoleUser, "hunter22222")
	rootToken := c.login("root", "sup3rsecret")
	joeToken := c.login("joe", "hunter22222")

	resp := c.do(http.MethodDelete, "/v1/users/joe", nil, rootToken)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete user: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/v1/projects", nil, joeToken)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	c := newTestAPI(t)
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Request-Id", "trace-42")
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-Id"); got != "trace-42" {
		t.Fatalf("X-Request-Id = %q, want trace-42", got)
	}
}
