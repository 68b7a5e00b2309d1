package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"ogmissions/internal/config"
	"ogmissions/internal/db"
	"ogmissions/internal/domain"
	"ogmissions/internal/engine"
	"ogmissions/internal/migrate"
)

type testServer struct {
	URL    string
	Engine *engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Timezone = "UTC"
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.SetNow(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })
	ctx := context.Background()
	for id, handle := range map[int64]string{1: "boss", 2: "worker"} {
		if err := e.Repo.UpsertUser(ctx, id, handle, handle, cfg.RankTable().Base()); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	if err := e.Repo.SetAdmin(ctx, 1, true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{AllowLegacyUserHeader: true}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.close)
	return testSrv
}

func asUser(id int64) map[string]string {
	return map[string]string{"X-User-Id": fmt.Sprintf("%d", id)}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestMissionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions", map[string]any{
		"title":        "записать куплет для нового трека",
		"assignee_ids": []int64{2},
		"difficulty":   3,
	}, asUser(1))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Mission
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal mission: %v", err)
	}
	if created.Status != domain.StatusOpen {
		t.Fatalf("status = %s, want OPEN", created.Status)
	}

	transitionURL := fmt.Sprintf("%s/v0/missions/%d/transitions", srv.URL, created.ID)
	for _, step := range []struct {
		body map[string]any
		as   int64
		want string
	}{
		{map[string]any{"event": "accept"}, 2, domain.StatusInProgress},
		{map[string]any{"event": "report", "report": map[string]any{"link": "https://example.com/take1"}}, 2, domain.StatusReview},
		{map[string]any{"event": "approve"}, 1, domain.StatusDone},
	} {
		res, data := doJSON(t, client, http.MethodPost, transitionURL, step.body, asUser(step.as))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%v status %d: %s", step.body["event"], res.StatusCode, string(data))
		}
		var m domain.Mission
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatal(err)
		}
		if m.Status != step.want {
			t.Fatalf("%v: status = %s, want %s", step.body["event"], m.Status, step.want)
		}
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/users/2", nil, asUser(2))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("profile status %d: %s", res.StatusCode, string(data))
	}
	var profile struct {
		User domain.User `json:"user"`
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		t.Fatal(err)
	}
	if profile.User.Karma != 3 {
		t.Fatalf("karma = %d, want 3", profile.User.Karma)
	}
}

func TestTransitionGuardsMapToStatusCodes(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions", map[string]any{
		"title": "свести трек", "assignee_ids": []int64{2}, "difficulty": 4,
	}, asUser(1))
	var m domain.Mission
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	transitionURL := fmt.Sprintf("%s/v0/missions/%d/transitions", srv.URL, m.ID)

	// approve before review: conflict
	res, _ := doJSON(t, client, http.MethodPost, transitionURL, map[string]any{"event": "approve"}, asUser(1))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("early approve status = %d, want 409", res.StatusCode)
	}
	// accept by a stranger: forbidden
	res, _ = doJSON(t, client, http.MethodPost, transitionURL, map[string]any{"event": "accept"}, asUser(1))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger accept status = %d, want 403", res.StatusCode)
	}
	// unknown mission: not found
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions/9999/transitions", map[string]any{"event": "accept"}, asUser(2))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown mission status = %d, want 404", res.StatusCode)
	}
	// unknown event: bad request
	res, _ = doJSON(t, client, http.MethodPost, transitionURL, map[string]any{"event": "explode"}, asUser(2))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown event status = %d, want 400", res.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/missions", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
	// health stays open
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", res.StatusCode)
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/apikeys", map[string]any{
		"user_id": 2, "name": "bot",
	}, asUser(1))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("issue key status %d: %s", res.StatusCode, string(data))
	}
	var issued struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &issued); err != nil {
		t.Fatal(err)
	}
	if issued.Key == "" {
		t.Fatal("plaintext key missing")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": issued.Key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var profile struct {
		User domain.User `json:"user"`
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		t.Fatal(err)
	}
	if profile.User.ID != 2 {
		t.Fatalf("authenticated as %d, want 2", profile.User.ID)
	}

	// non-admins cannot mint keys
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/apikeys", map[string]any{"user_id": 2}, asUser(2))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin issue status = %d, want 403", res.StatusCode)
	}
}

func TestEstimateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/estimate", map[string]any{
		"text": "свести трек", "due_today": true,
	}, asUser(2))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var est struct {
		Category    string `json:"category"`
		Difficulty  int    `json:"difficulty"`
		TotalReward int    `json:"total_reward"`
	}
	if err := json.Unmarshal(data, &est); err != nil {
		t.Fatal(err)
	}
	if est.Category != "mix" || est.Difficulty != 4 || est.TotalReward != 5 {
		t.Fatalf("estimate = %+v, want mix/4/5", est)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/estimate", map[string]any{"text": "ок"}, asUser(2))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("short text status = %d, want 400", res.StatusCode)
	}
}
