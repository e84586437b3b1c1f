package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"omnishop/internal/config"
	"omnishop/internal/http/handlers"
	"omnishop/internal/repos"
)

type testApp struct {
	app  *fiber.App
	deps *handlers.Deps
	db   *sqlx.DB
}

func newTestApp(t *testing.T, tweak func(*config.Config)) *testApp {
	t.Helper()
	cfg := config.Default()
	cfg.DBDSN = ":memory:"
	cfg.AccessLog = false
	cfg.SessionIdle = 0
	cfg.RateMax = 1000
	cfg.LoginRateMax = 100
	if tweak != nil {
		tweak(&cfg)
	}
	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	deps := handlers.NewDeps(db, cfg)
	t.Cleanup(func() {
		deps.Close()
		_ = db.Close()
	})
	return &testApp{app: handlers.NewApp(cfg, deps), deps: deps, db: db}
}

// client replays the sid cookie the server hands out, like a browser would.
type client struct {
	t   *testing.T
	app *fiber.App
	sid string
}

func (ta *testApp) client(t *testing.T) *client { return &client{t: t, app: ta.app} }

func (cl *client) send(req *http.Request) *http.Response {
	cl.t.Helper()
	if cl.sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: cl.sid})
	}
	resp, err := cl.app.Test(req, -1)
	if err != nil {
		cl.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "sid" && c.Value != "" {
			cl.sid = c.Value
		}
	}
	return resp
}

func (cl *client) json(method, path, body string) *http.Response {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	return cl.send(req)
}

func (cl *client) form(path, body string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	return cl.send(req)
}

type cartView struct {
	Items []struct {
		ID        string `json:"id"`
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
		Variant   struct {
			ID    string  `json:"id"`
			Price float64 `json:"price"`
		} `json:"variant"`
	} `json:"items"`
	ItemCount  int     `json:"itemCount"`
	Subtotal   float64 `json:"subtotal"`
	SyncStatus string  `json:"syncStatus"`
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v", v, err)
	}
	return v
}

func wantStatus(t *testing.T, resp *http.Response, code int) {
	t.Helper()
	if resp.StatusCode != code {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d; body=%s", resp.StatusCode, code, body)
	}
}
