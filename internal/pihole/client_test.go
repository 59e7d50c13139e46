package pihole

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePihole struct {
	password   string
	sid        string
	authCalls  int
	expireNext bool
}

func (f *fakePihole) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth", func(w http.ResponseWriter, r *http.Request) {
		f.authCalls++
		var body struct {
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{"valid": false},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"session": map[string]any{"valid": true, "sid": f.sid},
		})
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if f.expireNext {
				f.expireNext = false
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if r.Header.Get("sid") != f.sid {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/api/stats/summary", authed(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"queries": map[string]any{"total": 5000, "blocked": 1200, "percent_blocked": 24.0},
			"gravity": map[string]any{"domains_being_blocked": 150000},
			"clients": map[string]any{"active": 12},
		})
	}))

	mux.HandleFunc("/api/stats/top_domains", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("blocked") == "true" {
			json.NewEncoder(w).Encode(map[string]any{
				"domains": []map[string]any{{"domain": "ads.example.com", "count": 321}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"domains": []map[string]any{{"domain": "github.com", "count": 99}},
		})
	}))

	mux.HandleFunc("/api/dns/blocking", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body struct {
				Blocking bool `json:"blocking"`
				Timer    *int `json:"timer"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"blocking": "enabled"})
	}))

	mux.HandleFunc("/api/domains/deny/exact", authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Domain string `json:"domain"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Domain == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	return mux
}

func newTestClient(t *testing.T, f *fakePihole) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, f.password)
}

func TestStats(t *testing.T) {
	f := &fakePihole{password: "secret", sid: "session-1"}
	c := newTestClient(t, f)

	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.QueriesTotal != 5000 || stats.QueriesBlocked != 1200 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.PercentBlocked != 24.0 || stats.ActiveClients != 12 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestAuthRejected(t *testing.T) {
	f := &fakePihole{password: "secret", sid: "session-1"}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "wrong")
	if _, err := c.Stats(context.Background()); err == nil {
		t.Fatalf("expected auth error")
	}
}

func TestSessionReauth(t *testing.T) {
	f := &fakePihole{password: "secret", sid: "session-1"}
	c := newTestClient(t, f)

	if _, err := c.Stats(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// Force the next authenticated request to come back 401; the client
	// must transparently re-authenticate and retry.
	f.expireNext = true
	if _, err := c.Stats(context.Background()); err != nil {
		t.Fatalf("call after expiry: %v", err)
	}
	if f.authCalls != 2 {
		t.Fatalf("expected a re-auth, got %d auth calls", f.authCalls)
	}
}

func TestTopDomains(t *testing.T) {
	f := &fakePihole{password: "secret", sid: "session-1"}
	c := newTestClient(t, f)

	blocked, err := c.TopBlocked(context.Background(), 10)
	if err != nil {
		t.Fatalf("top blocked: %v", err)
	}
	if len(blocked) != 1 || blocked[0].Domain != "ads.example.com" {
		t.Fatalf("unexpected blocked list: %+v", blocked)
	}

	permitted, err := c.TopPermitted(context.Background(), 10)
	if err != nil {
		t.Fatalf("top permitted: %v", err)
	}
	if len(permitted) != 1 || permitted[0].Domain != "github.com" {
		t.Fatalf("unexpected permitted list: %+v", permitted)
	}
}

func TestBlockingControl(t *testing.T) {
	f := &fakePihole{password: "secret", sid: "session-1"}
	c := newTestClient(t, f)

	enabled, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !enabled {
		t.Fatalf("expected blocking enabled")
	}
	if err := c.Disable(context.Background(), 300); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := c.Enable(context.Background()); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := c.BlockDomain(context.Background(), "tracker.example.com"); err != nil {
		t.Fatalf("block domain: %v", err)
	}
}
