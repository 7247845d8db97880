package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/icza/mighty"

	"github.com/vikrantjain/mcp-high-availability/internal/config"
	"github.com/vikrantjain/mcp-high-availability/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	return config.Config{
		AppPort:    "0",
		InstanceID: "test-1",
		SessionTTL: time.Minute,
	}
}

// downStore simulates an unreachable backend for the health probe.
type downStore struct {
	store.Store
}

func (downStore) Ping(context.Context) error {
	return errors.New("store: connection refused")
}

func doJSON(t *testing.T, router *gin.Engine, method, path, sid string, body any) (int, map[string]any) {
	t.Helper()

	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set(SessionHeader, sid)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid response body %q: %v", w.Body.String(), err)
		}
	}
	return w.Code, decoded
}

func TestConnectIssuesDistinctSessions(t *testing.T) {
	eq, neq := mighty.EqNeq(t)
	router := NewRouter(testConfig(), store.NewMemoryStore())

	code, first := doJSON(t, router, http.MethodPost, "/mcp/connect", "", nil)
	eq(200, code)
	eq("test-1", first["instance"])
	code, second := doJSON(t, router, http.MethodPost, "/mcp/connect", "", nil)
	eq(200, code)

	neq(first["session_id"], second["session_id"])
	eq(true, first["session_id"] != "")
}

func TestCallRequiresSessionHeader(t *testing.T) {
	eq := mighty.Eq(t)
	router := NewRouter(testConfig(), store.NewMemoryStore())

	code, _ := doJSON(t, router, http.MethodPost, "/mcp/call", "",
		map[string]any{"name": "increment_counter"})
	eq(400, code)
}

func TestMalformedSessionIDIsRejected(t *testing.T) {
	eq := mighty.Eq(t)
	router := NewRouter(testConfig(), store.NewMemoryStore())

	// a ':' in the id would escape its namespace in the shared store
	code, resp := doJSON(t, router, http.MethodPost, "/mcp/call", "a:b",
		map[string]any{"name": "increment_counter"})
	eq(400, code)
	eq("invalid session id", resp["error"])

	code, resp = doJSON(t, router, http.MethodGet, "/sessions/a:b/summary", "", nil)
	eq(400, code)
	eq("invalid session id", resp["error"])
}

func TestAppLifecycle(t *testing.T) {
	eq := mighty.Eq(t)

	application, err := New(testConfig())
	eq(nil, err)
	eq(nil, application.Shutdown(context.Background()))
}

func TestCallDispatchesTools(t *testing.T) {
	eq := mighty.Eq(t)
	router := NewRouter(testConfig(), store.NewMemoryStore())

	code, resp := doJSON(t, router, http.MethodPost, "/mcp/call", "sid-1",
		map[string]any{"name": "increment_counter"})
	eq(200, code)
	result := resp["result"].(map[string]any)
	eq(float64(1), result["counter"])
	eq("test-1", result["instance"])

	code, _ = doJSON(t, router, http.MethodPost, "/mcp/call", "sid-1",
		map[string]any{"name": "no_such_tool"})
	eq(400, code)
}

func TestHealthProbe(t *testing.T) {
	eq := mighty.Eq(t)

	router := NewRouter(testConfig(), store.NewMemoryStore())
	code, resp := doJSON(t, router, http.MethodGet, "/health", "", nil)
	eq(200, code)
	eq("ok", resp["status"])

	// an unreachable store degrades the probe instead of crashing
	router = NewRouter(testConfig(), downStore{Store: store.NewMemoryStore()})
	code, resp = doJSON(t, router, http.MethodGet, "/health", "", nil)
	eq(503, code)
	eq("degraded", resp["status"])
	eq("unreachable", resp["store"])
}

func TestSessionSummary(t *testing.T) {
	eq := mighty.Eq(t)
	router := NewRouter(testConfig(), store.NewMemoryStore())

	for i := 0; i < 2; i++ {
		code, _ := doJSON(t, router, http.MethodPost, "/mcp/call", "sid-9",
			map[string]any{"name": "increment_counter"})
		eq(200, code)
	}
	code, _ := doJSON(t, router, http.MethodPost, "/mcp/call", "sid-9",
		map[string]any{"name": "add_note", "arguments": map[string]any{"note": "hello"}})
	eq(200, code)

	code, resp := doJSON(t, router, http.MethodGet, "/sessions/sid-9/summary", "", nil)
	eq(200, code)
	eq("sid-9", resp["session_id"])
	eq(float64(2), resp["counter"])
	notes := resp["notes"].([]any)
	eq(1, len(notes))
	eq("hello", notes[0])
	eq(2, len(resp["keys"].([]any)))

	// an unknown session summarizes to defaults, not an error
	code, resp = doJSON(t, router, http.MethodGet, "/sessions/nobody/summary", "", nil)
	eq(200, code)
	eq(float64(0), resp["counter"])
	eq(0, len(resp["notes"].([]any)))
}
