package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craft-optimizer/internal/config"
	"craft-optimizer/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Two synthesis steps finish the craft; the best spend of the remaining CP
// and durability is Innovation then Basic Touch.
const smallRequest = `{
	"progress": 200,
	"quality": 1000,
	"base_progress": 100,
	"base_quality": 100,
	"cp": 50,
	"durability": 30,
	"job_level": 100,
	"actions": ["BasicSynthesis", "BasicTouch", "Innovation"]
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Workers = 2
	return cfg
}

func post(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) SolveResponse {
	t.Helper()
	var resp SolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestHealthz(t *testing.T) {
	router := New(testConfig(), nil, quietLogger()).Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSolve(t *testing.T) {
	router := New(testConfig(), nil, quietLogger()).Router()
	w := post(t, router, smallRequest)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.EqualValues(t, 150, resp.Quality)
	assert.EqualValues(t, 200, resp.Progress)
	assert.Equal(t, 4, resp.Steps)
	assert.Len(t, resp.Actions, 4)
	assert.Contains(t, resp.Actions, "Innovation")
	assert.True(t, resp.Optimal)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.ID)
	require.Len(t, resp.Macros, 1)
	assert.Contains(t, resp.Macros[0], `/ac "Basic Touch" <wait.3>`)
}

func TestSolveRejectsBadRequests(t *testing.T) {
	router := New(testConfig(), nil, quietLogger()).Router()

	w := post(t, router, `{"progress": 1`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, router, strings.Replace(smallRequest, `"Innovation"`, `"Inovation"`, 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "did you mean")
}

func TestSolveUsesCache(t *testing.T) {
	cache, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()
	router := New(testConfig(), cache, quietLogger()).Router()

	first := decode(t, post(t, router, smallRequest))
	require.True(t, first.Optimal)
	assert.False(t, first.Cached)

	second := decode(t, post(t, router, smallRequest))
	assert.True(t, second.Cached)
	assert.Equal(t, first.Actions, second.Actions)
	assert.Equal(t, first.Quality, second.Quality)
	assert.Equal(t, first.Macros, second.Macros)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	router := New(cfg, nil, quietLogger()).Router()

	assert.Equal(t, http.StatusOK, post(t, router, smallRequest).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(t, router, smallRequest).Code)

	// Health checks are not limited.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics(t *testing.T) {
	router := New(testConfig(), nil, quietLogger()).Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "craftopt_active_solves")
}

func dialStream(t *testing.T) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(New(testConfig(), nil, quietLogger()).Router())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/solve/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStream(t *testing.T) {
	conn := dialStream(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(smallRequest)))

	var events []streamEvent
	for {
		var ev streamEvent
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Type == eventFinish || ev.Type == eventError {
			break
		}
	}
	require.NotEmpty(t, events)
	assert.Equal(t, eventStart, events[0].Type)
	last := events[len(events)-1]
	require.Equal(t, eventFinish, last.Type, last.Error)
	require.NotNil(t, last.Result)
	assert.EqualValues(t, 150, last.Result.Quality)
	assert.True(t, last.Result.Optimal)

	var suggested []uint32
	for _, ev := range events[1 : len(events)-1] {
		if ev.Type == eventSuggestion {
			require.NotNil(t, ev.Solution)
			suggested = append(suggested, ev.Solution.Quality)
		}
	}
	for i := 1; i < len(suggested); i++ {
		assert.Greater(t, suggested[i], suggested[i-1])
	}

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
}

func TestStreamInvalidRequest(t *testing.T) {
	conn := dialStream(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"progress": 0}`)))

	var ev streamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, eventError, ev.Type)
	assert.Contains(t, ev.Error, "invalid request")
}
