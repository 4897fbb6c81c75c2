package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"twee-kit/compiler"
	"twee-kit/formats"
	"twee-kit/watcher"
)

const sampleTwee = `:: StoryTitle
La Grotta

:: StoryData
{"ifid":"D674C58C-DEFA-4F70-B7A2-27742230C0FC","format":"Harlowe","format-version":"3.3.8"}

:: Ingresso [intro]
Entra.

:: Sala
Fine.
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := formats.NewRegistry()
	f := formats.New()
	f.Name = "Harlowe"
	f.Version = "3.3.8"
	f.Source = "<html>{{STORY_DATA}}</html>"
	require.NoError(t, registry.Register(f))

	comp, err := compiler.New(registry, t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	return NewServer(ServerConfig{Compiler: comp, EnableCORS: true, Debug: true, Logger: zap.NewNop()})
}

func do(t *testing.T, s *Server, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func writeStory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storia.twee")
	require.NoError(t, os.WriteFile(path, []byte(sampleTwee), 0644))
	return path
}

// ============================================
// Story endpoints
// ============================================

func TestHealth(t *testing.T) {
	code, body := do(t, newTestServer(t), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, compiler.Version, body["version"])
}

func TestParseStoryInline(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/api/story/parse", gin.H{"source": sampleTwee, "filename": "storia.twee"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["count"])

	st := body["story"].(map[string]any)
	assert.Equal(t, "La Grotta", st["name"])
	assert.Len(t, st["passages"], 3)
}

func TestParseStoryFromFile(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/api/story/parse", gin.H{"file_path": writeStory(t)})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Harlowe", body["story"].(map[string]any)["format"])
}

func TestParseStoryErrors(t *testing.T) {
	s := newTestServer(t)

	code, _ := do(t, s, http.MethodPost, "/api/story/parse", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, s, http.MethodPost, "/api/story/parse", gin.H{"source": "niente", "filename": "x.twee"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "ERROR: The document does not contain any passages.", body["error"])

	code, _ = do(t, s, http.MethodPost, "/api/story/parse", gin.H{"file_path": "/non/esiste.twee"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestConvertStory(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/api/story/convert", gin.H{
		"source": sampleTwee, "filename": "storia.twee", "target": "twine1",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.True(t, strings.HasPrefix(body["output"].(string), `<div id="storeArea" data-size="3">`))

	code, _ = do(t, s, http.MethodPost, "/api/story/convert", gin.H{"source": sampleTwee, "target": "pdf"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, s, http.MethodPost, "/api/story/convert", gin.H{
		"source": sampleTwee, "filename": "storia.twee", "start_node": "Manca",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, false, body["success"])
}

func TestCompileStory(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/api/story/compile", gin.H{"file_path": writeStory(t)})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.True(t, strings.HasSuffix(body["output_file"].(string), "la-grotta.html"))

	code, _ = do(t, s, http.MethodPost, "/api/story/compile", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestValidateStory(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/api/story/validate", gin.H{"source": sampleTwee})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, float64(4), body["passage_count"])

	code, body = do(t, s, http.MethodPost, "/api/story/validate", gin.H{"source": "::A\n"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["valid"])
}

func TestPassages(t *testing.T) {
	s := newTestServer(t)
	path := writeStory(t)

	code, body := do(t, s, http.MethodGet, "/api/story/passages?file="+path, nil)
	require.Equal(t, http.StatusOK, code)
	passages := body["passages"].([]any)
	require.Len(t, passages, 3)
	assert.Equal(t, "StoryTitle", passages[0].(map[string]any)["name"])

	code, body = do(t, s, http.MethodGet, "/api/story/passage?file="+path+"&name=Sala", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Fine.", body["passage"].(map[string]any)["text"])

	code, _ = do(t, s, http.MethodGet, "/api/story/passage?file="+path+"&name=Manca", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, s, http.MethodGet, "/api/story/passages", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

// ============================================
// Utils endpoints
// ============================================

func TestFormatsAndVersion(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodGet, "/api/formats", nil)
	require.Equal(t, http.StatusOK, code)
	list := body["formats"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "harlowe-3.3.8", list[0].(map[string]any)["id"])

	code, body = do(t, s, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "twee-kit "+compiler.Version, body["version"])
}

func TestIFIDEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodGet, "/api/ifid", nil)
	require.Equal(t, http.StatusOK, code)
	generated := body["ifid"].(string)
	assert.Len(t, generated, 36)

	_, body = do(t, s, http.MethodPost, "/api/ifid/validate", gin.H{"ifid": generated})
	assert.Equal(t, true, body["valid"])

	_, body = do(t, s, http.MethodPost, "/api/ifid/validate", gin.H{"ifid": ""})
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "ERROR: IFID cannot be empty.", body["error"])
}

// ============================================
// Watcher e WebSocket
// ============================================

func TestWatcherLifecycle(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()

	_, body := do(t, s, http.MethodGet, "/api/watch/status", nil)
	assert.Equal(t, false, body["running"])

	code, _ := do(t, s, http.MethodPost, "/api/watch/stop", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/watch/start", gin.H{"paths": []string{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/watch/start", gin.H{"paths": []string{dir}, "target": "twee"})
	require.Equal(t, http.StatusOK, code)

	_, body = do(t, s, http.MethodGet, "/api/watch/status", nil)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, []any{dir}, body["paths"])

	code, _ = do(t, s, http.MethodPost, "/api/watch/start", gin.H{"paths": []string{dir}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/watch/stop", nil)
	require.Equal(t, http.StatusOK, code)

	s.Shutdown()
}

func TestWebSocketBroadcast(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		s.wsMutex.Lock()
		defer s.wsMutex.Unlock()
		return len(s.wsClients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.broadcast(watcher.WatchEvent{
		Type:      watcher.EventCompileSuccess,
		Path:      "/tmp/storie/storia.twee",
		Timestamp: time.Now(),
		Message:   "out/storia.html",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "compile_success", msg["type"])
	assert.Equal(t, "storia.twee", msg["path"])
	assert.Equal(t, "/tmp/storie/storia.twee", msg["full_path"])
	assert.Equal(t, "out/storia.html", msg["message"])
}
