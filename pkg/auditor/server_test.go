package auditor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcoreai/clearcore/pkg/models"
	"github.com/clearcoreai/clearcore/pkg/water"
)

func newTestServer(t *testing.T, chat ChatClient) *Server {
	t.Helper()
	dir := t.TempDir()
	acct := water.NewAccountant(filepath.Join(dir, "aiwaterdrops.json"))
	core := NewCore(chat, acct, Config{LastCheckPath: filepath.Join(dir, "last_check.json")})
	return NewServer(core, acct)
}

func TestManifestHandler(t *testing.T) {
	s := newTestServer(t, &fakeChat{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/manifest", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.manifestHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var m struct {
		Capabilities []struct {
			Name               string `json:"name"`
			CustomInputHandler string `json:"custom_input_handler"`
		} `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.Len(t, m.Capabilities, 1)
	assert.Equal(t, "audit_trace", m.Capabilities[0].Name)
	assert.Equal(t, models.UseExecutionTrace, m.Capabilities[0].CustomInputHandler)
}

func TestHealthAndMetricsHandlers(t *testing.T) {
	s := newTestServer(t, &fakeChat{})
	e := echo.New()

	t.Run("health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		require.NoError(t, s.healthHandler(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "up and running")
	})

	t.Run("metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		require.NoError(t, s.metricsHandler(e.NewContext(req, rec)))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "auditor", body["agent"])
		assert.Contains(t, body, "aiwaterdrops_consumed")
		assert.Nil(t, body["last_check"], "no audit has run yet")
	})
}

func TestExecuteHandlerUnknownCapability(t *testing.T) {
	s := newTestServer(t, &fakeChat{})

	e := echo.New()
	body := `{"capability": "make_coffee", "input": {"steps": []}}`
	req := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	err := s.executeHandler(e.NewContext(req, rec))
	require.Error(t, err)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	assert.Equal(t, "Unknown capability: make_coffee", httpErr.Message)
}

func TestRunHandlerEmptyTrace(t *testing.T) {
	s := newTestServer(t, &fakeChat{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"steps": []}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	err := s.runHandler(e.NewContext(req, rec))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestRunHandlerPolicyFailureIs422(t *testing.T) {
	s := newTestServer(t, &fakeChat{})

	e := echo.New()
	// Agent has no discoverable base URL, so strict discovery refuses.
	body := `{"steps": [{"agent": "fetcher", "output": {"k": "v"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	err := s.runHandler(e.NewContext(req, rec))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Code)
}

func TestRunHandlerMissingKeyIs500(t *testing.T) {
	s := newTestServer(t, &fakeChat{noKey: true})

	e := echo.New()
	body := `{"steps": [{"agent": "fetcher", "input": {"_agent_base_url": "http://unused"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	err := s.runHandler(e.NewContext(req, rec))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
	assert.Contains(t, httpErr.Message, "LLM API key")
}

func TestExecuteHandlerFullAudit(t *testing.T) {
	policy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"rules": []any{"r1"}})
	}))
	t.Cleanup(policy.Close)

	chat := &fakeChat{reply: `{"status": "ok", "summary": "1/1 agents validated", "details": [{"agent": "fetcher", "status": "valid", "comment": "fine", "score": 1.0}]}`}
	s := newTestServer(t, chat)

	e := echo.New()
	body := `{"capability": "audit_trace", "input": {"steps": [{"agent": "fetcher", "input": {"_agent_base_url": "` + policy.URL + `"}}]}}`
	req := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	require.NoError(t, s.executeHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.AuditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.AuditStatusOK, result.Status)
	require.Len(t, result.Details, 1)
	assert.Equal(t, "fetcher", result.Details[0].Agent)
}
