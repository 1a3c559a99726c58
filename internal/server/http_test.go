package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"personasim/internal/ai/aitest"
	"personasim/internal/config"
	"personasim/internal/errors"
	"personasim/internal/pipeline"
	"personasim/internal/store"
	"personasim/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gioiaReply = "Dimension: Working With AI\nTheme: Tool Adoption\n- automation relief: \"It saves me hours\"\n"

func maya() types.Persona {
	return types.Persona{
		Name:        "Maya Ortiz",
		Age:         41,
		Job:         "Nurse",
		Education:   "BSN",
		Personality: "warm, direct",
		Opinions: map[string]string{
			types.OpinionAI:         "Cautious",
			types.OpinionRemoteWork: "Not possible in my job",
		},
	}
}

type testServer struct {
	*Server
	handler http.Handler
}

func newTestServer(t *testing.T, clients pipeline.Clients, cfg ServerConfig) testServer {
	t.Helper()
	st := store.New(t.TempDir(), nil, nil)
	p := pipeline.New(st, clients, pipeline.Options{}, nil)
	s := NewServer(&config.Config{}, p, nil, cfg, nil)
	t.Cleanup(s.cleanup)
	return testServer{Server: s, handler: s.Handler()}
}

func (ts testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts testServer) seed(t *testing.T, questions ...string) {
	t.Helper()
	ctx := context.Background()
	_, _, err := ts.Pipeline.Store().SavePersona(ctx, maya())
	require.NoError(t, err)
	_, err = ts.Pipeline.Store().SaveQuestions(ctx, questions)
	require.NoError(t, err)
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t, pipeline.Clients{}, ServerConfig{})

	rec := ts.do(t, http.MethodGet, "/health", nil)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	rec = ts.do(t, http.MethodGet, "/personas/nobody", nil, RequestIDHeader, id)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, id, decode[ErrorResponse](t, rec).RequestID)

	rec = ts.do(t, http.MethodGet, "/stats", nil, RequestIDHeader, "not-a-uuid")
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, pipeline.Clients{}, ServerConfig{APIKeys: []string{"secret-key-123"}})

	tests := []struct {
		name    string
		path    string
		headers []string
		status  int
	}{
		{name: "health is open", path: "/health", status: http.StatusOK},
		{name: "missing key", path: "/personas", status: http.StatusUnauthorized},
		{name: "wrong key", path: "/personas", headers: []string{"X-API-Key", "nope"}, status: http.StatusUnauthorized},
		{name: "header key", path: "/personas", headers: []string{"X-API-Key", "secret-key-123"}, status: http.StatusOK},
		{name: "bearer token", path: "/personas", headers: []string{"Authorization", "Bearer secret-key-123"}, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tt.path, nil, tt.headers...)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestPersonaEndpoints(t *testing.T) {
	ts := newTestServer(t, pipeline.Clients{}, ServerConfig{})

	rec := ts.do(t, http.MethodPost, "/personas", maya())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/personas", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]types.Persona](t, rec)
	require.Len(t, list["personas"], 1)
	assert.Equal(t, "Maya Ortiz", list["personas"][0].Name)

	rec = ts.do(t, http.MethodGet, "/personas/maya_ortiz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maya(), decode[types.Persona](t, rec))

	rec = ts.do(t, http.MethodPost, "/personas", types.Persona{Name: "Kid", Age: 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.ErrCodeInvalidPersona, decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodDelete, "/personas/maya_ortiz", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/personas/maya_ortiz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuestionEndpoints(t *testing.T) {
	ts := newTestServer(t, pipeline.Clients{}, ServerConfig{})

	rec := ts.do(t, http.MethodPut, "/questions", QuestionsRequest{Questions: []string{"What do you do?", " ", "Why?"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, ts.storedQuestionCount())

	rec = ts.do(t, http.MethodGet, "/questions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"What do you do?", "Why?"}, decode[types.QuestionSet](t, rec).Questions)

	rec = ts.do(t, http.MethodPost, "/questions/extract", ExtractRequest{
		Text:    "1. How long have you been a nurse?\n2. What tools do you use?",
		Offline: true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	extracted := decode[types.QuestionExtraction](t, rec)
	assert.Len(t, extracted.Questions, 2)
}

func TestSimulateEndpoint(t *testing.T) {
	t.Run("simulates and persists", func(t *testing.T) {
		ts := newTestServer(t, pipeline.Clients{Simulate: aitest.Fixed("Long shifts, mostly.")}, ServerConfig{})
		ts.seed(t, "What is a normal day like?")

		rec := ts.do(t, http.MethodPost, "/simulate", SimulateRequest{Persona: "Maya Ortiz"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		result := decode[types.SimulationResult](t, rec)
		assert.Equal(t, types.ResponseSet{{Question: "What is a normal day like?", Answer: "Long shifts, mostly."}}, result.Responses)
		assert.True(t, ts.Pipeline.Store().ResponsesExist("Maya Ortiz"))
	})

	t.Run("inline questions", func(t *testing.T) {
		ts := newTestServer(t, pipeline.Clients{Simulate: aitest.Fixed("ok")}, ServerConfig{})
		ts.seed(t, "Stored?")

		rec := ts.do(t, http.MethodPost, "/simulate", SimulateRequest{Persona: "Maya Ortiz", Questions: []string{"Inline?"}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Inline?", decode[types.SimulationResult](t, rec).Responses[0].Question)
	})

	tests := []struct {
		name    string
		clients pipeline.Clients
		body    any
		status  int
	}{
		{name: "missing persona field", clients: pipeline.Clients{Simulate: aitest.Fixed("x")}, body: SimulateRequest{}, status: http.StatusBadRequest},
		{name: "unknown persona", clients: pipeline.Clients{Simulate: aitest.Fixed("x")}, body: SimulateRequest{Persona: "nobody"}, status: http.StatusNotFound},
		{name: "no client", body: SimulateRequest{Persona: "Maya Ortiz"}, status: http.StatusServiceUnavailable},
		{
			name:    "model failure",
			clients: pipeline.Clients{Simulate: aitest.Failing(errors.NewServiceError(errors.ErrCodeAIServiceFailed, "boom", nil))},
			body:    SimulateRequest{Persona: "Maya Ortiz"},
			status:  http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.clients, ServerConfig{})
			ts.seed(t, "Anything?")
			rec := ts.do(t, http.MethodPost, "/simulate", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	t.Run("rejects non-json bodies", func(t *testing.T) {
		ts := newTestServer(t, pipeline.Clients{}, ServerConfig{})
		req := httptest.NewRequest(http.MethodPost, "/simulate", bytes.NewBufferString("persona=x"))
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAnalyzeAndFrameworkEndpoints(t *testing.T) {
	ts := newTestServer(t, pipeline.Clients{Analyze: aitest.Fixed(gioiaReply)}, ServerConfig{})

	rec := ts.do(t, http.MethodPost, "/analyze", AnalyzeRequest{
		Subject:   "Maya",
		Responses: types.ResponseSet{{Question: "AI?", Answer: "It saves me hours"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	analysis := decode[types.ThematicAnalysis](t, rec)
	require.Len(t, analysis.Dimensions, 1)
	assert.Equal(t, "Working With AI", analysis.Dimensions[0].Name)

	rec = ts.do(t, http.MethodPost, "/analyze", AnalyzeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/framework", FrameworkRequest{Analysis: &analysis})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decode[pipeline.FrameworkResult](t, rec).DOT, "digraph")

	rec = ts.do(t, http.MethodPost, "/framework", FrameworkRequest{Analysis: &types.ThematicAnalysis{Raw: "nothing"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCompareEndpoint(t *testing.T) {
	ts := newTestServer(t, pipeline.Clients{}, ServerConfig{})
	ctx := context.Background()
	_, err := ts.Pipeline.Store().SaveRealResponses(ctx, "maya", types.ResponseSet{{Question: "Q1?", Answer: "I am tired."}})
	require.NoError(t, err)
	_, err = ts.Pipeline.Store().SaveResponses(ctx, "maya", types.ResponseSet{{Question: "Q1?", Answer: "I am tired."}})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/compare", CompareRequest{Real: "maya", Simulated: "maya"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[pipeline.ComparisonReport](t, rec)
	assert.Len(t, report.Result.Similarities, 1)
	assert.NotEmpty(t, report.Markdown)

	rec = ts.do(t, http.MethodPost, "/compare", CompareRequest{Real: "maya"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	ts := newTestServer(t, pipeline.Clients{}, ServerConfig{})
	_, err := ts.Pipeline.Store().SaveResponses(context.Background(), "Maya Ortiz",
		types.ResponseSet{{Question: "Q1?", Answer: "A1"}})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/export/Maya%20Ortiz?format=md", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="maya_ortiz_interview.md"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "## Q: Q1?")

	rec = ts.do(t, http.MethodGet, "/export/Maya%20Ortiz?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiting(t *testing.T) {
	ts := newTestServer(t, pipeline.Clients{}, ServerConfig{
		RateLimit: &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true},
	})

	first := ts.do(t, http.MethodGet, "/personas", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := ts.do(t, http.MethodGet, "/personas", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	stats := ts.RateLimiter.GetStats()
	assert.Equal(t, int64(1), stats["rejected_total"])
}

func TestHealthAndStats(t *testing.T) {
	ts := newTestServer(t, pipeline.Clients{Simulate: aitest.Fixed("x")}, ServerConfig{Version: "1.2.3"})
	ts.seed(t, "One?", "Two?")
	ts.refreshQuestionCount()

	rec := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "1.2.3", health["version"])

	rec = ts.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	storeStats := stats["store"].(map[string]any)
	assert.EqualValues(t, 1, storeStats["personas"])
	assert.EqualValues(t, 2, storeStats["questions"])
	assert.Contains(t, stats, "host")

	rec = ts.do(t, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"input", errors.NewInputError(errors.ErrCodeInvalidRequest, "x", nil), http.StatusBadRequest},
		{"not found", errors.NewIOError(errors.ErrCodePersonaNotFound, "x", nil), http.StatusNotFound},
		{"parse", errors.NewParseError(errors.ErrCodeAIParseFailed, "x", nil), http.StatusUnprocessableEntity},
		{"service", errors.NewServiceError(errors.ErrCodeAIServiceFailed, "x", nil), http.StatusBadGateway},
		{"config", errors.NewConfigError(errors.ErrCodeMissingAPIKey, "x", nil), http.StatusServiceUnavailable},
		{"locked", errors.NewIOError(errors.ErrCodePathLocked, "x", nil), http.StatusConflict},
		{"io", errors.NewIOError(errors.ErrCodeFileNotWritable, "x", nil), http.StatusInternalServerError},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"plain", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
