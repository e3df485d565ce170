package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenden-assist/server/internal/assistant"
	"github.com/lenden-assist/server/internal/assistant/escalation"
	"github.com/lenden-assist/server/internal/assistant/knowledge"
	"github.com/lenden-assist/server/internal/assistant/llm"
	"github.com/lenden-assist/server/internal/assistant/model"
	"github.com/lenden-assist/server/internal/assistant/router"
	"github.com/lenden-assist/server/internal/assistant/session"
	"github.com/lenden-assist/server/internal/assistant/specialist"
	"github.com/lenden-assist/server/internal/assistant/synthesizer"
)

type fakeClassifier struct {
	scores []llm.LabelScore
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) ([]llm.LabelScore, error) {
	return f.scores, nil
}

type fakeQuerier struct {
	results []knowledge.Result
}

func (f *fakeQuerier) Query(_ context.Context, _ model.Category, _ string, _ int) ([]knowledge.Result, error) {
	return f.results, nil
}

type fakeCompleter struct {
	result llm.CompletionResult
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResult, error) {
	return f.result, nil
}

type fakeKnowledge struct {
	items []model.KnowledgeItem
}

func (f *fakeKnowledge) Upsert(_ context.Context, item model.KnowledgeItem) (model.KnowledgeItem, error) {
	if item.ID == "" {
		item.ID = "kb-1"
	}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeKnowledge) List(_ context.Context) ([]model.KnowledgeItem, error) {
	return f.items, nil
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	synth, err := synthesizer.New(model.SynthesizerConfig{EscalationThreshold: 0.5, NoContextConfidence: 0.2})
	require.NoError(t, err)

	handlers := specialist.NewHandlers(
		&fakeQuerier{results: []knowledge.Result{{Content: "Interest starts at 12% p.a.", Citation: "doc-42"}}},
		&fakeCompleter{result: llm.CompletionResult{Text: "Interest starts at 12% p.a.", Confidence: 0.8}},
		specialist.Config{TopK: 3, NoContextConfidence: 0.2, Prompt: model.PromptConfig{BusinessName: "LenDen Club"}},
	)

	a, err := assistant.New(
		router.New(&fakeClassifier{scores: []llm.LabelScore{{Label: "loan", Confidence: 0.9}}}),
		handlers,
		synth,
		session.NewMemoryStore(),
		escalation.NewMemoryQueue(),
		&fakeKnowledge{},
	)
	require.NoError(t, err)

	e := echo.New()
	New(a).Register(e)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/chat", `{"userId":"user-1","text":"what is the interest rate"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var result assistant.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, "Interest starts at 12% p.a.", result.Response.AnswerText)
	assert.Equal(t, []string{"doc-42"}, result.Response.Sources)
}

func TestChatRequiresUserID(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/chat", `{"text":"hello"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRejectsEmptyText(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/chat", `{"userId":"user-1","text":"  "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSessionsRequiresUserID(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/sessions", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSessionsAfterChat(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/chat", `{"userId":"user-1","text":"hi there"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/sessions?userId=user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []model.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].MessageCount)
}

func TestHistoryUnknownSession(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/sessions/no-such/messages", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEscalationsRejectsBadStatus(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/admin/escalations?status=bogus", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveEscalationRequiresResolution(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/admin/escalations/esc-1/resolve", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveEscalationUnknownRecord(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/admin/escalations/no-such/resolve", `{"resolution":"done"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKnowledgeUploadAndList(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/admin/knowledge", `{"title":"Loan FAQ","type":"faq","category":"loan","content":"Interest starts at 12% p.a."}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var item model.KnowledgeItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.NotEmpty(t, item.ID)

	rec = doJSON(e, http.MethodGet, "/api/v1/admin/knowledge", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []model.KnowledgeItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Loan FAQ", items[0].Title)
}
