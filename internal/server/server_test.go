package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macmann/mealmebase/internal/agent"
	"github.com/macmann/mealmebase/internal/bot"
	"github.com/macmann/mealmebase/internal/config"
	"github.com/macmann/mealmebase/internal/gateway"
	"github.com/macmann/mealmebase/internal/ingest"
	"github.com/macmann/mealmebase/internal/memory"
	"github.com/macmann/mealmebase/internal/model"
	"github.com/macmann/mealmebase/internal/vectorstore"
)

type stubStore struct {
	points map[string][]vectorstore.Point
}

func newStubStore() *stubStore {
	return &stubStore{points: make(map[string][]vectorstore.Point)}
}

func (s *stubStore) EnsureCollection(ctx context.Context, name string) error { return nil }

func (s *stubStore) Upsert(ctx context.Context, collection string, id uint64, vector []float64, payload vectorstore.Payload) error {
	s.points[collection] = append(s.points[collection], vectorstore.Point{ID: id, Payload: payload})
	return nil
}

func (s *stubStore) Search(ctx context.Context, collection string, vector []float64, limit int) ([]vectorstore.ScoredPoint, error) {
	return nil, nil
}

func (s *stubStore) ScrollAll(ctx context.Context, collection string) ([]vectorstore.Point, error) {
	return s.points[collection], nil
}

func (s *stubStore) Delete(ctx context.Context, collection string, id uint64) error { return nil }

type stubRetriever struct{}

func (stubRetriever) Retrieve(ctx context.Context, collection, query string, topK int) string {
	return ""
}

type stubResponder struct{}

func (stubResponder) Answer(ctx context.Context, ag *model.Agent, contextText, question string, history []memory.Turn) string {
	return "reply: " + question
}

type stubIngestor struct {
	err   error
	files int
}

func (s *stubIngestor) Ingest(ctx context.Context, collection string, files []ingest.File) error {
	s.files += len(files)
	return s.err
}

type serverFixture struct {
	srv      *Server
	agent    *model.Agent
	ingestor *stubIngestor
	store    *stubStore
	token    string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	store := newStubStore()
	registry := agent.NewRegistry(nil, store)
	created, err := registry.Create(context.Background(), agent.CreateParams{Name: "Support"})
	require.NoError(t, err)

	ingestor := &stubIngestor{}
	gw := gateway.New(gateway.Options{
		Registry:  registry,
		Retriever: stubRetriever{},
		Responder: stubResponder{},
		Ingestor:  ingestor,
		Store:     store,
		Dashboard: memory.NewStore(nil),
		Bots:      memory.NewStore(nil),
	})

	supervisor := bot.NewSupervisor(gw.BotChatFunc())
	supervisor.NewClient = func(token string) (bot.Client, error) {
		return nil, errors.New("no telegram in tests")
	}

	cfg := &config.Config{}
	cfg.Chat.DefaultAgent = created.ID

	srv := New(cfg, gw, registry, supervisor)
	return &serverFixture{
		srv:      srv,
		agent:    created,
		ingestor: ingestor,
		store:    store,
		token:    srv.auth.issue("admin"),
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	rec := httptest.NewRecorder()
	f.srv.engine.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) model.Response {
	t.Helper()
	var resp model.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	f.srv.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	rec := httptest.NewRecorder()
	f.srv.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAgentCreateAndList(t *testing.T) {
	f := newServerFixture(t)

	body, _ := json.Marshal(CreateAgentRequest{Name: "Fruit Shop", Instruction: "You sell fruit."})
	rec := f.do(t, http.MethodPost, "/api/v1/agents", body, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/agents", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	agents, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, agents, 2)
}

func TestAgentUpdateRejectsNonPositiveTopK(t *testing.T) {
	f := newServerFixture(t)

	topK := 0
	body, _ := json.Marshal(UpdateAgentRequest{TopK: &topK})
	rec := f.do(t, http.MethodPut, "/api/v1/agents/"+f.agent.ID, body, "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentGetUnknown(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/agents/no-such-id", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatDefaultsToConfiguredAgent(t *testing.T) {
	f := newServerFixture(t)

	body, _ := json.Marshal(ChatRequest{Message: "hello"})
	rec := f.do(t, http.MethodPost, "/api/v1/chat", body, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, f.agent.ID, data["agent_id"])
	assert.Equal(t, "reply: hello", data["answer"])
}

func TestChatUnknownAgent(t *testing.T) {
	f := newServerFixture(t)

	body, _ := json.Marshal(ChatRequest{AgentID: "no-such-id", Message: "hello"})
	rec := f.do(t, http.MethodPost, "/api/v1/chat", body, "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentUploadValidationError(t *testing.T) {
	f := newServerFixture(t)
	f.ingestor.err = ingest.ErrInvalidDocument

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "broken.json")
	require.NoError(t, err)
	_, err = part.Write([]byte("{not json"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := f.do(t, http.MethodPost, "/api/v1/agents/"+f.agent.ID+"/documents", buf.Bytes(), mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentUploadAndList(t *testing.T) {
	f := newServerFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("A contains apples"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := f.do(t, http.MethodPost, "/api/v1/agents/"+f.agent.ID+"/documents", buf.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.ingestor.files)

	rec = f.do(t, http.MethodGet, "/api/v1/agents/"+f.agent.ID+"/documents", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDocumentDeleteInvalidID(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodDelete, "/api/v1/agents/"+f.agent.ID+"/documents/not-a-number", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
