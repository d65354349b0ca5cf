package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macmann/mealmebase/internal/memory"
	"github.com/macmann/mealmebase/internal/model"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestResponder(t *testing.T, handler http.HandlerFunc) (*Responder, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewResponder(&Config{
		Model:   "gpt-4o-mini",
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Timeout: 5 * time.Second,
	}), server
}

func completionJSON(text string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + encodeJSON(text) + `}}]}`
}

func encodeJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestAnswerAssemblesMessages(t *testing.T) {
	var got capturedRequest
	responder, _ := newTestResponder(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("We have apples.")))
	})

	agent := &model.Agent{ID: "agent-1", Instruction: "You sell fruit.", Temperature: 0.7, TopP: 1.0}
	history := []memory.Turn{
		{Role: memory.RoleUser, Text: "hi"},
		{Role: memory.RoleBot, Text: "hello"},
	}

	answer := responder.Answer(context.Background(), agent, "A contains apples", "What do you have?", history)
	assert.Equal(t, "We have apples.", answer)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "You sell fruit.", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "A contains apples\n\nWhat do you have?", got.Messages[3].Content)
}

func TestAnswerWithoutContextSendsBareQuestion(t *testing.T) {
	var got capturedRequest
	responder, _ := newTestResponder(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("ok")))
	})

	agent := &model.Agent{ID: "agent-1"}
	responder.Answer(context.Background(), agent, "", "ping", nil)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, defaultInstruction, got.Messages[0].Content)
	assert.Equal(t, "ping", got.Messages[1].Content)
}

func TestAnswerFallsBackOnServerError(t *testing.T) {
	responder, _ := newTestResponder(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	})

	agent := &model.Agent{ID: "agent-1"}
	answer := responder.Answer(context.Background(), agent, "", "anything", nil)
	assert.Equal(t, FallbackAnswer, answer)
}

func TestAnswerFallsBackOnEmptyChoices(t *testing.T) {
	responder, _ := newTestResponder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	})

	agent := &model.Agent{ID: "agent-1"}
	answer := responder.Answer(context.Background(), agent, "", "anything", nil)
	assert.Equal(t, FallbackAnswer, answer)
}
