package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macmann/mealmebase/internal/vectorstore"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float64{1, 0, 0}, nil
}

type stubStore struct {
	results   []vectorstore.ScoredPoint
	searchErr error
	gotLimit  int
}

func (s *stubStore) EnsureCollection(ctx context.Context, name string) error { return nil }

func (s *stubStore) Upsert(ctx context.Context, collection string, id uint64, vector []float64, payload vectorstore.Payload) error {
	return nil
}

func (s *stubStore) Search(ctx context.Context, collection string, vector []float64, limit int) ([]vectorstore.ScoredPoint, error) {
	s.gotLimit = limit
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.results, nil
}

func (s *stubStore) ScrollAll(ctx context.Context, collection string) ([]vectorstore.Point, error) {
	return nil, nil
}

func (s *stubStore) Delete(ctx context.Context, collection string, id uint64) error { return nil }

func TestRetrieveConcatenatesRankedTexts(t *testing.T) {
	store := &stubStore{results: []vectorstore.ScoredPoint{
		{ID: 1, Score: 0.9, Payload: vectorstore.Payload{Text: "A contains apples"}},
		{ID: 2, Score: 0.8, Payload: vectorstore.Payload{Text: "B contains bananas"}},
	}}
	r := NewRetriever(store, &stubEmbedder{})

	got := r.Retrieve(context.Background(), "agent_abc", "What do you have?", 2)
	assert.Equal(t, "A contains apples\nB contains bananas", got)
	assert.Equal(t, 2, store.gotLimit)
}

func TestRetrieveEmptyCollection(t *testing.T) {
	r := NewRetriever(&stubStore{}, &stubEmbedder{})
	got := r.Retrieve(context.Background(), "agent_abc", "anything", 3)
	assert.Empty(t, got)
}

func TestRetrieveDegradesOnEmbedFailure(t *testing.T) {
	r := NewRetriever(&stubStore{}, &stubEmbedder{err: errors.New("rate limited")})
	got := r.Retrieve(context.Background(), "agent_abc", "anything", 3)
	assert.Empty(t, got)
}

func TestRetrieveDegradesOnSearchFailure(t *testing.T) {
	r := NewRetriever(&stubStore{searchErr: errors.New("unreachable")}, &stubEmbedder{})
	got := r.Retrieve(context.Background(), "agent_abc", "anything", 3)
	assert.Empty(t, got)
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	store := &stubStore{}
	r := NewRetriever(store, &stubEmbedder{})
	r.Retrieve(context.Background(), "agent_abc", "anything", 0)
	assert.Equal(t, defaultTopK, store.gotLimit)
}
