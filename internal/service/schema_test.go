package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSchemaCache_DiscoverKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("returns sorted keys of the sampled record", func(t *testing.T) {
		repo := new(MockDocumentRepository)
		repo.On("SampleMetadata", mock.Anything, 1).Return([]map[string]string{
			{"estado de oferta": "PENDIENTE", "codigo de oferta": "OF-24-001", "cliente": "ACME"},
		}, nil)

		c := NewSchemaCache(repo, nil)
		assert.Equal(t, []string{"cliente", "codigo de oferta", "estado de oferta"}, c.DiscoverKeys(ctx))
	})

	t.Run("empty store yields empty set", func(t *testing.T) {
		repo := new(MockDocumentRepository)
		repo.On("SampleMetadata", mock.Anything, 1).Return([]map[string]string{}, nil)

		assert.Empty(t, NewSchemaCache(repo, nil).DiscoverKeys(ctx))
	})

	t.Run("failure yields empty set", func(t *testing.T) {
		repo := new(MockDocumentRepository)
		repo.On("SampleMetadata", mock.Anything, 1).Return(nil, errors.New("connection refused"))

		keys := NewSchemaCache(repo, nil).DiscoverKeys(ctx)
		assert.NotNil(t, keys)
		assert.Empty(t, keys)
	})
}

func TestSchemaCache_DiscoverValidStates(t *testing.T) {
	ctx := context.Background()

	t.Run("upper-cases and dedupes", func(t *testing.T) {
		repo := new(MockDocumentRepository)
		repo.On("SampleMetadata", mock.Anything, 200).Return([]map[string]string{
			{"estado de oferta": "Pendiente"},
			{"estado de oferta": "PENDIENTE"},
			{"estado de oferta": "no adjudicado"},
			{"cliente": "sin estado"},
		}, nil)

		states := NewSchemaCache(repo, nil).DiscoverValidStates(ctx)
		assert.Equal(t, []string{"NO ADJUDICADO", "PENDIENTE"}, states)
	})

	t.Run("failure returns fallback list", func(t *testing.T) {
		repo := new(MockDocumentRepository)
		repo.On("SampleMetadata", mock.Anything, 200).Return(nil, errors.New("timeout"))

		states := NewSchemaCache(repo, nil).DiscoverValidStates(ctx)
		assert.Equal(t, []string{"PENDIENTE", "ADJUDICADO", "NO ADJUDICADO"}, states)
	})

	t.Run("no status values returns fallback list", func(t *testing.T) {
		repo := new(MockDocumentRepository)
		repo.On("SampleMetadata", mock.Anything, 200).Return([]map[string]string{}, nil)

		states := NewSchemaCache(repo, nil).DiscoverValidStates(ctx)
		assert.Len(t, states, 3)
	})
}

func TestSchemaCache_LazyLoadRefreshInvalidate(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDocumentRepository)
	repo.On("SampleMetadata", mock.Anything, 1).Return([]map[string]string{{"cliente": "x"}}, nil).Once()
	repo.On("SampleMetadata", mock.Anything, 1).Return([]map[string]string{{"cliente": "x", "id_excel": "1"}}, nil).Once()

	c := NewSchemaCache(repo, nil)
	c.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	assert.True(t, c.LoadedAt().IsZero())

	assert.Equal(t, []string{"cliente"}, c.Keys(ctx))
	assert.Equal(t, []string{"cliente"}, c.Keys(ctx))
	assert.False(t, c.LoadedAt().IsZero())

	c.Invalidate()
	assert.True(t, c.LoadedAt().IsZero())

	assert.Equal(t, []string{"cliente", "id_excel"}, c.Keys(ctx))
	repo.AssertNumberOfCalls(t, "SampleMetadata", 2)
}

func TestSchemaCache_RefreshSnapshot(t *testing.T) {
	repo := new(MockDocumentRepository)
	repo.On("SampleMetadata", mock.Anything, 1).Return([]map[string]string{{"b": "1", "a": "2"}}, nil)

	c := NewSchemaCache(repo, nil)
	snap := c.Refresh(context.Background())

	assert.Equal(t, []string{"a", "b"}, snap.Keys)
	assert.Equal(t, snap, c.Snapshot())
}
