package versionlink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/enrichment-service/internal/domain"
	"github.com/helixir/enrichment-service/internal/repository"
)

// memStore is an in-memory repository.Store. WithPreprintLock serializes on
// a single mutex.
type memStore struct {
	mu        sync.Mutex
	lock      sync.Mutex
	records   map[uuid.UUID]*domain.Record
	relations []*domain.ArticleVersionRelation

	inserts      int
	failLink     error
	raceOnInsert *domain.Record
}

func newMemStore() *memStore {
	return &memStore{records: map[uuid.UUID]*domain.Record{}}
}

func (m *memStore) GetRecords(context.Context, repository.RecordFilter) ([]*domain.Record, int64, error) {
	return nil, 0, errors.New("not implemented")
}

func (m *memStore) GetRecord(_ context.Context, id uuid.UUID) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		return rec, nil
	}
	return nil, domain.NewNotFoundError("record", id.String())
}

func (m *memStore) FindRecordByDOI(_ context.Context, doiNorm string) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.DOINorm == doiNorm {
			return rec, nil
		}
	}
	return nil, domain.NewNotFoundError("record", doiNorm)
}

func (m *memStore) InsertRecord(_ context.Context, rec *domain.Record) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceOnInsert != nil {
		// Simulate a concurrent writer that won the DOI.
		m.records[m.raceOnInsert.ID] = m.raceOnInsert
		m.raceOnInsert = nil
	}
	for _, existing := range m.records {
		if rec.DOINorm != "" && existing.DOINorm == rec.DOINorm {
			return uuid.Nil, domain.NewAlreadyExistsError("record", rec.DOINorm)
		}
	}
	m.inserts++
	rec.ID = uuid.New()
	m.records[rec.ID] = rec
	return rec.ID, nil
}

func (m *memStore) UpdateEnrichedRecord(context.Context, *domain.Record) error { return nil }

func (m *memStore) ListUnenriched(context.Context, int) ([]*domain.Record, error) { return nil, nil }

func (m *memStore) CreateArticleVersionRelation(_ context.Context, rel *domain.ArticleVersionRelation) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLink != nil {
		return uuid.Nil, false, m.failLink
	}
	for _, r := range m.relations {
		if r.PreprintID == rel.PreprintID && r.PublishedID == rel.PublishedID {
			return r.ID, false, nil
		}
	}
	rel.ID = uuid.New()
	m.relations = append(m.relations, rel)
	return rel.ID, true, nil
}

func (m *memStore) GetPublishedVersionID(_ context.Context, preprintID uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.relations {
		if r.PreprintID == preprintID {
			return r.PublishedID, nil
		}
	}
	return uuid.Nil, domain.NewNotFoundError("version relation", preprintID.String())
}

func (m *memStore) ListVersions(context.Context, uuid.UUID) ([]*domain.ArticleVersionRelation, error) {
	return nil, nil
}

func (m *memStore) WithPreprintLock(ctx context.Context, _ uuid.UUID, fn func(context.Context, repository.TxStore) error) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return fn(ctx, m)
}

func (m *memStore) addPreprint(t *testing.T) *domain.Record {
	t.Helper()
	rec := &domain.Record{
		Title:          "Neural scaling laws",
		DOINorm:        "10.48550/arxiv.2001.08361",
		PubDate:        "2020-01-23",
		Authors:        []domain.Author{{Name: "J. Kaplan"}},
		IsPreprint:     true,
		PreprintSource: "arxiv",
		AbstractText:   "We study empirical scaling laws.",
		AbstractSource: "arxiv",
	}
	_, err := m.InsertRecord(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

func TestProcessPreprintToPublishedLinking(t *testing.T) {
	ctx := context.Background()
	meta := json.RawMessage(`{"published_journal":"Nature"}`)

	t.Run("creates the published record and the link", func(t *testing.T) {
		store := newMemStore()
		preprint := store.addPreprint(t)
		svc := NewService(store, zerolog.Nop())

		res := svc.ProcessPreprintToPublishedLinking(ctx, preprint, "https://doi.org/10.1038/S41586-020-2649-2", domain.SourceTypeArXiv, meta)

		require.True(t, res.Success, res.Message)
		assert.True(t, res.RecordCreated)
		assert.True(t, res.LinkCreated)
		assert.False(t, res.AlreadyLinked)
		assert.Equal(t, MessageLinkedNew, res.Message)
		assert.Equal(t, domain.LinkStatusLinkedNew, res.Status())

		published := store.records[res.PublishedID]
		require.NotNil(t, published)
		assert.Equal(t, "10.1038/s41586-020-2649-2", published.DOINorm)
		assert.Equal(t, "https://doi.org/10.1038/S41586-020-2649-2", published.DOIRaw)
		assert.Equal(t, preprint.Title, published.Title)
		assert.Equal(t, preprint.Authors, published.Authors)
		assert.Equal(t, preprint.PubDate, published.PubDate)
		assert.False(t, published.IsPreprint)
		assert.Empty(t, published.PreprintSource)
		assert.Empty(t, published.AbstractText)
		assert.Nil(t, published.EnrichedAt)

		require.Len(t, store.relations, 1)
		assert.Equal(t, domain.SourceTypeArXiv, store.relations[0].DiscoverySource)
		assert.JSONEq(t, string(meta), string(store.relations[0].DiscoveryMetadata))
	})

	t.Run("second call takes the fast path", func(t *testing.T) {
		store := newMemStore()
		preprint := store.addPreprint(t)
		svc := NewService(store, zerolog.Nop())

		first := svc.ProcessPreprintToPublishedLinking(ctx, preprint, "10.1038/x", domain.SourceTypeArXiv, nil)
		require.True(t, first.Success)
		inserts := store.inserts

		second := svc.ProcessPreprintToPublishedLinking(ctx, preprint, "10.1038/x", domain.SourceTypeArXiv, nil)
		require.True(t, second.Success)
		assert.True(t, second.AlreadyLinked)
		assert.False(t, second.LinkCreated)
		assert.False(t, second.RecordCreated)
		assert.Equal(t, MessageAlreadyLinked, second.Message)
		assert.Equal(t, first.PublishedID, second.PublishedID)
		assert.Equal(t, inserts, store.inserts)
		assert.Len(t, store.relations, 1)
	})

	t.Run("links to an existing published record", func(t *testing.T) {
		store := newMemStore()
		preprint := store.addPreprint(t)
		existing := &domain.Record{Title: "Published", DOINorm: "10.1038/existing"}
		_, err := store.InsertRecord(ctx, existing)
		require.NoError(t, err)

		res := NewService(store, zerolog.Nop()).ProcessPreprintToPublishedLinking(ctx, preprint, "10.1038/EXISTING", domain.SourceTypeCrossref, nil)

		require.True(t, res.Success)
		assert.False(t, res.RecordCreated)
		assert.True(t, res.LinkCreated)
		assert.Equal(t, existing.ID, res.PublishedID)
		assert.Equal(t, MessageLinkedExisting, res.Message)
		assert.Equal(t, domain.LinkStatusLinkedExisting, res.Status())
		assert.JSONEq(t, `{}`, string(store.relations[0].DiscoveryMetadata))
	})

	t.Run("recovers when another writer creates the DOI first", func(t *testing.T) {
		store := newMemStore()
		preprint := store.addPreprint(t)
		winner := &domain.Record{ID: uuid.New(), Title: "Winner", DOINorm: "10.1038/race"}
		store.raceOnInsert = winner

		res := NewService(store, zerolog.Nop()).ProcessPreprintToPublishedLinking(ctx, preprint, "10.1038/race", domain.SourceTypeBioRxiv, nil)

		require.True(t, res.Success, res.Message)
		assert.False(t, res.RecordCreated)
		assert.Equal(t, winner.ID, res.PublishedID)
	})

	t.Run("rejects unusable DOIs without writing", func(t *testing.T) {
		for _, doi := range []string{"", "   ", "NA", "https://doi.org/"} {
			store := newMemStore()
			preprint := store.addPreprint(t)
			inserts := store.inserts

			res := NewService(store, zerolog.Nop()).ProcessPreprintToPublishedLinking(ctx, preprint, doi, domain.SourceTypeBioRxiv, nil)

			assert.False(t, res.Success, "doi %q", doi)
			assert.Contains(t, res.Message, MessageFailed)
			assert.Equal(t, domain.LinkStatusFailed, res.Status())
			assert.Equal(t, inserts, store.inserts)
			assert.Empty(t, store.relations)
		}
	})

	t.Run("rejects a self link", func(t *testing.T) {
		store := newMemStore()
		preprint := store.addPreprint(t)

		res := NewService(store, zerolog.Nop()).ProcessPreprintToPublishedLinking(ctx, preprint, preprint.DOINorm, domain.SourceTypeArXiv, nil)
		assert.False(t, res.Success)
		assert.Empty(t, store.relations)
	})

	t.Run("unpersisted preprint", func(t *testing.T) {
		res := NewService(newMemStore(), zerolog.Nop()).ProcessPreprintToPublishedLinking(ctx, &domain.Record{}, "10.1/x", domain.SourceTypeArXiv, nil)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "not persisted")
	})

	t.Run("storage failure", func(t *testing.T) {
		store := newMemStore()
		preprint := store.addPreprint(t)
		store.failLink = errors.New("disk full")

		res := NewService(store, zerolog.Nop()).ProcessPreprintToPublishedLinking(ctx, preprint, "10.1038/y", domain.SourceTypeArXiv, nil)
		assert.False(t, res.Success)
		assert.Equal(t, uuid.Nil, res.PublishedID)
		assert.Contains(t, res.Message, "disk full")
	})

	t.Run("concurrent callers create one record and one link", func(t *testing.T) {
		store := newMemStore()
		preprint := store.addPreprint(t)
		svc := NewService(store, zerolog.Nop())
		inserts := store.inserts

		var wg sync.WaitGroup
		results := make([]domain.LinkResult, 10)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = svc.ProcessPreprintToPublishedLinking(ctx, preprint, "10.1038/concurrent", domain.SourceTypeArXiv, nil)
			}(i)
		}
		wg.Wait()

		created := 0
		for _, r := range results {
			require.True(t, r.Success)
			assert.Equal(t, results[0].PublishedID, r.PublishedID)
			if r.LinkCreated {
				created++
			}
		}
		assert.Equal(t, 1, created)
		assert.Equal(t, inserts+1, store.inserts)
		assert.Len(t, store.relations, 1)
	})
}

func TestService_Helpers(t *testing.T) {
	ctx := context.Background()

	t.Run("FindRecordByDOI normalizes and tolerates misses", func(t *testing.T) {
		store := newMemStore()
		preprint := store.addPreprint(t)
		svc := NewService(store, zerolog.Nop())

		got, err := svc.FindRecordByDOI(ctx, "https://doi.org/10.48550/ARXIV.2001.08361")
		require.NoError(t, err)
		assert.Equal(t, preprint.ID, got.ID)

		got, err = svc.FindRecordByDOI(ctx, "10.9999/missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CreatePublishedVersionRecord is find-or-create", func(t *testing.T) {
		store := newMemStore()
		preprint := store.addPreprint(t)
		svc := NewService(store, zerolog.Nop())

		created, first, err := svc.CreatePublishedVersionRecord(ctx, preprint, "10.1126/science.abc")
		require.NoError(t, err)
		assert.True(t, created)

		created, second, err := svc.CreatePublishedVersionRecord(ctx, preprint, "https://doi.org/10.1126/SCIENCE.ABC")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)

		_, _, err = svc.CreatePublishedVersionRecord(ctx, preprint, "na")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("LinkPreprintToPublished requires persisted records", func(t *testing.T) {
		store := newMemStore()
		preprint := store.addPreprint(t)
		svc := NewService(store, zerolog.Nop())

		ok, err := svc.LinkPreprintToPublished(ctx, preprint, &domain.Record{}, domain.SourceTypeArXiv, nil)
		assert.False(t, ok)
		assert.ErrorIs(t, err, domain.ErrNotPersisted)

		_, published, err := svc.CreatePublishedVersionRecord(ctx, preprint, "10.1126/linked")
		require.NoError(t, err)

		ok, err = svc.LinkPreprintToPublished(ctx, preprint, published, domain.SourceTypeArXiv, nil)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.LinkPreprintToPublished(ctx, preprint, published, domain.SourceTypeArXiv, nil)
		require.NoError(t, err)
		assert.True(t, ok, "an existing relation still counts as linked")
		assert.Len(t, store.relations, 1)
	})
}
