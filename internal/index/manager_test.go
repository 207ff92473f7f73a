package index

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir())
}

func record(chunkID, docID int64, text string, embedding []float64) domain.VectorRecord {
	return domain.VectorRecord{
		ChunkID:    chunkID,
		DocumentID: docID,
		Text:       text,
		Embedding:  embedding,
		Metadata:   map[string]string{"chunk_index": "0"},
	}
}

func TestInsertAssignsSequentialVectorIDs(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 5; i++ {
		id, err := m.Insert(1, record(int64(i+1), 10, "chunk", []float64{float64(i), 1, 2}))
		require.NoError(t, err)
		assert.Equal(t, i, id)
	}
	n, err := m.Count(1)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestIndexInvariant(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 20; i++ {
		_, err := m.Insert(7, record(int64(i), int64(i%3), "t", []float64{float64(i), float64(i * i)}))
		require.NoError(t, err)
	}

	e := m.entry(7)
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx := e.idx
	require.Equal(t, len(idx.vectors), len(idx.records))
	for i, rec := range idx.records {
		assert.Equal(t, i, rec.VectorID)
		assert.Len(t, idx.vectors[i], idx.dim)
	}
}

func TestDimensionMismatchRejected(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Insert(1, record(1, 1, "a", []float64{1, 2, 3}))
	require.NoError(t, err)

	_, err = m.Insert(1, record(2, 1, "b", []float64{1, 2}))
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = m.Insert(1, record(3, 1, "c", nil))
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// The failed inserts must not have touched the index.
	n, err := m.Count(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSearchExactMatchFirst(t *testing.T) {
	m := newTestManager(t)
	vectors := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	for i, v := range vectors {
		_, err := m.Insert(1, record(int64(i+1), 1, "chunk", v))
		require.NoError(t, err)
	}

	res, err := m.Search(1, []float64{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, int64(2), res[0].Record.ChunkID)
	assert.InDelta(t, 0, res[0].Distance, 1e-9)
	assert.Greater(t, res[1].Distance, res[0].Distance)
}

func TestSearchTieBrokenByLowerVectorID(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 3; i++ {
		_, err := m.Insert(1, record(int64(i+1), 1, "same", []float64{1, 1}))
		require.NoError(t, err)
	}
	res, err := m.Search(1, []float64{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	for i, r := range res {
		assert.Equal(t, i, r.Record.VectorID)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	m := newTestManager(t)
	res, err := m.Search(42, []float64{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchCapsAtIndexSize(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Insert(1, record(1, 1, "only", []float64{1, 2}))
	require.NoError(t, err)
	res, err := m.Search(1, []float64{1, 2}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestUserIsolation(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Insert(1, record(1, 1, "alpha secret", []float64{1, 0}))
	require.NoError(t, err)
	_, err = m.Insert(2, record(2, 2, "beta", []float64{0, 1}))
	require.NoError(t, err)

	res, err := m.Search(2, []float64{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, int64(2), res[0].Record.ChunkID)
	assert.Equal(t, int64(2), res[0].Record.UserID)
}

func TestDeleteDocumentRebuild(t *testing.T) {
	m := newTestManager(t)
	// Two documents interleaved so the rebuild has to renumber.
	_, err := m.Insert(1, record(1, 100, "keep-a", []float64{1, 0, 0}))
	require.NoError(t, err)
	_, err = m.Insert(1, record(2, 200, "drop-a", []float64{0, 1, 0}))
	require.NoError(t, err)
	_, err = m.Insert(1, record(3, 100, "keep-b", []float64{0, 0, 1}))
	require.NoError(t, err)
	_, err = m.Insert(1, record(4, 200, "drop-b", []float64{1, 1, 1}))
	require.NoError(t, err)

	require.NoError(t, m.DeleteDocument(1, 200))

	n, err := m.Count(1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Survivors keep their embeddings and relative order, with fresh ids.
	res, err := m.Search(1, []float64{0, 0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, int64(3), res[0].Record.ChunkID)
	assert.InDelta(t, 0, res[0].Distance, 1e-9)
	for _, r := range res {
		assert.NotEqual(t, int64(200), r.Record.DocumentID)
	}

	e := m.entry(1)
	e.mu.RLock()
	defer e.mu.RUnlock()
	require.Equal(t, 2, e.idx.size())
	assert.Equal(t, 0, e.idx.records[0].VectorID)
	assert.Equal(t, int64(1), e.idx.records[0].ChunkID)
	assert.Equal(t, 1, e.idx.records[1].VectorID)
	assert.Equal(t, int64(3), e.idx.records[1].ChunkID)
}

func TestDeleteUnknownDocumentIsNoop(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Insert(1, record(1, 1, "a", []float64{1}))
	require.NoError(t, err)
	require.NoError(t, m.DeleteDocument(1, 999))
	n, err := m.Count(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPersistenceRoundTrip(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	_, err := m.Insert(3, record(1, 1, "persisted chunk", []float64{0.5, 0.25}))
	require.NoError(t, err)
	_, err = m.Insert(3, record(2, 1, "another chunk", []float64{0.1, 0.9}))
	require.NoError(t, err)

	// A fresh manager over the same root must see identical state.
	reopened := NewManager(root)
	res, err := reopened.Search(3, []float64{0.5, 0.25}, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, int64(1), res[0].Record.ChunkID)
	assert.InDelta(t, 0, res[0].Distance, 1e-9)
	assert.Equal(t, "persisted chunk", res[0].Record.Text)
	assert.Equal(t, "0", res[0].Record.Metadata["chunk_index"])
}

func TestDeleteSurvivesReload(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	_, err := m.Insert(1, record(1, 100, "keep", []float64{1, 0}))
	require.NoError(t, err)
	_, err = m.Insert(1, record(2, 200, "drop", []float64{0, 1}))
	require.NoError(t, err)
	require.NoError(t, m.DeleteDocument(1, 200))

	reopened := NewManager(root)
	res, err := reopened.Search(1, []float64{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, int64(100), res[0].Record.DocumentID)
}

func TestCorruptArtifactsRecoverEmpty(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	_, err := m.Insert(1, record(1, 1, "a", []float64{1, 2}))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "user_1", recordsFile), []byte("not json"), 0o644))

	reopened := NewManager(root)
	res, err := reopened.Search(1, []float64{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestMissingMappingArtifactRecoverEmpty(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	_, err := m.Insert(1, record(1, 1, "a", []float64{1, 2}))
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "user_1", recordsFile)))

	reopened := NewManager(root)
	n, err := reopened.Count(1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConcurrentUsers(t *testing.T) {
	m := newTestManager(t)
	const perUser = 25

	var wg sync.WaitGroup
	for user := int64(1); user <= 4; user++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				_, err := m.Insert(userID, record(int64(i), userID, "c", []float64{float64(userID), float64(i)}))
				assert.NoError(t, err)
				_, err = m.Search(userID, []float64{float64(userID), 0}, 3)
				assert.NoError(t, err)
			}
		}(user)
	}
	wg.Wait()

	for user := int64(1); user <= 4; user++ {
		n, err := m.Count(user)
		require.NoError(t, err)
		assert.Equal(t, perUser, n)
		res, err := m.Search(user, []float64{float64(user), 0}, perUser)
		require.NoError(t, err)
		for _, r := range res {
			assert.Equal(t, user, r.Record.UserID)
		}
	}
}
