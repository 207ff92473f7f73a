package index

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"docchat/internal/domain"
)

// Manager owns one similarity index per user, created lazily on first use
// and persisted to disk on every mutation. Indices of different users are
// fully isolated; operations on different users run in parallel while
// mutations to a single user's index are serialized by a per-user lock
// that also covers the persistence write.
type Manager struct {
	root string

	mu    sync.Mutex
	users map[int64]*userEntry
}

type userEntry struct {
	mu  sync.RWMutex
	idx *userIndex // nil until loaded
}

// NewManager creates a manager persisting per-user artifacts under root.
func NewManager(root string) *Manager {
	return &Manager{root: root, users: make(map[int64]*userEntry)}
}

func (m *Manager) entry(userID int64) *userEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.users[userID]
	if !ok {
		e = &userEntry{}
		m.users[userID] = e
	}
	return e
}

// ensureLoaded loads the user's persisted artifacts on first touch.
// Corrupt artifacts are logged and replaced by an empty index rather than
// ever serving wrong results.
func (m *Manager) ensureLoaded(userID int64, e *userEntry) error {
	e.mu.RLock()
	loaded := e.idx != nil
	e.mu.RUnlock()
	if loaded {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.idx != nil {
		return nil
	}
	idx, err := m.loadUser(userID)
	if err != nil {
		if !errors.Is(err, domain.ErrIndexCorrupt) {
			return err
		}
		log.Printf("index: user %d: %v: reinitializing empty index", userID, err)
		idx = newUserIndex()
	}
	e.idx = idx
	return nil
}

// Insert appends an embedding to the user's index, assigns the next
// sequential vector id and persists both artifacts before returning.
// The first insert fixes the index dimension; later embeddings of a
// different length are rejected with ErrDimensionMismatch.
func (m *Manager) Insert(userID int64, rec domain.VectorRecord) (int, error) {
	if len(rec.Embedding) == 0 {
		return 0, fmt.Errorf("insert for user %d: %w: empty embedding", userID, domain.ErrDimensionMismatch)
	}
	e := m.entry(userID)
	if err := m.ensureLoaded(userID, e); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.idx
	if idx.dim == 0 {
		idx.dim = len(rec.Embedding)
	}
	if len(rec.Embedding) != idx.dim {
		return 0, fmt.Errorf("insert for user %d: %w: got %d, index has %d",
			userID, domain.ErrDimensionMismatch, len(rec.Embedding), idx.dim)
	}

	rec.UserID = userID
	rec.VectorID = idx.size()
	idx.vectors = append(idx.vectors, rec.Embedding)
	idx.records = append(idx.records, rec)

	if err := m.saveUser(userID, idx); err != nil {
		// Undo the append so memory and disk stay in agreement.
		idx.vectors = idx.vectors[:len(idx.vectors)-1]
		idx.records = idx.records[:len(idx.records)-1]
		return 0, fmt.Errorf("persist index for user %d: %w", userID, err)
	}
	return rec.VectorID, nil
}

// Search returns up to min(k, index size) nearest records for the query
// embedding. A user with no index, or an empty one, yields an empty
// result and no error.
func (m *Manager) Search(userID int64, query []float64, k int) ([]domain.SearchResult, error) {
	e := m.entry(userID)
	if err := m.ensureLoaded(userID, e); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	idx := e.idx
	if idx.size() == 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("search for user %d: %w: got %d, index has %d",
			userID, domain.ErrDimensionMismatch, len(query), idx.dim)
	}
	return idx.search(query, k), nil
}

// DeleteDocument removes every record of the given document from the
// user's index. The underlying structure does not support point deletion,
// so the index is rebuilt from the surviving records, whose embeddings
// are retained in memory and in the vectors artifact; the rebuild is
// lossless and reassigns vector ids 0..n-1 in the original relative order.
func (m *Manager) DeleteDocument(userID, documentID int64) error {
	e := m.entry(userID)
	if err := m.ensureLoaded(userID, e); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	rebuilt := e.idx.rebuildWithout(documentID)
	if rebuilt.size() == e.idx.size() {
		return nil
	}
	if err := m.saveUser(userID, rebuilt); err != nil {
		return fmt.Errorf("persist rebuilt index for user %d: %w", userID, err)
	}
	e.idx = rebuilt
	return nil
}

// Count reports how many vectors the user's index currently holds.
func (m *Manager) Count(userID int64) (int, error) {
	e := m.entry(userID)
	if err := m.ensureLoaded(userID, e); err != nil {
		return 0, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx.size(), nil
}
