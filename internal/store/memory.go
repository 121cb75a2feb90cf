package store

import (
	"context"
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/coder/hnsw"

	"github.com/uidex/uidex/internal/component"
	dexerrors "github.com/uidex/uidex/internal/errors"
)

// Default HNSW parameters.
const (
	defaultM        = 16
	defaultEfSearch = 20
)

// MemoryStore implements VectorStore with an in-process HNSW graph.
// It backs tests and offline indexing; nothing leaves the process
// unless Save is called.
type MemoryStore struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dims  int

	records map[string]*component.Record
	vectors map[string][]float32

	// ID mapping (record ID <-> graph key). Replaced entries are
	// lazily deleted: the old node stays in the graph but loses its
	// key mapping, because coder/hnsw misbehaves when the last node
	// is removed. stale counts those orphaned nodes so Search can
	// over-fetch past them; the graph is rebuilt once they outnumber
	// the live records.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	stale   int

	closed bool
}

// memorySnapshot is the gob shape written by Save. The graph itself is
// rebuilt from the vectors on Load.
type memorySnapshot struct {
	Dimensions int
	Records    map[string]*component.Record
	Vectors    map[string][]float32
}

// NewMemoryStore creates an empty in-memory store for vectors of the
// given dimension.
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{
		graph:   newGraph(),
		dims:    dimensions,
		records: make(map[string]*component.Record),
		vectors: make(map[string][]float32),
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
	}
}

func newGraph() *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = defaultM
	graph.EfSearch = defaultEfSearch
	graph.Ml = 0.25
	return graph
}

func (s *MemoryStore) errClosed() error {
	return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "vector store is closed", nil)
}

// Upsert inserts or replaces the record keyed by its ID.
func (s *MemoryStore) Upsert(ctx context.Context, rec *component.Record, vector []float32) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if len(vector) != s.dims {
		return dexerrors.New(dexerrors.ErrCodeDimensionMismatch, "vector dimension mismatch", nil).
			WithDetail("expected", strconv.Itoa(s.dims)).
			WithDetail("got", strconv.Itoa(len(vector)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.errClosed()
	}

	if oldKey, exists := s.idMap[rec.ID]; exists {
		delete(s.keyMap, oldKey)
		delete(s.idMap, rec.ID)
		s.stale++
	}

	key := s.nextKey
	s.nextKey++

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	s.graph.Add(hnsw.MakeNode(key, vec))
	s.idMap[rec.ID] = key
	s.keyMap[key] = rec.ID
	s.records[rec.ID] = rec.Clone()
	s.vectors[rec.ID] = vec

	if s.stale > len(s.idMap) {
		s.compactLocked()
	}

	return nil
}

// compactLocked rebuilds the graph from the live vectors, dropping the
// lazily-deleted nodes. Caller holds mu for writing.
func (s *MemoryStore) compactLocked() {
	s.graph = newGraph()
	s.idMap = make(map[string]uint64, len(s.vectors))
	s.keyMap = make(map[uint64]string, len(s.vectors))
	s.nextKey = 0
	s.stale = 0

	for id, vec := range s.vectors {
		key := s.nextKey
		s.nextKey++
		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
	}
}

// Get returns the stored record by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*component.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, s.errClosed()
	}

	rec, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

// Search returns up to limit hits nearest to the query vector.
func (s *MemoryStore) Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]*Hit, error) {
	if len(vector) != s.dims {
		return nil, dexerrors.New(dexerrors.ErrCodeDimensionMismatch, "query dimension mismatch", nil).
			WithDetail("expected", strconv.Itoa(s.dims)).
			WithDetail("got", strconv.Itoa(len(vector)))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, s.errClosed()
	}
	if s.graph.Len() == 0 || limit <= 0 {
		return []*Hit{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeInPlace(query)

	// Over-fetch past the lazily-deleted nodes so stale graph entries
	// never crowd live records out of the top-k. Filtered searches
	// scan the whole graph so a restrictive filter can still fill the
	// limit.
	k := limit + s.stale
	if !filter.IsZero() || k > s.graph.Len() {
		k = s.graph.Len()
	}

	nodes := s.graph.Search(query, k)

	hits := make([]*Hit, 0, limit)
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue // lazily deleted
		}
		rec := s.records[id]
		if !filter.Matches(rec) {
			continue
		}

		distance := s.graph.Distance(query, node.Value)
		hits = append(hits, &Hit{
			Record: rec.Clone(),
			Score:  1 - distance/2,
		})
		if len(hits) == limit {
			break
		}
	}

	return hits, nil
}

// Count returns the number of indexed records.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, s.errClosed()
	}
	return len(s.records), nil
}

// Stats aggregates per-library, per-kind, and per-category counts.
func (s *MemoryStore) Stats(ctx context.Context) (*CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, s.errClosed()
	}

	stats := &CollectionStats{
		Collection:      DefaultCollection,
		TotalComponents: len(s.records),
		Dimensions:      s.dims,
		Libraries:       make(map[string]int),
		SourceKinds:     make(map[string]int),
		Categories:      make(map[string]int),
	}
	for _, rec := range s.records {
		stats.Libraries[rec.Library]++
		stats.SourceKinds[string(rec.SourceKind)]++
		if rec.Category != "" {
			stats.Categories[rec.Category]++
		}
	}
	return stats, nil
}

// Clear removes every record.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.errClosed()
	}

	s.graph = newGraph()
	s.records = make(map[string]*component.Record)
	s.vectors = make(map[string][]float32)
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]string)
	s.nextKey = 0
	s.stale = 0
	return nil
}

// Close releases the graph. Further calls fail.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// Save persists the store to disk with a temp-file-plus-rename write.
func (s *MemoryStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return s.errClosed()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "create store directory", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "create snapshot file", err)
	}

	snapshot := memorySnapshot{
		Dimensions: s.dims,
		Records:    s.records,
		Vectors:    s.vectors,
	}
	if err := gob.NewEncoder(file).Encode(snapshot); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "encode snapshot", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "close snapshot file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "rename snapshot file", err)
	}
	return nil
}

// Load replaces the store contents with a previously saved snapshot.
// The graph is rebuilt from the saved vectors.
func (s *MemoryStore) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "open snapshot file", err)
	}
	defer file.Close()

	var snapshot memorySnapshot
	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "decode snapshot", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.errClosed()
	}

	s.graph = newGraph()
	s.dims = snapshot.Dimensions
	s.records = snapshot.Records
	s.vectors = snapshot.Vectors
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]string)
	s.nextKey = 0
	s.stale = 0

	for id, vec := range snapshot.Vectors {
		key := s.nextKey
		s.nextKey++
		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
	}
	return nil
}

var _ VectorStore = (*MemoryStore)(nil)

// normalizeInPlace scales a vector to unit length.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
