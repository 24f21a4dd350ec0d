package diagram

import (
	"slices"
	"sync"
)

// ChangeKind names the sequence a change replaced.
type ChangeKind int

const (
	// NodesChanged is emitted after [Store.ReplaceNodes].
	NodesChanged ChangeKind = iota
	// EdgesChanged is emitted after [Store.ReplaceEdges].
	EdgesChanged
)

// String returns the change kind name used in logs and wire formats.
func (k ChangeKind) String() string {
	switch k {
	case NodesChanged:
		return "nodes"
	case EdgesChanged:
		return "edges"
	default:
		return "unknown"
	}
}

// Change describes one installed replacement.
type Change struct {
	Kind    ChangeKind
	Version uint64
}

// Store owns the canonical node and edge sequences of one editing session.
//
// All reads go through [Store.Snapshot] and all writes through
// [Store.ReplaceNodes] or [Store.ReplaceEdges]. Both replace operations are
// atomic with respect to each other and to snapshots.
//
// Subscribers run synchronously on the writer's goroutine after the store
// lock is released. They may take snapshots but must not block for long,
// since layout processes write on every simulation step.
type Store struct {
	mu      sync.RWMutex
	nodes   []Node
	edges   []Edge
	version uint64

	subMu  sync.RWMutex
	subs   map[int]func(Change)
	nextID int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(Change))}
}

// Snapshot returns a deep copy of the current graph.
func (s *Store) Snapshot() Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Graph{Nodes: slices.Clone(s.nodes), Edges: slices.Clone(s.edges)}
}

// VersionedSnapshot returns a deep copy of the current graph together with
// the version it was taken at.
func (s *Store) VersionedSnapshot() (Graph, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Graph{Nodes: slices.Clone(s.nodes), Edges: slices.Clone(s.edges)}, s.version
}

// Version returns a counter incremented by every replace.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ReplaceNodes applies fn to a copy of the node sequence and installs the
// result.
func (s *Store) ReplaceNodes(fn func([]Node) []Node) {
	s.mu.Lock()
	s.nodes = fn(slices.Clone(s.nodes))
	s.version++
	c := Change{Kind: NodesChanged, Version: s.version}
	s.mu.Unlock()
	s.notify(c)
}

// ReplaceEdges applies fn to a copy of the edge sequence and installs the
// result.
func (s *Store) ReplaceEdges(fn func([]Edge) []Edge) {
	s.mu.Lock()
	s.edges = fn(slices.Clone(s.edges))
	s.version++
	c := Change{Kind: EdgesChanged, Version: s.version}
	s.mu.Unlock()
	s.notify(c)
}

// Subscribe registers fn to be called after every replace.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(c Change) {
	s.subMu.RLock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
