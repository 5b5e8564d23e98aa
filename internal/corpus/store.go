package corpus

import (
	"crypto/sha256"
	"fmt"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
)

// Store is the read-only document collection. It is safe for concurrent use
// because nothing mutates it after NewStore returns.
type Store struct {
	docs        []Document
	byID        map[string]int
	byKind      map[Kind][]int
	fingerprint string
}

// Stats summarises the store per kind.
type Stats struct {
	Counts      map[Kind]int `json:"counts"`
	Total       int          `json:"total"`
	TotalChunks int          `json:"total_chunks"`
}

// NewStore validates docs and freezes them into a Store ordered by ID.
func NewStore(docs []Document) (*Store, error) {
	s := &Store{
		docs:   make([]Document, len(docs)),
		byID:   make(map[string]int, len(docs)),
		byKind: make(map[Kind][]int),
	}
	copy(s.docs, docs)
	sort.Slice(s.docs, func(i, j int) bool { return s.docs[i].ID < s.docs[j].ID })

	h := sha256.New()
	for i := range s.docs {
		d := &s.docs[i]
		if d.ID == "" {
			return nil, fmt.Errorf("document %q: %w", d.Title, apperrors.ErrInvalidArgument)
		}
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("document %s has unknown kind %q: %w", d.ID, d.Kind, apperrors.ErrInvalidArgument)
		}
		if _, dup := s.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDuplicateID, d.ID)
		}
		s.byID[d.ID] = i
		s.byKind[d.Kind] = append(s.byKind[d.Kind], i)
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", d.ID, d.Kind, d.Title, d.Body)
	}
	s.fingerprint = fmt.Sprintf("%x", h.Sum(nil)[:8])
	return s, nil
}

// Get returns the document with the given id.
func (s *Store) Get(id string) (*Document, bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.docs[i], true
}

// All returns every document in ascending id order. Callers must not modify
// the returned documents.
func (s *Store) All() []*Document {
	out := make([]*Document, len(s.docs))
	for i := range s.docs {
		out[i] = &s.docs[i]
	}
	return out
}

// ByKind returns the documents of one kind in ascending id order. Callers
// must not modify the returned documents.
func (s *Store) ByKind(kind Kind) []*Document {
	idx := s.byKind[kind]
	out := make([]*Document, len(idx))
	for i, j := range idx {
		out[i] = &s.docs[j]
	}
	return out
}

// Len returns the number of documents.
func (s *Store) Len() int {
	return len(s.docs)
}

// Fingerprint identifies the store contents; it changes whenever any id,
// kind, title or body changes.
func (s *Store) Fingerprint() string {
	return s.fingerprint
}

// Stats returns per-kind document counts and the total number of chunks.
func (s *Store) Stats() Stats {
	st := Stats{Counts: make(map[Kind]int, len(Kinds)), Total: len(s.docs)}
	for _, k := range Kinds {
		st.Counts[k] = len(s.byKind[k])
	}
	for i := range s.docs {
		st.TotalChunks += len(s.docs[i].Chunks)
	}
	return st
}
