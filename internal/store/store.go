// Package store holds the catalog in memory and mirrors every successful
// remote mutation into it.
//
// The collection is never modified in place: each operation publishes a
// new slice, so snapshots handed out earlier stay valid. Local state is
// only touched after the remote store has confirmed the change.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"property-catalog/internal/domain"
	"property-catalog/internal/repository"
)

// DeletePrompt is the question put to the Confirmer before a deletion.
const DeletePrompt = "Remove this listing permanently?"

var ErrNotConfirmed = errors.New("deletion not confirmed")

// Confirmer gates destructive operations behind an interactive yes/no.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

type Store struct {
	repo repository.Repository

	mu       sync.RWMutex
	listings []domain.Listing
	loaded   bool
	lastErr  *FetchError
}

func New(repo repository.Repository) *Store {
	return &Store{
		repo:     repo,
		listings: []domain.Listing{},
	}
}

// FetchAll replaces the collection with the remote one. On failure the
// previous collection is kept and the classified error is remembered.
func (s *Store) FetchAll(ctx context.Context) ([]domain.Listing, error) {
	listings, err := s.repo.List(ctx)
	if err != nil {
		fetchErr := &FetchError{Kind: Classify(err), Err: err}

		s.mu.Lock()
		s.lastErr = fetchErr
		s.mu.Unlock()

		return nil, fetchErr
	}

	if listings == nil {
		listings = []domain.Listing{}
	}

	s.mu.Lock()
	s.listings = listings
	s.loaded = true
	s.lastErr = nil
	s.mu.Unlock()

	return listings, nil
}

// Create inserts draft remotely and prepends the stored record.
func (s *Store) Create(ctx context.Context, draft domain.Draft) (domain.Listing, error) {
	if err := draft.Validate(); err != nil {
		return domain.Listing{}, err
	}

	created, err := s.repo.Insert(ctx, draft)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("create listing: %w", err)
	}

	s.mu.Lock()
	next := make([]domain.Listing, 0, len(s.listings)+1)
	next = append(next, created)
	s.listings = append(next, s.listings...)
	s.mu.Unlock()

	return created, nil
}

// Update patches id using the version currently held in memory as the
// concurrency stamp.
func (s *Store) Update(ctx context.Context, id string, patch domain.Patch) (domain.Listing, error) {
	version := 0
	if current, ok := s.Get(id); ok {
		version = current.Version
	}
	return s.UpdateAt(ctx, id, version, patch)
}

// UpdateAt patches id only if the remote record is still at version (zero
// skips the check) and swaps in the record returned by the remote store.
func (s *Store) UpdateAt(ctx context.Context, id string, version int, patch domain.Patch) (domain.Listing, error) {
	if err := patch.Validate(); err != nil {
		return domain.Listing{}, err
	}

	updated, err := s.repo.Patch(ctx, id, patch, version)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("update listing %s: %w", id, err)
	}

	s.mu.Lock()
	next := make([]domain.Listing, len(s.listings))
	for i, l := range s.listings {
		if l.ID == id {
			next[i] = updated
			continue
		}
		next[i] = l
	}
	s.listings = next
	s.mu.Unlock()

	return updated, nil
}

// Delete removes id after confirmer agrees. A declined confirmation makes
// no remote call.
func (s *Store) Delete(ctx context.Context, id string, confirmer Confirmer) error {
	if confirmer == nil || !confirmer.Confirm(ctx, DeletePrompt) {
		return ErrNotConfirmed
	}

	if err := s.repo.Remove(ctx, id); err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}

	s.mu.Lock()
	next := make([]domain.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if l.ID != id {
			next = append(next, l)
		}
	}
	s.listings = next
	s.mu.Unlock()

	return nil
}

// Snapshot returns the current collection. Callers must not modify it.
func (s *Store) Snapshot() []domain.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listings
}

func (s *Store) Get(id string) (domain.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.listings {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Listing{}, false
}

// Loaded reports whether a fetch has ever succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// LastError is the failure of the most recent fetch, or nil if it succeeded.
func (s *Store) LastError() *FetchError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
