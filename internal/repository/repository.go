// Package repository talks to the remote store holding the properties
// collection. Every backend exposes the same four fallible calls.
package repository

import (
	"context"
	"errors"
	"fmt"

	"property-catalog/internal/domain"
)

var (
	ErrNotFound        = errors.New("listing not found")
	ErrVersionConflict = errors.New("listing was modified by another session")
)

// Repository is the remote persistence collaborator.
//
// List returns every row ordered by createdAt, newest first. Insert and
// Patch return the row as stored remotely. Patch only applies when the
// stored version still equals expectedVersion; zero skips that check.
type Repository interface {
	List(ctx context.Context) ([]domain.Listing, error)
	Insert(ctx context.Context, draft domain.Draft) (domain.Listing, error)
	Patch(ctx context.Context, id string, patch domain.Patch, expectedVersion int) (domain.Listing, error)
	Remove(ctx context.Context, id string) error
}

// RemoteError is a failure reported by the remote store, normalised
// across backends. Code is the backend error code (SQLSTATE or PostgREST
// code) and Status the HTTP status when the backend speaks HTTP.
type RemoteError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Code != "" && e.Status != 0:
		return fmt.Sprintf("remote store error %s (status %d): %s", e.Code, e.Status, e.Message)
	case e.Code != "":
		return fmt.Sprintf("remote store error %s: %s", e.Code, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("remote store error (status %d): %s", e.Status, e.Message)
	default:
		return "remote store error: " + e.Message
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
