// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/memelab/internal/domain"
)

// Repository persists finished sessions and the survey codes issued for them.
type Repository interface {
	// SaveSubmission stores a submission. When a record with the same
	// session id already exists, that record is returned unchanged and
	// created is false.
	SaveSubmission(ctx context.Context, rec *domain.SubmissionRecord) (saved *domain.SubmissionRecord, created bool, err error)

	// GetSubmissionBySession retrieves a submission by its session id.
	// Returns nil, nil when there is none.
	GetSubmissionBySession(ctx context.Context, sessionID string) (*domain.SubmissionRecord, error)

	// ListSubmissions returns every submission in arrival order.
	ListSubmissions(ctx context.Context) ([]*domain.SubmissionRecord, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
