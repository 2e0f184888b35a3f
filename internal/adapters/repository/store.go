// Package repository defines the session store contract and an in-memory implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/cupping/internal/domain/model"
)

// Tx is a unit of work scoped to one session. Everything written through a
// Tx becomes visible atomically when the enclosing Update returns nil, and is
// discarded otherwise.
type Tx interface {
	// GetSession loads a session. Returns ErrNotFound if it does not exist.
	GetSession(ctx context.Context, id string) (model.Session, error)
	// InsertSession persists a session with its settings, packs and
	// invitations. Duplicate invitee ids are stored once.
	InsertSession(ctx context.Context, s model.Session) error
	// UpdateStatus writes the lifecycle status and end timestamp.
	UpdateStatus(ctx context.Context, id string, status model.Status, endedAt *time.Time) error

	// ListTests returns every test submitted for a session.
	ListTests(ctx context.Context, sessionID string) ([]model.Test, error)
	// ListUserTests returns the tests one user submitted for a session.
	ListUserTests(ctx context.Context, sessionID, userID string) ([]model.Test, error)
	// InsertTests persists tests with their ratings. Returns ErrDuplicate if a
	// (session, pack, user) test already exists.
	InsertTests(ctx context.Context, tests []model.Test) error

	// DeleteResults removes every aggregate result of a session.
	DeleteResults(ctx context.Context, sessionID string) error
	// InsertResults persists aggregate results with their property rows.
	InsertResults(ctx context.Context, results []model.AggregateResult) error
	// ListResults returns the aggregate results of a session.
	ListResults(ctx context.Context, sessionID string) ([]model.AggregateResult, error)
}

// TxFunc is the body of a unit of work.
type TxFunc func(ctx context.Context, tx Tx) error

// Store provides transactional access to cupping sessions.
type Store interface {
	// Update runs fn in a read-write transaction. Concurrent Updates on the
	// same session id are serialized.
	Update(ctx context.Context, sessionID string, fn TxFunc) error
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, sessionID string, fn TxFunc) error
	// Stats reports record counts for monitoring.
	Stats(ctx context.Context) Stats
	Close() error
}

// Stats summarizes store contents. Counts are -1 when the backend does not
// track them cheaply.
type Stats struct {
	Backend  string `json:"backend"`
	Sessions int    `json:"sessions"`
	Tests    int    `json:"tests"`
	Results  int    `json:"results"`
}
