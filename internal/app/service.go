// Package service implements the cupping session engine: the session
// lifecycle, test recording, result aggregation on archive and the
// per-viewer session views consumed by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cupping/internal/adapters/repository"
	"github.com/okian/cupping/internal/domain/model"
	"github.com/okian/cupping/internal/domain/scoring"
	"github.com/okian/cupping/internal/domain/shuffle"
	"github.com/okian/cupping/pkg/logger"
	"github.com/okian/cupping/pkg/metrics"
)

// Operation names used in errors, logs and metrics.
const (
	OpCreateSession    = "create_session"
	OpTransitionStatus = "transition_status"
	OpGetStatus        = "get_status"
	OpRecordTests      = "record_tests"
	OpViewSession      = "view_session"
)

const defaultMaxCommentLength = 500

// Directory answers permission and membership questions.
type Directory interface {
	// IsGroupAdmin reports whether userID administers groupID.
	IsGroupAdmin(ctx context.Context, groupID, userID string) (bool, error)
	// GroupMembers lists every member of groupID.
	GroupMembers(ctx context.Context, groupID string) ([]string, error)
}

// Catalog resolves pack ids to catalog entries. Unknown ids are omitted.
type Catalog interface {
	Packs(ctx context.Context, ids []string) (map[string]model.Pack, error)
}

// Service implements the cupping session engine.
type Service struct {
	store      repository.Store
	directory  Directory
	catalog    Catalog
	aggregator scoring.Aggregator
	shuffler   *shuffle.Shuffler
	logger     logger.Logger

	now              func() time.Time
	newID            func() string
	maxCommentLength int
}

// New constructs a Service. Without options it keeps everything in memory,
// knows no groups and no catalog packs.
func New(opts ...Option) *Service {
	s := &Service{
		aggregator:       scoring.NewInMemoryAggregator(),
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
		maxCommentLength: defaultMaxCommentLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemStore(context.Background())
	}
	if s.directory == nil {
		s.directory = emptyDirectory{}
	}
	if s.catalog == nil {
		s.catalog = emptyDirectory{}
	}
	if s.shuffler == nil {
		s.shuffler = shuffle.NewRandom()
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	return s
}

// Stats reports store record counts.
func (s *Service) Stats(ctx context.Context) repository.Stats {
	return s.store.Stats(ctx)
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}

// canManage reports whether userID may start or end the session.
func (s *Service) canManage(ctx context.Context, sess *model.Session, userID string) (bool, error) {
	if userID == sess.CreatorID {
		return true, nil
	}
	ok, err := s.directory.IsGroupAdmin(ctx, sess.GroupID, userID)
	if err != nil {
		return false, fmt.Errorf("resolving group admin: %w", err)
	}
	return ok, nil
}

// loadSession reads a session, mapping a missing row to the NotFound kind.
func loadSession(ctx context.Context, tx repository.Tx, op, sessionID string) (model.Session, error) {
	sess, err := tx.GetSession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Session{}, model.NewKind(op, model.ErrNotFound, "session_id", sessionID)
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return sess, nil
}

// fail logs and counts a failed operation and returns err unchanged.
func (s *Service) fail(ctx context.Context, op string, err error, fields ...logger.Field) error {
	kind := model.KindName(err)
	metrics.RecordDomainError(op, kind)
	fields = append(fields, logger.String("op", op), logger.String("kind", kind), logger.Error(err))
	if model.KindOf(err) != nil {
		s.logger.Warn(ctx, "operation rejected", fields...)
	} else {
		s.logger.Error(ctx, "operation failed", fields...)
	}
	return err
}

type emptyDirectory struct{}

func (emptyDirectory) IsGroupAdmin(context.Context, string, string) (bool, error) { return false, nil }
func (emptyDirectory) GroupMembers(context.Context, string) ([]string, error)     { return nil, nil }
func (emptyDirectory) Packs(context.Context, []string) (map[string]model.Pack, error) {
	return map[string]model.Pack{}, nil
}
