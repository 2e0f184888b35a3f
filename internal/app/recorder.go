package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/okian/cupping/internal/adapters/repository"
	"github.com/okian/cupping/internal/domain/dedupe"
	"github.com/okian/cupping/internal/domain/model"
	"github.com/okian/cupping/pkg/logger"
	"github.com/okian/cupping/pkg/metrics"
)

// RecordTests persists one user's tests for a started session, all or
// nothing, and returns how many were stored. A user tests each pack at most
// once; repeats are rejected with the DuplicateTest kind.
func (s *Service) RecordTests(ctx context.Context, userID, sessionID, groupID string, tests []model.TestInput) (int, error) {
	var recorded int
	err := s.store.Update(ctx, sessionID, func(ctx context.Context, tx repository.Tx) error {
		sess, err := loadSession(ctx, tx, OpRecordTests, sessionID)
		if err != nil {
			return err
		}
		if sess.GroupID != groupID {
			return model.NewKind(OpRecordTests, model.ErrAccessDenied, "session_id", sessionID, "group_id", groupID)
		}
		if !sess.IsInvited(userID) {
			return model.NewKind(OpRecordTests, model.ErrNotInvited, "session_id", sessionID, "user_id", userID)
		}
		if sess.Status != model.StatusStarted {
			return model.NewKind(OpRecordTests, model.ErrCannotRecord, "session_id", sessionID, "status", string(sess.Status))
		}
		for _, t := range tests {
			if !sess.HasPack(t.PackID) {
				return model.NewKind(OpRecordTests, model.ErrSampleNotInSession, "session_id", sessionID, "pack_id", t.PackID)
			}
		}
		if len(tests) == 0 {
			return model.NewKind(OpRecordTests, model.ErrNoTestsProvided, "session_id", sessionID)
		}
		for _, t := range tests {
			if err := s.validateRatings(t); err != nil {
				return err
			}
		}

		rows, err := s.buildTests(ctx, tx, &sess, userID, tests)
		if err != nil {
			return err
		}
		if err := tx.InsertTests(ctx, rows); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.WrapKind(OpRecordTests, model.ErrDuplicateTest, err, "session_id", sessionID, "user_id", userID)
			}
			return fmt.Errorf("inserting tests: %w", err)
		}
		recorded = len(rows)
		return nil
	})
	if err != nil {
		return 0, s.fail(ctx, OpRecordTests, err,
			logger.String("session_id", sessionID), logger.String("user_id", userID))
	}

	metrics.RecordTestsRecorded(recorded)
	s.logger.Info(ctx, "tests recorded",
		logger.String("session_id", sessionID),
		logger.String("user_id", userID),
		logger.Int("count", recorded),
	)
	return recorded, nil
}

// buildTests turns the batch into rows, rejecting packs the user already
// tested, before or within this batch.
func (s *Service) buildTests(ctx context.Context, tx repository.Tx, sess *model.Session, userID string, in []model.TestInput) ([]model.Test, error) {
	existing, err := tx.ListUserTests(ctx, sess.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user tests: %w", err)
	}
	seen := make([]dedupe.Key, len(existing))
	for i, t := range existing {
		seen[i] = dedupe.Key{SessionID: sess.ID, UserID: userID, PackID: t.PackID}
	}
	d := dedupe.NewInMemoryDeduper(dedupe.WithSeen(seen...))

	now := s.now()
	out := make([]model.Test, 0, len(in))
	for _, t := range in {
		key := dedupe.Key{SessionID: sess.ID, UserID: userID, PackID: t.PackID}
		if d.SeenAndRecord(ctx, key) {
			return nil, model.NewKind(OpRecordTests, model.ErrDuplicateTest,
				"session_id", sess.ID, "user_id", userID, "pack_id", t.PackID)
		}
		out = append(out, model.Test{
			ID:        s.newID(),
			SessionID: sess.ID,
			PackID:    t.PackID,
			UserID:    userID,
			CreatedAt: now,
			Ratings:   append([]model.PropertyRating(nil), t.Ratings...),
		})
	}
	return out, nil
}

func (s *Service) validateRatings(t model.TestInput) error {
	rated := make(map[model.Property]struct{}, len(t.Ratings))
	for _, r := range t.Ratings {
		invalid := func(reason string) error {
			return model.NewKind(OpRecordTests, model.ErrInvalidRating,
				"pack_id", t.PackID, "property", string(r.Property), "reason", reason)
		}
		if !r.Property.Valid() {
			return invalid("unknown property")
		}
		if _, dup := rated[r.Property]; dup {
			return invalid("property rated twice")
		}
		rated[r.Property] = struct{}{}
		if !inRange(r.Intensity) {
			return invalid("intensity " + strconv.Itoa(r.Intensity) + " out of range")
		}
		if !inRange(r.Quality) {
			return invalid("quality " + strconv.Itoa(r.Quality) + " out of range")
		}
		if utf8.RuneCountInString(r.Comment) > s.maxCommentLength {
			return invalid("comment too long")
		}
	}
	return nil
}

func inRange(v int) bool {
	return v >= model.MinRating && v <= model.MaxRating
}
