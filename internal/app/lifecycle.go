package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/cupping/internal/adapters/repository"
	"github.com/okian/cupping/internal/domain/model"
	"github.com/okian/cupping/internal/domain/scoring"
	"github.com/okian/cupping/pkg/logger"
	"github.com/okian/cupping/pkg/metrics"
)

// PackRef connects a catalog pack to a new session.
type PackRef struct {
	PackID string
	// HiddenName is required for blind sessions and ignored otherwise.
	HiddenName string
}

// CreateSessionInput describes a session to create.
type CreateSessionInput struct {
	CreatorID  string
	GroupID    string
	Settings   model.Settings
	EventDate  *time.Time
	Packs      []PackRef
	InviteeIDs []string
}

// CreateSession stores a new session in the created state together with its
// packs and invitations. The creator is always invited.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (model.Session, error) {
	sess, err := s.newSession(ctx, in)
	if err != nil {
		return model.Session{}, s.fail(ctx, OpCreateSession, err, logger.String("creator_id", in.CreatorID))
	}

	err = s.store.Update(ctx, sess.ID, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.InsertSession(ctx, sess); err != nil {
			return fmt.Errorf("inserting session: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Session{}, s.fail(ctx, OpCreateSession, err, logger.String("session_id", sess.ID))
	}

	metrics.RecordSessionCreated()
	s.logger.Info(ctx, "session created",
		logger.String("session_id", sess.ID),
		logger.String("group_id", sess.GroupID),
		logger.Int("packs", len(sess.Packs)),
		logger.Int("invitees", len(sess.InviteeIDs)),
		logger.Bool("blind", sess.Settings.Blind()),
	)
	return sess, nil
}

func (s *Service) newSession(ctx context.Context, in CreateSessionInput) (model.Session, error) {
	in.Settings.Name = strings.TrimSpace(in.Settings.Name)
	switch {
	case in.CreatorID == "" || in.GroupID == "":
		return model.Session{}, model.NewKind(OpCreateSession, model.ErrInvalidSession, "reason", "missing creator or group")
	case in.Settings.Name == "":
		return model.Session{}, model.NewKind(OpCreateSession, model.ErrInvalidSession, "reason", "blank name")
	case len(in.Packs) == 0:
		return model.Session{}, model.NewKind(OpCreateSession, model.ErrInvalidSession, "reason", "no packs")
	}

	packs := make([]model.ConnectedPack, 0, len(in.Packs))
	for i, p := range in.Packs {
		if p.PackID == "" {
			return model.Session{}, model.NewKind(OpCreateSession, model.ErrInvalidSession, "reason", "blank pack id")
		}
		if slices.ContainsFunc(packs, func(c model.ConnectedPack) bool { return c.PackID == p.PackID }) {
			return model.Session{}, model.NewKind(OpCreateSession, model.ErrInvalidSession, "pack_id", p.PackID)
		}
		cp := model.ConnectedPack{PackID: p.PackID, Position: i}
		if in.Settings.Blind() {
			cp.HiddenName = strings.TrimSpace(p.HiddenName)
			if cp.HiddenName == "" {
				return model.Session{}, model.NewKind(OpCreateSession, model.ErrMissingHiddenNames, "pack_id", p.PackID)
			}
		}
		packs = append(packs, cp)
	}

	invitees, err := s.invitees(ctx, in)
	if err != nil {
		return model.Session{}, err
	}

	sess := model.Session{
		ID:         s.newID(),
		CreatorID:  in.CreatorID,
		GroupID:    in.GroupID,
		Status:     model.StatusCreated,
		CreatedAt:  s.now(),
		Settings:   in.Settings,
		Packs:      packs,
		InviteeIDs: invitees,
	}
	if in.EventDate != nil {
		d := *in.EventDate
		sess.EventDate = &d
	}
	return sess, nil
}

// invitees resolves the invitation set, creator first, without duplicates.
func (s *Service) invitees(ctx context.Context, in CreateSessionInput) ([]string, error) {
	candidates := in.InviteeIDs
	switch {
	case in.Settings.SingleUserSession:
		candidates = nil
	case in.Settings.InviteAllTeammates:
		members, err := s.directory.GroupMembers(ctx, in.GroupID)
		if err != nil {
			return nil, fmt.Errorf("listing group members: %w", err)
		}
		candidates = members
	}

	out := []string{in.CreatorID}
	for _, id := range candidates {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// TransitionStatus moves a session one step forward. Archiving aggregates
// the results in the same unit of work, so a failed aggregation leaves the
// session started.
func (s *Service) TransitionStatus(ctx context.Context, requesterID, sessionID string, target model.Status) (model.Session, error) {
	var out model.Session
	err := s.store.Update(ctx, sessionID, func(ctx context.Context, tx repository.Tx) error {
		sess, err := loadSession(ctx, tx, OpTransitionStatus, sessionID)
		if err != nil {
			return err
		}
		ok, err := s.canManage(ctx, &sess, requesterID)
		if err != nil {
			return err
		}
		if !ok {
			return model.NewKind(OpTransitionStatus, model.ErrForbidden, "session_id", sessionID, "user_id", requesterID)
		}
		if !model.CanTransition(sess.Status, target) {
			return model.NewKind(OpTransitionStatus, model.ErrInvalidTransition,
				"session_id", sessionID, "from", string(sess.Status), "to", string(target))
		}

		var endedAt *time.Time
		if target == model.StatusArchived {
			if err := s.archive(ctx, tx, &sess); err != nil {
				return err
			}
			now := s.now()
			endedAt = &now
		}
		if err := tx.UpdateStatus(ctx, sessionID, target, endedAt); err != nil {
			return fmt.Errorf("updating status: %w", err)
		}
		sess.Status = target
		sess.EndedAt = endedAt
		out = sess
		return nil
	})
	if err != nil {
		return model.Session{}, s.fail(ctx, OpTransitionStatus, err,
			logger.String("session_id", sessionID), logger.String("target", string(target)))
	}

	metrics.RecordStatusTransition(string(target))
	s.logger.Info(ctx, "session status changed",
		logger.String("session_id", sessionID),
		logger.String("status", string(target)),
		logger.String("by", requesterID),
	)
	return out, nil
}

// archive replaces the session's results with a fresh aggregation of every
// submitted test.
func (s *Service) archive(ctx context.Context, tx repository.Tx, sess *model.Session) error {
	start := time.Now()
	if err := tx.DeleteResults(ctx, sess.ID); err != nil {
		return fmt.Errorf("deleting results: %w", err)
	}
	tests, err := tx.ListTests(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("loading tests: %w", err)
	}

	packIDs := make([]string, len(sess.Packs))
	for i, p := range sess.Packs {
		packIDs[i] = p.PackID
	}
	results, err := s.aggregator.Aggregate(ctx, scoring.Input{
		SessionID: sess.ID,
		CreatorID: sess.CreatorID,
		PackIDs:   packIDs,
		Tests:     tests,
	})
	if errors.Is(err, model.ErrNoTestResults) {
		return model.NewKind(OpTransitionStatus, model.ErrNoTestResults, "session_id", sess.ID)
	}
	if err != nil {
		return fmt.Errorf("aggregating results: %w", err)
	}
	if err := tx.InsertResults(ctx, results); err != nil {
		return fmt.Errorf("inserting results: %w", err)
	}

	elapsed := time.Since(start)
	metrics.RecordAggregation(float64(elapsed.Microseconds()) / 1000)
	s.logger.Debug(ctx, "results aggregated",
		logger.String("session_id", sess.ID),
		logger.Int("tests", len(tests)),
		logger.Int("results", len(results)),
		logger.Duration("elapsed", elapsed),
	)
	return nil
}

// GetStatus returns the session status as seen by an invited user.
func (s *Service) GetStatus(ctx context.Context, requesterID, sessionID string) (model.ViewerStatus, error) {
	var status model.ViewerStatus
	err := s.store.View(ctx, sessionID, func(ctx context.Context, tx repository.Tx) error {
		sess, err := loadSession(ctx, tx, OpGetStatus, sessionID)
		if err != nil {
			return err
		}
		if !sess.IsInvited(requesterID) {
			return model.NewKind(OpGetStatus, model.ErrNotInvited, "session_id", sessionID, "user_id", requesterID)
		}
		own, err := tx.ListUserTests(ctx, sessionID, requesterID)
		if err != nil {
			return fmt.Errorf("loading user tests: %w", err)
		}
		status = model.ViewerStatusFor(sess.Status, len(own) > 0)
		return nil
	})
	if err != nil {
		return "", s.fail(ctx, OpGetStatus, err, logger.String("session_id", sessionID))
	}
	return status, nil
}
