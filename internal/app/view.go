package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/cupping/internal/adapters/repository"
	"github.com/okian/cupping/internal/domain/model"
	"github.com/okian/cupping/internal/domain/shuffle"
	"github.com/okian/cupping/pkg/logger"
)

// SessionView is what one invited user sees of a session. It is one of
// PlannedView, InProgressView, DoneView or EndedView.
type SessionView interface {
	Meta() Header
	isSessionView()
}

// Header is the session metadata common to every view.
type Header struct {
	SessionID    string
	GroupID      string
	CreatorID    string
	Name         string
	Status       model.Status
	ViewerStatus model.ViewerStatus
	CreatedAt    time.Time
	EventDate    *time.Time
	EndedAt      *time.Time
	Settings     model.Settings
	// CanStart and CanEnd are set for the creator and group administrators
	// until the session has ended.
	CanStart bool
	CanEnd   bool
}

// Sample is one connected pack as presented to the viewer.
type Sample struct {
	PackID     string
	Position   int
	HiddenName string
	// Pack holds catalog data, nil when the catalog does not know the pack.
	Pack *model.Pack
	// Ratings are the viewer's own ratings for this pack.
	Ratings []model.PropertyRating
}

// EndedSample is a pack of an ended session with its aggregated result.
type EndedSample struct {
	Sample
	Result model.AggregateResult
}

// PlannedView is shown before the session starts. It carries no samples.
type PlannedView struct{ Header }

// InProgressView lists the samples with the viewer's own ratings, shuffled
// per call when the session asks for random order.
type InProgressView struct {
	Header
	Samples []Sample
}

// DoneView is shown to a viewer who already submitted while others taste.
type DoneView struct{ Header }

// EndedView lists every sample with its aggregated result.
type EndedView struct {
	Header
	Samples []EndedSample
}

func (v PlannedView) Meta() Header    { return v.Header }
func (v InProgressView) Meta() Header { return v.Header }
func (v DoneView) Meta() Header       { return v.Header }
func (v EndedView) Meta() Header      { return v.Header }

func (PlannedView) isSessionView()    {}
func (InProgressView) isSessionView() {}
func (DoneView) isSessionView()       {}
func (EndedView) isSessionView()      {}

// viewSnapshot is what one read unit of work collects for a view.
type viewSnapshot struct {
	session model.Session
	own     []model.Test
	results []model.AggregateResult
}

// ViewSession builds the per-viewer representation of a session.
func (s *Service) ViewSession(ctx context.Context, requesterID, sessionID string) (SessionView, error) {
	view, err := s.viewSession(ctx, requesterID, sessionID)
	if err != nil {
		return nil, s.fail(ctx, OpViewSession, err,
			logger.String("session_id", sessionID), logger.String("user_id", requesterID))
	}
	return view, nil
}

func (s *Service) viewSession(ctx context.Context, requesterID, sessionID string) (SessionView, error) {
	var snap viewSnapshot
	err := s.store.View(ctx, sessionID, func(ctx context.Context, tx repository.Tx) error {
		sess, err := loadSession(ctx, tx, OpViewSession, sessionID)
		if err != nil {
			return err
		}
		if !sess.IsInvited(requesterID) {
			return model.NewKind(OpViewSession, model.ErrNotInvited, "session_id", sessionID, "user_id", requesterID)
		}
		snap.session = sess
		if snap.own, err = tx.ListUserTests(ctx, sessionID, requesterID); err != nil {
			return fmt.Errorf("loading user tests: %w", err)
		}
		if sess.Status == model.StatusArchived {
			if snap.results, err = tx.ListResults(ctx, sessionID); err != nil {
				return fmt.Errorf("loading results: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sess := &snap.session
	header, err := s.header(ctx, sess, requesterID, len(snap.own) > 0)
	if err != nil {
		return nil, err
	}

	switch header.ViewerStatus {
	case model.ViewerPlanned:
		return PlannedView{Header: header}, nil
	case model.ViewerDoneByCurrentUser:
		return DoneView{Header: header}, nil
	case model.ViewerInProgress:
		samples, err := s.samples(ctx, sess, snap.own)
		if err != nil {
			return nil, err
		}
		if sess.Settings.RandomSamplesOrder {
			shuffle.Slice(s.shuffler, samples)
		}
		return InProgressView{Header: header, Samples: samples}, nil
	default:
		samples, err := s.samples(ctx, sess, snap.own)
		if err != nil {
			return nil, err
		}
		byPack := make(map[string]model.AggregateResult, len(snap.results))
		for _, r := range snap.results {
			byPack[r.PackID] = r
		}
		ended := make([]EndedSample, len(samples))
		for i, smp := range samples {
			ended[i] = EndedSample{Sample: smp, Result: byPack[smp.PackID]}
		}
		return EndedView{Header: header, Samples: ended}, nil
	}
}

func (s *Service) header(ctx context.Context, sess *model.Session, viewerID string, hasTested bool) (Header, error) {
	h := Header{
		SessionID:    sess.ID,
		GroupID:      sess.GroupID,
		CreatorID:    sess.CreatorID,
		Name:         sess.Settings.Name,
		Status:       sess.Status,
		ViewerStatus: model.ViewerStatusFor(sess.Status, hasTested),
		CreatedAt:    sess.CreatedAt,
		EventDate:    sess.EventDate,
		EndedAt:      sess.EndedAt,
		Settings:     sess.Settings,
	}
	if h.ViewerStatus == model.ViewerEnded {
		return h, nil
	}
	manage, err := s.canManage(ctx, sess, viewerID)
	if err != nil {
		return Header{}, err
	}
	h.CanStart, h.CanEnd = manage, manage
	return h, nil
}

// samples lists connected packs in natural order with catalog data and the
// viewer's own ratings.
func (s *Service) samples(ctx context.Context, sess *model.Session, own []model.Test) ([]Sample, error) {
	ids := make([]string, len(sess.Packs))
	for i, p := range sess.Packs {
		ids[i] = p.PackID
	}
	catalog, err := s.catalog.Packs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading catalog packs: %w", err)
	}
	ratings := make(map[string][]model.PropertyRating, len(own))
	for _, t := range own {
		ratings[t.PackID] = t.Ratings
	}

	out := make([]Sample, len(sess.Packs))
	for i, p := range sess.Packs {
		smp := Sample{
			PackID:     p.PackID,
			Position:   p.Position,
			HiddenName: p.HiddenName,
			Ratings:    ratings[p.PackID],
		}
		if cp, ok := catalog[p.PackID]; ok {
			smp.Pack = &cp
		}
		out[i] = smp
	}
	return out, nil
}
