package service_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	service "github.com/okian/cupping/internal/app"
	"github.com/okian/cupping/internal/domain/model"
	"github.com/okian/cupping/internal/domain/shuffle"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleIDs(samples []service.Sample) []string {
	ids := make([]string, len(samples))
	for i, s := range samples {
		ids[i] = s.PackID
	}
	return ids
}

func TestService_ViewSession_Progress(t *testing.T) {
	Convey("Given a session over two packs", t, func() {
		ctx := context.Background()
		svc := newTestService()
		defer func() { _ = svc.Close() }()
		sess := createSession(ctx, svc, openSettings(), "A", "B")

		Convey("When it is only planned", func() {
			view, err := svc.ViewSession(ctx, "u1", sess.ID)

			Convey("Then invitees get a planned view without samples", func() {
				So(err, ShouldBeNil)
				planned, ok := view.(service.PlannedView)
				So(ok, ShouldBeTrue)
				So(planned.ViewerStatus, ShouldEqual, model.ViewerPlanned)
				So(planned.CanStart, ShouldBeFalse)
			})

			Convey("Then the creator may start and end it", func() {
				view, err := svc.ViewSession(ctx, chief, sess.ID)
				So(err, ShouldBeNil)
				So(view.Meta().CanStart, ShouldBeTrue)
				So(view.Meta().CanEnd, ShouldBeTrue)
			})

			Convey("Then strangers are not invited", func() {
				_, err := svc.ViewSession(ctx, "u3", sess.ID)
				So(errors.Is(err, model.ErrNotInvited), ShouldBeTrue)
				_, err = svc.GetStatus(ctx, "u3", sess.ID)
				So(errors.Is(err, model.ErrNotInvited), ShouldBeTrue)
			})
		})

		Convey("When it is started", func() {
			_, err := svc.TransitionStatus(ctx, chief, sess.ID, model.StatusStarted)
			So(err, ShouldBeNil)

			Convey("Then an untested viewer sees samples in natural order with catalog data", func() {
				view, err := svc.ViewSession(ctx, "u1", sess.ID)
				So(err, ShouldBeNil)
				inProgress, ok := view.(service.InProgressView)
				So(ok, ShouldBeTrue)
				So(sampleIDs(inProgress.Samples), ShouldResemble, []string{"A", "B"})
				So(inProgress.Samples[0].Pack.Sample.Name, ShouldEqual, "Guji")
				So(inProgress.Samples[0].Ratings, ShouldBeEmpty)

				st, err := svc.GetStatus(ctx, "u1", sess.ID)
				So(err, ShouldBeNil)
				So(st, ShouldEqual, model.ViewerInProgress)
			})

			Convey("Then a viewer who submitted waits for the others", func() {
				_, err := svc.RecordTests(ctx, "u1", sess.ID, group, []model.TestInput{test("A", rating(model.PropertyAroma, 1, 1))})
				So(err, ShouldBeNil)

				view, err := svc.ViewSession(ctx, "u1", sess.ID)
				So(err, ShouldBeNil)
				_, ok := view.(service.DoneView)
				So(ok, ShouldBeTrue)
				st, _ := svc.GetStatus(ctx, "u1", sess.ID)
				So(st, ShouldEqual, model.ViewerDoneByCurrentUser)

				other, err := svc.GetStatus(ctx, "u2", sess.ID)
				So(err, ShouldBeNil)
				So(other, ShouldEqual, model.ViewerInProgress)
			})
		})
	})
}

func TestService_ViewSession_Ended(t *testing.T) {
	Convey("Given two packs, three invitees and two testers", t, func() {
		ctx := context.Background()
		svc := newTestService()
		defer func() { _ = svc.Close() }()
		sess := startedSession(ctx, svc, "A", "B")

		_, err := svc.RecordTests(ctx, "u1", sess.ID, group, []model.TestInput{test("A", rating(model.PropertyAroma, 4, 3))})
		So(err, ShouldBeNil)
		_, err = svc.RecordTests(ctx, chief, sess.ID, group, []model.TestInput{test("A", rating(model.PropertyAroma, 2, 5))})
		So(err, ShouldBeNil)

		Convey("When the session is archived", func() {
			_, err := svc.TransitionStatus(ctx, chief, sess.ID, model.StatusArchived)
			So(err, ShouldBeNil)

			Convey("Then every viewer sees the ended view with pooled and chief values", func() {
				view, err := svc.ViewSession(ctx, "u2", sess.ID)
				So(err, ShouldBeNil)
				ended, ok := view.(service.EndedView)
				So(ok, ShouldBeTrue)
				So(ended.ViewerStatus, ShouldEqual, model.ViewerEnded)
				So(ended.Samples, ShouldHaveLength, 2)

				a := ended.Samples[0]
				So(a.PackID, ShouldEqual, "A")
				So(a.Result.OverallScore, ShouldEqual, 1)
				So(a.Result.Properties[0], ShouldResemble, model.PropertyAggregate{
					Property:       model.PropertyAroma,
					AvgIntensity:   3,
					AvgQuality:     4,
					ChiefIntensity: 2,
					ChiefQuality:   5,
					Comments:       []string{},
				})

				b := ended.Samples[1]
				So(b.Result.OverallScore, ShouldEqual, 0)
				So(b.Result.Properties[0].AvgIntensity, ShouldEqual, 0)
			})

			Convey("Then testers also see their own ratings", func() {
				view, err := svc.ViewSession(ctx, "u1", sess.ID)
				So(err, ShouldBeNil)
				ended := view.(service.EndedView)
				So(ended.Samples[0].Ratings, ShouldResemble, []model.PropertyRating{rating(model.PropertyAroma, 4, 3)})
				So(ended.Samples[1].Ratings, ShouldBeEmpty)
			})

			Convey("Then nobody may start or end it anymore", func() {
				view, err := svc.ViewSession(ctx, chief, sess.ID)
				So(err, ShouldBeNil)
				So(view.Meta().CanStart, ShouldBeFalse)
				So(view.Meta().CanEnd, ShouldBeFalse)
				So(*view.Meta().EndedAt, ShouldEqual, fixedNow)

				st, err := svc.GetStatus(ctx, "u2", sess.ID)
				So(err, ShouldBeNil)
				So(st, ShouldEqual, model.ViewerEnded)
			})
		})
	})
}

func TestService_ViewSession_RandomOrder(t *testing.T) {
	Convey("Given a started five pack session with random sample order", t, func() {
		ctx := context.Background()
		settings := openSettings()
		settings.RandomSamplesOrder = true
		ids := []string{"A", "B", "C", "D", "E"}

		start := func(svc *service.Service) model.Session {
			sess := createSession(ctx, svc, settings, ids...)
			_, err := svc.TransitionStatus(ctx, chief, sess.ID, model.StatusStarted)
			So(err, ShouldBeNil)
			return sess
		}

		Convey("When the same viewer looks repeatedly", func() {
			svc := newTestService()
			defer func() { _ = svc.Close() }()
			sess := start(svc)

			orders := make(map[string]bool)
			for range 20 {
				view, err := svc.ViewSession(ctx, "u1", sess.ID)
				So(err, ShouldBeNil)
				got := sampleIDs(view.(service.InProgressView).Samples)
				So(slices.Sorted(slices.Values(got)), ShouldResemble, ids)
				orders[strings.Join(got, "")] = true
			}

			Convey("Then every order holds the same packs but orders vary", func() {
				So(len(orders), ShouldBeGreaterThan, 1)
			})
		})

		Convey("When two services share a seed", func() {
			first := newTestService(service.WithShuffler(shuffle.New(42)))
			second := newTestService(service.WithShuffler(shuffle.New(42)))
			defer func() { _ = first.Close(); _ = second.Close() }()
			s1, s2 := start(first), start(second)

			v1, err := first.ViewSession(ctx, "u1", s1.ID)
			So(err, ShouldBeNil)
			v2, err := second.ViewSession(ctx, "u1", s2.ID)
			So(err, ShouldBeNil)

			Convey("Then they produce the same permutation", func() {
				So(sampleIDs(v1.(service.InProgressView).Samples), ShouldResemble,
					sampleIDs(v2.(service.InProgressView).Samples))
			})
		})
	})
}

func TestService_ViewSession_Blind(t *testing.T) {
	Convey("Given a started blind session", t, func() {
		ctx := context.Background()
		svc := newTestService()
		defer func() { _ = svc.Close() }()
		settings := openSettings()
		settings.OpenSampleNameCupping = false
		sess, err := svc.CreateSession(ctx, service.CreateSessionInput{
			CreatorID: chief, GroupID: group, Settings: settings, InviteeIDs: []string{"u1"},
			Packs: []service.PackRef{{PackID: "A", HiddenName: "Sample 1"}, {PackID: "B", HiddenName: "Sample 2"}},
		})
		So(err, ShouldBeNil)
		_, err = svc.TransitionStatus(ctx, chief, sess.ID, model.StatusStarted)
		So(err, ShouldBeNil)

		Convey("When an invitee views it", func() {
			view, err := svc.ViewSession(ctx, "u1", sess.ID)
			So(err, ShouldBeNil)

			Convey("Then samples carry hidden names next to catalog data", func() {
				samples := view.(service.InProgressView).Samples
				So(samples[0].HiddenName, ShouldEqual, "Sample 1")
				So(samples[1].HiddenName, ShouldEqual, "Sample 2")
				So(samples[1].Pack.Sample.Name, ShouldEqual, "Huila")
				So(view.Meta().Settings.Blind(), ShouldBeTrue)
			})
		})
	})
}
