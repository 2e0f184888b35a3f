package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	service "github.com/okian/cupping/internal/app"
	"github.com/okian/cupping/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_CreateSession(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := newTestService()
		defer func() { _ = svc.Close() }()

		Convey("When creating an open session with chosen invitees", func() {
			sess, err := svc.CreateSession(ctx, service.CreateSessionInput{
				CreatorID:  chief,
				GroupID:    group,
				Settings:   openSettings(),
				Packs:      []service.PackRef{{PackID: "A", HiddenName: "ignored"}, {PackID: "B"}},
				InviteeIDs: []string{"u1", chief, "u1", "", "u2"},
			})

			Convey("Then it is created with the creator invited once", func() {
				So(err, ShouldBeNil)
				So(sess.ID, ShouldEqual, "id-001")
				So(sess.Status, ShouldEqual, model.StatusCreated)
				So(sess.CreatedAt, ShouldEqual, fixedNow)
				So(sess.InviteeIDs, ShouldResemble, []string{chief, "u1", "u2"})
			})

			Convey("And hidden names are not kept for open sessions", func() {
				So(sess.Packs, ShouldResemble, []model.ConnectedPack{
					{PackID: "A", Position: 0},
					{PackID: "B", Position: 1},
				})
			})

			Convey("And its status starts as planned for the creator", func() {
				st, err := svc.GetStatus(ctx, chief, sess.ID)
				So(err, ShouldBeNil)
				So(st, ShouldEqual, model.ViewerPlanned)
			})
		})

		Convey("When inviting all teammates", func() {
			settings := openSettings()
			settings.InviteAllTeammates = true
			sess, err := svc.CreateSession(ctx, service.CreateSessionInput{
				CreatorID: "u3", GroupID: group, Settings: settings, Packs: packs("A"),
				InviteeIDs: []string{"stranger"},
			})

			Convey("Then every group member is invited and chosen ids are ignored", func() {
				So(err, ShouldBeNil)
				So(sess.InviteeIDs, ShouldResemble, []string{"u3", owner, chief, "u1", "u2"})
			})
		})

		Convey("When creating a single-user session", func() {
			settings := openSettings()
			settings.SingleUserSession = true
			settings.InviteAllTeammates = true
			sess, err := svc.CreateSession(ctx, service.CreateSessionInput{
				CreatorID: chief, GroupID: group, Settings: settings, Packs: packs("A"),
				InviteeIDs: []string{"u1"},
			})

			Convey("Then only the creator is invited", func() {
				So(err, ShouldBeNil)
				So(sess.InviteeIDs, ShouldResemble, []string{chief})
			})
		})

		Convey("When creating a blind session", func() {
			settings := openSettings()
			settings.OpenSampleNameCupping = false

			Convey("And every pack has a hidden name", func() {
				sess, err := svc.CreateSession(ctx, service.CreateSessionInput{
					CreatorID: chief, GroupID: group, Settings: settings,
					Packs: []service.PackRef{{PackID: "A", HiddenName: " #1 "}, {PackID: "B", HiddenName: "#2"}},
				})

				Convey("Then the hidden names are stored", func() {
					So(err, ShouldBeNil)
					So(sess.Packs, ShouldHaveLength, 2)
					So(sess.Packs[0].HiddenName, ShouldEqual, "#1")
					So(sess.Packs[1].HiddenName, ShouldEqual, "#2")
				})
			})

			Convey("And a pack lacks a hidden name", func() {
				_, err := svc.CreateSession(ctx, service.CreateSessionInput{
					CreatorID: chief, GroupID: group, Settings: settings,
					Packs: []service.PackRef{{PackID: "A", HiddenName: "#1"}, {PackID: "B", HiddenName: "  "}},
				})

				Convey("Then it fails with MissingHiddenNames", func() {
					So(errors.Is(err, model.ErrMissingHiddenNames), ShouldBeTrue)
					var de *model.Error
					So(errors.As(err, &de), ShouldBeTrue)
					So(de.IDs["pack_id"], ShouldEqual, "B")
				})
			})
		})

		Convey("When the input is malformed", func() {
			cases := []struct {
				name string
				in   service.CreateSessionInput
			}{
				{"no packs", service.CreateSessionInput{CreatorID: chief, GroupID: group, Settings: openSettings()}},
				{"blank name", service.CreateSessionInput{CreatorID: chief, GroupID: group, Packs: packs("A"),
					Settings: model.Settings{Name: "  ", OpenSampleNameCupping: true}}},
				{"no creator", service.CreateSessionInput{GroupID: group, Settings: openSettings(), Packs: packs("A")}},
				{"repeated pack", service.CreateSessionInput{CreatorID: chief, GroupID: group, Settings: openSettings(),
					Packs: packs("A", "A")}},
			}
			for _, tc := range cases {
				Convey("Then "+tc.name+" fails with InvalidSession", func() {
					_, err := svc.CreateSession(ctx, tc.in)
					So(errors.Is(err, model.ErrInvalidSession), ShouldBeTrue)
					So(svc.Stats(ctx).Sessions, ShouldEqual, 0)
				})
			}
		})
	})
}

func TestService_TransitionStatus(t *testing.T) {
	Convey("Given a created session", t, func() {
		ctx := context.Background()
		svc := newTestService()
		defer func() { _ = svc.Close() }()
		sess := createSession(ctx, svc, openSettings(), "A", "B")

		Convey("When an invitee who is neither creator nor admin starts it", func() {
			_, err := svc.TransitionStatus(ctx, "u1", sess.ID, model.StatusStarted)

			Convey("Then it is forbidden", func() {
				So(errors.Is(err, model.ErrForbidden), ShouldBeTrue)
			})
		})

		Convey("When the group admin starts it", func() {
			got, err := svc.TransitionStatus(ctx, owner, sess.ID, model.StatusStarted)

			Convey("Then the session is started without an end date", func() {
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.StatusStarted)
				So(got.EndedAt, ShouldBeNil)
			})
		})

		Convey("When skipping or repeating states", func() {
			for _, target := range []model.Status{model.StatusArchived, model.StatusCreated, "paused"} {
				_, err := svc.TransitionStatus(ctx, chief, sess.ID, target)
				So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
			}
		})

		Convey("When the session is unknown", func() {
			_, err := svc.TransitionStatus(ctx, chief, "missing", model.StatusStarted)

			Convey("Then it is not found", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the session is started", func() {
			_, err := svc.TransitionStatus(ctx, chief, sess.ID, model.StatusStarted)
			So(err, ShouldBeNil)

			Convey("And archived with no tests", func() {
				_, err := svc.TransitionStatus(ctx, chief, sess.ID, model.StatusArchived)

				Convey("Then it fails with NoTestResults and stays started", func() {
					So(errors.Is(err, model.ErrNoTestResults), ShouldBeTrue)
					view, err := svc.ViewSession(ctx, chief, sess.ID)
					So(err, ShouldBeNil)
					So(view.Meta().Status, ShouldEqual, model.StatusStarted)
				})
			})

			Convey("And moved backward", func() {
				_, err := svc.TransitionStatus(ctx, chief, sess.ID, model.StatusCreated)

				Convey("Then it fails with InvalidTransition", func() {
					So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
				})
			})

			Convey("And archived after tests", func() {
				_, err := svc.RecordTests(ctx, "u1", sess.ID, group, []model.TestInput{
					test("A", rating(model.PropertyAroma, 4, 3)),
				})
				So(err, ShouldBeNil)
				got, err := svc.TransitionStatus(ctx, chief, sess.ID, model.StatusArchived)

				Convey("Then it is archived with an end date", func() {
					So(err, ShouldBeNil)
					So(got.Status, ShouldEqual, model.StatusArchived)
					So(*got.EndedAt, ShouldEqual, fixedNow)
					So(svc.Stats(ctx).Results, ShouldEqual, 2)
				})

				Convey("Then archiving again is an invalid transition", func() {
					_, err := svc.TransitionStatus(ctx, chief, sess.ID, model.StatusArchived)
					So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
				})
			})
		})
	})
}

func TestService_ConcurrentArchive(t *testing.T) {
	Convey("Given a started session with tests", t, func() {
		ctx := context.Background()
		svc := newTestService()
		defer func() { _ = svc.Close() }()
		sess := startedSession(ctx, svc, "A")
		_, err := svc.RecordTests(ctx, "u1", sess.ID, group, []model.TestInput{test("A", rating(model.PropertyBody, 2, 2))})
		So(err, ShouldBeNil)

		Convey("When many archive requests race", func() {
			const n = 16
			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					requester := chief
					if i%2 == 1 {
						requester = owner
					}
					_, errs[i] = svc.TransitionStatus(ctx, requester, sess.ID, model.StatusArchived)
				}()
			}
			wg.Wait()

			Convey("Then exactly one wins and the rest see an invalid transition", func() {
				var ok, invalid int
				for _, err := range errs {
					switch {
					case err == nil:
						ok++
					case errors.Is(err, model.ErrInvalidTransition):
						invalid++
					}
				}
				So(ok, ShouldEqual, 1)
				So(invalid, ShouldEqual, n-1)
				So(svc.Stats(ctx).Results, ShouldEqual, 1)
			})
		})
	})
}

func TestService_RecordDuringArchive(t *testing.T) {
	Convey("Given a started session where one tester submitted zeros", t, func() {
		ctx := context.Background()
		svc := newTestService()
		defer func() { _ = svc.Close() }()
		sess := startedSession(ctx, svc, "A")
		_, err := svc.RecordTests(ctx, "u1", sess.ID, group, []model.TestInput{test("A", rating(model.PropertyAroma, 0, 0))})
		So(err, ShouldBeNil)

		Convey("When a second submission races with archiving", func() {
			var wg sync.WaitGroup
			var recordErr, archiveErr error
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, recordErr = svc.RecordTests(ctx, "u2", sess.ID, group, []model.TestInput{test("A", rating(model.PropertyAroma, 5, 5))})
			}()
			go func() {
				defer wg.Done()
				_, archiveErr = svc.TransitionStatus(ctx, chief, sess.ID, model.StatusArchived)
			}()
			wg.Wait()

			Convey("Then the submission is either aggregated or rejected, never lost", func() {
				So(archiveErr, ShouldBeNil)
				view, err := svc.ViewSession(ctx, chief, sess.ID)
				So(err, ShouldBeNil)
				ended, ok := view.(service.EndedView)
				So(ok, ShouldBeTrue)
				aroma := ended.Samples[0].Result.Properties[0]
				if recordErr == nil {
					So(aroma.AvgIntensity, ShouldEqual, 3)
				} else {
					So(errors.Is(recordErr, model.ErrCannotRecord), ShouldBeTrue)
					So(aroma.AvgIntensity, ShouldEqual, 0)
				}
			})
		})
	})
}
