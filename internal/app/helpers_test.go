package service_test

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/okian/cupping/internal/adapters/directory"
	service "github.com/okian/cupping/internal/app"
	"github.com/okian/cupping/internal/domain/model"
	"github.com/okian/cupping/internal/domain/shuffle"
	"github.com/okian/cupping/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

const (
	chief = "chief"
	owner = "owner"
	group = "g1"
)

func newTestService(opts ...service.Option) *service.Service {
	var seq atomic.Int64
	dir := directory.New(
		directory.WithGroup(group, []string{owner}, []string{chief, "u1", "u2", "u3"}),
		directory.WithPacks(
			model.Pack{ID: "A", Sample: model.Sample{Name: "Guji", CompanyName: "Roastery"}},
			model.Pack{ID: "B", Sample: model.Sample{Name: "Huila", CompanyName: "Roastery"}},
		),
	)
	base := []service.Option{
		service.WithDirectory(dir),
		service.WithCatalog(dir),
		service.WithShuffler(shuffle.New(7)),
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithIDGenerator(func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) }),
	}
	return service.New(append(base, opts...)...)
}

func openSettings() model.Settings {
	return model.Settings{Name: "Morning flight", OpenSampleNameCupping: true}
}

func packs(ids ...string) []service.PackRef {
	out := make([]service.PackRef, len(ids))
	for i, id := range ids {
		out[i] = service.PackRef{PackID: id}
	}
	return out
}

// createSession creates an open session over packs with invitees u1, u2.
func createSession(ctx context.Context, svc *service.Service, settings model.Settings, packIDs ...string) model.Session {
	sess, err := svc.CreateSession(ctx, service.CreateSessionInput{
		CreatorID:  chief,
		GroupID:    group,
		Settings:   settings,
		Packs:      packs(packIDs...),
		InviteeIDs: []string{"u1", "u2"},
	})
	So(err, ShouldBeNil)
	return sess
}

func startedSession(ctx context.Context, svc *service.Service, packIDs ...string) model.Session {
	sess := createSession(ctx, svc, openSettings(), packIDs...)
	_, err := svc.TransitionStatus(ctx, chief, sess.ID, model.StatusStarted)
	So(err, ShouldBeNil)
	return sess
}

func rating(p model.Property, intensity, quality int) model.PropertyRating {
	return model.PropertyRating{Property: p, Intensity: intensity, Quality: quality}
}

func test(packID string, ratings ...model.PropertyRating) model.TestInput {
	return model.TestInput{PackID: packID, Ratings: ratings}
}
