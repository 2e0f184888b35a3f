// Package scoring computes the aggregated results of a cupping session.
//
// Aggregation is a pure fold over a snapshot of submitted tests: the same
// tests always yield the same results, including result ids.
package scoring

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/cupping/internal/domain/model"
)

// resultNamespace seeds the name-based ids of aggregate results.
var resultNamespace = uuid.MustParse("6f1c3a52-0d8e-4c55-9a53-3f4e2b7c9d10")

// Option applies a configuration option to the InMemoryAggregator.
type Option func(*InMemoryAggregator)

// WithProperties overrides the property set. The overall score divisor is
// the size of this set.
func WithProperties(props []model.Property) Option {
	return func(a *InMemoryAggregator) {
		if len(props) > 0 {
			a.properties = slices.Clone(props)
		}
	}
}

// Input is the snapshot an aggregation runs over.
type Input struct {
	SessionID string
	CreatorID string
	// PackIDs are the connected packs in natural order. Every pack gets a
	// result, packs without tests score zero.
	PackIDs []string
	Tests   []model.Test
}

// Aggregator computes per-pack results for an archived session.
type Aggregator interface {
	// Aggregate returns one result per connected pack, honoring ctx for cancellation.
	Aggregate(ctx context.Context, in Input) ([]model.AggregateResult, error)
}

// InMemoryAggregator implements Aggregator over an in-memory snapshot.
type InMemoryAggregator struct {
	properties []model.Property
}

// NewInMemoryAggregator creates an aggregator with configuration options.
func NewInMemoryAggregator(opts ...Option) *InMemoryAggregator {
	a := &InMemoryAggregator{
		properties: slices.Clone(model.Properties),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate computes the results. It fails with model.ErrNoTestResults when
// the snapshot holds no tests at all.
func (a *InMemoryAggregator) Aggregate(ctx context.Context, in Input) ([]model.AggregateResult, error) {
	if len(in.Tests) == 0 {
		return nil, model.ErrNoTestResults
	}
	byPack := groupByPack(in.Tests)

	results := make([]model.AggregateResult, 0, len(in.PackIDs))
	for _, packID := range in.PackIDs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("aggregation cancelled: %w", err)
		}
		results = append(results, a.aggregatePack(in.SessionID, in.CreatorID, packID, byPack[packID]))
	}
	return results, nil
}

func (a *InMemoryAggregator) aggregatePack(sessionID, creatorID, packID string, tests []model.Test) model.AggregateResult {
	res := model.AggregateResult{
		ID:           ResultID(sessionID, packID),
		SessionID:    sessionID,
		PackID:       packID,
		OverallScore: a.overallScore(tests),
		Properties:   make([]model.PropertyAggregate, 0, len(a.properties)),
	}

	var chief *model.Test
	for i := range tests {
		if tests[i].UserID == creatorID {
			chief = &tests[i]
			break
		}
	}

	for _, prop := range a.properties {
		agg := model.PropertyAggregate{Property: prop, Comments: []string{}}
		var sumIntensity, sumQuality, n int
		for i := range tests {
			r, ok := tests[i].Rating(prop)
			if !ok {
				continue
			}
			sumIntensity += r.Intensity
			sumQuality += r.Quality
			n++
			if strings.TrimSpace(r.Comment) != "" {
				agg.Comments = append(agg.Comments, r.Comment)
			}
		}
		agg.AvgIntensity = RoundHalfUp(sumIntensity, n)
		agg.AvgQuality = RoundHalfUp(sumQuality, n)
		if chief != nil {
			if r, ok := chief.Rating(prop); ok {
				agg.ChiefIntensity = r.Intensity
				agg.ChiefQuality = r.Quality
			}
		}
		res.Properties = append(res.Properties, agg)
	}
	return res
}

// overallScore averages the tester totals (intensity+quality over all rated
// properties) and divides by the property count, rounding once at the end.
func (a *InMemoryAggregator) overallScore(tests []model.Test) int {
	var sum int
	for i := range tests {
		for _, r := range tests[i].Ratings {
			sum += r.Intensity + r.Quality
		}
	}
	return RoundHalfUp(sum, len(tests)*len(a.properties))
}

// groupByPack indexes tests by pack, each list in a stable order.
func groupByPack(tests []model.Test) map[string][]model.Test {
	byPack := make(map[string][]model.Test)
	for _, t := range tests {
		byPack[t.PackID] = append(byPack[t.PackID], t)
	}
	for _, list := range byPack {
		slices.SortStableFunc(list, func(x, y model.Test) int {
			return cmp.Or(
				x.CreatedAt.Compare(y.CreatedAt),
				cmp.Compare(x.UserID, y.UserID),
				cmp.Compare(x.ID, y.ID),
			)
		})
	}
	return byPack
}

// RoundHalfUp returns num/den rounded to the nearest integer, halves going up.
// Inputs are non-negative; a zero denominator yields 0.
func RoundHalfUp(num, den int) int {
	if den <= 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}

// ResultID derives a stable id for the result of a pack in a session.
func ResultID(sessionID, packID string) string {
	return uuid.NewSHA1(resultNamespace, []byte(sessionID+"/"+packID)).String()
}
