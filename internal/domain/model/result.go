package model

import "slices"

// PropertyAggregate summarizes every rating of one property for one pack.
type PropertyAggregate struct {
	Property       Property
	AvgIntensity   int
	AvgQuality     int
	ChiefIntensity int
	ChiefQuality   int
	Comments       []string
}

// AggregateResult is computed per (session, pack) when a session is archived.
type AggregateResult struct {
	ID           string
	SessionID    string
	PackID       string
	OverallScore int
	Properties   []PropertyAggregate
}

// Clone returns a deep copy safe to mutate.
func (r AggregateResult) Clone() AggregateResult {
	c := r
	c.Properties = make([]PropertyAggregate, len(r.Properties))
	for i, p := range r.Properties {
		p.Comments = slices.Clone(p.Comments)
		c.Properties[i] = p
	}
	return c
}
