package model

import (
	"slices"
	"time"
)

// Property is a rated cupping attribute.
type Property string

const (
	PropertyAroma      Property = "aroma"
	PropertyAcidity    Property = "acidity"
	PropertySweetness  Property = "sweetness"
	PropertyBody       Property = "body"
	PropertyAftertaste Property = "aftertaste"
)

// Properties lists every property type in presentation order.
var Properties = []Property{
	PropertyAroma,
	PropertyAcidity,
	PropertySweetness,
	PropertyBody,
	PropertyAftertaste,
}

// Rating bounds for intensity and quality.
const (
	MinRating = 0
	MaxRating = 5
)

// Valid reports whether p is one of the known property types.
func (p Property) Valid() bool { return slices.Contains(Properties, p) }

// PropertyRating is one attribute rated by one user.
type PropertyRating struct {
	Property  Property
	Intensity int
	Quality   int
	Comment   string
}

// Test is one user's ratings for one pack within a session.
type Test struct {
	ID        string
	SessionID string
	PackID    string
	UserID    string
	CreatedAt time.Time
	Ratings   []PropertyRating
}

// Rating returns the rating for a property, if present.
func (t *Test) Rating(p Property) (PropertyRating, bool) {
	for _, r := range t.Ratings {
		if r.Property == p {
			return r, true
		}
	}
	return PropertyRating{}, false
}

// TestInput is one entry of a RecordTests batch.
type TestInput struct {
	PackID  string
	Ratings []PropertyRating
}
