package model

import "time"

// Sample is the catalog sample type a pack belongs to.
type Sample struct {
	ID          string
	Name        string
	CompanyName string
	Origin      string
	Processing  string
}

// Pack is a physical coffee sample unit owned by the catalog.
type Pack struct {
	ID        string
	Sample    Sample
	RoastDate *time.Time
	OpenDate  *time.Time
	WeightG   int
	Barcode   string
	Archived  bool
}
