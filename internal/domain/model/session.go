// Package model contains the cupping domain types shared between layers.
package model

import (
	"slices"
	"time"
)

// Settings is captured once at session creation and never updated.
type Settings struct {
	Name                  string
	RandomSamplesOrder    bool
	OpenSampleNameCupping bool
	SingleUserSession     bool
	InviteAllTeammates    bool
}

// Blind reports whether real sample names are replaced by hidden names.
func (s Settings) Blind() bool { return !s.OpenSampleNameCupping }

// ConnectedPack links a catalog pack to a session. HiddenName is set only for
// blind sessions. Position keeps the natural order packs were connected in.
type ConnectedPack struct {
	PackID     string
	HiddenName string
	Position   int
}

// Session is one cupping event.
type Session struct {
	ID         string
	CreatorID  string
	GroupID    string
	Status     Status
	CreatedAt  time.Time
	EventDate  *time.Time
	EndedAt    *time.Time
	Settings   Settings
	Packs      []ConnectedPack
	InviteeIDs []string
}

// HasPack reports whether packID is connected to the session.
func (s *Session) HasPack(packID string) bool {
	return slices.ContainsFunc(s.Packs, func(p ConnectedPack) bool { return p.PackID == packID })
}

// IsInvited reports whether userID belongs to the invitee set.
func (s *Session) IsInvited(userID string) bool {
	return slices.Contains(s.InviteeIDs, userID)
}

// Clone returns a deep copy safe to mutate.
func (s Session) Clone() Session {
	c := s
	c.Packs = slices.Clone(s.Packs)
	c.InviteeIDs = slices.Clone(s.InviteeIDs)
	if s.EventDate != nil {
		d := *s.EventDate
		c.EventDate = &d
	}
	if s.EndedAt != nil {
		d := *s.EndedAt
		c.EndedAt = &d
	}
	return c
}
