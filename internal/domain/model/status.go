package model

import "fmt"

// Status is the global lifecycle state of a cupping session.
type Status string

const (
	StatusCreated  Status = "created"
	StatusStarted  Status = "started"
	StatusArchived Status = "archived"
)

// transitions holds the only allowed forward moves.
var transitions = map[Status]Status{
	StatusCreated: StatusStarted,
	StatusStarted: StatusArchived,
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusCreated, StatusStarted, StatusArchived:
		return st, nil
	default:
		return "", fmt.Errorf("unknown session status %q", s)
	}
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	return ok && next == to
}

// ViewerStatus is the tasting progress label shown to one user.
type ViewerStatus string

const (
	ViewerPlanned           ViewerStatus = "planned"
	ViewerInProgress        ViewerStatus = "inProgress"
	ViewerDoneByCurrentUser ViewerStatus = "doneByCurrentUser"
	ViewerEnded             ViewerStatus = "ended"
)

// ViewerStatusFor derives the viewer-relative status from the global status
// and whether the viewer already submitted a test in this session.
func ViewerStatusFor(global Status, hasTested bool) ViewerStatus {
	switch global {
	case StatusCreated:
		return ViewerPlanned
	case StatusStarted:
		if hasTested {
			return ViewerDoneByCurrentUser
		}
		return ViewerInProgress
	default:
		return ViewerEnded
	}
}
