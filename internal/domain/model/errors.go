package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Sentinel error kinds. Callers match them with errors.Is.
var (
	ErrNotFound           = errors.New("session not found")
	ErrAccessDenied       = errors.New("session belongs to another group")
	ErrNotInvited         = errors.New("user is not invited to session")
	ErrForbidden          = errors.New("user may not change session status")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrCannotRecord       = errors.New("tests can only be recorded while session is started")
	ErrSampleNotInSession = errors.New("sample is not connected to session")
	ErrNoTestsProvided    = errors.New("no tests provided")
	ErrNoTestResults      = errors.New("session has no test results")
	ErrMissingHiddenNames = errors.New("blind session requires a hidden name per sample")
	ErrDuplicateTest      = errors.New("sample already tested by user")
	ErrInvalidRating      = errors.New("invalid property rating")
	ErrInvalidSession     = errors.New("invalid session")
)

// Kinds lists every sentinel kind, used to label errors for logs and metrics.
var Kinds = []error{
	ErrNotFound, ErrAccessDenied, ErrNotInvited, ErrForbidden, ErrInvalidTransition,
	ErrCannotRecord, ErrSampleNotInSession, ErrNoTestsProvided, ErrNoTestResults,
	ErrMissingHiddenNames, ErrDuplicateTest, ErrInvalidRating, ErrInvalidSession,
}

// Error is a domain failure carrying the operation, its kind and the ids involved.
type Error struct {
	Op   string
	Kind error
	IDs  map[string]string
	Err  error
}

// NewKind builds an Error of the given kind.
func NewKind(op string, kind error, ids ...string) *Error {
	return &Error{Op: op, Kind: kind, IDs: pairs(ids)}
}

// WrapKind builds an Error of the given kind around a cause.
func WrapKind(op string, kind, err error, ids ...string) *Error {
	return &Error{Op: op, Kind: kind, Err: err, IDs: pairs(ids)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	for _, k := range slices.Sorted(maps.Keys(e.IDs)) {
		fmt.Fprintf(&b, " %s=%s", k, e.IDs[k])
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the sentinel kind of err, or nil when err is not a domain error.
func KindOf(err error) error {
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName returns a stable snake_case label for err.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrAccessDenied:
		return "access_denied"
	case ErrNotInvited:
		return "not_invited"
	case ErrForbidden:
		return "forbidden"
	case ErrInvalidTransition:
		return "invalid_transition"
	case ErrCannotRecord:
		return "cannot_record"
	case ErrSampleNotInSession:
		return "sample_not_in_session"
	case ErrNoTestsProvided:
		return "no_tests_provided"
	case ErrNoTestResults:
		return "no_test_results"
	case ErrMissingHiddenNames:
		return "missing_hidden_names"
	case ErrDuplicateTest:
		return "duplicate_test"
	case ErrInvalidRating:
		return "invalid_rating"
	case ErrInvalidSession:
		return "invalid_session"
	default:
		return "internal"
	}
}

// pairs turns "k1", "v1", "k2", "v2" into a map. A trailing key is dropped.
func pairs(kv []string) map[string]string {
	if len(kv) < 2 {
		return nil
	}
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}
