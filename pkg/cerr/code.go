package cerr

import (
	"net/http"

	"github.com/talentpipe/talentpipe/pkg/clog"
)

// Code classifies an error for callers. The pipeline core returns these to
// the API layer, which maps them onto its own wire format.
type Code int

const (
	OK Code = iota
	Canceled
	Unknown
	InvalidArgument
	Timeout
	NotFound
	Conflict
	PermissionDenied
	InvalidTransition
	InvalidState
	PastDate
	InvalidRange
	ConcurrentModification
	FailedPrecondition
	Internal
	Unavailable
)

var codeNames = map[Code]string{
	OK:                     "ok",
	Canceled:               "canceled",
	Unknown:                "unknown",
	InvalidArgument:        "invalid_argument",
	Timeout:                "timeout",
	NotFound:               "not_found",
	Conflict:               "conflict",
	PermissionDenied:       "permission_denied",
	InvalidTransition:      "invalid_transition",
	InvalidState:           "invalid_state",
	PastDate:               "past_date",
	InvalidRange:           "invalid_range",
	ConcurrentModification: "concurrent_modification",
	FailedPrecondition:     "failed_precondition",
	Internal:               "internal",
	Unavailable:            "unavailable",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// LogLevel returns the severity this code should be logged at. Expected
// business failures (bad transitions, conflicts, not found) are routine and
// log at info; only infrastructure failures are errors.
func (c Code) LogLevel() clog.Level {
	switch c {
	case Unknown, Internal, Unavailable:
		return clog.LevelError
	case Timeout:
		return clog.LevelWarn
	default:
		return clog.LevelInfo
	}
}

// HTTPCode maps the code onto an HTTP status for the API layer.
func (c Code) HTTPCode() int {
	switch c {
	case OK:
		return http.StatusOK
	case Canceled:
		return 499
	case InvalidArgument, PastDate, InvalidRange:
		return http.StatusBadRequest
	case Timeout:
		return http.StatusGatewayTimeout
	case NotFound:
		return http.StatusNotFound
	case Conflict, ConcurrentModification:
		return http.StatusConflict
	case PermissionDenied:
		return http.StatusForbidden
	case InvalidTransition, InvalidState, FailedPrecondition:
		return http.StatusPreconditionFailed
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
