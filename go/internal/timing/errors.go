package timing

import "errors"

var (
	ErrAuth        = errors.New("invalid or expired credentials")
	ErrState       = errors.New("time records are not accepted: the competition has not started or has already finished")
	ErrOwnership   = errors.New("team is not assigned to this judge")
	ErrStorage     = errors.New("failed to store time record")
	ErrValidation  = errors.New("invalid time record")
	ErrRecordLimit = errors.New("team already holds the maximum number of time records")
)

// Kind is the wire name of an error class.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindState      Kind = "state"
	KindOwnership  Kind = "ownership"
	KindStorage    Kind = "storage"
	KindValidation Kind = "validation"
	KindLimit      Kind = "limit"
)

// KindOf classifies err. Unclassified errors are reported as storage failures.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrState):
		return KindState
	case errors.Is(err, ErrOwnership):
		return KindOwnership
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrRecordLimit):
		return KindLimit
	}
	return KindStorage
}
