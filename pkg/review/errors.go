package review

import (
	"errors"
	"fmt"
)

// Kinds of failure a session can surface. Match with errors.Is.
var (
	ErrAuthRequired     = errors.New("authentication required")
	ErrNotReady         = errors.New("work item is not ready for voting")
	ErrFetchFailed      = errors.New("failed to load work item")
	ErrPersistFailed    = errors.New("failed to persist vote")
	ErrPartialAggregate = errors.New("vote aggregates partially applied")

	ErrFetchSkipped    = errors.New("fetch skipped")
	ErrNotVoting       = errors.New("session is not accepting votes")
	ErrRegenerating    = errors.New("concepts are being regenerated")
	ErrSessionFinished = errors.New("session already finished")
	ErrUnknownConcept  = errors.New("concept is not part of this work item")
	ErrInvalidVoteKind = errors.New("invalid vote kind")
	ErrInvalidPrompt   = errors.New("prompt must not be empty")
	ErrInvalidKey      = errors.New("work item key must not be empty")
)

// Error ties a failure kind to the operation and underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the taxonomy sentinel carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrAuthRequired, ErrNotReady, ErrFetchFailed, ErrPersistFailed, ErrPartialAggregate,
		ErrFetchSkipped, ErrNotVoting, ErrRegenerating, ErrSessionFinished,
		ErrUnknownConcept, ErrInvalidVoteKind, ErrInvalidPrompt, ErrInvalidKey,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

var codes = map[error]string{
	ErrAuthRequired:     "auth_required",
	ErrNotReady:         "not_ready",
	ErrFetchFailed:      "fetch_failed",
	ErrPersistFailed:    "persist_failed",
	ErrPartialAggregate: "partial_aggregate",
	ErrFetchSkipped:     "fetch_skipped",
	ErrNotVoting:        "not_voting",
	ErrRegenerating:     "regenerating",
	ErrSessionFinished:  "session_finished",
	ErrUnknownConcept:   "unknown_concept",
	ErrInvalidVoteKind:  "invalid_vote_kind",
	ErrInvalidPrompt:    "invalid_prompt",
	ErrInvalidKey:       "invalid_key",
}

// Code is the stable string form of the error kind, "internal" when err carries none.
func Code(err error) string {
	if err == nil {
		return ""
	}
	if code, ok := codes[KindOf(err)]; ok {
		return code
	}
	return "internal"
}
