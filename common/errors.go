package common

import "errors"

// Kind classifies contract errors.
type Kind uint8

const (
	// Internal is a storage or encoding failure, it is never expected.
	Internal Kind = iota
	// Validation errors are raised for malformed or oversized input.
	Validation
	// Conflict errors are raised when the call collides with existing state.
	Conflict
	// Eligibility errors are raised when the caller may not do it now.
	Eligibility
	// Exhausted errors are raised when funds can't cover the operation.
	Exhausted
	// External errors are raised when a host collaborator fails.
	External
)

var kindNames = [...]string{
	Internal:    "internal",
	Validation:  "validation",
	Conflict:    "conflict",
	Eligibility: "eligibility",
	Exhausted:   "exhausted",
	External:    "external",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Error is a tagged contract error. Sentinel values are compared with
// errors.Is.
type Error struct {
	kind Kind
	msg  string
}

// NewError returns a new tagged error.
func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Error implements error interface.
func (e *Error) Error() string {
	return e.msg
}

// Kind returns error classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf returns the kind of the first tagged error in the chain. Untagged
// errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return Internal
}

var (
	// ErrOverflow is returned when a balance or counter computation
	// would wrap.
	ErrOverflow = NewError(Internal, "arithmetic overflow")

	// ErrContentTooLarge appears when an input field exceeds its limit.
	ErrContentTooLarge = NewError(Validation, "content too large")

	// ErrUnauthorized appears when the method must be invoked by the
	// contract owner but was not.
	ErrUnauthorized = NewError(Eligibility, "owner check failed")
)
