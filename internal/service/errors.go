package service

import "errors"

// Error taxonomy. Handlers map these onto status codes; everything else
// is a durable-write failure and surfaces as a 500 so the payment
// provider's redelivery mechanism retries.
var (
	// ErrCourseNotFound is an expected absence, not an exceptional state.
	ErrCourseNotFound = errors.New("course not found")

	// ErrLessonNotFound means the (course, lesson) pair matched nothing.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrValidation covers malformed input and missing required fields.
	ErrValidation = errors.New("invalid request")

	// ErrForbidden means the resolved account lacks the required role or
	// entitlement.
	ErrForbidden = errors.New("forbidden")

	// ErrMissingMetadata means a signed, otherwise valid completed-session
	// event carried no correlation metadata. That signals a session
	// created outside the initiator's contract and must not be dropped
	// silently.
	ErrMissingMetadata = errors.New("session metadata missing or malformed")

	// ErrProviderUnavailable is a transient provider failure; session
	// creation may be retried by the caller.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)
