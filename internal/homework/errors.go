package homework

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse means the response lacks the submissions field or
	// it has the wrong shape.
	ErrMalformedResponse = errors.New("malformed api response")
	// ErrNoPendingSubmissions is the quiet state: the list is present but empty.
	ErrNoPendingSubmissions = errors.New("no pending submissions")
	ErrUnknownStatus        = errors.New("unknown homework status")
)

// TransportError wraps a network failure of a fetch (refused, timeout, DNS).
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	if e == nil || e.Cause == nil {
		return "transport error"
	}
	return "transport error: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// BadStatusError is returned when the API answers with a non-200 status.
type BadStatusError struct {
	Code int
	Body string
}

func (e *BadStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api returned status %d", e.Code)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Code, e.Body)
}

type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownStatus.Error(), e.Status)
}

func (e *UnknownStatusError) Is(target error) bool { return target == ErrUnknownStatus }

// Kind tags the outcome of a poll cycle.
type Kind int

const (
	KindNone Kind = iota
	KindTransport
	KindBadStatus
	KindMalformed
	KindNoPending
	KindUnknownStatus
	KindUnclassified
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindTransport:
		return "transport"
	case KindBadStatus:
		return "bad_status"
	case KindMalformed:
		return "malformed"
	case KindNoPending:
		return "no_pending"
	case KindUnknownStatus:
		return "unknown_status"
	default:
		return "unclassified"
	}
}

// Transient reports whether the kind comes from the fetch itself.
func (k Kind) Transient() bool { return k == KindTransport || k == KindBadStatus }

// Classify maps an error onto exactly one Kind. nil is KindNone.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var te *TransportError
	if errors.As(err, &te) {
		return KindTransport
	}
	var bs *BadStatusError
	if errors.As(err, &bs) {
		return KindBadStatus
	}
	switch {
	case errors.Is(err, ErrNoPendingSubmissions):
		return KindNoPending
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	case errors.Is(err, ErrUnknownStatus):
		return KindUnknownStatus
	}
	return KindUnclassified
}
