package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error for transport mapping. Reasons carried by
// AuthorizationDenied and ContentRejected errors are user-facing and must be
// surfaced verbatim by callers.
type Kind string

const (
	KindAuthorizationDenied Kind = "authorization_denied"
	KindContentRejected     Kind = "content_rejected"
	KindNotFound            Kind = "not_found"
	KindEditWindowExpired   Kind = "edit_window_expired"
	KindValidation          Kind = "validation"
	KindInternal            Kind = "internal"
)

// DomainError is a user-facing error with a classification and a
// human-readable reason.
type DomainError struct {
	Kind   Kind
	Reason string
}

func (e *DomainError) Error() string { return e.Reason }

// AuthorizationDenied builds a denial carrying the rule's reason string.
func AuthorizationDenied(reason string) error {
	return &DomainError{Kind: KindAuthorizationDenied, Reason: reason}
}

// ContentRejected builds a moderation rejection carrying the detected issue.
func ContentRejected(reason string) error {
	return &DomainError{Kind: KindContentRejected, Reason: reason}
}

// NotFound builds a missing-entity error.
func NotFound(what string) error {
	return &DomainError{Kind: KindNotFound, Reason: what + " not found"}
}

// EditWindowExpired is returned when a message edit is attempted after the
// allowed window.
var EditWindowExpired = &DomainError{Kind: KindEditWindowExpired, Reason: "edit window has expired"}

// Validation builds a bad-input error.
func Validation(format string, args ...interface{}) error {
	return &DomainError{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the error's kind, or KindInternal for non-domain errors.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code handlers should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindContentRejected, KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindEditWindowExpired:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
