package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures so callers can react without parsing messages.
type ErrorKind string

const (
	KindInvalidTransition   ErrorKind = "InvalidTransition"
	KindNoAccountConfigured ErrorKind = "NoAccountConfigured"
	KindUnlinkedItem        ErrorKind = "UnlinkedItem"
	KindRecordNotFound      ErrorKind = "RecordNotFound"
	KindNegativeStock       ErrorKind = "NegativeStock"
	KindConflict            ErrorKind = "Conflict"
	KindValidation          ErrorKind = "Validation"
)

// Error is the structured failure returned by every domain operation.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Unwrap exposes the underlying driver error, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrNoAccountConfigured = &Error{Kind: KindNoAccountConfigured, Message: "no payment account configured"}
	ErrUnlinkedItem        = &Error{Kind: KindUnlinkedItem, Message: "purchase order is not linked to an inventory item"}
	ErrRecordNotFound      = &Error{Kind: KindRecordNotFound, Message: "record not found"}
	ErrNegativeStock       = &Error{Kind: KindNegativeStock, Message: "stock cannot go below zero"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "concurrent modification, retry the operation"}
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
)

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that keeps cause reachable through errors.Unwrap.
func Wrap(kind ErrorKind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// NotFound reports a missing entity by name and id.
func NotFound(entity string, id any) *Error {
	return Errorf(KindRecordNotFound, "%s %v not found", entity, id)
}

// KindOf returns the kind carried by err, or "" when err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
