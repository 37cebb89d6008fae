package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to callers.
type ErrorKind string

const (
	KindNotFound    ErrorKind = "NOT_FOUND"
	KindInvalidData ErrorKind = "INVALID_DATA"
	KindDuplicate   ErrorKind = "DUPLICATE_ERROR"
)

// Error is a business-rule failure with a kind callers can switch on.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Kind sentinels for errors.Is.
var (
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrInvalidData = &Error{Kind: KindInvalidData}
	ErrDuplicate   = &Error{Kind: KindDuplicate}
)

func NotFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidDataf(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidData, Message: fmt.Sprintf(format, args...)}
}

func Duplicatef(format string, args ...interface{}) error {
	return &Error{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
