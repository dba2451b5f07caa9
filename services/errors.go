package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound            ErrorKind = "NotFound"
	KindInvalidState        ErrorKind = "InvalidState"
	KindValidation          ErrorKind = "Validation"
	KindConcurrencyConflict ErrorKind = "ConcurrencyConflict"
)

// SettlementError carries a machine-checkable kind so callers can tell a
// stale review apart from a bad amount.
type SettlementError struct {
	Kind   ErrorKind
	Entity string
	ID     string
	Msg    string
}

func (e *SettlementError) Error() string {
	switch {
	case e.Entity != "" && e.ID != "":
		return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Msg)
	case e.Entity != "":
		return fmt.Sprintf("%s: %s", e.Entity, e.Msg)
	default:
		return e.Msg
	}
}

// Is matches any SettlementError of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *SettlementError) Is(target error) bool {
	t, ok := target.(*SettlementError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound            = &SettlementError{Kind: KindNotFound, Msg: "not found"}
	ErrInvalidState        = &SettlementError{Kind: KindInvalidState, Msg: "invalid state"}
	ErrValidation          = &SettlementError{Kind: KindValidation, Msg: "validation failed"}
	ErrConcurrencyConflict = &SettlementError{Kind: KindConcurrencyConflict, Msg: "concurrent modification"}
)

// KindOf returns the error kind, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var se *SettlementError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func notFound(entity, id string) error {
	return &SettlementError{Kind: KindNotFound, Entity: entity, ID: id, Msg: "not found"}
}

func invalidState(entity, id, format string, args ...interface{}) error {
	return &SettlementError{Kind: KindInvalidState, Entity: entity, ID: id, Msg: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) error {
	return &SettlementError{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func conflict(entity, id string) error {
	return &SettlementError{Kind: KindConcurrencyConflict, Entity: entity, ID: id, Msg: "modified concurrently, reload and retry"}
}
