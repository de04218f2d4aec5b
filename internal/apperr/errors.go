// Package apperr defines the error taxonomy shared by entities, repositories,
// commands and queries.
package apperr

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

var (
	ErrEmptyField            = errors.New("empty field")
	ErrDeserializationFailed = errors.New("deserialization failed")
	ErrConflict              = errors.New("conflict")
	ErrNotFound              = errors.New("not found")
	ErrInUseByRecipe         = errors.New("in use by recipe")
	ErrUnknown               = errors.New("unknown")
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindEmptyField
	KindDeserializationFailed
	KindConflict
	KindNotFound
	KindInUseByRecipe
)

func (k Kind) String() string {
	switch k {
	case KindEmptyField:
		return "EmptyField"
	case KindDeserializationFailed:
		return "DeserializationFailed"
	case KindConflict:
		return "Conflict"
	case KindNotFound:
		return "NotFound"
	case KindInUseByRecipe:
		return "InUseByRecipe"
	default:
		return "Unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindEmptyField:
		return ErrEmptyField
	case KindDeserializationFailed:
		return ErrDeserializationFailed
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindInUseByRecipe:
		return ErrInUseByRecipe
	default:
		return ErrUnknown
	}
}

// Error is the single error type returned across layer boundaries.
//
// Field is set for EmptyField, DeserializationFailed and Conflict; ID is set
// for NotFound. Unknown errors are opaque: Unwrap does not expose the cause,
// so a wrapped lower-layer NotFound can never leak through as a NotFound.
type Error struct {
	Op    string
	Kind  Kind
	Field string
	ID    uuid.UUID
	Err   error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindEmptyField:
		msg = fmt.Sprintf("the field %s was empty", e.Field)
	case KindDeserializationFailed:
		msg = fmt.Sprintf("could not deserialize field %s: %v", e.Field, e.Err)
	case KindConflict:
		msg = fmt.Sprintf("a conflict has occurred: an entity with the given %s already exists", e.Field)
	case KindNotFound:
		msg = fmt.Sprintf("the entity with id %s was not found", e.ID)
	case KindInUseByRecipe:
		msg = "there are recipes that use this ingredient; delete them first, then you will be able to delete this ingredient"
	default:
		msg = fmt.Sprintf("internal error: %v", e.Err)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	if e.Kind == KindUnknown {
		return nil
	}
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func EmptyField(field string) *Error {
	return &Error{Kind: KindEmptyField, Field: field}
}

func DeserializationFailed(field string, err error) *Error {
	return &Error{Kind: KindDeserializationFailed, Field: field, Err: err}
}

func Conflict(field string) *Error {
	return &Error{Kind: KindConflict, Field: field}
}

func NotFound(id uuid.UUID) *Error {
	return &Error{Kind: KindNotFound, ID: id}
}

func InUseByRecipe() *Error {
	return &Error{Kind: KindInUseByRecipe}
}

func Unknown(err error) *Error {
	return &Error{Kind: KindUnknown, Err: err}
}

// KindOf reports the kind of err; anything that is not an *Error is Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Scope rewrites err into the closed set of kinds an operation may return.
// Kinds outside allowed collapse to Unknown. Warnings pass through untouched.
func Scope(op string, err error, allowed ...Kind) error {
	if err == nil {
		return nil
	}
	if IsWarning(err) {
		return err
	}
	var e *Error
	if errors.As(err, &e) && slices.Contains(allowed, e.Kind) {
		scoped := *e
		scoped.Op = op
		return &scoped
	}
	return &Error{Op: op, Kind: KindUnknown, Err: err}
}
