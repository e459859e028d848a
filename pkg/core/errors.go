package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrIneligible is wrapped by every IneligibleError.
	ErrIneligible = errors.New("not activatable")
	// ErrMalformedInput marks values that could not be parsed.
	ErrMalformedInput = errors.New("malformed input")
)

// NotFoundError names the kind and id of a missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError for any printable id.
func NotFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

// IneligibleError explains why a perk activation was refused.
type IneligibleError struct {
	Code   string
	Reason string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("perk %s not activatable: %s", e.Code, e.Reason)
}

func (e *IneligibleError) Unwrap() error { return ErrIneligible }
