package models

import (
	"errors"
	"fmt"
)

// Sentinels matched by the error types below through errors.Is.
var (
	ErrNotFound            = errors.New("record not found")
	ErrDanglingReference   = errors.New("dangling slot reference")
	ErrIncompleteTree      = errors.New("incomplete tree")
	ErrConstraintViolation = errors.New("constraint violation")
)

// NotFoundError reports that a referenced record does not exist.
type NotFoundError struct {
	Ref Ref
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Ref)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound is shorthand for a *NotFoundError on ref.
func NotFound(ref Ref) error { return &NotFoundError{Ref: ref} }

// DanglingReferenceError reports a slot entry whose block is missing from
// storage. Parent is the record holding the slot.
type DanglingReferenceError struct {
	Missing ID
	Parent  Ref
	Slot    string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("block %s referenced from %s slot %q does not exist", e.Missing, e.Parent, e.Slot)
}

func (e *DanglingReferenceError) Is(target error) bool { return target == ErrDanglingReference }

// IncompleteTreeError reports a node set handed to the cloner that references
// a child outside the set.
type IncompleteTreeError struct {
	Missing  ID
	Referrer Ref
}

func (e *IncompleteTreeError) Error() string {
	return fmt.Sprintf("block %s referenced from %s is not part of the node set", e.Missing, e.Referrer)
}

func (e *IncompleteTreeError) Is(target error) bool { return target == ErrIncompleteTree }

// ConstraintViolationError reports a uniqueness or shape constraint rejected
// by the store or the engine.
type ConstraintViolationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConstraintViolationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("constraint violation on %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("constraint violation on %s %q", e.Field, e.Value)
}

func (e *ConstraintViolationError) Is(target error) bool { return target == ErrConstraintViolation }

// DuplicateSlug is the violation reported when a page slug is taken.
func DuplicateSlug(slug string) error {
	return &ConstraintViolationError{Field: "slug", Value: slug, Reason: "already used by another page"}
}
