package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrProtocolNotFound = fmt.Errorf("%w: protocol", ErrNotFound)
	ErrTopicNotFound    = fmt.Errorf("%w: topic", ErrNotFound)
	ErrTableNotFound    = fmt.Errorf("%w: reference table", ErrNotFound)

	// Reference data integrity errors
	ErrMalformedReference = errors.New("malformed reference data")
	ErrEmptyTable         = errors.New("reference table has no rows")
	ErrDuplicateProtocol  = errors.New("duplicate protocol id")

	// Request errors
	ErrInvalidMode     = errors.New("invalid search mode")
	ErrMissingCriteria = errors.New("missing search criteria")
)

// NewMalformedLabelError reports a quantile-bearing topic label without a quantile token
func NewMalformedLabelError(label string) error {
	return fmt.Errorf("%w: label %q is a quantile feature but carries no Q# token", ErrMalformedReference, label)
}

// NewProtocolNotFoundError reports a catalog miss for the given id
func NewProtocolNotFoundError(id string) error {
	return fmt.Errorf("%w with id %s", ErrProtocolNotFound, id)
}

// IsNotFoundError reports whether err is any not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIntegrityError reports whether err signals corrupted reference data
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrMalformedReference) ||
		errors.Is(err, ErrEmptyTable) ||
		errors.Is(err, ErrDuplicateProtocol)
}
