package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// Reasons carried by InvalidTransitionError.
var (
	ErrNotPending      = errors.New("application is no longer pending")
	ErrOutOfOrder      = errors.New("earlier approval level is not approved")
	ErrNotAuthorized   = errors.New("actor may not act on this level")
	ErrAlreadyActed    = errors.New("approval level already acted on")
	ErrLevelOutOfRange = errors.New("approval level out of range")
	ErrSelfApproval    = errors.New("cannot act on own application")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type InsufficientBalanceError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s", e.Requested.String(), e.Available.String())
}

type InvalidTransitionError struct {
	Reason error
}

func (e *InvalidTransitionError) Error() string {
	return "invalid transition: " + e.Reason.Error()
}

func (e *InvalidTransitionError) Unwrap() error {
	return e.Reason
}

func invalidTransition(reason error) error {
	return &InvalidTransitionError{Reason: reason}
}

type AttachmentError struct {
	Reason string
	Err    error
}

func (e *AttachmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("attachment: %s: %v", e.Reason, e.Err)
	}
	return "attachment: " + e.Reason
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr wraps repository failures. Domain errors and ErrNotFound pass through.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isDomainError(err error) bool {
	var (
		validation   *ValidationError
		insufficient *InsufficientBalanceError
		transition   *InvalidTransitionError
		attachment   *AttachmentError
		storage      *StorageError
	)
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.As(err, &validation) ||
		errors.As(err, &insufficient) ||
		errors.As(err, &transition) ||
		errors.As(err, &attachment) ||
		errors.As(err, &storage)
}
