package models

import (
	"errors"
	"fmt"
)

// ErrorKind groups booking failures into the categories the API exposes
type ErrorKind string

const (
	ErrorKindNotFound ErrorKind = "NOT_FOUND"
	ErrorKindConflict ErrorKind = "CONFLICT"
	ErrorKindInvalid  ErrorKind = "INVALID"
	ErrorKindInternal ErrorKind = "INTERNAL"
)

// BookingError is the structured error returned by the reservation engine.
// Two BookingErrors match with errors.Is when their codes are equal, so a
// sentinel can carry a request-specific message.
type BookingError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	cause   error
}

func (e *BookingError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying storage error, if any
func (e *BookingError) Unwrap() error {
	return e.cause
}

// Is matches on the error code
func (e *BookingError) Is(target error) bool {
	t, ok := target.(*BookingError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of the error with a request-specific message
func (e *BookingError) WithMessage(format string, args ...interface{}) *BookingError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of the error carrying cause
func (e *BookingError) Wrap(cause error) *BookingError {
	cp := *e
	cp.cause = cause
	return &cp
}

func newBookingError(kind ErrorKind, code, message string) *BookingError {
	return &BookingError{Kind: kind, Code: code, Message: message}
}

var (
	// Not found
	ErrTripNotFound        = newBookingError(ErrorKindNotFound, "TRIP_NOT_FOUND", "trip not found or inactive")
	ErrAssignmentNotFound  = newBookingError(ErrorKindNotFound, "ASSIGNMENT_NOT_FOUND", "bus not found for this trip")
	ErrPromoNotFound       = newBookingError(ErrorKindNotFound, "PROMO_NOT_FOUND", "invalid promo code")
	ErrReservationNotFound = newBookingError(ErrorKindNotFound, "RESERVATION_NOT_FOUND", "booking not found")
	ErrNoTripsFound        = newBookingError(ErrorKindNotFound, "NO_TRIPS_FOUND", "no buses available for this route and date")

	// Conflicts
	ErrSeatAlreadyTaken     = newBookingError(ErrorKindConflict, "SEAT_ALREADY_TAKEN", "seat is already booked")
	ErrAssignmentFull       = newBookingError(ErrorKindConflict, "ASSIGNMENT_FULL", "this bus is fully booked")
	ErrRequestInProgress    = newBookingError(ErrorKindConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is in progress")
	ErrIdempotencyKeyReused = newBookingError(ErrorKindConflict, "IDEMPOTENCY_KEY_REUSED", "this idempotency key was used for a different booking request")
	ErrAlreadyPaid          = newBookingError(ErrorKindConflict, "ALREADY_PAID", "booking is already paid")
	ErrAlreadyCancelled     = newBookingError(ErrorKindConflict, "ALREADY_CANCELLED", "booking is already cancelled")
	ErrInventoryBusy        = newBookingError(ErrorKindConflict, "INVENTORY_BUSY", "this bus is busy, please try again")

	// Invalid
	ErrAssignmentInactive = newBookingError(ErrorKindInvalid, "ASSIGNMENT_INACTIVE", "bus is not active for this trip")
	ErrSeatOutOfRange     = newBookingError(ErrorKindInvalid, "SEAT_OUT_OF_RANGE", "invalid seat number")
	ErrPromoInvalid       = newBookingError(ErrorKindInvalid, "PROMO_INVALID", "promo code is not active")
	ErrPromoExpired       = newBookingError(ErrorKindInvalid, "PROMO_EXPIRED", "promo code has expired")
	ErrPromoExhausted     = newBookingError(ErrorKindInvalid, "PROMO_EXHAUSTED", "promo code usage limit reached")
	ErrInvalidRequest     = newBookingError(ErrorKindInvalid, "INVALID_REQUEST", "invalid request")
	ErrForbidden          = newBookingError(ErrorKindInvalid, "FORBIDDEN", "you cannot access this booking")

	// Internal
	ErrInternal  = newBookingError(ErrorKindInternal, "INTERNAL", "internal error")
	ErrClaimLost = newBookingError(ErrorKindInternal, "CLAIM_LOST", "seat claim was released before commit")
)

// AsBookingError converts any error into a BookingError, classifying unknown
// errors as internal.
func AsBookingError(err error) *BookingError {
	if err == nil {
		return nil
	}
	var be *BookingError
	if errors.As(err, &be) {
		return be
	}
	return ErrInternal.Wrap(err)
}

// KindOf returns the error kind of err (INTERNAL for foreign errors)
func KindOf(err error) ErrorKind {
	return AsBookingError(err).Kind
}
