package coupon

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateCoupon is returned when a coupon code is already taken.
	ErrDuplicateCoupon = errors.New("coupon code already exists")
	// ErrCouponNotFound is returned when no coupon has the requested code.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrLedgerConflict is returned when every redemption attempt of a
	// selection was refused by the usage ledger.
	ErrLedgerConflict = errors.New("usage ledger conflict")
)

// ValidationError indicates caller-supplied data is malformed. Err is
// usually a validation.Errors keyed by field name.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateCouponError indicates an insert collided with an existing code.
type DuplicateCouponError struct {
	Code string
}

func (e *DuplicateCouponError) Error() string {
	return fmt.Sprintf("coupon code already exists: %s", e.Code)
}

func (e *DuplicateCouponError) Is(target error) bool { return target == ErrDuplicateCoupon }
