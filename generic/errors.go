/*
errors.go - Centralized error types for the subscription engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Partner and subscription packages wrap these with record context.

ERROR TIERS:
  1. Validation errors - a single construct/grant/revoke call got bad input.
     These propagate to the caller of the mutating operation.
  2. Lookup errors - unknown account on grant, unknown beneficiary on revoke.
  3. Invariant errors - merging offers that do not overlap. Never expected
     given the Beneficiary call discipline.
  4. Archive errors - duplicate or unknown report run IDs.

  Only the ingestion boundary (partner.Load) catches tiers 1 and 2 and
  continues with the next record.

USAGE:
    if errors.Is(err, generic.ErrAccountNotFound) {
        // skip record
    }

SEE ALSO:
  - offer.go: Raises ErrInvalidDate, ErrInvalidPeriod, ErrOffersDisjoint
  - partner/partner.go: Raises lookup errors, isolates per record
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when a date is missing or not ISO-8601.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidPeriod is returned when a period is negative or not an integer.
	ErrInvalidPeriod = errors.New("invalid period: must be a non-negative integer")

	// ErrMissingPeriod is returned for grant records without a period.
	ErrMissingPeriod = errors.New("grant has no period")

	// ErrInvalidID is returned when an account or beneficiary id is blank.
	ErrInvalidID = errors.New("invalid id")

	// ErrOffersDisjoint is returned when merging offers that do not overlap.
	ErrOffersDisjoint = errors.New("offers must overlap to merge")

	// ErrAccountNotFound is returned when a grant references an unknown account.
	ErrAccountNotFound = errors.New("account does not exist")

	// ErrBeneficiaryNotFound is returned when a revocation references a
	// beneficiary the partner never granted to.
	ErrBeneficiaryNotFound = errors.New("user not found")

	// ErrInvalidDirectory is returned when the account directory is malformed.
	ErrInvalidDirectory = errors.New("invalid account directory")

	// ErrInvalidSpec is returned when a partner specification is malformed.
	ErrInvalidSpec = errors.New("invalid partner specification")

	// ErrDuplicateRun is returned when a report run ID is saved twice.
	ErrDuplicateRun = errors.New("report run already saved")

	// ErrRunNotFound is returned when no archived run has the requested ID.
	ErrRunNotFound = errors.New("report run not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field and value.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, fmt.Sprint(e.Value), e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AccountNotFoundError is returned when no directory entry matches ID.
type AccountNotFoundError struct {
	ID AccountID
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account (%s) does not exist", e.ID)
}

func (e *AccountNotFoundError) Unwrap() error {
	return ErrAccountNotFound
}

// BeneficiaryNotFoundError is returned when a partner has no beneficiary ID.
type BeneficiaryNotFoundError struct {
	ID AccountID
}

func (e *BeneficiaryNotFoundError) Error() string {
	return fmt.Sprintf("user (%s) is not found", e.ID)
}

func (e *BeneficiaryNotFoundError) Unwrap() error {
	return ErrBeneficiaryNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrMissingPeriod) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidDirectory) ||
		errors.Is(err, ErrInvalidSpec)
}

// IsNotFound returns true if the error indicates a missing account or beneficiary.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrBeneficiaryNotFound) ||
		errors.Is(err, ErrRunNotFound)
}
