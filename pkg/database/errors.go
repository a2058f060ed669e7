package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (23505). Receipt upserts use this to retry a racing create as
// an additive update instead of surfacing the conflict.
func IsUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"quantity": "must not be negative",
		})

	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be a positive integer",
		})

	case strings.Contains(constraint, "total_quantity"):
		return errors.Validation(map[string]string{
			"total_quantity": "must be at least the available quantity",
		})

	case strings.Contains(constraint, "entry_kind_valid"):
		return errors.Validation(map[string]string{
			"entry_kind": "must be one of: received, archived",
		})

	case strings.Contains(constraint, "kind_valid"):
		return errors.Validation(map[string]string{
			"kind": "must be one of: discard, ward, ambulance",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "pharmacy_stock_identity"):
		return "a stock batch with this identity already exists"
	case strings.Contains(constraint, "pharmacy_medicines"):
		return "a medicine with this brand, chemical and dose already exists"
	case strings.Contains(constraint, "pharmacy_daily_usage"):
		return "a daily usage record for this identity and date already exists"
	default:
		return "a record with these values already exists"
	}
}
