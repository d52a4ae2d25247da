package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/gigmarket-be/internal/domain"
	"github.com/lib/pq"
)

// Postgres error codes the store translates into domain errors
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidTextRepr     = "22P02"
)

// mapError converts driver errors into domain error kinds. what names the
// entity for the message.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s already exists", domain.ErrConflict, what)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s references a missing row", domain.ErrNotFound, what)
		case codeCheckViolation:
			return fmt.Errorf("%w: %s violates %s", domain.ErrValidation, what, pqErr.Constraint)
		case codeInvalidTextRepr:
			// malformed uuid in a lookup cannot match any row
			return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
		}
	}
	return err
}
