package data

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/adsafe/moderation-api/internal/errors"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrAdNotFound is returned when an ad does not exist.
	ErrAdNotFound = errors.New("ad not found")
	// ErrSellerNotFound is returned when a seller does not exist.
	ErrSellerNotFound = errors.New("seller not found")
	// ErrTaskNotFound is returned when a moderation task does not exist.
	ErrTaskNotFound = errors.New("moderation task not found")
)

// ClassifyPgError maps PostgreSQL constraint violations onto the application
// error taxonomy. Non-pg errors pass through unchanged.
func ClassifyPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return apperrors.Wrap(err, apperrors.ErrCodeConflict, "duplicate row")
	case pgerrcode.ForeignKeyViolation:
		// An insert referencing a missing ad/seller is unrecoverable input.
		return apperrors.Wrap(err, apperrors.ErrCodePermanentData, "foreign key violation")
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "constraint violation")
	default:
		return err
	}
}
