package errors

import (
	stderrors "errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE and MySQL error numbers for integrity violations
const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"

	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

// FromDB classifies a persistence error. Foreign-key violations and duplicate
// keys become domain errors, a missing row becomes NotFound for resource and
// anything else is wrapped as an internal error. Errors that are already
// domain errors pass through untouched.
func FromDB(resource string, err error) error {
	if err == nil {
		return nil
	}

	var ae AppError
	if stderrors.As(err, &ae) {
		return err
	}

	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFoundError(resource)
	}
	if stderrors.Is(err, gorm.ErrForeignKeyViolated) {
		return foreignKeyError(resource)
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return NewConflictError(resource)
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqForeignKeyViolation:
			return foreignKeyError(resource)
		case pqUniqueViolation:
			return NewConflictError(resource)
		}
	}

	var myErr *mysql.MySQLError
	if stderrors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return foreignKeyError(resource)
		case mysqlDuplicateEntry:
			return NewConflictError(resource)
		}
	}

	return NewInternalError(err)
}

func foreignKeyError(resource string) *ReferentialError {
	return NewReferentialError(CodeForeignKeyViolation, resource,
		resource+": opération impossible, l'enregistrement est référencé ou la référence est invalide")
}
