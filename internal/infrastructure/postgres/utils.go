package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Códigos SQLSTATE que se traducen a errores de dominio.
const (
	sqlStateUniqueViolation = "23505"
	sqlStateFKViolation     = "23503"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation: (provider, reference) o email repetidos.
func isUniqueViolation(err error) bool { return sqlState(err) == sqlStateUniqueViolation }

// isFKViolation: hijo (línea, bitácora) de una nota que ya no existe.
func isFKViolation(err error) bool { return sqlState(err) == sqlStateFKViolation }

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// pgxScanner abstrae pgx.Row y pgx.Rows.
type pgxScanner interface {
	Scan(dest ...any) error
}
