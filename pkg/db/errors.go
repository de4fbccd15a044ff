package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// pgFault is the driver-neutral view of a Postgres error, whether it came
// from pgx or lib/pq.
type pgFault struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func asPgFault(err error) (pgFault, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFault{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFault{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return pgFault{}, false
}

// Diagnostics returns log fields describing a Postgres error buried in err,
// or nil when there is none.
func Diagnostics(err error) map[string]any {
	fault, ok := asPgFault(err)
	if !ok {
		return nil
	}
	fields := map[string]any{"pg_code": fault.Code}
	for key, value := range map[string]string{
		"pg_constraint": fault.Constraint,
		"pg_table":      fault.Table,
		"pg_column":     fault.Column,
		"pg_detail":     fault.Detail,
		"pg_message":    fault.Message,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}

// IsUniqueViolation reports whether err is a unique violation, optionally
// restricted to constraintName. Postgres errors match on SQLSTATE 23505;
// anything else (SQLite in tests) matches on message text.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if fault, ok := asPgFault(err); ok {
		return fault.Code == pgUniqueViolation &&
			(constraintName == "" || fault.Constraint == constraintName)
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, sqliteUniquePrefix) {
		return false
	}
	if constraintName == "" || strings.Contains(msg, constraintName) {
		return true
	}
	return sqliteColumnsMatch(msg, constraintName)
}

const sqliteUniquePrefix = "UNIQUE constraint failed: "

// sqliteColumnsMatch maps "UNIQUE constraint failed: orders.payment_session_id"
// onto the <table>_<cols>_key naming used by the migrations. Composite keys
// carry a short label instead of every column, so any constraint on the same
// table matches them.
func sqliteColumnsMatch(msg, constraintName string) bool {
	_, list, found := strings.Cut(msg, sqliteUniquePrefix)
	if !found {
		return false
	}
	cols := strings.Split(list, ", ")
	table, _, ok := strings.Cut(cols[0], ".")
	if !ok {
		return false
	}
	if len(cols) > 1 {
		return strings.HasPrefix(constraintName, table+"_")
	}
	_, column, _ := strings.Cut(strings.TrimSpace(cols[0]), ".")
	return table+"_"+column+"_key" == constraintName
}
