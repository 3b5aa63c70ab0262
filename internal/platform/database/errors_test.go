package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		serialization bool
		retryable     bool
	}{
		{"nil", nil, false, false},
		{"plain", errors.New("boom"), false, false},
		{"pg unique", &pgconn.PgError{Code: "23505"}, false, false},
		{"pg serialization", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true, true},
		{"pg lock timeout", &pgconn.PgError{Code: "55P03"}, false, true},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, false, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, false, true},
		{"sqlite locked", fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSerializationFailure(tc.err); got != tc.serialization {
				t.Fatalf("IsSerializationFailure = %v, want %v", got, tc.serialization)
			}
			if got := IsRetryableError(tc.err); got != tc.retryable {
				t.Fatalf("IsRetryableError = %v, want %v", got, tc.retryable)
			}
		})
	}
}

func TestSqliteDSN(t *testing.T) {
	if got := SqliteDSN("a.db"); got != "a.db?_foreign_keys=on&_busy_timeout=5000" {
		t.Fatalf("unexpected dsn %q", got)
	}
	if got := SqliteDSN("file:x?mode=memory"); got != "file:x?mode=memory&_foreign_keys=on&_busy_timeout=5000" {
		t.Fatalf("unexpected dsn %q", got)
	}
}
