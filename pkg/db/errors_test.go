package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Fatal("nil error is not a violation")
	}
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected SQLSTATE 23505 to match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("serialization failure is not a unique violation")
	}
	wrapped := fmt.Errorf("create item: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(wrapped) {
		t.Fatal("expected wrapped driver error to match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: items.name")) {
		t.Fatal("expected sqlite message to match")
	}
	if IsUniqueViolation(errors.New("connection refused")) {
		t.Fatal("unrelated error must not match")
	}
}

func TestIsLockConflict(t *testing.T) {
	if IsLockConflict(nil) {
		t.Fatal("nil error is not a conflict")
	}
	for _, code := range []string{"40001", "40P01", "55P03"} {
		if !IsLockConflict(&pgconn.PgError{Code: code}) {
			t.Fatalf("expected SQLSTATE %s to be retryable", code)
		}
	}
	if IsLockConflict(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique violation is not retryable")
	}
	if IsLockConflict(errors.New("boom")) {
		t.Fatal("plain errors are not lock conflicts")
	}
}
