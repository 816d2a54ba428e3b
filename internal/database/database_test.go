package database

import (
	"errors"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// TestRecordQuery tests that recordQuery accepts both outcomes without panicking.
func TestRecordQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		operation string
		err       error
	}{
		{name: "successful query", operation: "test_operation"},
		{name: "failed query", operation: "test_operation", err: errors.New("test error")},
		{name: "empty operation name", operation: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			recordQuery(tt.operation, time.Now(), tt.err)
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.BootstrapAdmin {
		t.Error("bootstrap should be enabled by default")
	}
	if !opts.Persistent {
		t.Error("persistent connection should be enabled by default")
	}
	if opts.AdminUsername != DefaultAdminUsername {
		t.Errorf("AdminUsername = %q, want %q", opts.AdminUsername, DefaultAdminUsername)
	}
	if opts.PasswordCost != bcrypt.DefaultCost {
		t.Errorf("PasswordCost = %d, want %d", opts.PasswordCost, bcrypt.DefaultCost)
	}
}

func TestIsAlreadyExists(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("table users already exists"), true},
		{errors.New("index idx_ids_path already exists"), true},
		{errors.New("disk I/O error"), false},
	}

	for _, tt := range tests {
		if got := isAlreadyExists(tt.err); got != tt.want {
			t.Errorf("isAlreadyExists(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestClassifyWriteError(t *testing.T) {
	t.Parallel()

	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	notNull := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}
	plain := errors.New("boom")

	if err := classifyWriteError("test", unique); !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("unique constraint not classified: %v", err)
	}
	if err := classifyWriteError("test", notNull); errors.Is(err, ErrUniqueViolation) {
		t.Errorf("NOT NULL constraint classified as unique: %v", err)
	}
	if err := classifyWriteError("test", plain); err != plain {
		t.Errorf("unrelated error altered: %v", err)
	}
}

func TestVerifyResultString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		result VerifyResult
		want   string
	}{
		{VerifyUnknownUser, "unknown_user"},
		{VerifyMismatch, "mismatch"},
		{VerifyOK, "success"},
		{VerifyResult(42), "invalid"},
	}

	for _, tt := range tests {
		if got := tt.result.String(); got != tt.want {
			t.Errorf("VerifyResult(%d).String() = %q, want %q", int(tt.result), got, tt.want)
		}
	}
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	a, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken failed: %v", err)
	}
	b, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken failed: %v", err)
	}
	if len(a) != tokenBytes*2 {
		t.Errorf("token length = %d, want %d", len(a), tokenBytes*2)
	}
	if a == b {
		t.Error("generateToken returned the same token twice")
	}
}
