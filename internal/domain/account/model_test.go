package account_test

import (
	"strings"
	"testing"
	"time"

	"loyaltyloop/internal/domain/account"
)

func init() {
	account.BcryptCost = 4
}

// TestAccount_Validate tests validation of Account.
func TestAccount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		account account.Account
		wantErr error
	}{
		{
			name:    "valid owner account",
			account: account.Account{ID: "1", Email: "owner@coffeehaven.test"},
		},
		{
			name:    "empty email",
			account: account.Account{ID: "2"},
			wantErr: account.ErrEmptyEmail,
		},
		{
			name:    "whitespace email",
			account: account.Account{ID: "3", Email: "   "},
			wantErr: account.ErrEmptyEmail,
		},
		{
			name:    "no at sign",
			account: account.Account{ID: "4", Email: "not-an-email"},
			wantErr: account.ErrInvalidEmail,
		},
		{
			name:    "too long",
			account: account.Account{ID: "5", Email: strings.Repeat("a", 250) + "@x.io"},
			wantErr: account.ErrEmailTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if err != tt.wantErr {
				t.Errorf("Account.Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestAccount_SetPassword tests hashing and verification.
func TestAccount_SetPassword(t *testing.T) {
	var a account.Account

	if err := a.SetPassword(""); err != account.ErrEmptyPassword {
		t.Errorf("expected ErrEmptyPassword, got %v", err)
	}
	if err := a.SetPassword("12345"); err != account.ErrPasswordTooShort {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := a.SetPassword("latte-art"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.PasswordHash == "" || a.PasswordHash == "latte-art" {
		t.Fatalf("password was not hashed: %q", a.PasswordHash)
	}
	if err := a.CheckPassword("latte-art"); err != nil {
		t.Errorf("expected password to verify, got %v", err)
	}
	if err := a.CheckPassword("espresso"); err != account.ErrWrongPassword {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
}

func TestAccount_CheckPassword_NoHash(t *testing.T) {
	a := account.Account{}
	if err := a.CheckPassword("anything"); err != account.ErrWrongPassword {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
}

// TestAccount_Lockout verifies the account locks after MaxFailedLogins failures.
func TestAccount_Lockout(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var a account.Account

	for i := 0; i < account.MaxFailedLogins-1; i++ {
		a.RecordFailedLogin(now)
	}
	if a.IsLocked(now) {
		t.Fatal("account locked too early")
	}

	a.RecordFailedLogin(now)
	if !a.IsLocked(now) {
		t.Fatal("expected account to be locked")
	}
	if a.IsLocked(now.Add(account.LockoutDuration + time.Second)) {
		t.Error("lock should expire after LockoutDuration")
	}

	a.RecordSignIn(now)
	if a.FailedLogins != 0 || !a.LockedUntil.IsZero() {
		t.Errorf("RecordSignIn did not reset lockout: %+v", a)
	}
	if !a.LastSignInAt.Equal(now) {
		t.Errorf("LastSignInAt = %v, want %v", a.LastSignInAt, now)
	}
}

func TestAccount_PasswordFingerprint(t *testing.T) {
	a := account.Account{PasswordHash: "hash-one"}
	b := account.Account{PasswordHash: "hash-two"}
	if a.PasswordFingerprint() == b.PasswordFingerprint() {
		t.Error("different hashes produced the same fingerprint")
	}
	if len(a.PasswordFingerprint()) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(a.PasswordFingerprint()))
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := account.NormalizeEmail("  Owner@Coffee.TEST "); got != "owner@coffee.test" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}
