package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ngenesis/ngenesis/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, "test-secret")
}

func TestRegisterLoginVerify(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "Ada@Example.com", "hunter22", "Ada")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("Email = %q, want lowercased", user.Email)
	}
	if token == "" {
		t.Fatal("Register() returned empty token")
	}

	verified, err := svc.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if verified.ID != user.ID {
		t.Errorf("Verify() user id = %d, want %d", verified.ID, user.ID)
	}

	loggedIn, loginToken, err := svc.Login(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if loggedIn.ID != user.ID || loginToken == "" {
		t.Errorf("Login() = (%+v, %q), want same user with token", loggedIn, loginToken)
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "", "hunter22", ""); err == nil {
		t.Error("Register() with empty email: expected error")
	}
	if _, _, err := svc.Register(ctx, "a@b.com", "abc", ""); err == nil {
		t.Error("Register() with short password: expected error")
	}

	if _, _, err := svc.Register(ctx, "a@b.com", "hunter22", ""); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, _, err := svc.Register(ctx, "a@b.com", "other-pw", ""); err == nil {
		t.Error("Register() with duplicate email: expected error")
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "ada@example.com", "hunter22", ""); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, _, wrongPw := svc.Login(ctx, "ada@example.com", "wrong")
	_, _, unknown := svc.Login(ctx, "nobody@example.com", "hunter22")

	if wrongPw == nil || unknown == nil {
		t.Fatal("expected both login attempts to fail")
	}
	if wrongPw.Error() != unknown.Error() {
		t.Errorf("error messages differ: %q vs %q", wrongPw, unknown)
	}
}

func TestVerifyRejectsTamperedAndExpiredTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, token, err := svc.Register(ctx, "ada@example.com", "hunter22", "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := svc.Verify(ctx, token+"x"); err == nil {
		t.Error("Verify() of tampered token: expected error")
	}
	if _, err := svc.Verify(ctx, "not-a-token"); err == nil {
		t.Error("Verify() of garbage: expected error")
	}

	// Issue a token that is already past its 7-day lifetime
	svc.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	_, expired, err := svc.Login(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := svc.Verify(ctx, expired); err == nil {
		t.Error("Verify() of expired token: expected error")
	}
}
