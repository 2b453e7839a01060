package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
)

func newSessions(t *testing.T, password string) *Sessions {
	t.Helper()
	s, err := NewSessions(password, "test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSessions_Enabled(t *testing.T) {
	if newSessions(t, "").Enabled() {
		t.Error("Enabled() = true without a password")
	}
	if !newSessions(t, "hunter2").Enabled() {
		t.Error("Enabled() = false with a password")
	}
}

func TestSessions_LoginAndVerify(t *testing.T) {
	s := newSessions(t, "hunter2")

	token, expires, err := s.Login("hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if d := time.Until(expires); d < 59*time.Minute || d > time.Hour {
		t.Errorf("expires in %v, want about 1h", d)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user" {
		t.Errorf("subject = %q, want user", claims.Subject)
	}
}

func TestSessions_WrongPassword(t *testing.T) {
	s := newSessions(t, "hunter2")

	for _, pw := range []string{"", "hunter", "hunter22", "HUNTER2"} {
		if _, _, err := s.Login(pw); apperror.CodeOf(err) != apperror.Unauthorized {
			t.Errorf("Login(%q): err = %v, want unauthorized", pw, err)
		}
	}
}

func TestSessions_Expired(t *testing.T) {
	s := newSessions(t, "hunter2")
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }

	token, _, err := s.Login("hunter2")
	if err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = s.Verify(token)
	ae, ok := apperror.As(err)
	if !ok || ae.Code() != apperror.Unauthorized || ae.Message() != "Session expired" {
		t.Fatalf("err = %v, want session expired", err)
	}
}

func TestSessions_RejectsForeignTokens(t *testing.T) {
	s := newSessions(t, "hunter2")
	other, err := NewSessions("hunter2", "another-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	foreign, _, err := other.Login("hunter2")
	if err != nil {
		t.Fatal(err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "user", Issuer: "candle-csv",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	for name, token := range map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"other secret":   foreign,
		"unsigned token": none,
	} {
		if _, err := s.Verify(token); apperror.CodeOf(err) != apperror.Unauthorized {
			t.Errorf("%s: err = %v, want unauthorized", name, err)
		}
	}
}

func TestNewSessions_RandomSecret(t *testing.T) {
	a, err := NewSessions("pw", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSessions("pw", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.TTL() != 24*time.Hour {
		t.Errorf("default ttl = %v, want 24h", a.TTL())
	}

	token, _, err := a.Login("pw")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Error("token from one random secret verified with another")
	}
}
