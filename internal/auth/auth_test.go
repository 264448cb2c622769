package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

func withSecret(t *testing.T, value string) {
	t.Helper()
	ResetSecretForTests()
	t.Setenv(secretEnvVariable, value)
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidate(t *testing.T) {
	withSecret(t, "unit-test-secret")

	token, err := GenerateToken("user-42", "Manager", 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Role != "manager" {
		t.Fatalf("role was not normalized: %s", claims.Role)
	}
	if claims.Issuer != issuer {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	withSecret(t, "unit-test-secret")

	token, err := GenerateToken("user-42", "user", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := ParseAndValidate(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	withSecret(t, "unit-test-secret")

	token, err := GenerateToken("user-42", "user", time.Millisecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	withSecret(t, "")

	if _, err := GenerateToken("user-42", "user", time.Minute); err == nil {
		t.Fatal("missing secret accepted")
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatal("empty context yielded a principal")
	}
	ctx = ContextWithPrincipal(ctx, Principal{UserID: "user-7", Role: "developer"})
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID != "user-7" || p.Role != "developer" {
		t.Fatalf("unexpected principal: %+v ok=%v", p, ok)
	}
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-7" {
		t.Fatalf("unexpected user id: %s ok=%v", id, ok)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "s3cret"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}
}
