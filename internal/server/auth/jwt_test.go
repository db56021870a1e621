package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	userID := "3f1c2b7e-0000-4000-8000-000000000001"

	tok, exp, err := GenerateToken(userID, secret, 24*time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if d := time.Until(exp); d < 23*time.Hour || d > 24*time.Hour {
		t.Fatalf("unexpected expiry distance: %v", d)
	}

	gotUserID, err := GetUserIDFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetUserIDFromToken error: %v", err)
	}
	if gotUserID != userID {
		t.Fatalf("userID mismatch: got %q want %q", gotUserID, userID)
	}
}

func TestGetUserIDFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")

	tok, _, err := GenerateToken("u1", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetUserIDFromToken(tok, secret)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestGetUserIDFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := GenerateToken("u2", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetUserIDFromToken(tok, []byte("wrong-secret"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestGetUserIDFromToken_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := GetUserIDFromToken("not.a.jwt", []byte("k"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestGetUserIDFromToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u3",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	s, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}

	if _, err := GetUserIDFromToken(s, secret); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken for HS512, got %v", err)
	}
}

func TestGetUserIDFromToken_MissingExpiryOrSubject(t *testing.T) {
	t.Parallel()

	secret := []byte("k")

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u4",
	}}).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}
	if _, err := GetUserIDFromToken(noExp, secret); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected invalid token without exp, got %v", err)
	}

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}
	if _, err := GetUserIDFromToken(noSub, secret); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected invalid token without sub, got %v", err)
	}
}
