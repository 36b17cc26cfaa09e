package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Claims is the payload of a workhub session token.
type Claims struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	JTI   string `json:"jti"`
	Exp   int64  `json:"exp"`
}

func (c Claims) ExpiresAt() time.Time {
	return time.Unix(c.Exp, 0)
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	ErrInvalidState = errors.New("invalid oauth state")
)

func IssueToken(secret []byte, claims Claims) (string, error) {
	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	signature := sign(secret, payload)
	return payload + "." + signature, nil
}

// ParseToken verifies the signature and rejects tokens expired at now.
func ParseToken(secret []byte, token string, now time.Time) (Claims, error) {
	payload, err := verify(secret, token)
	if err != nil {
		return Claims{}, err
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.Sub == "" || claims.JTI == "" || claims.Exp == 0 {
		return Claims{}, ErrInvalidToken
	}
	if now.Unix() >= claims.Exp {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

// IssueState returns a signed, short-lived value for the OAuth state parameter.
func IssueState(secret []byte, now time.Time, ttl time.Duration) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(nonce) + "~" + strconv.FormatInt(now.Add(ttl).Unix(), 10)
	return payload + "." + sign(secret, payload), nil
}

// VerifyState checks that the state echoed by the provider matches the
// cookie we set and that it is signed and unexpired.
func VerifyState(secret []byte, cookieValue, returned string, now time.Time) error {
	if cookieValue == "" || !hmac.Equal([]byte(cookieValue), []byte(returned)) {
		return ErrInvalidState
	}
	payload, err := verify(secret, returned)
	if err != nil {
		return ErrInvalidState
	}
	_, expRaw, ok := strings.Cut(payload, "~")
	if !ok {
		return ErrInvalidState
	}
	exp, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil || now.Unix() >= exp {
		return ErrInvalidState
	}
	return nil
}

func verify(secret []byte, token string) (string, error) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok || payload == "" || strings.Contains(signature, ".") {
		return "", ErrInvalidToken
	}
	expected := sign(secret, payload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", ErrInvalidToken
	}
	return payload, nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}
