package admin

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

type AuthConfig struct {
	Token string
}

type Authenticator struct {
	token string
}

type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e == nil {
		return "auth error"
	}
	return e.Message
}

func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("admin token is required")
	}
	return &Authenticator{token: token}, nil
}

func (a *Authenticator) Authenticate(r *http.Request) error {
	if a == nil {
		return &AuthError{Status: http.StatusUnauthorized, Message: "auth unavailable"}
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok || token == "" {
		return &AuthError{Status: http.StatusUnauthorized, Message: "token required"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
		return &AuthError{Status: http.StatusUnauthorized, Message: "token invalid"}
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
