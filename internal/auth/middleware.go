package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const UserIDKey contextKey = "userID"

var (
	ErrMissingToken = errors.New("missing token")
	ErrTokenFormat  = errors.New("invalid authorization format")
)

// Authenticate resolves the user id of r from a bearer Authorization header
// or, for websocket upgrades where browsers cannot set headers, from the
// token query parameter.
func (s *Service) Authenticate(r *http.Request) (string, error) {
	token, err := requestToken(r)
	if err != nil {
		return "", err
	}
	return s.ValidateToken(token)
}

func requestToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", ErrTokenFormat
	}
	return token, nil
}

func (s *Service) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.Authenticate(r)
		switch {
		case errors.Is(err, ErrMissingToken):
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		case errors.Is(err, ErrTokenFormat):
			writeError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
