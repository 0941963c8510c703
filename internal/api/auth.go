// Bearer auth: the admin key or an HS256 player token whose subject is the user id.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "galaxy-of-consequence"
	defaultTokenTTL = 30 * 24 * time.Hour
)

var errForbiddenUser = errors.New("token does not grant access to this user")

type principalKey struct{}

// principal is who a request acts as. Admin may act for any user.
type principal struct {
	User  string
	Admin bool
}

func principalFrom(ctx context.Context) principal {
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

// actingUser resolves the user a request acts for. Player tokens default to
// their own subject and may not name anyone else.
func actingUser(r *http.Request, requested string) (string, error) {
	p := principalFrom(r.Context())
	requested = strings.TrimSpace(requested)
	if p.Admin {
		if requested == "" {
			return "", errors.New("missing user field")
		}
		return requested, nil
	}
	if requested != "" && requested != p.User {
		return "", errForbiddenUser
	}
	return p.User, nil
}

// writeUserError reports an actingUser failure.
func writeUserError(w http.ResponseWriter, err error) {
	if errors.Is(err, errForbiddenUser) {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	token := bearerToken(r)
	return s.AdminKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.AdminKey)) == 1
}

// adminOnly requires the admin key.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no GALAXY_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal{Admin: true})
		next(w, r.WithContext(ctx))
	}
}

// authenticated accepts the admin key or a valid player token.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" && s.JWTSecret == "" {
			http.Error(w, "write endpoints disabled (no GALAXY_ADMIN_KEY or GALAXY_JWT_SECRET set)", http.StatusForbidden)
			return
		}
		var p principal
		switch {
		case s.checkBearerToken(r):
			p = principal{Admin: true}
		case s.JWTSecret != "":
			user, err := s.verifyToken(bearerToken(r))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			p = principal{User: user}
		default:
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, p)
		next(w, r.WithContext(ctx))
	}
}

// IssueToken signs a player token for user.
func (s *Server) IssueToken(user string, ttl time.Duration) (string, time.Time, error) {
	if s.JWTSecret == "" {
		return "", time.Time{}, errors.New("player tokens disabled (no GALAXY_JWT_SECRET set)")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := s.now()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   user,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *Server) verifyToken(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("missing token")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User     string `json:"user"`
		TTLHours int    `json:"ttl_hours"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.User == "" {
		http.Error(w, "missing user field", http.StatusBadRequest)
		return
	}
	token, exp, err := s.IssueToken(req.User, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "token": token, "expires_at": exp})
}
