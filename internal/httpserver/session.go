package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/guesser/internal/game"
	"github.com/robalobadob/guesser/internal/store"
)

const (
	sessionCookieName = "guesser_session"
	adminKeyHeader    = "X-Admin-Key"
)

// SessionTTL is how long a session token stays valid. Stores can use it as
// the idle limit for rounds, since no token can reach an older one.
const SessionTTL = 7 * 24 * time.Hour

var errNoSession = errors.New("no session")

// ctxRoundKey is the context key type for the session's controller.
type ctxRoundKey struct{}

// roundFrom returns the controller placed in context by requireSession.
func roundFrom(ctx context.Context) *game.Controller {
	c, _ := ctx.Value(ctxRoundKey{}).(*game.Controller)
	return c
}

// signSession creates an HS256 JWT naming the round ID.
func (s *Server) signSession(roundID string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(SessionTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"rid": roundID,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.opts.JWTSecret))
	return ss, exp, err
}

// parseSession validates a token and returns the round ID it names.
func (s *Server) parseSession(tok string) (string, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}
	if !t.Valid {
		return "", errNoSession
	}
	rid, _ := claims["rid"].(string)
	if rid == "" {
		return "", errNoSession
	}
	return rid, nil
}

// sessionRoundID extracts and validates the session from the request.
func (s *Server) sessionRoundID(r *http.Request) (string, error) {
	tok := bearerOrCookie(r)
	if tok == "" {
		return "", errNoSession
	}
	return s.parseSession(tok)
}

// requireSession resolves the session's controller and injects it into context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid, err := s.sessionRoundID(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_session")
			return
		}
		c, err := s.store.Get(r.Context(), rid)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "round_not_found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "store_error")
			return
		}
		ctx := context.WithValue(r.Context(), ctxRoundKey{}, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminAllowed checks the admin key header against the configured bcrypt hash.
func (s *Server) adminAllowed(r *http.Request) bool {
	key := r.Header.Get(adminKeyHeader)
	if key == "" || s.opts.AdminKeyHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.opts.AdminKeyHash), []byte(key)) == nil
}

// setSessionCookie writes the session cookie with appropriate security attributes.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string, exp time.Time) {
	sameSite := http.SameSiteLaxMode
	if s.opts.SecureCookie {
		sameSite = http.SameSiteNoneMode // required for third‑party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: sameSite,
		Expires:  exp,
	})
}

// clearSessionCookie deletes the session cookie.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or session cookie.
func bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}
