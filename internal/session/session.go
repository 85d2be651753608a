// ABOUTME: Stateless session tokens: signed JWT identity assertions in a cookie
// ABOUTME: Decode failures of any kind collapse to the anonymous identity

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/store"
)

// CookieMaxAge is the fixed lifetime of the session cookie in seconds. The
// embedded expiry claim, not the cookie, bounds how long the token verifies.
const CookieMaxAge = 87400

// ErrUserDeleted is returned when issuing a session for a user that no longer
// exists, e.g. a credential whose owner was removed.
var ErrUserDeleted = errors.New("referenced user no longer exists")

// Identity is the decoded content of a session token.
type Identity struct {
	Name        string
	DisplayName string
	Roles       []string
}

const anonymousName = "nobody"

// Anonymous is the canonical identity for requests without a valid session.
// Callers never learn why decoding failed; they only see this sentinel.
var Anonymous = Identity{
	Name:        anonymousName,
	DisplayName: "No authenticated user",
}

// IsAnonymous reports whether the identity is the anonymous sentinel.
func (i Identity) IsAnonymous() bool {
	return i.Name == anonymousName
}

// Service issues, delivers, and decodes session tokens.
type Service struct {
	method jwt.SigningMethod
	secret []byte
	cookie string
	issuer string
	expiry time.Duration
	domain string
	secure bool
	logger *slog.Logger
}

// New creates a session service from settings. The JWT algorithm must be one
// of HS256, HS384, HS512.
func New(cfg *config.Settings) (*Service, error) {
	var method jwt.SigningMethod
	switch cfg.SessionAlgo {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported session JWT algorithm %q", cfg.SessionAlgo)
	}

	return &Service{
		method: method,
		secret: []byte(cfg.SessionSecret),
		cookie: cfg.SessionCookie,
		issuer: cfg.PublicURL,
		expiry: cfg.SessionExpiration,
		domain: cfg.RPID,
		secure: cfg.Secure(),
		logger: slog.Default().With("component", "session"),
	}, nil
}

// Issue signs a token asserting the user's identity and roles.
// A nil user returns ErrUserDeleted: the caller resolved a credential whose
// owner is gone.
func (s *Service) Issue(user *store.User) (string, error) {
	if user == nil {
		return "", ErrUserDeleted
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.Name,
		"name":  user.DisplayName,
		"roles": user.RoleValues(),
		"aud":   s.issuer,
		"iss":   s.issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(s.expiry).Unix(),
	}

	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return token, nil
}

// Deliver sets the session cookie and writes the raw token in the body.
func (s *Service) Deliver(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    token,
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
		Domain:   s.domain,
		Path:     "/",
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"jwt": token}); err != nil {
		s.logger.Debug("failed to encode session response", "error", err)
	}
}

// Decode extracts and verifies the session token from the request cookie.
// Any failure - missing cookie, bad signature, wrong issuer or audience,
// expired claim - yields the Anonymous identity. Callers cannot distinguish
// the cause, which keeps the decoder from acting as a verification oracle.
func (s *Service) Decode(r *http.Request) Identity {
	cookie, err := r.Cookie(s.cookie)
	if err != nil {
		return Anonymous
	}

	token, err := jwt.Parse(cookie.Value,
		func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != s.method.Alg() {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithAudience(s.issuer),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		s.logger.Debug("session decode failed", "error", err)
		return Anonymous
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Anonymous
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Anonymous
	}
	displayName, _ := claims["name"].(string)

	var roles []string
	if raw, ok := claims["roles"].([]any); ok {
		for _, r := range raw {
			if v, ok := r.(string); ok {
				roles = append(roles, v)
			}
		}
	}

	return Identity{Name: sub, DisplayName: displayName, Roles: roles}
}
