// Package middleware provides authentication, logging, metrics, tracing and
// rate-limiting middleware for the HTTP server.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"bloghub/internal/models"
	"bloghub/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionCookie is the HttpOnly cookie carrying the session token.
	SessionCookie = "session"

	tokenIssuer   = "bloghub-api"
	tokenAudience = "bloghub-client"
)

var (
	ErrSessionMissing = errors.New("session token missing")
	ErrSessionInvalid = errors.New("session token invalid")
	ErrSessionIdle    = errors.New("session expired after inactivity")
	ErrSessionRevoked = errors.New("session revoked")
)

// Session is an issued session token.
type Session struct {
	Token     string
	ID        string
	UserID    uint
	ExpiresAt time.Time
}

// SessionManager issues and verifies signed session tokens. With Redis it
// also enforces a sliding idle timeout and revocation; without Redis only
// the token's absolute expiry applies.
type SessionManager struct {
	secret []byte
	rdb    *redis.Client
	idle   time.Duration
	maxAge time.Duration
	now    func() time.Time
}

// NewSessionManager creates a SessionManager. rdb may be nil.
func NewSessionManager(secret string, rdb *redis.Client, idle, maxAge time.Duration) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		rdb:    rdb,
		idle:   idle,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func sessionKey(id string) string   { return "session:" + id }
func blacklistKey(id string) string { return "blacklist:" + id }

// Issue signs a new session token for userID.
func (m *SessionManager) Issue(ctx context.Context, userID uint) (*Session, error) {
	now := m.now()
	id := uuid.NewString()
	exp := now.Add(m.maxAge)

	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{tokenAudience},
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	if m.rdb != nil {
		if err := m.rdb.Set(ctx, sessionKey(id), userID, m.idle).Err(); err != nil {
			observability.RedisErrors.WithLabelValues("session_issue").Inc()
			Logger.WarnContext(ctx, "session idle tracking unavailable", slog.String("error", err.Error()))
		}
	}

	return &Session{Token: signed, ID: id, UserID: userID, ExpiresAt: exp}, nil
}

func (m *SessionManager) parse(raw string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrSessionInvalid
	}
	if claims.ID == "" {
		return nil, ErrSessionInvalid
	}
	return &claims, nil
}

// Verify validates raw and slides its idle window. It returns the user id
// the session belongs to.
func (m *SessionManager) Verify(ctx context.Context, raw string) (uint, error) {
	if raw == "" {
		return 0, ErrSessionMissing
	}
	claims, err := m.parse(raw)
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil {
		return 0, ErrSessionInvalid
	}

	if m.rdb == nil {
		return uint(userID), nil
	}

	revoked, err := m.rdb.Exists(ctx, blacklistKey(claims.ID)).Result()
	if err != nil {
		// Redis is down; the absolute expiry still holds.
		observability.RedisErrors.WithLabelValues("session_verify").Inc()
		return uint(userID), nil
	}
	if revoked > 0 {
		return 0, ErrSessionRevoked
	}

	alive, err := m.rdb.Expire(ctx, sessionKey(claims.ID), m.idle).Result()
	if err != nil {
		observability.RedisErrors.WithLabelValues("session_verify").Inc()
		return uint(userID), nil
	}
	if !alive {
		return 0, ErrSessionIdle
	}
	return uint(userID), nil
}

// Revoke ends the session carried by raw. Unknown or malformed tokens are ignored.
func (m *SessionManager) Revoke(ctx context.Context, raw string) error {
	if raw == "" || m.rdb == nil {
		return nil
	}
	claims, err := m.parse(raw)
	if err != nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		ttl = time.Minute
	}
	pipe := m.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(claims.ID))
	pipe.Set(ctx, blacklistKey(claims.ID), 1, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RedisErrors.WithLabelValues("session_revoke").Inc()
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// TokenFromRequest reads the session cookie, falling back to a Bearer header.
func TokenFromRequest(c *fiber.Ctx) string {
	if v := c.Cookies(SessionCookie); v != "" {
		return v
	}
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// AuthRequired rejects requests without a live session and stores the user id
// in c.Locals("userID") and the user context.
func (m *SessionManager) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := m.Verify(c.UserContext(), TokenFromRequest(c))
		if err != nil {
			msg := "Authentication required"
			switch {
			case errors.Is(err, ErrSessionIdle):
				msg = "Session expired, please log in again"
			case errors.Is(err, ErrSessionRevoked), errors.Is(err, ErrSessionInvalid):
				msg = "Invalid or expired session"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthenticatedError(msg))
		}

		c.Locals("userID", userID)
		c.SetUserContext(WithUserID(c.UserContext(), userID))
		return c.Next()
	}
}

// OptionalUser resolves the caller when a valid session is present.
func (m *SessionManager) OptionalUser(c *fiber.Ctx) (uint, bool) {
	raw := TokenFromRequest(c)
	if raw == "" {
		return 0, false
	}
	userID, err := m.Verify(c.UserContext(), raw)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// SetCookie writes the session cookie for s.
func SetCookie(c *fiber.Ctx, s *Session, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(c *fiber.Ctx, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
