package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AnTengye/quotepo/config"
	"github.com/AnTengye/quotepo/pkg/logger"
	"github.com/AnTengye/quotepo/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIDKey = "session_id"

// ErrInvalidSession is returned for a session cookie that fails verification
var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims is the payload of the signed session cookie
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a cookie value binding the browser to sessionID
func GenerateSessionToken(sessionID string, cfg *config.AuthConfig) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(cfg.SessionExpireHours) * time.Hour)

	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ParseSessionToken verifies a cookie value and returns its session id
func ParseSessionToken(tokenString string, cfg *config.AuthConfig) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.Join(ErrInvalidSession, err)
	}
	if !token.Valid || claims.SessionID == "" {
		return "", ErrInvalidSession
	}
	return claims.SessionID, nil
}

// Session binds every request to a session id. A browser without a valid
// cookie is issued a fresh id. Nothing is stored until a handler records
// state for the session.
func Session(cfg *config.AuthConfig, store *service.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := ""
		if cookie, err := c.Cookie(cfg.CookieName); err == nil && cookie != "" {
			id, err := ParseSessionToken(cookie, cfg)
			if err != nil {
				slog.Debug("discarding session cookie",
					"error", err,
					"request_id", GetRequestID(c),
				)
			}
			sessionID = id
		}

		if sessionID == "" {
			sessionID = uuid.New().String()
			token, expiresAt, err := GenerateSessionToken(sessionID, cfg)
			if err != nil {
				slog.Error("failed to sign session cookie", "error", err, "request_id", GetRequestID(c))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cfg.CookieName, token, int(time.Until(expiresAt).Seconds()), "/", "", cfg.SecureCookie, true)
		}

		c.Set(sessionIDKey, sessionID)

		ctx := context.WithValue(c.Request.Context(), logger.SessionKey, sessionID)
		if sess := store.Get(sessionID); sess != nil && sess.TenantID != "" {
			ctx = context.WithValue(ctx, logger.TenantKey, sess.TenantID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetSessionID gets the session id from context
func GetSessionID(c *gin.Context) string {
	if sessionID, exists := c.Get(sessionIDKey); exists {
		return sessionID.(string)
	}
	return ""
}
