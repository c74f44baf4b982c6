package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/timmy/stickergen/internal/logger"
)

const (
	// SessionCookie is the cookie the identity provider sets for browser sessions.
	SessionCookie = "session"

	ctxKeyUserID = "user_id"
)

// Authenticator verifies HS256 session tokens issued by the identity provider.
// The token subject is the user id.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates an Authenticator. An empty issuer disables the issuer check.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Verify parses a session token and returns its subject.
// Parameters:
//   - raw: compact JWS string.
// Returns:
//   - string: user id from the sub claim.
//   - error: non-nil if the token is malformed, expired, wrongly signed or has no subject.
func (a *Authenticator) Verify(raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Issue signs a session token for userID valid for ttl.
// Used by local tooling; production sessions come from the identity provider.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Required rejects requests without a valid session with 401.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// Optional attaches the user id when a valid session is present and lets every request through.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		a.authenticate(c)
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context) bool {
	raw := sessionToken(c)
	if raw == "" {
		return false
	}

	userID, err := a.Verify(raw)
	if err != nil {
		logger.CtxDebug(c.Request.Context(), "Rejected session token: %v", err)
		return false
	}

	c.Set(ctxKeyUserID, userID)
	c.Request = c.Request.WithContext(logger.SetUserID(c.Request.Context(), userID))
	return true
}

func sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(ctxKeyUserID)
}
