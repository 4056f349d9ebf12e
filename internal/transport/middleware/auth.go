package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/entity"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// Claims are issued by the external identity provider; sub is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Sign выпускает токен; используется в тестах и утилитах
func (a *Authenticator) Sign(userID string, ttl time.Duration) (string, error) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// Auth requires a valid bearer token and stores the subject under UserIDKey.
func (a *Authenticator) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": entity.ErrUnauthorized.Error()})
			return
		}

		claims, err := a.Parse(tokenStr)
		if err != nil {
			logrus.Debugf("Rejected bearer token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": entity.ErrUnauthorized.Error()})
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Next()
	}
}

type UserLookup interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)
}

// RequireAdmin checks the stored role; the token's role claim is not trusted.
func RequireAdmin(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.GetUser(c.Request.Context(), c.GetString(UserIDKey))
		switch {
		case errors.Is(err, entity.ErrUserNotFound):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": entity.ErrForbidden.Error()})
			return
		case err != nil:
			logrus.Errorf("Failed to resolve user role: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "user directory unavailable"})
			return
		case !user.IsAdmin():
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": entity.ErrForbidden.Error()})
			return
		}

		c.Set(UserKey, user)
		c.Next()
	}
}
