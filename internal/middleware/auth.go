package middleware

import (
	"errors"
	"net/http"
	"strings"

	"expensecontrol/internal/model"
	"expensecontrol/internal/principal"
	"expensecontrol/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	accessTokenCookie = "access_token"
	accountKey        = "account"
)

var (
	ErrMissingToken = errors.New("authorization is missing")
	ErrInvalidToken = errors.New("invalid token")
)

// ParseSubject verifies an HS256 token signed with secret and returns its sub claim,
// the username of the caller.
func ParseSubject(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}

// TokenFromRequest reads the access token from the access_token cookie, then
// from an "Authorization: Bearer <token>" header.
func TokenFromRequest(c *gin.Context) (string, error) {
	if token, err := c.Cookie(accessTokenCookie); err == nil && token != "" {
		return token, nil
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

// Authenticate verifies the caller's token, resolves the active account behind
// its subject and stores both on the request context.
func Authenticate(secret []byte, accounts principal.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := TokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}
		username, err := ParseSubject(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		ctx := principal.WithUsername(c.Request.Context(), username)
		account, err := accounts.CurrentAccount(ctx)
		if err != nil {
			status, body := response.FromError(err)
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Request = c.Request.WithContext(principal.WithAccount(ctx, account))
		c.Set(accountKey, account)
		c.Next()
	}
}

// CurrentAccount returns the account resolved by Authenticate.
func CurrentAccount(c *gin.Context) (*model.Account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil, false
	}
	account, ok := v.(*model.Account)
	return account, ok && account != nil
}

// RequireRole lets the request through only when the authenticated account holds one of roles.
// It must run after Authenticate.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := CurrentAccount(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "user not authenticated"))
			return
		}
		for _, role := range roles {
			if account.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}
