package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
	"qr-ordering/internal/utils"
)

const principalKey = "principal"

// StaffAuth resolves the bearer token into a *models.Principal. Requests
// without a valid token are rejected with 401. Ownership of the target
// order is checked later by the services.
func StaffAuth(secret string, log *logger.Logger) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" || len(key) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Authentication required", ""))
			return
		}

		var claims jwt.RegisteredClaims
		_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || claims.Subject == "" {
			if err == nil {
				err = errors.New("missing sub claim")
			}
			log.LogSecurity("AUTH_FAILED", fmt.Sprintf("Rejected staff token from %s: %v", c.ClientIP(), err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Authentication required", ""))
			return
		}

		c.Set(principalKey, &models.Principal{UserID: claims.Subject})
		c.Next()
	}
}

// PrincipalFrom returns the principal set by StaffAuth, or nil.
func PrincipalFrom(c *gin.Context) *models.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Principal)
	return p
}

// InternalToken guards service-to-service routes with a shared token in
// X-Internal-Token. An empty configured token closes the route.
func InternalToken(token string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Internal-Token")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.LogSecurity("INTERNAL_DENIED", fmt.Sprintf("Internal route %s denied for %s", c.Request.URL.Path, c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusForbidden, utils.ErrorResponse("Forbidden", ""))
			return
		}
		c.Next()
	}
}
