package rest

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleProvider = "PROVIDER"

	providerIDKey = "provider_id"
)

// ProviderAuth accepts HS256 bearer tokens whose subject is a provider id
// and whose role claim is PROVIDER. An empty secret rejects every request.
func ProviderAuth(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
	)

	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			return
		}
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenMalformed
			}
			return []byte(secret), nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if role, _ := claims["role"].(string); role != RoleProvider {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "provider role required"})
			return
		}
		sub, err := claims.GetSubject()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		providerID, err := uuid.Parse(sub)
		if err != nil || providerID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
			return
		}

		c.Set(providerIDKey, providerID)
		c.Next()
	}
}

// CronAuth guards internal job triggers with a shared bearer secret. An empty
// secret leaves the route open.
func CronAuth(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		tokenStr, ok := bearer(c)
		if !ok {
			return
		}
		if subtle.ConstantTimeCompare([]byte(tokenStr), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
		return "", false
	}
	parts := strings.Fields(auth)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
		return "", false
	}
	return parts[1], true
}

func providerID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(providerIDKey)
	v, _ := id.(uuid.UUID)
	return v
}
