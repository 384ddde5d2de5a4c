package middleware

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var secret = []byte(getIdentitySecret())

func getIdentitySecret() string {
	if val := os.Getenv("IDENTITY_JWT_SECRET"); val != "" {
		return val
	}
	return "supersecret" // fallback
}

// MintIdentityToken issues a token shaped like the identity provider's:
// subject id plus email claim. Used by the local dev flow and tests.
func MintIdentityToken(subjectID, email string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   subjectID,
		"email": email,
		"exp":   time.Now().Add(72 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// RequireIdentity verifies the identity provider's bearer token and stores
// the subject id and email claim in the request context.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}

		subject, _ := claims["sub"].(string)
		if subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token missing subject claim"})
			return
		}
		email, _ := claims["email"].(string)

		c.Set("subject_id", subject)
		c.Set("email", email)

		c.Next()
	}
}
