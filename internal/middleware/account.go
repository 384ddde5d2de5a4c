package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"rideeasy/internal/config"
	"rideeasy/internal/models"
)

// RequireAccount resolves the local user record for the authenticated
// subject and attaches it to the context. Runs after RequireIdentity.
// Callers that are not yet synced get a 404 pointing them at /user/sync.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		subjectID := c.GetString("subject_id")
		if subjectID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Identity not established"})
			return
		}

		var user models.User
		if err := config.DB.Where("subject_id = ?", subjectID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Account not found. Sync your profile first."})
			} else {
				logrus.WithError(err).Error("RequireAccount: user lookup failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server error during account lookup"})
			}
			return
		}

		c.Set("account", &user)
		c.Next()
	}
}

// RequireRole gates a route group on the resolved account's role.
// Runs after RequireAccount.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account not resolved"})
			return
		}
		if user.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the account attached by RequireAccount, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get("account"); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}
