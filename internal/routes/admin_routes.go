package routes

import (
	"rideeasy/internal/controllers"
	"rideeasy/internal/middleware"
	"rideeasy/internal/models"

	"github.com/gin-gonic/gin"
)

func AdminRoutes(r *gin.Engine) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireIdentity(), middleware.RequireAccount(), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/kyc/pending", controllers.ListPendingKyc)
		admin.PUT("/kyc/:id/review", controllers.ReviewKyc)
		admin.GET("/users", controllers.ListUsersWithKyc)
		admin.PUT("/users/:id", controllers.UpdateUserByAdmin)
	}
}
