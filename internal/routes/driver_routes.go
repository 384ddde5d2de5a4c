package routes

import (
	"rideeasy/internal/controllers"
	"rideeasy/internal/middleware"
	"rideeasy/internal/models"

	"github.com/gin-gonic/gin"
)

func DriverRoutes(r *gin.Engine) {
	driver := r.Group("/driver")
	driver.Use(middleware.RequireIdentity(), middleware.RequireAccount(), middleware.RequireRole(models.RoleDriver))
	{
		driver.GET("/rides", controllers.GetDriverRides)
	}
}
