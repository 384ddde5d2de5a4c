package routes

import (
	"rideeasy/internal/controllers"
	"rideeasy/internal/middleware"
	"rideeasy/internal/models"

	"github.com/gin-gonic/gin"
)

func RideRoutes(r *gin.Engine) {
	// Browsing open rides is public.
	r.GET("/rides", controllers.ListAvailableRides)

	rides := r.Group("/rides")
	rides.Use(middleware.RequireIdentity(), middleware.RequireAccount())
	{
		rides.GET("/:id", controllers.GetRide)

		rides.POST("", middleware.RequireRole(models.RoleDriver), controllers.CreateRide)
		rides.PUT("/:id", middleware.RequireRole(models.RoleDriver), controllers.EditRide)
		rides.DELETE("/:id", middleware.RequireRole(models.RoleDriver), controllers.DeleteRide)
		rides.PUT("/:id/passengers/:userId", middleware.RequireRole(models.RoleDriver), controllers.ReviewPassengerRequest)

		rides.POST("/:id/join", middleware.RequireRole(models.RoleCustomer), controllers.JoinRide)
		rides.DELETE("/:id/cancel-join", middleware.RequireRole(models.RoleCustomer), controllers.CancelJoinRequest)
	}
}
