package routes

import (
	"rideeasy/internal/controllers"
	"rideeasy/internal/middleware"
	"rideeasy/internal/models"

	"github.com/gin-gonic/gin"
)

func CustomerRoutes(r *gin.Engine) {
	customer := r.Group("/customer")
	customer.Use(middleware.RequireIdentity(), middleware.RequireAccount(), middleware.RequireRole(models.RoleCustomer))
	{
		customer.GET("/rides", controllers.GetCustomerJoinedRides)
	}
}
