package routes

import (
	"rideeasy/internal/controllers"
	"rideeasy/internal/middleware"

	"github.com/gin-gonic/gin"
)

func UserRoutes(r *gin.Engine) {
	user := r.Group("/user")
	user.Use(middleware.RequireIdentity())
	{
		// Sync only needs the identity claims; the account may not exist yet.
		user.POST("/sync", controllers.SyncUser)

		synced := user.Group("")
		synced.Use(middleware.RequireAccount())
		{
			synced.GET("/profile", controllers.GetProfile)
			synced.POST("/apply-driver", controllers.ApplyAsDriver)
			synced.PUT("/location", controllers.UpdateLocation)
			synced.POST("/kyc", controllers.SubmitKycDetails)
			synced.GET("/kyc", controllers.GetMyKyc)
		}
	}
}
