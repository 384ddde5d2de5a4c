package routes

import (
	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	r := gin.New()

	// Request logging middleware
	r.Use(ginlog.SetLogger())
	r.Use(gin.Recovery())

	UserRoutes(r)
	RideRoutes(r)
	DriverRoutes(r)
	CustomerRoutes(r)
	AdminRoutes(r)

	return r
}
