package main

import (
	"log"
	"net/http"

	"rideeasy/internal/config"
	"rideeasy/internal/logger"
	"rideeasy/internal/media"
	"rideeasy/internal/middleware"
	"rideeasy/internal/routes"
)

func main() {
	// Initialize structured logging to file
	logger.Setup()

	// Connect to the database
	config.InitDB()

	// Wire the Cloudinary media store for KYC document uploads
	store, err := media.NewCloudinaryStore(config.GetEnv("CLOUDINARY_URL", ""))
	if err != nil {
		log.Fatalf("media store init failed: %v", err)
	}
	media.Active = store

	// Setup Gin router
	r := routes.SetupRouter()

	// Wrap with CORS
	handler := middleware.EnableCORS(r)

	addr := config.GetEnv("HTTP_ADDR", "0.0.0.0:8080")
	log.Printf("Server running at %s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}
