package main

import (
	"mapaq-pipeline/internal/api"
	"mapaq-pipeline/internal/api/handler"
	"mapaq-pipeline/pkg/router"

	_ "mapaq-pipeline/docs"
)

// @title MAPAQ Risk Pipeline API
// @version 1.0
// @description On-demand and scheduled runs of the food-inspection risk pipeline
// @BasePath /api/v1
func main() {
	svc := handler.NewService()
	defer svc.Close()

	r := router.New()
	api.RegisterRoutes(r, svc)

	r.Start(":8080")
}
