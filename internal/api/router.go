package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	"mapaq-pipeline/internal/api/handler"
	"mapaq-pipeline/pkg/router"
)

// RegisterRoutes wires the pipeline service onto the router.
// Specific routes go first; the router matches in registration order.
func RegisterRoutes(r *router.Router, svc *handler.Service) {
	r.GET("/api/v1/runs/last", svc.LastReport)
	r.POST("/api/v1/runs", svc.RunOnce)
	r.GET("/api/v1/runs", svc.ListRuns)
	r.POST("/api/v1/schedules", svc.CreateSchedule)
	r.GET("/api/v1/schedules/*", svc.GetSchedule)
	r.DELETE("/api/v1/schedules/*", svc.CancelSchedule)
	r.GET("/swagger/*", router.HandlerFunc(httpSwagger.WrapHandler))
}
