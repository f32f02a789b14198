package server

import (
	"net/http"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/schemas"
)

func (s *Server) rootGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	return map[string]string{"message": "Welcome to the Salon Booking System API"}, nil
}

func (s *Server) healthcheckGetHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	status := "healthy"
	checks := map[string]string{"database": "ok", "cache": "ok"}

	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		checks["database"] = "unavailable"
		status = "degraded"
	}
	if err := s.cache.Ping(r.Context()); err != nil {
		checks["cache"] = "unavailable"
		status = "degraded"
	}

	resp := &schemas.HealthcheckResponse{
		Service: consts.ServiceName,
		Version: s.version,
		Status:  status,
		Uptime:  s.uptime(),
		Checks:  checks,
	}
	if s.collector != nil {
		system := s.collector.System()
		resp.Metrics = map[string]interface{}{
			"total_requests": s.collector.TotalRequests(),
			"total_errors":   s.collector.TotalErrors(),
			"goroutines":     system.Goroutines,
			"heap_alloc":     system.HeapAlloc,
		}
	}
	return resp, nil
}
