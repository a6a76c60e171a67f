package core

import (
	"context"
	"net/http"
	"time"
)

// HandleHealth reports process liveness and database connectivity. It returns
// 200 with status "ok" when the database answers a ping, 503 with status
// "degraded" otherwise. A nil DB (tests) is treated as healthy.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			s.Logger.Warn("health check database ping failed", "error", err)
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	Success(w, r, httpStatus, Envelope{"status": status})
}
