package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// SystemHandler serves liveness and readiness probes.
type SystemHandler struct {
	db          *sqlx.DB
	redisClient *redis.Client
	startTime   time.Time
}

func NewSystemHandler(db *sqlx.DB, redisClient *redis.Client) *SystemHandler {
	return &SystemHandler{
		db:          db,
		redisClient: redisClient,
		startTime:   time.Now(),
	}
}

// Health reports process liveness.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready reports whether the service can serve traffic: the database and Redis
// must both answer within a short deadline.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "ok"}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, map[string]interface{}{"checks": checks})
}
