package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Dependency is one backing service the health check pings.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	name      string
	env       string
	startedAt time.Time
	deps      []Dependency
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(name, env string, startedAt time.Time, deps ...Dependency) *HealthHandler {
	return &HealthHandler{name: name, env: env, startedAt: startedAt, deps: deps}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	allOK := true
	statuses := make(gin.H, len(h.deps))
	for _, d := range h.deps {
		status := dependencyStatus{OK: true}
		if err := d.Check(ctx); err != nil {
			status = dependencyStatus{OK: false, Message: err.Error()}
			allOK = false
		}
		statuses[d.Name] = status
	}

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":          h.name,
		"env":          h.env,
		"uptime_sec":   int(time.Since(h.startedAt).Seconds()),
		"dependencies": statuses,
	})
}
