package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"collabrag/internal/bootstrap"
	mysqlClient "collabrag/internal/platform/mysql"
	rabbitmqClient "collabrag/internal/platform/rabbitmq"
	redisClient "collabrag/internal/platform/redis"
	"collabrag/internal/transport/http/handler"
	"collabrag/internal/transport/http/middleware"
)

type Handlers struct {
	Content *handler.ContentHandler
	Prompt  *handler.PromptHandler
	Health  *handler.HealthHandler
	Metrics http.Handler
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)

	handlers := Handlers{
		Content: handler.NewContentHandler(app.Ingest, app.Content, app.Config.App.MaxUploadBytes),
		Prompt:  handler.NewPromptHandler(app.Query),
		Health: handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt,
			healthDependencies(app)...),
		Metrics: app.Metrics.Handler(),
	}
	return newEngine(app.Logger, app.Config.Auth.JWTSecret, handlers)
}

func newEngine(log *slog.Logger, jwtSecret string, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(log), gin.Recovery())

	router.GET("/healthz", h.Health.Check)
	router.GET("/metrics", gin.WrapH(h.Metrics))

	v1 := router.Group("/api/v1")
	collabs := v1.Group("/collabs/:collabId")
	collabs.Use(middleware.AuthJWT(jwtSecret))
	collabs.POST("/content", h.Content.Upload)
	collabs.GET("/content", h.Content.List)
	collabs.DELETE("/content/:fileId", h.Content.Delete)
	collabs.POST("/content/:fileId/reindex", h.Content.Reindex)
	collabs.POST("/prompt", h.Prompt.Prompt)
	collabs.DELETE("", h.Content.DeleteCollab)

	return router
}

func healthDependencies(app *bootstrap.App) []handler.Dependency {
	deps := []handler.Dependency{
		{Name: "mysql", Check: func(ctx context.Context) error { return mysqlClient.Ping(ctx, app.MySQL) }},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx, app.Redis) }},
		{Name: "rabbitmq", Check: func(context.Context) error { return rabbitmqClient.Ping(app.MQConn) }},
	}
	if p, ok := app.Index.(interface{ Ping(context.Context) error }); ok {
		deps = append(deps, handler.Dependency{Name: "vector", Check: p.Ping})
	}
	return deps
}
