package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/writestack/noteflow/internal/transport/http/handler"
	"github.com/writestack/noteflow/internal/transport/http/middleware"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, scheduleHandler *handler.ScheduleHandler, hmacKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(hmacKey)

	schedules := r.Group("/schedules", authMW)
	schedules.POST("", scheduleHandler.Create)
	schedules.GET("", scheduleHandler.List)
	schedules.GET("/notes", scheduleHandler.ListNotes)
	schedules.DELETE("/:id", scheduleHandler.Delete)
	schedules.POST("/:id/send-now", scheduleHandler.SendNow)

	return r
}
