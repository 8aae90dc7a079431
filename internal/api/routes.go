package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modpit/craftd/internal/api/handlers"
	"github.com/modpit/craftd/internal/api/middleware"
	"github.com/modpit/craftd/internal/config"
	"github.com/modpit/craftd/internal/instance"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures and returns the HTTP router
func SetupRouter(
	cfg *config.Config,
	prov *instance.Provisioner,
	sup *instance.Supervisor,
	reg *instance.Registry,
) *gin.Engine {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	instanceHandler := handlers.NewInstanceHandler(prov, sup, reg, cfg.Storage.InstancesDir)

	v1 := router.Group("/api/v1")
	{
		instances := v1.Group("/instances")
		{
			instances.GET("", instanceHandler.List)
			instances.POST("", instanceHandler.Provision)
			instances.GET(":name", instanceHandler.Get)
			instances.POST(":name/start", instanceHandler.Start)
			instances.POST(":name/stop", instanceHandler.Stop)
			instances.POST(":name/restart", instanceHandler.Restart)
			instances.GET(":name/console", instanceHandler.Console)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return router
}
