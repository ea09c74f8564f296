package apiroutes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mailbridge/go-mailbridge/api"
	"github.com/mailbridge/go-mailbridge/global"
	"github.com/mailbridge/go-mailbridge/metrics"
)

// REST API routes
func ConfigRoutes(router *gin.Engine) *gin.Engine {
	// init metrics
	if global.Conf.Prometheus.Enabled {

		metrics.InitMetrics()

		authorized := router.Group("/metrics", gin.BasicAuth(gin.Accounts{
			global.Conf.Prometheus.Username: global.Conf.Prometheus.Password,
		}))

		authorized.GET("", gin.WrapH(promhttp.Handler()))
	}

	// API definitions
	healthApi := api.NewHealthCheckAPI()
	messagingApi := api.NewMessagingAPI()
	webhookApi := api.NewEspWebhookAPI()

	// PUBLIC API
	publicApi := router.Group("/api", metrics.MetricsMiddleware())
	{
		publicApi.GET("/v1/healthcheck", healthApi.HealthCheck)
		publicApi.POST("/v1/providers/:provider/messages", messagingApi.SendMessage)
	}

	// WEBHOOK API (providers post here; shared secret checked per request)
	webhookRoutes := router.Group("/webhook", metrics.MetricsMiddleware())
	{
		webhookRoutes.POST("/:provider/tracking", webhookApi.ReceiveTrackingEvents)
		webhookRoutes.POST("/:provider/inbound", webhookApi.ReceiveInboundEvents)
	}

	return router
}
