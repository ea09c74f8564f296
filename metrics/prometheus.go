package metrics

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// all metrics and middlewares for the REST API
var (
	// to prevent metrics from being initialized multiple times
	isMetricsInitVar uint32 = 0

	// active REST API connections
	activeRESTConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_rest_connections",
			Help: "Number of active REST API connections",
		},
	)

	// response times for REST APIs
	responseTimeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_response_time_milliseconds",
			Help:    "REST API response time distributions",
			Buckets: []float64{1, 10, 50, 100, 200, 300, 400, 500},
		},
		[]string{"method", "endpoint"},
	)

	// size of the body for REST APIs
	requestSizeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_request_size_kilobytes",
			Help:    "REST API request size distributions",
			Buckets: []float64{200, 500, 900, 1500, 2000, 3000, 4000, 5000},
		},
		[]string{"method", "endpoint"},
	)

	responseSizeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_response_size_kilobytes",
			Help:    "REST API response size distributions",
			Buckets: []float64{200, 500, 900, 1500, 2000, 3000, 4000, 5000},
		},
		[]string{"method", "endpoint"},
	)

	// Number of requests processed by REST API
	RESTRequestMetricsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rest_requests_processed_total",
		Help: "The total number of processed REST requests",
	}, []string{"method", "endpoint"})

	// Number of outbound messages submitted per provider and outcome
	MessagesSentMetricsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esp_messages_sent_total",
		Help: "The total number of messages submitted to email providers",
	}, []string{"esp", "outcome"})

	// Number of tracking events normalized per provider and event type
	TrackingEventsMetricsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esp_tracking_events_total",
		Help: "The total number of normalized tracking events",
	}, []string{"esp", "event_type"})

	// Number of inbound messages parsed per provider
	InboundMessagesMetricsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esp_inbound_messages_total",
		Help: "The total number of parsed inbound messages",
	}, []string{"esp"})

	// Number of webhook posts rejected during validation per provider
	WebhookValidationFailedMetricsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esp_webhook_validation_failures_total",
		Help: "The total number of webhook posts that failed validation",
	}, []string{"esp"})

	// Latency of outbound send calls to the provider APIs
	MessageSendProcessingLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esp_message_send_latency_milliseconds",
		Help:    "Latency of message submission to email providers",
		Buckets: prometheus.LinearBuckets(1, 100, 10),
	}, []string{"esp"})
)

func setIsMetricsInit() {
	atomic.StoreUint32(&isMetricsInitVar, 1)
}

func isMetricsInit() bool {
	return atomic.LoadUint32(&isMetricsInitVar) == 1
}

func InitMetrics() {
	if !isMetricsInit() {
		setIsMetricsInit()

		// Metrics have to be registered to be exposed
		prometheus.MustRegister(activeRESTConnections)
		prometheus.MustRegister(responseTimeRESTAPI)
		prometheus.MustRegister(RESTRequestMetricsTotal)
		prometheus.MustRegister(MessagesSentMetricsCount)
		prometheus.MustRegister(TrackingEventsMetricsCount)
		prometheus.MustRegister(InboundMessagesMetricsCount)
		prometheus.MustRegister(WebhookValidationFailedMetricsCount)
		prometheus.MustRegister(MessageSendProcessingLatency)
		prometheus.MustRegister(requestSizeRESTAPI)
		prometheus.MustRegister(responseSizeRESTAPI)
	}
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Increment the counter for the given endpoint:
		RESTRequestMetricsTotal.WithLabelValues(c.Request.Method, c.FullPath()).Inc()

		r := c.Request
		w := c.Writer

		// Start timing responseTime histogram
		start := time.Now()

		// Set activeConnections gauge
		activeRESTConnections.Inc()
		defer activeRESTConnections.Dec()

		c.Next()

		// after request

		// observe request size in kilobytes
		if r.ContentLength > 0 {
			requestSizeRESTAPI.WithLabelValues(c.Request.Method, c.Request.URL.Path).Observe(float64(r.ContentLength) / 1024)
		}

		// set response size
		if w.Size() > 0 {
			responseSizeRESTAPI.WithLabelValues(c.Request.Method, c.Request.URL.Path).Observe(float64(w.Size()) / 1024)
		}

		// Set responseTime histogram
		latency := time.Since(start)
		responseTimeRESTAPI.WithLabelValues(c.Request.Method, c.Request.URL.Path).Observe(float64(latency.Milliseconds()))
	}
}
