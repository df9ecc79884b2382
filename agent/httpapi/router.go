package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const requestIDHeader = "X-Request-ID"

type Config struct {
	Addr        string `envconfig:"ADDR" split_words:"true" default:":8080"`
	ServiceName string `envconfig:"SERVICE_NAME" split_words:"true" default:"claims-responder"`
}

func NewRouter(h *Handler, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if serviceName != "" {
		router.Use(otelgin.Middleware(serviceName))
	}

	router.GET("/healthz", Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/chat_react_agent", h.HandleTicket)

	v1 := router.Group("/v1")
	{
		conversations := v1.Group("/conversations")
		conversations.POST("/:conversation_id/tickets", h.HandleTicket)
		conversations.GET("/:conversation_id", h.GetConversation)

		if h.queue != nil {
			v1.POST("/queue/conversations/:conversation_id/tickets", h.EnqueueTicket)
			v1.POST("/deliveries/conversations/:conversation_id/tickets", h.queue.verifySignature(), h.HandleTicket)
		}
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		started := time.Now()
		c.Next()

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("conversation_id", c.Param("conversation_id")).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(started)).
			Msg("http request")
	}
}
