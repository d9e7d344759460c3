package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/premsagar/subscription-service/internal/api/rest/handlers"
	"github.com/premsagar/subscription-service/internal/api/rest/middleware"
	"github.com/premsagar/subscription-service/internal/service"
	"github.com/premsagar/subscription-service/pkg/logger"
)

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(
	orders service.OrderService,
	payments service.PaymentService,
	bus *service.ResultBus,
	registry *prometheus.Registry,
	log *logger.Logger,
) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	orderHandler := handlers.NewOrderHandler(orders, log)
	paymentHandler := handlers.NewPaymentHandler(payments, bus, log)
	webhookHandler := handlers.NewWebhookHandler(payments, log)

	// Клиентские маршруты требуют bearer-токена
	authed := r.Group("/", middleware.ExtractBearerToken(log))
	{
		authed.POST("/create-order", orderHandler.CreateOrder)
		authed.POST("/payment/verify", paymentHandler.VerifyPayment)
		authed.GET("/payment/result/:order_id", paymentHandler.WaitResult)
		authed.GET("/subscriptions/:user_id", orderHandler.GetSubscription)
	}

	// Вебхук аутентифицируется подписью, а не токеном
	r.POST("/payment-callback", webhookHandler.HandleCallback)

	return r
}
