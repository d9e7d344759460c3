package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "subscription-service"

var startedAt = time.Now()

// HealthCheck обработчик для проверки работоспособности сервиса:
// отдает имя сервиса и аптайм процесса
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": serviceName,
		"uptime":  time.Since(startedAt).Truncate(time.Second).String(),
		"time":    time.Now().Format(time.RFC3339),
	})
}
