package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/herbreserve_backend/controllers"
)

// Controllers groups everything SetupRoutes mounts.
type Controllers struct {
	Cron       *controllers.CronController
	Activation *controllers.ActivationController
}

// SetupRoutes configures all API routes by calling individual route registration functions
func SetupRoutes(e *echo.Echo, client *mongo.Client, jwtSecret string, ctrl Controllers) {
	e.Match([]string{http.MethodGet, http.MethodHead}, "/health", healthCheck(client))

	RegisterUserRoutes(e, jwtSecret, ctrl.Activation)
	RegisterAdminRoutes(e, jwtSecret, ctrl.Cron)
}

func healthCheck(client *mongo.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if client == nil || client.Ping(ctx, nil) != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": "unreachable",
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	}
}
