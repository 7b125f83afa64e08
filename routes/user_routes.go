package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/herbreserve_backend/controllers"
	"github.com/HSouheill/herbreserve_backend/middleware"
)

// RegisterUserRoutes sets up all user-related protected routes
func RegisterUserRoutes(e *echo.Echo, jwtSecret string, activationController *controllers.ActivationController) {
	r := e.Group("/api/user")
	r.Use(middleware.JWTMiddleware(jwtSecret))

	r.POST("/activate-daily-profit", activationController.ActivateDailyProfit)
	r.GET("/daily-profit-status", activationController.GetDailyProfitStatus)
	r.GET("/ws", activationController.WebSocket)
}
