package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/herbreserve_backend/controllers"
	"github.com/HSouheill/herbreserve_backend/middleware"
)

// RegisterAdminRoutes sets up the admin cron monitoring routes
func RegisterAdminRoutes(e *echo.Echo, jwtSecret string, cronController *controllers.CronController) {
	admin := e.Group("/api/admin")
	admin.Use(middleware.JWTMiddleware(jwtSecret))
	admin.Use(middleware.RequireUserType("admin"))

	cron := admin.Group("/cron")
	cron.GET("/executions", cronController.GetExecutions)
	cron.GET("/executions/:id", cronController.GetExecution)
	cron.GET("/executions/:id/activations", cronController.GetExecutionActivations)
	cron.GET("/daily-profit-summary", cronController.GetDailyProfitSummary)
	cron.POST("/daily-profit/run", cronController.TriggerDailyProfit)
}
