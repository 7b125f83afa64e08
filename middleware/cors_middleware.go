package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// GlobalCORS allows the local dev origins plus any configured ones.
func GlobalCORS(extraOrigins []string) echo.MiddlewareFunc {
	origins := append(append([]string{}, defaultOrigins...), extraOrigins...)

	return echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			echo.HeaderAuthorization, "X-Requested-With",
		},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength, echo.HeaderContentType},
		MaxAge:           86400,
	})
}
