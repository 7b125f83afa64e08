package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/middleware"
	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/services"
	"github.com/HSouheill/herbreserve_backend/websocket"
)

type DailyProfitActivator interface {
	Activate(ctx context.Context, userID primitive.ObjectID) (*services.ActivationStatus, error)
	Status(ctx context.Context, userID primitive.ObjectID) (*services.ActivationStatus, error)
}

// ActivationController serves the user side of the daily profit opt-in.
type ActivationController struct {
	activator DailyProfitActivator
	hub       *websocket.Hub
	log       *logrus.Logger
}

func NewActivationController(activator DailyProfitActivator, hub *websocket.Hub, log *logrus.Logger) *ActivationController {
	return &ActivationController{activator: activator, hub: hub, log: log}
}

// ActivateDailyProfit handles POST /api/user/activate-daily-profit
func (ac *ActivationController) ActivateDailyProfit(c echo.Context) error {
	userID, err := middleware.UserObjectID(c)
	if err != nil {
		return unauthorized(c)
	}

	status, err := ac.activator.Activate(c.Request().Context(), userID)
	if errors.Is(err, services.ErrUserNotFound) {
		return notFound(c, "User not found")
	}
	if err != nil {
		ac.log.WithError(err).WithField("user_id", userID.Hex()).Error("failed to activate daily profit")
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to activate daily profit",
		})
	}

	message := "Daily profit activated"
	if !status.Created {
		message = "Daily profit already activated for today"
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: message,
		Data:    status,
	})
}

// GetDailyProfitStatus handles GET /api/user/daily-profit-status
func (ac *ActivationController) GetDailyProfitStatus(c echo.Context) error {
	userID, err := middleware.UserObjectID(c)
	if err != nil {
		return unauthorized(c)
	}

	status, err := ac.activator.Status(c.Request().Context(), userID)
	if errors.Is(err, services.ErrUserNotFound) {
		return notFound(c, "User not found")
	}
	if err != nil {
		ac.log.WithError(err).WithField("user_id", userID.Hex()).Error("failed to load daily profit status")
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load daily profit status",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Daily profit status retrieved successfully",
		Data: map[string]interface{}{
			"dailyProfitActivated":      status.User.DailyProfitActivated,
			"lastDailyProfitActivation": status.User.LastDailyProfitActivation,
			"today":                     status.Today,
		},
	})
}

// WebSocket handles GET /api/user/ws
func (ac *ActivationController) WebSocket(c echo.Context) error {
	userID, err := middleware.UserObjectID(c)
	if err != nil {
		return unauthorized(c)
	}
	admin := middleware.ExtractUserType(c) == "admin"
	return websocket.HandleWebSocket(c, ac.hub, userID, admin)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.Response{
		Status:  http.StatusUnauthorized,
		Message: "Invalid user token",
	})
}
