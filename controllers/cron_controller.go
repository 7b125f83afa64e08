package controllers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/repositories"
	"github.com/HSouheill/herbreserve_backend/services"
	"github.com/HSouheill/herbreserve_backend/utils"
)

const defaultSummaryDays = 30

type ExecutionReader interface {
	List(ctx context.Context, q repositories.ExecutionQuery) ([]models.CronExecution, int64, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.CronExecution, error)
	DailySummary(ctx context.Context, from, to time.Time, timezone string) ([]models.DailyProfitSummary, error)
}

type ActivationReader interface {
	ActivationStats(ctx context.Context, executionID primitive.ObjectID) (map[string]int64, error)
	ListByExecution(ctx context.Context, executionID primitive.ObjectID, status string, page, limit int) ([]models.TradeActivation, int64, error)
}

type ProfitTrigger interface {
	Run(ctx context.Context, triggeredBy string) (*services.RunResult, error)
}

// CronController serves the admin views over cron executions.
type CronController struct {
	executions  ExecutionReader
	activations ActivationReader
	trigger     ProfitTrigger
	clock       *utils.DayClock
	log         *logrus.Logger
}

func NewCronController(executions ExecutionReader, activations ActivationReader, trigger ProfitTrigger, clock *utils.DayClock, log *logrus.Logger) *CronController {
	return &CronController{
		executions:  executions,
		activations: activations,
		trigger:     trigger,
		clock:       clock,
		log:         log,
	}
}

type executionListQuery struct {
	Page      int    `query:"page" validate:"omitempty,min=1"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=100"`
	CronName  string `query:"cron_name" validate:"omitempty,max=64"`
	Status    string `query:"status" validate:"omitempty,oneof=running completed partial_success failed"`
	StartDate string `query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `query:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type activationListQuery struct {
	Page   int    `query:"page" validate:"omitempty,min=1"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Status string `query:"status" validate:"omitempty,oneof=pending processed failed skipped"`
}

type summaryQuery struct {
	StartDate string `query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `query:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// GetExecutions handles GET /api/admin/cron/executions
func (cc *CronController) GetExecutions(c echo.Context) error {
	var q executionListQuery
	if msg := bindQuery(c, &q); msg != "" {
		return badRequest(c, msg)
	}
	from, to, err := cc.dateRange(q.StartDate, q.EndDate)
	if err != nil {
		return badRequest(c, err.Error())
	}

	page, limit := repositories.NormalizePage(q.Page, q.Limit)
	executions, total, err := cc.executions.List(c.Request().Context(), repositories.ExecutionQuery{
		CronName: q.CronName,
		Status:   q.Status,
		From:     from,
		To:       to,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return cc.internalError(c, err, "Failed to retrieve cron executions")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Cron executions retrieved successfully",
		Data: map[string]interface{}{
			"executions": executions,
			"pagination": pagination(total, page, limit),
		},
	})
}

// GetExecution handles GET /api/admin/cron/executions/:id
func (cc *CronController) GetExecution(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid execution ID")
	}

	ctx := c.Request().Context()
	exec, err := cc.executions.Get(ctx, id)
	if errors.Is(err, services.ErrExecutionNotFound) {
		return notFound(c, "Cron execution not found")
	}
	if err != nil {
		return cc.internalError(c, err, "Failed to retrieve cron execution")
	}

	stats, err := cc.activations.ActivationStats(ctx, id)
	if err != nil {
		return cc.internalError(c, err, "Failed to retrieve activation stats")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Cron execution retrieved successfully",
		Data: map[string]interface{}{
			"execution":       exec,
			"activationStats": stats,
		},
	})
}

// GetExecutionActivations handles GET /api/admin/cron/executions/:id/activations
func (cc *CronController) GetExecutionActivations(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid execution ID")
	}
	var q activationListQuery
	if msg := bindQuery(c, &q); msg != "" {
		return badRequest(c, msg)
	}

	page, limit := repositories.NormalizePage(q.Page, q.Limit)
	activations, total, err := cc.activations.ListByExecution(c.Request().Context(), id, q.Status, page, limit)
	if err != nil {
		return cc.internalError(c, err, "Failed to retrieve trade activations")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Trade activations retrieved successfully",
		Data: map[string]interface{}{
			"activations": activations,
			"pagination":  pagination(total, page, limit),
		},
	})
}

// GetDailyProfitSummary handles GET /api/admin/cron/daily-profit-summary
func (cc *CronController) GetDailyProfitSummary(c echo.Context) error {
	var q summaryQuery
	if msg := bindQuery(c, &q); msg != "" {
		return badRequest(c, msg)
	}
	from, to, err := cc.dateRange(q.StartDate, q.EndDate)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if to == nil {
		end := cc.clock.Today().AddDate(0, 0, 1)
		to = &end
	}
	if from == nil {
		start := to.AddDate(0, 0, -defaultSummaryDays)
		from = &start
	}

	summary, err := cc.executions.DailySummary(c.Request().Context(), *from, *to, cc.clock.Location().String())
	if err != nil {
		return cc.internalError(c, err, "Failed to build daily profit summary")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Daily profit summary retrieved successfully",
		Data: map[string]interface{}{
			"summary":   summary,
			"startDate": cc.clock.DayKey(*from),
			"endDate":   cc.clock.DayKey(to.AddDate(0, 0, -1)),
		},
	})
}

// TriggerDailyProfit handles POST /api/admin/cron/daily-profit/run
func (cc *CronController) TriggerDailyProfit(c echo.Context) error {
	// The run outlives a dropped client connection.
	ctx := context.WithoutCancel(c.Request().Context())
	result, err := cc.trigger.Run(ctx, models.TriggeredByManual)
	if errors.Is(err, services.ErrAlreadyRunning) {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Daily profit run already in progress",
		})
	}
	if err != nil {
		cc.log.WithError(err).Error("manual daily profit run failed")
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Daily profit run failed",
			Data:    result,
		})
	}

	cc.log.WithFields(logrus.Fields{
		"admin_id":     c.Get("userId"),
		"execution_id": result.ExecutionID.Hex(),
		"status":       result.Status,
	}).Info("manual daily profit run finished")
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Daily profit run finished",
		Data:    result,
	})
}

// dateRange turns inclusive YYYY-MM-DD bounds into a [from, to) range.
func (cc *CronController) dateRange(start, end string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if start != "" {
		t, err := cc.clock.ParseDay(start)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if end != "" {
		t, err := cc.clock.ParseDay(end)
		if err != nil {
			return nil, nil, err
		}
		t = t.AddDate(0, 0, 1)
		to = &t
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, errors.New("start_date must not be after end_date")
	}
	return from, to, nil
}

func (cc *CronController) internalError(c echo.Context, err error, message string) error {
	cc.log.WithError(err).WithField("path", c.Path()).Error(message)
	return c.JSON(http.StatusInternalServerError, models.Response{
		Status:  http.StatusInternalServerError,
		Message: message,
	})
}

// bindQuery returns a client facing message when the query does not bind or validate.
func bindQuery(c echo.Context, q interface{}) string {
	if err := c.Bind(q); err != nil {
		return "Invalid query parameters"
	}
	if err := c.Validate(q); err != nil {
		return err.Error()
	}
	return ""
}

func pagination(total int64, page, limit int) models.Pagination {
	return models.Pagination{
		TotalCount: total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.Response{
		Status:  http.StatusBadRequest,
		Message: message,
	})
}

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, models.Response{
		Status:  http.StatusNotFound,
		Message: message,
	})
}
