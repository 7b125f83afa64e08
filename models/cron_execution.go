package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const CronDailyProfit = "daily_profit"

const (
	CronStatusRunning        = "running"
	CronStatusCompleted      = "completed"
	CronStatusPartialSuccess = "partial_success"
	CronStatusFailed         = "failed"
)

const (
	TriggeredBySchedule = "schedule"
	TriggeredByRecovery = "recovery"
	TriggeredByManual   = "manual"
)

// CronExecution is the audit record of one batch run.
type CronExecution struct {
	ID              primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	CronName        string             `json:"cron_name" bson:"cron_name"`
	StartTime       time.Time          `json:"start_time" bson:"start_time"`
	EndTime         *time.Time         `json:"end_time,omitempty" bson:"end_time,omitempty"`
	Status          string             `json:"status" bson:"status"`
	ProcessedCount  int                `json:"processed_count" bson:"processed_count"`
	ErrorCount      int                `json:"error_count" bson:"error_count"`
	TotalAmount     float64            `json:"total_amount" bson:"total_amount"`
	TotalCommission float64            `json:"total_commission" bson:"total_commission"`
	TriggeredBy     string             `json:"triggered_by" bson:"triggered_by"`
	DurationMs      int64              `json:"duration_ms" bson:"duration_ms"`
	ErrorMessage    string             `json:"error_message,omitempty" bson:"error_message,omitempty"`
}

// IsTerminalCronStatus reports whether status is one a finished run can have.
func IsTerminalCronStatus(status string) bool {
	switch status {
	case CronStatusCompleted, CronStatusPartialSuccess, CronStatusFailed:
		return true
	}
	return false
}

// DailyProfitSummary is one canonical day of aggregated executions.
type DailyProfitSummary struct {
	Date           string  `json:"date" bson:"_id"`
	Executions     int     `json:"executions" bson:"executions"`
	Successful     int     `json:"successful" bson:"successful"`
	Failed         int     `json:"failed" bson:"failed"`
	Partial        int     `json:"partial" bson:"partial"`
	TotalProfit    float64 `json:"total_profit" bson:"total_profit"`
	ProcessedCount int     `json:"processed_count" bson:"processed_count"`
	ErrorCount     int     `json:"error_count" bson:"error_count"`
}
