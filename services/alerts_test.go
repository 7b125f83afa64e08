package services

import (
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/gomail.v2"

	"github.com/HSouheill/herbreserve_backend/models"
)

func TestMailAlerterSendsOnlyForUnhealthyRuns(t *testing.T) {
	sent := make(chan *gomail.Message, 4)
	a := &MailAlerter{
		cfg:  MailConfig{From: "cron@example.com", To: "ops@example.com"},
		log:  quietLogger(),
		send: func(m *gomail.Message) error { sent <- m; return nil },
	}

	base := models.CronExecution{
		ID:        primitive.NewObjectID(),
		CronName:  models.CronDailyProfit,
		StartTime: runDay,
	}

	for _, status := range []string{models.CronStatusCompleted, models.CronStatusRunning} {
		exec := base
		exec.Status = status
		a.ExecutionFinished(exec)
	}
	select {
	case <-sent:
		t.Fatal("alert sent for a healthy run")
	case <-time.After(50 * time.Millisecond):
	}

	exec := base
	exec.Status = models.CronStatusPartialSuccess
	exec.ErrorMessage = "investment x: plan not found"
	a.ExecutionFinished(exec)

	select {
	case m := <-sent:
		if got := m.GetHeader("To"); len(got) != 1 || got[0] != "ops@example.com" {
			t.Errorf("To = %v", got)
		}
		if got := m.GetHeader("Subject"); len(got) != 1 || !strings.HasPrefix(got[0], "[PARTIAL_SUCCESS] daily_profit") {
			t.Errorf("Subject = %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no alert sent for a partial run")
	}
}

func TestAlertBody(t *testing.T) {
	end := runDay.Add(90 * time.Second)
	body := alertBody(models.CronExecution{
		ID:             primitive.NewObjectID(),
		CronName:       models.CronDailyProfit,
		TriggeredBy:    models.TriggeredByRecovery,
		StartTime:      runDay,
		EndTime:        &end,
		DurationMs:     90000,
		Status:         models.CronStatusFailed,
		ProcessedCount: 0,
		ErrorCount:     2,
		ErrorMessage:   "boom",
	})
	for _, want := range []string{"triggered by recovery", "(90000 ms)", "Errors: 2", "First error: boom"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestNewMailAlerterDefaultsSender(t *testing.T) {
	a := NewMailAlerter(MailConfig{Host: "localhost", Port: 25, User: "cron@example.com", To: "ops@example.com"}, quietLogger())
	if a.send == nil {
		t.Fatal("alerter has no send function")
	}
	if a.cfg.From != "cron@example.com" {
		t.Errorf("From = %q, want the SMTP user", a.cfg.From)
	}
}
