package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/HSouheill/herbreserve_backend/models"
)

// MailConfig is the SMTP account alerts are sent through.
type MailConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
	To   string
}

// MailAlerter emails the admin when a batch run ends failed or partially successful.
type MailAlerter struct {
	cfg  MailConfig
	log  *logrus.Logger
	send func(m *gomail.Message) error
}

func NewMailAlerter(cfg MailConfig, log *logrus.Logger) *MailAlerter {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	return &MailAlerter{cfg: cfg, log: log, send: func(m *gomail.Message) error { return d.DialAndSend(m) }}
}

func (a *MailAlerter) IncomeCredited(models.Income) {}

func (a *MailAlerter) ExecutionFinished(exec models.CronExecution) {
	if exec.Status != models.CronStatusFailed && exec.Status != models.CronStatusPartialSuccess {
		return
	}
	m := a.message(exec)
	go func() {
		if err := a.send(m); err != nil {
			a.log.WithError(err).WithField("execution_id", exec.ID.Hex()).Error("failed to send cron alert email")
		}
	}()
}

func (a *MailAlerter) message(exec models.CronExecution) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", a.cfg.From)
	m.SetHeader("To", a.cfg.To)
	m.SetHeader("Subject", alertSubject(exec))
	m.SetBody("text/plain", alertBody(exec))
	return m
}

func alertSubject(exec models.CronExecution) string {
	return fmt.Sprintf("[%s] %s run %s", strings.ToUpper(exec.Status), exec.CronName, exec.StartTime.Format("2006-01-02"))
}

func alertBody(exec models.CronExecution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Execution: %s\n", exec.ID.Hex())
	fmt.Fprintf(&b, "Cron: %s (triggered by %s)\n", exec.CronName, exec.TriggeredBy)
	fmt.Fprintf(&b, "Started: %s\n", exec.StartTime.Format(time.RFC3339))
	if exec.EndTime != nil {
		fmt.Fprintf(&b, "Ended: %s (%d ms)\n", exec.EndTime.Format(time.RFC3339), exec.DurationMs)
	}
	fmt.Fprintf(&b, "Status: %s\n", exec.Status)
	fmt.Fprintf(&b, "Processed: %d\nErrors: %d\n", exec.ProcessedCount, exec.ErrorCount)
	fmt.Fprintf(&b, "Total profit: %.6f\nTotal commission: %.6f\n", exec.TotalAmount, exec.TotalCommission)
	if exec.ErrorMessage != "" {
		fmt.Fprintf(&b, "\nFirst error: %s\n", exec.ErrorMessage)
	}
	return b.String()
}
