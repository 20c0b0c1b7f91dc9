package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/xavierca1/leadsync/internal/entity"
)

const alertFrom = "no-reply@leadsync.local"

var armFailureTmpl = template.Must(template.New("arm_failure").Parse(
	`<p>The <strong>{{.Flag}}</strong> automation could not be triggered.</p>
<p>Requested by: {{.UserID}}<br>
At: {{.At.Format "2006-01-02 15:04:05 MST"}}</p>
<p>Error: <code>{{.Cause}}</code></p>
`))

// AlertSender mails operators when an automation arm never reaches the store.
type AlertSender struct {
	To     string
	dialer sender
	logger *slog.Logger
	now    func() time.Time
}

func NewAlertSender(host string, port int, user, password, to string, logger *slog.Logger) *AlertSender {
	return &AlertSender{
		To:     to,
		dialer: gomail.NewDialer(host, port, user, password),
		logger: logger.With("component", "mail"),
		now:    time.Now,
	}
}

func (s *AlertSender) ArmFailed(ctx context.Context, flag entity.Flag, userID string, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := ArmFailureData{
		Flag:   flag.Label(),
		UserID: userID,
		Cause:  cause.Error(),
		At:     s.now().UTC(),
	}

	var body bytes.Buffer
	if err := armFailureTmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("rendering alert: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", alertFrom)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", fmt.Sprintf("Failed to trigger %s automation", data.Flag))
	m.SetBody("text/html", body.String())

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sending alert: %w", err)
	}
	s.logger.Info("arm failure alert sent", "flag", flag, "to", s.To)
	return nil
}
