package mailer

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *zap.Logger
}

// New returns nil when SMTP is not configured; callers treat a nil *Mailer
// as "email disabled".
func New(host string, port int, username, password, from string, logger *zap.Logger) *Mailer {
	if host == "" || from == "" {
		return nil
	}
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger,
	}
}

func (m *Mailer) send(to, subject, htmlBody string) {
	if m == nil {
		return
	}
	// Async so SMTP latency never delays the response.
	go func() {
		msg := gomail.NewMessage()
		msg.SetHeader("From", m.from)
		msg.SetHeader("To", to)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/html", htmlBody)

		d := gomail.NewDialer(m.host, m.port, m.username, m.password)
		if err := d.DialAndSend(msg); err != nil {
			m.logger.Warn("email send failed", zap.String("to", to), zap.Error(err))
		}
	}()
}

func (m *Mailer) SendPasswordReset(to, restaurantName, resetLink string) {
	body := fmt.Sprintf(
		`<p>A password reset was requested for your %s account.</p>
<p><a href="%s">Reset your password</a></p>
<p>The link expires in one hour. If you did not request this, ignore this email.</p>`,
		restaurantName, resetLink,
	)
	m.send(to, "Password reset", body)
}

func (m *Mailer) SendOrderConfirmation(to, restaurantName, orderNumber, trackingLink string) {
	body := fmt.Sprintf(
		`<p>Thanks for your order at %s.</p>
<p>Your order number is <strong>%s</strong>.</p>
<p><a href="%s">Track your order</a></p>`,
		restaurantName, orderNumber, trackingLink,
	)
	m.send(to, "Order "+orderNumber+" confirmed", body)
}
