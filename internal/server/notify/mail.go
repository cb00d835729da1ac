package notify

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/userhub/internal/server/models"
	"gopkg.in/gomail.v2"
)

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends plain-text welcome mails.
type SMTPMailer struct {
	dialer mailDialer
	from   string
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetAddressHeader("To", user.Email, user.FirstName+" "+user.LastName)
	msg.SetHeader("Subject", "Welcome")
	msg.SetBody("text/plain", fmt.Sprintf("Hello %s,\n\nyour account %s has been created.\n", user.FirstName, user.ID))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send welcome mail to %s: %w", user.Email, err)
	}
	return nil
}
