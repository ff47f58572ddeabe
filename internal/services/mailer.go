package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"time"

	"github.com/dajohi/goemail"
)

// DefaultMailTimeout bounds a single delivery attempt.
const DefaultMailTimeout = 10 * time.Second

// Mailer delivers a single email. Implementations make exactly one attempt;
// failures surface to the caller and are never retried here.
type Mailer interface {
	IsEnabled() bool
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends email from a preset address over SMTPS.
//
// SMTPMailer implements the Mailer interface.
type SMTPMailer struct {
	smtp        *goemail.SMTP
	mailName    string
	mailAddress string
	disabled    bool
	timeout     time.Duration
}

// NewSMTPMailer returns a mailer for the given SMTP host. Mail is considered
// disabled when any of the required credentials are missing; a disabled
// mailer reports failure on Send so callers can roll back issuance state.
func NewSMTPMailer(host, user, password, emailAddress string, skipVerify bool, timeout time.Duration) (*SMTPMailer, error) {
	if host == "" || user == "" || password == "" {
		log.Println("Mail: DISABLED")
		return &SMTPMailer{disabled: true}, nil
	}
	if timeout <= 0 {
		timeout = DefaultMailTimeout
	}

	h := fmt.Sprintf("smtps://%v:%v@%v", user, password, host)
	u, err := url.Parse(h)
	if err != nil {
		return nil, err
	}

	a, err := mail.ParseAddress(emailAddress)
	if err != nil {
		return nil, err
	}

	smtp, err := goemail.NewSMTP(u.String(), &tls.Config{
		InsecureSkipVerify: skipVerify,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Mail host: smtps://%v:[password]@%v", user, host)

	return &SMTPMailer{
		smtp:        smtp,
		mailName:    a.Name,
		mailAddress: a.Address,
		timeout:     timeout,
	}, nil
}

// IsEnabled returns whether the mail server is enabled.
func (m *SMTPMailer) IsEnabled() bool {
	return !m.disabled
}

// Send delivers one message, bounded by the configured timeout. A timeout
// surfaces as ErrMailUnavailable; the SMTP send itself keeps running in the
// background but its outcome is no longer observed.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.disabled {
		return ErrMailUnavailable
	}

	msg := goemail.NewHTMLMessage(m.mailAddress, subject, body)
	msg.SetName(m.mailName)
	msg.AddTo(to)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.smtp.Send(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrMailUnavailable, ctx.Err())
	}
}
