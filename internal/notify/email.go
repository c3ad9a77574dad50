package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailChannel отправляет письма через SMTP
type EmailChannel struct {
	from      string
	newSender func() (mailSender, error)
}

func NewEmailChannel(host string, port int, username, password, from string) *EmailChannel {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}

	return &EmailChannel{
		from: from,
		// клиент на каждую отправку: соединение живёт ровно одно письмо
		newSender: func() (mailSender, error) {
			return mail.NewClient(host, opts...)
		},
	}
}

func (c *EmailChannel) Name() string {
	return "email"
}

func (c *EmailChannel) Send(ctx context.Context, recipient Recipient, msg Message) error {
	if recipient.Email == "" {
		return ErrNoAddress
	}

	m, err := buildMail(c.from, recipient.Email, msg)
	if err != nil {
		return fmt.Errorf("build email: %w", err)
	}

	sender, err := c.newSender()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := sender.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func buildMail(from, to string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, err
	}
	if err := m.To(to); err != nil {
		return nil, err
	}
	m.Subject(sanitizeHeader(msg.Subject))
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	return m, nil
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
