package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/go-account-api/internal/config"
	gomail "github.com/wneessen/go-mail"
)

// SMTPRelay sends codes through an authenticated SMTP relay.
// A client is created per message so concurrent sends never share a connection.
type SMTPRelay struct {
	host string
	from string
	opts []gomail.Option
}

func NewSMTPRelay(cfg config.SMTP) (*SMTPRelay, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	policy := gomail.TLSOpportunistic
	if cfg.TLS {
		policy = gomail.TLSMandatory
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(policy),
		gomail.WithTimeout(30 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	return &SMTPRelay{host: cfg.Host, from: cfg.From, opts: opts}, nil
}

func (r *SMTPRelay) Name() string { return "smtp" }

func (r *SMTPRelay) SendCode(ctx context.Context, to, code string) error {
	msg, err := r.message(to, code)
	if err != nil {
		return err
	}
	client, err := gomail.NewClient(r.host, r.opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (r *SMTPRelay) message(to, code string) (*gomail.Msg, error) {
	body, err := codeBody(code)
	if err != nil {
		return nil, err
	}
	msg := gomail.NewMsg()
	if err := msg.From(r.from); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(codeSubject(code))
	msg.SetBodyString(gomail.TypeTextHTML, body)
	return msg, nil
}
