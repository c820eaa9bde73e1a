package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// Transport delivers a rendered email.
type Transport interface {
	Deliver(ctx context.Context, msg Email) (id string, err error)
}

// ResendTransport delivers through the Resend API.
type ResendTransport struct {
	client *resend.Client
	from   string
}

// NewResendTransport returns a transport sending as "fromName <fromEmail>".
func NewResendTransport(apiKey, fromEmail, fromName string) (*ResendTransport, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}
	if fromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}
	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}
	return &ResendTransport{client: resend.NewClient(apiKey), from: from}, nil
}

func (t *ResendTransport) Deliver(ctx context.Context, msg Email) (string, error) {
	sent, err := t.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    t.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
		Text:    msg.TextBody,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return sent.Id, nil
}

// LogTransport writes messages to the logger instead of sending them. Bodies
// carry codes and links, so only the envelope is logged.
type LogTransport struct {
	log zerolog.Logger
}

func NewLogTransport(log zerolog.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Deliver(_ context.Context, msg Email) (string, error) {
	t.log.Info().
		Str("to", maskAddress(msg.To)).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.TextBody)).
		Msg("email delivery skipped (log transport)")
	return "", nil
}

// maskAddress keeps the first character of the local part and the domain.
func maskAddress(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}
