package notify

import (
	"context"

	"github.com/fairwaylabs/clubhouse/pkg/logger"
)

// DevMailer prints messages to the log instead of sending them.
type DevMailer struct{}

func (DevMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	logger.Info("DEV EMAIL",
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"text", text,
	)
	return "dev", nil
}

// DevSMS prints texts to the log instead of sending them.
type DevSMS struct{}

func (DevSMS) Send(ctx context.Context, to, body string) error {
	logger.InfoContext(ctx, "DEV SMS", "to", to, "body", body)
	return nil
}
