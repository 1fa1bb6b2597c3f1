package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/pkg/config"
)

// TwilioSMS talks to the Twilio Messages REST endpoint directly: a
// single form POST with Basic Auth, no SDK needed.
type TwilioSMS struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	http       *http.Client
}

func NewTwilioSMS(cfg config.TwilioConfig) *TwilioSMS {
	return &TwilioSMS{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    "https://api.twilio.com",
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TwilioSMS) Enabled() bool {
	return t.accountSID != "" && t.authToken != "" && t.from != ""
}

func (t *TwilioSMS) Send(ctx context.Context, to, body string) error {
	if !t.Enabled() {
		return fmt.Errorf("twilio disabled (missing TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN or TWILIO_FROM_NUMBER)")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	res, err := t.http.Do(req)
	if err != nil {
		return &domain.RemoteError{Service: "twilio", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &domain.RemoteError{
			Service: "twilio",
			Status:  res.StatusCode,
			Err:     fmt.Errorf("send to %s: %s", to, strings.TrimSpace(string(snippet))),
		}
	}
	return nil
}
