// Package notify dispatches guest invites and booking confirmations.
// From the orchestrator's point of view this is fire-and-forget: send
// failures are logged and never roll back a booking.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/pkg/config"
	"github.com/fairwaylabs/clubhouse/pkg/logger"
)

// Mailer sends one email. MailerSend in production, DevMailer locally.
type Mailer interface {
	Send(toEmail, toName, subject, text, html string) (string, error)
}

// SMSSender sends one text message.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// GuestInvite is everything a guest needs to show up: the referral code
// attributing a later signup and the access code unlocking the invite page.
type GuestInvite struct {
	GuestName    string
	GuestEmail   string
	GuestPhone   string
	HostName     string
	ReferralCode string
	AccessCode   string
	Link         string
	Day          string
	StartTime    string
}

// BookingSummary is the structured confirmation sent to the requester.
type BookingSummary struct {
	MemberName  string
	MemberEmail string
	MemberPhone string
	Bookings    []domain.Booking
	PassUsage   domain.GuestPassUsage
}

type Notifier interface {
	SendGuestInvite(ctx context.Context, inv GuestInvite) error
	SendBookingConfirmation(ctx context.Context, sum BookingSummary) error
}

type Service struct {
	mailer Mailer
	sms    SMSSender
	club   config.ClubConfig
}

// NewService composes email and SMS. sms may be nil when Twilio is not
// configured; invites then go out by email only.
func NewService(mailer Mailer, sms SMSSender, club config.ClubConfig) *Service {
	return &Service{mailer: mailer, sms: sms, club: club}
}

func (s *Service) SendGuestInvite(ctx context.Context, inv GuestInvite) error {
	subject := fmt.Sprintf("%s invited you to %s", inv.HostName, s.club.Name)
	text := fmt.Sprintf(
		"%s invited you to %s on %s at %s.\nYour access code is %s.\nView your invite: %s\nJoining later? Use referral code %s at signup.",
		inv.HostName, s.club.Name, inv.Day, inv.StartTime, inv.AccessCode, inv.Link, inv.ReferralCode)
	html := fmt.Sprintf(
		`<p>%s invited you to <b>%s</b> on %s at %s.</p><p>Your access code is <b>%s</b>.</p><p><a href="%s">View your invite</a></p><p>Joining later? Use referral code <b>%s</b> at signup.</p>`,
		inv.HostName, s.club.Name, inv.Day, inv.StartTime, inv.AccessCode, inv.Link, inv.ReferralCode)

	if _, err := s.mailer.Send(inv.GuestEmail, inv.GuestName, subject, text, html); err != nil {
		return fmt.Errorf("invite email to %s: %w", inv.GuestEmail, err)
	}

	if s.sms != nil && strings.TrimSpace(inv.GuestPhone) != "" {
		body := fmt.Sprintf("%s invited you to %s on %s at %s. Access code: %s %s",
			inv.HostName, s.club.Name, inv.Day, inv.StartTime, inv.AccessCode, inv.Link)
		if err := s.sms.Send(ctx, inv.GuestPhone, body); err != nil {
			// email already went out; the SMS leg failing is not fatal
			logger.WarnContext(ctx, "Invite SMS failed", "error", err, "to", inv.GuestPhone)
		}
	}
	return nil
}

func (s *Service) SendBookingConfirmation(ctx context.Context, sum BookingSummary) error {
	var lines []string
	for _, b := range sum.Bookings {
		line := fmt.Sprintf("%s at %s, %s (%s)", b.Day, b.StartTime, b.BayName, b.ServiceName)
		if n := len(b.Guests); n > 0 {
			line += fmt.Sprintf(", %d guest(s)", n)
		}
		lines = append(lines, line)
	}
	if sum.PassUsage.Charged > 0 {
		lines = append(lines, fmt.Sprintf("Guest passes: %d free, %d charged", sum.PassUsage.Free, sum.PassUsage.Charged))
	}

	subject := fmt.Sprintf("Your %s booking is confirmed", s.club.Name)
	text := "Your booking is confirmed:\n" + strings.Join(lines, "\n")
	html := "<p>Your booking is confirmed:</p><ul><li>" + strings.Join(lines, "</li><li>") + "</li></ul>"

	if _, err := s.mailer.Send(sum.MemberEmail, sum.MemberName, subject, text, html); err != nil {
		return fmt.Errorf("confirmation email to %s: %w", sum.MemberEmail, err)
	}
	return nil
}

var _ Notifier = (*Service)(nil)
