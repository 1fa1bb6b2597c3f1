// Package members wraps signup, login and membership checks against the
// member store. The store owns passwords and membership records; this
// service only exchanges its token for a local session JWT and answers
// "is this member active today".
package members

import (
	"context"
	"fmt"
	"time"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/internal/gymmaster"
	"github.com/fairwaylabs/clubhouse/internal/utils"
	"github.com/fairwaylabs/clubhouse/pkg/auth"
	"github.com/fairwaylabs/clubhouse/pkg/config"
	"github.com/fairwaylabs/clubhouse/pkg/events"
	"github.com/fairwaylabs/clubhouse/pkg/logger"
)

type Store interface {
	Login(ctx context.Context, email, password string) (*gymmaster.LoginResult, error)
	Signup(ctx context.Context, req gymmaster.SignupRequest) (*gymmaster.LoginResult, error)
	Profile(ctx context.Context, token string) (*domain.Member, map[string]string, error)
	Memberships(ctx context.Context, token string) ([]domain.Membership, error)
}

type Service struct {
	store Store
	bus   events.Publisher
	cfg   config.AuthConfig
}

func NewService(store Store, bus events.Publisher, cfg config.AuthConfig) *Service {
	return &Service{store: store, bus: bus, cfg: cfg}
}

type SessionResult struct {
	Token     string         `json:"token"`
	ExpiresIn int64          `json:"expires_in"`
	Member    *domain.Member `json:"member"`
}

func (s *Service) Login(ctx context.Context, email, password string) (*SessionResult, error) {
	res, err := s.store.Login(ctx, utils.NormalizeEmail(email), password)
	if err != nil {
		return nil, err
	}
	return s.session(ctx, res)
}

type SignupInput struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone,omitempty"`
	MembershipID int64  `json:"membership_id"`
	ReferralCode string `json:"referral_code,omitempty"`
}

func (in *SignupInput) Validate() error {
	if !utils.IsValidEmail(in.Email) {
		return fmt.Errorf("a valid email is required")
	}
	if len(in.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if in.FirstName == "" || in.LastName == "" {
		return fmt.Errorf("first and last name are required")
	}
	if in.MembershipID == 0 {
		return fmt.Errorf("a membership plan is required")
	}
	if in.Phone != "" && !utils.IsValidPhone(in.Phone) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*SessionResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res, err := s.store.Signup(ctx, gymmaster.SignupRequest{
		Email:        utils.NormalizeEmail(in.Email),
		Password:     in.Password,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        utils.NormalizePhone(in.Phone),
		MembershipID: in.MembershipID,
		ReferralCode: in.ReferralCode,
	})
	if err != nil {
		return nil, err
	}

	if in.ReferralCode != "" && s.bus != nil {
		event := events.ReferralRedeemedEvent{
			ReferralCode: in.ReferralCode,
			GuestEmail:   utils.NormalizeEmail(in.Email),
			RedeemedAt:   time.Now(),
		}
		if err := s.bus.Publish(ctx, events.ReferralRedeemed, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish referral redeemed event", "error", err)
		}
	}

	return s.session(ctx, res)
}

func (s *Service) session(ctx context.Context, res *gymmaster.LoginResult) (*SessionResult, error) {
	member, _, err := s.store.Profile(ctx, res.Token)
	if err != nil {
		return nil, err
	}

	token, err := auth.NewSessionToken(member.ID, res.Token, member.Email, s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &SessionResult{
		Token:     token,
		ExpiresIn: int64(s.cfg.SessionTTL.Seconds()),
		Member:    member,
	}, nil
}

// ActiveMembership returns the membership covering today, or
// ErrNoActiveMembership. The booking flow treats the latter as terminal.
func (s *Service) ActiveMembership(ctx context.Context, memberToken string) (*domain.Membership, error) {
	ms, err := s.store.Memberships(ctx, memberToken)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range ms {
		if ms[i].ActiveOn(now) {
			return &ms[i], nil
		}
	}
	return nil, domain.ErrNoActiveMembership
}
