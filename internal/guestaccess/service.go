// Package guestaccess issues the short codes guests use to view their
// invite. Codes live in Redis as argon2id hashes with a TTL, are
// single-use, and lock after too many bad attempts.
package guestaccess

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/redis/go-redis/v9"

	"github.com/fairwaylabs/clubhouse/internal/utils"
	"github.com/fairwaylabs/clubhouse/pkg/auth"
	"github.com/fairwaylabs/clubhouse/pkg/config"
)

const maxAttempts = 5

var (
	ErrInvalidCode     = errors.New("invalid or expired access code")
	ErrTooManyAttempts = errors.New("too many attempts, request a new code")
)

type Service struct {
	rdb        *redis.Client
	secret     string
	codeTTL    time.Duration
	sessionTTL time.Duration
}

func NewService(rdb *redis.Client, cfg config.AuthConfig) *Service {
	return &Service{
		rdb:        rdb,
		secret:     cfg.JWTSecret,
		codeTTL:    cfg.GuestCodeTTL,
		sessionTTL: cfg.GuestSessionTTL,
	}
}

// IssueCode creates a fresh 6-digit code for the guest, replacing any
// outstanding one and resetting the attempt counter.
func (s *Service) IssueCode(ctx context.Context, email string) (string, error) {
	email = utils.NormalizeEmail(email)
	code, err := sixDigits()
	if err != nil {
		return "", err
	}

	hash, err := argon2id.CreateHash(code, argon2id.DefaultParams)
	if err != nil {
		return "", err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, codeKey(email), hash, s.codeTTL)
	pipe.Del(ctx, attemptsKey(email))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store access code: %w", err)
	}
	return code, nil
}

// VerifyCode checks the code and, on success, consumes it and returns a
// short-lived guest session token.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (string, error) {
	email = utils.NormalizeEmail(email)

	attempts, err := s.rdb.Incr(ctx, attemptsKey(email)).Result()
	if err != nil {
		return "", fmt.Errorf("count attempts: %w", err)
	}
	if attempts == 1 {
		s.rdb.Expire(ctx, attemptsKey(email), s.codeTTL)
	}
	if attempts > maxAttempts {
		return "", ErrTooManyAttempts
	}

	hash, err := s.rdb.Get(ctx, codeKey(email)).Result()
	if err == redis.Nil {
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", fmt.Errorf("load access code: %w", err)
	}

	match, err := argon2id.ComparePasswordAndHash(code, hash)
	if err != nil {
		return "", err
	}
	if !match {
		return "", ErrInvalidCode
	}

	// single-use: drop the code before handing out the session
	s.rdb.Del(ctx, codeKey(email), attemptsKey(email))

	return auth.NewGuestSession(email, s.secret, s.sessionTTL)
}

func codeKey(email string) string     { return "guestaccess:code:" + email }
func attemptsKey(email string) string { return "guestaccess:attempts:" + email }

func sixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
