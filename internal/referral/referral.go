// Package referral issues and validates the opaque codes that attribute
// a guest's later signup to the member who invited them.
package referral

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/fairwaylabs/clubhouse/internal/ledger"
)

// CodeLength keeps codes short enough to type from an SMS.
const CodeLength = 8

// CodeSearcher checks whether any member's recorded codes contain the
// given code. There is no uniqueness authority behind this; codes are
// generated client-side and only existence-checked at validation time.
type CodeSearcher interface {
	AnyProfileFieldContains(ctx context.Context, field, needle string) (bool, error)
}

// NewCode derives an opaque uppercase code from a fresh UUID.
func NewCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:CodeLength])
}

// Normalize prepares user input for comparison against recorded codes.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type Service struct {
	search CodeSearcher
}

func NewService(search CodeSearcher) *Service {
	return &Service{search: search}
}

// Validate reports whether the code appears in any member's recorded
// referral codes. Searches the envelope field first, then the legacy
// referral field for ledgers not yet migrated.
func (s *Service) Validate(ctx context.Context, code string) (bool, error) {
	code = Normalize(code)
	if len(code) != CodeLength {
		return false, nil
	}

	found, err := s.search.AnyProfileFieldContains(ctx, ledger.EnvelopeField, code)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}
	return s.search.AnyProfileFieldContains(ctx, ledger.LegacyReferralsField, code)
}
