package service

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/opsarena/mailauth/internal/domain"
	"github.com/opsarena/mailauth/internal/repository"
	"github.com/opsarena/mailauth/internal/security"

	"gorm.io/gorm"
)

const verificationTokenBytes = 32

// VerificationTokenService owns the token lifecycle: issue, lookup,
// validity, consume. Create is the single point that guarantees at most one
// live token per user.
type VerificationTokenService struct {
	tokens repository.VerificationTokenRepository
	ttl    time.Duration
}

func NewVerificationTokenService(tokens repository.VerificationTokenRepository, ttl time.Duration) *VerificationTokenService {
	return &VerificationTokenService{tokens: tokens, ttl: ttl}
}

// WithTx returns a service bound to the given transaction so token writes
// commit or roll back together with the caller's other writes.
func (s *VerificationTokenService) WithTx(tx *gorm.DB) *VerificationTokenService {
	return &VerificationTokenService{tokens: s.tokens.WithTx(tx), ttl: s.ttl}
}

// Create deletes any prior token for the user and issues a fresh one.
// Returns the persisted record and the raw token string; the raw value is
// never stored.
func (s *VerificationTokenService) Create(userID uint) (*domain.VerificationToken, string, error) {
	if err := s.tokens.DeleteByUserID(userID); err != nil {
		return nil, "", err
	}
	raw, err := security.NewRandomString(verificationTokenBytes)
	if err != nil {
		return nil, "", err
	}
	token := &domain.VerificationToken{
		UserID:    userID,
		TokenHash: HashVerificationToken(raw),
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}
	if err := s.tokens.Create(token); err != nil {
		return nil, "", err
	}
	return token, raw, nil
}

// Get resolves a raw token string to its record. Unknown tokens yield
// repository.ErrVerificationTokenNotFound.
func (s *VerificationTokenService) Get(raw string) (*domain.VerificationToken, error) {
	return s.tokens.FindByTokenHash(HashVerificationToken(raw))
}

// IsValid reports whether the token is still consumable: never used and not
// yet expired. Pure read, safe to call repeatedly.
func (s *VerificationTokenService) IsValid(token *domain.VerificationToken) bool {
	return token.UsedAt == nil && token.ExpiresAt.After(time.Now().UTC())
}

// MarkUsed consumes the token. A token that was consumed concurrently
// surfaces repository.ErrVerificationTokenNotFound.
func (s *VerificationTokenService) MarkUsed(token *domain.VerificationToken) error {
	now := time.Now().UTC()
	if err := s.tokens.Consume(token.ID, now); err != nil {
		return err
	}
	token.UsedAt = &now
	return nil
}

func HashVerificationToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
