package repository

import (
	"errors"
	"time"

	"github.com/opsarena/mailauth/internal/domain"

	"gorm.io/gorm"
)

var ErrVerificationTokenNotFound = errors.New("verification token not found")

type VerificationTokenRepository interface {
	Create(token *domain.VerificationToken) error
	// DeleteByUserID removes every token owned by the user, superseded or
	// not. Idempotent when none exist.
	DeleteByUserID(userID uint) error
	FindByTokenHash(hash string) (*domain.VerificationToken, error)
	// Consume marks the token used. The `used_at IS NULL` guard makes the
	// loser of a concurrent verify observe ErrVerificationTokenNotFound
	// instead of double-consuming.
	Consume(tokenID uint, now time.Time) error
	WithTx(tx *gorm.DB) VerificationTokenRepository
}

type GormVerificationTokenRepository struct {
	db *gorm.DB
}

func NewVerificationTokenRepository(db *gorm.DB) VerificationTokenRepository {
	return &GormVerificationTokenRepository{db: db}
}

func (r *GormVerificationTokenRepository) WithTx(tx *gorm.DB) VerificationTokenRepository {
	return &GormVerificationTokenRepository{db: tx}
}

func (r *GormVerificationTokenRepository) Create(token *domain.VerificationToken) error {
	return r.db.Create(token).Error
}

func (r *GormVerificationTokenRepository) DeleteByUserID(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&domain.VerificationToken{}).Error
}

func (r *GormVerificationTokenRepository) FindByTokenHash(hash string) (*domain.VerificationToken, error) {
	var token domain.VerificationToken
	if err := r.db.Where("token_hash = ?", hash).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVerificationTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *GormVerificationTokenRepository) Consume(tokenID uint, now time.Time) error {
	res := r.db.Model(&domain.VerificationToken{}).
		Where("id = ? AND used_at IS NULL", tokenID).
		Update("used_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVerificationTokenNotFound
	}
	return nil
}
