package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/opsarena/mailauth/internal/config"
	"github.com/opsarena/mailauth/internal/domain"
	"github.com/opsarena/mailauth/internal/observability"
	"github.com/opsarena/mailauth/internal/repository"
	"github.com/opsarena/mailauth/internal/security"

	"gorm.io/gorm"
)

var (
	ErrValidation         = errors.New("invalid request")
	ErrDuplicateUser      = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("account not verified, a new verification email has been sent")
	ErrInvalidToken       = errors.New("invalid or expired verification token")
)

// RateLimitError reports how long the caller must wait before another
// verification email can be sent.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting another verification email", e.RemainingSeconds())
}

// RemainingSeconds floors the wait to whole seconds but never reports zero
// while the limit is still in force.
func (e *RateLimitError) RemainingSeconds() int64 {
	secs := int64(e.RetryAfter / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

type LoginResult struct {
	Token   string `json:"token"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type AuthService struct {
	cfg      *config.Config
	db       *gorm.DB
	users    repository.UserRepository
	tokenSvc *VerificationTokenService
	mailer   Mailer
	jwtMgr   *security.JWTManager
	logger   *slog.Logger
}

func NewAuthService(
	cfg *config.Config,
	db *gorm.DB,
	users repository.UserRepository,
	tokenSvc *VerificationTokenService,
	mailer Mailer,
	jwtMgr *security.JWTManager,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		cfg:      cfg,
		db:       db,
		users:    users,
		tokenSvc: tokenSvc,
		mailer:   mailer,
		jwtMgr:   jwtMgr,
		logger:   logger,
	}
}

// Register creates an unverified user and dispatches the first verification
// email. The user row and token commit together; a mail transport failure is
// logged but does not undo registration, since the account must exist for a
// later resend to work.
func (s *AuthService) Register(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if password == "" {
		return "", fmt.Errorf("%w: password is required", ErrValidation)
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return "", err
	}

	var outgoing VerificationEmail
	err = s.db.Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		if _, err := users.FindByEmail(email); err == nil {
			return ErrDuplicateUser
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}

		now := time.Now().UTC()
		user := &domain.User{
			Email:                       email,
			PasswordHash:                hash,
			Verified:                    false,
			LastVerificationEmailSentAt: &now,
		}
		if err := users.Create(user); err != nil {
			// Two racing registrations: the loser hits the unique index.
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return ErrDuplicateUser
			}
			return err
		}

		token, raw, err := s.tokenSvc.WithTx(tx).Create(user.ID)
		if err != nil {
			return err
		}
		outgoing = s.verificationEmail(user.Email, raw, token.ExpiresAt)
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := s.mailer.SendVerificationEmail(ctx, outgoing); err != nil {
		observability.RecordVerificationEmail(ctx, "register", "failed")
		s.logger.ErrorContext(ctx, "verification email dispatch failed after registration",
			"email", email, "error", err)
	} else {
		observability.RecordVerificationEmail(ctx, "register", "sent")
	}
	return "Registration successful. Please check your email to verify your account.", nil
}

// Login authenticates the credentials. Unknown email and wrong password are
// indistinguishable to the caller. An unverified account triggers the
// rate-limited resend path and never yields a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := security.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		if err := s.resendVerificationEmail(ctx, user.ID); err != nil {
			return nil, err
		}
		return nil, ErrEmailNotVerified
	}

	token, err := s.jwtMgr.SignSessionToken(user.Email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Email: user.Email, Message: "Login successful"}, nil
}

// VerifyEmail consumes a verification token and marks its owner verified.
// Unknown, expired, and already-consumed tokens are indistinguishable.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) (string, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return "", ErrInvalidToken
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		tokens := s.tokenSvc.WithTx(tx)
		token, err := tokens.Get(rawToken)
		if err != nil {
			if errors.Is(err, repository.ErrVerificationTokenNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if !tokens.IsValid(token) {
			return ErrInvalidToken
		}

		users := s.users.WithTx(tx)
		user, err := users.FindByID(token.UserID)
		if err != nil {
			return err
		}
		user.Verified = true
		if err := users.Update(user); err != nil {
			return err
		}
		if err := tokens.MarkUsed(token); err != nil {
			// Lost a race against a concurrent verify with the same token.
			if errors.Is(err, repository.ErrVerificationTokenNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "email verified")
	return "Email verified successfully. You can now login.", nil
}

// resendVerificationEmail is the rate limiter in front of the mail
// dispatcher. The locked read, token creation, send, and timestamp update
// share one transaction: a failed send rolls back the timestamp so a
// transient outage never extends the lockout.
func (s *AuthService) resendVerificationEmail(ctx context.Context, userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		user, err := users.FindByIDForUpdate(userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if last := user.LastVerificationEmailSentAt; last != nil {
			if elapsed := now.Sub(*last); elapsed < s.cfg.EmailRateLimit {
				return &RateLimitError{RetryAfter: s.cfg.EmailRateLimit - elapsed}
			}
		}

		token, raw, err := s.tokenSvc.WithTx(tx).Create(user.ID)
		if err != nil {
			return err
		}
		if err := s.mailer.SendVerificationEmail(ctx, s.verificationEmail(user.Email, raw, token.ExpiresAt)); err != nil {
			observability.RecordVerificationEmail(ctx, "login_resend", "failed")
			return err
		}
		observability.RecordVerificationEmail(ctx, "login_resend", "sent")

		user.LastVerificationEmailSentAt = &now
		return users.Update(user)
	})
}

func (s *AuthService) verificationEmail(to, rawToken string, expiresAt time.Time) VerificationEmail {
	return VerificationEmail{
		To:        to,
		Token:     rawToken,
		VerifyURL: s.buildVerifyURL(rawToken),
		ExpiresAt: expiresAt,
		TokenTTL:  s.cfg.VerificationTokenTTL,
	}
}

func (s *AuthService) buildVerifyURL(rawToken string) string {
	u, err := url.Parse(s.cfg.AppBaseURL)
	if err != nil {
		return ""
	}
	u.Path = "/api/auth/verify"
	q := u.Query()
	q.Set("token", rawToken)
	u.RawQuery = q.Encode()
	return u.String()
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return nil
}
