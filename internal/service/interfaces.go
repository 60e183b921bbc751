package service

import "context"

// AuthServiceInterface is what the HTTP layer depends on.
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	VerifyEmail(ctx context.Context, token string) (string, error)
}

var _ AuthServiceInterface = (*AuthService)(nil)
