package token

import (
	"net/http"
	"time"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/kernel"
)

// Pair is an issued access/refresh token pair. ExpiresIn is the access
// token lifetime in seconds.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims is the validated content of an access token. Access tokens are
// never persisted; validity is signature plus expiry.
type Claims struct {
	UserID    kernel.UserID `json:"user_id"`
	Email     string        `json:"email"`
	Roles     []string      `json:"roles"`
	IssuedAt  time.Time     `json:"iat"`
	ExpiresAt time.Time     `json:"exp"`
}

var ErrRegistry = errx.NewRegistry("TOKEN")

var (
	CodeInvalid          = ErrRegistry.Register("INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Token invalid, expired or already consumed")
	CodeExpired          = ErrRegistry.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Token expired")
	CodeGenerationFailed = ErrRegistry.Register("GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
)

func ErrInvalid() *errx.Error          { return ErrRegistry.New(CodeInvalid) }
func ErrExpired() *errx.Error          { return ErrRegistry.New(CodeExpired) }
func ErrGenerationFailed() *errx.Error { return ErrRegistry.New(CodeGenerationFailed) }
