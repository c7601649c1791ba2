package tokeninfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/aibles/iam/pkg/config"
	"github.com/aibles/iam/pkg/iam/token"
	"github.com/aibles/iam/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

// JWTSigner implements token.Signer with RS256 and a fixed RSA key pair.
type JWTSigner struct {
	privateKey     *rsa.PrivateKey
	publicKey      *rsa.PublicKey
	accessTokenTTL time.Duration
	issuer         string
}

// NewJWTSigner builds a signer from the PEM-encoded key pair in config.
func NewJWTSigner(cfg *config.JWTConfig) (*JWTSigner, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse jwt private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL == 0 {
		accessTTL = 15 * time.Minute
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "iam-service"
	}

	return &JWTSigner{
		privateKey:     privateKey,
		publicKey:      publicKey,
		accessTokenTTL: accessTTL,
		issuer:         issuer,
	}, nil
}

// jwtClaims is the wire representation of access-token claims.
type jwtClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// SignAccessToken signs a short-lived access token for the user.
func (s *JWTSigner) SignAccessToken(userID kernel.UserID, email string, roles []string) (string, error) {
	now := time.Now()

	if roles == nil {
		roles = []string{}
	}

	claims := jwtClaims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", token.ErrGenerationFailed().WithDetail("error", err.Error())
	}
	return signed, nil
}

// ValidateAccessToken checks signature and expiry and returns the claims.
// Expired tokens are reported distinctly from otherwise-invalid ones.
func (s *JWTSigner) ValidateAccessToken(tokenString string) (*token.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, token.ErrExpired()
		}
		return nil, token.ErrInvalid().WithDetail("error", err.Error())
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid || claims.ExpiresAt == nil {
		return nil, token.ErrInvalid()
	}

	// iat is optional on the wire; a missing claim maps to the zero time.
	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return &token.Claims{
		UserID:    kernel.UserID(claims.Subject),
		Email:     claims.Email,
		Roles:     claims.Roles,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
