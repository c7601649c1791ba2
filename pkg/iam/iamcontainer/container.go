package iamcontainer

import (
	"context"
	"fmt"
	"time"

	"github.com/aibles/iam/pkg/config"
	"github.com/aibles/iam/pkg/iam/audit/auditinfra"
	"github.com/aibles/iam/pkg/iam/federation/federationapi"
	"github.com/aibles/iam/pkg/iam/federation/federationinfra"
	"github.com/aibles/iam/pkg/iam/federation/federationsrv"
	"github.com/aibles/iam/pkg/iam/passkey/passkeyapi"
	"github.com/aibles/iam/pkg/iam/passkey/passkeyinfra"
	"github.com/aibles/iam/pkg/iam/passkey/passkeysrv"
	"github.com/aibles/iam/pkg/iam/token"
	"github.com/aibles/iam/pkg/iam/token/tokenapi"
	"github.com/aibles/iam/pkg/iam/token/tokeninfra"
	"github.com/aibles/iam/pkg/iam/token/tokensrv"
	"github.com/aibles/iam/pkg/iam/user/userapi"
	"github.com/aibles/iam/pkg/iam/user/userinfra"
	"github.com/aibles/iam/pkg/iam/user/usersrv"
	"github.com/aibles/iam/pkg/logx"
	"github.com/aibles/iam/pkg/ratelimit"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Deps: explicit external dependencies this bounded context requires.
// No hidden globals, no ambient state — everything comes through here.
// ---------------------------------------------------------------------------

type Deps struct {
	DB    *sqlx.DB
	Redis *redis.Client
	Cfg   *config.Config
}

// ---------------------------------------------------------------------------
// Container: the public surface of the IAM module.
// Only expose what cmd/ actually needs; repos and infra stay private.
// ---------------------------------------------------------------------------

type Container struct {
	// Services — available for cross-module consumption
	UserService       *usersrv.UserService
	TokenService      *tokensrv.TokenService
	PasskeyService    *passkeysrv.PasskeyService
	FederationService *federationsrv.FederationService

	// API handlers — needed by cmd/ to register routes
	UserHandlers       *userapi.Handlers
	TokenHandlers      *tokenapi.Handlers
	PasskeyHandlers    *passkeyapi.Handlers
	FederationHandlers *federationapi.Handlers

	// Middleware — needed by cmd/ to protect route groups
	AuthMiddleware *token.Middleware

	// Admission limiter — mounted before any route by cmd/
	RateLimiter *ratelimit.Limiter
}

// ---------------------------------------------------------------------------
// New: constructs the entire IAM dependency graph.
// Order matters: repos → infra → services → handlers → middleware.
// ---------------------------------------------------------------------------

func New(deps Deps) (*Container, error) {
	logx.Info("🔧 Initializing IAM container...")

	c := &Container{}

	// ── Repositories ─────────────────────────────────────────────────────

	userRepo := userinfra.NewPostgresUserRepository(deps.DB)
	credentialRepo := passkeyinfra.NewPostgresCredentialRepository(deps.DB)

	// ── Infrastructure services ──────────────────────────────────────────

	signer, err := tokeninfra.NewJWTSigner(&deps.Cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("initialize jwt signer: %w", err)
	}
	sessionStore := tokeninfra.NewRedisSessionStore(deps.Redis)
	challengeStore := passkeyinfra.NewRedisChallengeStore(deps.Redis)
	stateStore := federationinfra.NewRedisStateStore(deps.Redis)

	verifier, err := passkeyinfra.NewWebAuthnVerifier(&deps.Cfg.WebAuthn)
	if err != nil {
		return nil, fmt.Errorf("initialize webauthn verifier: %w", err)
	}

	auditPublisher := auditinfra.NewLogxPublisher()

	// ── Domain services ──────────────────────────────────────────────────

	c.UserService = usersrv.NewUserService(userRepo, auditPublisher)

	c.TokenService = tokensrv.NewTokenService(
		userRepo,
		sessionStore,
		signer,
		auditPublisher,
		deps.Cfg.JWT.AccessTokenTTL,
		deps.Cfg.JWT.RefreshTokenTTL,
	)

	c.PasskeyService = passkeysrv.NewPasskeyService(
		userRepo,
		credentialRepo,
		challengeStore,
		verifier,
		c.TokenService,
		auditPublisher,
		&deps.Cfg.WebAuthn,
	)
	logx.Info("  ✅ Passkey ceremonies enabled for RP " + deps.Cfg.WebAuthn.RPID)

	googleProvider := federationinfra.NewGoogleProvider(&deps.Cfg.Google)
	c.FederationService = federationsrv.NewFederationService(
		userRepo,
		stateStore,
		googleProvider,
		c.TokenService,
		auditPublisher,
		&deps.Cfg.Google,
	)
	if deps.Cfg.Google.Enabled {
		logx.Info("  ✅ Google federated login enabled")
	} else {
		logx.Info("  ⚠️  Google federated login disabled")
	}

	// ── API handlers ─────────────────────────────────────────────────────

	c.UserHandlers = userapi.NewHandlers(c.UserService)
	c.TokenHandlers = tokenapi.NewHandlers(c.TokenService)
	c.PasskeyHandlers = passkeyapi.NewHandlers(c.PasskeyService)
	c.FederationHandlers = federationapi.NewHandlers(c.FederationService)

	// ── Middleware ────────────────────────────────────────────────────────

	c.AuthMiddleware = token.NewMiddleware(signer)
	c.RateLimiter = ratelimit.NewLimiter(deps.Cfg.RateLimit.RequestsPerMinute)

	logx.Info("✅ IAM container initialized")
	return c, nil
}

// StartBackgroundServices starts IAM-specific background workers.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	c.RateLimiter.StartCleanup(ctx, 5*time.Minute, 15*time.Minute)
	logx.Info("  ✅ Rate limiter cleanup started")
}
