package trustcontainer

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/Abraxas-365/trustgate/pkg/config"
	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/logx"
	"github.com/Abraxas-365/trustgate/pkg/notifx"
	"github.com/Abraxas-365/trustgate/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/trustgate/pkg/notifx/notifxses"
	"github.com/Abraxas-365/trustgate/pkg/notifx/notifxsns"
	"github.com/Abraxas-365/trustgate/pkg/taskx"
	"github.com/Abraxas-365/trustgate/pkg/trust/authn"
	"github.com/Abraxas-365/trustgate/pkg/trust/authn/authnapi"
	"github.com/Abraxas-365/trustgate/pkg/trust/authn/authninfra"
	"github.com/Abraxas-365/trustgate/pkg/trust/consumer/consumerinfra"
	"github.com/Abraxas-365/trustgate/pkg/trust/consumer/consumersrv"
	"github.com/Abraxas-365/trustgate/pkg/trust/credential"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa/mfainfra"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa/mfasrv"
	"github.com/Abraxas-365/trustgate/pkg/trust/providerkey/keyinfra"
	"github.com/Abraxas-365/trustgate/pkg/trust/providerkey/keysrv"
	"github.com/Abraxas-365/trustgate/pkg/trust/signature"
	"github.com/Abraxas-365/trustgate/pkg/trust/signature/signatureinfra"
	"github.com/Abraxas-365/trustgate/pkg/trust/token"
	"github.com/Abraxas-365/trustgate/pkg/trust/token/tokeninfra"
	"github.com/Abraxas-365/trustgate/pkg/trust/token/tokensrv"
	"github.com/Abraxas-365/trustgate/pkg/trust/user/userinfra"
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
// Container: the public surface of the trust module.
// Only expose what other modules or cmd/ actually need.
// ---------------------------------------------------------------------------

type Container struct {
	// Services
	ConsumerService *consumersrv.ConsumerService
	Verifier        *credential.Verifier
	MFAEngine       *mfasrv.Engine
	KeyService      *keysrv.KeyService
	TokenService    *tokensrv.TokenService
	Orchestrator    *authn.Orchestrator

	// Handlers — needed by cmd/ to register routes
	AuthHandlers  *authnapi.AuthHandlers
	AdminHandlers *authnapi.AdminHandlers

	// Middleware — needed by cmd/ to protect route groups
	AuthMiddleware *authn.Middleware

	// Background maintenance
	Tasks *taskx.Runner
}

// New constructs the entire trust dependency graph.
// Order matters: infra → repos → services → orchestrator → middleware.
func New(deps Deps) (*Container, error) {
	logx.Info("🔧 Initializing trust container...")

	// An empty HMAC secret would silently sign every bearer with a
	// guessable key.
	if deps.Cfg.Auth.WrapperSecret == "" {
		return nil, errx.New("AUTH_WRAPPER_SECRET must be set", errx.TypeInternal)
	}

	c := &Container{}

	// ── Repositories ─────────────────────────────────────────────────────

	userRepo := userinfra.NewPostgresUserRepository(deps.DB)
	consumerRepo := consumerinfra.NewPostgresConsumerRepository(deps.DB)
	keyStore := keyinfra.NewPostgresKeyStore(deps.DB)
	tokenRepo := tokeninfra.NewPostgresTokenRepository(deps.DB)
	mfaRepo := mfainfra.NewPostgresMFARepository(deps.DB)

	// ── Crypto primitives ────────────────────────────────────────────────

	cipher, err := cryptox.NewKeyCipher(deps.Cfg.ProviderKey.Passphrase)
	if err != nil {
		return nil, err
	}
	algorithm, err := cryptox.ParseAlgorithm(deps.Cfg.ProviderKey.Algorithm)
	if err != nil {
		return nil, err
	}
	hasher := cryptox.NewPasswordHasher(deps.Cfg.Auth.BcryptCost)

	// ── Code delivery ────────────────────────────────────────────────────

	sender, err := buildNotifier(deps.Cfg)
	if err != nil {
		return nil, err
	}

	// ── Domain services ──────────────────────────────────────────────────

	c.ConsumerService = consumersrv.NewConsumerService(consumerRepo)

	c.Verifier = credential.NewVerifier(
		userRepo,
		hasher,
		deps.Cfg.Auth.LockoutThreshold,
		12,
	)

	c.KeyService = keysrv.NewKeyService(
		keyStore,
		cipher,
		algorithm,
		deps.Cfg.ProviderKey.Validity,
		deps.Cfg.ProviderKey.RotationWarning,
	)

	c.MFAEngine = mfasrv.NewEngine(mfaRepo, cipher, sender, mfasrv.Options{
		Issuer:       deps.Cfg.MFA.TOTPIssuer,
		OTPLength:    deps.Cfg.MFA.OTPLength,
		OTPTTL:       deps.Cfg.MFA.OTPTTL,
		ResendWindow: deps.Cfg.MFA.OTPResendWindow,
	})

	c.TokenService = tokensrv.NewTokenService(
		tokenRepo,
		c.KeyService,
		token.NewBearerCodec(deps.Cfg.Auth.WrapperSecret, deps.Cfg.Auth.Issuer),
		deps.Cfg.Auth.TokenTTL,
		deps.Cfg.Auth.TokenRetention,
	)

	var nonces signature.NonceStore
	if deps.Redis != nil {
		nonces = signatureinfra.NewRedisNonceStore(deps.Redis)
		logx.Info("  ✅ Redis nonce store wired for replay protection")
	} else {
		logx.Warn("  ⚠️ No Redis client, replayed signature nonces will not be detected")
	}
	guard := signature.NewGuard(deps.Cfg.Signature.Window, nonces)
	if deps.Cfg.Signature.Enforced {
		guard = guard.Enforce()
		logx.Info("  ✅ Request signatures enforced for every consumer")
	}

	// ── Orchestrator ─────────────────────────────────────────────────────

	c.Orchestrator = authn.NewOrchestrator(
		c.ConsumerService,
		c.Verifier,
		c.MFAEngine,
		c.TokenService,
		guard,
		authninfra.NewLogxAudit(),
	)

	c.AuthMiddleware = authn.NewMiddleware(c.Orchestrator)
	c.AuthHandlers = authnapi.NewAuthHandlers(c.Orchestrator, c.MFAEngine)
	c.AdminHandlers = authnapi.NewAdminHandlers(c.Orchestrator, c.KeyService)

	// ── Background maintenance ───────────────────────────────────────────

	c.Tasks = taskx.NewRunner()
	if deps.Cfg.Tasks.Enabled {
		c.Tasks.Register(taskx.Task{
			Name:       "key-rotation-check",
			Interval:   deps.Cfg.Tasks.RotationInterval,
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				_, err := c.KeyService.RotateIfExpiring(ctx)
				return err
			},
		})
		c.Tasks.Register(taskx.Task{
			Name:     "token-cleanup",
			Interval: deps.Cfg.Tasks.CleanupInterval,
			Run: func(ctx context.Context) error {
				_, err := c.TokenService.Cleanup(ctx)
				return err
			},
		})
		c.Tasks.Register(taskx.Task{
			Name:     "otp-cleanup",
			Interval: deps.Cfg.Tasks.CleanupInterval,
			Run: func(ctx context.Context) error {
				_, err := c.MFAEngine.PurgeExpiredCodes(ctx)
				return err
			},
		})
		logx.Info("  ✅ Maintenance tasks registered")
	}

	logx.Info("✅ Trust container ready")
	return c, nil
}

// buildNotifier selects the delivery providers per channel from config.
func buildNotifier(cfg *config.Config) (*notifx.Client, error) {
	needsAWS := cfg.Notifx.EmailProvider == "ses" || cfg.Notifx.SMSProvider == "sns"

	var email, sms notifx.CodeSender

	if needsAWS {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Notifx.AWSRegion),
		)
		if err != nil {
			return nil, err
		}
		if cfg.Notifx.EmailProvider == "ses" {
			email = notifxses.NewSESProvider(ses.NewFromConfig(awsCfg), cfg.Notifx.FromAddress, cfg.Notifx.FromName)
			logx.Info("  ✅ SES email delivery enabled")
		}
		if cfg.Notifx.SMSProvider == "sns" {
			sms = notifxsns.NewSNSProvider(sns.NewFromConfig(awsCfg))
			logx.Info("  ✅ SNS SMS delivery enabled")
		}
	}

	if email == nil {
		email = notifxconsole.NewConsoleProvider()
		logx.Warn("  ⚠️  Console email delivery (not for production)")
	}
	if sms == nil {
		sms = notifxconsole.NewConsoleProvider()
		logx.Warn("  ⚠️  Console SMS delivery (not for production)")
	}

	return notifx.NewClient(email, sms), nil
}
