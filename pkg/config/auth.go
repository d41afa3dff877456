package config

import "time"

// AuthConfig configures credential verification and token issuance.
type AuthConfig struct {
	BcryptCost       int
	LockoutThreshold int
	TokenTTL         time.Duration
	TokenRetention   time.Duration
	WrapperSecret    string
	Issuer           string
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		BcryptCost:       getEnvInt("AUTH_BCRYPT_COST", 12),
		LockoutThreshold: getEnvInt("AUTH_LOCKOUT_THRESHOLD", 5),
		TokenTTL:         getEnvDuration("AUTH_TOKEN_TTL", time.Hour),
		TokenRetention:   getEnvDuration("AUTH_TOKEN_RETENTION", 30*24*time.Hour),
		WrapperSecret:    getEnv("AUTH_WRAPPER_SECRET", ""),
		Issuer:           getEnv("AUTH_ISSUER", "trustgate"),
	}
}

// ProviderKeyConfig configures the broker signing key lifecycle.
type ProviderKeyConfig struct {
	Passphrase      string
	Algorithm       string
	Validity        time.Duration
	RotationWarning time.Duration
}

func loadProviderKeyConfig() ProviderKeyConfig {
	return ProviderKeyConfig{
		Passphrase:      getEnv("PROVIDER_KEY_PASSPHRASE", ""),
		Algorithm:       getEnv("PROVIDER_KEY_ALGORITHM", "ES256"),
		Validity:        getEnvDuration("PROVIDER_KEY_VALIDITY", 90*24*time.Hour),
		RotationWarning: getEnvDuration("PROVIDER_KEY_ROTATION_WARNING", 10*24*time.Hour),
	}
}

// MFAConfig configures multi-factor verification.
type MFAConfig struct {
	OTPLength       int
	OTPTTL          time.Duration
	OTPResendWindow time.Duration
	TOTPIssuer      string
}

func loadMFAConfig() MFAConfig {
	return MFAConfig{
		OTPLength:       getEnvInt("MFA_OTP_LENGTH", 6),
		OTPTTL:          getEnvDuration("MFA_OTP_TTL", 10*time.Minute),
		OTPResendWindow: getEnvDuration("MFA_OTP_RESEND_WINDOW", time.Minute),
		TOTPIssuer:      getEnv("MFA_TOTP_ISSUER", "TrustGate"),
	}
}

// SignatureConfig configures consumer request-signature verification.
type SignatureConfig struct {
	Window   time.Duration
	Enforced bool
}

func loadSignatureConfig() SignatureConfig {
	return SignatureConfig{
		Window:   getEnvDuration("SIGNATURE_WINDOW", 5*time.Minute),
		Enforced: getEnvBool("SIGNATURE_ENFORCED", false),
	}
}
