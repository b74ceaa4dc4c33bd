package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/harborview-digital/showcase/internal/auth/domain"
	"github.com/harborview-digital/showcase/pkg/cryptox"
	"github.com/harborview-digital/showcase/pkg/idx"
)

const (
	// MinSecretLength is the minimum signing-secret length enforced in
	// production-like environments.
	MinSecretLength = 32

	DefaultAccessTTL     = 15 * time.Minute
	DefaultRefreshTTL    = 7 * 24 * time.Hour
	DefaultRememberMeTTL = 30 * 24 * time.Hour
	VerificationTTL      = 30 * time.Minute
	PasswordResetTTL     = 15 * time.Minute
)

// Claims is the JWT payload for every token kind the service mints.
// Access and refresh tokens carry the session linkage; single-use tokens
// carry only an email (and a nonce for password resets).
type Claims struct {
	jwt.RegisteredClaims

	Kind      domain.TokenKind `json:"kind"`
	Email     string           `json:"email,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"sid,omitempty"`
	Nonce     string           `json:"nonce,omitempty"`
}

// TokenConfig carries the signing material and lifetimes for the token
// service. Secrets are injected explicitly; nothing reads ambient state.
type TokenConfig struct {
	Issuer   string
	Audience string

	AccessSecret  []byte
	RefreshSecret []byte

	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration

	// EnforceSecretLength rejects short secrets at construction. Enabled
	// for production-like deployments, relaxed for local dev and tests.
	EnforceSecretLength bool
}

// TokenService mints and verifies the platform's JWTs. It performs no I/O:
// revocation and session checks belong to the caller.
type TokenService struct {
	issuer   string
	audience string

	accessSecret  []byte
	refreshSecret []byte

	accessTTL     time.Duration
	refreshTTL    time.Duration
	rememberMeTTL time.Duration

	// now is swappable in tests.
	now func() time.Time
}

// NewTokenService validates the signing configuration and fails fast on an
// insecure one rather than silently running with weak or shared secrets.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token service: access and refresh secrets are required")
	}
	if len(cfg.AccessSecret) == len(cfg.RefreshSecret) &&
		subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, errors.New("token service: access and refresh secrets must differ")
	}
	if cfg.EnforceSecretLength {
		if len(cfg.AccessSecret) < MinSecretLength || len(cfg.RefreshSecret) < MinSecretLength {
			return nil, fmt.Errorf("token service: signing secrets must be at least %d bytes", MinSecretLength)
		}
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token service: issuer and audience are required")
	}

	svc := &TokenService{
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		rememberMeTTL: cfg.RememberMeTTL,
		now:           time.Now,
	}
	if svc.accessTTL <= 0 {
		svc.accessTTL = DefaultAccessTTL
	}
	if svc.refreshTTL <= 0 {
		svc.refreshTTL = DefaultRefreshTTL
	}
	if svc.rememberMeTTL <= 0 {
		svc.rememberMeTTL = DefaultRememberMeTTL
	}
	return svc, nil
}

// IssuePair mints a matched access/refresh pair. When sessionID is empty a
// fresh session id is generated (new login); otherwise the pair is bound to
// the existing session (rotation). rememberMe selects the extended refresh
// lifetime. Pure computation, no I/O.
func (s *TokenService) IssuePair(accountID, email, role, sessionID string, rememberMe bool) (domain.TokenPair, error) {
	now := s.now()

	if sessionID == "" {
		sessionID = idx.New().String()
	}
	jti := idx.New().String()

	refreshTTL := s.refreshTTL
	if rememberMe {
		refreshTTL = s.rememberMeTTL
	}

	accessExpires := now.Add(s.accessTTL)
	refreshExpires := now.Add(refreshTTL)

	access, err := s.sign(Claims{
		RegisteredClaims: s.registered(accountID, jti, now, accessExpires),
		Kind:             domain.TokenKindAccess,
		Email:            email,
		Role:             role,
		SessionID:        sessionID,
	}, s.accessSecret)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.sign(Claims{
		RegisteredClaims: s.registered(accountID, idx.New().String(), now, refreshExpires),
		Kind:             domain.TokenKindRefresh,
		SessionID:        sessionID,
	}, s.refreshSecret)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpires,
		RefreshExpiresAt: refreshExpires,
		SessionID:        sessionID,
		AccessTokenID:    jti,
	}, nil
}

// Verify parses and validates a token, requiring it to be of the expected
// kind. Signature, issuer, audience, and expiry are all checked strictly;
// an expired-but-otherwise-valid token reports ErrExpiredToken so callers
// can distinguish it from tampering.
func (s *TokenService) Verify(token string, kind domain.TokenKind) (Claims, error) {
	secret := s.accessSecret
	if kind == domain.TokenKindRefresh {
		secret = s.refreshSecret
	}

	claims, err := s.parse(token, secret)
	if err != nil {
		return Claims{}, err
	}
	if claims.Kind != kind {
		return Claims{}, ErrWrongTokenKind
	}
	return claims, nil
}

// IssueSingleUse mints an email-bound verification or reset token. Reset
// tokens carry a random nonce so re-issuing always produces a distinct
// token value even within the same second.
func (s *TokenService) IssueSingleUse(kind domain.TokenKind, email string) (token string, expiresAt time.Time, err error) {
	var ttl time.Duration
	switch kind {
	case domain.TokenKindEmailVerification:
		ttl = VerificationTTL
	case domain.TokenKindPasswordReset:
		ttl = PasswordResetTTL
	default:
		return "", time.Time{}, fmt.Errorf("token service: %q is not a single-use kind", kind)
	}

	now := s.now()
	expiresAt = now.Add(ttl)

	claims := Claims{
		RegisteredClaims: s.registered("", idx.New().String(), now, expiresAt),
		Kind:             kind,
		Email:            email,
	}
	if kind == domain.TokenKindPasswordReset {
		nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("generate reset nonce: %w", err)
		}
		claims.Nonce = nonce
	}

	token, err = s.sign(claims, s.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return token, expiresAt, nil
}

// VerifySingleUse validates a verification or reset token and returns the
// email it was issued for. The same failure taxonomy as Verify applies.
func (s *TokenService) VerifySingleUse(token string, kind domain.TokenKind) (Claims, error) {
	switch kind {
	case domain.TokenKindEmailVerification, domain.TokenKindPasswordReset:
	default:
		return Claims{}, fmt.Errorf("token service: %q is not a single-use kind", kind)
	}

	claims, err := s.parse(token, s.accessSecret)
	if err != nil {
		return Claims{}, err
	}
	if claims.Kind != kind {
		return Claims{}, ErrWrongTokenKind
	}
	return claims, nil
}

// AccessTTL reports the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

func (s *TokenService) registered(subject, jti string, now, expires time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		Subject:   subject,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
}

func (s *TokenService) sign(claims Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *TokenService) parse(token string, secret []byte) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
