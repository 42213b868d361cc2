package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/erp"
	"github.com/sitebridgehq/sitebridge/internal/models"
	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/crypto"
	apperrors "github.com/sitebridgehq/sitebridge/pkg/errors"
	"github.com/sitebridgehq/sitebridge/pkg/logger"
	"github.com/sitebridgehq/sitebridge/pkg/metrics"
)

const (
	// DefaultSessionTTL is the sliding session lifetime.
	DefaultSessionTTL = 8 * time.Hour
	// DefaultRefreshThreshold is how close to expiry a validation must be
	// before the expiry window slides forward.
	DefaultRefreshThreshold = 20 * time.Minute

	defaultTokenLength = 48

	// AdminDisplayName is the greeting name for platform administrators.
	AdminDisplayName = "Sitebridge admin"
)

// RemoteIdentity performs delegated logins against the remote ERP system.
type RemoteIdentity interface {
	Login(ctx context.Context, conn erp.Connection, username, password string) (*erp.Credential, error)
}

// AdminRealm holds the static admin credential map. The access code is the
// value typed in the company-code field that routes a login to this realm.
type AdminRealm struct {
	AccessCode string
	// Users maps lowercase usernames to bcrypt password hashes.
	Users map[string]string
}

// BrokerConfig describes tunable behaviour for the SessionBroker.
type BrokerConfig struct {
	SessionTTL       time.Duration
	RefreshThreshold time.Duration
	TokenLength      int
	Clock            func() time.Time
	Admin            AdminRealm
	// EncryptionKey is the 32-byte AES key protecting delegated
	// credentials at rest.
	EncryptionKey   []byte
	ClassifierRules []erp.ClassifierRule
	// Metering, when present, records successful tenant logins against the
	// org's usage counters.
	Metering *services.MeteringService
}

// SessionBroker issues, validates, and revokes opaque bearer sessions for
// both identity realms.
type SessionBroker struct {
	db        *gorm.DB
	directory *services.DirectoryService
	remote    RemoteIdentity

	ttl       time.Duration
	threshold time.Duration
	tokenLen  int
	now       func() time.Time
	admin     AdminRealm
	key       []byte
	rules     []erp.ClassifierRule
	metering  *services.MeteringService
	log       *zap.Logger
}

// NewSessionBroker constructs the broker.
func NewSessionBroker(db *gorm.DB, directory *services.DirectoryService, remote RemoteIdentity, cfg BrokerConfig) (*SessionBroker, error) {
	if db == nil {
		return nil, errors.New("session broker: db is required")
	}
	if directory == nil {
		return nil, errors.New("session broker: directory is required")
	}
	if remote == nil {
		return nil, errors.New("session broker: remote identity is required")
	}
	if len(cfg.EncryptionKey) != 32 {
		return nil, errors.New("session broker: encryption key must be 32 bytes")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	threshold := cfg.RefreshThreshold
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	tokenLen := cfg.TokenLength
	if tokenLen <= 0 {
		tokenLen = defaultTokenLength
	}
	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}
	rules := cfg.ClassifierRules
	if len(rules) == 0 {
		rules = erp.DefaultClassifierRules()
	}

	admin := cfg.Admin
	if len(admin.Users) > 0 {
		lowered := make(map[string]string, len(admin.Users))
		for username, hash := range admin.Users {
			lowered[strings.ToLower(strings.TrimSpace(username))] = hash
		}
		admin.Users = lowered
	}

	return &SessionBroker{
		db:        db,
		directory: directory,
		remote:    remote,
		ttl:       ttl,
		threshold: threshold,
		tokenLen:  tokenLen,
		now:       clock,
		admin:     admin,
		key:       cfg.EncryptionKey,
		rules:     rules,
		metering:  cfg.Metering,
		log:       logger.WithModule("auth"),
	}, nil
}

// Authenticate signs a user in. The login code selects the realm: the admin
// access code routes to the static credential map, anything else resolves a
// tenant company and delegates to its remote system. Gates run in a fixed
// order so callers learn about a dead license before the remote is ever
// contacted.
func (b *SessionBroker) Authenticate(ctx context.Context, loginCode, username, password string) (*models.Session, error) {
	loginCode = strings.TrimSpace(loginCode)
	username = strings.TrimSpace(username)
	if loginCode == "" || username == "" || password == "" {
		return nil, apperrors.NewBadRequest("Company code, username, and password are required")
	}

	if b.admin.AccessCode != "" && strings.EqualFold(loginCode, b.admin.AccessCode) {
		return b.authenticateAdmin(ctx, username, password)
	}
	return b.authenticateTenant(ctx, loginCode, username, password)
}

func (b *SessionBroker) authenticateAdmin(ctx context.Context, username, password string) (*models.Session, error) {
	hash, ok := b.admin.Users[strings.ToLower(username)]
	if !ok || !crypto.VerifyPassword(hash, password) {
		metrics.LoginAttempts.WithLabelValues("admin", "failure").Inc()
		return nil, apperrors.ErrInvalidAdminCredentials
	}

	session, err := b.createSession(ctx, &models.Session{
		UserID:      "admin:" + strings.ToLower(username),
		IsAdmin:     true,
		Username:    username,
		DisplayName: AdminDisplayName,
	})
	if err != nil {
		return nil, err
	}

	metrics.LoginAttempts.WithLabelValues("admin", "success").Inc()
	b.log.Info("admin login", zap.String("username", username))
	return session, nil
}

func (b *SessionBroker) authenticateTenant(ctx context.Context, loginCode, username, password string) (*models.Session, error) {
	company, org, err := b.directory.LookupByLoginCode(ctx, loginCode)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("tenant", "failure").Inc()
		return nil, err
	}

	if err := b.directory.EnsureLicense(ctx, org, company); err != nil {
		metrics.LoginAttempts.WithLabelValues("tenant", "failure").Inc()
		return nil, err
	}
	if err := b.directory.EnsureUserAllowed(company, username); err != nil {
		metrics.LoginAttempts.WithLabelValues("tenant", "failure").Inc()
		return nil, err
	}

	conn := erp.Connection{BaseURL: company.BaseURL, CompanyCode: company.RemoteCompanyCode}
	cred, err := b.remote.Login(ctx, conn, username, password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("tenant", "failure").Inc()
		metrics.RemoteCalls.WithLabelValues("logon", "failure").Inc()
		return nil, b.remoteLoginError(err, company)
	}
	metrics.RemoteCalls.WithLabelValues("logon", "success").Inc()

	cipher, err := b.encryptCredential(cred)
	if err != nil {
		return nil, err
	}

	session, err := b.createSession(ctx, &models.Session{
		UserID:          org.ID + ":" + strings.ToLower(username),
		OrgID:           &org.ID,
		CompanyID:       &company.ID,
		Username:        username,
		DisplayName:     erp.DisplayNameFromToken(cred.AccessToken, username),
		DelegatedCipher: cipher,
	})
	if err != nil {
		return nil, err
	}

	metrics.LoginAttempts.WithLabelValues("tenant", "success").Inc()
	if b.metering != nil {
		if err := b.metering.RecordRequest(ctx, org.ID, "/api/auth/login", ""); err != nil {
			b.log.Warn("login metering failed", zap.Error(err))
		}
	}
	b.log.Info("tenant login",
		zap.String("org_id", org.ID),
		zap.String("company", company.Code),
		zap.String("username", username))
	return session, nil
}

// remoteLoginError maps a remote failure to the public taxonomy. The raw
// signal stays in logs; clients only ever see the fixed messages.
func (b *SessionBroker) remoteLoginError(err error, company *models.Company) error {
	kind := erp.Classify(b.rules, err)

	b.log.Warn("remote login failed",
		zap.String("company", company.Code),
		zap.String("kind", string(kind)),
		zap.Error(err))

	switch kind {
	case erp.FailureInvalidCredentials:
		return apperrors.ErrInvalidCredentials
	case erp.FailureUnavailable:
		return apperrors.ErrRemoteUnavailable
	default:
		return apperrors.ErrLoginFailed.WithInternal(err)
	}
}

func (b *SessionBroker) createSession(ctx context.Context, session *models.Session) (*models.Session, error) {
	token, err := crypto.GenerateToken(b.tokenLen)
	if err != nil {
		return nil, fmt.Errorf("session broker: generate token: %w", err)
	}

	now := b.now()
	session.Token = token
	session.CreatedAt = now
	session.ExpiresAt = now.Add(b.ttl)

	if err := b.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("session broker: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()
	return session, nil
}

// Validate resolves a bearer token to its session. Expired rows are removed
// on sight. A session seen within the refresh threshold of its expiry gets
// its window slid forward by a full TTL.
func (b *SessionBroker) Validate(ctx context.Context, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.SessionValidations.WithLabelValues("invalid").Inc()
		return nil, apperrors.ErrInvalidSession
	}

	var session models.Session
	err := b.db.WithContext(ctx).Where("token = ?", token).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.SessionValidations.WithLabelValues("invalid").Inc()
		return nil, apperrors.ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("session broker: find session: %w", err)
	}

	now := b.now()
	if !session.ExpiresAt.After(now) {
		if err := b.db.WithContext(ctx).Delete(&session).Error; err == nil {
			metrics.ActiveSessions.Dec()
		}
		metrics.SessionValidations.WithLabelValues("expired").Inc()
		return nil, apperrors.ErrSessionExpired
	}

	if session.ExpiresAt.Sub(now) < b.threshold {
		expiresAt := now.Add(b.ttl)
		if err := b.db.WithContext(ctx).Model(&session).Update("expires_at", expiresAt).Error; err != nil {
			return nil, fmt.Errorf("session broker: refresh session: %w", err)
		}
		session.ExpiresAt = expiresAt
		metrics.SessionValidations.WithLabelValues("refreshed").Inc()
		return &session, nil
	}

	metrics.SessionValidations.WithLabelValues("ok").Inc()
	return &session, nil
}

// Revoke deletes the session behind a token. Revoking an unknown or already
// revoked token succeeds; logout is idempotent.
func (b *SessionBroker) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	result := b.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{})
	if result.Error != nil {
		return fmt.Errorf("session broker: revoke session: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return nil
}

// CleanupExpired removes sessions past their expiry. Lazy deletion in
// Validate catches the active ones; this sweep catches the abandoned rest.
func (b *SessionBroker) CleanupExpired(ctx context.Context) (int64, error) {
	result := b.db.WithContext(ensureContext(ctx)).
		Where("expires_at <= ?", b.now()).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session broker: cleanup expired sessions: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// DelegatedCredential decrypts the remote credential snapshot stored with a
// tenant session.
func (b *SessionBroker) DelegatedCredential(cipher string) (*erp.Credential, error) {
	if cipher == "" {
		return nil, apperrors.ErrOrgUserRequired
	}

	plaintext, err := crypto.Decrypt(cipher, b.key)
	if err != nil {
		return nil, fmt.Errorf("session broker: decrypt credential: %w", err)
	}

	var cred erp.Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return nil, fmt.Errorf("session broker: decode credential: %w", err)
	}
	return &cred, nil
}

func (b *SessionBroker) encryptCredential(cred *erp.Credential) (string, error) {
	raw, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("session broker: encode credential: %w", err)
	}
	cipher, err := crypto.Encrypt(raw, b.key)
	if err != nil {
		return "", fmt.Errorf("session broker: encrypt credential: %w", err)
	}
	return cipher, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
