package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/audit"
	"github.com/TaherBala2507/mini-crm/internal/ids"
)

// Service owns the identity and session lifecycle: organization signup,
// login, token rotation, logout, and the password/verification flows.
type Service struct {
	store  Store
	tokens *TokenManager
	log    *logrus.Logger
}

// NewService constructs the identity service.
func NewService(store Store, tokens *TokenManager, log *logrus.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("auth store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token manager is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, tokens: tokens, log: log}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1
}

// RegisterOrganizationInput is the parsed signup payload.
type RegisterOrganizationInput struct {
	OrgName   string
	Domain    string
	AdminName string
	Email     string
	Password  string
}

// RegisterOrganization creates the tenant, seeds its system roles, and
// creates the first admin user — all in one transaction.
func (s *Service) RegisterOrganization(ctx context.Context, in RegisterOrganizationInput) (*Organization, *User, error) {
	orgName := strings.TrimSpace(in.OrgName)
	domain := strings.TrimSpace(strings.ToLower(in.Domain))
	adminName := strings.TrimSpace(in.AdminName)
	email := normalizeEmail(in.Email)
	switch {
	case orgName == "":
		return nil, nil, fmt.Errorf("%w: organization name is required", apperr.ErrValidation)
	case domain == "":
		return nil, nil, fmt.Errorf("%w: organization domain is required", apperr.ErrValidation)
	case adminName == "":
		return nil, nil, fmt.Errorf("%w: admin name is required", apperr.ErrValidation)
	case !validEmail(email):
		return nil, nil, fmt.Errorf("%w: valid email is required", apperr.ErrValidation)
	case len(in.Password) < 8:
		return nil, nil, fmt.Errorf("%w: password must be at least 8 characters", apperr.ErrValidation)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	now := s.tokens.Now().UTC()
	org := &Organization{
		ID:        ids.New(),
		Domain:    domain,
		Name:      orgName,
		Status:    OrgStatusActive,
		Settings:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	var admin *User
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Organizations().Create(ctx, org); err != nil {
			return err
		}
		roles := DefaultRoles(org.ID)
		var adminRoleID string
		for _, role := range roles {
			role.CreatedAt = now
			role.UpdatedAt = now
			if err := tx.Roles().Create(ctx, role); err != nil {
				return err
			}
			if role.Name == RoleNameAdmin {
				adminRoleID = role.ID
			}
		}
		admin = &User{
			ID:             ids.New(),
			OrganizationID: org.ID,
			Name:           adminName,
			Email:          email,
			PasswordHash:   hash,
			Status:         UserStatusActive,
			RoleIDs:        []string{adminRoleID},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Users().Create(ctx, admin); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: org.ID,
			ActorUserID:    admin.ID,
			Action:         "org.register",
			EntityType:     "organization",
			EntityID:       org.ID,
			After:          audit.Snapshot(org),
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return org, admin, nil
}

// Login authenticates credentials within the organization identified by
// domain and issues a token pair. Every failure mode collapses to
// Unauthorized so callers cannot probe for accounts.
func (s *Service) Login(ctx context.Context, domain, email, password string) (TokenPair, *User, error) {
	domain = strings.TrimSpace(strings.ToLower(domain))
	email = normalizeEmail(email)
	if domain == "" || email == "" || password == "" {
		return TokenPair{}, nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}
	org, err := s.store.Organizations().FindByDomain(ctx, domain)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}
	if org.Status != OrgStatusActive {
		return TokenPair{}, nil, fmt.Errorf("%w: organization is not active", apperr.ErrUnauthorized)
	}
	user, err := s.store.Users().FindByEmail(ctx, org.ID, email)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, nil, fmt.Errorf("%w: account is not active", apperr.ErrUnauthorized)
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return TokenPair{}, nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}

	var pair TokenPair
	err = s.store.InTx(ctx, func(tx Store) error {
		var err error
		pair, err = s.mintPair(ctx, tx, user)
		if err != nil {
			return err
		}
		if err := tx.Users().RecordLogin(ctx, user.ID, s.tokens.Now().UTC()); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: user.OrganizationID,
			ActorUserID:    user.ID,
			Action:         "auth.login",
			EntityType:     "user",
			EntityID:       user.ID,
		})
	})
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// mintPair signs an access token and persists a fresh refresh token hash.
func (s *Service) mintPair(ctx context.Context, tx Store, user *User) (TokenPair, error) {
	access, accessExp, err := s.tokens.SignAccess(Identity{UserID: user.ID, OrganizationID: user.OrganizationID})
	if err != nil {
		return TokenPair{}, err
	}
	plaintext, digest, err := s.tokens.NewOpaqueSecret()
	if err != nil {
		return TokenPair{}, err
	}
	now := s.tokens.Now().UTC()
	rec := &Token{
		ID:        ids.New(),
		UserID:    user.ID,
		Kind:      TokenKindRefresh,
		TokenHash: digest,
		ExpiresAt: now.Add(s.tokens.TTLFor(TokenKindRefresh)),
		CreatedAt: now,
	}
	if err := tx.Tokens().Create(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     plaintext,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// Authenticate verifies an access token statelessly and returns the identity
// it carries.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Identity, error) {
	return s.tokens.VerifyAccess(accessToken)
}

// ResolvePermissions computes the effective permission set for a user by
// unioning the permissions of the user's roles within the user's own
// organization. Roles referenced from other organizations never contribute.
func (s *Service) ResolvePermissions(ctx context.Context, userID string) (PermissionSet, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.store.Roles().FindByIDs(ctx, user.OrganizationID, user.RoleIDs)
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(roles), nil
}

// PrincipalFor loads the user behind an identity and resolves permissions
// fresh. Called on every authenticated request.
func (s *Service) PrincipalFor(ctx context.Context, id Identity) (Principal, error) {
	user, err := s.store.Users().Find(ctx, id.OrganizationID, id.UserID)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: unknown identity", apperr.ErrUnauthorized)
	}
	if user.Status != UserStatusActive {
		return Principal{}, fmt.Errorf("%w: account is not active", apperr.ErrUnauthorized)
	}
	roles, err := s.store.Roles().FindByIDs(ctx, user.OrganizationID, user.RoleIDs)
	if err != nil {
		return Principal{}, err
	}
	return Principal{User: user, Permissions: NewPermissionSet(roles)}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued inside one transaction, so a token can be spent only once.
// A second presentation of the same plaintext fails the revoked check, which
// is how replay of a stolen-but-used token surfaces.
func (s *Service) Refresh(ctx context.Context, refreshPlaintext string) (TokenPair, error) {
	refreshPlaintext = strings.TrimSpace(refreshPlaintext)
	if refreshPlaintext == "" {
		return TokenPair{}, ErrInvalidToken
	}
	digest := HashTokenSecret(refreshPlaintext)

	var pair TokenPair
	err := s.store.InTx(ctx, func(tx Store) error {
		rec, err := tx.Tokens().FindByHash(ctx, TokenKindRefresh, digest)
		if err != nil {
			return ErrInvalidToken
		}
		now := s.tokens.Now().UTC()
		if !rec.Usable(now) {
			return ErrInvalidToken
		}
		user, err := tx.Users().FindByID(ctx, rec.UserID)
		if err != nil {
			return ErrInvalidToken
		}
		if user.Status != UserStatusActive {
			return ErrInvalidToken
		}
		if err := tx.Tokens().Revoke(ctx, rec.ID, now); err != nil {
			return err
		}
		pair, err = s.mintPair(ctx, tx, user)
		if err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: user.OrganizationID,
			ActorUserID:    user.ID,
			Action:         "auth.refresh",
			EntityType:     "token",
			EntityID:       rec.ID,
		})
	})
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout revokes exactly the presented refresh token. Other sessions of the
// same user stay valid.
func (s *Service) Logout(ctx context.Context, actor Principal, refreshPlaintext string) error {
	if actor.User == nil {
		return fmt.Errorf("%w: authentication required", apperr.ErrUnauthorized)
	}
	refreshPlaintext = strings.TrimSpace(refreshPlaintext)
	if refreshPlaintext == "" {
		return fmt.Errorf("%w: refresh token is required", apperr.ErrValidation)
	}
	digest := HashTokenSecret(refreshPlaintext)

	return s.store.InTx(ctx, func(tx Store) error {
		rec, err := tx.Tokens().FindByHash(ctx, TokenKindRefresh, digest)
		if err != nil {
			return ErrInvalidToken
		}
		if rec.UserID != actor.User.ID {
			return ErrInvalidToken
		}
		if rec.RevokedAt == nil {
			if err := tx.Tokens().Revoke(ctx, rec.ID, s.tokens.Now().UTC()); err != nil {
				return err
			}
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: actor.User.OrganizationID,
			ActorUserID:    actor.User.ID,
			Action:         "auth.logout",
			EntityType:     "token",
			EntityID:       rec.ID,
		})
	})
}

// ChangePassword verifies the current credential, stores the new hash, and
// revokes every outstanding refresh token for the user — deliberately wider
// invalidation than logout, forcing re-authentication on all devices.
func (s *Service) ChangePassword(ctx context.Context, actor Principal, current, next string) error {
	if actor.User == nil {
		return fmt.Errorf("%w: authentication required", apperr.ErrUnauthorized)
	}
	if len(next) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", apperr.ErrValidation)
	}
	if !VerifyPassword(actor.User.PasswordHash, current) {
		return fmt.Errorf("%w: current password is incorrect", apperr.ErrUnauthorized)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	return s.store.InTx(ctx, func(tx Store) error {
		user, err := tx.Users().FindByID(ctx, actor.User.ID)
		if err != nil {
			return err
		}
		now := s.tokens.Now().UTC()
		user.PasswordHash = hash
		user.UpdatedAt = now
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		if err := tx.Tokens().RevokeAllForUser(ctx, user.ID, TokenKindRefresh, now); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: user.OrganizationID,
			ActorUserID:    user.ID,
			Action:         "auth.password.change",
			EntityType:     "user",
			EntityID:       user.ID,
		})
	})
}

// ForgotPassword issues a password-reset token. When the account does not
// exist the call succeeds with an empty result so the endpoint cannot be
// used to enumerate accounts; delivery is the mailer's concern.
func (s *Service) ForgotPassword(ctx context.Context, domain, email string) (string, error) {
	domain = strings.TrimSpace(strings.ToLower(domain))
	email = normalizeEmail(email)
	if domain == "" || !validEmail(email) {
		return "", fmt.Errorf("%w: valid domain and email are required", apperr.ErrValidation)
	}
	org, err := s.store.Organizations().FindByDomain(ctx, domain)
	if err != nil {
		return "", nil
	}
	user, err := s.store.Users().FindByEmail(ctx, org.ID, email)
	if err != nil {
		return "", nil
	}

	plaintext, digest, err := s.tokens.NewOpaqueSecret()
	if err != nil {
		return "", err
	}
	now := s.tokens.Now().UTC()
	rec := &Token{
		ID:        ids.New(),
		UserID:    user.ID,
		Kind:      TokenKindReset,
		TokenHash: digest,
		ExpiresAt: now.Add(s.tokens.TTLFor(TokenKindReset)),
		CreatedAt: now,
	}
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Tokens().Create(ctx, rec); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: user.OrganizationID,
			Action:         "auth.password.forgot",
			EntityType:     "user",
			EntityID:       user.ID,
		})
	})
	if err != nil {
		return "", err
	}
	return plaintext, nil
}

// ResetPassword consumes a reset token, stores the new hash, and revokes
// every refresh token for the user.
func (s *Service) ResetPassword(ctx context.Context, tokenPlaintext, next string) error {
	tokenPlaintext = strings.TrimSpace(tokenPlaintext)
	if tokenPlaintext == "" {
		return ErrInvalidToken
	}
	if len(next) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", apperr.ErrValidation)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	digest := HashTokenSecret(tokenPlaintext)

	return s.store.InTx(ctx, func(tx Store) error {
		rec, err := tx.Tokens().FindByHash(ctx, TokenKindReset, digest)
		if err != nil {
			return ErrInvalidToken
		}
		now := s.tokens.Now().UTC()
		if !rec.Usable(now) {
			return ErrInvalidToken
		}
		user, err := tx.Users().FindByID(ctx, rec.UserID)
		if err != nil {
			return ErrInvalidToken
		}
		user.PasswordHash = hash
		user.UpdatedAt = now
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		if err := tx.Tokens().Revoke(ctx, rec.ID, now); err != nil {
			return err
		}
		if err := tx.Tokens().RevokeAllForUser(ctx, user.ID, TokenKindRefresh, now); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: user.OrganizationID,
			ActorUserID:    user.ID,
			Action:         "auth.password.reset",
			EntityType:     "user",
			EntityID:       user.ID,
		})
	})
}

// VerifyEmailAndActivate consumes an email-verify token, sets the invited
// user's first password, and activates the account.
func (s *Service) VerifyEmailAndActivate(ctx context.Context, tokenPlaintext, password string) (*User, error) {
	tokenPlaintext = strings.TrimSpace(tokenPlaintext)
	if tokenPlaintext == "" {
		return nil, ErrInvalidToken
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", apperr.ErrValidation)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	digest := HashTokenSecret(tokenPlaintext)

	var activated *User
	err = s.store.InTx(ctx, func(tx Store) error {
		rec, err := tx.Tokens().FindByHash(ctx, TokenKindVerify, digest)
		if err != nil {
			return ErrInvalidToken
		}
		now := s.tokens.Now().UTC()
		if !rec.Usable(now) {
			return ErrInvalidToken
		}
		user, err := tx.Users().FindByID(ctx, rec.UserID)
		if err != nil {
			return ErrInvalidToken
		}
		if user.Status != UserStatusPending {
			return fmt.Errorf("%w: account is already activated", apperr.ErrBadRequest)
		}
		user.PasswordHash = hash
		user.Status = UserStatusActive
		user.UpdatedAt = now
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		if err := tx.Tokens().Revoke(ctx, rec.ID, now); err != nil {
			return err
		}
		activated = user
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: user.OrganizationID,
			ActorUserID:    user.ID,
			Action:         "user.activate",
			EntityType:     "user",
			EntityID:       user.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return activated, nil
}
