package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/policy"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// AccountService implements the account lifecycle use cases. Each method is a
// single transaction against the credential store; nothing is cached between calls.
type AccountService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	tokens ports.TokenIssuer
	audit  ports.AuditPublisher
	clock  ports.Clock
	log    zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(
	repo ports.UserRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	audit ports.AuditPublisher,
	clock ports.Clock,
	log zerolog.Logger,
) *AccountService {
	if audit == nil {
		audit = discardAudit{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &AccountService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		audit:  audit,
		clock:  clock,
		log:    log,
	}
}

// Register creates an account holding ROLE_USER.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, domain.ErrInvalidInput
	}

	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Roles:        []domain.Role{domain.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Save(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info().Str("user_id", created.ID).Msg("user registered")
	s.publish(domain.EventRegistered, created.ID, created.ID, "")
	return created, nil
}

// Login verifies credentials and returns a freshly issued token with the user.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, in ports.LoginInput) (string, *domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// burn the same hashing cost as a real comparison
			s.hasher.Verify(in.Password, s.fallbackHash())
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}

	s.publish(domain.EventLoggedIn, user.ID, user.ID, "")
	return token, user, nil
}

// GetByID returns the user identified by id.
func (s *AccountService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindByID(ctx, id)
}

// GetUser is the admin read of an arbitrary account.
func (s *AccountService) GetUser(ctx context.Context, callerID, targetID string) (*domain.User, error) {
	if _, err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, targetID)
}

// Update replaces name and email, and the password only when in.ChangePassword is set.
func (s *AccountService) Update(ctx context.Context, in ports.UpdateInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" || email == "" || (in.ChangePassword && in.Password == "") {
		return nil, domain.ErrInvalidInput
	}

	user, err := s.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	if email != user.Email {
		if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
			return nil, err
		}
	}

	user.Name = name
	user.Email = email
	if in.ChangePassword {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("update: hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.clock.Now()

	updated, err := s.repo.Save(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	s.publish(domain.EventUpdated, updated.ID, updated.ID, "")
	return updated, nil
}

// AssignRole grants a role to the target. The caller must hold ROLE_ADMIN.
func (s *AccountService) AssignRole(ctx context.Context, in ports.AssignRoleInput) (*domain.User, error) {
	if _, err := s.requireAdmin(ctx, in.CallerID); err != nil {
		return nil, err
	}

	role, err := domain.NormalizeRole(in.Role)
	if err != nil {
		return nil, err
	}

	target, err := s.GetByID(ctx, in.TargetID)
	if err != nil {
		return nil, err
	}

	if !target.AddRole(role) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateRole, role)
	}
	target.UpdatedAt = s.clock.Now()

	updated, err := s.repo.Save(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("assign role: %w", err)
	}

	s.log.Info().
		Str("user_id", updated.ID).
		Str("actor_id", in.CallerID).
		Str("role", string(role)).
		Msg("role assigned")
	s.publish(domain.EventRoleAssigned, updated.ID, in.CallerID, string(role))
	return updated, nil
}

// Delete removes the target account. Admins cannot delete themselves.
func (s *AccountService) Delete(ctx context.Context, callerID, targetID string) error {
	if callerID == "" {
		return domain.ErrUnauthenticated
	}
	if err := policy.ForbidSelfTarget(callerID, targetID); err != nil {
		return err
	}
	if _, err := s.requireAdmin(ctx, callerID); err != nil {
		return err
	}

	if err := s.repo.DeleteByID(ctx, targetID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("delete: %w", err)
	}

	s.log.Info().Str("user_id", targetID).Str("actor_id", callerID).Msg("user deleted")
	s.publish(domain.EventDeleted, targetID, callerID, "")
	return nil
}

// ListAll returns every account projected to its public view. Admin only.
func (s *AccountService) ListAll(ctx context.Context, callerID string) ([]domain.PublicUser, error) {
	if _, err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// requireAdmin resolves the caller from the store and checks ROLE_ADMIN.
// Roles come from the store, never from the token.
func (s *AccountService) requireAdmin(ctx context.Context, callerID string) (*domain.User, error) {
	caller, err := s.resolveCaller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireRole(caller.Roles, domain.RoleAdmin); err != nil {
		s.log.Warn().Str("actor_id", callerID).Msg("admin operation denied")
		return nil, err
	}
	return caller, nil
}

func (s *AccountService) resolveCaller(ctx context.Context, callerID string) (*domain.User, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	caller, err := s.repo.FindByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("resolve caller: %w", err)
	}
	return caller, nil
}

// ensureEmailFree fails with ErrDuplicateEmail when email belongs to a record other than ownerID.
func (s *AccountService) ensureEmailFree(ctx context.Context, email, ownerID string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("check email: %w", err)
	case existing.ID != ownerID:
		return domain.ErrDuplicateEmail
	default:
		return nil
	}
}

func (s *AccountService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to prepare fallback hash")
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *AccountService) publish(t domain.AccountEventType, userID, actorID, detail string) {
	s.audit.Publish(domain.AccountEvent{
		Type:       t,
		UserID:     userID,
		ActorID:    actorID,
		Detail:     detail,
		OccurredAt: s.clock.Now(),
	})
}

type discardAudit struct{}

func (discardAudit) Publish(domain.AccountEvent) {}
