package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database/members"
	"github.com/mrlokans/librarian/internal/entities"
)

var (
	ErrAdminRequired = apperr.New(apperr.Forbidden, "administrator role required")
	ErrNameRequired  = apperr.New(apperr.Validation, "name and surname are required")
	ErrEmailRequired = apperr.New(apperr.Validation, "email is required")
)

// dummySecret is hashed once so unknown emails cost one bcrypt comparison,
// the same as a wrong secret.
const dummySecret = "librarian-timing-equalizer"

// MemberStore is the persistence the service needs. Implemented by
// members.Repository.
type MemberStore interface {
	Create(ctx context.Context, member *entities.Member) error
	GetByID(ctx context.Context, id uint) (*entities.Member, error)
	GetByEmail(ctx context.Context, email string) (*entities.Member, error)
	CreateFirst(ctx context.Context, member *entities.Member) error
}

// Registration is the input of Register.
type Registration struct {
	Name    string
	Surname string
	Email   string
	Secret  string
	RoleID  entities.RoleID
}

// LoginResult carries the authenticated member and a fresh access token.
type LoginResult struct {
	Member    *entities.Member
	Token     string
	ExpiresAt time.Time
}

// Service handles member registration and credential verification.
type Service struct {
	members MemberStore
	tokens  *TokenIssuer
	config  config.Auth

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService creates a new authentication service.
func NewService(store MemberStore, tokens *TokenIssuer, cfg config.Auth) *Service {
	return &Service{
		members: store,
		tokens:  tokens,
		config:  cfg,
	}
}

// Register creates a member. Any role other than administrator registers a
// regular member. Registering an administrator requires caller to be one,
// unless no member exists yet.
func (s *Service) Register(ctx context.Context, reg Registration, caller *Principal) (*entities.Member, error) {
	if reg.RoleID != entities.RoleAdministrator {
		reg.RoleID = entities.RoleMember
		return s.create(ctx, reg, s.members.Create)
	}

	if caller != nil && caller.IsAdministrator() {
		return s.create(ctx, reg, s.members.Create)
	}

	member, err := s.create(ctx, reg, s.members.CreateFirst)
	if errors.Is(err, members.ErrNotFirst) {
		return nil, ErrAdminRequired
	}
	return member, err
}

// CreateAdministrator registers an administrator without a caller check.
// Used by the create-admin command.
func (s *Service) CreateAdministrator(ctx context.Context, reg Registration) (*entities.Member, error) {
	reg.RoleID = entities.RoleAdministrator
	return s.create(ctx, reg, s.members.Create)
}

func (s *Service) create(ctx context.Context, reg Registration, insert func(context.Context, *entities.Member) error) (*entities.Member, error) {
	name := strings.TrimSpace(reg.Name)
	surname := strings.TrimSpace(reg.Surname)
	if name == "" || surname == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(reg.Email) == "" {
		return nil, ErrEmailRequired
	}

	hash, err := HashSecret(reg.Secret, s.config.BcryptCost)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to hash secret: %w", err)
	}

	member := &entities.Member{
		FullName:   name + " " + surname,
		Email:      reg.Email,
		SecretHash: hash,
		RoleID:     reg.RoleID,
	}
	if err := insert(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// Authenticate verifies credentials. Unknown email and wrong secret both
// return ErrInvalidCredentials after one bcrypt comparison.
func (s *Service) Authenticate(ctx context.Context, email, secret string) (*entities.Member, error) {
	member, err := s.members.GetByEmail(ctx, email)
	if errors.Is(err, members.ErrMemberNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(secret))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}

	if err := CheckSecret(secret, member.SecretHash); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to verify secret: %w", err)
	}
	return member, nil
}

// Login authenticates and mints an access token.
func (s *Service) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	member, err := s.Authenticate(ctx, email, secret)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Mint(member)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Member: member, Token: token, ExpiresAt: expiresAt}, nil
}

// Member retrieves a member by ID.
func (s *Service) Member(ctx context.Context, id uint) (*entities.Member, error) {
	return s.members.GetByID(ctx, id)
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(dummySecret), s.config.BcryptCost)
		if err != nil {
			hash, _ = bcrypt.GenerateFromPassword([]byte(dummySecret), bcrypt.DefaultCost)
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
