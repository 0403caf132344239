package services

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/albaranes/internal/auth"
	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/repositories"
)

const minPasswordLength = 8

var validate = validator.New()

// UserService handles registration, login and company membership
type UserService struct {
	users  UserRepository
	tokens *auth.TokenIssuer
}

// NewUserService creates a new user service
func NewUserService(users UserRepository, tokens *auth.TokenIssuer) *UserService {
	return &UserService{users: users, tokens: tokens}
}

// RegisterInput is a new account
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Session is an authenticated user and their bearer token
type Session struct {
	User  *models.User
	Token string
}

// CompanyInput is a new company
type CompanyInput struct {
	Name    string
	CIF     string
	Email   string
	Phone   string
	Address models.Address
}

// Register creates an account and signs it in
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return nil, ValidationError("name is required")
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, ValidationError("email %q is not valid", in.Email)
	}
	if len(in.Password) < minPasswordLength {
		return nil, ValidationError("password must have at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, InternalError(err, "failed to hash password")
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash, Role: "user"}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ConflictError(err, "email %s is already registered", email)
		}
		return nil, InternalError(err, "failed to create user")
	}

	log.Info().Str("user_id", user.ID.String()).Msg("User registered")
	return s.session(user)
}

// Login checks credentials and issues a token
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, UnauthorizedError("invalid email or password")
		}
		return nil, InternalError(err, "failed to load user")
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, UnauthorizedError("invalid email or password")
	}
	return s.session(user)
}

func (s *UserService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, InternalError(err, "failed to issue token")
	}
	return &Session{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to the current user record
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, UnauthorizedError("invalid or expired token")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, UnauthorizedError("user no longer exists")
		}
		return nil, InternalError(err, "failed to load user")
	}
	return user, nil
}

// CreateCompany creates a company administered by the caller and makes the
// caller a member
func (s *UserService) CreateCompany(ctx context.Context, user *models.User, in CompanyInput) (*models.Company, error) {
	if user.CompanyID != nil {
		return nil, ConflictError(nil, "user already belongs to a company")
	}
	name := strings.TrimSpace(in.Name)
	cif := strings.ToUpper(strings.TrimSpace(in.CIF))
	if name == "" || cif == "" {
		return nil, ValidationError("name and cif are required")
	}
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	company := &models.Company{
		Name:    name,
		CIF:     cif,
		Email:   strings.TrimSpace(in.Email),
		Phone:   phone,
		Address: in.Address,
	}
	if err := s.users.CreateCompany(ctx, company, user.ID); err != nil {
		return nil, fromRepository(err, "company")
	}
	user.CompanyID = &company.ID

	log.Info().
		Str("company_id", company.ID.String()).
		Str("user_id", user.ID.String()).
		Msg("Company created")
	return company, nil
}

// ProfileInput carries the profile fields to change; nil leaves a field as it is
type ProfileInput struct {
	Name  *string
	Email *string
}

// UpdateProfile changes the caller's name or email. A taken email conflicts.
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, in ProfileInput) (*models.User, error) {
	updated := *user
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ValidationError("name must not be empty")
		}
		updated.Name = name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := validate.Var(email, "required,email"); err != nil {
			return nil, ValidationError("email %q is not valid", *in.Email)
		}
		updated.Email = email
	}

	if err := s.users.UpdateProfile(ctx, &updated); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ConflictError(err, "email %s is already registered", updated.Email)
		}
		return nil, fromRepository(err, "user")
	}
	*user = updated

	log.Info().Str("user_id", user.ID.String()).Msg("User profile updated")
	return user, nil
}

// SwitchCompany attaches the caller to a company they administer
func (s *UserService) SwitchCompany(ctx context.Context, user *models.User, companyID uuid.UUID) (*models.User, error) {
	company, err := s.users.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fromRepository(err, "company")
	}
	if company.AdminID != user.ID && (user.CompanyID == nil || *user.CompanyID != company.ID) {
		return nil, ForbiddenError("not a member of company %s", company.ID)
	}

	if err := s.users.SetCompany(ctx, user.ID, company.ID); err != nil {
		return nil, fromRepository(err, "user")
	}
	user.CompanyID = &company.ID

	log.Info().
		Str("user_id", user.ID.String()).
		Str("company_id", company.ID.String()).
		Msg("User company changed")
	return user, nil
}

// Company returns the caller's company, if any
func (s *UserService) Company(ctx context.Context, user *models.User) (*models.Company, error) {
	if user.CompanyID == nil {
		return nil, nil
	}
	company, err := s.users.GetCompany(ctx, *user.CompanyID)
	if err != nil {
		return nil, fromRepository(err, "company")
	}
	return company, nil
}
