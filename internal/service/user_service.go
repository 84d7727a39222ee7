package service

import (
	"strconv"

	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"
	"school-messaging/pkg/jwt"
	"school-messaging/pkg/logger"
	"school-messaging/pkg/password"

	"go.uber.org/zap"
)

// UserAccountStore is the account persistence surface.
// *repository.UserRepository satisfies it.
type UserAccountStore interface {
	Create(user *model.User) error
	GetByID(id uint) (*model.User, error)
	GetByUsernameOrEmail(identifier string) (*model.User, error)
}

// UserProfile is the public projection of an account.
type UserProfile struct {
	ID       uint       `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
	Role     model.Role `json:"role"`
}

// LoginResult carries the issued token and the profile it was issued for.
type LoginResult struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// UserService handles authentication against the local directory. Tokens
// carry the primary role so route middleware can gate without a lookup.
type UserService struct {
	users UserAccountStore
	jwt   *jwt.JWTService
}

// NewUserService wires authentication.
func NewUserService(users UserAccountStore, jwtService *jwt.JWTService) *UserService {
	return &UserService{users: users, jwt: jwtService}
}

// Register creates an account with a bcrypt-hashed password.
func (s *UserService) Register(username, email, plainPassword, firstName, lastName string, role model.Role) (*UserProfile, error) {
	if username == "" || plainPassword == "" {
		return nil, apperrors.Validation("username and password are required")
	}
	if !role.Valid() {
		return nil, apperrors.Validation("unknown role %q", string(role))
	}

	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	logger.Info("user registered",
		zap.Uint("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	profile := toProfile(user)
	return &profile, nil
}

// Login verifies credentials and issues an access token. Failures are
// reported uniformly so attempts cannot probe which accounts exist.
func (s *UserService) Login(identifier, plainPassword string) (*LoginResult, error) {
	user, err := s.users.GetByUsernameOrEmail(identifier)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.AuthorizationDenied("invalid credentials")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.AuthorizationDenied("invalid credentials")
	}
	if !password.Verify(plainPassword, user.PasswordHash) {
		return nil, apperrors.AuthorizationDenied("invalid credentials")
	}

	token, err := s.jwt.GenerateToken(strconv.FormatUint(uint64(user.ID), 10), map[string]interface{}{
		"role": string(user.Role),
		"name": user.FullName(),
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: toProfile(user)}, nil
}

// GetProfile fetches an account's public projection.
func (s *UserService) GetProfile(userID uint) (*UserProfile, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	profile := toProfile(user)
	return &profile, nil
}

func toProfile(u *model.User) UserProfile {
	return UserProfile{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName(),
		Role:     u.Role,
	}
}
