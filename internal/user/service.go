package user

import (
	defError "errors"

	"wiki-backend/internal/errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service defines the interface for user business logic
type Service interface {
	Register(user *User) error
	Login(username, password string) (*User, error)
	GetUserByID(id uint64) (*User, error)
	GetUserByUsername(username string) (*User, error)
	ListActiveUsers() ([]SafeUser, error)
	ListAllUsers() ([]SafeUser, error)
	SetUserActive(id uint64, active bool) error
}

// DefaultService implements Service
type DefaultService struct {
	repository UserRepository
}

// NewService creates a new user service
func NewService(repository UserRepository) Service {
	return &DefaultService{repository: repository}
}

// Register registers a new user
func (s *DefaultService) Register(user *User) error {
	// Check if username is taken
	_, err := s.repository.FindByUsername(user.Username)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		return errors.UnprocessableEntity("Username already registered", nil)
	}

	// Check if email is taken
	_, err = s.repository.FindByEmail(user.Email)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		return errors.UnprocessableEntity("Email already registered", nil)
	}

	// Hash the password before saving
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.UnprocessableEntity("Can't hash password", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.Role = RoleUser
	user.IsActive = true

	return s.repository.Create(user)
}

// Login authenticates a user
func (s *DefaultService) Login(username, password string) (*User, error) {
	user, err := s.repository.FindByUsername(username)
	if err != nil {
		return nil, errors.Unauthorized("Incorrect username or password", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.Unauthorized("Incorrect username or password", err)
	}

	// Inactive users are rejected at authentication, never later
	if !user.IsActive {
		return nil, errors.Unauthorized("User is not active", nil)
	}

	return user, nil
}

// GetUserByID gets a user by ID
func (s *DefaultService) GetUserByID(id uint64) (*User, error) {
	return s.repository.FindByID(id)
}

// GetUserByUsername gets a user by username
func (s *DefaultService) GetUserByUsername(username string) (*User, error) {
	return s.repository.FindByUsername(username)
}

// ListActiveUsers returns active users for collaborator pickers
func (s *DefaultService) ListActiveUsers() ([]SafeUser, error) {
	users, err := s.repository.ListActive()
	if err != nil {
		return nil, err
	}
	return toSafeUsers(users), nil
}

// ListAllUsers returns every user, for admin views
func (s *DefaultService) ListAllUsers() ([]SafeUser, error) {
	users, err := s.repository.ListAll()
	if err != nil {
		return nil, err
	}
	return toSafeUsers(users), nil
}

// SetUserActive blocks or unblocks a user
func (s *DefaultService) SetUserActive(id uint64, active bool) error {
	err := s.repository.SetActive(id, active)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound("User not found", err)
	}
	return err
}

func toSafeUsers(users []User) []SafeUser {
	result := make([]SafeUser, 0, len(users))
	for _, u := range users {
		result = append(result, u.ToSafeUser())
	}
	return result
}
