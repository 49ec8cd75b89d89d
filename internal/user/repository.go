package user

import "gorm.io/gorm"

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(user *User) error
	FindByUsername(username string) (*User, error)
	FindByEmail(email string) (*User, error)
	FindByID(id uint64) (*User, error)
	ListActive() ([]User, error)
	ListAll() ([]User, error)
	SetActive(id uint64, active bool) error
}

// UserRepositoryImpl implements UserRepository
type UserRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new user repository
func NewRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

// Create creates a new user
func (r *UserRepositoryImpl) Create(user *User) error {
	return r.db.Create(user).Error
}

// FindByUsername finds a user by username
func (r *UserRepositoryImpl) FindByUsername(username string) (*User, error) {
	var user User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by email
func (r *UserRepositoryImpl) FindByEmail(email string) (*User, error) {
	var user User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID finds a user by ID
func (r *UserRepositoryImpl) FindByID(id uint64) (*User, error) {
	var user User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListActive returns all active users
func (r *UserRepositoryImpl) ListActive() ([]User, error) {
	var users []User
	err := r.db.Where("is_active = ?", true).Order("id").Find(&users).Error
	return users, err
}

// ListAll returns every user
func (r *UserRepositoryImpl) ListAll() ([]User, error) {
	var users []User
	err := r.db.Order("id").Find(&users).Error
	return users, err
}

// SetActive flips the active flag for a user
func (r *UserRepositoryImpl) SetActive(id uint64, active bool) error {
	user, err := r.FindByID(id)
	if err != nil {
		return err
	}

	user.IsActive = active
	return r.db.Save(user).Error
}
