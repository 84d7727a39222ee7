package repository

import (
	"errors"

	"school-messaging/internal/model"
	"school-messaging/pkg/apperrors"

	"gorm.io/gorm"
)

// UserRepository reads and writes directory accounts.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts an account.
func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// GetByID fetches an account by id.
func (r *UserRepository) GetByID(id uint) (*model.User, error) {
	var u model.User
	if err := r.db.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, err
	}
	return &u, nil
}

// GetByUsernameOrEmail fetches an account by login identifier.
func (r *UserRepository) GetByUsernameOrEmail(identifier string) (*model.User, error) {
	var u model.User
	err := r.db.Where("username = ? OR email = ?", identifier, identifier).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, err
	}
	return &u, nil
}

// UsersInRole lists the ids of all active accounts holding the role.
func (r *UserRepository) UsersInRole(role model.Role) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.User{}).
		Where("role = ? AND is_active = ?", role, true).
		Pluck("id", &ids).Error
	return ids, err
}

// AllUserIDs lists every active account id.
func (r *UserRepository) AllUserIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.User{}).
		Where("is_active = ?", true).
		Pluck("id", &ids).Error
	return ids, err
}

// GetByIDs fetches several accounts at once.
func (r *UserRepository) GetByIDs(ids []uint) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []*model.User
	err := r.db.Where("id IN ?", ids).Find(&users).Error
	return users, err
}
