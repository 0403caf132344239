package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/albaranes/internal/models"
)

// UserRepository provides access to users and their companies
type UserRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB, readOnlyDB *gorm.DB) *UserRepository {
	return &UserRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create inserts a user; a taken email yields ErrDuplicateKey
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error, "failed to create user")
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&user).Error
	if err != nil {
		return nil, translate(err, "failed to get user by ID")
	}
	return &user, nil
}

// GetByEmail gets a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?) AND is_deleted = ?", email, false).First(&user).Error
	if err != nil {
		return nil, translate(err, "failed to get user by email")
	}
	return &user, nil
}

// UpdateProfile writes the user's name and email; a taken email yields ErrDuplicateKey
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).
		Model(user).
		Where("is_deleted = ?", false).
		Select("name", "email").
		Updates(user)
	return affected(res, "failed to update user profile")
}

// SetCompany attaches the user to a company
func (r *UserRepository) SetCompany(ctx context.Context, userID, companyID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND is_deleted = ?", userID, false).
		Update("company_id", companyID)
	return affected(res, "failed to attach user to company")
}

// CreateCompany inserts a company administered by userID and attaches the user to it
func (r *UserRepository) CreateCompany(ctx context.Context, company *models.Company, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company.AdminID = userID
		if err := tx.Create(company).Error; err != nil {
			return translate(err, "failed to create company")
		}
		res := tx.Model(&models.User{}).Where("id = ?", userID).Update("company_id", company.ID)
		if res.Error != nil {
			return translate(res.Error, "failed to attach user to company")
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetCompany gets a company by ID
func (r *UserRepository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	err := r.readOnlyDB.WithContext(ctx).First(&company, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "failed to get company by ID")
	}
	return &company, nil
}
