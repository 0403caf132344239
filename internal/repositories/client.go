package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/albaranes/internal/models"
)

// ClientRepository provides access to clients
type ClientRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ClientRepository {
	return &ClientRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create inserts a client
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	return translate(r.db.WithContext(ctx).Create(client).Error, "failed to create client")
}

// GetByID gets a non-deleted client by ID
func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	err := r.readOnlyDB.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&client).Error
	if err != nil {
		return nil, translate(err, "failed to get client by ID")
	}
	return &client, nil
}

// ClientFilter narrows a client listing to the rows the owner can see
type ClientFilter struct {
	UserID          uuid.UUID
	CompanyID       *uuid.UUID
	IncludeArchived bool
	Search          string
}

// ListByOwner lists the clients owned by the user or by the user's company
func (r *ClientRepository) ListByOwner(ctx context.Context, f ClientFilter) ([]models.Client, error) {
	var clients []models.Client
	q := r.readOnlyDB.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where(ownedBy(r.readOnlyDB, f.UserID, f.CompanyID))
	if !f.IncludeArchived {
		q = q.Where("is_archived = ?", false)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		q = q.Where("(name ILIKE ? OR cif ILIKE ? OR contact_person ILIKE ? OR email ILIKE ?)", like, like, like, like)
	}
	if err := q.Order("name ASC").Find(&clients).Error; err != nil {
		return nil, translate(err, "failed to list clients")
	}
	return clients, nil
}

// Update writes the editable fields of a live, unarchived client
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	res := r.db.WithContext(ctx).
		Model(client).
		Where("is_deleted = ? AND is_archived = ?", false, false).
		Select("name", "cif", "contact_person", "email", "phone",
			"address_street", "address_city", "address_zip", "address_country").
		Updates(client)
	return affected(res, "failed to update client")
}

// SetArchived archives or restores a live client
func (r *ClientRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.Client{ID: id}).
		Where("is_deleted = ?", false).
		Update("is_archived", archived)
	return affected(res, "failed to archive client")
}

// SoftDelete flags a client as deleted unless a live project still uses it
func (r *ClientRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	inUse := r.db.Model(&models.Project{}).Select("1").Where("client_id = ? AND is_deleted = ?", id, false)
	res := r.db.WithContext(ctx).
		Model(&models.Client{ID: id}).
		Where("is_deleted = ?", false).
		Where("NOT EXISTS (?)", inUse).
		Update("is_deleted", true)
	return affected(res, "failed to delete client")
}

// ownedBy filters rows whose owner is the user or, when set, the user's company
func ownedBy(db *gorm.DB, userID uuid.UUID, companyID *uuid.UUID) *gorm.DB {
	cond := db.Where("owner_kind = ? AND owner_id = ?", models.OwnerUser, userID)
	if companyID != nil {
		cond = cond.Or("owner_kind = ? AND owner_id = ?", models.OwnerCompany, *companyID)
	}
	return cond
}
