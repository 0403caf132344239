package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/albaranes/internal/models"
)

// ProjectRepository provides access to projects
type ProjectRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ProjectRepository {
	return &ProjectRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create inserts a project
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	return translate(r.db.WithContext(ctx).Create(project).Error, "failed to create project")
}

// GetByID gets a non-deleted project with its client
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Client").
		Where("id = ? AND is_deleted = ?", id, false).
		First(&project).Error
	if err != nil {
		return nil, translate(err, "failed to get project by ID")
	}
	return &project, nil
}

// ProjectFilter narrows a project listing. The access fields are always applied.
type ProjectFilter struct {
	UserID          uuid.UUID
	CompanyID       *uuid.UUID
	ClientID        *uuid.UUID
	Status          models.ProjectStatus
	IncludeArchived bool
	Search          string
}

// ListAccessible lists the projects the user is assigned to or that are owned
// by the user or the user's company
func (r *ProjectRepository) ListAccessible(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	var projects []models.Project
	access := ownedBy(r.readOnlyDB, f.UserID, f.CompanyID).
		Or("assigned_users @> ?::jsonb", fmt.Sprintf(`[%q]`, f.UserID.String()))
	q := r.readOnlyDB.WithContext(ctx).
		Preload("Client").
		Where("is_deleted = ?", false).
		Where(access)
	if !f.IncludeArchived {
		q = q.Where("is_archived = ?", false)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		q = q.Where("(name ILIKE ? OR description ILIKE ?)", like, like)
	}
	if err := q.Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, translate(err, "failed to list projects")
	}
	return projects, nil
}

// Update writes the editable fields of a live, unarchived project
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	res := r.db.WithContext(ctx).
		Model(project).
		Where("is_deleted = ? AND is_archived = ?", false, false).
		Select("name", "description", "client_id", "start_date", "end_date", "status", "assigned_users").
		Updates(project)
	return affected(res, "failed to update project")
}

// SetArchived archives or restores a live project
func (r *ProjectRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.Project{ID: id}).
		Where("is_deleted = ?", false).
		Update("is_archived", archived)
	return affected(res, "failed to archive project")
}

// SoftDelete flags a project as deleted unless it still has live delivery notes
func (r *ProjectRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	inUse := r.db.Model(&models.DeliveryNote{}).Select("1").Where("project_id = ? AND is_deleted = ?", id, false)
	res := r.db.WithContext(ctx).
		Model(&models.Project{ID: id}).
		Where("is_deleted = ?", false).
		Where("NOT EXISTS (?)", inUse).
		Update("is_deleted", true)
	return affected(res, "failed to delete project")
}
