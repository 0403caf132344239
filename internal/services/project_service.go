package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/albaranes/internal/cache"
	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/repositories"
)

// ProjectService manages projects
type ProjectService struct {
	projects ProjectRepository
	clients  ClientRepository
	cache    Cache
}

// NewProjectService creates a new project service
func NewProjectService(projects ProjectRepository, clients ClientRepository, cache Cache) *ProjectService {
	return &ProjectService{projects: projects, clients: clients, cache: cache}
}

// ProjectInput is a new project
type ProjectInput struct {
	Name          string
	Description   string
	ClientID      uuid.UUID
	StartDate     *time.Time
	EndDate       *time.Time
	AssignedUsers []uuid.UUID
}

// Create adds a project for a client the caller can use. The owner is the
// caller's company, or the caller.
func (s *ProjectService) Create(ctx context.Context, user *models.User, in ProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ValidationError("name is required")
	}
	if in.ClientID == uuid.Nil {
		return nil, ValidationError("clientId is required")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, ValidationError("endDate is before startDate")
	}

	client, err := lookupClient(ctx, s.cache, s.clients, in.ClientID)
	if err != nil {
		return nil, err
	}
	if !canUseClient(user, client) {
		return nil, ForbiddenError("no access to client %s", client.ID)
	}

	project := &models.Project{
		Name:          name,
		Description:   strings.TrimSpace(in.Description),
		ClientID:      client.ID,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		Status:        models.ProjectActive,
		Owner:         defaultOwner(user),
		AssignedUsers: dedupe(in.AssignedUsers),
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fromRepository(err, "project")
	}
	project.Client = client

	log.Info().
		Str("project_id", project.ID.String()).
		Str("client_id", client.ID.String()).
		Msg("Project created")
	return project, nil
}

// Get returns a project the caller can use
func (s *ProjectService) Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Project, error) {
	project, err := lookupProject(ctx, s.cache, s.projects, id)
	if err != nil {
		return nil, err
	}
	if !canUseProject(user, project) {
		return nil, ForbiddenError("no access to project %s", id)
	}
	return project, nil
}

// ProjectListInput narrows a project listing
type ProjectListInput struct {
	ClientID        *uuid.UUID
	Status          models.ProjectStatus
	IncludeArchived bool
	Search          string
}

// List returns every project the caller can use. Archived projects are left
// out unless asked for.
func (s *ProjectService) List(ctx context.Context, user *models.User, in ProjectListInput) ([]models.Project, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, ValidationError("unknown project status %q", in.Status)
	}
	projects, err := s.projects.ListAccessible(ctx, repositories.ProjectFilter{
		UserID:          user.ID,
		CompanyID:       user.CompanyID,
		ClientID:        in.ClientID,
		Status:          in.Status,
		IncludeArchived: in.IncludeArchived,
		Search:          in.Search,
	})
	if err != nil {
		return nil, InternalError(err, "failed to list projects")
	}
	return projects, nil
}

// ProjectUpdate carries the fields to change; nil leaves a field as it is
type ProjectUpdate struct {
	Name          *string
	Description   *string
	ClientID      *uuid.UUID
	StartDate     *time.Time
	EndDate       *time.Time
	Status        *models.ProjectStatus
	AssignedUsers []uuid.UUID
}

// owned returns a project owned by the caller or the caller's company.
// Assigned users may use a project but not administer it.
func (s *ProjectService) owned(ctx context.Context, user *models.User, id uuid.UUID) (*models.Project, error) {
	project, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !ownsProject(user, project) {
		return nil, ForbiddenError("only the owner may change project %s", id)
	}
	return project, nil
}

// Update edits a project the caller owns. Archived projects cannot be edited.
func (s *ProjectService) Update(ctx context.Context, user *models.User, id uuid.UUID, in ProjectUpdate) (*models.Project, error) {
	project, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if project.IsArchived {
		return nil, ConflictError(nil, "project %s is archived", project.ID)
	}

	if in.ClientID != nil && *in.ClientID != project.ClientID {
		client, err := lookupClient(ctx, s.cache, s.clients, *in.ClientID)
		if err != nil {
			return nil, err
		}
		if !canUseClient(user, client) {
			return nil, ForbiddenError("no access to client %s", client.ID)
		}
		project.ClientID = client.ID
		project.Client = client
	}
	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" {
			project.Name = name
		}
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}
	if in.StartDate != nil {
		project.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		project.EndDate = in.EndDate
	}
	if project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(*project.StartDate) {
		return nil, ValidationError("endDate is before startDate")
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, ValidationError("unknown project status %q", *in.Status)
		}
		project.Status = *in.Status
	}
	if in.AssignedUsers != nil {
		project.AssignedUsers = dedupe(in.AssignedUsers)
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fromRepository(err, "project")
	}
	s.forget(ctx, project.ID)

	log.Info().Str("project_id", project.ID.String()).Msg("Project updated")
	return project, nil
}

// SetArchived archives or restores a project the caller owns
func (s *ProjectService) SetArchived(ctx context.Context, user *models.User, id uuid.UUID, archived bool) (*models.Project, error) {
	project, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.projects.SetArchived(ctx, project.ID, archived); err != nil {
		return nil, fromRepository(err, "project")
	}
	project.IsArchived = archived
	s.forget(ctx, project.ID)

	log.Info().
		Str("project_id", project.ID.String()).
		Bool("archived", archived).
		Msg("Project archive state changed")
	return project, nil
}

// Delete soft-deletes a project the caller owns. A project with live
// delivery notes is refused.
func (s *ProjectService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	project, err := s.owned(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.projects.SoftDelete(ctx, project.ID); err != nil {
		if errors.Is(err, repositories.ErrConditionFailed) {
			return ConflictError(err, "project %s still has delivery notes", project.ID)
		}
		return fromRepository(err, "project")
	}
	s.forget(ctx, project.ID)

	log.Info().Str("project_id", project.ID.String()).Msg("Project deleted")
	return nil
}

func (s *ProjectService) forget(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.ProjectCacheKey(id)); err != nil {
		log.Warn().Err(err).Str("project_id", id.String()).Msg("Project cache invalidation failed")
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
