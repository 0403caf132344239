package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/albaranes/internal/cache"
	"example.com/albaranes/internal/models"
)

// canUseProject: assigned, owned by the user, or owned by the user's company
func canUseProject(user *models.User, project *models.Project) bool {
	return project.IsAssigned(user.ID) ||
		project.Owner.IsUser(user.ID) ||
		project.Owner.IsCompany(user.CompanyID)
}

// ownsProject: owned by the user or the user's company
func ownsProject(user *models.User, project *models.Project) bool {
	return project.Owner.IsUser(user.ID) || project.Owner.IsCompany(user.CompanyID)
}

func canUseClient(user *models.User, client *models.Client) bool {
	return client.Owner.IsUser(user.ID) || client.Owner.IsCompany(user.CompanyID)
}

// canSeeNote: the creator, or any member of the company the note belongs to
func canSeeNote(user *models.User, note *models.DeliveryNote) bool {
	if note.CreatorID == user.ID {
		return true
	}
	return note.CompanyID != nil && user.CompanyID != nil && *note.CompanyID == *user.CompanyID
}

// defaultOwner is the caller's company when there is one, else the caller
func defaultOwner(user *models.User) models.Owner {
	if user.CompanyID != nil {
		return models.CompanyOwner(*user.CompanyID)
	}
	return models.UserOwner(user.ID)
}

// lookupProject reads a project through the cache
func lookupProject(ctx context.Context, c Cache, projects ProjectRepository, id uuid.UUID) (*models.Project, error) {
	key := cache.ProjectCacheKey(id)

	var project models.Project
	err := c.Get(ctx, key, &project)
	if err == nil {
		return &project, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Str("project_id", id.String()).Msg("Project cache read failed")
	}

	found, err := projects.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, "project")
	}
	if err := c.Set(ctx, key, found); err != nil {
		log.Warn().Err(err).Str("project_id", id.String()).Msg("Project cache write failed")
	}
	return found, nil
}

// lookupClient reads a client through the cache
func lookupClient(ctx context.Context, c Cache, clients ClientRepository, id uuid.UUID) (*models.Client, error) {
	key := cache.ClientCacheKey(id)

	var client models.Client
	err := c.Get(ctx, key, &client)
	if err == nil {
		return &client, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Str("client_id", id.String()).Msg("Client cache read failed")
	}

	found, err := clients.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, "client")
	}
	if err := c.Set(ctx, key, found); err != nil {
		log.Warn().Err(err).Str("client_id", id.String()).Msg("Client cache write failed")
	}
	return found, nil
}
