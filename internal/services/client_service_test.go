package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/albaranes/internal/cache"
	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/repositories"
)

func strPtr(s string) *string { return &s }

func newClientService() (*ClientService, *MockClientRepository, *MockCache) {
	clients := new(MockClientRepository)
	c := new(MockCache)
	return NewClientService(clients, c), clients, c
}

func TestListClientsHidesArchivedByDefault(t *testing.T) {
	svc, clients, _ := newClientService()
	company := uuid.New()
	user := &models.User{ID: uuid.New(), CompanyID: &company}

	clients.On("ListByOwner", mock.Anything, repositories.ClientFilter{UserID: user.ID, CompanyID: &company}).
		Return([]models.Client{{Name: "Acme"}}, nil).Once()
	clients.On("ListByOwner", mock.Anything, repositories.ClientFilter{UserID: user.ID, CompanyID: &company, IncludeArchived: true, Search: "acm"}).
		Return([]models.Client{{Name: "Acme"}, {Name: "Acme Old", IsArchived: true}}, nil).Once()

	live, err := svc.List(context.Background(), user, ClientListInput{})
	require.NoError(t, err)
	assert.Len(t, live, 1)

	all, err := svc.List(context.Background(), user, ClientListInput{IncludeArchived: true, Search: "acm"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	clients.AssertExpectations(t)
}

func TestUpdateClient(t *testing.T) {
	svc, clients, c := newClientService()
	user := &models.User{ID: uuid.New()}
	client := &models.Client{ID: uuid.New(), Name: "Acme", CIF: "A1", Email: "old@acme.es", Owner: models.UserOwner(user.ID)}

	clients.On("GetByID", mock.Anything, client.ID).Return(client, nil)
	clients.On("Update", mock.Anything, client).Return(nil)
	c.On("Delete", mock.Anything, []string{cache.ClientCacheKey(client.ID)}).Return(nil)

	updated, err := svc.Update(context.Background(), user, client.ID, ClientUpdate{
		Name:  strPtr("  Acme Obras "),
		Phone: strPtr("612 345 678"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Obras", updated.Name)
	assert.Equal(t, "A1", updated.CIF)
	assert.Equal(t, "old@acme.es", updated.Email)
	assert.Equal(t, "+34612345678", updated.Phone)
	clients.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestUpdateClientRefusals(t *testing.T) {
	owner := &models.User{ID: uuid.New()}

	t.Run("archived", func(t *testing.T) {
		svc, clients, _ := newClientService()
		client := &models.Client{ID: uuid.New(), Owner: models.UserOwner(owner.ID), IsArchived: true}
		clients.On("GetByID", mock.Anything, client.ID).Return(client, nil)

		_, err := svc.Update(context.Background(), owner, client.ID, ClientUpdate{Name: strPtr("x")})
		assert.Equal(t, KindConflict, KindOf(err))
		clients.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("not the owner", func(t *testing.T) {
		svc, clients, _ := newClientService()
		client := &models.Client{ID: uuid.New(), Owner: models.UserOwner(uuid.New())}
		clients.On("GetByID", mock.Anything, client.ID).Return(client, nil)

		_, err := svc.Update(context.Background(), owner, client.ID, ClientUpdate{Name: strPtr("x")})
		assert.Equal(t, KindForbidden, KindOf(err))
	})

	t.Run("bad email", func(t *testing.T) {
		svc, clients, _ := newClientService()
		client := &models.Client{ID: uuid.New(), Owner: models.UserOwner(owner.ID)}
		clients.On("GetByID", mock.Anything, client.ID).Return(client, nil)

		_, err := svc.Update(context.Background(), owner, client.ID, ClientUpdate{Email: strPtr("nope")})
		assert.Equal(t, KindValidation, KindOf(err))
	})
}

func TestArchiveAndRestoreClient(t *testing.T) {
	svc, clients, c := newClientService()
	user := &models.User{ID: uuid.New()}
	client := &models.Client{ID: uuid.New(), Owner: models.UserOwner(user.ID)}

	clients.On("GetByID", mock.Anything, client.ID).Return(client, nil)
	clients.On("SetArchived", mock.Anything, client.ID, true).Return(nil).Once()
	clients.On("SetArchived", mock.Anything, client.ID, false).Return(nil).Once()
	c.On("Delete", mock.Anything, []string{cache.ClientCacheKey(client.ID)}).Return(nil)

	archived, err := svc.SetArchived(context.Background(), user, client.ID, true)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	restored, err := svc.SetArchived(context.Background(), user, client.ID, false)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)

	clients.AssertExpectations(t)
	c.AssertNumberOfCalls(t, "Delete", 2)
}

func TestDeleteClient(t *testing.T) {
	user := &models.User{ID: uuid.New()}

	t.Run("soft deletes and evicts", func(t *testing.T) {
		svc, clients, c := newClientService()
		client := &models.Client{ID: uuid.New(), Owner: models.UserOwner(user.ID)}
		clients.On("GetByID", mock.Anything, client.ID).Return(client, nil)
		clients.On("SoftDelete", mock.Anything, client.ID).Return(nil)
		c.On("Delete", mock.Anything, []string{cache.ClientCacheKey(client.ID)}).Return(nil)

		require.NoError(t, svc.Delete(context.Background(), user, client.ID))
		c.AssertExpectations(t)
	})

	t.Run("client with projects conflicts", func(t *testing.T) {
		svc, clients, c := newClientService()
		client := &models.Client{ID: uuid.New(), Owner: models.UserOwner(user.ID)}
		clients.On("GetByID", mock.Anything, client.ID).Return(client, nil)
		clients.On("SoftDelete", mock.Anything, client.ID).Return(repositories.ErrConditionFailed)

		err := svc.Delete(context.Background(), user, client.ID)
		assert.Equal(t, KindConflict, KindOf(err))
		assert.Contains(t, err.Error(), "still has projects")
		c.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("missing client", func(t *testing.T) {
		svc, clients, _ := newClientService()
		id := uuid.New()
		clients.On("GetByID", mock.Anything, id).Return(nil, repositories.ErrNotFound)

		assert.Equal(t, KindNotFound, KindOf(svc.Delete(context.Background(), user, id)))
	})
}
