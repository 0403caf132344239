package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"example.com/albaranes/internal/cache"
	"example.com/albaranes/internal/messaging"
	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/render"
	"example.com/albaranes/internal/repositories"
)

// Mock repositories for testing
type MockDeliveryNoteRepository struct {
	mock.Mock
}

func (m *MockDeliveryNoteRepository) Create(ctx context.Context, note *models.DeliveryNote) error {
	args := m.Called(ctx, note)
	if fn, ok := args.Get(0).(func(context.Context, *models.DeliveryNote) error); ok {
		return fn(ctx, note)
	}
	return args.Error(0)
}

func (m *MockDeliveryNoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DeliveryNote, error) {
	args := m.Called(ctx, id)
	note, _ := args.Get(0).(*models.DeliveryNote)
	return note, args.Error(1)
}

func (m *MockDeliveryNoteRepository) MarkRendered(ctx context.Context, id uuid.UUID, pdfURL string) error {
	args := m.Called(ctx, id, pdfURL)
	return args.Error(0)
}

func (m *MockDeliveryNoteRepository) MarkSigned(ctx context.Context, id uuid.UUID, signature models.Signature, signedPdfURL string) error {
	args := m.Called(ctx, id, signature, signedPdfURL)
	return args.Error(0)
}

func (m *MockDeliveryNoteRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDeliveryNoteRepository) List(ctx context.Context, f repositories.DeliveryNoteFilter) ([]models.DeliveryNote, error) {
	args := m.Called(ctx, f)
	notes, _ := args.Get(0).([]models.DeliveryNote)
	return notes, args.Error(1)
}

func (m *MockDeliveryNoteRepository) ListPendingRender(ctx context.Context, createdBefore time.Time, limit int) ([]models.DeliveryNote, error) {
	args := m.Called(ctx, createdBefore, limit)
	notes, _ := args.Get(0).([]models.DeliveryNote)
	return notes, args.Error(1)
}

type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) Create(ctx context.Context, project *models.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, id)
	project, _ := args.Get(0).(*models.Project)
	return project, args.Error(1)
}

func (m *MockProjectRepository) ListAccessible(ctx context.Context, f repositories.ProjectFilter) ([]models.Project, error) {
	args := m.Called(ctx, f)
	projects, _ := args.Get(0).([]models.Project)
	return projects, args.Error(1)
}

func (m *MockProjectRepository) Update(ctx context.Context, project *models.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	args := m.Called(ctx, id, archived)
	return args.Error(0)
}

func (m *MockProjectRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) Create(ctx context.Context, client *models.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	args := m.Called(ctx, id)
	client, _ := args.Get(0).(*models.Client)
	return client, args.Error(1)
}

func (m *MockClientRepository) ListByOwner(ctx context.Context, f repositories.ClientFilter) ([]models.Client, error) {
	args := m.Called(ctx, f)
	clients, _ := args.Get(0).([]models.Client)
	return clients, args.Error(1)
}

func (m *MockClientRepository) Update(ctx context.Context, client *models.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	args := m.Called(ctx, id, archived)
	return args.Error(0)
}

func (m *MockClientRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) SetCompany(ctx context.Context, userID, companyID uuid.UUID) error {
	args := m.Called(ctx, userID, companyID)
	return args.Error(0)
}

func (m *MockUserRepository) CreateCompany(ctx context.Context, company *models.Company, userID uuid.UUID) error {
	args := m.Called(ctx, company, userID)
	return args.Error(0)
}

func (m *MockUserRepository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	args := m.Called(ctx, id)
	company, _ := args.Get(0).(*models.Company)
	return company, args.Error(1)
}

// MockCache records lookups and evictions; every Get misses
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, value interface{}) error {
	return cache.ErrMiss
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}) error {
	return nil
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

// Mock collaborators of the render pipeline
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, in render.Input) ([]byte, error) {
	args := m.Called(ctx, in)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Store(ctx context.Context, data []byte, name string, contentType string) (string, error) {
	args := m.Called(ctx, data, name, contentType)
	return args.String(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishRender(ctx context.Context, req messaging.RenderRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return nil
}
