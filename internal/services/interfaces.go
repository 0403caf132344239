package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/render"
	"example.com/albaranes/internal/repositories"
	"example.com/albaranes/internal/search"
)

// UserRepository is the persistence the user service needs
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	SetCompany(ctx context.Context, userID, companyID uuid.UUID) error
	CreateCompany(ctx context.Context, company *models.Company, userID uuid.UUID) error
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

// ClientRepository is the persistence the client service needs
type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
	ListByOwner(ctx context.Context, f repositories.ClientFilter) ([]models.Client, error)
	Update(ctx context.Context, client *models.Client) error
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// ProjectRepository is the persistence the project and delivery note services need
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListAccessible(ctx context.Context, f repositories.ProjectFilter) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// DeliveryNoteRepository is the persistence the delivery note service needs
type DeliveryNoteRepository interface {
	Create(ctx context.Context, note *models.DeliveryNote) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DeliveryNote, error)
	MarkRendered(ctx context.Context, id uuid.UUID, pdfURL string) error
	MarkSigned(ctx context.Context, id uuid.UUID, signature models.Signature, signedPdfURL string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f repositories.DeliveryNoteFilter) ([]models.DeliveryNote, error)
	ListPendingRender(ctx context.Context, createdBefore time.Time, limit int) ([]models.DeliveryNote, error)
}

// Renderer draws a delivery note
type Renderer interface {
	Render(ctx context.Context, in render.Input) ([]byte, error)
}

// Indexer keeps the search index in step with the database
type Indexer interface {
	Enabled() bool
	IndexDeliveryNote(ctx context.Context, doc search.Document) error
	DeleteDeliveryNote(ctx context.Context, id uuid.UUID) error
	SearchDeliveryNotes(ctx context.Context, text string, userID uuid.UUID, companyID *uuid.UUID, limit int) ([]search.Document, error)
}

// Cache stores lookups by key. Get returns cache.ErrMiss for absent keys.
type Cache interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// Metrics records service counters and timings
type Metrics interface {
	IncrementCounter(name string)
	RecordSince(name string, start time.Time)
	RecordOutcome(name string, failed bool)
}
