package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/albaranes/internal/models"
)

// DeliveryNoteFilter narrows a delivery note listing. The visibility fields are
// always applied; the rest only when set.
type DeliveryNoteFilter struct {
	CreatorID uuid.UUID
	CompanyID *uuid.UUID
	ProjectID *uuid.UUID
	ClientID  *uuid.UUID
	Status    models.DeliveryNoteStatus
	Search    string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// DeliveryNoteRepository provides access to delivery notes
type DeliveryNoteRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewDeliveryNoteRepository creates a new delivery note repository
func NewDeliveryNoteRepository(db *gorm.DB, readOnlyDB *gorm.DB) *DeliveryNoteRepository {
	return &DeliveryNoteRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create inserts a note. Number and total are filled in by the persist hooks;
// a number collision yields ErrDuplicateKey.
func (r *DeliveryNoteRepository) Create(ctx context.Context, note *models.DeliveryNote) error {
	return translate(r.db.WithContext(ctx).Create(note).Error, "failed to create delivery note")
}

// GetByID gets a non-deleted note from the write database
func (r *DeliveryNoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DeliveryNote, error) {
	var note models.DeliveryNote
	err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&note).Error
	if err != nil {
		return nil, translate(err, "failed to get delivery note by ID")
	}
	return &note, nil
}

// MarkRendered stores the artifact reference of a draft and moves it to sent
func (r *DeliveryNoteRepository) MarkRendered(ctx context.Context, id uuid.UUID, pdfURL string) error {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryNote{ID: id}).
		Where("status = ? AND is_deleted = ?", models.StatusDraft, false).
		Select("pdf_url", "status").
		Updates(&models.DeliveryNote{PdfURL: &pdfURL, Status: models.StatusSent})
	return affected(res, "failed to mark delivery note rendered")
}

// MarkSigned attaches the signature and signed artifact in a single conditional
// write. It fails with ErrConditionFailed if the note was signed concurrently.
func (r *DeliveryNoteRepository) MarkSigned(ctx context.Context, id uuid.UUID, signature models.Signature, signedPdfURL string) error {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryNote{ID: id}).
		Where("status <> ? AND is_deleted = ?", models.StatusSigned, false).
		Select("status", "signature", "signed_pdf_url").
		Updates(&models.DeliveryNote{
			Status:       models.StatusSigned,
			Signature:    &signature,
			SignedPdfURL: &signedPdfURL,
		})
	return affected(res, "failed to mark delivery note signed")
}

// SoftDelete flags a note as deleted unless it is signed
func (r *DeliveryNoteRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryNote{ID: id}).
		Where("status <> ? AND is_deleted = ?", models.StatusSigned, false).
		Update("is_deleted", true)
	return affected(res, "failed to delete delivery note")
}

// List returns the notes visible to the filter's user, newest first
func (r *DeliveryNoteRepository) List(ctx context.Context, f DeliveryNoteFilter) ([]models.DeliveryNote, error) {
	visible := r.readOnlyDB.Where("creator_id = ?", f.CreatorID)
	if f.CompanyID != nil {
		visible = visible.Or("company_id = ?", *f.CompanyID)
	}

	q := r.readOnlyDB.WithContext(ctx).Where("is_deleted = ?", false).Where(visible)
	if f.ProjectID != nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		q = q.Where("(number ILIKE ? OR notes ILIKE ?)", like, like)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var notes []models.DeliveryNote
	if err := q.Order("created_at DESC").Find(&notes).Error; err != nil {
		return nil, translate(err, "failed to list delivery notes")
	}
	return notes, nil
}

// ListPendingRender returns drafts without an artifact created before the cutoff
func (r *DeliveryNoteRepository) ListPendingRender(ctx context.Context, createdBefore time.Time, limit int) ([]models.DeliveryNote, error) {
	var notes []models.DeliveryNote
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_deleted = ? AND (pdf_url IS NULL OR pdf_url = '')", models.StatusDraft, false).
		Where("created_at < ?", createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&notes).Error
	if err != nil {
		return nil, translate(err, "failed to list delivery notes pending render")
	}
	return notes, nil
}

func affected(res *gorm.DB, msg string) error {
	if res.Error != nil {
		return translate(res.Error, msg)
	}
	if res.RowsAffected == 0 {
		return ErrConditionFailed
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
