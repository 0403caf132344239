package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"example.com/albaranes/internal/messaging"
	"example.com/albaranes/internal/metrics"
	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/numbering"
	"example.com/albaranes/internal/render"
	"example.com/albaranes/internal/repositories"
	"example.com/albaranes/internal/search"
	"example.com/albaranes/internal/storage"
	"example.com/albaranes/internal/tracing"
)

const defaultSearchLimit = 20

// DeliveryNoteDeps are the collaborators of the delivery note service
type DeliveryNoteDeps struct {
	Notes       DeliveryNoteRepository
	Projects    ProjectRepository
	Clients     ClientRepository
	Renderer    Renderer
	Store       storage.Store
	Publisher   messaging.Publisher
	Indexer     Indexer
	Cache       Cache
	Metrics     Metrics
	Tracer      tracing.Tracer
	Locker      numbering.Locker
	MaxAttempts int
}

// DeliveryNoteService runs the delivery note lifecycle
type DeliveryNoteService struct {
	notes       DeliveryNoteRepository
	projects    ProjectRepository
	clients     ClientRepository
	renderer    Renderer
	store       storage.Store
	publisher   messaging.Publisher
	indexer     Indexer
	cache       Cache
	metrics     Metrics
	tracer      tracing.Tracer
	locker      numbering.Locker
	maxAttempts int
	now         func() time.Time
}

// NewDeliveryNoteService creates a new delivery note service
func NewDeliveryNoteService(deps DeliveryNoteDeps) *DeliveryNoteService {
	s := &DeliveryNoteService{
		notes:       deps.Notes,
		projects:    deps.Projects,
		clients:     deps.Clients,
		renderer:    deps.Renderer,
		store:       deps.Store,
		publisher:   deps.Publisher,
		indexer:     deps.Indexer,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		tracer:      deps.Tracer,
		locker:      deps.Locker,
		maxAttempts: deps.MaxAttempts,
		now:         time.Now,
	}
	if s.publisher == nil {
		s.publisher = messaging.NoopPublisher{}
	}
	if s.locker == nil {
		s.locker = numbering.NoopLocker{}
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 1
	}
	return s
}

// CreateDeliveryNoteInput is the caller-supplied part of a new note
type CreateDeliveryNoteInput struct {
	ProjectID uuid.UUID
	Items     []models.LineItem
	Notes     string
}

// SignInput carries the counter-signature
type SignInput struct {
	SignatureImage string // base64 or data URL
	SignedBy       string
}

// ListInput narrows a listing of the caller's notes
type ListInput struct {
	ProjectID *uuid.UUID
	ClientID  *uuid.UUID
	Status    models.DeliveryNoteStatus
	Search    string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// validateItems checks item shape. Amounts are never taken from the caller.
func validateItems(items []models.LineItem) error {
	if len(items) == 0 {
		return ValidationError("a delivery note needs at least one item")
	}
	for i, item := range items {
		pos := i + 1
		if strings.TrimSpace(item.Description) == "" {
			return ValidationError("item %d: description is required", pos)
		}
		if !item.Quantity.Valid {
			return ValidationError("item %d: quantity is required", pos)
		}
		if item.Quantity.Decimal.IsNegative() {
			return ValidationError("item %d: quantity must not be negative", pos)
		}
		if !item.Unit.Valid() {
			return ValidationError("item %d: unit %q is not one of %v", pos, item.Unit, models.Units)
		}
		if item.UnitPrice.Valid && item.UnitPrice.Decimal.IsNegative() {
			return ValidationError("item %d: unit price must not be negative", pos)
		}
	}
	return nil
}

// Create persists a draft and then tries to render and store it. A failure
// after the draft is persisted is logged and queued for retry; the draft is
// still returned.
func (s *DeliveryNoteService) Create(ctx context.Context, user *models.User, in CreateDeliveryNoteInput) (*models.DeliveryNote, error) {
	txn, end := s.tracer.StartTransaction(ctx, "create-delivery-note")
	defer end()

	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	project, err := lookupProject(ctx, s.cache, s.projects, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if !canUseProject(user, project) {
		return nil, ForbiddenError("no access to project %s", project.ID)
	}

	items := make([]models.LineItem, len(in.Items))
	for i, item := range in.Items {
		item.Description = strings.TrimSpace(item.Description)
		item.Amount = decimal.Zero
		items[i] = item
	}

	note := &models.DeliveryNote{
		ProjectID: project.ID,
		ClientID:  project.ClientID,
		CreatorID: user.ID,
		CompanyID: user.CompanyID,
		Items:     items,
		Notes:     strings.TrimSpace(in.Notes),
		Status:    models.StatusDraft,
	}

	span := s.tracer.StartSpan("persist-delivery-note", txn)
	err = s.persist(ctx, note)
	span.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}
	s.tracer.AddAttribute(txn, "delivery_note_number", note.Number)
	s.metrics.IncrementCounter(metrics.DeliveryNotesCreated)

	log.Info().
		Str("delivery_note_id", note.ID.String()).
		Str("number", note.Number).
		Str("total", note.Total.String()).
		Msg("Delivery note created")

	client, err := s.clientOf(ctx, project)
	if err != nil {
		log.Warn().Err(err).Str("delivery_note_id", note.ID.String()).Msg("Failed to load client for delivery note")
	}
	s.index(ctx, note, project, client)

	renderSpan := s.tracer.StartSpan("render-and-store", txn)
	err = s.renderAndStore(ctx, note, project, client)
	renderSpan.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		log.Warn().
			Err(err).
			Str("delivery_note_id", note.ID.String()).
			Msg("Failed to render delivery note, keeping draft for retry")
		s.enqueueRender(ctx, note.ID)
	}

	return note, nil
}

// persist inserts the note. The number is derived at insert time; if another
// insert took the same number the insert is retried with a fresh one. When
// the derived number cannot move past a collision, or on the last attempt,
// the fallback number is used instead.
func (s *DeliveryNoteService) persist(ctx context.Context, note *models.DeliveryNote) error {
	var lastErr error
	var collided string
	fallback := false
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		note.Number = ""
		if fallback || (attempt > 1 && attempt == s.maxAttempts) {
			note.Number = numbering.Fallback(s.now())
		}

		err := s.insert(ctx, note)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrDuplicateKey) {
			return InternalError(err, "failed to create delivery note")
		}

		lastErr = err
		s.metrics.IncrementCounter(metrics.NumberCollisions)
		log.Warn().
			Int("attempt", attempt).
			Str("number", note.Number).
			Msg("Delivery note number collision")

		// the same number twice means the latest note will not change
		fallback = note.Number == collided
		collided = note.Number
	}
	return ConflictError(lastErr, "could not allocate a unique delivery note number after %d attempts", s.maxAttempts)
}

func (s *DeliveryNoteService) insert(ctx context.Context, note *models.DeliveryNote) error {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		// the unique index and retry still guard the number
		log.Warn().Err(err).Msg("Numbering lock unavailable, allocating without it")
		return s.notes.Create(ctx, note)
	}
	defer unlock()
	return s.notes.Create(ctx, note)
}

func (s *DeliveryNoteService) clientOf(ctx context.Context, project *models.Project) (*models.Client, error) {
	if project.Client != nil && project.Client.ID == project.ClientID {
		return project.Client, nil
	}
	return lookupClient(ctx, s.cache, s.clients, project.ClientID)
}

// renderAndStore draws the unsigned document, stores it and moves the draft to sent
func (s *DeliveryNoteService) renderAndStore(ctx context.Context, note *models.DeliveryNote, project *models.Project, client *models.Client) error {
	start := time.Now()
	pdf, err := s.renderer.Render(ctx, render.Input{Note: note, Project: project, Client: client})
	s.metrics.RecordSince(metrics.RenderDuration, start)
	s.metrics.RecordOutcome(metrics.RenderDuration, err != nil)
	if err != nil {
		s.metrics.IncrementCounter(metrics.DeliveryNotesRenderFailed)
		return RenderOrStoreError(err, "failed to render delivery note %s", note.Number)
	}

	url, err := s.store.Store(ctx, pdf, pdfName(note, false), storage.ContentTypePDF)
	if err != nil {
		s.metrics.IncrementCounter(metrics.DeliveryNotesRenderFailed)
		return RenderOrStoreError(err, "failed to store delivery note %s", note.Number)
	}

	if err := s.notes.MarkRendered(ctx, note.ID, url); err != nil {
		if errors.Is(err, repositories.ErrConditionFailed) {
			return ConflictError(err, "delivery note %s is no longer a draft", note.Number)
		}
		return InternalError(err, "failed to record delivery note artifact")
	}

	note.PdfURL = &url
	note.Status = models.StatusSent
	s.metrics.IncrementCounter(metrics.DeliveryNotesRendered)
	s.index(ctx, note, project, client)

	log.Info().
		Str("delivery_note_id", note.ID.String()).
		Str("pdf_url", url).
		Msg("Delivery note rendered")
	return nil
}

func (s *DeliveryNoteService) enqueueRender(ctx context.Context, id uuid.UUID) {
	if err := s.publisher.PublishRender(ctx, messaging.RenderRequest{DeliveryNoteID: id}); err != nil {
		log.Warn().Err(err).Str("delivery_note_id", id.String()).Msg("Failed to enqueue render request, reconciliation will retry")
		return
	}
	s.metrics.IncrementCounter(metrics.RenderRequestsQueued)
}

func (s *DeliveryNoteService) index(ctx context.Context, note *models.DeliveryNote, project *models.Project, client *models.Client) {
	if !s.indexer.Enabled() {
		return
	}
	if err := s.indexer.IndexDeliveryNote(ctx, search.NewDocument(note, project, client)); err != nil {
		log.Warn().Err(err).Str("delivery_note_id", note.ID.String()).Msg("Failed to index delivery note")
	}
}

func pdfName(note *models.DeliveryNote, signed bool) string {
	if signed {
		return storage.SafeName(fmt.Sprintf("signed-delivery-note-%s.pdf", note.Number))
	}
	return storage.SafeName(fmt.Sprintf("delivery-note-%s.pdf", note.Number))
}

// RenderAndStore retries the second phase of creation for one note. A note
// already sent is returned unchanged; signed notes are refused.
func (s *DeliveryNoteService) RenderAndStore(ctx context.Context, id uuid.UUID) (*models.DeliveryNote, error) {
	txn, end := s.tracer.StartTransaction(ctx, "render-delivery-note")
	defer end()

	note, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, "delivery note")
	}

	if err := s.renderPending(ctx, note); err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}
	return note, nil
}

// Render is RenderAndStore on behalf of a caller
func (s *DeliveryNoteService) Render(ctx context.Context, user *models.User, id uuid.UUID) (*models.DeliveryNote, error) {
	note, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.renderPending(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *DeliveryNoteService) renderPending(ctx context.Context, note *models.DeliveryNote) error {
	switch note.Status {
	case models.StatusSent:
		if note.HasPdf() {
			return nil
		}
	case models.StatusSigned, models.StatusCanceled:
		return ConflictError(nil, "delivery note %s is %s", note.Number, note.Status)
	}

	project, err := lookupProject(ctx, s.cache, s.projects, note.ProjectID)
	if err != nil {
		return err
	}
	client, err := s.clientOf(ctx, project)
	if err != nil {
		return err
	}
	return s.renderAndStore(ctx, note, project, client)
}

// ReconcileRenders retries rendering for drafts older than minAge that have no
// artifact. It returns how many were rendered; failures are logged and skipped.
func (s *DeliveryNoteService) ReconcileRenders(ctx context.Context, minAge time.Duration, limit int) (int, error) {
	txn, end := s.tracer.StartTransaction(ctx, "reconcile-delivery-note-renders")
	defer end()

	pending, err := s.notes.ListPendingRender(ctx, s.now().Add(-minAge), limit)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return 0, InternalError(err, "failed to list delivery notes pending render")
	}

	log.Info().Msgf("Found %d delivery notes pending render", len(pending))

	rendered := 0
	for i := range pending {
		note := &pending[i]
		if err := ctx.Err(); err != nil {
			return rendered, err
		}
		if err := s.renderPending(ctx, note); err != nil {
			log.Warn().
				Err(err).
				Str("delivery_note_id", note.ID.String()).
				Msg("Failed to render pending delivery note")
			continue
		}
		rendered++
	}
	return rendered, nil
}

// Sign counter-signs a note exactly once. The signature and signed document are
// stored before the status is written; any failure leaves the note unchanged.
func (s *DeliveryNoteService) Sign(ctx context.Context, user *models.User, id uuid.UUID, in SignInput) (*models.DeliveryNote, error) {
	txn, end := s.tracer.StartTransaction(ctx, "sign-delivery-note")
	defer end()

	signedBy := strings.TrimSpace(in.SignedBy)
	if signedBy == "" {
		return nil, ValidationError("signedBy is required")
	}
	if strings.TrimSpace(in.SignatureImage) == "" {
		return nil, ValidationError("signatureImage is required")
	}

	note, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if note.Status == models.StatusSigned {
		return nil, ConflictError(nil, "delivery note %s is already signed", note.Number)
	}
	if note.Status == models.StatusCanceled {
		return nil, ConflictError(nil, "delivery note %s is canceled", note.Number)
	}

	raw, err := render.DecodeSignature(in.SignatureImage)
	if err != nil {
		return nil, ValidationError("invalid signature image: %v", err)
	}
	png, err := render.NormalizeSignature(raw)
	if err != nil {
		return nil, ValidationError("invalid signature image: %v", err)
	}

	project, err := lookupProject(ctx, s.cache, s.projects, note.ProjectID)
	if err != nil {
		return nil, err
	}
	client, err := s.clientOf(ctx, project)
	if err != nil {
		return nil, err
	}

	span := s.tracer.StartSpan("store-signature", txn)
	signatureURL, err := s.store.Store(ctx, png, storage.SafeName("signature-"+note.Number+".png"), storage.ContentTypePNG)
	span.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, RenderOrStoreError(err, "failed to store signature for %s", note.Number)
	}

	signedAt := s.now()
	span = s.tracer.StartSpan("render-signed", txn)
	pdf, err := s.renderer.Render(ctx, render.Input{
		Note:    note,
		Project: project,
		Client:  client,
		Signature: &render.SignatureBlock{
			Image:    png,
			ImageRef: signatureURL,
			SignedBy: signedBy,
			Date:     signedAt,
		},
	})
	span.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, RenderOrStoreError(err, "failed to render signed delivery note %s", note.Number)
	}

	signedURL, err := s.store.Store(ctx, pdf, pdfName(note, true), storage.ContentTypePDF)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, RenderOrStoreError(err, "failed to store signed delivery note %s", note.Number)
	}

	signature := models.Signature{Date: signedAt, Image: signatureURL, SignedBy: signedBy}
	if err := s.notes.MarkSigned(ctx, note.ID, signature, signedURL); err != nil {
		s.tracer.RecordError(txn, err)
		if errors.Is(err, repositories.ErrConditionFailed) {
			return nil, ConflictError(err, "delivery note %s is already signed", note.Number)
		}
		return nil, InternalError(err, "failed to record signature")
	}

	note.Status = models.StatusSigned
	note.Signature = &signature
	note.SignedPdfURL = &signedURL
	s.metrics.IncrementCounter(metrics.DeliveryNotesSigned)
	s.index(ctx, note, project, client)

	log.Info().
		Str("delivery_note_id", note.ID.String()).
		Str("signed_by", signedBy).
		Msg("Delivery note signed")
	return note, nil
}

// Delete soft-deletes a note that is not signed
func (s *DeliveryNoteService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	note, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if note.Status == models.StatusSigned {
		return ConflictError(nil, "signed delivery note %s cannot be deleted", note.Number)
	}

	if err := s.notes.SoftDelete(ctx, note.ID); err != nil {
		if errors.Is(err, repositories.ErrConditionFailed) {
			return ConflictError(err, "delivery note %s was signed or deleted concurrently", note.Number)
		}
		return InternalError(err, "failed to delete delivery note")
	}
	s.metrics.IncrementCounter(metrics.DeliveryNotesDeleted)

	if s.indexer.Enabled() {
		if err := s.indexer.DeleteDeliveryNote(ctx, note.ID); err != nil {
			log.Warn().Err(err).Str("delivery_note_id", note.ID.String()).Msg("Failed to remove delivery note from index")
		}
	}

	log.Info().Str("delivery_note_id", note.ID.String()).Msg("Delivery note deleted")
	return nil
}

// Get returns a note the caller may see
func (s *DeliveryNoteService) Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.DeliveryNote, error) {
	note, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, "delivery note")
	}
	if !canSeeNote(user, note) {
		return nil, ForbiddenError("no access to delivery note %s", id)
	}
	return note, nil
}

// List returns the caller's notes and their company's, newest first
func (s *DeliveryNoteService) List(ctx context.Context, user *models.User, in ListInput) ([]models.DeliveryNote, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, ValidationError("unknown status %q", in.Status)
	}
	if in.From != nil && in.To != nil && in.To.Before(*in.From) {
		return nil, ValidationError("toDate is before fromDate")
	}

	notes, err := s.notes.List(ctx, repositories.DeliveryNoteFilter{
		CreatorID: user.ID,
		CompanyID: user.CompanyID,
		ProjectID: in.ProjectID,
		ClientID:  in.ClientID,
		Status:    in.Status,
		Search:    in.Search,
		From:      in.From,
		To:        in.To,
		Limit:     in.Limit,
		Offset:    in.Offset,
	})
	if err != nil {
		return nil, InternalError(err, "failed to list delivery notes")
	}
	return notes, nil
}

// Search runs a full-text query over the caller's notes
func (s *DeliveryNoteService) Search(ctx context.Context, user *models.User, query string, limit int) ([]search.Document, error) {
	if !s.indexer.Enabled() {
		return nil, UnavailableError(search.ErrDisabled, "search is not available")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ValidationError("q is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	docs, err := s.indexer.SearchDeliveryNotes(ctx, query, user.ID, user.CompanyID, limit)
	if err != nil {
		return nil, UnavailableError(err, "search failed")
	}
	return docs, nil
}

// PdfURL returns the signed artifact when asked for and present, else the
// unsigned one
func (s *DeliveryNoteService) PdfURL(ctx context.Context, user *models.User, id uuid.UUID, signed bool) (string, error) {
	note, err := s.Get(ctx, user, id)
	if err != nil {
		return "", err
	}
	if signed && note.SignedPdfURL != nil && *note.SignedPdfURL != "" {
		return *note.SignedPdfURL, nil
	}
	if note.HasPdf() {
		return *note.PdfURL, nil
	}
	return "", NotFoundError("delivery note %s has no PDF yet", note.Number)
}
