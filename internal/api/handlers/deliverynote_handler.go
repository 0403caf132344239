package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"example.com/albaranes/internal/export"
	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/search"
	"example.com/albaranes/internal/services"
	"example.com/albaranes/internal/tracing"
)

const dateLayout = "2006-01-02"

// DeliveryNoteService is what the delivery note routes need from the service layer
type DeliveryNoteService interface {
	Create(ctx context.Context, user *models.User, in services.CreateDeliveryNoteInput) (*models.DeliveryNote, error)
	Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.DeliveryNote, error)
	List(ctx context.Context, user *models.User, in services.ListInput) ([]models.DeliveryNote, error)
	Search(ctx context.Context, user *models.User, query string, limit int) ([]search.Document, error)
	Sign(ctx context.Context, user *models.User, id uuid.UUID, in services.SignInput) (*models.DeliveryNote, error)
	Render(ctx context.Context, user *models.User, id uuid.UUID) (*models.DeliveryNote, error)
	Delete(ctx context.Context, user *models.User, id uuid.UUID) error
	PdfURL(ctx context.Context, user *models.User, id uuid.UUID, signed bool) (string, error)
}

// DeliveryNoteHandler handles delivery note HTTP requests
type DeliveryNoteHandler struct {
	service DeliveryNoteService
	tracer  tracing.Tracer
}

// NewDeliveryNoteHandler creates a new delivery note handler
func NewDeliveryNoteHandler(service DeliveryNoteService, tracer tracing.Tracer) *DeliveryNoteHandler {
	return &DeliveryNoteHandler{service: service, tracer: tracer}
}

// LineItemRequest is one item of a new delivery note. Amounts are derived.
type LineItemRequest struct {
	Description string           `json:"description" binding:"required"`
	Quantity    *decimal.Decimal `json:"quantity" binding:"required"`
	Unit        models.Unit      `json:"unit" binding:"required,unit"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
}

// CreateDeliveryNoteRequest is the body of POST /api/deliverynote
type CreateDeliveryNoteRequest struct {
	ProjectID uuid.UUID         `json:"projectId" binding:"required"`
	Items     []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	Notes     string            `json:"notes"`
}

// SignRequest is the body of POST /api/deliverynote/:id/sign
type SignRequest struct {
	SignatureImage string `json:"signatureImage" binding:"required"`
	SignedBy       string `json:"signedBy" binding:"required"`
}

// ListQuery are the filters of GET /api/deliverynote
type ListQuery struct {
	ProjectID string `form:"projectId"`
	ClientID  string `form:"clientId"`
	Status    string `form:"status"`
	Search    string `form:"search"`
	FromDate  string `form:"fromDate"`
	ToDate    string `form:"toDate"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset    int    `form:"offset" binding:"omitempty,min=0"`
}

func (r LineItemRequest) model() models.LineItem {
	item := models.LineItem{Description: r.Description, Unit: r.Unit}
	if r.Quantity != nil {
		item.Quantity = decimal.NewNullDecimal(*r.Quantity)
	}
	if r.UnitPrice != nil {
		item.UnitPrice = decimal.NewNullDecimal(*r.UnitPrice)
	}
	return item
}

// HandleCreate creates a delivery note. A note whose PDF could not be produced
// is still created and returned as a draft.
func (h *DeliveryNoteHandler) HandleCreate(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateDeliveryNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	items := make([]models.LineItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = item.model()
	}

	note, err := h.service.Create(c.Request.Context(), user, services.CreateDeliveryNoteInput{
		ProjectID: req.ProjectID,
		Items:     items,
		Notes:     req.Notes,
	})
	if err != nil {
		h.tracer.RecordError(nrgin.Transaction(c), err)
		RespondError(c, err)
		return
	}
	h.tracer.AddAttribute(nrgin.Transaction(c), "delivery_note_id", note.ID.String())

	c.JSON(http.StatusCreated, note)
}

// HandleList lists the caller's notes
func (h *DeliveryNoteHandler) HandleList(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	in, err := listInput(c)
	if err != nil {
		RespondBindError(c, err)
		return
	}

	notes, err := h.service.List(c.Request.Context(), user, in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

// HandleExport lists the caller's notes as a spreadsheet
func (h *DeliveryNoteHandler) HandleExport(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	in, err := listInput(c)
	if err != nil {
		RespondBindError(c, err)
		return
	}

	notes, err := h.service.List(c.Request.Context(), user, in)
	if err != nil {
		RespondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteDeliveryNotes(&buf, notes); err != nil {
		RespondError(c, services.InternalError(err, "failed to export delivery notes"))
		return
	}

	filename := fmt.Sprintf("delivery-notes-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}

func listInput(c *gin.Context) (services.ListInput, error) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return services.ListInput{}, err
	}

	in := services.ListInput{
		Status: models.DeliveryNoteStatus(q.Status),
		Search: q.Search,
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	var err error
	if in.ProjectID, err = optionalUUID(q.ProjectID, "projectId"); err != nil {
		return in, err
	}
	if in.ClientID, err = optionalUUID(q.ClientID, "clientId"); err != nil {
		return in, err
	}
	if q.FromDate != "" {
		from, err := time.Parse(dateLayout, q.FromDate)
		if err != nil {
			return in, errors.New("fromDate must be YYYY-MM-DD")
		}
		in.From = &from
	}
	if q.ToDate != "" {
		to, err := time.Parse(dateLayout, q.ToDate)
		if err != nil {
			return in, errors.New("toDate must be YYYY-MM-DD")
		}
		// inclusive to the end of the day
		end := to.Add(24*time.Hour - time.Nanosecond)
		in.To = &end
	}
	return in, nil
}

func optionalUUID(value, name string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, errors.Errorf("%s is not a valid id", name)
	}
	return &id, nil
}

// HandleSearch runs a full-text search over the caller's notes
func (h *DeliveryNoteHandler) HandleSearch(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	docs, err := h.service.Search(c.Request.Context(), user, c.Query("q"), limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// HandleGet returns one note
func (h *DeliveryNoteHandler) HandleGet(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	note, err := h.service.Get(c.Request.Context(), user, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// HandleSign counter-signs a note
func (h *DeliveryNoteHandler) HandleSign(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	note, err := h.service.Sign(c.Request.Context(), user, id, services.SignInput{
		SignatureImage: req.SignatureImage,
		SignedBy:       req.SignedBy,
	})
	if err != nil {
		h.tracer.RecordError(nrgin.Transaction(c), err)
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// HandleRender retries rendering and storing the unsigned PDF
func (h *DeliveryNoteHandler) HandleRender(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	note, err := h.service.Render(c.Request.Context(), user, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// HandleDelete soft-deletes a note
func (h *DeliveryNoteHandler) HandleDelete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), user, id); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "delivery note deleted"})
}

// HandlePdf returns the artifact reference; ?signed=true prefers the signed one
func (h *DeliveryNoteHandler) HandlePdf(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	signed, _ := strconv.ParseBool(c.DefaultQuery("signed", "false"))
	url, err := h.service.PdfURL(c.Request.Context(), user, id, signed)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pdfUrl": url})
}

// RegisterRoutes registers the handler's routes
func (h *DeliveryNoteHandler) RegisterRoutes(router gin.IRouter) {
	notes := router.Group("/deliverynote")
	notes.POST("", h.HandleCreate)
	notes.GET("", h.HandleList)
	notes.GET("/search", h.HandleSearch)
	notes.GET("/export", h.HandleExport)
	notes.GET("/:id", h.HandleGet)
	notes.POST("/:id/sign", h.HandleSign)
	notes.POST("/:id/render", h.HandleRender)
	notes.DELETE("/:id", h.HandleDelete)
	notes.GET("/:id/pdf", h.HandlePdf)
}
