package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/services"
)

// ClientService is what the client routes need from the service layer
type ClientService interface {
	Create(ctx context.Context, user *models.User, in services.ClientInput) (*models.Client, error)
	Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Client, error)
	List(ctx context.Context, user *models.User, in services.ClientListInput) ([]models.Client, error)
	Update(ctx context.Context, user *models.User, id uuid.UUID, in services.ClientUpdate) (*models.Client, error)
	SetArchived(ctx context.Context, user *models.User, id uuid.UUID, archived bool) (*models.Client, error)
	Delete(ctx context.Context, user *models.User, id uuid.UUID) error
}

// ProjectService is what the project routes need from the service layer
type ProjectService interface {
	Create(ctx context.Context, user *models.User, in services.ProjectInput) (*models.Project, error)
	Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Project, error)
	List(ctx context.Context, user *models.User, in services.ProjectListInput) ([]models.Project, error)
	Update(ctx context.Context, user *models.User, id uuid.UUID, in services.ProjectUpdate) (*models.Project, error)
	SetArchived(ctx context.Context, user *models.User, id uuid.UUID, archived bool) (*models.Project, error)
	Delete(ctx context.Context, user *models.User, id uuid.UUID) error
}

// ClientHandler handles client and project HTTP requests
type ClientHandler struct {
	clients  ClientService
	projects ProjectService
}

// NewClientHandler creates a new client handler
func NewClientHandler(clients ClientService, projects ProjectService) *ClientHandler {
	return &ClientHandler{clients: clients, projects: projects}
}

// ClientRequest is the body of POST /api/client
type ClientRequest struct {
	Name          string         `json:"name" binding:"required"`
	CIF           string         `json:"cif" binding:"required"`
	ContactPerson string         `json:"contactPerson"`
	Email         string         `json:"email" binding:"omitempty,email"`
	Phone         string         `json:"phone" binding:"omitempty,phone"`
	Address       models.Address `json:"address"`
}

// ProjectRequest is the body of POST /api/project
type ProjectRequest struct {
	Name          string      `json:"name" binding:"required"`
	Description   string      `json:"description"`
	ClientID      uuid.UUID   `json:"clientId" binding:"required"`
	StartDate     *time.Time  `json:"startDate"`
	EndDate       *time.Time  `json:"endDate"`
	AssignedUsers []uuid.UUID `json:"assignedUsers"`
}

// ClientUpdateRequest is the body of PUT /api/client/:id. Absent fields are kept.
type ClientUpdateRequest struct {
	Name          *string         `json:"name"`
	CIF           *string         `json:"cif"`
	ContactPerson *string         `json:"contactPerson"`
	Email         *string         `json:"email" binding:"omitempty,email"`
	Phone         *string         `json:"phone" binding:"omitempty,phone"`
	Address       *models.Address `json:"address"`
}

// ProjectUpdateRequest is the body of PUT /api/project/:id. Absent fields are kept.
type ProjectUpdateRequest struct {
	Name          *string     `json:"name"`
	Description   *string     `json:"description"`
	ClientID      *uuid.UUID  `json:"clientId"`
	StartDate     *time.Time  `json:"startDate"`
	EndDate       *time.Time  `json:"endDate"`
	Status        *string     `json:"status" binding:"omitempty,oneof=active completed canceled"`
	AssignedUsers []uuid.UUID `json:"assignedUsers"`
}

// ClientListQuery is the query string of GET /api/client
type ClientListQuery struct {
	IncludeArchived bool   `form:"includeArchived"`
	Search          string `form:"search"`
}

// ProjectListQuery is the query string of GET /api/project
type ProjectListQuery struct {
	IncludeArchived bool   `form:"includeArchived"`
	ClientID        string `form:"clientId"`
	Status          string `form:"status"`
	Search          string `form:"search"`
}

// HandleCreateClient creates a client
func (h *ClientHandler) HandleCreateClient(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	client, err := h.clients.Create(c.Request.Context(), user, services.ClientInput{
		Name:          req.Name,
		CIF:           req.CIF,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// HandleListClients lists the caller's clients
func (h *ClientHandler) HandleListClients(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var q ClientListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBindError(c, err)
		return
	}

	clients, err := h.clients.List(c.Request.Context(), user, services.ClientListInput{
		IncludeArchived: q.IncludeArchived,
		Search:          q.Search,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// HandleGetClient returns one client
func (h *ClientHandler) HandleGetClient(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	client, err := h.clients.Get(c.Request.Context(), user, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// HandleCreateProject creates a project
func (h *ClientHandler) HandleCreateProject(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	project, err := h.projects.Create(c.Request.Context(), user, services.ProjectInput{
		Name:          req.Name,
		Description:   req.Description,
		ClientID:      req.ClientID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		AssignedUsers: req.AssignedUsers,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// HandleListProjects lists the projects the caller can use
func (h *ClientHandler) HandleListProjects(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var q ProjectListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondBindError(c, err)
		return
	}
	clientID, err := optionalUUID(q.ClientID, "clientId")
	if err != nil {
		RespondBindError(c, err)
		return
	}

	projects, err := h.projects.List(c.Request.Context(), user, services.ProjectListInput{
		ClientID:        clientID,
		Status:          models.ProjectStatus(q.Status),
		IncludeArchived: q.IncludeArchived,
		Search:          q.Search,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// HandleGetProject returns one project
func (h *ClientHandler) HandleGetProject(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	project, err := h.projects.Get(c.Request.Context(), user, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// HandleUpdateClient edits a client
func (h *ClientHandler) HandleUpdateClient(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ClientUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	client, err := h.clients.Update(c.Request.Context(), user, id, services.ClientUpdate{
		Name:          req.Name,
		CIF:           req.CIF,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) archiveClient(archived bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		client, err := h.clients.SetArchived(c.Request.Context(), user, id, archived)
		if err != nil {
			RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

// HandleDeleteClient soft-deletes a client
func (h *ClientHandler) HandleDeleteClient(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.clients.Delete(c.Request.Context(), user, id); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "client deleted"})
}

// HandleUpdateProject edits a project
func (h *ClientHandler) HandleUpdateProject(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ProjectUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	in := services.ProjectUpdate{
		Name:          req.Name,
		Description:   req.Description,
		ClientID:      req.ClientID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		AssignedUsers: req.AssignedUsers,
	}
	if req.Status != nil {
		status := models.ProjectStatus(*req.Status)
		in.Status = &status
	}

	project, err := h.projects.Update(c.Request.Context(), user, id, in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ClientHandler) archiveProject(archived bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		project, err := h.projects.SetArchived(c.Request.Context(), user, id, archived)
		if err != nil {
			RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

// HandleDeleteProject soft-deletes a project
func (h *ClientHandler) HandleDeleteProject(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.projects.Delete(c.Request.Context(), user, id); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}

// RegisterRoutes registers the handler's routes
func (h *ClientHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/client", h.HandleCreateClient)
	router.GET("/client", h.HandleListClients)
	router.GET("/client/:id", h.HandleGetClient)
	router.PUT("/client/:id", h.HandleUpdateClient)
	router.PATCH("/client/:id/archive", h.archiveClient(true))
	router.PATCH("/client/:id/unarchive", h.archiveClient(false))
	router.DELETE("/client/:id", h.HandleDeleteClient)

	router.POST("/project", h.HandleCreateProject)
	router.GET("/project", h.HandleListProjects)
	router.GET("/project/:id", h.HandleGetProject)
	router.PUT("/project/:id", h.HandleUpdateProject)
	router.PATCH("/project/:id/archive", h.archiveProject(true))
	router.PATCH("/project/:id/unarchive", h.archiveProject(false))
	router.DELETE("/project/:id", h.HandleDeleteProject)
}
