package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/services"
)

// UserService is what the user routes need from the service layer
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	UpdateProfile(ctx context.Context, user *models.User, in services.ProfileInput) (*models.User, error)
	SwitchCompany(ctx context.Context, user *models.User, companyID uuid.UUID) (*models.User, error)
	CreateCompany(ctx context.Context, user *models.User, in services.CompanyInput) (*models.Company, error)
	Company(ctx context.Context, user *models.User) (*models.Company, error)
}

// UserHandler handles account HTTP requests
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterRequest is the body of POST /api/user/register
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the body of POST /api/user/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CompanyRequest is the body of POST /api/user/company
type CompanyRequest struct {
	Name    string         `json:"name" binding:"required"`
	CIF     string         `json:"cif" binding:"required"`
	Email   string         `json:"email" binding:"omitempty,email"`
	Phone   string         `json:"phone" binding:"omitempty,phone"`
	Address models.Address `json:"address"`
}

// ProfileRequest is the body of PATCH /api/user/profile
type ProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" binding:"omitempty,email"`
}

// SwitchCompanyRequest is the body of PATCH /api/user/company
type SwitchCompanyRequest struct {
	CompanyID uuid.UUID `json:"companyId" binding:"required"`
}

// SessionResponse is returned by register and login
type SessionResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

func sessionResponse(s *services.Session) SessionResponse {
	return SessionResponse{
		ID:    s.User.ID.String(),
		Name:  s.User.Name,
		Email: s.User.Email,
		Token: s.Token,
	}
}

// HandleRegister creates an account
func (h *UserHandler) HandleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	session, err := h.service.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse(session))
}

// HandleLogin exchanges credentials for a token
func (h *UserHandler) HandleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	session, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// HandleCreateCompany creates the caller's company
func (h *UserHandler) HandleCreateCompany(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	company, err := h.service.CreateCompany(c.Request.Context(), user, services.CompanyInput{
		Name:    req.Name,
		CIF:     req.CIF,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, company)
}

// HandleUpdateProfile changes the caller's name or email
func (h *UserHandler) HandleUpdateProfile(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	updated, err := h.service.UpdateProfile(c.Request.Context(), user, services.ProfileInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// HandleSwitchCompany moves the caller to another company they administer
func (h *UserHandler) HandleSwitchCompany(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req SwitchCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBindError(c, err)
		return
	}

	updated, err := h.service.SwitchCompany(c.Request.Context(), user, req.CompanyID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// HandleProfile returns the caller and their company
func (h *UserHandler) HandleProfile(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	company, err := h.service.Company(c.Request.Context(), user)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "company": company})
}

// RegisterPublicRoutes registers routes that need no token
func (h *UserHandler) RegisterPublicRoutes(router gin.IRouter) {
	router.POST("/user/register", h.HandleRegister)
	router.POST("/user/login", h.HandleLogin)
}

// RegisterRoutes registers the authenticated routes
func (h *UserHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/user/profile", h.HandleProfile)
	router.GET("/user/me", h.HandleProfile)
	router.PATCH("/user/profile", h.HandleUpdateProfile)
	router.POST("/user/company", h.HandleCreateCompany)
	router.PATCH("/user/company", h.HandleSwitchCompany)
}
