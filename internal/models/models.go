package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DeliveryNoteStatus is the lifecycle state of a delivery note
type DeliveryNoteStatus string

const (
	StatusDraft    DeliveryNoteStatus = "draft"
	StatusSent     DeliveryNoteStatus = "sent"
	StatusSigned   DeliveryNoteStatus = "signed"
	StatusCanceled DeliveryNoteStatus = "canceled"
)

// Valid reports whether s is a known status
func (s DeliveryNoteStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusSigned, StatusCanceled:
		return true
	}
	return false
}

// Unit is the measure a line item quantity is expressed in
type Unit string

const (
	UnitHour  Unit = "hour"
	UnitUnit  Unit = "unit"
	UnitKg    Unit = "kg"
	UnitMeter Unit = "meter"
	UnitLiter Unit = "liter"
)

// Units lists every accepted unit in display order
var Units = []Unit{UnitHour, UnitUnit, UnitKg, UnitMeter, UnitLiter}

// Valid reports whether u belongs to the fixed unit enumeration
func (u Unit) Valid() bool {
	for _, known := range Units {
		if u == known {
			return true
		}
	}
	return false
}

// OwnerKind discriminates who holds administrative rights over a client or project
type OwnerKind string

const (
	OwnerUser    OwnerKind = "user"
	OwnerCompany OwnerKind = "company"
)

// Owner is either a user or a company.
type Owner struct {
	Kind OwnerKind `gorm:"column:owner_kind;size:16;not null;index" json:"kind"`
	ID   uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index" json:"id"`
}

// UserOwner builds an owner pointing at a user
func UserOwner(id uuid.UUID) Owner {
	return Owner{Kind: OwnerUser, ID: id}
}

// CompanyOwner builds an owner pointing at a company
func CompanyOwner(id uuid.UUID) Owner {
	return Owner{Kind: OwnerCompany, ID: id}
}

// IsUser reports whether the owner is the given user
func (o Owner) IsUser(id uuid.UUID) bool {
	return o.Kind == OwnerUser && o.ID == id
}

// IsCompany reports whether the owner is the given company
func (o Owner) IsCompany(id *uuid.UUID) bool {
	return id != nil && o.Kind == OwnerCompany && o.ID == *id
}

// User is an account able to authenticate against the API
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	Name         string     `gorm:"not null" json:"name"`
	Email        string     `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         string     `gorm:"not null;default:user" json:"role"`
	CompanyID    *uuid.UUID `gorm:"type:uuid;index" json:"companyId,omitempty"`
	IsDeleted    bool       `gorm:"not null;default:false" json:"-"`
}

// Address is a postal address
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// Company groups users that share clients, projects and delivery notes
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	Name      string    `gorm:"not null" json:"name"`
	CIF       string    `gorm:"column:cif;not null;uniqueIndex" json:"cif"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   Address   `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	AdminID   uuid.UUID `gorm:"type:uuid;not null" json:"adminId"`
}

// Client is a customer owned by a user or a company
type Client struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	Name          string    `gorm:"not null" json:"name"`
	CIF           string    `gorm:"column:cif;not null" json:"cif"`
	ContactPerson string    `json:"contactPerson,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       Address   `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	Owner         Owner     `gorm:"embedded" json:"owner"`
	IsArchived    bool      `gorm:"not null;default:false" json:"isArchived"`
	IsDeleted     bool      `gorm:"not null;default:false" json:"-"`
}

// ProjectStatus is the state of a project
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCanceled  ProjectStatus = "canceled"
)

// Valid reports whether s is a known project status
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectCanceled:
		return true
	}
	return false
}

// Project groups delivery notes issued to one client
type Project struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
	Name          string        `gorm:"not null" json:"name"`
	Description   string        `json:"description,omitempty"`
	ClientID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"clientId"`
	Client        *Client       `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	StartDate     *time.Time    `json:"startDate,omitempty"`
	EndDate       *time.Time    `json:"endDate,omitempty"`
	Status        ProjectStatus `gorm:"size:16;not null;default:active" json:"status"`
	Owner         Owner         `gorm:"embedded" json:"owner"`
	AssignedUsers []uuid.UUID   `gorm:"type:jsonb;serializer:json" json:"assignedUsers"`
	IsArchived    bool          `gorm:"not null;default:false" json:"isArchived"`
	IsDeleted     bool          `gorm:"not null;default:false" json:"-"`
}

// IsAssigned reports whether the user is in the project's assigned set
func (p *Project) IsAssigned(userID uuid.UUID) bool {
	for _, id := range p.AssignedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// LineItem is one row of a delivery note. Amount is always derived.
type LineItem struct {
	Description string              `json:"description"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	Unit        Unit                `json:"unit"`
	UnitPrice   decimal.NullDecimal `json:"unitPrice"`
	Amount      decimal.Decimal     `json:"amount"`
}

// Signature is the counter-signature attached when a note is signed
type Signature struct {
	Date     time.Time `json:"date"`
	Image    string    `json:"image"`
	SignedBy string    `json:"signedBy"`
}

// DeliveryNote is a numbered record of goods or services delivered under a project
type DeliveryNote struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time          `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime" json:"updatedAt"`
	Number       string             `gorm:"size:32;not null;uniqueIndex" json:"number"`
	Date         time.Time          `gorm:"not null" json:"date"`
	ProjectID    uuid.UUID          `gorm:"type:uuid;not null;index" json:"projectId"`
	ClientID     uuid.UUID          `gorm:"type:uuid;not null;index" json:"clientId"`
	CreatorID    uuid.UUID          `gorm:"type:uuid;not null;index" json:"creatorId"`
	CompanyID    *uuid.UUID         `gorm:"type:uuid;index" json:"companyId,omitempty"`
	Items        []LineItem         `gorm:"type:jsonb;serializer:json;not null" json:"items"`
	Total        decimal.Decimal    `gorm:"type:numeric;not null;default:0" json:"total"`
	Notes        string             `json:"notes,omitempty"`
	Status       DeliveryNoteStatus `gorm:"size:16;not null;default:draft;index" json:"status"`
	Signature    *Signature         `gorm:"type:jsonb;serializer:json" json:"signature,omitempty"`
	PdfURL       *string            `json:"pdfUrl,omitempty"`
	SignedPdfURL *string            `json:"signedPdfUrl,omitempty"`
	IsDeleted    bool               `gorm:"not null;default:false" json:"isDeleted"`
}

// HasPdf reports whether the unsigned artifact has been stored
func (d *DeliveryNote) HasPdf() bool {
	return d.PdfURL != nil && *d.PdfURL != ""
}

// BeforeCreate assigns identity and creation date
func (d *DeliveryNote) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Date.IsZero() {
		d.Date = time.Now()
	}
	if d.Status == "" {
		d.Status = StatusDraft
	}
	return nil
}

// BeforeCreate assigns identity
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns identity
func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns identity
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns identity and default status
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	return nil
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Company{},
		&Client{},
		&Project{},
		&DeliveryNote{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
