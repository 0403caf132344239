package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/ttacon/libphonenumber"

	"example.com/albaranes/internal/cache"
	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/repositories"
)

// DefaultPhoneRegion is assumed for phone numbers written without a country code
const DefaultPhoneRegion = "ES"

// normalizePhone validates a phone number and formats it as E.164. Empty is allowed.
func normalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	p, err := libphonenumber.Parse(phone, DefaultPhoneRegion)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return "", ValidationError("phone %q is not valid", phone)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// ClientService manages clients
type ClientService struct {
	clients ClientRepository
	cache   Cache
}

// NewClientService creates a new client service
func NewClientService(clients ClientRepository, cache Cache) *ClientService {
	return &ClientService{clients: clients, cache: cache}
}

// ClientInput is a new client
type ClientInput struct {
	Name          string
	CIF           string
	ContactPerson string
	Email         string
	Phone         string
	Address       models.Address
}

// Create adds a client owned by the caller's company, or by the caller
func (s *ClientService) Create(ctx context.Context, user *models.User, in ClientInput) (*models.Client, error) {
	name := strings.TrimSpace(in.Name)
	cif := strings.ToUpper(strings.TrimSpace(in.CIF))
	if name == "" || cif == "" {
		return nil, ValidationError("name and cif are required")
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		if err := validate.Var(email, "email"); err != nil {
			return nil, ValidationError("email %q is not valid", email)
		}
	}
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	client := &models.Client{
		Name:          name,
		CIF:           cif,
		ContactPerson: strings.TrimSpace(in.ContactPerson),
		Email:         strings.TrimSpace(in.Email),
		Phone:         phone,
		Address:       in.Address,
		Owner:         defaultOwner(user),
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, fromRepository(err, "client")
	}

	log.Info().
		Str("client_id", client.ID.String()).
		Str("owner_kind", string(client.Owner.Kind)).
		Msg("Client created")
	return client, nil
}

// Get returns a client owned by the caller or the caller's company
func (s *ClientService) Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Client, error) {
	client, err := lookupClient(ctx, s.cache, s.clients, id)
	if err != nil {
		return nil, err
	}
	if !canUseClient(user, client) {
		return nil, ForbiddenError("no access to client %s", id)
	}
	return client, nil
}

// ClientListInput narrows a client listing
type ClientListInput struct {
	IncludeArchived bool
	Search          string
}

// List returns the clients owned by the caller or the caller's company.
// Archived clients are left out unless asked for.
func (s *ClientService) List(ctx context.Context, user *models.User, in ClientListInput) ([]models.Client, error) {
	clients, err := s.clients.ListByOwner(ctx, repositories.ClientFilter{
		UserID:          user.ID,
		CompanyID:       user.CompanyID,
		IncludeArchived: in.IncludeArchived,
		Search:          in.Search,
	})
	if err != nil {
		return nil, InternalError(err, "failed to list clients")
	}
	return clients, nil
}

// ClientUpdate carries the fields to change; nil leaves a field as it is
type ClientUpdate struct {
	Name          *string
	CIF           *string
	ContactPerson *string
	Email         *string
	Phone         *string
	Address       *models.Address
}

// Update edits a client the caller owns. Archived clients cannot be edited.
func (s *ClientService) Update(ctx context.Context, user *models.User, id uuid.UUID, in ClientUpdate) (*models.Client, error) {
	client, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if client.IsArchived {
		return nil, ConflictError(nil, "client %s is archived", client.ID)
	}

	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" {
			client.Name = name
		}
	}
	if in.CIF != nil {
		if cif := strings.ToUpper(strings.TrimSpace(*in.CIF)); cif != "" {
			client.CIF = cif
		}
	}
	if in.ContactPerson != nil {
		client.ContactPerson = strings.TrimSpace(*in.ContactPerson)
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email != "" {
			if err := validate.Var(email, "email"); err != nil {
				return nil, ValidationError("email %q is not valid", email)
			}
		}
		client.Email = email
	}
	if in.Phone != nil {
		phone, err := normalizePhone(*in.Phone)
		if err != nil {
			return nil, err
		}
		client.Phone = phone
	}
	if in.Address != nil {
		client.Address = *in.Address
	}

	if err := s.clients.Update(ctx, client); err != nil {
		return nil, fromRepository(err, "client")
	}
	s.forget(ctx, client.ID)

	log.Info().Str("client_id", client.ID.String()).Msg("Client updated")
	return client, nil
}

// SetArchived archives or restores a client the caller owns
func (s *ClientService) SetArchived(ctx context.Context, user *models.User, id uuid.UUID, archived bool) (*models.Client, error) {
	client, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.clients.SetArchived(ctx, client.ID, archived); err != nil {
		return nil, fromRepository(err, "client")
	}
	client.IsArchived = archived
	s.forget(ctx, client.ID)

	log.Info().
		Str("client_id", client.ID.String()).
		Bool("archived", archived).
		Msg("Client archive state changed")
	return client, nil
}

// Delete soft-deletes a client the caller owns. A client still used by a
// live project is refused.
func (s *ClientService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	client, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.clients.SoftDelete(ctx, client.ID); err != nil {
		if errors.Is(err, repositories.ErrConditionFailed) {
			return ConflictError(err, "client %s still has projects", client.ID)
		}
		return fromRepository(err, "client")
	}
	s.forget(ctx, client.ID)

	log.Info().Str("client_id", client.ID.String()).Msg("Client deleted")
	return nil
}

func (s *ClientService) forget(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.ClientCacheKey(id)); err != nil {
		log.Warn().Err(err).Str("client_id", id.String()).Msg("Client cache invalidation failed")
	}
}
