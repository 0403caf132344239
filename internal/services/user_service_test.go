package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/albaranes/internal/auth"
	"example.com/albaranes/internal/cache"
	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/repositories"
)

func newUserService() (*UserService, *MockUserRepository, *auth.TokenIssuer) {
	users := new(MockUserRepository)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	return NewUserService(users, tokens), users, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, users, tokens := newUserService()
	ctx := context.Background()

	var stored *models.User
	users.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*models.User)
			stored.ID = uuid.New()
		}).
		Return(nil)

	session, err := svc.Register(ctx, RegisterInput{Name: " Ana ", Email: "Ana@Example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", session.User.Name)
	assert.Equal(t, "ana@example.com", session.User.Email)
	assert.NotEqual(t, "s3cret-pass", stored.PasswordHash)

	id, err := tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, id)

	users.On("GetByEmail", mock.Anything, "ana@example.com").Return(stored, nil)

	_, err = svc.Login(ctx, "ana@example.com", "wrong-password")
	assert.Equal(t, KindUnauthorized, KindOf(err))

	session, err = svc.Login(ctx, "ana@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
}

func TestRegisterValidation(t *testing.T) {
	svc, users, _ := newUserService()

	tests := []RegisterInput{
		{Name: "", Email: "a@b.com", Password: "longenough"},
		{Name: "Ana", Email: "not-an-email", Password: "longenough"},
		{Name: "Ana", Email: "a@b.com", Password: "short"},
	}
	for _, in := range tests {
		_, err := svc.Register(context.Background(), in)
		assert.Equal(t, KindValidation, KindOf(err), in)
	}
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, users, _ := newUserService()
	users.On("Create", mock.Anything, mock.Anything).Return(repositories.ErrDuplicateKey)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "a@b.com", Password: "longenough"})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestAuthenticate(t *testing.T) {
	svc, users, tokens := newUserService()
	user := &models.User{ID: uuid.New(), Email: "a@b.com"}
	token, err := tokens.Issue(user)
	require.NoError(t, err)

	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	got, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(context.Background(), "garbage")
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestCreateCompanyAttachesCaller(t *testing.T) {
	svc, users, _ := newUserService()
	user := &models.User{ID: uuid.New()}

	users.On("CreateCompany", mock.Anything, mock.AnythingOfType("*models.Company"), user.ID).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Company).ID = uuid.New()
		}).
		Return(nil)

	company, err := svc.CreateCompany(context.Background(), user, CompanyInput{Name: "Obras SL", CIF: "b12345678", Phone: "612 345 678"})
	require.NoError(t, err)
	assert.Equal(t, "B12345678", company.CIF)
	assert.Equal(t, "+34612345678", company.Phone)
	require.NotNil(t, user.CompanyID)
	assert.Equal(t, company.ID, *user.CompanyID)

	_, err = svc.CreateCompany(context.Background(), user, CompanyInput{Name: "Otra", CIF: "X"})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestNormalizePhone(t *testing.T) {
	phone, err := normalizePhone("")
	require.NoError(t, err)
	assert.Empty(t, phone)

	phone, err = normalizePhone("+34 612 34 56 78")
	require.NoError(t, err)
	assert.Equal(t, "+34612345678", phone)

	_, err = normalizePhone("12")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestClientAndProjectOwnership(t *testing.T) {
	clients := new(MockClientRepository)
	projects := new(MockProjectRepository)
	clientSvc := NewClientService(clients, cache.Disabled())
	projectSvc := NewProjectService(projects, clients, cache.Disabled())

	company := uuid.New()
	user := &models.User{ID: uuid.New(), CompanyID: &company}

	clients.On("Create", mock.Anything, mock.AnythingOfType("*models.Client")).
		Run(func(args mock.Arguments) { args.Get(1).(*models.Client).ID = uuid.New() }).
		Return(nil)

	client, err := clientSvc.Create(context.Background(), user, ClientInput{Name: "Acme", CIF: "a1"})
	require.NoError(t, err)
	assert.Equal(t, models.CompanyOwner(company), client.Owner)

	clients.On("GetByID", mock.Anything, client.ID).Return(client, nil)
	projects.On("Create", mock.Anything, mock.AnythingOfType("*models.Project")).Return(nil)

	member := uuid.New()
	project, err := projectSvc.Create(context.Background(), user, ProjectInput{
		Name:          "Reforma",
		ClientID:      client.ID,
		AssignedUsers: []uuid.UUID{member, member, uuid.Nil},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CompanyOwner(company), project.Owner)
	assert.Equal(t, []uuid.UUID{member}, project.AssignedUsers)
	assert.Equal(t, models.ProjectActive, project.Status)

	stranger := &models.User{ID: uuid.New()}
	_, err = clientSvc.Get(context.Background(), stranger, client.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = projectSvc.Create(context.Background(), stranger, ProjectInput{Name: "X", ClientID: client.ID})
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestUpdateProfile(t *testing.T) {
	svc, users, _ := newUserService()
	user := &models.User{ID: uuid.New(), Name: "Ana", Email: "ana@example.com"}

	users.On("UpdateProfile", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "luis@example.com"
	})).Return(repositories.ErrDuplicateKey).Once()
	users.On("UpdateProfile", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Name == "Ana María" && u.Email == "ana@example.com"
	})).Return(nil).Once()

	_, err := svc.UpdateProfile(context.Background(), user, ProfileInput{Email: strPtr("Luis@Example.com")})
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "ana@example.com", user.Email)

	_, err = svc.UpdateProfile(context.Background(), user, ProfileInput{Name: strPtr("  ")})
	assert.Equal(t, KindValidation, KindOf(err))

	updated, err := svc.UpdateProfile(context.Background(), user, ProfileInput{Name: strPtr(" Ana María ")})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", updated.Name)
	users.AssertExpectations(t)
}

func TestSwitchCompany(t *testing.T) {
	svc, users, _ := newUserService()
	user := &models.User{ID: uuid.New()}
	own := &models.Company{ID: uuid.New(), AdminID: user.ID}
	foreign := &models.Company{ID: uuid.New(), AdminID: uuid.New()}
	missing := uuid.New()

	users.On("GetCompany", mock.Anything, own.ID).Return(own, nil)
	users.On("GetCompany", mock.Anything, foreign.ID).Return(foreign, nil)
	users.On("GetCompany", mock.Anything, missing).Return(nil, repositories.ErrNotFound)
	users.On("SetCompany", mock.Anything, user.ID, own.ID).Return(nil)

	_, err := svc.SwitchCompany(context.Background(), user, foreign.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = svc.SwitchCompany(context.Background(), user, missing)
	assert.Equal(t, KindNotFound, KindOf(err))

	updated, err := svc.SwitchCompany(context.Background(), user, own.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.CompanyID)
	assert.Equal(t, own.ID, *updated.CompanyID)
	users.AssertNotCalled(t, "SetCompany", mock.Anything, user.ID, foreign.ID)
}
