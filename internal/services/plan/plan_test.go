package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/chronosdev/chronos-backend/internal/lib/rabbitmq"
	"github.com/chronosdev/chronos-backend/internal/models"
	services "github.com/chronosdev/chronos-backend/internal/services/plan"
	"github.com/chronosdev/chronos-backend/internal/storage"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) GetUserByUID(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) UpdateUserPlan(ctx context.Context, userUID, plan string, expiresAt *time.Time, status string) error {
	args := m.Called(ctx, userUID, plan, expiresAt, status)
	return args.Error(0)
}

func (m *UserRepoMock) BanUser(ctx context.Context, userUID string, banUntil *time.Time, reason *string, bannedAt time.Time) error {
	args := m.Called(ctx, userUID, banUntil, reason, bannedAt)
	return args.Error(0)
}

func (m *UserRepoMock) UnbanUser(ctx context.Context, userUID, status string) error {
	args := m.Called(ctx, userUID, status)
	return args.Error(0)
}

// Мок для EventPublisher
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timePtr(t time.Time) *time.Time { return &t }
func int64Ptr(v int64) *int64        { return &v }
func strPtr(s string) *string        { return &s }

func TestService_ActivatePaid(t *testing.T) {
	future := time.Now().UTC().Add(48 * time.Hour)
	past := time.Now().UTC().Add(-48 * time.Hour)

	tests := []struct {
		name       string
		ident      services.Identifier
		plan       string
		days       int
		setupMocks func(r *UserRepoMock, p *PublisherMock)
		wantErr    error
	}{
		{
			name:  "activate plus by email",
			ident: services.Identifier{Email: "user@example.com"},
			plan:  models.PlanPlus,
			days:  30,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByEmail", mock.Anything, "user@example.com").
					Return(&models.User{UID: "u1", Plan: models.PlanFree, Status: models.StatusInactive}, nil).Once()
				r.On("UpdateUserPlan", mock.Anything, "u1", models.PlanPlus,
					mock.MatchedBy(func(exp *time.Time) bool {
						want := time.Now().UTC().AddDate(0, 0, 30)
						return exp != nil && want.Sub(*exp) < time.Minute
					}), models.StatusActive).Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingPlanActivated, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:  "mixed-case email resolves to stored form",
			ident: services.Identifier{Email: "  User@EXAMPLE.com "},
			plan:  models.PlanPlus,
			days:  30,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByEmail", mock.Anything, "user@example.com").
					Return(&models.User{UID: "u1", Plan: models.PlanFree, Status: models.StatusInactive}, nil).Once()
				r.On("UpdateUserPlan", mock.Anything, "u1", models.PlanPlus, mock.Anything, models.StatusActive).
					Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingPlanActivated, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:  "activate premium by telegram id",
			ident: services.Identifier{TelegramID: int64Ptr(123456)},
			plan:  models.PlanPremium,
			days:  90,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByTelegramID", mock.Anything, int64(123456)).
					Return(&models.User{UID: "u2", Plan: models.PlanPlus, Status: models.StatusActive}, nil).Once()
				r.On("UpdateUserPlan", mock.Anything, "u2", models.PlanPremium, mock.Anything, models.StatusActive).
					Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingPlanActivated, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:       "free plan rejected",
			ident:      services.Identifier{Email: "user@example.com"},
			plan:       models.PlanFree,
			days:       30,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {},
			wantErr:    services.ErrInvalidInput,
		},
		{
			name:       "unknown plan rejected",
			ident:      services.Identifier{Email: "user@example.com"},
			plan:       "gold",
			days:       30,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {},
			wantErr:    services.ErrInvalidInput,
		},
		{
			name:       "non-positive days rejected",
			ident:      services.Identifier{Email: "user@example.com"},
			plan:       models.PlanPlus,
			days:       0,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {},
			wantErr:    services.ErrInvalidInput,
		},
		{
			name:       "both identifiers rejected",
			ident:      services.Identifier{Email: "user@example.com", TelegramID: int64Ptr(1)},
			plan:       models.PlanPlus,
			days:       30,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {},
			wantErr:    services.ErrInvalidInput,
		},
		{
			name:       "no identifier rejected",
			ident:      services.Identifier{},
			plan:       models.PlanPlus,
			days:       30,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {},
			wantErr:    services.ErrInvalidInput,
		},
		{
			name:  "permanently banned target rejected",
			ident: services.Identifier{Email: "banned@example.com"},
			plan:  models.PlanPlus,
			days:  30,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByEmail", mock.Anything, "banned@example.com").
					Return(&models.User{UID: "u3", Status: models.StatusBanned}, nil).Once()
			},
			wantErr: services.ErrUserBanned,
		},
		{
			name:  "temporarily banned target rejected",
			ident: services.Identifier{Email: "banned@example.com"},
			plan:  models.PlanPlus,
			days:  30,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByEmail", mock.Anything, "banned@example.com").
					Return(&models.User{UID: "u4", Status: models.StatusBanned, BanUntil: timePtr(future)}, nil).Once()
			},
			wantErr: services.ErrUserBanned,
		},
		{
			name:  "lapsed ban no longer blocks",
			ident: services.Identifier{Email: "released@example.com"},
			plan:  models.PlanPlus,
			days:  30,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByEmail", mock.Anything, "released@example.com").
					Return(&models.User{UID: "u5", Status: models.StatusBanned, BanUntil: timePtr(past)}, nil).Once()
				r.On("UpdateUserPlan", mock.Anything, "u5", models.PlanPlus, mock.Anything, models.StatusActive).
					Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingPlanActivated, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:  "target not found",
			ident: services.Identifier{Email: "missing@example.com"},
			plan:  models.PlanPlus,
			days:  30,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByEmail", mock.Anything, "missing@example.com").
					Return(nil, storage.ErrUserNotFound).Once()
			},
			wantErr: storage.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			pub := new(PublisherMock)
			svc := services.New(repo, pub, discardLogger())

			tt.setupMocks(repo, pub)

			user, err := svc.ActivatePaid(context.Background(), tt.ident, tt.plan, tt.days)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.plan, user.Plan)
				assert.Equal(t, models.StatusActive, user.Status)
				assert.NotNil(t, user.PlanExpiresAt)
			}

			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestService_SetPlan(t *testing.T) {
	future := time.Now().UTC().Add(72 * time.Hour)

	tests := []struct {
		name       string
		plan       string
		expiresAt  *time.Time
		setupMocks func(r *UserRepoMock, p *PublisherMock)
		wantErr    error
	}{
		{
			name:      "set plan with explicit expiry",
			plan:      models.PlanPremium,
			expiresAt: timePtr(future),
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByUID", mock.Anything, "u1").
					Return(&models.User{UID: "u1", Status: models.StatusInactive}, nil).Once()
				r.On("UpdateUserPlan", mock.Anything, "u1", models.PlanPremium, mock.Anything, models.StatusActive).
					Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingPlanActivated, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:      "nil expiry allowed",
			plan:      models.PlanPremium,
			expiresAt: nil,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByUID", mock.Anything, "u1").
					Return(&models.User{UID: "u1", Status: models.StatusActive}, nil).Once()
				r.On("UpdateUserPlan", mock.Anything, "u1", models.PlanPremium, (*time.Time)(nil), models.StatusActive).
					Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingPlanActivated, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:       "unknown plan rejected",
			plan:       "platinum",
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {},
			wantErr:    services.ErrInvalidInput,
		},
		{
			name: "banned target rejected",
			plan: models.PlanPlus,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByUID", mock.Anything, "u1").
					Return(&models.User{UID: "u1", Status: models.StatusBanned}, nil).Once()
			},
			wantErr: services.ErrUserBanned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			pub := new(PublisherMock)
			svc := services.New(repo, pub, discardLogger())

			tt.setupMocks(repo, pub)

			err := svc.SetPlan(context.Background(), "u1", tt.plan, tt.expiresAt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestService_Ban(t *testing.T) {
	tests := []struct {
		name       string
		permanent  bool
		days       int
		reason     *string
		setupMocks func(r *UserRepoMock, p *PublisherMock)
		wantErr    error
	}{
		{
			name:      "temporary ban stores until date",
			permanent: false,
			days:      14,
			reason:    strPtr("spam"),
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByUID", mock.Anything, "u1").
					Return(&models.User{UID: "u1", Status: models.StatusActive}, nil).Once()
				r.On("BanUser", mock.Anything, "u1",
					mock.MatchedBy(func(until *time.Time) bool {
						want := time.Now().UTC().AddDate(0, 0, 14)
						return until != nil && want.Sub(*until) < time.Minute
					}), strPtr("spam"), mock.Anything).Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingUserBanned, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:      "permanent ban stores nil until",
			permanent: true,
			days:      0,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByUID", mock.Anything, "u1").
					Return(&models.User{UID: "u1", Status: models.StatusActive}, nil).Once()
				r.On("BanUser", mock.Anything, "u1", (*time.Time)(nil), (*string)(nil), mock.Anything).
					Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingUserBanned, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:       "days required unless permanent",
			permanent:  false,
			days:       0,
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {},
			wantErr:    services.ErrInvalidInput,
		},
		{
			name:       "reason over limit rejected",
			permanent:  true,
			reason:     strPtr(string(make([]rune, 301))),
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {},
			wantErr:    services.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			pub := new(PublisherMock)
			svc := services.New(repo, pub, discardLogger())

			tt.setupMocks(repo, pub)

			err := svc.Ban(context.Background(), "u1", tt.permanent, tt.days, tt.reason)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestService_Unban(t *testing.T) {
	future := time.Now().UTC().Add(48 * time.Hour)
	past := time.Now().UTC().Add(-48 * time.Hour)

	tests := []struct {
		name       string
		setupMocks func(r *UserRepoMock, p *PublisherMock)
		wantStatus string
		wantErr    error
	}{
		{
			name: "live plan restores active",
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByUID", mock.Anything, "u1").
					Return(&models.User{UID: "u1", Status: models.StatusBanned, Plan: models.PlanPlus, PlanExpiresAt: timePtr(future)}, nil).Once()
				r.On("UnbanUser", mock.Anything, "u1", models.StatusActive).Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingUserUnbanned, mock.Anything).Return(nil).Once()
			},
			wantStatus: models.StatusActive,
		},
		{
			name: "expired plan restores inactive",
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByUID", mock.Anything, "u1").
					Return(&models.User{UID: "u1", Status: models.StatusBanned, Plan: models.PlanPlus, PlanExpiresAt: timePtr(past)}, nil).Once()
				r.On("UnbanUser", mock.Anything, "u1", models.StatusInactive).Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingUserUnbanned, mock.Anything).Return(nil).Once()
			},
			wantStatus: models.StatusInactive,
		},
		{
			name: "missing expiry restores inactive",
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByUID", mock.Anything, "u1").
					Return(&models.User{UID: "u1", Status: models.StatusBanned, Plan: models.PlanPremium}, nil).Once()
				r.On("UnbanUser", mock.Anything, "u1", models.StatusInactive).Return(nil).Once()
				p.On("Publish", rabbitmq.RoutingUserUnbanned, mock.Anything).Return(nil).Once()
			},
			wantStatus: models.StatusInactive,
		},
		{
			name: "target not found",
			setupMocks: func(r *UserRepoMock, p *PublisherMock) {
				r.On("GetUserByUID", mock.Anything, "u1").
					Return(nil, storage.ErrUserNotFound).Once()
			},
			wantErr: storage.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			pub := new(PublisherMock)
			svc := services.New(repo, pub, discardLogger())

			tt.setupMocks(repo, pub)

			status, err := svc.Unban(context.Background(), "u1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantStatus, status)
			}

			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestService_Lookup(t *testing.T) {
	repo := new(UserRepoMock)
	svc := services.New(repo, nil, discardLogger())

	repo.On("GetUserByTelegramID", mock.Anything, int64(777)).
		Return(&models.User{UID: "u9", TelegramID: int64Ptr(777)}, nil).Once()

	user, err := svc.Lookup(context.Background(), services.Identifier{TelegramID: int64Ptr(777)})
	assert.NoError(t, err)
	assert.Equal(t, "u9", user.UID)
	repo.AssertExpectations(t)
}

func TestService_Lookup_NormalizesEmail(t *testing.T) {
	repo := new(UserRepoMock)
	svc := services.New(repo, nil, discardLogger())

	repo.On("GetUserByEmail", mock.Anything, "admin@example.com").
		Return(&models.User{UID: "u10", Email: "admin@example.com"}, nil).Once()

	user, err := svc.Lookup(context.Background(), services.Identifier{Email: " Admin@Example.COM "})
	assert.NoError(t, err)
	assert.Equal(t, "u10", user.UID)
	repo.AssertExpectations(t)
}

func TestService_NilPublisher(t *testing.T) {
	repo := new(UserRepoMock)
	svc := services.New(repo, nil, discardLogger())

	repo.On("GetUserByUID", mock.Anything, "u1").
		Return(&models.User{UID: "u1", Status: models.StatusActive}, nil).Once()
	r := strPtr("abuse")
	repo.On("BanUser", mock.Anything, "u1", (*time.Time)(nil), r, mock.Anything).Return(nil).Once()

	err := svc.Ban(context.Background(), "u1", true, 0, r)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
