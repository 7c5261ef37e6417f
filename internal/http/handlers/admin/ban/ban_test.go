package ban

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	planservice "github.com/chronosdev/chronos-backend/internal/services/plan"
	"github.com/chronosdev/chronos-backend/internal/storage"
)

// Мок сервиса бана
type PlanServiceMock struct {
	mock.Mock
}

func (m *PlanServiceMock) Ban(ctx context.Context, userUID string, permanent bool, days int, reason *string) error {
	args := m.Called(ctx, userUID, permanent, days, reason)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const validUID = "5f6a1c1e-9f1b-4e9b-8a58-000000000001"

func TestBanHandler_ServeHTTP(t *testing.T) {
	reason := "spam"

	tests := []struct {
		name           string
		userUID        string
		requestBody    interface{}
		setupMocks     func(s *PlanServiceMock)
		wantStatusCode int
		wantError      string
	}{
		{
			name:        "temporary ban",
			userUID:     validUID,
			requestBody: Request{Days: 14, Reason: &reason},
			setupMocks: func(s *PlanServiceMock) {
				s.On("Ban", mock.Anything, validUID, false, 14, &reason).Return(nil).Once()
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:        "permanent ban",
			userUID:     validUID,
			requestBody: Request{Permanent: true},
			setupMocks: func(s *PlanServiceMock) {
				s.On("Ban", mock.Anything, validUID, true, 0, (*string)(nil)).Return(nil).Once()
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "malformed uid",
			userUID:        "not-a-uuid",
			requestBody:    Request{Permanent: true},
			setupMocks:     func(s *PlanServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid user id",
		},
		{
			name:           "days over the cap",
			userUID:        validUID,
			requestBody:    Request{Days: 4000},
			setupMocks:     func(s *PlanServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:        "days required unless permanent",
			userUID:     validUID,
			requestBody: Request{},
			setupMocks: func(s *PlanServiceMock) {
				s.On("Ban", mock.Anything, validUID, false, 0, (*string)(nil)).
					Return(planservice.ErrInvalidInput).Once()
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "days is required unless permanent",
		},
		{
			name:        "target not found",
			userUID:     validUID,
			requestBody: Request{Permanent: true},
			setupMocks: func(s *PlanServiceMock) {
				s.On("Ban", mock.Anything, validUID, true, 0, (*string)(nil)).
					Return(storage.ErrUserNotFound).Once()
			},
			wantStatusCode: http.StatusNotFound,
			wantError:      "user not found",
		},
		{
			name:        "service failure",
			userUID:     validUID,
			requestBody: Request{Permanent: true},
			setupMocks: func(s *PlanServiceMock) {
				s.On("Ban", mock.Anything, validUID, true, 0, (*string)(nil)).
					Return(errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "failed to ban user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(PlanServiceMock)
			tt.setupMocks(svc)

			handler := New(newNoopLogger(), svc)

			bodyBytes, err := json.Marshal(tt.requestBody)
			if err != nil {
				t.Fatal(err)
			}

			req := httptest.NewRequest(http.MethodPost, "/admin/users/"+tt.userUID+"/ban", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))

			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.userUID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			err = json.NewDecoder(rec.Body).Decode(&got)
			assert.NoError(t, err)

			if tt.wantError != "" {
				errStr, ok := got["error"].(string)
				assert.True(t, ok)
				assert.Equal(t, tt.wantError, errStr)
			}

			svc.AssertExpectations(t)
		})
	}
}
