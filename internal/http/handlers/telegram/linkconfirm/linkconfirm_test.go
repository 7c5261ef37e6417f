package linkconfirm

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

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	linkservice "github.com/chronosdev/chronos-backend/internal/services/link"
)

// Мок сервиса погашения кодов
type LinkServiceMock struct {
	mock.Mock
}

func (m *LinkServiceMock) Redeem(ctx context.Context, code string, telegramID int64, telegramUsername *string, secret string) (string, error) {
	args := m.Called(ctx, code, telegramID, telegramUsername, secret)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLinkConfirmHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		secretHeader   string
		setupMocks     func(s *LinkServiceMock)
		wantStatusCode int
		wantError      string
	}{
		{
			name: "successful redemption",
			requestBody: Request{
				Code:       "abc12345",
				TelegramID: 424242,
			},
			secretHeader: "topsecret",
			setupMocks: func(s *LinkServiceMock) {
				s.On("Redeem", mock.Anything, "abc12345", int64(424242), (*string)(nil), "topsecret").
					Return("user-1", nil).Once()
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			setupMocks:     func(s *LinkServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name: "validation error - missing code",
			requestBody: Request{
				TelegramID: 424242,
			},
			setupMocks:     func(s *LinkServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name: "wrong secret",
			requestBody: Request{
				Code:       "abc12345",
				TelegramID: 424242,
			},
			secretHeader: "wrong",
			setupMocks: func(s *LinkServiceMock) {
				s.On("Redeem", mock.Anything, "abc12345", int64(424242), (*string)(nil), "wrong").
					Return("", linkservice.ErrUnauthorized).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "invalid secret",
		},
		{
			name: "unknown or expired code",
			requestBody: Request{
				Code:       "gone1234",
				TelegramID: 424242,
			},
			secretHeader: "topsecret",
			setupMocks: func(s *LinkServiceMock) {
				s.On("Redeem", mock.Anything, "gone1234", int64(424242), (*string)(nil), "topsecret").
					Return("", linkservice.ErrCodeNotFound).Once()
			},
			wantStatusCode: http.StatusNotFound,
			wantError:      "code not found or expired",
		},
		{
			name: "service failure",
			requestBody: Request{
				Code:       "abc12345",
				TelegramID: 424242,
			},
			secretHeader: "topsecret",
			setupMocks: func(s *LinkServiceMock) {
				s.On("Redeem", mock.Anything, "abc12345", int64(424242), (*string)(nil), "topsecret").
					Return("", errors.New("redis down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "failed to redeem link code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(LinkServiceMock)
			tt.setupMocks(svc)

			handler := New(newNoopLogger(), svc)

			var bodyBytes []byte
			var err error
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				bodyBytes, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/telegram/link", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			if tt.secretHeader != "" {
				req.Header.Set("X-Tg-Secret", tt.secretHeader)
			}

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
			if tt.wantStatusCode == http.StatusOK {
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, "user-1", data["user_uid"])
				assert.Equal(t, true, data["linked"])
			}

			svc.AssertExpectations(t)
		})
	}
}
