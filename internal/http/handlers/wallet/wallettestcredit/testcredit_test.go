package wallettestcredit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/mentor-exchange/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Credit(ctx context.Context, userID string, amount int64, src models.CreditSource) (*models.Wallet, error) {
	args := m.Called(ctx, userID, amount, src)
	if w, ok := args.Get(0).(*models.Wallet); ok {
		return w, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestTestCreditHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	updated := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	grant := models.CreditSource{
		Type:     models.TransactionGrant,
		Metadata: map[string]string{"reason": "test_credit"},
	}

	tests := []struct {
		name           string
		enabled        bool
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "начисление",
			enabled: true,
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("Credit", mock.Anything, "u1", int64(5), grant).
					Return(&models.Wallet{UserID: "u1", EarnedCredits: 1, PurchasedCredits: 5, UpdatedAt: updated}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"status":"OK","data":{"total_credits":6,
				"wallet":{"user_id":"u1","earned_credits":1,"purchased_credits":5,"pass_active":false,"updated_at":"2026-05-01T09:00:00Z"}}}`,
		},
		{
			name:           "выключено",
			userUID:        "u1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `{"status":"Error","error":"test credit is disabled"}`,
		},
		{
			name:    "конфликт записи",
			enabled: true,
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("Credit", mock.Anything, "u1", int64(5), grant).
					Return(nil, errors.Join(apperr.ErrUpstreamUnavailable, apperr.ErrConflict))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"Error","error":"system error, retry"}`,
		},
		{
			name:           "отсутствует авторизация",
			enabled:        true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/test-credit", nil)
			req = req.WithContext(middlewarectx.WithUserUID(req.Context(), tt.userUID))
			w := httptest.NewRecorder()

			New(logger, mockService, tt.enabled, 5).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
