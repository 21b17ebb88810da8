package profileupsert

import (
	"bytes"
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

func (m *MockService) Upsert(ctx context.Context, userID string, in models.DummyProfile) (*models.Profile, error) {
	args := m.Called(ctx, userID, in)
	if p, ok := args.Get(0).(*models.Profile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestUpsertHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		body           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "сохранение профиля",
			body:    `{"languages":["EN"," de "],"skills":["Go"],"role":"mentor"}`,
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("Upsert", mock.Anything, "u1", models.DummyProfile{
					Languages: []string{"EN", " de "}, Skills: []string{"Go"}, Role: "mentor",
				}).Return(&models.Profile{
					ID: "u1", Languages: []string{"en", "de"}, Skills: []string{"go"},
					Role: models.RoleMentor, CreatedAt: at, UpdatedAt: at,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"status":"OK","data":{"profile":{"id":"u1","languages":["en","de"],"skills":["go"],
				"reputation":0,"role":"mentor","created_at":"2026-05-01T09:00:00Z","updated_at":"2026-05-01T09:00:00Z"}}}`,
		},
		{
			name:           "неизвестная роль",
			body:           `{"role":"admin"}`,
			userUID:        "u1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field Role must be one of: learner mentor both"}`,
		},
		{
			name:           "роль не указана",
			body:           `{"skills":["go"]}`,
			userUID:        "u1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field Role is a required field"}`,
		},
		{
			name:           "некорректный JSON",
			body:           `{`,
			userUID:        "u1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:    "ошибка хранилища",
			body:    `{"role":"learner"}`,
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("Upsert", mock.Anything, "u1", models.DummyProfile{Role: "learner"}).
					Return(nil, errors.Join(apperr.ErrUpstreamUnavailable, errors.New("timeout")))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"Error","error":"system error, retry"}`,
		},
		{
			name:           "отсутствует авторизация",
			body:           `{"role":"learner"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPut, "/api/v1/profile", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(middlewarectx.WithUserUID(req.Context(), tt.userUID))
			w := httptest.NewRecorder()

			New(logger, mockService).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
