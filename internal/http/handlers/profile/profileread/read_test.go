package profileread

import (
	"context"
	"fmt"
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

func (m *MockService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if p, ok := args.Get(0).(*models.Profile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	name := "Ann"

	t.Run("профиль найден", func(t *testing.T) {
		mockService := new(MockService)
		mockService.On("Get", mock.Anything, "u1").Return(&models.Profile{
			ID: "u1", DisplayName: &name, Languages: []string{"en"}, Skills: []string{}, Reputation: 4,
			Role: models.RoleBoth, CreatedAt: at, UpdatedAt: at,
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
		req = req.WithContext(middlewarectx.WithUserUID(req.Context(), "u1"))
		w := httptest.NewRecorder()
		New(logger, mockService).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"OK","data":{"profile":{"id":"u1","display_name":"Ann","languages":["en"],"skills":[],
			"reputation":4,"role":"both","created_at":"2026-05-01T09:00:00Z","updated_at":"2026-05-01T09:00:00Z"}}}`, w.Body.String())
	})

	t.Run("профиль не создан", func(t *testing.T) {
		mockService := new(MockService)
		mockService.On("Get", mock.Anything, "u2").Return(nil, fmt.Errorf("profile.Get: %w", apperr.ErrNotFound))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
		req = req.WithContext(middlewarectx.WithUserUID(req.Context(), "u2"))
		w := httptest.NewRecorder()
		New(logger, mockService).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"status":"Error","error":"not found"}`, w.Body.String())
	})

	t.Run("отсутствует авторизация", func(t *testing.T) {
		mockService := new(MockService)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
		w := httptest.NewRecorder()
		New(logger, mockService).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}
