// Package middlewarectx содержит HTTP middleware авторизованных маршрутов.
//
// JWTMiddleware проверяет токен внешнего провайдера идентификации в заголовке
// Authorization и кладёт идентификатор пользователя в контекст запроса.
// RateLimitMiddleware ограничивает частоту запросов каждого пользователя.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mentor-exchange/internal/http/response"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/jwt"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// UserUID — ключ идентификатора пользователя в контексте.
const UserUID Key = "user_uid"

// TokenParser проверяет токен и возвращает его claims.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// WithUserUID возвращает контекст с идентификатором пользователя.
func WithUserUID(ctx context.Context, userUID string) context.Context {
	return context.WithValue(ctx, UserUID, userUID)
}

// UserUIDFrom достаёт идентификатор пользователя из контекста.
func UserUIDFrom(ctx context.Context) (string, bool) {
	userUID, ok := ctx.Value(UserUID).(string)
	return userUID, ok && userUID != ""
}

// JWTMiddleware возвращает HTTP middleware, который проверяет токен в заголовке Authorization.
// При невалидном токене отвечает 401 Unauthorized.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := parser.ParseToken(tokenStr)
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserUID(r.Context(), claims.UserID())))
		})
	}
}
