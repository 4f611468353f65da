package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/m04kA/AppointmentService/internal/api/handlers"
	"github.com/m04kA/AppointmentService/internal/domain"
)

type contextKey string

const actorKey contextKey = "actor"

// AdminIDHeader заголовок с ID администратора (режим без JWT)
const AdminIDHeader = "X-Admin-ID"

const (
	msgMissingAdmin = "требуется авторизация администратора"
	msgInvalidToken = "некорректный токен"
)

// AdminAuth определяет администратора и кладёт актора "admin:<id>" в контекст.
// С непустым secret ожидается Bearer JWT (HS256), ID берётся из subject.
// С пустым secret ID берётся из заголовка X-Admin-ID.
func AdminAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var adminID string
			if secret == "" {
				adminID = strings.TrimSpace(r.Header.Get(AdminIDHeader))
			} else {
				id, ok := subjectFromBearer(r.Header.Get("Authorization"), secret)
				if !ok {
					handlers.RespondUnauthorized(w, msgInvalidToken)
					return
				}
				adminID = id
			}

			if adminID == "" {
				handlers.RespondUnauthorized(w, msgMissingAdmin)
				return
			}

			ctx := WithActor(r.Context(), domain.AdminActorPrefix+adminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func subjectFromBearer(header, secret string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	return strings.TrimSpace(claims.Subject), true
}

// WithActor кладёт актора в контекст
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor возвращает актора, установленного AdminAuth
func GetActor(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey).(string)
	return actor, ok && actor != ""
}
