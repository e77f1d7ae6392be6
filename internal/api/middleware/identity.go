package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/classifyhub/subject-queue/internal/api/render"
)

const userIDKey contextKey = "user_id"

// UserID reads the X-User-ID header set by the upstream auth layer and
// stores the parsed id on the request context. A missing header means an
// anonymous caller; a malformed one is rejected with 400.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			render.Error(w, http.StatusBadRequest, "X-User-ID must be a positive integer")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID returns the caller's user id, or nil for anonymous requests.
func GetUserID(ctx context.Context) *int64 {
	id, ok := ctx.Value(userIDKey).(int64)
	if !ok {
		return nil
	}
	return &id
}
