package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type requestIdKey string

const (
	RequestIdKey    requestIdKey = "requestId"
	RequestIdHeader              = "X-Request-ID"
)

// WithRequestId keeps an upstream request id when it looks sane and mints one
// otherwise. The id is echoed on the response.
func WithRequestId(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqId := strings.TrimSpace(r.Header.Get(RequestIdHeader))
		if reqId == "" || len(reqId) > 64 {
			reqId = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIdKey, reqId)
		r = r.WithContext(ctx)
		r.Header.Set(RequestIdHeader, reqId)
		w.Header().Set(RequestIdHeader, reqId)

		next.ServeHTTP(w, r)
	})
}
