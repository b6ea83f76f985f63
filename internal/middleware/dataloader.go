package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rpattn/streamgate/internal/rowloader"
)

type ctxKey string

const rowLoaderKey ctxKey = "rowLoader"

// RowLoaderMiddleware attaches a fresh batched row loader to each request.
func RowLoaderMiddleware(fetcher rowloader.RowFetcher, resolve rowloader.TableResolver, wait time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := rowloader.NewRowLoader(fetcher, resolve, wait)
			ctx := context.WithValue(r.Context(), rowLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RowLoaderFromContext retrieves the loader attached by RowLoaderMiddleware.
func RowLoaderFromContext(ctx context.Context) *rowloader.RowLoader {
	if l, ok := ctx.Value(rowLoaderKey).(*rowloader.RowLoader); ok {
		return l
	}
	return nil
}
