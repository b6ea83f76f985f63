package graphql

import (
	"net/http"

	"github.com/rpattn/streamgate/internal/middleware"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
)

// NewHandler builds the /query endpoint. Sessions and the row loader are read
// from the request context, so callers wrap it in the gate and loader middleware.
func NewHandler(r *Resolver, logger *zap.Logger) (http.Handler, error) {
	es, err := NewExecutableSchema(r)
	if err != nil {
		return nil, err
	}

	srv := handler.New(es)
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.SetQueryCache(lru.New[*ast.QueryDocument](1000))
	srv.Use(extension.AutomaticPersistedQuery{Cache: lru.New[string](100)})

	// Add the resolver logging extension
	srv.Use(middleware.NewResolverLoggerExtension(logger))

	return srv, nil
}
