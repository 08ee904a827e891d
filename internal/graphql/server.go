package graphql

import (
	"net/http"

	"github.com/rpattn/crmql/graph"
	"github.com/rpattn/crmql/internal/middleware"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/playground"
	"go.uber.org/zap"
)

// NewServer wires r into the gqlgen executable schema. A nil logger makes
// resolver logs follow the request scoped logger.
func NewServer(r *Resolver, logger *zap.Logger) *handler.Server {
	srv := handler.NewDefaultServer(graph.NewExecutableSchema(graph.Config{Resolvers: r}))
	srv.SetErrorPresenter(ErrorPresenter)
	srv.Use(&middleware.ResolverLoggerExtension{Logger: logger})
	return srv
}

// PlaygroundHandler serves the GraphQL playground pointed at endpoint.
func PlaygroundHandler(endpoint string) http.Handler {
	return playground.Handler("CRM GraphQL playground", endpoint)
}
