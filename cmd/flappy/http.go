package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/baldhumanity/flappyfeller/api"
	"github.com/baldhumanity/flappyfeller/api/i"
)

// newHTTPRouter builds the API router. FLAPPY_API_TOKEN, when set, guards
// the routes that change a run; GIN_MODE selects the gin mode.
func newHTTPRouter(addr string, controllers []i.Controller, logger *slog.Logger) *api.Router {
	gin.SetMode(getEnvWithDefault("GIN_MODE", gin.ReleaseMode))

	var auth gin.HandlerFunc
	if token := getEnvWithDefault("FLAPPY_API_TOKEN", ""); token != "" {
		auth = api.BearerToken(token)
	}
	return api.NewRouter(api.Config{
		Addr:                    addr,
		BaseURL:                 "/api",
		Controllers:             controllers,
		AuthorizationMiddleware: auth,
		Logger:                  logger,
	})
}
