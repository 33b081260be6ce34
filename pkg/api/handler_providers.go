package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// providerStatus is one row of the operational provider view.
type providerStatus struct {
	Name    string `json:"name"`
	Health  string `json:"health"`
	Breaker string `json:"breaker"`
	Models  int    `json:"models"`
}

// listProvidersHandler handles GET /api/v1/providers: the loaded model
// catalog plus per-provider health and circuit breaker state.
func (s *Server) listProvidersHandler(c *gin.Context) {
	models := s.registry.All()
	perProvider := make(map[string]int)
	for _, m := range models {
		perProvider[m.Provider]++
	}

	providers := make([]providerStatus, 0, len(perProvider))
	for _, name := range s.registry.Providers() {
		providers = append(providers, providerStatus{
			Name:    name,
			Health:  string(s.registry.Health(name)),
			Breaker: string(s.breakers.Get(name).State()),
			Models:  perProvider[name],
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"providers": providers,
		"models":    models,
	})
}
