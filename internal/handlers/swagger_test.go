package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// TestSwaggerDependenciesImportable verifies that the gin-swagger handler can be created.
func TestSwaggerDependenciesImportable(t *testing.T) {
	handler := ginSwagger.WrapHandler(swaggerFiles.Handler)
	assert.NotNil(t, handler, "ginSwagger.WrapHandler should return a non-nil handler")
}

// TestRouterRegistersRoutes verifies the public and internal routes.
func TestRouterRegistersRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(RouterConfig{InternalAPIKey: "k", RequestsPerSecond: 10, Burst: 10})

	want := map[string]bool{
		"GET /health":                   false,
		"GET /metrics":                  false,
		"GET /swagger/*any":             false,
		"GET /internal/health":          false,
		"POST /internal/allocate":       false,
		"GET /internal/scenarios":       false,
		"GET /internal/scenarios/:name": false,
	}
	for _, route := range router.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, found := range want {
		assert.True(t, found, "route %s should be registered", key)
	}
}
