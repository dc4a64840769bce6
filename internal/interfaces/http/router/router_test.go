package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouter_SetupAppliesAPIMiddleware(t *testing.T) {
	engine := gin.New()
	tag := func(c *gin.Context) {
		c.Header("X-API", "yes")
		c.Next()
	}
	r := NewRouter(engine, WithAPIMiddleware(tag))

	r.Register(NewDomainGroup("jobs", "/jobs").GET("", func(c *gin.Context) {
		c.String(http.StatusOK, "jobs")
	})).Setup()
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(engine, http.MethodGet, "/api/v1/jobs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jobs", w.Body.String())
	assert.Equal(t, "yes", w.Header().Get("X-API"))

	w = do(engine, http.MethodGet, "/health")
	assert.Empty(t, w.Header().Get("X-API"))
}

func TestDomainGroup(t *testing.T) {
	ok := func(body string) gin.HandlerFunc {
		return func(c *gin.Context) { c.String(http.StatusOK, body) }
	}

	g := NewDomainGroup("connections", "/connections")
	assert.Equal(t, "connections", g.Name())
	assert.Equal(t, "/connections", g.Prefix())

	g.Use(func(c *gin.Context) {
		c.Header("X-Group", "connections")
		c.Next()
	}).
		GET("", ok("list")).
		POST("", ok("create")).
		PUT("/:id", ok("update")).
		PATCH("/:id", ok("patch")).
		DELETE("/:id", ok("delete"))
	g.Group("jobs", "/:id/jobs").POST("/:type", ok("run"))

	engine := gin.New()
	g.RegisterRoutes(engine.Group("/api/v1"))

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/v1/connections", "list"},
		{http.MethodPost, "/api/v1/connections", "create"},
		{http.MethodPut, "/api/v1/connections/1", "update"},
		{http.MethodPatch, "/api/v1/connections/1", "patch"},
		{http.MethodDelete, "/api/v1/connections/1", "delete"},
		{http.MethodPost, "/api/v1/connections/1/jobs/order_import", "run"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(engine, tt.method, tt.path)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
			assert.Equal(t, "connections", w.Header().Get("X-Group"))
		})
	}
}
